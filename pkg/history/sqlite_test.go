package history

import (
	"path/filepath"
	"testing"
	"time"
)

func newTestLog(t *testing.T) *SQLiteLog {
	t.Helper()
	l, err := NewSQLiteLog(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open log: %v", err)
	}
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func TestAppendAndReadTurns(t *testing.T) {
	l := newTestLog(t)
	now := time.Now()
	entries := []Entry{
		{SessionID: "s1", Mode: "雑談", Role: "user", Text: "こんにちは", CreatedAt: now},
		{SessionID: "s1", Mode: "雑談", Role: "assistant", Text: "こんにちは！", CreatedAt: now.Add(time.Second)},
		{SessionID: "s1", Mode: "レポート", Role: "user", Text: "報告です", CreatedAt: now.Add(2 * time.Second)},
	}
	for _, e := range entries {
		if err := l.AppendTurn(e); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	got, err := l.Turns("s1", "雑談")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 turns for 雑談, got %d", len(got))
	}
	if got[0].Role != "user" || got[1].Role != "assistant" {
		t.Fatalf("unexpected order: %+v", got)
	}

	other, err := l.Turns("s1", "レポート")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(other) != 1 || other[0].Text != "報告です" {
		t.Fatalf("expected isolated レポート log, got %+v", other)
	}
}

func TestTurnsEmptySession(t *testing.T) {
	l := newTestLog(t)
	got, err := l.Turns("missing", "雑談")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no turns, got %d", len(got))
	}
}
