package conversation

import "testing"

func newTestState() *State {
	return NewState([]string{"雑談", "レポート"})
}

func TestActivateUnknownMode(t *testing.T) {
	s := newTestState()
	if err := s.Activate("タイマー"); err == nil {
		t.Fatalf("expected error for unknown mode")
	}
	if _, ok := s.Current(); ok {
		t.Fatalf("expected no active mode after failed activation")
	}
}

func TestAppendRequiresActiveMode(t *testing.T) {
	s := newTestState()
	if err := s.Append("user", "hello"); err == nil {
		t.Fatalf("expected error appending while unselected")
	}
}

func TestExchangeLength(t *testing.T) {
	s := newTestState()
	if err := s.Activate("雑談"); err != nil {
		t.Fatalf("activate: %v", err)
	}
	const n = 5
	for i := 0; i < n; i++ {
		if err := s.Append("user", "q"); err != nil {
			t.Fatalf("append user: %v", err)
		}
		if err := s.Append("assistant", "a"); err != nil {
			t.Fatalf("append assistant: %v", err)
		}
	}
	hist := s.ActiveHistory()
	if len(hist) != 2*n {
		t.Fatalf("expected %d turns, got %d", 2*n, len(hist))
	}
	for i, turn := range hist {
		want := "user"
		if i%2 == 1 {
			want = "assistant"
		}
		if turn.Role != want {
			t.Fatalf("turn %d: expected role %s, got %s", i, want, turn.Role)
		}
	}
}

func TestEndChatClearsOnlyActiveMode(t *testing.T) {
	s := newTestState()
	_ = s.Activate("雑談")
	_ = s.Append("user", "q1")
	_ = s.Append("assistant", "a1")

	_ = s.Activate("レポート")
	s.EndChat()

	if _, ok := s.Current(); ok {
		t.Fatalf("expected unselected after EndChat")
	}
	if got := len(s.History("レポート")); got != 0 {
		t.Fatalf("expected レポート history cleared, got %d turns", got)
	}
	if got := len(s.History("雑談")); got != 2 {
		t.Fatalf("expected 雑談 history untouched, got %d turns", got)
	}
}

func TestGoHomeKeepsHistory(t *testing.T) {
	s := newTestState()
	_ = s.Activate("雑談")
	_ = s.Append("user", "q1")
	s.GoHome()
	if _, ok := s.Current(); ok {
		t.Fatalf("expected unselected after GoHome")
	}
	if got := len(s.History("雑談")); got != 1 {
		t.Fatalf("expected history preserved, got %d turns", got)
	}
}

func TestHistoryReturnsCopy(t *testing.T) {
	s := newTestState()
	_ = s.Activate("雑談")
	_ = s.Append("user", "q1")
	hist := s.History("雑談")
	hist[0].Content = "mutated"
	if s.History("雑談")[0].Content != "q1" {
		t.Fatalf("History must return a copy")
	}
}
