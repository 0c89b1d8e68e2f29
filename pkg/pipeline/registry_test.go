package pipeline

import (
	"context"
	"testing"

	"github.com/kotoba-ai/kotoba/pkg/adapters/asr"
	"github.com/kotoba-ai/kotoba/pkg/conversation"
	"github.com/kotoba-ai/kotoba/pkg/events"
	"github.com/kotoba-ai/kotoba/pkg/providers/mock"
	"github.com/kotoba-ai/kotoba/pkg/segmenter"
)

func testFactory() SessionFactory {
	return func(ctx context.Context, sessionID string, emit events.Emitter) (*Orchestrator, error) {
		shared := asr.NewShared(mock.NewASREngine("small"), nil)
		resp := NewResponder(mock.NewCompleter("m", "ok"), mock.NewSynthesizer(), nil, nil, nil)
		return NewOrchestrator(ctx, OrchestratorDeps{
			SessionID:   sessionID,
			Segmenter:   segmenter.New(segmenter.Config{}),
			Transcriber: shared,
			Modes:       conversation.NewModeRegistry(conversation.DefaultModes()),
			Responder:   resp,
			Emitter:     emit,
		}), nil
	}
}

func TestRegistryLifecycle(t *testing.T) {
	reg := NewSessionRegistry(testFactory())
	em := &captureEmitter{}

	sess, created, err := reg.GetOrCreate("s1", em)
	if err != nil || !created || sess == nil {
		t.Fatalf("expected new session, got created=%v err=%v", created, err)
	}
	if reg.Count() != 1 {
		t.Fatalf("expected count 1, got %d", reg.Count())
	}

	again, created, err := reg.GetOrCreate("s1", em)
	if err != nil || created || again != sess {
		t.Fatalf("expected existing session returned")
	}

	reg.Remove("s1")
	if reg.Count() != 0 {
		t.Fatalf("expected count 0 after remove, got %d", reg.Count())
	}
	if _, ok := reg.Get("s1"); ok {
		t.Fatalf("expected session gone")
	}
}

func TestRegistryEmptyID(t *testing.T) {
	reg := NewSessionRegistry(testFactory())
	sess, created, err := reg.GetOrCreate("", &captureEmitter{})
	if sess != nil || created || err != nil {
		t.Fatalf("expected nil session for empty id")
	}
}

func TestRegistryDrain(t *testing.T) {
	reg := NewSessionRegistry(testFactory())
	em := &captureEmitter{}
	_, _, _ = reg.GetOrCreate("s1", em)
	_, _, _ = reg.GetOrCreate("s2", em)

	if err := reg.Drain(); err != nil {
		t.Fatalf("drain: %v", err)
	}
	if !reg.Draining() {
		t.Fatalf("expected draining flag set")
	}
	if reg.Count() != 0 {
		t.Fatalf("expected all sessions removed, got %d", reg.Count())
	}
	if !reg.WaitForEmpty(context.Background(), 0) {
		t.Fatalf("expected WaitForEmpty to return true")
	}
}
