package kotoba

import (
	"testing"

	"github.com/kotoba-ai/kotoba/pkg/events"
)

func mockConfig() Config {
	return Config{
		Vendors: VendorsConfig{
			ASR: VendorConfig{Provider: "mock"},
			TTS: VendorConfig{Provider: "mock"},
			LLM: VendorConfig{Provider: "mock", Settings: map[string]any{
				"model": "test-model",
				"reply": "ok",
			}},
		},
		Segmenter: SegmenterConfig{Policy: "duration"},
		LogLevel:  "error",
	}
}

type discardEmitter struct{}

func (discardEmitter) Emit(events.Event) error { return nil }

func TestNewEngineWithMockProviders(t *testing.T) {
	eng, err := NewEngine(EngineOptions{Config: mockConfig()})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	defer func() { _ = eng.Stop() }()

	if eng.Modes().Current() == nil {
		t.Fatalf("expected default mode table")
	}
	if got := len(eng.Modes().Current().Names()); got != 4 {
		t.Fatalf("expected 4 default modes, got %d", got)
	}
}

func TestEngineSessionFactory(t *testing.T) {
	eng, err := NewEngine(EngineOptions{Config: mockConfig()})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	defer func() { _ = eng.Stop() }()

	sess, created, err := eng.Registry().GetOrCreate("sess-1", discardEmitter{})
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if !created || sess == nil {
		t.Fatalf("expected new session")
	}
	if eng.Registry().Count() != 1 {
		t.Fatalf("expected one live session, got %d", eng.Registry().Count())
	}
	eng.Registry().Remove("sess-1")
	if eng.Registry().Count() != 0 {
		t.Fatalf("expected empty registry after removal")
	}
}

func TestEngineUnknownProvider(t *testing.T) {
	cfg := mockConfig()
	cfg.Vendors.LLM.Provider = "nonexistent"
	if _, err := NewEngine(EngineOptions{Config: cfg}); err == nil {
		t.Fatalf("expected error for unregistered provider")
	}
}
