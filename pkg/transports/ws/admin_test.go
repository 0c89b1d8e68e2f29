package ws

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/kotoba-ai/kotoba/pkg/adapters/asr"
	"github.com/kotoba-ai/kotoba/pkg/conversation"
	"github.com/kotoba-ai/kotoba/pkg/events"
	"github.com/kotoba-ai/kotoba/pkg/pipeline"
	"github.com/kotoba-ai/kotoba/pkg/providers/mock"
)

func newTestAdmin(t *testing.T) (*Admin, *httptest.Server, string) {
	t.Helper()
	modeFile := filepath.Join(t.TempDir(), "modes.yaml")
	raw := []byte("modes:\n  - name: 雑談\n    system: sys\n    initial_scenario: hello\n")
	if err := os.WriteFile(modeFile, raw, 0o644); err != nil {
		t.Fatalf("write mode file: %v", err)
	}

	shared := asr.NewShared(mock.NewASREngine("small"), func(_ context.Context, model string) (asr.Engine, error) {
		return mock.NewASREngine(model), nil
	})
	registry := pipeline.NewSessionRegistry(func(context.Context, string, events.Emitter) (*pipeline.Orchestrator, error) {
		t.Fatalf("factory must not run in admin tests")
		return nil, nil
	})
	admin := &Admin{
		Completer: mock.NewCompleter("gpt-4o-mini", "ok"),
		ASR:       shared,
		Synth:     mock.NewSynthesizer(),
		Modes:     conversation.NewModeRegistry(conversation.DefaultModes()),
		ModeFile:  modeFile,
		Registry:  registry,
	}
	mux := http.NewServeMux()
	admin.Register(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return admin, srv, modeFile
}

func TestStatusEndpoint(t *testing.T) {
	_, srv, _ := newTestAdmin(t)

	resp, err := http.Get(srv.URL + "/api/status")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var body statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.CompletionModel != "gpt-4o-mini" || body.ASRModel != "small" {
		t.Fatalf("unexpected status: %+v", body)
	}
	if body.TTSEngine != "mock_tts" {
		t.Fatalf("expected mock tts engine, got %q", body.TTSEngine)
	}
	if len(body.Modes) != 4 {
		t.Fatalf("expected 4 modes, got %v", body.Modes)
	}
}

func TestChangeModels(t *testing.T) {
	admin, srv, _ := newTestAdmin(t)

	payload, _ := json.Marshal(changeModelsRequest{CompletionModel: "gpt-4o", ASRModel: "large"})
	resp, err := http.Post(srv.URL+"/api/change_models", "application/json", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if admin.Completer.Model() != "gpt-4o" {
		t.Fatalf("expected completion model swapped, got %s", admin.Completer.Model())
	}
	if admin.ASR.Name() != "large" {
		t.Fatalf("expected asr model swapped, got %s", admin.ASR.Name())
	}
}

func TestConfigReload(t *testing.T) {
	admin, srv, _ := newTestAdmin(t)

	resp, err := http.Post(srv.URL+"/api/config/reload", "application/json", nil)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	names := admin.Modes.Current().Names()
	if len(names) != 1 || names[0] != "雑談" {
		t.Fatalf("expected reloaded single-mode table, got %v", names)
	}
}

func TestStatusMethodNotAllowed(t *testing.T) {
	_, srv, _ := newTestAdmin(t)

	resp, err := http.Post(srv.URL+"/api/status", "application/json", nil)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", resp.StatusCode)
	}
}
