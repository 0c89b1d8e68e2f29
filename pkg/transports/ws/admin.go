package ws

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/kotoba-ai/kotoba/pkg/adapters/asr"
	"github.com/kotoba-ai/kotoba/pkg/adapters/tts"
	"github.com/kotoba-ai/kotoba/pkg/conversation"
	"github.com/kotoba-ai/kotoba/pkg/llm"
	"github.com/kotoba-ai/kotoba/pkg/pipeline"
)

// Admin exposes the maintenance surface: status, model hot-swap, and
// mode table reload. Swaps never disrupt in-flight sessions beyond the
// engine-level serialization.
type Admin struct {
	Completer llm.Completer
	ASR       *asr.Shared
	Synth     tts.Synthesizer
	Modes     *conversation.ModeRegistry
	ModeFile  string
	Registry  *pipeline.SessionRegistry
	Logger    *slog.Logger
}

type statusResponse struct {
	ActiveSessions  int64    `json:"active_sessions"`
	CompletionModel string   `json:"openai_model"`
	ASRModel        string   `json:"whisper_model"`
	TTSEngine       string   `json:"tts_engine"`
	Modes           []string `json:"modes"`
	Draining        bool     `json:"draining"`
}

type changeModelsRequest struct {
	CompletionModel string `json:"openai_model,omitempty"`
	ASRModel        string `json:"whisper_model,omitempty"`
}

func (a *Admin) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/status", a.handleStatus)
	mux.HandleFunc("/api/change_models", a.handleChangeModels)
	mux.HandleFunc("/api/config/reload", a.handleConfigReload)
}

func (a *Admin) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	status := statusResponse{
		ActiveSessions:  a.Registry.Count(),
		CompletionModel: a.Completer.Model(),
		ASRModel:        a.ASR.Name(),
		Modes:           a.Modes.Current().Names(),
		Draining:        a.Registry.Draining(),
	}
	if a.Synth != nil {
		status.TTSEngine = a.Synth.Name()
	}
	writeJSON(w, http.StatusOK, status)
}

func (a *Admin) handleChangeModels(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req changeModelsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.CompletionModel != "" {
		a.Completer.SetModel(req.CompletionModel)
		a.logger().Info("completion model changed",
			slog.String("model", req.CompletionModel))
	}
	if req.ASRModel != "" {
		if err := a.ASR.SwitchModel(r.Context(), req.ASRModel); err != nil {
			a.logger().Error("asr model swap failed",
				slog.String("model", req.ASRModel),
				slog.String("error", err.Error()))
			writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
			return
		}
		a.logger().Info("asr model changed",
			slog.String("model", req.ASRModel))
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"openai_model":  a.Completer.Model(),
		"whisper_model": a.ASR.Name(),
	})
}

func (a *Admin) handleConfigReload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if a.ModeFile == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "no mode file configured"})
		return
	}
	table, err := conversation.LoadModeFile(a.ModeFile)
	if err != nil {
		a.logger().Error("mode table reload failed",
			slog.String("path", a.ModeFile),
			slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	a.Modes.Replace(table)
	a.logger().Info("mode table reloaded",
		slog.String("path", a.ModeFile),
		slog.Int("modes", len(table.Names())))
	writeJSON(w, http.StatusOK, map[string]any{"modes": table.Names()})
}

func (a *Admin) logger() *slog.Logger {
	if a.Logger != nil {
		return a.Logger
	}
	return slog.Default()
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
