package pipeline

import (
	"context"
	"encoding/base64"
	"log/slog"
	"time"

	"github.com/kotoba-ai/kotoba/pkg/adapters/tts"
	"github.com/kotoba-ai/kotoba/pkg/conversation"
	"github.com/kotoba-ai/kotoba/pkg/errorsx"
	"github.com/kotoba-ai/kotoba/pkg/events"
	"github.com/kotoba-ai/kotoba/pkg/history"
	"github.com/kotoba-ai/kotoba/pkg/llm"
	"github.com/kotoba-ai/kotoba/pkg/metrics"
	"github.com/kotoba-ai/kotoba/pkg/redact"
	"github.com/kotoba-ai/kotoba/pkg/resilience"
)

// Responder turns one finalized user utterance into a chat_response
// event: prompt assembly, completion, history write-through, synthesis.
type Responder struct {
	completer llm.Completer
	synth     tts.Synthesizer
	log       history.Log
	logger    *slog.Logger
	obs       metrics.Observer
	retry     resilience.RetryPolicy
	breaker   *resilience.CircuitBreaker
}

func NewResponder(completer llm.Completer, synth tts.Synthesizer, log history.Log, logger *slog.Logger, obs metrics.Observer) *Responder {
	if log == nil {
		log = history.NoopLog{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if obs == nil {
		obs = metrics.NoopObserver{}
	}
	return &Responder{
		completer: completer,
		synth:     synth,
		log:       log,
		logger:    logger,
		obs:       obs,
		retry:     resilience.NewRetryPolicy(2, 200*time.Millisecond),
		breaker:   resilience.NewCircuitBreaker(3, 30*time.Second),
	}
}

// Respond appends the user turn, invokes completion over the mode's full
// history, appends the assistant turn, and synthesizes the reply.
// Completion failure stops the pipeline but leaves the user turn in
// place so a resend continues from consistent history. Synthesis
// failure degrades the reply to text-only.
func (r *Responder) Respond(ctx context.Context, sessionID, traceID string, mode conversation.Mode, state *conversation.State, userText string) (events.Event, error) {
	if err := state.Append(llm.RoleUser, userText); err != nil {
		return events.Event{}, errorsx.Wrap(err, errorsx.ReasonNoActiveMode)
	}
	r.writeThrough(sessionID, mode.Name, llm.RoleUser, userText)

	messages := buildMessages(mode, state.ActiveHistory())
	if mode.SummaryPrompt != "" && conversation.RequestsSummary(userText) {
		messages = append(messages, llm.Message{Role: llm.RoleUser, Content: mode.SummaryPrompt})
	}

	reply, err := r.complete(ctx, messages)
	if err != nil {
		r.logger.Error("completion failed",
			slog.String("session_id", sessionID),
			slog.String("mode", mode.Name),
			slog.String("error", err.Error()))
		return events.Event{}, errorsx.Wrap(err, errorsx.ReasonLLMComplete)
	}
	r.record("llm_done", sessionID, traceID)

	if err := state.Append(llm.RoleAssistant, reply); err != nil {
		return events.Event{}, err
	}
	r.writeThrough(sessionID, mode.Name, llm.RoleAssistant, reply)

	audio := r.synthesize(ctx, sessionID, reply)
	r.record("tts_done", sessionID, traceID)

	return events.ChatResponse(mode.Name, reply, audio), nil
}

// Greet appends the mode's initial scenario as an assistant turn and
// packages the mode_changed event with its synthesized audio.
func (r *Responder) Greet(ctx context.Context, sessionID string, mode conversation.Mode, state *conversation.State) (events.Event, error) {
	if err := state.Append(llm.RoleAssistant, mode.InitialScenario); err != nil {
		return events.Event{}, err
	}
	r.writeThrough(sessionID, mode.Name, llm.RoleAssistant, mode.InitialScenario)
	audio := r.synthesize(ctx, sessionID, mode.InitialScenario)
	return events.ModeChanged(mode.Name, mode.InitialScenario, audio), nil
}

// Speak synthesizes standalone text, returning base64 WAV or empty on
// failure.
func (r *Responder) Speak(ctx context.Context, sessionID, text string) string {
	return r.synthesize(ctx, sessionID, text)
}

func (r *Responder) complete(ctx context.Context, messages []llm.Message) (string, error) {
	if !r.breaker.Allow() {
		return "", resilience.RateLimitError{Provider: r.completer.Name(), Message: "circuit open"}
	}
	var reply string
	err := r.retry.Do(ctx, func() error {
		var cerr error
		reply, cerr = r.completer.Complete(ctx, messages)
		return cerr
	})
	if err != nil {
		r.breaker.OnError(err)
		return "", err
	}
	r.breaker.OnSuccess()
	return reply, nil
}

func (r *Responder) synthesize(ctx context.Context, sessionID, text string) string {
	if r.synth == nil || text == "" {
		return ""
	}
	wav, err := r.synth.Synthesize(ctx, text)
	if err != nil {
		r.logger.Warn("synthesis failed, degrading to text-only",
			slog.String("session_id", sessionID),
			slog.String("error", err.Error()))
		return ""
	}
	return base64.StdEncoding.EncodeToString(wav)
}

func (r *Responder) writeThrough(sessionID, mode, role, text string) {
	err := r.log.AppendTurn(history.Entry{
		SessionID: sessionID,
		Mode:      mode,
		Role:      role,
		Text:      redact.Text(text),
		CreatedAt: time.Now(),
	})
	if err != nil {
		r.logger.Warn("transcript log write failed",
			slog.String("session_id", sessionID),
			slog.String("error", err.Error()))
	}
}

func (r *Responder) record(name, sessionID, traceID string) {
	r.obs.RecordEvent(metrics.TurnEvent(name, sessionID, traceID))
}

func buildMessages(mode conversation.Mode, turns []conversation.Turn) []llm.Message {
	out := make([]llm.Message, 0, len(turns)+1)
	out = append(out, llm.Message{Role: llm.RoleSystem, Content: mode.SystemPrompt})
	for _, t := range turns {
		out = append(out, llm.Message{Role: t.Role, Content: t.Content})
	}
	return out
}
