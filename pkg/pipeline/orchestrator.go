package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/kotoba-ai/kotoba/pkg/adapters/asr"
	"github.com/kotoba-ai/kotoba/pkg/audio"
	"github.com/kotoba-ai/kotoba/pkg/command"
	"github.com/kotoba-ai/kotoba/pkg/conversation"
	"github.com/kotoba-ai/kotoba/pkg/events"
	"github.com/kotoba-ai/kotoba/pkg/metrics"
	"github.com/kotoba-ai/kotoba/pkg/segmenter"
)

// User-facing Japanese notices.
const (
	ChatEndedText      = "会話を終了しました"
	NoActiveModeText   = "モードが選択されていません"
	ASRFailureText     = "音声認識に失敗しました"
	ResponseFailedText = "応答の生成に失敗しました"
)

// Transcriber is the slice of the recognition contract the orchestrator
// uses. *asr.Shared satisfies it.
type Transcriber interface {
	InsertAudio(ctx context.Context, samples []float32) error
	Partial() (string, bool)
	Finish(ctx context.Context) (asr.Result, error)
	Reset() error
}

type msgKind int

const (
	msgAudio msgKind = iota
	msgSetMode
	msgChat
	msgSetRecording
)

type inboundMsg struct {
	kind      msgKind
	audio     []byte
	mode      string
	text      string
	recording bool
}

// Orchestrator owns one session's lifecycle. All inbound messages are
// processed strictly in arrival order by a single goroutine, so at most
// one pipeline step is in flight per session.
type Orchestrator struct {
	id    string
	seg   *segmenter.Segmenter
	trans Transcriber
	modes *conversation.ModeRegistry
	state *conversation.State
	resp  *Responder
	emit  events.Emitter

	inbox     chan inboundMsg
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	recording atomic.Bool

	logger *slog.Logger
	obs    metrics.Observer
}

type OrchestratorDeps struct {
	SessionID   string
	Segmenter   *segmenter.Segmenter
	Transcriber Transcriber
	Modes       *conversation.ModeRegistry
	Responder   *Responder
	Emitter     events.Emitter
	Logger      *slog.Logger
	Observer    metrics.Observer
	InboxSize   int
}

func NewOrchestrator(ctx context.Context, deps OrchestratorDeps) *Orchestrator {
	if ctx == nil {
		ctx = context.Background()
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Observer == nil {
		deps.Observer = metrics.NoopObserver{}
	}
	if deps.InboxSize <= 0 {
		deps.InboxSize = 256
	}
	ctx, cancel := context.WithCancel(ctx)
	o := &Orchestrator{
		id:     deps.SessionID,
		seg:    deps.Segmenter,
		trans:  deps.Transcriber,
		modes:  deps.Modes,
		state:  conversation.NewState(deps.Modes.Current().Names()),
		resp:   deps.Responder,
		emit:   deps.Emitter,
		inbox:  make(chan inboundMsg, deps.InboxSize),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
		logger: deps.Logger,
		obs:    deps.Observer,
	}
	o.recording.Store(true)
	return o
}

func (o *Orchestrator) Start() error {
	go o.loop()
	return nil
}

// Stop cancels the session task and abandons any unfinalized audio.
func (o *Orchestrator) Stop() error {
	o.cancel()
	select {
	case <-o.done:
	case <-time.After(5 * time.Second):
		o.logger.Warn("session loop did not exit in time",
			slog.String("session_id", o.id))
	}
	o.seg.Reset()
	if err := o.trans.Reset(); err != nil {
		o.logger.Warn("transcriber reset failed",
			slog.String("session_id", o.id),
			slog.String("error", err.Error()))
	}
	return nil
}

// State exposes the conversation state for tests and status reporting.
func (o *Orchestrator) State() *conversation.State {
	return o.state
}

// EnqueueAudio copies the chunk into pooled storage; the reader's
// buffer is reused by the websocket library as soon as we return.
func (o *Orchestrator) EnqueueAudio(raw []byte) error {
	chunk := audio.AcquireBuf(len(raw))
	copy(chunk, raw)
	if err := o.enqueue(inboundMsg{kind: msgAudio, audio: chunk}); err != nil {
		audio.ReleaseBuf(chunk)
		return err
	}
	return nil
}

func (o *Orchestrator) EnqueueSetMode(mode string) error {
	return o.enqueue(inboundMsg{kind: msgSetMode, mode: mode})
}

func (o *Orchestrator) EnqueueChat(text string) error {
	return o.enqueue(inboundMsg{kind: msgChat, text: text})
}

func (o *Orchestrator) EnqueueSetRecording(enabled bool) error {
	return o.enqueue(inboundMsg{kind: msgSetRecording, recording: enabled})
}

func (o *Orchestrator) enqueue(m inboundMsg) error {
	select {
	case <-o.ctx.Done():
		return errors.New("session closed")
	case o.inbox <- m:
		return nil
	}
}

func (o *Orchestrator) loop() {
	defer close(o.done)
	for {
		select {
		case <-o.ctx.Done():
			return
		case m := <-o.inbox:
			o.handle(m)
		}
	}
}

func (o *Orchestrator) handle(m inboundMsg) {
	switch m.kind {
	case msgAudio:
		o.handleAudio(m.audio)
		audio.ReleaseBuf(m.audio)
	case msgSetMode:
		o.switchMode(m.mode)
	case msgChat:
		o.dispatchText(m.text, false)
	case msgSetRecording:
		o.recording.Store(m.recording)
		if !m.recording {
			o.seg.Reset()
			_ = o.trans.Reset()
		}
	}
}

func (o *Orchestrator) handleAudio(raw []byte) {
	if !o.recording.Load() {
		return
	}
	decision, voiced := o.seg.AcceptChunk(raw)
	if voiced != nil {
		if err := o.trans.InsertAudio(o.ctx, voiced); err != nil {
			o.logger.Error("audio insert failed",
				slog.String("session_id", o.id),
				slog.String("error", err.Error()))
			o.seg.Reset()
			_ = o.trans.Reset()
			o.send(events.Error(ASRFailureText))
			return
		}
		if text, ok := o.trans.Partial(); ok {
			o.send(events.Transcript(text))
		}
	}
	if decision == segmenter.DecisionFinalize {
		o.finalizeSegment()
	}
}

func (o *Orchestrator) finalizeSegment() {
	if _, ok := o.seg.Finalize(); !ok {
		return
	}
	traceID := uuid.NewString()
	o.record("segment_final", traceID)

	res, err := o.trans.Finish(o.ctx)
	if err != nil {
		o.logger.Error("segment transcription failed",
			slog.String("session_id", o.id),
			slog.String("error", err.Error()))
		o.send(events.Error(ASRFailureText))
		return
	}
	o.record("asr_final", traceID)

	text := strings.TrimSpace(res.Text)
	if text == "" {
		return
	}
	o.logger.Info("utterance finalized",
		slog.String("session_id", o.id),
		slog.Float64("start", res.Start),
		slog.Float64("end", res.End))
	o.dispatchTraced(text, true, traceID)
}

func (o *Orchestrator) dispatchText(text string, fromVoice bool) {
	o.dispatchTraced(text, fromVoice, uuid.NewString())
}

// dispatchTraced routes one recognized utterance: command phrases drive
// the mode state machine, everything else is conversational content.
func (o *Orchestrator) dispatchTraced(text string, fromVoice bool, traceID string) {
	interp := command.NewInterpreter(o.modes.Current().Names())
	cmd := interp.Interpret(text)

	switch cmd.Kind {
	case command.KindSwitchMode:
		o.switchMode(cmd.Mode)
	case command.KindEndChat:
		if _, active := o.state.Current(); !active {
			o.send(events.Error(NoActiveModeText))
			return
		}
		o.state.EndChat()
		o.send(events.ChatEnded(ChatEndedText))
	case command.KindGoHome:
		o.state.GoHome()
		o.send(events.GoHome())
	default:
		if fromVoice {
			o.send(events.Transcript(text))
		}
		o.respond(text, traceID)
	}
}

func (o *Orchestrator) switchMode(name string) {
	mode, ok := o.modes.Current().Get(name)
	if !ok {
		o.send(events.Error("unknown mode: " + name))
		return
	}
	if err := o.state.Activate(mode.Name); err != nil {
		o.send(events.Error("unknown mode: " + name))
		return
	}
	ev, err := o.resp.Greet(o.ctx, o.id, mode, o.state)
	if err != nil {
		o.logger.Error("mode greeting failed",
			slog.String("session_id", o.id),
			slog.String("mode", name),
			slog.String("error", err.Error()))
		o.send(events.Error(ResponseFailedText))
		return
	}
	o.send(ev)
}

func (o *Orchestrator) respond(text, traceID string) {
	modeName, active := o.state.Current()
	if !active {
		o.send(events.Error(NoActiveModeText))
		return
	}
	mode, ok := o.modes.Current().Get(modeName)
	if !ok {
		o.send(events.Error("unknown mode: " + modeName))
		return
	}
	ev, err := o.resp.Respond(o.ctx, o.id, traceID, mode, o.state, text)
	if err != nil {
		o.send(events.Error(ResponseFailedText))
		return
	}
	o.send(ev)
}

func (o *Orchestrator) send(ev events.Event) {
	if err := o.emit.Emit(ev); err != nil {
		o.logger.Warn("outbound emit failed",
			slog.String("session_id", o.id),
			slog.String("event_type", ev.Type),
			slog.String("error", err.Error()))
	}
}

func (o *Orchestrator) record(name, traceID string) {
	o.obs.RecordEvent(metrics.TurnEvent(name, o.id, traceID))
}
