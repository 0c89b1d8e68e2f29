package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/kotoba-ai/kotoba/pkg/adapters/asr"
	"github.com/kotoba-ai/kotoba/pkg/conversation"
	"github.com/kotoba-ai/kotoba/pkg/events"
	"github.com/kotoba-ai/kotoba/pkg/llm"
	"github.com/kotoba-ai/kotoba/pkg/providers/mock"
	"github.com/kotoba-ai/kotoba/pkg/segmenter"
)

type captureEmitter struct {
	mu     sync.Mutex
	events []events.Event
}

func (c *captureEmitter) Emit(ev events.Event) error {
	c.mu.Lock()
	c.events = append(c.events, ev)
	c.mu.Unlock()
	return nil
}

func (c *captureEmitter) all() []events.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]events.Event, len(c.events))
	copy(out, c.events)
	return out
}

func (c *captureEmitter) byType(typ string) []events.Event {
	var out []events.Event
	for _, ev := range c.all() {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

type rig struct {
	orch      *Orchestrator
	emitter   *captureEmitter
	completer *mock.Completer
	synth     *mock.Synthesizer
	engine    *mock.ASREngine
}

func newRig(t *testing.T, script ...string) *rig {
	t.Helper()
	engine := mock.NewASREngine("small", script...)
	shared := asr.NewShared(engine, func(_ context.Context, model string) (asr.Engine, error) {
		return mock.NewASREngine(model), nil
	})
	completer := mock.NewCompleter("gpt-test", "わかりました")
	synth := mock.NewSynthesizer()
	emitter := &captureEmitter{}
	resp := NewResponder(completer, synth, nil, nil, nil)
	orch := NewOrchestrator(context.Background(), OrchestratorDeps{
		SessionID:   "test-session",
		Segmenter:   segmenter.New(segmenter.Config{Policy: segmenter.PolicyDuration, MaxSegmentSec: 1.0}),
		Transcriber: shared,
		Modes:       conversation.NewModeRegistry(conversation.DefaultModes()),
		Responder:   resp,
		Emitter:     emitter,
	})
	return &rig{orch: orch, emitter: emitter, completer: completer, synth: synth, engine: engine}
}

func TestSetModeEmitsModeChanged(t *testing.T) {
	r := newRig(t)
	r.orch.handle(inboundMsg{kind: msgSetMode, mode: "雑談"})

	changed := r.emitter.byType(events.TypeModeChanged)
	if len(changed) != 1 {
		t.Fatalf("expected one mode_changed, got %d", len(changed))
	}
	if changed[0].Mode != "雑談" || changed[0].Text == "" || changed[0].Audio == "" {
		t.Fatalf("unexpected mode_changed: %+v", changed[0])
	}
	if got := len(r.orch.State().History("雑談")); got != 1 {
		t.Fatalf("expected scenario turn appended, got %d turns", got)
	}
}

func TestSetModeUnknown(t *testing.T) {
	r := newRig(t)
	r.orch.handle(inboundMsg{kind: msgSetMode, mode: "謎モード"})

	errs := r.emitter.byType(events.TypeError)
	if len(errs) != 1 {
		t.Fatalf("expected one error event, got %d", len(errs))
	}
	if _, active := r.orch.State().Current(); active {
		t.Fatalf("expected no active mode after unknown set_mode")
	}
}

func TestChatWhileUnselected(t *testing.T) {
	r := newRig(t)
	r.orch.handle(inboundMsg{kind: msgChat, text: "こんにちは"})

	errs := r.emitter.byType(events.TypeError)
	if len(errs) != 1 || errs[0].Text != NoActiveModeText {
		t.Fatalf("expected NoActiveMode error, got %+v", errs)
	}
	if len(r.completer.Requests()) != 0 {
		t.Fatalf("completion must not run while unselected")
	}
	for _, m := range conversation.DefaultModes().Names() {
		if got := len(r.orch.State().History(m)); got != 0 {
			t.Fatalf("mode %s: expected untouched history, got %d turns", m, got)
		}
	}
}

func TestExchangeHistoryLength(t *testing.T) {
	r := newRig(t)
	r.orch.handle(inboundMsg{kind: msgSetMode, mode: "雑談"})
	const n = 3
	for i := 0; i < n; i++ {
		r.orch.handle(inboundMsg{kind: msgChat, text: "質問です"})
	}
	// one scenario turn plus a user/assistant pair per exchange
	if got := len(r.orch.State().History("雑談")); got != 1+2*n {
		t.Fatalf("expected %d turns, got %d", 1+2*n, got)
	}
	if got := len(r.emitter.byType(events.TypeChatResponse)); got != n {
		t.Fatalf("expected %d chat_response events, got %d", n, got)
	}
}

func TestEndChatClearsOnlyActiveMode(t *testing.T) {
	r := newRig(t)
	r.orch.handle(inboundMsg{kind: msgSetMode, mode: "雑談"})
	r.orch.handle(inboundMsg{kind: msgChat, text: "話しましょう"})
	r.orch.handle(inboundMsg{kind: msgSetMode, mode: "レポート"})
	r.orch.handle(inboundMsg{kind: msgChat, text: "チャットを終了してください"})

	ended := r.emitter.byType(events.TypeChatEnded)
	if len(ended) != 1 || ended[0].Text != ChatEndedText {
		t.Fatalf("expected chat_ended event, got %+v", ended)
	}
	if _, active := r.orch.State().Current(); active {
		t.Fatalf("expected unselected after end chat")
	}
	if got := len(r.orch.State().History("レポート")); got != 0 {
		t.Fatalf("expected レポート history cleared, got %d", got)
	}
	if got := len(r.orch.State().History("雑談")); got != 3 {
		t.Fatalf("expected 雑談 history untouched, got %d", got)
	}
}

func TestCompletionFailureRetainsUserTurn(t *testing.T) {
	r := newRig(t)
	r.orch.handle(inboundMsg{kind: msgSetMode, mode: "雑談"})

	r.completer.FailWith = errors.New("upstream down")
	r.orch.handle(inboundMsg{kind: msgChat, text: "一回目"})

	errs := r.emitter.byType(events.TypeError)
	if len(errs) != 1 || errs[0].Text != ResponseFailedText {
		t.Fatalf("expected response failure error, got %+v", errs)
	}
	hist := r.orch.State().History("雑談")
	if len(hist) != 2 || hist[1].Role != llm.RoleUser || hist[1].Content != "一回目" {
		t.Fatalf("expected user turn retained, got %+v", hist)
	}

	r.completer.FailWith = nil
	r.orch.handle(inboundMsg{kind: msgChat, text: "二回目"})

	reqs := r.completer.Requests()
	if len(reqs) != 1 {
		t.Fatalf("expected one successful completion, got %d", len(reqs))
	}
	last := reqs[0]
	var userTexts []string
	for _, m := range last {
		if m.Role == llm.RoleUser {
			userTexts = append(userTexts, m.Content)
		}
	}
	if len(userTexts) != 2 || userTexts[0] != "一回目" || userTexts[1] != "二回目" {
		t.Fatalf("expected both user turns in request, got %v", userTexts)
	}
}

func TestSilenceNeverDispatches(t *testing.T) {
	r := newRig(t, "これは出てはいけない")
	r.orch.handle(inboundMsg{kind: msgSetMode, mode: "雑談"})
	before := len(r.emitter.all())

	quiet := make([]byte, 32000) // all-zero PCM, one second
	for i := 0; i < 50; i++ {
		r.orch.handle(inboundMsg{kind: msgAudio, audio: quiet})
	}

	if got := len(r.emitter.all()); got != before {
		t.Fatalf("silence produced %d events", got-before)
	}
	if len(r.completer.Requests()) != 0 {
		t.Fatalf("silence must never reach completion")
	}
}

func TestVoiceUtteranceProducesResponse(t *testing.T) {
	r := newRig(t, "今日は天気がいいですね")
	r.orch.handle(inboundMsg{kind: msgSetMode, mode: "雑談"})

	speech := speechChunk(16000)
	r.orch.handle(inboundMsg{kind: msgAudio, audio: speech})

	transcripts := r.emitter.byType(events.TypeTranscript)
	if len(transcripts) == 0 {
		t.Fatalf("expected transcript events")
	}
	resps := r.emitter.byType(events.TypeChatResponse)
	if len(resps) != 1 || resps[0].Text != "わかりました" {
		t.Fatalf("expected one chat_response, got %+v", resps)
	}
}

func TestVoiceCommandSwitchesMode(t *testing.T) {
	r := newRig(t, "レポートモードにしてください")

	speech := speechChunk(16000)
	r.orch.handle(inboundMsg{kind: msgAudio, audio: speech})

	changed := r.emitter.byType(events.TypeModeChanged)
	if len(changed) != 1 || changed[0].Mode != "レポート" {
		t.Fatalf("expected mode_changed to レポート, got %+v", changed)
	}
	if len(r.emitter.byType(events.TypeChatResponse)) != 0 {
		t.Fatalf("command utterance must not reach the response pipeline")
	}
}

func TestGoHomeKeepsHistory(t *testing.T) {
	r := newRig(t)
	r.orch.handle(inboundMsg{kind: msgSetMode, mode: "雑談"})
	r.orch.handle(inboundMsg{kind: msgChat, text: "こんにちは"})
	r.orch.handle(inboundMsg{kind: msgChat, text: "選択画面に戻って"})

	if len(r.emitter.byType(events.TypeGoHome)) != 1 {
		t.Fatalf("expected go_home event")
	}
	if _, active := r.orch.State().Current(); active {
		t.Fatalf("expected mode cleared after go home")
	}
	if got := len(r.orch.State().History("雑談")); got != 3 {
		t.Fatalf("expected history preserved, got %d turns", got)
	}
}

func TestSummaryDirectiveAppended(t *testing.T) {
	r := newRig(t)
	r.orch.handle(inboundMsg{kind: msgSetMode, mode: "レポート"})
	r.orch.handle(inboundMsg{kind: msgChat, text: "今日のサマリをお願いします"})

	reqs := r.completer.Requests()
	if len(reqs) != 1 {
		t.Fatalf("expected one completion, got %d", len(reqs))
	}
	last := reqs[0][len(reqs[0])-1]
	mode, _ := conversation.DefaultModes().Get("レポート")
	if last.Content != mode.SummaryPrompt {
		t.Fatalf("expected summary directive as final message, got %q", last.Content)
	}
	// the directive is additive, not recorded as a turn
	if got := len(r.orch.State().History("レポート")); got != 3 {
		t.Fatalf("expected 3 turns, got %d", got)
	}
}

func TestRecordingDisabledDropsAudio(t *testing.T) {
	r := newRig(t, "無視される発話")
	r.orch.handle(inboundMsg{kind: msgSetMode, mode: "雑談"})
	r.orch.handle(inboundMsg{kind: msgSetRecording, recording: false})
	before := len(r.emitter.all())

	r.orch.handle(inboundMsg{kind: msgAudio, audio: speechChunk(16000)})

	if got := len(r.emitter.all()); got != before {
		t.Fatalf("audio while recording disabled produced events")
	}
}

func TestSynthesisFailureDegradesToText(t *testing.T) {
	r := newRig(t)
	r.orch.handle(inboundMsg{kind: msgSetMode, mode: "雑談"})
	r.synth.FailWith = errors.New("tts down")
	r.orch.handle(inboundMsg{kind: msgChat, text: "こんにちは"})

	resps := r.emitter.byType(events.TypeChatResponse)
	if len(resps) != 1 {
		t.Fatalf("expected chat_response despite synthesis failure, got %d", len(resps))
	}
	if resps[0].Text == "" || resps[0].Audio != "" {
		t.Fatalf("expected text-only reply, got %+v", resps[0])
	}
}

// speechChunk builds one second of loud alternating PCM.
func speechChunk(samples int) []byte {
	raw := make([]byte, samples*2)
	for i := 0; i < samples; i++ {
		v := int16(16000)
		if i%2 == 0 {
			v = -16000
		}
		raw[i*2] = byte(uint16(v))
		raw[i*2+1] = byte(uint16(v) >> 8)
	}
	return raw
}
