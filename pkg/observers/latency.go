package observers

import (
	"log/slog"
	"sync"
	"time"

	"github.com/kotoba-ai/kotoba/pkg/metrics"
)

// LatencyObserver correlates per-turn milestones by trace id and logs
// end-to-end timing when a turn completes.
type LatencyObserver struct {
	mu     sync.Mutex
	traces map[string]*turnTrace
	log    *slog.Logger
}

type turnTrace struct {
	segmentFinal time.Time
	asrFinal     time.Time
	llmDone      time.Time
	ttsDone      time.Time
	sessionID    string
}

func NewLatencyObserver(log *slog.Logger) *LatencyObserver {
	if log == nil {
		log = slog.Default()
	}
	return &LatencyObserver{
		traces: make(map[string]*turnTrace),
		log:    log,
	}
}

func (o *LatencyObserver) RecordEvent(ev metrics.MetricsEvent) {
	traceID := ""
	if ev.Tags != nil {
		traceID = ev.Tags["trace_id"]
	}
	if traceID == "" {
		return
	}
	o.mu.Lock()
	t := o.traces[traceID]
	if t == nil {
		t = &turnTrace{}
		o.traces[traceID] = t
	}
	if t.sessionID == "" && ev.Tags != nil {
		t.sessionID = ev.Tags["session_id"]
	}
	switch ev.Name {
	case "segment_final":
		if t.segmentFinal.IsZero() {
			t.segmentFinal = ev.Time
		}
	case "asr_final":
		if t.asrFinal.IsZero() {
			t.asrFinal = ev.Time
		}
	case "llm_done":
		if t.llmDone.IsZero() {
			t.llmDone = ev.Time
		}
	case "tts_done":
		t.ttsDone = ev.Time
	}
	if !t.ttsDone.IsZero() {
		o.logTurnLocked(traceID, t)
		delete(o.traces, traceID)
	}
	o.mu.Unlock()
}

func (o *LatencyObserver) logTurnLocked(traceID string, t *turnTrace) {
	o.log.Info("latency",
		"trace_id", traceID,
		"session_id", t.sessionID,
		"asr_ms", durationMs(t.segmentFinal, t.asrFinal),
		"llm_ms", durationMs(t.asrFinal, t.llmDone),
		"tts_ms", durationMs(t.llmDone, t.ttsDone),
		"turn_ms", durationMs(t.segmentFinal, t.ttsDone),
	)
}

func durationMs(a, b time.Time) int64 {
	if a.IsZero() || b.IsZero() {
		return -1
	}
	return b.Sub(a).Milliseconds()
}
