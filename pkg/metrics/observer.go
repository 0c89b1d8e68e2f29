// Package metrics carries pipeline timing events to pluggable observers.
// The orchestrator and responder record one event per turn milestone:
// segment_final, asr_final, llm_done, tts_done.
package metrics

import "time"

type MetricsEvent struct {
	Name   string
	Time   time.Time
	Value  float64
	Tags   map[string]string
	Fields map[string]any
}

type Observer interface {
	RecordEvent(ev MetricsEvent)
}

// TurnEvent builds a milestone event correlated by session and trace id.
func TurnEvent(name, sessionID, traceID string) MetricsEvent {
	return MetricsEvent{
		Name: name,
		Time: time.Now(),
		Tags: map[string]string{
			"session_id": sessionID,
			"trace_id":   traceID,
		},
	}
}

type NoopObserver struct{}

func (NoopObserver) RecordEvent(MetricsEvent) {}
