package mock

import (
	"context"
	"sync"
)

// Synthesizer returns a fixed WAV payload, or fails on demand.
type Synthesizer struct {
	mu       sync.Mutex
	Payload  []byte
	FailWith error
	calls    []string
}

func NewSynthesizer() *Synthesizer {
	// minimal RIFF header so clients treat it as WAV
	return &Synthesizer{Payload: []byte("RIFF\x00\x00\x00\x00WAVEfmt ")}
}

func (s *Synthesizer) Name() string { return "mock_tts" }

func (s *Synthesizer) Synthesize(_ context.Context, text string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWith != nil {
		return nil, s.FailWith
	}
	s.calls = append(s.calls, text)
	return s.Payload, nil
}

// Calls returns the texts synthesized so far.
func (s *Synthesizer) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.calls))
	copy(out, s.calls)
	return out
}
