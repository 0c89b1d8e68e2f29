// Package tts defines the speech synthesis contract.
package tts

import "context"

// Synthesizer renders text to encoded audio (WAV bytes). Synthesis
// failure is non-fatal to the caller; replies degrade to text-only.
type Synthesizer interface {
	Name() string
	Synthesize(ctx context.Context, text string) ([]byte, error)
}
