// Package asr defines the contract the orchestrator holds against an
// incremental speech-to-text engine.
package asr

import "context"

// Result is the finalized recognition for one segment.
type Result struct {
	Start float64
	End   float64
	Text  string
}

// Engine is one loaded recognition model. Implementations may block on
// any call; callers treat every method as potentially slow.
type Engine interface {
	// Name identifies the loaded model.
	Name() string
	// InsertAudio appends normalized samples to the engine's buffer.
	InsertAudio(ctx context.Context, samples []float32) error
	// Partial returns the speculative transcript for the in-progress
	// segment. Non-destructive; ok is false when nothing is buffered.
	Partial() (text string, ok bool)
	// Finish finalizes the buffered segment and clears engine-internal
	// buffering.
	Finish(ctx context.Context) (Result, error)
	// Reset drops buffered audio without producing a result.
	Reset() error
	// Close releases the engine.
	Close() error
}

// Factory builds an Engine for a named model. Used by Shared to swap
// models at runtime.
type Factory func(ctx context.Context, model string) (Engine, error)
