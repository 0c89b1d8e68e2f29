// Package mock provides in-memory collaborators for tests and local runs.
package mock

import (
	"context"
	"sync"

	"github.com/kotoba-ai/kotoba/pkg/adapters/asr"
)

// ASREngine returns scripted transcripts in order, one per Finish call.
type ASREngine struct {
	mu        sync.Mutex
	ModelName string
	Script    []string
	FailWith  error

	buffered  int
	totalSec  float64
	segStart  float64
	nextIndex int
	closed    bool
}

func NewASREngine(model string, script ...string) *ASREngine {
	return &ASREngine{ModelName: model, Script: script}
}

func (e *ASREngine) Name() string { return e.ModelName }

func (e *ASREngine) InsertAudio(_ context.Context, samples []float32) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.FailWith != nil {
		return e.FailWith
	}
	e.buffered += len(samples)
	e.totalSec += float64(len(samples)) / 16000.0
	return nil
}

func (e *ASREngine) Partial() (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.buffered == 0 || e.nextIndex >= len(e.Script) {
		return "", false
	}
	return e.Script[e.nextIndex], true
}

func (e *ASREngine) Finish(context.Context) (asr.Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.FailWith != nil {
		return asr.Result{}, e.FailWith
	}
	res := asr.Result{Start: e.segStart, End: e.totalSec}
	if e.buffered > 0 && e.nextIndex < len(e.Script) {
		res.Text = e.Script[e.nextIndex]
		e.nextIndex++
	}
	e.buffered = 0
	e.segStart = e.totalSec
	return res, nil
}

func (e *ASREngine) Reset() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.buffered = 0
	e.segStart = e.totalSec
	return nil
}

func (e *ASREngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}

// Closed reports whether Close was called.
func (e *ASREngine) Closed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}
