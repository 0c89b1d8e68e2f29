package asr

import (
	"context"
	"sync"

	"github.com/kotoba-ai/kotoba/pkg/errorsx"
)

// Shared serializes access to one Engine instance used by many sessions.
// A model swap flushes in-flight buffered audio through Finish before the
// old engine is replaced, and excludes concurrent inserts for its duration.
type Shared struct {
	mu      sync.Mutex
	engine  Engine
	factory Factory
}

func NewShared(engine Engine, factory Factory) *Shared {
	return &Shared{engine: engine, factory: factory}
}

func (s *Shared) Name() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.Name()
}

func (s *Shared) InsertAudio(ctx context.Context, samples []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return errorsx.Wrap(s.engine.InsertAudio(ctx, samples), errorsx.ReasonASRInsert)
}

func (s *Shared) Partial() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.Partial()
}

func (s *Shared) Finish(ctx context.Context) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.engine.Finish(ctx)
	return res, errorsx.Wrap(err, errorsx.ReasonASRFinish)
}

func (s *Shared) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.Reset()
}

// SwitchModel replaces the underlying engine. Buffered audio is drained
// through Finish first; the drained result is discarded. The swap holds
// the engine lock for its whole duration so no insert can interleave.
func (s *Shared) SwitchModel(ctx context.Context, model string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.engine.Name() == model {
		return nil
	}
	if _, err := s.engine.Finish(ctx); err != nil {
		return errorsx.Wrap(err, errorsx.ReasonASRModelSwap)
	}
	next, err := s.factory(ctx, model)
	if err != nil {
		return errorsx.Wrap(err, errorsx.ReasonASRModelSwap)
	}
	_ = s.engine.Close()
	s.engine = next
	return nil
}

func (s *Shared) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.Close()
}
