package pipeline

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kotoba-ai/kotoba/pkg/events"
)

type Session struct {
	ID      string
	Orch    *Orchestrator
	Ctx     context.Context
	Cancel  context.CancelFunc
	Created time.Time
}

type SessionFactory func(ctx context.Context, sessionID string, emit events.Emitter) (*Orchestrator, error)

// SessionRegistry is the process-wide table of live sessions keyed by
// connection identity.
type SessionRegistry struct {
	sessions sync.Map
	count    atomic.Int64
	factory  SessionFactory
	draining atomic.Bool
}

func NewSessionRegistry(factory SessionFactory) *SessionRegistry {
	return &SessionRegistry{factory: factory}
}

func (r *SessionRegistry) GetOrCreate(sessionID string, emit events.Emitter) (*Session, bool, error) {
	if sessionID == "" {
		return nil, false, nil
	}
	if v, ok := r.sessions.Load(sessionID); ok {
		return v.(*Session), false, nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	orch, err := r.factory(ctx, sessionID, emit)
	if err != nil {
		cancel()
		return nil, false, err
	}
	if err := orch.Start(); err != nil {
		cancel()
		return nil, false, err
	}
	sess := &Session{
		ID:      sessionID,
		Orch:    orch,
		Ctx:     ctx,
		Cancel:  cancel,
		Created: time.Now(),
	}
	actual, loaded := r.sessions.LoadOrStore(sessionID, sess)
	if loaded {
		_ = orch.Stop()
		cancel()
		return actual.(*Session), false, nil
	}
	r.count.Add(1)
	return sess, true, nil
}

func (r *SessionRegistry) Get(sessionID string) (*Session, bool) {
	if v, ok := r.sessions.Load(sessionID); ok {
		return v.(*Session), true
	}
	return nil, false
}

func (r *SessionRegistry) Remove(sessionID string) {
	if v, ok := r.sessions.LoadAndDelete(sessionID); ok {
		sess := v.(*Session)
		if sess.Cancel != nil {
			sess.Cancel()
		}
		if sess.Orch != nil {
			_ = sess.Orch.Stop()
		}
		r.count.Add(-1)
	}
}

func (r *SessionRegistry) CloseAll() {
	r.sessions.Range(func(key, value any) bool {
		if sessionID, ok := key.(string); ok {
			r.Remove(sessionID)
		}
		return true
	})
}

func (r *SessionRegistry) Count() int64 {
	return r.count.Load()
}

func (r *SessionRegistry) SetDraining(v bool) {
	r.draining.Store(v)
}

func (r *SessionRegistry) Draining() bool {
	return r.draining.Load()
}

// Drain stops accepting new sessions and tears down the live ones.
func (r *SessionRegistry) Drain() error {
	r.SetDraining(true)
	r.CloseAll()
	return nil
}

func (r *SessionRegistry) WaitForEmpty(ctx context.Context, interval time.Duration) bool {
	if interval <= 0 {
		interval = 200 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if r.Count() == 0 {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
		}
	}
}
