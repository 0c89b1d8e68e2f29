package conversation

import (
	"fmt"
	"time"
)

// Turn is one role-tagged utterance in a mode's history. Immutable once
// appended.
type Turn struct {
	Role      string
	Content   string
	CreatedAt time.Time
}

// State is one session's conversation state: the active mode plus an
// isolated turn history per mode. It is owned exclusively by the
// session's own task and needs no locking.
type State struct {
	current   string
	histories map[string][]Turn
	now       func() time.Time
}

// NewState initializes every known mode with an empty history and no
// active mode.
func NewState(modeNames []string) *State {
	h := make(map[string][]Turn, len(modeNames))
	for _, name := range modeNames {
		h[name] = nil
	}
	return &State{histories: h, now: time.Now}
}

// Current returns the active mode name, ok=false while unselected.
func (s *State) Current() (string, bool) {
	return s.current, s.current != ""
}

// Activate makes the given mode current. The mode must be a known one.
func (s *State) Activate(mode string) error {
	if _, ok := s.histories[mode]; !ok {
		return fmt.Errorf("unknown mode %q", mode)
	}
	s.current = mode
	return nil
}

// GoHome clears the active mode without touching any history.
func (s *State) GoHome() {
	s.current = ""
}

// EndChat clears the active mode's history, then clears the mode.
// Other modes' histories are untouched. A no-op while unselected.
func (s *State) EndChat() {
	if s.current == "" {
		return
	}
	s.histories[s.current] = nil
	s.current = ""
}

// Append adds a turn to the active mode's history.
func (s *State) Append(role, content string) error {
	if s.current == "" {
		return fmt.Errorf("no active mode")
	}
	s.histories[s.current] = append(s.histories[s.current], Turn{
		Role:      role,
		Content:   content,
		CreatedAt: s.now(),
	})
	return nil
}

// History returns a copy of the given mode's turn sequence.
func (s *State) History(mode string) []Turn {
	turns := s.histories[mode]
	out := make([]Turn, len(turns))
	copy(out, turns)
	return out
}

// ActiveHistory returns a copy of the active mode's turn sequence.
func (s *State) ActiveHistory() []Turn {
	if s.current == "" {
		return nil
	}
	return s.History(s.current)
}
