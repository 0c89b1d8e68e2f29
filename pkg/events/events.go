// Package events defines the outbound wire events for a session channel.
package events

import "encoding/json"

const (
	TypeTranscript   = "transcript"
	TypeModeChanged  = "mode_changed"
	TypeChatEnded    = "chat_ended"
	TypeGoHome       = "go_home"
	TypeChatResponse = "chat_response"
	TypeError        = "error"
)

// Event is one outbound message. Audio carries base64-encoded WAV and is
// omitted when synthesis failed or does not apply.
type Event struct {
	Type  string `json:"type"`
	Mode  string `json:"mode,omitempty"`
	Text  string `json:"text,omitempty"`
	Audio string `json:"audio,omitempty"`
}

// Emitter delivers events on a session's outbound channel in the order
// produced.
type Emitter interface {
	Emit(ev Event) error
}

// EmitterFunc adapts a function to the Emitter interface.
type EmitterFunc func(ev Event) error

func (f EmitterFunc) Emit(ev Event) error { return f(ev) }

func Transcript(text string) Event {
	return Event{Type: TypeTranscript, Text: text}
}

func ModeChanged(mode, text, audio string) Event {
	return Event{Type: TypeModeChanged, Mode: mode, Text: text, Audio: audio}
}

func ChatEnded(text string) Event {
	return Event{Type: TypeChatEnded, Text: text}
}

func GoHome() Event {
	return Event{Type: TypeGoHome}
}

func ChatResponse(mode, text, audio string) Event {
	return Event{Type: TypeChatResponse, Mode: mode, Text: text, Audio: audio}
}

func Error(text string) Event {
	return Event{Type: TypeError, Text: text}
}

// Encode renders the event as JSON.
func Encode(ev Event) ([]byte, error) {
	return json.Marshal(ev)
}
