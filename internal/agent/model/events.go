package model

// EventType enumerates the events streamed to the transport layer.
type EventType string

const (
	EventNode           EventType = "node"
	EventToken          EventType = "token"
	EventToolInvoked    EventType = "tool_invoked"
	EventSafetyOverride EventType = "safety_override"
	EventDone           EventType = "done"
	EventError          EventType = "error"
)

// Event is one streamed item. Text carries the token, node name, tool name,
// replacement text or error message depending on Type.
type Event struct {
	Type EventType `json:"type"`
	Text string    `json:"text,omitempty"`
}

// Emitter receives events in the order they are produced.
type Emitter interface {
	Emit(Event)
}

// EmitterFunc adapts a function to Emitter.
type EmitterFunc func(Event)

func (f EmitterFunc) Emit(ev Event) { f(ev) }
