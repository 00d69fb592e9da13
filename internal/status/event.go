package status

import "encoding/json"

type Type string

const (
	SystemStatus Type = "system_status"
	ToolCall     Type = "tool_call"
	ToolResult   Type = "tool_result"
)

// Stage statuses used with SystemStatus events.
const (
	Initializing = "initializing"
	Ready        = "ready"
	Error        = "error"
	Unavailable  = "unavailable"
	Disabled     = "disabled"
)

// Event is one observer notification. System events carry Component,
// tool events carry Message.
type Event struct {
	Type      Type   `json:"type"`
	Component string `json:"component,omitempty"`
	Message   string `json:"message,omitempty"`
	Status    string `json:"status,omitempty"`
}

func Stage(component, status string) Event {
	return Event{Type: SystemStatus, Component: component, Status: status}
}

func Call(message string) Event {
	return Event{Type: ToolCall, Message: message}
}

func Result(message string) Event {
	return Event{Type: ToolResult, Message: message}
}

func (e Event) JSON() []byte {
	b, _ := json.Marshal(e)
	return b
}

// Emitter accepts events without blocking the caller.
type Emitter interface {
	Emit(Event)
}

type multi []Emitter

func (m multi) Emit(e Event) {
	for _, em := range m {
		if em != nil {
			em.Emit(e)
		}
	}
}

// Tee fans every event out to each emitter in order.
func Tee(emitters ...Emitter) Emitter {
	return multi(emitters)
}
