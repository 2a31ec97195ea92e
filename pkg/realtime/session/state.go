package session

// State is the connection lifecycle of a Session.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateActive
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateActive:
		return "active"
	default:
		return "unknown"
	}
}

// Snapshot is a point-in-time copy of the session's UI-facing state.
type Snapshot struct {
	State          State
	Ready          bool
	Listening      bool
	Speaking       bool
	UserTranscript string
	AssistantDraft string
}

// Hooks are optional UI callbacks. All fields may be nil. Hooks are
// invoked from the session's read goroutine; they must not block.
type Hooks struct {
	OnState          func(State)
	OnSpeaking       func(bool)
	OnUserTranscript func(text string)
	OnAssistantDelta func(draft string)
	OnImageReady     func(imageID string)
	OnError          func(err error)
}
