package voice

// State is a session lifecycle state.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateActive
	StateClosing
	StateClosed
	StateError
)

var stateNames = [...]string{
	StateIdle:       "idle",
	StateConnecting: "connecting",
	StateActive:     "active",
	StateClosing:    "closing",
	StateClosed:     "closed",
	StateError:      "error",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// MarshalText renders the state name, for JSON status payloads.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Busy reports whether a new session may not start from s.
func (s State) Busy() bool {
	return s == StateConnecting || s == StateActive || s == StateClosing
}

// canTransition is the legal state graph.
func canTransition(from, to State) bool {
	switch from {
	case StateIdle, StateClosed, StateError:
		return to == StateConnecting
	case StateConnecting:
		return to == StateActive || to == StateClosing || to == StateError
	case StateActive:
		return to == StateClosing || to == StateError
	case StateClosing:
		return to == StateClosed
	}
	return false
}
