package api

import "fmt"

// SessionState tracks the lifecycle of one question/answer session.
type SessionState string

const (
	StateIdle       SessionState = "idle"
	StateConnecting SessionState = "connecting"
	StateStreaming  SessionState = "streaming"
	StateStopping   SessionState = "stopping"
	StateClosed     SessionState = "closed"
)

// ValidateSessionTransition checks whether a session state transition is
// valid. An empty "from" state represents the initial state. StateClosed is
// terminal and reachable from every state (controller shutdown).
func ValidateSessionTransition(from, to SessionState) *ProtocolError {
	if to == StateClosed {
		return nil
	}

	valid := map[SessionState][]SessionState{
		"":              {StateIdle},
		StateIdle:       {StateConnecting},
		StateConnecting: {StateStreaming, StateStopping, StateIdle},
		StateStreaming:  {StateStopping, StateIdle},
		StateStopping:   {StateIdle},
		StateClosed:     {}, // terminal
	}

	allowed, exists := valid[from]
	if !exists {
		return NewInternalError(
			fmt.Sprintf("invalid session transition from %s to %s", from, to))
	}

	for _, s := range allowed {
		if s == to {
			return nil
		}
	}

	return NewInternalError(
		fmt.Sprintf("invalid session transition from %s to %s", from, to))
}
