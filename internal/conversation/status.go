package conversation

// Status represents the lifecycle state of a conversation.
type Status string

const (
	// StatusInit indicates the conversation is validated but not started.
	StatusInit Status = "init"

	// StatusAuthenticating indicates the thread_auth call is in flight.
	StatusAuthenticating Status = "authenticating"

	// StatusThreadInit indicates the thread_init call is in flight.
	StatusThreadInit Status = "thread_init"

	// StatusRunning indicates the turn loop is executing.
	StatusRunning Status = "running"

	// StatusCompleted indicates the strategy concluded cleanly.
	StatusCompleted Status = "completed"

	// StatusFailed indicates a fatal adapter error ended the conversation.
	StatusFailed Status = "failed"

	// StatusTimedOut indicates the conversation deadline expired.
	StatusTimedOut Status = "timed_out"
)

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}

// IsTerminal returns true if the status represents a terminal state.
// Terminal states cannot transition to other states.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusTimedOut:
		return true
	default:
		return false
	}
}

// CanTransitionTo validates whether a state transition is allowed.
func (s Status) CanTransitionTo(target Status) bool {
	if s.IsTerminal() {
		return false
	}

	switch s {
	case StatusInit:
		return target == StatusAuthenticating ||
			target == StatusThreadInit ||
			target == StatusRunning ||
			target == StatusFailed
	case StatusAuthenticating:
		return target == StatusThreadInit ||
			target == StatusRunning ||
			target == StatusFailed ||
			target == StatusTimedOut
	case StatusThreadInit:
		return target == StatusRunning ||
			target == StatusFailed ||
			target == StatusTimedOut
	case StatusRunning:
		return target == StatusCompleted ||
			target == StatusFailed ||
			target == StatusTimedOut
	default:
		return false
	}
}
