package game

import "fmt"

// ValidationError marks malformed or missing caller input. Never retried,
// surfaced as HTTP 400.
type ValidationError struct {
	msg string
}

func NewValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{msg: fmt.Sprintf(format, args...)}
}

func (e *ValidationError) Error() string { return e.msg }

// StateError marks an operation that is illegal in the current phase, such as
// answering before the game starts or answering the same round twice.
// Surfaced as HTTP 409 so clients can special-case it.
type StateError struct {
	msg string
}

func NewStateError(format string, args ...any) *StateError {
	return &StateError{msg: fmt.Sprintf(format, args...)}
}

func (e *StateError) Error() string { return e.msg }

// GameError marks a domain-level failure: exhausted questions, failed
// generation. May trigger a rollback of an in-progress start or advance.
type GameError struct {
	msg   string
	cause error
}

func NewGameError(format string, args ...any) *GameError {
	return &GameError{msg: fmt.Sprintf(format, args...)}
}

func WrapGameError(cause error, format string, args ...any) *GameError {
	return &GameError{msg: fmt.Sprintf(format, args...), cause: cause}
}

func (e *GameError) Error() string {
	if e.cause != nil {
		return e.msg + ": " + e.cause.Error()
	}
	return e.msg
}

func (e *GameError) Unwrap() error { return e.cause }
