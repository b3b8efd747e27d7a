package worker

import (
	"errors"
	"fmt"
)

// Common errors for worker coordination.
var (
	// Registration errors
	ErrUnsupported   = errors.New("background workers are not supported")
	ErrCrossOrigin   = errors.New("worker script is not same-origin")
	ErrInvalidScript = errors.New("worker script is missing or not javascript")
	ErrOffline       = errors.New("no connection, running in offline mode")
	ErrRegistration  = errors.New("worker registration failed")

	// Lifecycle errors
	ErrNoWorker          = errors.New("no worker in that slot")
	ErrInvalidTransition = errors.New("invalid worker state transition")
	ErrUnknownWorker     = errors.New("unknown worker")

	// Protocol errors
	ErrUnknownMessage   = errors.New("unknown message type")
	ErrMalformedMessage = errors.New("malformed message")
	ErrChannelClosed    = errors.New("message channel closed")
)

// Error provides detailed error information.
type Error struct {
	Err       error  // The underlying error
	Component string // Component that generated the error
	Action    string // Action being performed when error occurred
	Context   map[string]any
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := "unknown worker error"
	if e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Component != "" {
		return fmt.Sprintf("%s: %s: %s", e.Component, e.Action, msg)
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a new worker error with context.
func NewError(err error, component, action string) *Error {
	return &Error{
		Err:       err,
		Component: component,
		Action:    action,
		Context:   make(map[string]any),
	}
}

// WithContext adds context to the error.
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}
