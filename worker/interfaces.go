package worker

import (
	"context"

	"github.com/dgnsrekt/offlinekit/internal/probe"
)

// Worker is one worker instance as seen from the page.
type Worker interface {
	ID() string
	State() LifecycleState

	// OnStateChange registers fn for state changes and returns a release
	// function.
	OnStateChange(fn func(LifecycleState)) (release func())

	// PostMessage sends m to the worker.
	PostMessage(m Message) error
}

// Registration is the registration of a worker script for a scope. Slot
// accessors return nil when the slot is empty.
type Registration interface {
	ScriptURL() string
	Installing() Worker
	Waiting() Worker
	Active() Worker

	// OnUpdateFound registers fn for new installing workers.
	OnUpdateFound(fn func()) (release func())

	Unregister(ctx context.Context) error
}

// Container is the page's entry point to the worker runtime.
type Container interface {
	// Supported reports whether the runtime can host workers at all.
	Supported() bool

	// Controller returns the worker controlling the page, or nil.
	Controller() Worker

	// Register registers scriptURL, or returns the existing registration.
	Register(ctx context.Context, scriptURL string) (Registration, error)

	// Registration returns the current registration, or nil.
	Registration(ctx context.Context) (Registration, error)

	// OnControllerChange registers fn for controller changes.
	OnControllerChange(fn func()) (release func())
}

// Page is the document the subsystem runs in.
type Page interface {
	Origin() string
	Hostname() string

	// WaitLoad blocks until the page finished loading.
	WaitLoad(ctx context.Context) error

	// Reload reloads the page so freshly cached assets are used.
	Reload()
}

// ScriptChecker fetches a worker script for validation.
type ScriptChecker interface {
	CheckScript(ctx context.Context, url string) (probe.ScriptCheck, error)
}

// Channel carries messages to the worker runtime.
type Channel interface {
	Send(m Message) error
}
