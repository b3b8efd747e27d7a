package worker

import (
	"context"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
)

// Host mirrors a worker runtime inside the process. Lifecycle changes are
// applied from messages reported by the remote runtime (or driven directly
// in tests), and posted messages are forwarded over a Channel.
type Host struct {
	channel      Channel
	logger       *log.Logger
	supported    bool
	autoActivate bool

	mu         sync.Mutex
	workers    map[string]*hostWorker
	reg        *hostRegistration
	controller *hostWorker

	controllerChange listenerSet[struct{}]
}

// HostOption configures a Host.
type HostOption func(*Host)

// WithAutoActivate makes the host activate and claim a waiting worker as
// soon as it is asked to, for runtimes that never report it themselves.
func WithAutoActivate() HostOption {
	return func(h *Host) { h.autoActivate = true }
}

// WithoutSupport makes the host report that workers are unsupported.
func WithoutSupport() HostOption {
	return func(h *Host) { h.supported = false }
}

// NewHost creates a host that forwards posted messages to channel, which
// may be nil.
func NewHost(channel Channel, logger *log.Logger, opts ...HostOption) *Host {
	if logger == nil {
		logger = log.Default().WithPrefix("worker")
	}
	h := &Host{
		channel:   channel,
		logger:    logger,
		supported: true,
		workers:   make(map[string]*hostWorker),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Supported reports whether workers are supported.
func (h *Host) Supported() bool {
	return h.supported
}

// Controller returns the controlling worker, or nil.
func (h *Host) Controller() Worker {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.controller == nil {
		return nil
	}
	return h.controller
}

// Register registers scriptURL. Registering again returns the existing
// registration.
func (h *Host) Register(ctx context.Context, scriptURL string) (Registration, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !h.supported {
		return nil, ErrUnsupported
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.reg == nil || h.reg.scriptURL != scriptURL {
		h.reg = &hostRegistration{host: h, scriptURL: scriptURL}
	}
	return h.reg, nil
}

// Registration returns the current registration, or nil.
func (h *Host) Registration(ctx context.Context) (Registration, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.reg == nil {
		return nil, nil
	}
	return h.reg, nil
}

// OnControllerChange registers fn for controller changes.
func (h *Host) OnControllerChange(fn func()) func() {
	return h.controllerChange.add(func(struct{}) { fn() })
}

// ControllerListeners returns the number of attached controller listeners.
func (h *Host) ControllerListeners() int {
	return h.controllerChange.len()
}

// BeginInstall records a new worker entering install and announces it on
// the registration.
func (h *Host) BeginInstall(id string) error {
	h.mu.Lock()
	if h.reg == nil {
		h.mu.Unlock()
		return fmt.Errorf("begin install %s: %w", id, ErrNoWorker)
	}
	if _, ok := h.workers[id]; ok {
		h.mu.Unlock()
		return fmt.Errorf("begin install %s: worker already known", id)
	}

	w := &hostWorker{host: h, id: id, state: StateInstalling}
	h.workers[id] = w
	reg := h.reg
	if prev := reg.installing; prev != nil {
		prev.state = StateRedundant
	}
	reg.installing = w
	h.mu.Unlock()

	h.logger.Debug("worker installing", "id", id)
	reg.updateFound.fire(struct{}{})
	return nil
}

// Advance moves worker id to state, updating registration slots first and
// then notifying the worker's listeners.
func (h *Host) Advance(id string, state LifecycleState) error {
	h.mu.Lock()
	w, ok := h.workers[id]
	if !ok {
		h.mu.Unlock()
		return fmt.Errorf("advance %s: %w", id, ErrUnknownWorker)
	}
	if !w.state.CanTransition(state) {
		from := w.state
		h.mu.Unlock()
		return fmt.Errorf("advance %s from %s to %s: %w", id, from, state, ErrInvalidTransition)
	}

	var superseded []*hostWorker
	w.state = state
	if reg := h.reg; reg != nil {
		switch state {
		case StateInstalled:
			if reg.installing == w {
				reg.installing = nil
			}
			if reg.waiting != nil && reg.waiting != w {
				superseded = append(superseded, reg.waiting)
			}
			reg.waiting = w
		case StateActivating:
			if reg.waiting == w {
				reg.waiting = nil
			}
			if reg.active != nil && reg.active != w {
				superseded = append(superseded, reg.active)
			}
			reg.active = w
		case StateRedundant:
			reg.clear(w)
		}
	}
	for _, old := range superseded {
		old.state = StateRedundant
		h.reg.clear(old)
	}
	h.mu.Unlock()

	h.logger.Debug("worker state", "id", id, "state", state)
	for _, old := range superseded {
		old.stateChange.fire(StateRedundant)
	}
	w.stateChange.fire(state)
	return nil
}

// Claim makes worker id the page controller.
func (h *Host) Claim(id string) error {
	h.mu.Lock()
	w, ok := h.workers[id]
	if !ok {
		h.mu.Unlock()
		return fmt.Errorf("claim %s: %w", id, ErrUnknownWorker)
	}
	if w.state != StateActivating && w.state != StateActivated {
		h.mu.Unlock()
		return fmt.Errorf("claim %s in state %s: %w", id, w.state, ErrInvalidTransition)
	}
	if h.controller == w {
		h.mu.Unlock()
		return nil
	}
	h.controller = w
	h.mu.Unlock()

	h.logger.Debug("controller changed", "id", id)
	h.controllerChange.fire(struct{}{})
	return nil
}

// Apply applies a lifecycle message reported by the remote runtime. It
// reports false for messages that are not lifecycle messages.
func (h *Host) Apply(m Message) (bool, error) {
	switch msg := m.(type) {
	case WorkerInstalling:
		if _, err := h.Register(context.Background(), h.scriptURL()); err != nil {
			return true, err
		}
		return true, h.BeginInstall(msg.ID)
	case WorkerState:
		return true, h.Advance(msg.ID, msg.State)
	case ControllerChange:
		return true, h.Claim(msg.ID)
	default:
		return false, nil
	}
}

// PurgeAll drops the registration and every known worker, leaving the
// page uncontrolled.
func (h *Host) PurgeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.reg = nil
	h.controller = nil
	h.workers = make(map[string]*hostWorker)
}

func (h *Host) scriptURL() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.reg == nil {
		return ""
	}
	return h.reg.scriptURL
}

// post forwards m for worker w and runs automatic activation if enabled.
func (h *Host) post(w *hostWorker, m Message) error {
	if h.channel != nil {
		if err := h.channel.Send(m); err != nil {
			return fmt.Errorf("post %s to %s: %w", m.Type(), w.id, err)
		}
	}
	if _, ok := m.(ActivateWaiting); ok && h.autoActivate {
		if err := h.Advance(w.id, StateActivating); err != nil {
			return err
		}
		if err := h.Claim(w.id); err != nil {
			return err
		}
		return h.Advance(w.id, StateActivated)
	}
	return nil
}

// hostRegistration implements Registration.
type hostRegistration struct {
	host      *Host
	scriptURL string

	// Guarded by host.mu
	installing *hostWorker
	waiting    *hostWorker
	active     *hostWorker

	updateFound listenerSet[struct{}]
}

func (r *hostRegistration) ScriptURL() string { return r.scriptURL }

func (r *hostRegistration) Installing() Worker {
	r.host.mu.Lock()
	defer r.host.mu.Unlock()
	if r.installing == nil {
		return nil
	}
	return r.installing
}

func (r *hostRegistration) Waiting() Worker {
	r.host.mu.Lock()
	defer r.host.mu.Unlock()
	if r.waiting == nil {
		return nil
	}
	return r.waiting
}

func (r *hostRegistration) Active() Worker {
	r.host.mu.Lock()
	defer r.host.mu.Unlock()
	if r.active == nil {
		return nil
	}
	return r.active
}

func (r *hostRegistration) OnUpdateFound(fn func()) func() {
	return r.updateFound.add(func(struct{}) { fn() })
}

// Unregister removes the registration. The current controller keeps
// control until the page reloads.
func (r *hostRegistration) Unregister(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.host.mu.Lock()
	defer r.host.mu.Unlock()
	if r.host.reg == r {
		r.host.reg = nil
	}
	return nil
}

// clear empties whichever slot holds w. Caller must hold host.mu.
func (r *hostRegistration) clear(w *hostWorker) {
	switch w {
	case r.installing:
		r.installing = nil
	case r.waiting:
		r.waiting = nil
	case r.active:
		r.active = nil
	}
}

// hostWorker implements Worker.
type hostWorker struct {
	host *Host
	id   string

	state LifecycleState // Guarded by host.mu

	stateChange listenerSet[LifecycleState]
}

func (w *hostWorker) ID() string { return w.id }

func (w *hostWorker) State() LifecycleState {
	w.host.mu.Lock()
	defer w.host.mu.Unlock()
	return w.state
}

func (w *hostWorker) OnStateChange(fn func(LifecycleState)) func() {
	return w.stateChange.add(fn)
}

func (w *hostWorker) PostMessage(m Message) error {
	return w.host.post(w, m)
}
