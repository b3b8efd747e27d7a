package worker

import (
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
)

// DefaultRemindAfter is how long a dismissed update prompt stays hidden.
const DefaultRemindAfter = time.Hour

// Messages for Bubble Tea communication between the update coordinator and
// the UI.

// UpdateReadyMsg indicates a new worker finished installing and is waiting.
type UpdateReadyMsg struct {
	Worker Worker // The waiting worker
}

// ConfirmUpdateMsg asks the waiting worker to activate.
type ConfirmUpdateMsg struct{}

// DismissUpdateMsg hides the update prompt for RemindAfter.
type DismissUpdateMsg struct{}

// ControllerChangedMsg indicates the activated worker took control.
type ControllerChangedMsg struct{}

// ReloadedMsg indicates the page was reloaded after an update.
type ReloadedMsg struct{}

// UpdateErrorMsg indicates the activation request could not be sent.
type UpdateErrorMsg struct {
	Err error
}

// activationFailedMsg reports that the activation request could not be
// posted.
type activationFailedMsg struct {
	err error
}

// remindMsg re-surfaces a dismissed prompt. Gen ties it to the dismissal
// that scheduled it.
type remindMsg struct {
	gen int
}

// UpdateCoordinator drives the update prompt. All state changes happen in
// Update on the program's event loop; runtime listeners only dispatch
// messages through send.
type UpdateCoordinator struct {
	reg       Registration
	container Container
	page      Page
	send      func(tea.Msg)
	logger    *log.Logger

	// RemindAfter is the delay before a dismissed prompt returns.
	RemindAfter time.Duration

	visible    bool
	waiting    Worker
	activating bool
	reloaded   bool
	gen        int

	releaseUpdateFound func()
	controllerChange   *releaser

	// Set from runtime callbacks
	mu         sync.Mutex
	installing []*releaser
}

// NewUpdateCoordinator creates a coordinator for reg, which may be nil when
// no worker is registered. send delivers messages to the event loop.
func NewUpdateCoordinator(reg Registration, container Container, page Page, send func(tea.Msg), logger *log.Logger) *UpdateCoordinator {
	if logger == nil {
		logger = log.Default().WithPrefix("update")
	}
	return &UpdateCoordinator{
		reg:         reg,
		container:   container,
		page:        page,
		send:        send,
		logger:      logger,
		RemindAfter: DefaultRemindAfter,
	}
}

// Mount shows the prompt immediately if a worker is already waiting, and
// otherwise watches for one.
func (u *UpdateCoordinator) Mount() tea.Cmd {
	if u.reg == nil {
		return nil
	}
	if w := u.reg.Waiting(); w != nil {
		u.waiting = w
		u.visible = true
		return nil
	}
	if u.releaseUpdateFound == nil {
		u.releaseUpdateFound = u.reg.OnUpdateFound(u.onUpdateFound)
	}
	return nil
}

// onUpdateFound runs on the runtime's goroutine.
func (u *UpdateCoordinator) onUpdateFound() {
	w := u.reg.Installing()
	if w == nil {
		return
	}

	once := &releaser{}
	once.set(w.OnStateChange(func(state LifecycleState) {
		switch state {
		case StateInstalled:
			once.release()
			if u.container.Controller() != nil {
				u.send(UpdateReadyMsg{Worker: w})
			}
		case StateRedundant:
			once.release()
		}
	}))
	u.mu.Lock()
	u.installing = append(u.installing, once)
	u.mu.Unlock()
}

// Update handles coordinator messages and returns follow-up commands.
func (u *UpdateCoordinator) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case UpdateReadyMsg:
		u.waiting = msg.Worker
		u.visible = true
		u.gen++

	case ConfirmUpdateMsg:
		return u.confirm()

	case DismissUpdateMsg:
		u.visible = false
		u.gen++
		if u.waiting == nil {
			return nil
		}
		gen := u.gen
		return tea.Tick(u.RemindAfter, func(time.Time) tea.Msg {
			return remindMsg{gen: gen}
		})

	case remindMsg:
		if msg.gen != u.gen || u.waiting == nil || u.activating {
			return nil
		}
		u.visible = true

	case activationFailedMsg:
		if !u.activating || u.reloaded {
			return nil
		}
		u.logger.Warn("activation request failed", "err", msg.err)
		if u.controllerChange != nil {
			u.controllerChange.release()
		}
		u.activating = false
		u.visible = true
		err := msg.err
		return func() tea.Msg { return UpdateErrorMsg{Err: err} }

	case ControllerChangedMsg:
		if !u.activating || u.reloaded {
			return nil
		}
		u.controllerChange.release()
		u.reloaded = true
		page := u.page
		return func() tea.Msg {
			page.Reload()
			return ReloadedMsg{}
		}
	}
	return nil
}

// confirm posts one activation request and waits for the controller change.
// The request is posted by the returned command, off the event loop: an
// auto-activating runtime dispatches through send before PostMessage returns.
func (u *UpdateCoordinator) confirm() tea.Cmd {
	if u.waiting == nil || u.activating {
		return nil
	}

	u.activating = true
	u.visible = false
	u.gen++

	rel := &releaser{}
	rel.set(u.container.OnControllerChange(func() {
		u.send(ControllerChangedMsg{})
	}))
	u.controllerChange = rel

	w, logger := u.waiting, u.logger
	return func() tea.Msg {
		if err := w.PostMessage(ActivateWaiting{}); err != nil {
			return activationFailedMsg{err: err}
		}
		logger.Debug("activation requested", "worker", w.ID())
		return nil
	}
}

// Visible reports whether the update prompt is shown.
func (u *UpdateCoordinator) Visible() bool {
	return u.visible
}

// Activating reports whether an activation request is pending.
func (u *UpdateCoordinator) Activating() bool {
	return u.activating
}

// Close releases every runtime listener the coordinator attached.
func (u *UpdateCoordinator) Close() {
	if u.releaseUpdateFound != nil {
		u.releaseUpdateFound()
		u.releaseUpdateFound = nil
	}
	u.mu.Lock()
	installing := u.installing
	u.installing = nil
	u.mu.Unlock()
	for _, rel := range installing {
		rel.release()
	}
	if u.controllerChange != nil {
		u.controllerChange.release()
	}
}
