package worker

import (
	"context"
	"errors"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
)

// inbox collects messages dispatched by runtime listeners.
type inbox struct {
	mu   sync.Mutex
	msgs []tea.Msg
}

func (b *inbox) send(msg tea.Msg) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.msgs = append(b.msgs, msg)
}

// drain returns and clears the collected messages.
func (b *inbox) drain() []tea.Msg {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.msgs
	b.msgs = nil
	return out
}

// pump feeds every queued message into the coordinator and returns the
// commands it produced.
func (b *inbox) pump(u *UpdateCoordinator) []tea.Cmd {
	var cmds []tea.Cmd
	for _, msg := range b.drain() {
		if cmd := u.Update(msg); cmd != nil {
			cmds = append(cmds, cmd)
		}
	}
	return cmds
}

type updateFixture struct {
	host    *Host
	channel *recordingChannel
	page    *StaticPage
	reg     Registration
	inbox   *inbox
	coord   *UpdateCoordinator
}

// newUpdateFixture returns a page controlled by w1 with a registration
// ready for updates.
func newUpdateFixture(t *testing.T) *updateFixture {
	t.Helper()
	ch := &recordingChannel{}
	h := NewHost(ch, quietLogger)
	reg, _ := h.Register(context.Background(), "https://app.example.com/sw.js")
	installWorker(t, h, "w1")
	activateWorker(t, h, "w1")

	page := newLoadedPage(t, "https://app.example.com/")
	box := &inbox{}
	return &updateFixture{
		host:    h,
		channel: ch,
		page:    page,
		reg:     reg,
		inbox:   box,
		coord:   NewUpdateCoordinator(reg, h, page, box.send, quietLogger),
	}
}

func TestUpdateCoordinator_WaitingAtMountShowsPrompt(t *testing.T) {
	f := newUpdateFixture(t)
	installWorker(t, f.host, "w2")

	f.coord.Mount()
	if !f.coord.Visible() {
		t.Error("prompt should be visible immediately when a worker is waiting")
	}
}

func TestUpdateCoordinator_SurfacesNewWaitingWorker(t *testing.T) {
	f := newUpdateFixture(t)
	f.coord.Mount()
	if f.coord.Visible() {
		t.Fatal("prompt should be hidden with nothing waiting")
	}

	installWorker(t, f.host, "w2")
	f.inbox.pump(f.coord)

	if !f.coord.Visible() {
		t.Error("prompt should be visible after an update installed")
	}
}

func TestUpdateCoordinator_FirstInstallDoesNotPrompt(t *testing.T) {
	h := NewHost(nil, quietLogger)
	reg, _ := h.Register(context.Background(), "/sw.js")
	box := &inbox{}
	u := NewUpdateCoordinator(reg, h, newLoadedPage(t, "https://app.example.com/"), box.send, quietLogger)
	u.Mount()

	installWorker(t, h, "w1")
	box.pump(u)

	if u.Visible() {
		t.Error("first install has no controller and must not prompt")
	}
}

func TestUpdateCoordinator_ConfirmActivatesAndReloadsOnce(t *testing.T) {
	f := newUpdateFixture(t)
	installWorker(t, f.host, "w2")
	f.coord.Mount()

	post := f.coord.Update(ConfirmUpdateMsg{})
	if post == nil {
		t.Fatal("confirm should return the activation command")
	}
	if cmd := f.coord.Update(ConfirmUpdateMsg{}); cmd != nil {
		t.Error("duplicate confirm should be ignored")
	}
	if len(f.channel.Sent()) != 0 {
		t.Fatal("activation must be posted by the command, not by Update")
	}
	if msg := post(); msg != nil {
		t.Fatalf("activation command returned %T, want nil", msg)
	}

	sent := f.channel.Sent()
	if len(sent) != 1 || sent[0] != (ActivateWaiting{}) {
		t.Fatalf("sent = %v, want exactly one ActivateWaiting", sent)
	}
	if f.page.Reloads() != 0 {
		t.Fatal("must not reload before the controller changes")
	}
	if f.coord.Visible() {
		t.Error("prompt should hide while activating")
	}

	// The worker takes control.
	if err := f.host.Advance("w2", StateActivating); err != nil {
		t.Fatalf("Advance failed: %v", err)
	}
	if err := f.host.Claim("w2"); err != nil {
		t.Fatalf("Claim failed: %v", err)
	}

	cmds := f.inbox.pump(f.coord)
	if len(cmds) != 1 {
		t.Fatalf("commands = %d, want 1 reload", len(cmds))
	}
	if _, ok := cmds[0]().(ReloadedMsg); !ok {
		t.Error("reload command should report ReloadedMsg")
	}
	if f.page.Reloads() != 1 {
		t.Errorf("reloads = %d, want 1", f.page.Reloads())
	}
	if f.host.ControllerListeners() != 0 {
		t.Error("controller listener should be released after it fires")
	}

	// A second controller change never reloads again.
	if cmd := f.coord.Update(ControllerChangedMsg{}); cmd != nil {
		t.Error("second controller change should be ignored")
	}
}

func TestUpdateCoordinator_ControllerChangeWithoutConfirmIgnored(t *testing.T) {
	f := newUpdateFixture(t)
	f.coord.Mount()

	if cmd := f.coord.Update(ControllerChangedMsg{}); cmd != nil {
		t.Error("controller change without a pending activation must not reload")
	}
}

func TestUpdateCoordinator_CloseReleasesPendingListener(t *testing.T) {
	f := newUpdateFixture(t)
	installWorker(t, f.host, "w2")
	f.coord.Mount()
	f.coord.Update(ConfirmUpdateMsg{})

	if f.host.ControllerListeners() != 1 {
		t.Fatalf("controller listeners = %d, want 1", f.host.ControllerListeners())
	}
	f.coord.Close()
	if f.host.ControllerListeners() != 0 {
		t.Error("Close should release the pending controller listener")
	}
}

func TestUpdateCoordinator_PostFailureRestoresPrompt(t *testing.T) {
	f := newUpdateFixture(t)
	installWorker(t, f.host, "w2")
	f.coord.Mount()

	f.channel.err = errors.New("link down")
	post := f.coord.Update(ConfirmUpdateMsg{})
	if post == nil {
		t.Fatal("expected the activation command")
	}
	failed, ok := post().(activationFailedMsg)
	if !ok {
		t.Fatal("expected activationFailedMsg")
	}
	cmd := f.coord.Update(failed)
	if cmd == nil {
		t.Fatal("expected an error command")
	}
	if _, ok := cmd().(UpdateErrorMsg); !ok {
		t.Error("expected UpdateErrorMsg")
	}
	if !f.coord.Visible() || f.coord.Activating() {
		t.Error("prompt should return after a failed activation request")
	}
	if f.host.ControllerListeners() != 0 {
		t.Error("failed activation should release the controller listener")
	}
}

func TestUpdateCoordinator_DismissRemindsLater(t *testing.T) {
	f := newUpdateFixture(t)
	installWorker(t, f.host, "w2")
	f.coord.Mount()

	cmd := f.coord.Update(DismissUpdateMsg{})
	if f.coord.Visible() {
		t.Error("dismiss should hide the prompt")
	}
	if cmd == nil {
		t.Fatal("dismiss with a waiting worker should schedule a reminder")
	}

	f.coord.Update(remindMsg{gen: f.coord.gen})
	if !f.coord.Visible() {
		t.Error("reminder should re-surface the prompt")
	}
}

func TestUpdateCoordinator_StaleReminderIgnored(t *testing.T) {
	f := newUpdateFixture(t)
	installWorker(t, f.host, "w2")
	f.coord.Mount()

	f.coord.Update(DismissUpdateMsg{})
	stale := remindMsg{gen: f.coord.gen}

	// Confirming after dismissal supersedes the reminder.
	f.coord.Update(ConfirmUpdateMsg{})
	f.coord.Update(stale)

	if f.coord.Visible() {
		t.Error("stale reminder must not re-surface the prompt")
	}
}

func TestUpdateCoordinator_DismissWithoutWaiting(t *testing.T) {
	f := newUpdateFixture(t)
	f.coord.Mount()

	if cmd := f.coord.Update(DismissUpdateMsg{}); cmd != nil {
		t.Error("no reminder without a waiting worker")
	}
}

func TestUpdateCoordinator_NilRegistration(t *testing.T) {
	u := NewUpdateCoordinator(nil, NewHost(nil, quietLogger), nil, func(tea.Msg) {}, quietLogger)
	if cmd := u.Mount(); cmd != nil || u.Visible() {
		t.Error("nil registration should do nothing")
	}
	u.Close()
}

func TestUpdateCoordinator_AutoActivateDispatchesOffLoop(t *testing.T) {
	h := NewHost(nil, quietLogger, WithAutoActivate())
	reg, _ := h.Register(context.Background(), "https://app.example.com/sw.js")
	installWorker(t, h, "w1")
	activateWorker(t, h, "w1")
	installWorker(t, h, "w2")

	box := &inbox{}
	page := newLoadedPage(t, "https://app.example.com/")
	u := NewUpdateCoordinator(reg, h, page, box.send, quietLogger)
	u.Mount()

	post := u.Update(ConfirmUpdateMsg{})
	if got := box.drain(); len(got) != 0 {
		t.Fatalf("Update dispatched %v; activation must happen in the command", got)
	}

	post()
	msgs := box.drain()
	if len(msgs) != 1 {
		t.Fatalf("dispatched %v, want one ControllerChangedMsg", msgs)
	}
	reload := u.Update(msgs[0])
	if reload == nil {
		t.Fatal("controller change should reload")
	}
	reload()
	if page.Reloads() != 1 {
		t.Errorf("reloads = %d, want 1", page.Reloads())
	}
}
