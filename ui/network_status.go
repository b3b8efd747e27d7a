package ui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/dgnsrekt/offlinekit/worker"
)

// Default delays of the reconnect timeline.
const (
	DefaultSettleDelay = 2 * time.Second
	DefaultHideDelay   = 3 * time.Second
)

// OnlineMsg indicates the client regained connectivity.
type OnlineMsg struct{}

// OfflineMsg indicates the client lost connectivity.
type OfflineMsg struct{}

// syncSettledMsg ends the syncing phase started by going online.
type syncSettledMsg struct{ gen int }

// syncHiddenMsg hides the indicator after a successful sync.
type syncHiddenMsg struct{ gen int }

// NetworkStatus tracks connectivity and background sync progress for the
// status indicator. Delayed transitions carry the generation they were
// scheduled in and are ignored once newer input arrived.
type NetworkStatus struct {
	online  bool
	sync    worker.SyncStatus
	pending uint
	visible bool
	gen     int

	SettleDelay time.Duration
	HideDelay   time.Duration
}

// NewNetworkStatus creates a tracker. Starting offline shows the indicator.
func NewNetworkStatus(online bool) *NetworkStatus {
	return &NetworkStatus{
		online:      online,
		visible:     !online,
		SettleDelay: DefaultSettleDelay,
		HideDelay:   DefaultHideDelay,
	}
}

// Update handles connectivity and worker status messages.
func (n *NetworkStatus) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case OfflineMsg:
		n.gen++
		n.online = false
		n.pending++
		n.visible = true

	case OnlineMsg:
		n.gen++
		n.online = true
		n.sync = worker.SyncSyncing
		n.visible = true
		gen := n.gen
		return tea.Tick(n.SettleDelay, func(time.Time) tea.Msg {
			return syncSettledMsg{gen: gen}
		})

	case syncSettledMsg:
		if msg.gen != n.gen {
			return nil
		}
		n.sync = worker.SyncSuccess
		n.pending = 0
		return n.scheduleHide()

	case syncHiddenMsg:
		if msg.gen != n.gen {
			return nil
		}
		n.sync = worker.SyncIdle
		n.visible = false

	// Worker reports are authoritative and supersede the local timeline.
	case worker.NetworkStatus:
		n.gen++
		n.online = msg.Online
		n.visible = !n.online || n.sync != worker.SyncIdle

	case worker.SyncReport:
		n.gen++
		n.sync = msg.Status
		n.pending = msg.Pending
		n.visible = !n.online || n.sync != worker.SyncIdle
		if msg.Status == worker.SyncSuccess {
			return n.scheduleHide()
		}

	case worker.SyncComplete:
		n.gen++
		n.sync = worker.SyncSuccess
		n.pending = 0
		n.visible = true
		return n.scheduleHide()
	}
	return nil
}

func (n *NetworkStatus) scheduleHide() tea.Cmd {
	gen := n.gen
	return tea.Tick(n.HideDelay, func(time.Time) tea.Msg {
		return syncHiddenMsg{gen: gen}
	})
}

// Online reports the last known connectivity.
func (n *NetworkStatus) Online() bool { return n.online }

// SyncStatus reports the current sync status.
func (n *NetworkStatus) SyncStatus() worker.SyncStatus { return n.sync }

// Pending reports the number of changes waiting to sync.
func (n *NetworkStatus) Pending() uint { return n.pending }

// Visible reports whether the indicator is shown.
func (n *NetworkStatus) Visible() bool { return n.visible }

// View renders the indicator, or nothing when hidden.
func (n *NetworkStatus) View() string {
	if !n.visible {
		return ""
	}
	return RenderNetworkStatus(n.online, n.sync)
}

// RenderNetworkStatus renders the indicator for a connectivity and sync
// status pair. Combinations without a message render nothing.
func RenderNetworkStatus(online bool, sync worker.SyncStatus) string {
	var (
		icon  string
		text  string
		color lipgloss.TerminalColor
	)

	switch {
	case !online:
		icon, text, color = "⚠", "Offline. Changes will sync when you reconnect", red
	case sync == worker.SyncSyncing:
		icon, text, color = "⟳", "Back online. Syncing changes…", blue
	case sync == worker.SyncSuccess:
		icon, text, color = "✓", "Back online. All changes synced", green
	case sync == worker.SyncError:
		icon, text, color = "✗", "Sync failed. Changes are kept for the next attempt", orange
	default:
		return ""
	}

	return indicatorStyle.Foreground(color).Render(icon + " " + text)
}
