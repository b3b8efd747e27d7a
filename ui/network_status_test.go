package ui

import (
	"strings"
	"testing"

	"github.com/dgnsrekt/offlinekit/worker"
)

func TestNetworkStatusStartsHiddenWhenOnline(t *testing.T) {
	n := NewNetworkStatus(true)
	if n.Visible() {
		t.Error("indicator should be hidden while online and idle")
	}
	if n.View() != "" {
		t.Errorf("View() = %q, want empty", n.View())
	}

	if !NewNetworkStatus(false).Visible() {
		t.Error("indicator should be visible when starting offline")
	}
}

func TestNetworkStatusOfflineOnlineTimeline(t *testing.T) {
	n := NewNetworkStatus(true)

	if cmd := n.Update(OfflineMsg{}); cmd != nil {
		t.Error("going offline should not schedule anything")
	}
	if n.Online() || !n.Visible() {
		t.Fatalf("after offline: online=%v visible=%v", n.Online(), n.Visible())
	}
	if n.Pending() != 1 {
		t.Errorf("Pending() = %d, want 1", n.Pending())
	}
	if !strings.Contains(n.View(), "Offline") {
		t.Errorf("View() = %q, want offline message", n.View())
	}

	if cmd := n.Update(OnlineMsg{}); cmd == nil {
		t.Fatal("going online should schedule the settle tick")
	}
	if n.SyncStatus() != worker.SyncSyncing {
		t.Fatalf("SyncStatus() = %v, want syncing", n.SyncStatus())
	}
	if !strings.Contains(n.View(), "Syncing") {
		t.Errorf("View() = %q, want syncing message", n.View())
	}

	if cmd := n.Update(syncSettledMsg{gen: n.gen}); cmd == nil {
		t.Fatal("settling should schedule the hide tick")
	}
	if n.SyncStatus() != worker.SyncSuccess || n.Pending() != 0 {
		t.Fatalf("after settle: status=%v pending=%d", n.SyncStatus(), n.Pending())
	}
	if !n.Visible() {
		t.Error("success should stay visible until hidden")
	}

	n.Update(syncHiddenMsg{gen: n.gen})
	if n.Visible() || n.SyncStatus() != worker.SyncIdle {
		t.Errorf("after hide: visible=%v status=%v", n.Visible(), n.SyncStatus())
	}
}

func TestNetworkStatusIgnoresStaleTicks(t *testing.T) {
	n := NewNetworkStatus(true)
	n.Update(OfflineMsg{})
	n.Update(OnlineMsg{})
	stale := n.gen

	// Dropping again before the settle tick fires
	n.Update(OfflineMsg{})

	if cmd := n.Update(syncSettledMsg{gen: stale}); cmd != nil {
		t.Error("stale settle tick should not schedule a hide")
	}
	if n.SyncStatus() != worker.SyncSyncing {
		t.Errorf("SyncStatus() = %v, want unchanged syncing", n.SyncStatus())
	}
	if n.Online() {
		t.Error("stale tick must not bring the status back online")
	}

	n.Update(syncHiddenMsg{gen: stale})
	if !n.Visible() {
		t.Error("stale hide tick hid the offline indicator")
	}
}

func TestNetworkStatusWorkerReports(t *testing.T) {
	n := NewNetworkStatus(true)

	n.Update(worker.NetworkStatus{Online: false})
	if n.Online() || !n.Visible() {
		t.Fatalf("worker offline: online=%v visible=%v", n.Online(), n.Visible())
	}

	n.Update(worker.NetworkStatus{Online: true})
	if !n.Online() || n.Visible() {
		t.Fatalf("worker online and idle: online=%v visible=%v", n.Online(), n.Visible())
	}

	n.Update(worker.SyncReport{Status: worker.SyncError, Pending: 4})
	if n.SyncStatus() != worker.SyncError || n.Pending() != 4 || !n.Visible() {
		t.Fatalf("sync error report: status=%v pending=%d visible=%v", n.SyncStatus(), n.Pending(), n.Visible())
	}

	if cmd := n.Update(worker.SyncComplete{Tag: "outbox"}); cmd == nil {
		t.Fatal("sync complete should schedule the hide tick")
	}
	if n.SyncStatus() != worker.SyncSuccess || n.Pending() != 0 {
		t.Errorf("after complete: status=%v pending=%d", n.SyncStatus(), n.Pending())
	}
}

func TestNetworkStatusWorkerReportSupersedesTimeline(t *testing.T) {
	n := NewNetworkStatus(false)
	n.Update(OnlineMsg{})
	local := n.gen

	n.Update(worker.SyncReport{Status: worker.SyncError, Pending: 2})
	n.Update(syncSettledMsg{gen: local})

	if n.SyncStatus() != worker.SyncError {
		t.Errorf("SyncStatus() = %v, want reported error", n.SyncStatus())
	}
}

func TestRenderNetworkStatus(t *testing.T) {
	tests := []struct {
		online bool
		sync   worker.SyncStatus
		want   string
	}{
		{false, worker.SyncIdle, "Offline"},
		{false, worker.SyncSyncing, "Offline"},
		{true, worker.SyncSyncing, "Syncing"},
		{true, worker.SyncSuccess, "All changes synced"},
		{true, worker.SyncError, "Sync failed"},
		{true, worker.SyncIdle, ""},
	}

	for _, tt := range tests {
		got := RenderNetworkStatus(tt.online, tt.sync)
		if tt.want == "" {
			if got != "" {
				t.Errorf("RenderNetworkStatus(%v, %v) = %q, want empty", tt.online, tt.sync, got)
			}
			continue
		}
		if !strings.Contains(got, tt.want) {
			t.Errorf("RenderNetworkStatus(%v, %v) = %q, want it to contain %q", tt.online, tt.sync, got, tt.want)
		}
	}
}
