package worker

import (
	"bytes"
	"fmt"

	"github.com/bytedance/sonic"
)

// MessageType tags every message exchanged with the worker.
type MessageType string

const (
	// Sent to the worker
	TypeActivateWaiting MessageType = "ACTIVATE_WAITING"

	// Status reports from the worker
	TypeNetworkStatus MessageType = "NETWORK_STATUS"
	TypeSyncStatus    MessageType = "SYNC_STATUS"
	TypeSyncComplete  MessageType = "BACKGROUND_SYNC_COMPLETE"

	// Lifecycle reports from a remote worker runtime
	TypeWorkerInstalling MessageType = "WORKER_INSTALLING"
	TypeWorkerState      MessageType = "WORKER_STATE"
	TypeControllerChange MessageType = "CONTROLLER_CHANGE"
)

// Message is any message of the worker protocol.
type Message interface {
	Type() MessageType
}

// SyncStatus is the background sync progress reported by the worker.
type SyncStatus int

const (
	// SyncIdle indicates nothing is being synchronized.
	SyncIdle SyncStatus = iota
	// SyncSyncing indicates queued work is being replayed.
	SyncSyncing
	// SyncSuccess indicates the last sync finished.
	SyncSuccess
	// SyncError indicates the last sync failed.
	SyncError
)

// String returns the string representation of the sync status.
func (s SyncStatus) String() string {
	switch s {
	case SyncIdle:
		return "idle"
	case SyncSyncing:
		return "syncing"
	case SyncSuccess:
		return "success"
	case SyncError:
		return "error"
	default:
		return "unknown"
	}
}

// ParseSyncStatus converts a status name to a SyncStatus.
func ParseSyncStatus(s string) (SyncStatus, bool) {
	for st := SyncIdle; st <= SyncError; st++ {
		if st.String() == s {
			return st, true
		}
	}
	return SyncIdle, false
}

// ActivateWaiting asks the waiting worker to skip waiting and activate.
type ActivateWaiting struct{}

// NetworkStatus reports the connectivity the worker observes.
type NetworkStatus struct {
	Online bool
}

// SyncReport reports background sync progress.
type SyncReport struct {
	Status  SyncStatus
	Pending uint // Requests still queued
}

// SyncComplete reports that a background sync finished.
type SyncComplete struct {
	Tag string // Sync registration tag, may be empty
}

// WorkerInstalling reports a new worker instance entering install.
type WorkerInstalling struct {
	ID string
}

// WorkerState reports a worker instance changing state.
type WorkerState struct {
	ID    string
	State LifecycleState
}

// ControllerChange reports that a worker took control of this client.
type ControllerChange struct {
	ID string
}

func (ActivateWaiting) Type() MessageType { return TypeActivateWaiting }
func (NetworkStatus) Type() MessageType { return TypeNetworkStatus }
func (SyncReport) Type() MessageType { return TypeSyncStatus }
func (SyncComplete) Type() MessageType { return TypeSyncComplete }
func (WorkerInstalling) Type() MessageType { return TypeWorkerInstalling }
func (WorkerState) Type() MessageType { return TypeWorkerState }
func (ControllerChange) Type() MessageType { return TypeControllerChange }

// Wire forms. Pointer fields distinguish missing from zero values.
type (
	wireHeader struct {
		Type MessageType `json:"type"`
	}
	wireNetworkStatus struct {
		Type   MessageType `json:"type"`
		Online *bool       `json:"online"`
	}
	wireSyncReport struct {
		Type    MessageType `json:"type"`
		Status  *string     `json:"status"`
		Pending *int64      `json:"pending,omitempty"`
	}
	wireSyncComplete struct {
		Type MessageType `json:"type"`
		Tag  string      `json:"tag,omitempty"`
	}
	wireWorker struct {
		Type  MessageType `json:"type"`
		ID    *string     `json:"id"`
		State *string     `json:"state,omitempty"`
	}
)

// Encode serializes m as a flat JSON object tagged by "type".
func Encode(m Message) ([]byte, error) {
	var v any
	switch msg := m.(type) {
	case ActivateWaiting:
		v = wireHeader{Type: msg.Type()}
	case NetworkStatus:
		v = wireNetworkStatus{Type: msg.Type(), Online: &msg.Online}
	case SyncReport:
		status, pending := msg.Status.String(), int64(msg.Pending)
		v = wireSyncReport{Type: msg.Type(), Status: &status, Pending: &pending}
	case SyncComplete:
		v = wireSyncComplete{Type: msg.Type(), Tag: msg.Tag}
	case WorkerInstalling:
		v = wireWorker{Type: msg.Type(), ID: &msg.ID}
	case WorkerState:
		state := msg.State.String()
		v = wireWorker{Type: msg.Type(), ID: &msg.ID, State: &state}
	case ControllerChange:
		v = wireWorker{Type: msg.Type(), ID: &msg.ID}
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownMessage, m)
	}
	return sonic.Marshal(v)
}

// Decode parses a tagged message. Unknown types fail with ErrUnknownMessage
// and missing or invalid fields with ErrMalformedMessage.
func Decode(data []byte) (Message, error) {
	data = bytes.TrimSpace(data)
	var h wireHeader
	if err := sonic.Unmarshal(data, &h); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}

	switch h.Type {
	case TypeActivateWaiting:
		return ActivateWaiting{}, nil

	case TypeNetworkStatus:
		var w wireNetworkStatus
		if err := sonic.Unmarshal(data, &w); err != nil || w.Online == nil {
			return nil, malformed(h.Type, "online", err)
		}
		return NetworkStatus{Online: *w.Online}, nil

	case TypeSyncStatus:
		var w wireSyncReport
		if err := sonic.Unmarshal(data, &w); err != nil || w.Status == nil {
			return nil, malformed(h.Type, "status", err)
		}
		status, ok := ParseSyncStatus(*w.Status)
		if !ok {
			return nil, malformed(h.Type, "status", nil)
		}
		var pending uint
		if w.Pending != nil {
			if *w.Pending < 0 {
				return nil, malformed(h.Type, "pending", nil)
			}
			pending = uint(*w.Pending)
		}
		return SyncReport{Status: status, Pending: pending}, nil

	case TypeSyncComplete:
		var w wireSyncComplete
		if err := sonic.Unmarshal(data, &w); err != nil {
			return nil, malformed(h.Type, "tag", err)
		}
		return SyncComplete{Tag: w.Tag}, nil

	case TypeWorkerInstalling, TypeWorkerState, TypeControllerChange:
		var w wireWorker
		if err := sonic.Unmarshal(data, &w); err != nil || w.ID == nil || *w.ID == "" {
			return nil, malformed(h.Type, "id", err)
		}
		switch h.Type {
		case TypeWorkerInstalling:
			return WorkerInstalling{ID: *w.ID}, nil
		case TypeControllerChange:
			return ControllerChange{ID: *w.ID}, nil
		}
		if w.State == nil {
			return nil, malformed(h.Type, "state", nil)
		}
		state, ok := ParseLifecycleState(*w.State)
		if !ok {
			return nil, malformed(h.Type, "state", nil)
		}
		return WorkerState{ID: *w.ID, State: state}, nil

	case "":
		return nil, fmt.Errorf("%w: missing type", ErrMalformedMessage)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMessage, h.Type)
	}
}

func malformed(t MessageType, field string, err error) error {
	if err != nil {
		return fmt.Errorf("%w: %s.%s: %v", ErrMalformedMessage, t, field, err)
	}
	return fmt.Errorf("%w: %s.%s", ErrMalformedMessage, t, field)
}
