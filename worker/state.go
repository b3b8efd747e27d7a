package worker

// LifecycleState is the observed state of a worker instance.
type LifecycleState int

const (
	// StateParsed indicates the script was fetched but install has not begun.
	StateParsed LifecycleState = iota
	// StateInstalling indicates the worker is caching its assets.
	StateInstalling
	// StateInstalled indicates the worker finished installing and is waiting.
	StateInstalled
	// StateActivating indicates the worker is taking over.
	StateActivating
	// StateActivated indicates the worker controls clients.
	StateActivated
	// StateRedundant indicates the worker was replaced or failed to install.
	StateRedundant
)

// String returns the string representation of the state.
func (s LifecycleState) String() string {
	switch s {
	case StateParsed:
		return "parsed"
	case StateInstalling:
		return "installing"
	case StateInstalled:
		return "installed"
	case StateActivating:
		return "activating"
	case StateActivated:
		return "activated"
	case StateRedundant:
		return "redundant"
	default:
		return "unknown"
	}
}

// ParseLifecycleState converts a state name to a LifecycleState.
func ParseLifecycleState(s string) (LifecycleState, bool) {
	for st := StateParsed; st <= StateRedundant; st++ {
		if st.String() == s {
			return st, true
		}
	}
	return StateParsed, false
}

// MarshalText implements encoding.TextMarshaler.
func (s LifecycleState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *LifecycleState) UnmarshalText(b []byte) error {
	st, ok := ParseLifecycleState(string(b))
	if !ok {
		return ErrMalformedMessage
	}
	*s = st
	return nil
}

var transitions = map[LifecycleState][]LifecycleState{
	StateParsed:     {StateInstalling, StateRedundant},
	StateInstalling: {StateInstalled, StateRedundant},
	StateInstalled:  {StateActivating, StateRedundant},
	StateActivating: {StateActivated, StateRedundant},
	StateActivated:  {StateRedundant},
}

// CanTransition reports whether a worker may move from s to to.
func (s LifecycleState) CanTransition(to LifecycleState) bool {
	for _, next := range transitions[s] {
		if next == to {
			return true
		}
	}
	return false
}
