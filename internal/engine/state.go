package engine

// StateKind enumerates the tracker states.
type StateKind int

const (
	StateLoading StateKind = iota
	StateStarted
	StateStopped
	StateError
)

// TrackerState is the current state plus, for StateError, a human-readable
// message. Started and Stopped are the stable states; Loading and Error are
// transient excursions.
type TrackerState struct {
	Kind    StateKind
	Message string
}

func (s TrackerState) String() string {
	switch s.Kind {
	case StateLoading:
		return "loading"
	case StateStarted:
		return "started"
	case StateStopped:
		return "stopped"
	case StateError:
		return "error: " + s.Message
	}
	return "unknown"
}
