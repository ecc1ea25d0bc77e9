package registry

import "strings"

// State is the lifecycle state of a project.
type State int

const (
	// StateStopped is idle. Unknown projects report it.
	StateStopped State = iota
	// StateRunning has a live process.
	StateRunning
	// StateRestarting is waiting for a crash restart timer.
	StateRestarting
	// StateError is terminal until the next explicit start.
	StateError
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateStopped:
		return "Stopped"
	case StateRunning:
		return "Running"
	case StateRestarting:
		return "Restarting"
	case StateError:
		return "Error"
	default:
		return "Unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *State) UnmarshalText(b []byte) error {
	*s = ParseState(string(b))
	return nil
}

// ParseState parses a state name case-insensitively. Unknown names parse
// as StateStopped.
func ParseState(name string) State {
	switch strings.ToLower(name) {
	case "running":
		return StateRunning
	case "restarting":
		return StateRestarting
	case "error":
		return StateError
	default:
		return StateStopped
	}
}
