package stream

import "fmt"

// State is the lifecycle state of a Controller.
type State int

const (
	// Idle is the state before the first Attach.
	Idle State = iota

	// Initializing covers device acquisition and pipeline creation.
	Initializing

	// Ready means a renderer is attached and frames are drawn.
	Ready

	// Updating is held while new data is packed and uploaded.
	Updating

	// TornDown is the state after Detach. Attach starts again from scratch.
	TornDown

	// Error is entered when initialization fails or the device or surface
	// is lost. GPU resources are already released.
	Error
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Initializing:
		return "Initializing"
	case Ready:
		return "Ready"
	case Updating:
		return "Updating"
	case TornDown:
		return "TornDown"
	case Error:
		return "Error"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// attached reports whether s holds GPU resources.
func (s State) attached() bool {
	return s == Initializing || s == Ready || s == Updating
}
