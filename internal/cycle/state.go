package cycle

import "github.com/san-kum/brainjam/internal/jam"

// State is the lifecycle position of a Cycle.
type State int32

const (
	Idle State = iota
	Running
	Paused
	Stopped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Paused:
		return "paused"
	case Stopped:
		return "stopped"
	}
	return "unknown"
}

// transitions lists the legal moves out of each state.
var transitions = map[State][]State{
	Idle:    {Running, Stopped},
	Running: {Paused, Stopped},
	Paused:  {Running, Stopped},
}

func canMove(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

func transitionError(from, to State) error {
	return &jam.TransitionError{From: from.String(), To: to.String()}
}
