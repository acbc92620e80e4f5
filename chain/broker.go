package chain

import (
	"time"

	"github.com/Xenakios/AudioPluginHost-II-sub001/timeline"
)

type (
	// Message carries an event between the control thread and one entry of
	// the chain. Towards the audio thread, Delay is how long after the block
	// that drains the message the event should happen. From the audio thread,
	// Position is the absolute sample position at which the unit emitted it.
	Message struct {
		Event    timeline.Event
		Delay    float64
		Position int64

		target int
	}

	// Command is an engine-level request handled at the start of a block.
	Command struct {
		Kind  CommandKind
		Value float64
	}

	CommandKind int
)

const (
	// CommandPanic sends all notes off to every unit.
	CommandPanic CommandKind = iota
	// CommandMainVolume sets the main output gain to Value.
	CommandMainVolume
)

// TrySend queues v on c without waiting. When c is full v is dropped and
// TrySend returns false; callers on the audio thread count the drop instead
// of reporting it.
func TrySend[T any](c chan<- T, v T) bool {
	select {
	case c <- v:
		return true
	default:
		return false
	}
}

// TimeoutReceive waits up to t for a value on c. It is meant for the control
// side, e.g. reading a unit's outbound events; ok is false on timeout or when
// c is closed.
func TimeoutReceive[T any](c <-chan T, t time.Duration) (v T, ok bool) {
	timer := time.NewTimer(t)
	defer timer.Stop()
	select {
	case v, ok = <-c:
	case <-timer.C:
	}
	return v, ok
}
