package plughost

import (
	"io"

	"github.com/Xenakios/AudioPluginHost-II-sub001/timeline"
)

type (
	// ProcessingUnit is an opaque audio processor hosted by a chain. Discovery
	// and instantiation happen outside this module; the chain only needs the
	// methods below.
	//
	// Activate and Deactivate are always called on the thread that owns the
	// chain. Process is called on the audio thread, once per block, and must
	// neither block nor allocate.
	ProcessingUnit interface {
		ID() string
		Channels() (inputs, outputs int)
		Activate(sampleRate float64, maxFrames int) error
		Deactivate()
		Process(p *Process) ProcessStatus
	}

	// StatefulUnit is a ProcessingUnit whose state can be saved to and loaded
	// from a byte stream. LoadState pulls bytes from r; it must not assume
	// that r ends where the state ends.
	StatefulUnit interface {
		ProcessingUnit
		SaveState(w io.Writer) error
		LoadState(r io.Reader) error
	}

	// Process is the context of one block. Events are sorted by time and their
	// Time is the frame offset from the start of the block. In and Out have
	// Frames frames each; In may be shared with the previous unit's Out and
	// must not be written.
	Process struct {
		Frames     int
		SampleRate float64
		SteadyTime int64 // sample position of the first frame of the block
		In         AudioBuffer
		Out        AudioBuffer
		Events     []timeline.Event

		emitted []timeline.Event
		dropped int
	}

	ProcessStatus int
)

const (
	// StatusContinue means the unit produced a valid block.
	StatusContinue ProcessStatus = iota
	// StatusSleep means the unit produced silence and could be skipped until
	// it receives new events.
	StatusSleep
	// StatusError means the unit failed to process the block.
	StatusError
)

// NewProcess returns a Process that can hold up to maxEvents input events and
// maxEvents emitted events without allocating.
func NewProcess(maxEvents int) *Process {
	return &Process{
		Events:  make([]timeline.Event, 0, maxEvents),
		emitted: make([]timeline.Event, 0, maxEvents),
	}
}

// Emit queues an event produced by the unit for the control thread. The
// event's Time is the frame offset in the current block. Returns false if
// the emit buffer is full and the event was dropped.
func (p *Process) Emit(ev timeline.Event) bool {
	if len(p.emitted) == cap(p.emitted) {
		p.dropped++
		return false
	}
	p.emitted = append(p.emitted, ev)
	return true
}

// Emitted returns the events emitted during the current block.
func (p *Process) Emitted() []timeline.Event { return p.emitted }

// ResetEmitted forgets the emitted events and returns how many emits were
// dropped since the last reset.
func (p *Process) ResetEmitted() (dropped int) {
	dropped = p.dropped
	p.emitted = p.emitted[:0]
	p.dropped = 0
	return dropped
}

func (s ProcessStatus) String() string {
	switch s {
	case StatusContinue:
		return "continue"
	case StatusSleep:
		return "sleep"
	case StatusError:
		return "error"
	}
	return "unknown"
}
