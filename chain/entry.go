package chain

import (
	"github.com/Xenakios/AudioPluginHost-II-sub001"
	"github.com/Xenakios/AudioPluginHost-II-sub001/timeline"
	"github.com/google/uuid"
)

// Entry is one hosted unit in a chain, with its own timeline and its
// message queues to and from the control thread. The chain owns its
// entries; they are created by Engine.AddUnit and dropped by
// Engine.RemoveUnit.
type Entry struct {
	id       uuid.UUID
	unit     plughost.ProcessingUnit
	timeline *timeline.Timeline
	iter     *timeline.SampleIterator
	inbound  chan Message
	outbound chan Message

	proc    *plughost.Process
	out     plughost.AudioBuffer
	inView  plughost.AudioBuffer
	outView plughost.AudioBuffer
}

func newEntry(unit plughost.ProcessingUnit, queueSize int) *Entry {
	return &Entry{
		id:       uuid.New(),
		unit:     unit,
		timeline: timeline.New(),
		inbound:  make(chan Message, queueSize),
		outbound: make(chan Message, queueSize),
	}
}

func (e *Entry) ID() uuid.UUID { return e.id }

func (e *Entry) Unit() plughost.ProcessingUnit { return e.unit }

// Timeline returns the events scheduled for this unit. It may only be
// modified while the engine is not active.
func (e *Entry) Timeline() *timeline.Timeline { return e.timeline }

// Outbound delivers the events the unit emitted during processing. Event
// times are frame offsets within the emitting block; Message.Position is
// the absolute sample position.
func (e *Entry) Outbound() <-chan Message { return e.outbound }

func (e *Entry) prepare(sampleRate float64, channels, blockSize, maxEvents int) {
	e.timeline.Sort()
	e.iter = e.timeline.NewSampleIterator(sampleRate)
	e.proc = plughost.NewProcess(maxEvents)
	e.proc.SampleRate = sampleRate
	e.out = plughost.MakeAudioBuffer(channels, blockSize)
	e.inView = make(plughost.AudioBuffer, 0, channels)
	e.outView = make(plughost.AudioBuffer, 0, channels)
}
