package chain

import (
	"cmp"
	"fmt"
	"math"
	"slices"

	"github.com/Xenakios/AudioPluginHost-II-sub001"
	"github.com/Xenakios/AudioPluginHost-II-sub001/timeline"
)

// allNotesOff is the MIDI controller number sent on every channel by
// CommandPanic.
const allNotesOff = 123

// ProcessAudio renders one host block into out, reading in as the input of
// the first unit. It is called on the audio thread and never blocks on the
// control thread, allocates or logs. The command and message queues are
// drained once per call. Blocks longer than the activated block size are
// then processed in chunks.
//
// It returns StatusSleep when the engine is not running and StatusError when
// a unit failed during an offline render.
func (e *Engine) ProcessAudio(in, out plughost.AudioBuffer) plughost.ProcessStatus {
	e.mu.Lock()
	if e.state == NeedsStopping {
		e.state = Idle
		e.mu.Unlock()
		out.Clear()
		TrySend(e.stopped, struct{}{})
		return plughost.StatusSleep
	}
	if e.suspended || e.state == Idle {
		e.mu.Unlock()
		out.Clear()
		return plughost.StatusSleep
	}
	if e.state == NeedsStarting {
		e.state = Started
	}
	e.inBlock = true
	e.mu.Unlock()
	defer e.leaveBlock()

	for c := e.channels; c < len(out); c++ {
		clear(out[c])
	}
	e.drainCommands()
	e.drainMessages(e.position)
	frames := out.Frames()
	for off := 0; off < frames; {
		n := min(frames-off, e.blockSize)
		chunkIn := sliceChannels(e.chunkIn, in, off, off+n, e.channels)
		chunkOut := sliceChannels(e.chunkOut, out, off, off+n, e.channels)
		if !e.processBlock(chunkIn, chunkOut, n) {
			for _, ch := range out {
				clear(ch[off:])
			}
			return plughost.StatusError
		}
		off += n
	}
	return plughost.StatusContinue
}

// leaveBlock marks the audio thread as outside the units and wakes a Stop
// waiting for it.
func (e *Engine) leaveBlock() {
	e.mu.Lock()
	e.inBlock = false
	TrySend(e.released, struct{}{})
	e.mu.Unlock()
}

func sliceChannels(dst, src plughost.AudioBuffer, from, to, channels int) plughost.AudioBuffer {
	dst = dst[:0]
	for c := 0; c < len(src) && c < channels; c++ {
		dst = append(dst, src[c][from:to])
	}
	return dst
}

// processBlock runs one chunk of at most blockSize frames through the chain.
// The queues have already been drained for the host block it belongs to.
// It returns false if a unit failed during an offline render.
func (e *Engine) processBlock(in, out plughost.AudioBuffer, frames int) bool {
	pos := e.position

	for c, ch := range e.inBuf {
		if c < len(in) {
			copy(ch[:frames], in[c])
		} else {
			clear(ch[:frames])
		}
	}
	src := e.inBuf
	for i, en := range e.entries {
		p := en.proc
		p.Frames = frames
		p.SteadyTime = pos
		p.In = src.Slice(en.inView, 0, frames)
		p.Out = en.out.Slice(en.outView, 0, frames)
		e.assembleEvents(i, en, pos, frames)
		if callUnit(en.unit, p) == plughost.StatusError {
			e.stats.unitErrors.Add(1)
			if e.offline {
				e.failed = i + 1
				p.ResetEmitted()
				return false
			}
		}
		for _, ev := range p.Emitted() {
			if !TrySend(en.outbound, Message{Event: ev, Position: pos + int64(ev.Time), target: i}) {
				e.stats.droppedOutbound.Add(1)
			}
		}
		if d := p.ResetEmitted(); d > 0 {
			e.stats.droppedOutbound.Add(int64(d))
		}
		src = en.out
	}
	for c, ch := range out {
		copy(ch, src[c][:frames])
	}
	e.panicking = false
	e.gain.process(out, frames, pos)

	e.position = pos + int64(frames)
	e.stats.position.Store(e.position)
	e.stats.blocks.Add(1)
	e.purgeDelayed(e.position)
	return true
}

// callUnit runs the unit and turns a panic into StatusError, so a broken
// unit cannot take the audio thread down with it.
func callUnit(u plughost.ProcessingUnit, p *plughost.Process) (status plughost.ProcessStatus) {
	defer func() {
		if r := recover(); r != nil {
			status = plughost.StatusError
		}
	}()
	return u.Process(p)
}

func (e *Engine) drainCommands() {
	for range cap(e.commands) {
		select {
		case c := <-e.commands:
			switch c.Kind {
			case CommandPanic:
				e.panicking = true
			case CommandMainVolume:
				e.gain.mainVolume = float32(max(c.Value, 0))
			}
		default:
			return
		}
	}
}

// drainMessages moves the messages posted since the last block into the
// delayed list, tagging each with the absolute sample position at which it
// is due.
func (e *Engine) drainMessages(pos int64) {
	for i, en := range e.entries {
	drain:
		for range cap(en.inbound) {
			select {
			case m := <-en.inbound:
				delay := m.Delay
				if !(delay > 0) {
					delay = 0
				}
				m.Position = pos + int64(math.Round(delay*e.sampleRate))
				m.target = i
				if len(e.delayed) == cap(e.delayed) {
					e.stats.droppedMessages.Add(1)
					continue
				}
				e.delayed = append(e.delayed, m)
			default:
				break drain
			}
		}
	}
}

// assembleEvents fills the unit's event list for the block: due delayed
// messages, the panic controllers and the unit's own timeline, all with
// block-relative frame times, stably sorted.
func (e *Engine) assembleEvents(i int, en *Entry, pos int64, frames int) {
	evs := en.proc.Events[:0]
	end := pos + int64(frames)
	for _, m := range e.delayed {
		if m.target == i && m.Position >= pos && m.Position < end {
			evs = e.appendEvent(evs, m.Event.WithTime(float64(m.Position-pos)))
		}
	}
	if e.panicking {
		for ch := range byte(16) {
			evs = e.appendEvent(evs, timeline.NewMIDI(0, 0, 0xB0|ch, allNotesOff, 0))
		}
	}
	for _, ev := range en.iter.ReadNext(frames) {
		evs = e.appendEvent(evs, ev.WithTime(float64(en.iter.SampleOf(ev)-pos)))
	}
	slices.SortStableFunc(evs, func(a, b timeline.Event) int { return cmp.Compare(a.Time, b.Time) })
	en.proc.Events = evs
}

func (e *Engine) appendEvent(evs []timeline.Event, ev timeline.Event) []timeline.Event {
	if len(evs) == cap(evs) {
		e.stats.droppedEvents.Add(1)
		return evs
	}
	return append(evs, ev)
}

func (e *Engine) purgeDelayed(end int64) {
	kept := e.delayed[:0]
	for _, m := range e.delayed {
		if m.Position >= end {
			kept = append(kept, m)
		}
	}
	clear(e.delayed[len(kept):])
	e.delayed = kept
}

// failedUnit describes the unit that aborted the last offline render.
func (e *Engine) failedUnit() string {
	if e.failed == 0 || e.failed > len(e.entries) {
		return "unknown unit"
	}
	return fmt.Sprintf("unit %d (%s)", e.failed-1, e.entries[e.failed-1].unit.ID())
}
