package grain

import (
	"fmt"
	"io"
	"sync"

	"github.com/Xenakios/AudioPluginHost-II-sub001"
	"github.com/Xenakios/AudioPluginHost-II-sub001/timeline"
)

const (
	// UnitID identifies grain units in state files.
	UnitID = "plughost.grain"

	allNotesOff = 123
)

// Unit hosts a Pool in a chain. Its state is the grain list in YAML form.
// A note-on event restarts the list from the beginning; a note choke or MIDI
// "all notes off" silences every voice and rewinds.
type Unit struct {
	opts PoolOptions

	mu   sync.Mutex
	list List
	pool *Pool
	last *Pool // pool of the most recent activation
}

var _ plughost.StatefulUnit = (*Unit)(nil)

// NewUnit returns a unit that will play list once activated. SampleRate and
// MaxFrames of opts are taken from the chain on activation.
func NewUnit(opts PoolOptions, list List) *Unit {
	return &Unit{opts: opts, list: list}
}

func (u *Unit) ID() string { return UnitID }

func (u *Unit) Channels() (inputs, outputs int) { return 0, u.opts.Channels }

func (u *Unit) Activate(sampleRate float64, maxFrames int) error {
	opts := u.opts
	opts.SampleRate, opts.MaxFrames = sampleRate, maxFrames
	pool, err := NewPool(opts)
	if err != nil {
		return err
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	if _, err := pool.Prepare(u.list.Events, u.list.Params); err != nil {
		return err
	}
	u.pool, u.last = pool, pool
	return nil
}

func (u *Unit) Deactivate() {
	u.mu.Lock()
	u.pool = nil
	u.mu.Unlock()
}

// Pool returns the active pool, or nil when the unit is not active.
func (u *Unit) Pool() *Pool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.pool
}

// Counts returns the grains triggered and missed during the current
// activation, or during the last one once deactivated.
func (u *Unit) Counts() (triggered, missed int64) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.last == nil {
		return 0, 0
	}
	return u.last.TriggeredGrains(), u.last.MissedGrains()
}

func (u *Unit) Process(p *plughost.Process) plughost.ProcessStatus {
	// pool only changes while the chain is stopped
	if u.pool == nil {
		p.Out.Clear()
		return plughost.StatusSleep
	}
	for _, e := range p.Events {
		switch e.Kind {
		case timeline.KindNoteOn:
			u.pool.Rewind()
		case timeline.KindNoteChoke:
			u.pool.Reset()
		case timeline.KindMIDI:
			if m, _ := e.MIDI(); m.Data[0]&0xF0 == 0xB0 && m.Data[1] == allNotesOff {
				u.pool.Reset()
			}
		}
	}
	u.pool.ProcessBlock(p.Out, p.Frames)
	return plughost.StatusContinue
}

// SetList replaces the grain list. If the unit is active, the list is staged
// on the pool and playback restarts from time 0 with it.
func (u *Unit) SetList(l List) (discarded int, err error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.list = l
	if u.pool == nil {
		return 0, nil
	}
	return u.pool.Prepare(l.Events, l.Params)
}

func (u *Unit) List() List {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.list
}

func (u *Unit) SaveState(w io.Writer) error {
	return u.List().Write(w)
}

func (u *Unit) LoadState(r io.Reader) error {
	l, err := ReadList(r)
	if err != nil {
		return fmt.Errorf("%w: %v", plughost.ErrProtocolViolation, err)
	}
	_, err = u.SetList(l)
	return err
}
