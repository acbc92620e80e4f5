package grain

import (
	"io"
	"sync"

	"github.com/Xenakios/AudioPluginHost-II-sub001"
)

// Instrument plays a grain list for hosts that drive the audio thread
// directly, without a chain. Configure and the state methods run on control
// threads. Process runs on the audio thread and only picks up units that
// were activated elsewhere, through a mailbox.
type Instrument struct {
	opts PoolOptions

	mu         sync.Mutex
	list       List
	unit       *Unit // most recent activation
	sampleRate float64
	maxFrames  int

	pending Mailbox[Unit]
	live    *Unit // audio thread only
}

var _ plughost.StatefulUnit = (*Instrument)(nil)

func NewInstrument(opts PoolOptions, list List) *Instrument {
	return &Instrument{opts: opts, list: list}
}

func (in *Instrument) ID() string { return UnitID }

func (in *Instrument) Channels() (inputs, outputs int) { return 0, in.opts.Channels }

// Configure activates a unit for sampleRate and maxFrames with the current
// list and hands it to the audio thread. Calling it again with the same
// values does nothing. The replaced unit is never deactivated, since the
// audio thread may still be inside it; it is left to the garbage collector.
func (in *Instrument) Configure(sampleRate float64, maxFrames int) error {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.unit != nil && sampleRate == in.sampleRate && maxFrames == in.maxFrames {
		return nil
	}
	u := NewUnit(in.opts, in.list)
	if err := u.Activate(sampleRate, maxFrames); err != nil {
		return err
	}
	in.unit, in.sampleRate, in.maxFrames = u, sampleRate, maxFrames
	in.pending.Publish(u)
	return nil
}

// Activate is Configure, so that an Instrument can also be hosted as a
// unit.
func (in *Instrument) Activate(sampleRate float64, maxFrames int) error {
	return in.Configure(sampleRate, maxFrames)
}

// Deactivate forgets the configured unit, so the next Configure activates
// a fresh one. The audio thread keeps the unit it has until then.
func (in *Instrument) Deactivate() {
	in.mu.Lock()
	in.unit = nil
	in.mu.Unlock()
}

// Unit returns the most recently configured unit, which may not have
// reached the audio thread yet. It is nil before the first Configure.
func (in *Instrument) Unit() *Unit {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.unit
}

// Process renders one block with the latest unit that reached the audio
// thread. Before the first Configure it outputs silence.
func (in *Instrument) Process(p *plughost.Process) plughost.ProcessStatus {
	if u := in.pending.Take(); u != nil {
		in.live = u
	}
	if in.live == nil {
		p.Out.Clear()
		return plughost.StatusSleep
	}
	return in.live.Process(p)
}

func (in *Instrument) SaveState(w io.Writer) error {
	in.mu.Lock()
	l := in.list
	in.mu.Unlock()
	return l.Write(w)
}

// LoadState replaces the list. A configured unit restarts from time 0 with
// it.
func (in *Instrument) LoadState(r io.Reader) error {
	l, err := ReadList(r)
	if err != nil {
		return plughost.ProtocolErrorf("grain list: %v", err)
	}
	in.mu.Lock()
	defer in.mu.Unlock()
	in.list = l
	if in.unit == nil {
		return nil
	}
	_, err = in.unit.SetList(l)
	return err
}
