package chain_test

import (
	"bytes"
	"io"
	"sync"

	"github.com/Xenakios/AudioPluginHost-II-sub001"
	"github.com/Xenakios/AudioPluginHost-II-sub001/timeline"
)

// scaleUnit multiplies its input by factor and adds offset.
type scaleUnit struct {
	id             string
	factor, offset float32
	channels       int
	active         bool
	failAt         int // block number at which Process reports an error, 0 for never
	panicAt        int
	blocks         int

	mu     sync.Mutex
	events []timeline.Event
	emit   bool
	state  []byte
}

func newScale(id string, factor, offset float32) *scaleUnit {
	return &scaleUnit{id: id, factor: factor, offset: offset, channels: 2}
}

func (u *scaleUnit) ID() string                      { return u.id }
func (u *scaleUnit) Channels() (inputs, outputs int) { return u.channels, u.channels }

func (u *scaleUnit) Activate(sampleRate float64, maxFrames int) error {
	u.active = true
	u.blocks = 0
	return nil
}

func (u *scaleUnit) Deactivate() { u.active = false }

func (u *scaleUnit) Process(p *plughost.Process) plughost.ProcessStatus {
	u.blocks++
	if u.blocks == u.panicAt {
		panic("boom")
	}
	if u.blocks == u.failAt {
		return plughost.StatusError
	}
	for c, ch := range p.Out {
		for i := range ch {
			ch[i] = p.In[c][i]*u.factor + u.offset
		}
	}
	u.mu.Lock()
	for _, e := range p.Events {
		u.events = append(u.events, e.WithTime(e.Time+float64(p.SteadyTime)))
	}
	u.mu.Unlock()
	if u.emit {
		for _, e := range p.Events {
			p.Emit(e)
		}
	}
	return plughost.StatusContinue
}

func (u *scaleUnit) receivedEvents() []timeline.Event {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]timeline.Event(nil), u.events...)
}

func (u *scaleUnit) SaveState(w io.Writer) error {
	_, err := w.Write(u.state)
	return err
}

func (u *scaleUnit) LoadState(r io.Reader) error {
	var b bytes.Buffer
	if _, err := b.ReadFrom(r); err != nil {
		return err
	}
	u.state = b.Bytes()
	return nil
}

// ramp fills a buffer with a distinct value per sample.
func ramp(channels, frames int) plughost.AudioBuffer {
	b := plughost.MakeAudioBuffer(channels, frames)
	for c, ch := range b {
		for i := range ch {
			ch[i] = float32(i)/float32(frames) - 0.5 + float32(c)*0.01
		}
	}
	return b
}
