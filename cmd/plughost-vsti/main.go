//go:build plugin

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"sync"

	"github.com/Xenakios/AudioPluginHost-II-sub001"
	"github.com/Xenakios/AudioPluginHost-II-sub001/grain"
	"github.com/Xenakios/AudioPluginHost-II-sub001/logging"
	"github.com/Xenakios/AudioPluginHost-II-sub001/pluginstate"
	"github.com/Xenakios/AudioPluginHost-II-sub001/timeline"
	"gitlab.com/gomidi/midi/v2"
	"pipelined.dev/audio/vst2"
)

const (
	pluginName = "Plughost Grains"
	version    = int32(100)
	maxFrames  = 512
	maxEvents  = 256
)

var pluginID = [4]byte{'P', 'h', 'G', 'r'}

// instrument adapts a grain instrument to the VST2 callbacks. process and
// receive run on the host's audio thread; everything else runs on the
// host's control threads.
type instrument struct {
	synth *grain.Instrument
	proc  *plughost.Process
	out   plughost.AudioBuffer

	mu         sync.Mutex // guards sampleRate and blockSize
	sampleRate float64
	blockSize  int
}

func newInstrument(h vst2.Host) *instrument {
	opts := grain.DefaultPoolOptions()
	p := &instrument{
		synth:      grain.NewInstrument(opts, grain.List{Params: grain.DefaultParams()}),
		proc:       plughost.NewProcess(maxEvents),
		out:        make(plughost.AudioBuffer, 0, opts.Channels),
		sampleRate: 44100,
		blockSize:  maxFrames,
	}
	if ti := h.GetTimeInfo(0); ti != nil && ti.SampleRate > 0 {
		p.sampleRate = ti.SampleRate
	}
	p.configure()
	return p
}

// configure activates the engine for the current settings. The audio thread
// picks the result up at its next block.
func (p *instrument) configure() {
	if err := p.synth.Configure(p.sampleRate, p.blockSize); err != nil {
		logging.ForService("vsti").Error("could not activate grain engine", "samplerate", p.sampleRate, "blocksize", p.blockSize, "error", err)
	}
}

func (p *instrument) setSampleRate(rate float32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sampleRate = float64(rate)
	p.configure()
}

func (p *instrument) setBlockSize(size int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.blockSize = max(size, 1)
	p.configure()
}

func (p *instrument) process(out vst2.FloatBuffer) {
	p.out = p.out[:0]
	for c := range cap(p.out) {
		p.out = append(p.out, out.Channel(c))
	}
	p.proc.Frames = out.Frames
	p.proc.Out = p.out
	p.synth.Process(p.proc)
	p.proc.SteadyTime += int64(out.Frames)
	p.proc.Events = p.proc.Events[:0]
}

func (p *instrument) receive(ev *vst2.MIDIEvent) {
	if len(p.proc.Events) == cap(p.proc.Events) {
		return
	}
	data := ev.Data
	p.proc.Events = append(p.proc.Events, timeline.FromMIDI(float64(ev.DeltaFrames), 0, midi.Message(data[:])))
}

func (p *instrument) chunk() []byte {
	var buf bytes.Buffer
	if err := pluginstate.Save(&buf, p.synth); err != nil {
		logging.ForService("vsti").Error("could not save state", "error", err)
		return nil
	}
	return buf.Bytes()
}

func (p *instrument) setChunk(data []byte) {
	if err := pluginstate.Load(bytes.NewReader(data), p.synth); err != nil {
		logging.ForService("vsti").Error("could not load state", "error", err)
	}
}

func init() {
	if dir, err := os.UserConfigDir(); err == nil {
		logging.Init(logging.Config{
			Level:      "info",
			File:       filepath.Join(dir, "Plughost", "plughost-vsti.log"),
			MaxSizeMB:  1,
			MaxBackups: 1,
		})
	}
	vst2.PluginAllocator = func(h vst2.Host) (vst2.Plugin, vst2.Dispatcher) {
		inst := newInstrument(h)
		return vst2.Plugin{
				UniqueID:         pluginID,
				Version:          version,
				InputChannels:    0,
				OutputChannels:   grain.DefaultPoolOptions().Channels,
				Name:             pluginName,
				Vendor:           "Xenakios/AudioPluginHost",
				Category:         vst2.PluginCategorySynth,
				Flags:            vst2.PluginIsSynth,
				ProcessFloatFunc: func(in, out vst2.FloatBuffer) { inst.process(out) },
			}, vst2.Dispatcher{
				CanDoFunc: func(pcds vst2.PluginCanDoString) vst2.CanDoResponse {
					switch pcds {
					case vst2.PluginCanReceiveEvents, vst2.PluginCanReceiveMIDIEvent, vst2.PluginCanReceiveTimeInfo:
						return vst2.YesCanDo
					}
					return vst2.NoCanDo
				},
				ProcessEventsFunc: func(ev *vst2.EventsPtr) {
					for i := 0; i < ev.NumEvents(); i++ {
						if v, ok := ev.Event(i).(*vst2.MIDIEvent); ok {
							inst.receive(v)
						}
					}
				},
				SetSampleRateFunc: inst.setSampleRate,
				SetBufferSizeFunc: inst.setBlockSize,
				CloseFunc: func() {
					inst.synth.Deactivate()
					logging.Close()
				},
				GetChunkFunc: func(isPreset bool) []byte { return inst.chunk() },
				SetChunkFunc: func(data []byte, isPreset bool) { inst.setChunk(data) },
			}
	}
}

func main() {}
