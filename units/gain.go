package units

import (
	"math"

	"github.com/Xenakios/AudioPluginHost-II-sub001"
	"github.com/Xenakios/AudioPluginHost-II-sub001/timeline"
	"github.com/viterin/vek/vek32"
)

const (
	GainID = "plughost.gain"

	// ParamLevel is emitted by Gain once per block with the peak level of
	// its output, in decibels.
	ParamLevel uint32 = 1
)

// Gain scales its input by a gain set with ParamVolume events. Changes are
// smoothed with a one-pole filter. After every block it emits the output
// peak level.
type Gain struct {
	channels  int
	gain      float64
	target    float64
	smoothing float64 // seconds
	coef      float64
	ramp      []float32
	abs       []float32
}

func NewGain(channels int, gain, smoothing float64) *Gain {
	return &Gain{channels: max(channels, 1), gain: gain, target: gain, smoothing: smoothing}
}

func (g *Gain) ID() string { return GainID }

func (g *Gain) Channels() (inputs, outputs int) { return g.channels, g.channels }

func (g *Gain) Activate(sampleRate float64, maxFrames int) error {
	g.coef = 1
	if g.smoothing > 0 {
		g.coef = 1 - math.Exp(-1/(g.smoothing*sampleRate))
	}
	g.gain = g.target
	g.ramp = make([]float32, maxFrames)
	g.abs = make([]float32, maxFrames)
	return nil
}

func (g *Gain) Deactivate() {}

func (g *Gain) Process(p *plughost.Process) plughost.ProcessStatus {
	ramp := g.ramp[:p.Frames]
	next := 0
	for i := range ramp {
		for next < len(p.Events) && p.Events[next].Time <= float64(i) {
			if par, ok := p.Events[next].Param(); ok && par.ParamID == ParamVolume {
				g.target = max(par.Value, 0)
			}
			next++
		}
		g.gain += g.coef * (g.target - g.gain)
		ramp[i] = float32(g.gain)
	}
	var peak float32
	for c, ch := range p.Out {
		if c < len(p.In) {
			vek32.Mul_Into(ch, p.In[c], ramp)
		} else {
			clear(ch)
		}
		abs := vek32.Abs_Into(g.abs[:p.Frames], ch)
		if len(abs) > 0 {
			peak = max(peak, vek32.Max(abs))
		}
	}
	db := -120.0
	if peak > 0 {
		db = max(20*math.Log10(float64(peak)), db)
	}
	p.Emit(timeline.NewParamValue(float64(p.Frames-1), ParamLevel, db, timeline.AnyNote))
	return plughost.StatusContinue
}
