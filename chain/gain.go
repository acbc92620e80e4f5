package chain

import (
	"math"

	"github.com/Xenakios/AudioPluginHost-II-sub001"
	"github.com/Xenakios/AudioPluginHost-II-sub001/timeline"
	"github.com/viterin/vek/vek32"
)

// Parameter ids understood by the chain's own gain stage.
const (
	GainParamID uint32 = 0
	MuteParamID uint32 = 1
)

// gainStage applies the chain's smoothed output gain. Gain and mute changes
// are scheduled on its own timeline; the main volume is set by commands.
type gainStage struct {
	timeline   *timeline.Timeline
	iter       *timeline.SampleIterator
	level      float32
	muted      bool
	mainVolume float32
	current    float32
	coef       float32
	ramp       []float32
}

func newGainStage() gainStage {
	return gainStage{timeline: timeline.New(), level: 1, mainVolume: 1, current: 1}
}

func (g *gainStage) reset(sampleRate float64, blockSize int, smoothing float64) {
	g.timeline.Sort()
	g.iter = g.timeline.NewSampleIterator(sampleRate)
	g.level, g.muted = 1, false
	g.current = g.target()
	g.coef = 1
	if smoothing > 0 {
		g.coef = float32(1 - math.Exp(-1/(smoothing*sampleRate)))
	}
	g.ramp = make([]float32, blockSize)
}

func (g *gainStage) target() float32 {
	if g.muted {
		return 0
	}
	return g.level * g.mainVolume
}

func (g *gainStage) apply(e timeline.Event) {
	p, ok := e.Param()
	if !ok {
		return
	}
	switch p.ParamID {
	case GainParamID:
		g.level = float32(p.Value)
	case MuteParamID:
		g.muted = p.Value >= 0.5
	}
}

// process ramps the gain sample by sample towards its target and multiplies
// every channel of out with the ramp.
func (g *gainStage) process(out plughost.AudioBuffer, frames int, blockStart int64) {
	events := g.iter.ReadNext(frames)
	next := 0
	ramp := g.ramp[:frames]
	for i := range ramp {
		for next < len(events) && g.iter.SampleOf(events[next])-blockStart <= int64(i) {
			g.apply(events[next])
			next++
		}
		g.current += g.coef * (g.target() - g.current)
		ramp[i] = g.current
	}
	for _, ch := range out {
		vek32.Mul_Inplace(ch[:frames], ramp)
	}
}
