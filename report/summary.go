package report

import (
	"cmp"
	"math"
	"slices"

	"github.com/Xenakios/AudioPluginHost-II-sub001"
	"github.com/Xenakios/AudioPluginHost-II-sub001/grain"
	"github.com/Xenakios/AudioPluginHost-II-sub001/timeline"
	"github.com/viterin/vek/vek32"
)

// barWidth is the length of the longest histogram bar.
const barWidth = 40

type (
	KindCount struct {
		Kind  string
		Count int
		Bar   int
	}

	TimelineSummary struct {
		Events     int
		Start, End float64
		Kinds      []KindCount
	}

	GrainSummary struct {
		Events      int
		Discarded   int // grains a pool would drop before playback
		Start, End  float64
		Params      grain.GlobalParams
		Oscillators []KindCount
		Envelopes   []KindCount
		MaxOverlap  int // most grains sounding at once, release tails included
		Voices      int // voices of the pool that will play the list, 0 if unknown
	}

	ChannelLevel struct {
		Peak, RMS float32
	}

	AudioSummary struct {
		Channels, Frames int
		SampleRate       float64
		Duration         float64
		PerChannel       []ChannelLevel
		Peak             float32
	}
)

func SummarizeTimeline(t *timeline.Timeline) TimelineSummary {
	t.Sort()
	evs := t.Events()
	s := TimelineSummary{Events: len(evs)}
	if len(evs) == 0 {
		return s
	}
	s.Start, s.End = evs[0].Time, t.MaximumEventTime()
	counts := map[timeline.Kind]int{}
	for _, e := range evs {
		counts[e.Kind]++
	}
	for _, k := range timeline.Kinds {
		if n := counts[k]; n > 0 {
			s.Kinds = append(s.Kinds, KindCount{Kind: k.String(), Count: n})
		}
	}
	scaleBars(s.Kinds)
	return s
}

// SummarizeGrains describes a grain list as a pool with the given number of
// voices would see it.
func SummarizeGrains(l grain.List, voices int) GrainSummary {
	s := GrainSummary{Params: l.Params, Voices: voices}
	var kept []grain.Event
	for _, e := range l.Events {
		if e.Time < 0 || e.Duration <= 0 || (l.Params.MaxTime > 0 && e.End() > l.Params.MaxTime) {
			s.Discarded++
			continue
		}
		kept = append(kept, e)
	}
	s.Events = len(kept)
	if len(kept) == 0 {
		return s
	}
	s.Start, s.End = math.Inf(1), math.Inf(-1)
	oscs := make([]int, len(grainOscillators))
	envs := make([]int, len(grainEnvelopes))
	type edge struct {
		t     float64
		delta int
	}
	edges := make([]edge, 0, 2*len(kept))
	for _, e := range kept {
		s.Start = min(s.Start, e.Time)
		s.End = max(s.End, e.End())
		if i := slices.Index(grainOscillators, e.Oscillator); i >= 0 {
			oscs[i]++
		}
		if i := slices.Index(grainEnvelopes, e.Envelope); i >= 0 {
			envs[i]++
		}
		edges = append(edges, edge{e.Time, 1}, edge{e.End() + l.Params.ReleaseTail, -1})
	}
	// ends sort before starts at the same time
	slices.SortFunc(edges, func(a, b edge) int {
		if c := cmp.Compare(a.t, b.t); c != 0 {
			return c
		}
		return a.delta - b.delta
	})
	sounding := 0
	for _, e := range edges {
		sounding += e.delta
		s.MaxOverlap = max(s.MaxOverlap, sounding)
	}
	for i, n := range oscs {
		if n > 0 {
			s.Oscillators = append(s.Oscillators, KindCount{Kind: grainOscillators[i].String(), Count: n})
		}
	}
	for i, n := range envs {
		if n > 0 {
			s.Envelopes = append(s.Envelopes, KindCount{Kind: grainEnvelopes[i].String(), Count: n})
		}
	}
	scaleBars(s.Oscillators)
	scaleBars(s.Envelopes)
	return s
}

var (
	grainOscillators = []grain.OscillatorKind{grain.OscSine, grain.OscSaw, grain.OscSquare, grain.OscTriangle, grain.OscNoise, grain.OscFM}
	grainEnvelopes   = []grain.EnvelopeKind{grain.EnvCubic, grain.EnvSine}
)

func scaleBars(counts []KindCount) {
	most := 0
	for _, c := range counts {
		most = max(most, c.Count)
	}
	for i := range counts {
		counts[i].Bar = (counts[i].Count*barWidth + most - 1) / most
	}
}

// Analyze measures the peak and RMS level of every channel of a rendered
// buffer.
func Analyze(buf plughost.AudioBuffer, sampleRate float64) AudioSummary {
	s := AudioSummary{
		Channels:   buf.Channels(),
		Frames:     buf.Frames(),
		SampleRate: sampleRate,
		PerChannel: make([]ChannelLevel, buf.Channels()),
	}
	if sampleRate > 0 {
		s.Duration = float64(s.Frames) / sampleRate
	}
	if s.Frames == 0 {
		return s
	}
	abs := make([]float32, s.Frames)
	for c, ch := range buf {
		vek32.Abs_Into(abs, ch)
		lvl := ChannelLevel{
			Peak: vek32.Max(abs),
			RMS:  float32(math.Sqrt(float64(vek32.Dot(ch, ch)) / float64(len(ch)))),
		}
		s.PerChannel[c] = lvl
		s.Peak = max(s.Peak, lvl.Peak)
	}
	return s
}
