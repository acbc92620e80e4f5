package grain_test

import (
	"math"
	"testing"

	"github.com/Xenakios/AudioPluginHost-II-sub001"
	"github.com/Xenakios/AudioPluginHost-II-sub001/grain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPool(t *testing.T, voices, channels int) *grain.Pool {
	t.Helper()
	p, err := grain.NewPool(grain.PoolOptions{Voices: voices, Channels: channels, SampleRate: 1000, MaxFrames: 8})
	require.NoError(t, err)
	return p
}

func sineGrain(at, dur float64) grain.Event {
	return grain.Event{
		Time:      at,
		Duration:  dur,
		Frequency: 110,
		Envelope:  grain.EnvCubic,
		Shape:     0.3,
		Filters:   [2]grain.FilterSettings{{Model: grain.FilterNone}, {Model: grain.FilterNone}},
		Volume:    1,
	}
}

func TestVoiceStealingIsNotAllowed(t *testing.T) {
	p := newPool(t, 2, 2)
	_, err := p.Prepare([]grain.Event{sineGrain(0, 1), sineGrain(0, 1), sineGrain(0, 1)}, grain.DefaultParams())
	require.NoError(t, err)
	p.ProcessBlock(plughost.MakeAudioBuffer(2, 8), 8)
	assert.Equal(t, 2, p.ActiveVoices())
	assert.Equal(t, int64(1), p.MissedGrains())
	assert.Equal(t, int64(2), p.TriggeredGrains())
}

func TestOverflowDoesNotDisturbActiveVoices(t *testing.T) {
	base := []grain.Event{sineGrain(0, 0.2), sineGrain(0.004, 0.2)}
	crowded := append([]grain.Event{}, base...)
	for range 5 {
		g := sineGrain(0.01, 0.1)
		g.Oscillator = grain.OscNoise
		crowded = append(crowded, g)
	}
	render := func(events []grain.Event) (plughost.AudioBuffer, *grain.Pool) {
		p := newPool(t, 2, 2)
		_, err := p.Prepare(events, grain.DefaultParams())
		require.NoError(t, err)
		out := plughost.MakeAudioBuffer(2, 64)
		p.ProcessBlock(out, 64)
		return out, p
	}
	want, _ := render(base)
	got, p := render(crowded)
	assert.Equal(t, want, got)
	assert.Equal(t, int64(5), p.MissedGrains())
}

func TestSwapRestartsFromZero(t *testing.T) {
	p := newPool(t, 4, 1)
	_, err := p.Prepare([]grain.Event{sineGrain(0.05, 0.01)}, grain.DefaultParams())
	require.NoError(t, err)
	out := plughost.MakeAudioBuffer(1, 8)
	for range 4 {
		p.ProcessBlock(out, 8)
	}
	assert.Equal(t, int64(32), p.Playhead())
	assert.Zero(t, p.TriggeredGrains())

	// only the latest of two staged lists is picked up
	_, err = p.Prepare([]grain.Event{sineGrain(0, 0.01), sineGrain(0, 0.01)}, grain.DefaultParams())
	require.NoError(t, err)
	_, err = p.Prepare([]grain.Event{sineGrain(0.02, 0.01)}, grain.DefaultParams())
	require.NoError(t, err)
	p.ProcessBlock(out, 8)
	assert.Equal(t, int64(8), p.Playhead(), "a swap restarts playback at 0")
	assert.Zero(t, p.TriggeredGrains())
	for range 20 {
		p.ProcessBlock(out, 8)
	}
	assert.Equal(t, int64(1), p.TriggeredGrains(), "grains of the replaced list never play")
}

func TestPrepareFiltersAndSorts(t *testing.T) {
	p := newPool(t, 8, 1)
	params := grain.DefaultParams()
	params.MaxTime = 1
	discarded, err := p.Prepare([]grain.Event{
		sineGrain(0.3, 0.1),
		sineGrain(-0.1, 0.05), // before 0
		sineGrain(0.95, 0.1),  // ends after MaxTime
		sineGrain(0.5, 0),     // empty
		sineGrain(0.1, 0.1),
	}, params)
	require.NoError(t, err)
	assert.Equal(t, 3, discarded)

	out := plughost.MakeAudioBuffer(1, 8)
	for p.Playhead() < 200 {
		p.ProcessBlock(out, 8)
	}
	assert.Equal(t, int64(1), p.TriggeredGrains(), "the grain at 0.1 plays before the one at 0.3")
	for p.Playhead() < 400 {
		p.ProcessBlock(out, 8)
	}
	assert.Equal(t, int64(2), p.TriggeredGrains())

	_, err = p.Prepare(nil, grain.GlobalParams{ReleaseTail: -1})
	assert.ErrorIs(t, err, plughost.ErrConfiguration)
}

func TestGrainStartsSampleAccurately(t *testing.T) {
	p := newPool(t, 1, 1)
	g := sineGrain(0.005, 0.05)
	g.Oscillator = grain.OscSaw
	_, err := p.Prepare([]grain.Event{g}, grain.DefaultParams())
	require.NoError(t, err)
	out := plughost.MakeAudioBuffer(1, 16)
	p.ProcessBlock(out, 16)
	for i := 0; i <= 5; i++ {
		assert.Zero(t, out[0][i], "sample %d", i)
	}
	assert.NotZero(t, out[0][6]+out[0][7]+out[0][8])
}

func TestVoiceEndsAfterReleaseTail(t *testing.T) {
	p := newPool(t, 1, 1)
	params := grain.DefaultParams()
	params.ReleaseTail = 0.005
	_, err := p.Prepare([]grain.Event{sineGrain(0, 0.01)}, params)
	require.NoError(t, err)
	out := plughost.MakeAudioBuffer(1, 8)
	p.ProcessBlock(out, 8)
	assert.Equal(t, 1, p.ActiveVoices())
	p.ProcessBlock(out, 8)
	assert.Equal(t, 0, p.ActiveVoices(), "10 samples of grain and 5 of tail fit in 16")
	p.ProcessBlock(out, 8)
	assert.Equal(t, make([]float32, 8), out[0])
}

func TestMixIsScaledByActiveVoices(t *testing.T) {
	render := func(n int) []float32 {
		p, err := grain.NewPool(grain.PoolOptions{Voices: 8, Channels: 1, SampleRate: 1000, MaxFrames: 32})
		require.NoError(t, err)
		events := make([]grain.Event, n)
		for i := range events {
			events[i] = sineGrain(0, 0.1)
		}
		_, err = p.Prepare(events, grain.DefaultParams())
		require.NoError(t, err)
		out := plughost.MakeAudioBuffer(1, 32)
		p.ProcessBlock(out, 32)
		return out[0]
	}
	one, four := render(1), render(4)
	for i := range one {
		assert.InDelta(t, 2*one[i], four[i], 1e-5, "four equal voices sum to 4x and scale by 1/2")
	}
}

func TestResetSilencesVoices(t *testing.T) {
	p := newPool(t, 2, 1)
	_, err := p.Prepare([]grain.Event{sineGrain(0, 1)}, grain.DefaultParams())
	require.NoError(t, err)
	out := plughost.MakeAudioBuffer(1, 8)
	p.ProcessBlock(out, 8)
	require.Equal(t, 1, p.ActiveVoices())
	p.Reset()
	p.ProcessBlock(out, 8)
	assert.Equal(t, 1, p.ActiveVoices(), "the list rewinds, so its first grain starts again")
	assert.Equal(t, int64(2), p.TriggeredGrains())
	assert.Equal(t, int64(8), p.Playhead())
}

func TestLongBlocksAndExtraChannels(t *testing.T) {
	p := newPool(t, 2, 2)
	_, err := p.Prepare([]grain.Event{sineGrain(0.02, 0.02)}, grain.DefaultParams())
	require.NoError(t, err)
	out := plughost.MakeAudioBuffer(3, 50)
	out[2][3] = 1
	p.ProcessBlock(out, 50)
	assert.Equal(t, int64(50), p.Playhead())
	assert.Zero(t, out[2][3])
	var energy float64
	for _, v := range out[0][20:40] {
		energy += float64(v * v)
	}
	assert.Positive(t, energy)
}

func TestNewPoolValidates(t *testing.T) {
	for name, opts := range map[string]grain.PoolOptions{
		"no voices":     {Voices: 0, Channels: 2, SampleRate: 48000, MaxFrames: 64},
		"many channels": {Voices: 1, Channels: grain.MaxChannels + 1, SampleRate: 48000, MaxFrames: 64},
		"no rate":       {Voices: 1, Channels: 2, MaxFrames: 64},
		"no frames":     {Voices: 1, Channels: 2, SampleRate: 48000},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := grain.NewPool(opts)
			assert.ErrorIs(t, err, plughost.ErrConfiguration)
		})
	}
	_, err := grain.NewPool(grain.DefaultPoolOptions())
	assert.NoError(t, err)
}

func TestEveryVoiceKindStaysBounded(t *testing.T) {
	p, err := grain.NewPool(grain.PoolOptions{Voices: 32, Channels: 4, SampleRate: 48000, MaxFrames: 256})
	require.NoError(t, err)
	var events []grain.Event
	for osc := grain.OscSine; osc <= grain.OscFM; osc++ {
		for _, env := range []grain.EnvelopeKind{grain.EnvCubic, grain.EnvSine} {
			for _, routing := range []grain.Routing{grain.Series, grain.Parallel} {
				events = append(events, grain.Event{
					Duration:   0.02,
					Frequency:  440,
					Oscillator: osc,
					OscParam:   2,
					Envelope:   env,
					Shape:      3,
					Filters: [2]grain.FilterSettings{
						{Model: grain.FilterLowpass, Cutoff: 2000, Resonance: 0.9},
						{Model: grain.FilterPeak, Cutoff: 800, Resonance: 0.5},
					},
					Routing:   routing,
					Feedback:  0.9,
					Azimuth:   float64(osc),
					Elevation: 0.3,
					Volume:    1,
				})
			}
		}
	}
	_, err = p.Prepare(events, grain.DefaultParams())
	require.NoError(t, err)
	// every voice is clipped to 1 and the mix is scaled by 1/sqrt(voices)
	bound := math.Sqrt(float64(len(events))) + 1e-3
	out := plughost.MakeAudioBuffer(4, 256)
	for range 8 {
		p.ProcessBlock(out, 256)
		for _, ch := range out {
			for _, v := range ch {
				require.False(t, math.IsNaN(float64(v)))
				require.LessOrEqual(t, math.Abs(float64(v)), bound)
			}
		}
	}
	assert.Zero(t, p.MissedGrains())
}
