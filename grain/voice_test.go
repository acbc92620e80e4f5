package grain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCubicEnvelope(t *testing.T) {
	var e Envelope
	e.start(EnvCubic, 0.25, 100, 440, 48000)
	assert.Zero(t, e.At(0))
	assert.Equal(t, float32(1), e.At(25))
	assert.Zero(t, e.At(100))
	assert.Zero(t, e.At(-1))
	for n := 1; n <= 25; n++ {
		require.Greater(t, e.At(n), e.At(n-1), "attack rises")
	}
	for n := 26; n < 100; n++ {
		require.Less(t, e.At(n), e.At(n-1), "release falls")
	}
	dst := make([]float32, 120)
	e.Render(dst, 0)
	for n, v := range dst {
		require.Equal(t, e.At(n), v)
	}
}

func TestSineEnvelope(t *testing.T) {
	var e Envelope
	e.start(EnvSine, 2, 1000, 10, 1000)
	// 2 * 10 Hz at 1 kHz: one period every 50 samples
	assert.Zero(t, e.At(0))
	assert.InDelta(t, 1, e.At(25), 1e-6)
	assert.InDelta(t, 0, e.At(50), 1e-6)
	dst := make([]float32, 10)
	e.Render(dst, 995)
	assert.Equal(t, make([]float32, 5), dst[5:])
}

func TestSpatialGainsHaveUnitPower(t *testing.T) {
	for _, channels := range []int{1, 2, 3, 4, 8, MaxChannels} {
		for _, az := range []float64{-math.Pi, -1, 0, 0.5, 2} {
			for _, el := range []float64{0, 0.7, math.Pi / 2} {
				g := spatialGains(channels, az, el)
				var power float64
				for c, v := range g {
					if c >= channels {
						require.Zero(t, v)
					}
					power += float64(v * v)
				}
				require.InDelta(t, 1, power, 1e-5, "channels %d azimuth %v elevation %v", channels, az, el)
			}
		}
	}
	g := spatialGains(2, -math.Pi/2, 0)
	assert.InDelta(t, 1, g[0], 1e-6)
	assert.InDelta(t, 0, g[1], 1e-6)

	g = spatialGains(4, 0, 0)
	assert.Greater(t, g[0], g[1])
	assert.Greater(t, g[1], g[2])
	g = spatialGains(4, 0, math.Pi/2)
	assert.InDelta(t, g[0], g[2], 1e-6, "at the zenith every speaker gets the same")
}

func TestCatalogFilters(t *testing.T) {
	run := func(m FilterModel, in func(n int) float64) float64 {
		var f svf
		defaultCatalog.setup(&f, FilterSettings{Model: m, Cutoff: 1000, Resonance: 0.2}, 48000)
		var y float64
		for n := range 20000 {
			y = f.tick(in(n))
		}
		return y
	}
	dc := func(int) float64 { return 1 }
	nyquist := func(n int) float64 { return float64(1 - 2*(n%2)) }
	assert.InDelta(t, 1, run(FilterLowpass, dc), 1e-6)
	assert.InDelta(t, 0, run(FilterHighpass, dc), 1e-6)
	assert.InDelta(t, 0, run(FilterBandpass, dc), 1e-6)
	assert.InDelta(t, 1, run(FilterNone, dc), 1e-9)
	assert.InDelta(t, 0, run(FilterLowpass, nyquist), 0.01)
	assert.InDelta(t, 1, math.Abs(run(FilterHighpass, nyquist)), 0.01)
	assert.True(t, defaultCatalog.Has(FilterAllpass))
	assert.False(t, defaultCatalog.Has(numFilterModels))
}

func TestOscillatorsAreBounded(t *testing.T) {
	buf := make([]float32, 4800)
	for kind := OscSine; kind < numOscillators; kind++ {
		var o Oscillator
		o.start(kind, 1234.5, 3, 48000, 42)
		o.Render(buf)
		var sum float64
		for _, v := range buf {
			require.LessOrEqual(t, math.Abs(float64(v)), 1.3, kind.String())
			sum += math.Abs(float64(v))
		}
		assert.Positive(t, sum, kind.String())
	}
	var o Oscillator
	o.start(OscillatorKind(99), 100, 0, 48000, 1)
	assert.Equal(t, OscSine, o.Kind(), "unknown kinds fall back to sine")
}

func TestMailboxKeepsLatest(t *testing.T) {
	var m Mailbox[int]
	assert.Nil(t, m.Take())
	a, b := 1, 2
	m.Publish(&a)
	m.Publish(&b)
	got := m.Take()
	require.NotNil(t, got)
	assert.Equal(t, 2, *got)
	assert.Nil(t, m.Take())
}
