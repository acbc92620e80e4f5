package grain

import (
	"math"
)

// FilterModel selects one of the responses of the state variable filter.
type FilterModel int

const (
	FilterNone FilterModel = iota
	FilterLowpass
	FilterBandpass
	FilterHighpass
	FilterNotch
	FilterPeak
	FilterAllpass
	numFilterModels
)

var filterNames = []string{"none", "lowpass", "bandpass", "highpass", "notch", "peak", "allpass"}

func (m FilterModel) String() string               { return enumName(filterNames, int(m)) }
func (m FilterModel) MarshalText() ([]byte, error) { return marshalEnum(filterNames, int(m)) }

func (m *FilterModel) UnmarshalText(b []byte) error {
	return unmarshalEnum(filterNames, "filter model", b, (*int)(m))
}

type (
	// Catalog maps filter models to the output mix of a state variable
	// filter. It is built once and never modified, so every voice can read
	// it without synchronization.
	Catalog struct {
		mixes [numFilterModels]filterMix
	}

	// filterMix combines the input (m0), band (m1 + m1k*k) and low (m2)
	// outputs of the filter, k being the damping.
	filterMix struct {
		m0, m1, m1k, m2 float64
	}

	// svf is a trapezoidal state variable filter.
	svf struct {
		a1, a2, a3 float64
		ic1, ic2   float64
		m0, m1, m2 float64
	}
)

var defaultCatalog = NewCatalog()

func NewCatalog() *Catalog {
	c := &Catalog{}
	c.mixes[FilterNone] = filterMix{m0: 1}
	c.mixes[FilterLowpass] = filterMix{m2: 1}
	c.mixes[FilterBandpass] = filterMix{m1: 1}
	c.mixes[FilterHighpass] = filterMix{m0: 1, m1k: -1, m2: -1}
	c.mixes[FilterNotch] = filterMix{m0: 1, m1k: -1}
	c.mixes[FilterPeak] = filterMix{m0: 1, m1k: -1, m2: -2}
	c.mixes[FilterAllpass] = filterMix{m0: 1, m1k: -2}
	return c
}

// Has reports whether the catalog knows the model.
func (c *Catalog) Has(m FilterModel) bool { return m >= 0 && m < numFilterModels }

// setup configures f for the given model, resetting its state. Cutoff is
// clamped below Nyquist and resonance to [0, 0.98].
func (c *Catalog) setup(f *svf, s FilterSettings, sampleRate float64) {
	mix := c.mixes[FilterNone]
	if c.Has(s.Model) {
		mix = c.mixes[s.Model]
	}
	cutoff := min(max(s.Cutoff, 10), 0.49*sampleRate)
	res := min(max(s.Resonance, 0), 0.98)
	g := math.Tan(math.Pi * cutoff / sampleRate)
	k := 2 - 2*res
	f.a1 = 1 / (1 + g*(g+k))
	f.a2 = g * f.a1
	f.a3 = g * f.a2
	f.ic1, f.ic2 = 0, 0
	f.m0, f.m1, f.m2 = mix.m0, mix.m1+mix.m1k*k, mix.m2
}

func (f *svf) tick(v0 float64) float64 {
	v3 := v0 - f.ic2
	v1 := f.a1*f.ic1 + f.a2*v3
	v2 := f.ic2 + f.a2*f.ic1 + f.a3*v3
	f.ic1 = 2*v1 - f.ic1
	f.ic2 = 2*v2 - f.ic2
	return f.m0*v0 + f.m1*v1 + f.m2*v2
}
