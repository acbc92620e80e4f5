package grain

import (
	"math"
)

// Oscillator is a tagged oscillator: the kind is chosen once when a grain
// starts, and Render switches on it once per block.
type Oscillator struct {
	kind   OscillatorKind
	phase  float64 // [0, 1)
	inc    float64
	param  float64
	mod    float64 // modulator phase for OscFM
	noise  uint32
	integr float64 // leaky integrator state for OscTriangle
}

const fmRatio = 2

func (o *Oscillator) start(kind OscillatorKind, frequency, param, sampleRate float64, seed uint32) {
	*o = Oscillator{kind: kind, inc: frequency / sampleRate, param: param, noise: seed | 1}
	if o.kind < 0 || o.kind >= numOscillators {
		o.kind = OscSine
	}
	switch o.kind {
	case OscSquare, OscTriangle:
		if param <= 0 || param >= 1 {
			o.param = 0.5
		}
		if o.kind == OscTriangle {
			o.integr = -1
		}
	}
}

func (o *Oscillator) Kind() OscillatorKind { return o.kind }

// Render writes len(dst) samples in [-1, 1].
func (o *Oscillator) Render(dst []float32) {
	switch o.kind {
	case OscSine:
		for i := range dst {
			dst[i] = float32(math.Sin(2 * math.Pi * o.phase))
			o.advance()
		}
	case OscSaw:
		for i := range dst {
			dst[i] = float32(2*o.phase - 1 - polyBLEP(o.phase, o.inc))
			o.advance()
		}
	case OscSquare, OscTriangle:
		for i := range dst {
			v := square(o.phase, o.param, o.inc)
			if o.kind == OscTriangle {
				// integrated square, rescaled to unit amplitude
				o.integr = o.integr*0.999 + 4*o.inc*v
				v = o.integr
			}
			dst[i] = float32(v)
			o.advance()
		}
	case OscNoise:
		for i := range dst {
			o.noise ^= o.noise << 13
			o.noise ^= o.noise >> 17
			o.noise ^= o.noise << 5
			dst[i] = float32(o.noise)/float32(math.MaxUint32)*2 - 1
		}
	case OscFM:
		for i := range dst {
			m := math.Sin(2 * math.Pi * o.mod)
			dst[i] = float32(math.Sin(2*math.Pi*o.phase + o.param*m))
			o.mod += o.inc * fmRatio
			o.mod -= math.Floor(o.mod)
			o.advance()
		}
	}
}

func (o *Oscillator) advance() {
	o.phase += o.inc
	if o.phase >= 1 {
		o.phase -= 1
	}
}

func square(phase, width, inc float64) float64 {
	v := -1.0
	if phase < width {
		v = 1
	}
	v += polyBLEP(phase, inc)
	p2 := phase - width
	if p2 < 0 {
		p2 += 1
	}
	return v - polyBLEP(p2, inc)
}

// polyBLEP returns the band-limiting correction for a unit step at phase 0.
func polyBLEP(t, dt float64) float64 {
	switch {
	case dt <= 0:
		return 0
	case t < dt:
		t /= dt
		return t + t - t*t - 1
	case t > 1-dt:
		t = (t - 1) / dt
		return t*t + t + t + 1
	}
	return 0
}
