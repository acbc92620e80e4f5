package grain

import (
	"math"
)

// Envelope is the amplitude of a grain as a function of the voice's sample
// counter alone. It is zero outside [0, length).
type Envelope struct {
	kind   EnvelopeKind
	length int
	peak   int     // EnvCubic: sample of the peak
	omega  float64 // EnvSine: radians per sample
}

func (e *Envelope) start(kind EnvelopeKind, shape float64, length int, frequency, sampleRate float64) {
	*e = Envelope{kind: kind, length: length}
	switch kind {
	case EnvSine:
		mult := max(math.Round(shape), 1)
		e.omega = 2 * math.Pi * mult * frequency / sampleRate
	default:
		e.kind = EnvCubic
		if shape <= 0 || shape >= 1 {
			shape = 0.5
		}
		e.peak = min(max(int(shape*float64(length)), 1), length-1)
	}
}

// At returns the envelope at sample n.
func (e *Envelope) At(n int) float32 {
	if n < 0 || n >= e.length {
		return 0
	}
	switch e.kind {
	case EnvSine:
		return float32(0.5 - 0.5*math.Cos(e.omega*float64(n)))
	default:
		return e.cubic(n)
	}
}

func (e *Envelope) cubic(n int) float32 {
	if n < e.peak {
		return smoothstep(float64(n) / float64(e.peak))
	}
	return smoothstep(float64(e.length-n) / float64(e.length-e.peak))
}

// Render writes the envelope for samples [from, from+len(dst)).
func (e *Envelope) Render(dst []float32, from int) {
	switch e.kind {
	case EnvSine:
		for i := range dst {
			n := from + i
			if n >= e.length {
				clear(dst[i:])
				return
			}
			dst[i] = float32(0.5 - 0.5*math.Cos(e.omega*float64(n)))
		}
	default:
		for i := range dst {
			n := from + i
			if n >= e.length {
				clear(dst[i:])
				return
			}
			dst[i] = e.cubic(n)
		}
	}
}

func smoothstep(x float64) float32 {
	x = min(max(x, 0), 1)
	return float32(x * x * (3 - 2*x))
}
