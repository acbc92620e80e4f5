package grain

import (
	"github.com/Xenakios/AudioPluginHost-II-sub001"
	"github.com/viterin/vek/vek32"
)

// Voice plays one grain at a time. Voices are owned by a Pool and reused;
// starting a grain never allocates.
type Voice struct {
	active   bool
	osc      Oscillator
	env      Envelope
	filters  [2]svf
	routing  Routing
	feedback float64
	last     float64
	volume   float32
	gains    [MaxChannels]float32

	pos    int // samples played since the grain started
	length int
	tail   int
	delay  int // frames to wait before the first sample

	buf, envBuf, tmp []float32
}

func newVoice(maxFrames int) Voice {
	return Voice{
		buf:    make([]float32, maxFrames),
		envBuf: make([]float32, maxFrames),
		tmp:    make([]float32, maxFrames),
	}
}

func (v *Voice) Active() bool { return v.active }

type voiceSetup struct {
	sampleRate float64
	channels   int
	tail       int
	volume     float64
	catalog    *Catalog
	seed       uint32
}

func (v *Voice) start(ev *Event, delay int, s *voiceSetup) {
	v.active = true
	v.delay = delay
	v.pos = 0
	v.length = max(int(ev.Duration*s.sampleRate+0.5), 2)
	v.tail = s.tail
	v.osc.start(ev.Oscillator, ev.Frequency, ev.OscParam, s.sampleRate, s.seed)
	v.env.start(ev.Envelope, ev.Shape, v.length, ev.Frequency, s.sampleRate)
	for i := range v.filters {
		s.catalog.setup(&v.filters[i], ev.Filters[i], s.sampleRate)
	}
	v.routing = ev.Routing
	v.feedback = min(max(ev.Feedback, -0.99), 0.99)
	v.last = 0
	v.volume = float32(ev.Volume * s.volume)
	v.gains = spatialGains(s.channels, ev.Azimuth, ev.Elevation)
}

func (v *Voice) stop() { v.active = false }

// render adds the next frames of the voice to out.
func (v *Voice) render(out plughost.AudioBuffer, frames int) {
	if v.delay >= frames {
		v.delay -= frames
		return
	}
	begin := v.delay
	v.delay = 0
	n := min(frames-begin, v.length+v.tail-v.pos)
	buf := v.buf[:n]
	env := v.envBuf[:n]
	v.osc.Render(buf)
	v.env.Render(env, v.pos)
	vek32.Mul_Inplace(buf, env)

	if v.routing == Parallel {
		for i, x := range buf {
			in := float64(x) + v.feedback*v.last
			y := 0.5 * (v.filters[0].tick(in) + v.filters[1].tick(in))
			v.last = softClip(y)
			buf[i] = float32(v.last)
		}
	} else {
		for i, x := range buf {
			in := float64(x) + v.feedback*v.last
			y := v.filters[1].tick(v.filters[0].tick(in))
			v.last = softClip(y)
			buf[i] = float32(v.last)
		}
	}

	// the release tail fades out linearly
	if v.tail > 0 && v.pos+n > v.length {
		for i := max(v.length-v.pos, 0); i < n; i++ {
			buf[i] *= 1 - float32(v.pos+i-v.length)/float32(v.tail)
		}
	}
	vek32.MulNumber_Inplace(buf, v.volume)

	for c, ch := range out {
		if c >= MaxChannels || v.gains[c] == 0 {
			continue
		}
		tmp := vek32.MulNumber_Into(v.tmp[:n], buf, v.gains[c])
		vek32.Add_Inplace(ch[begin:begin+n], tmp)
	}
	v.pos += n
	if v.pos >= v.length+v.tail {
		v.active = false
	}
}

// softClip is a rational tanh approximation, saturating at +-1.
func softClip(x float64) float64 {
	switch {
	case x > 3:
		return 1
	case x < -3:
		return -1
	}
	return x * (27 + x*x) / (27 + 9*x*x)
}
