// Package grain is a granular synthesizer. A control thread prepares a
// sorted list of grain events and hands it over through a single-slot
// mailbox; the audio thread triggers each grain on the first free voice of
// a fixed pool and mixes the voices to a number of spatial channels.
package grain

import (
	"cmp"
	"math"
	"slices"
	"sync/atomic"

	"github.com/Xenakios/AudioPluginHost-II-sub001"
	"github.com/Xenakios/AudioPluginHost-II-sub001/timeline"
	"github.com/viterin/vek/vek32"
)

type (
	Pool struct {
		opts    PoolOptions
		catalog *Catalog
		voices  []Voice
		mailbox Mailbox[staged]
		reset   atomic.Bool
		rewind  atomic.Bool

		// audio thread
		events    []Event
		params    GlobalParams
		index     int
		playhead  int64
		setup     voiceSetup
		lookahead int64
		scale     float32
		coef      float32
		ramp      []float32
		bus       plughost.AudioBuffer
		busView   plughost.AudioBuffer
		outView   plughost.AudioBuffer
		seed      uint32

		missed    atomic.Int64
		triggered atomic.Int64
		active    atomic.Int32
		position  atomic.Int64
	}

	PoolOptions struct {
		Voices     int
		Channels   int // spatial output channels, 1 to MaxChannels
		SampleRate float64
		MaxFrames  int     // largest block ProcessBlock renders at once
		Lookahead  float64 // seconds beyond the block in which grains are already triggered
		Smoothing  float64 // time constant of the 1/sqrt(voices) scaling, in seconds
	}

	staged struct {
		events []Event
		params GlobalParams
	}
)

func DefaultPoolOptions() PoolOptions {
	return PoolOptions{
		Voices:     64,
		Channels:   2,
		SampleRate: 48000,
		MaxFrames:  512,
		Smoothing:  0.05,
	}
}

// NewPool allocates every voice and buffer the pool will ever use.
func NewPool(opts PoolOptions) (*Pool, error) {
	switch {
	case opts.Voices <= 0:
		return nil, plughost.ConfigErrorf("voice count must be positive, got %d", opts.Voices)
	case opts.Channels <= 0 || opts.Channels > MaxChannels:
		return nil, plughost.ConfigErrorf("channel count must be in [1, %d], got %d", MaxChannels, opts.Channels)
	case opts.SampleRate <= 0:
		return nil, plughost.ConfigErrorf("invalid sample rate %v", opts.SampleRate)
	case opts.MaxFrames <= 0:
		return nil, plughost.ConfigErrorf("invalid block size %d", opts.MaxFrames)
	case opts.Lookahead < 0 || opts.Smoothing < 0:
		return nil, plughost.ConfigErrorf("lookahead and smoothing must not be negative")
	}
	p := &Pool{
		opts:      opts,
		catalog:   defaultCatalog,
		voices:    make([]Voice, opts.Voices),
		lookahead: timeline.TimeToSamples(opts.Lookahead, opts.SampleRate),
		scale:     1,
		coef:      1,
		ramp:      make([]float32, opts.MaxFrames),
		bus:       plughost.MakeAudioBuffer(opts.Channels, opts.MaxFrames),
		busView:   make(plughost.AudioBuffer, 0, opts.Channels),
		outView:   make(plughost.AudioBuffer, 0, opts.Channels),
		seed:      0x9e3779b9,
		params:    DefaultParams(),
	}
	for i := range p.voices {
		p.voices[i] = newVoice(opts.MaxFrames)
	}
	if opts.Smoothing > 0 {
		p.coef = float32(1 - math.Exp(-1/(opts.Smoothing*opts.SampleRate)))
	}
	p.applyParams()
	return p, nil
}

func (p *Pool) Options() PoolOptions { return p.opts }

// Prepare sorts a copy of events by time, discards grains that start before
// 0 or end after params.MaxTime, and stages the result. The audio thread
// picks up the most recently staged list at its next block and restarts
// playback from time 0 with it. Prepare returns the number of discarded
// events.
func (p *Pool) Prepare(events []Event, params GlobalParams) (discarded int, err error) {
	if params.ReleaseTail < 0 || params.MaxTime < 0 || params.Volume < 0 {
		return 0, plughost.ConfigErrorf("invalid grain parameters %+v", params)
	}
	list := make([]Event, 0, len(events))
	for _, ev := range events {
		if ev.Time < 0 || ev.Duration <= 0 || (params.MaxTime > 0 && ev.End() > params.MaxTime) {
			discarded++
			continue
		}
		list = append(list, ev)
	}
	slices.SortStableFunc(list, func(a, b Event) int { return cmp.Compare(a.Time, b.Time) })
	p.mailbox.Publish(&staged{events: list, params: params})
	return discarded, nil
}

// Reset silences every voice and rewinds the current list to time 0 at the
// next block.
func (p *Pool) Reset() { p.reset.Store(true) }

// Rewind restarts the current list from time 0 at the next block. Voices
// that are sounding keep ringing.
func (p *Pool) Rewind() { p.rewind.Store(true) }

// MissedGrains counts grains dropped because every voice was busy.
func (p *Pool) MissedGrains() int64 { return p.missed.Load() }

// TriggeredGrains counts grains that started on a voice.
func (p *Pool) TriggeredGrains() int64 { return p.triggered.Load() }

// ActiveVoices is the number of voices sounding at the end of the last block.
func (p *Pool) ActiveVoices() int { return int(p.active.Load()) }

// Playhead is the sample position of the current list at the end of the
// last block.
func (p *Pool) Playhead() int64 { return p.position.Load() }

func (p *Pool) applyParams() {
	p.setup = voiceSetup{
		sampleRate: p.opts.SampleRate,
		channels:   p.opts.Channels,
		tail:       int(timeline.TimeToSamples(p.params.ReleaseTail, p.opts.SampleRate)),
		volume:     p.params.Volume,
		catalog:    p.catalog,
	}
}

// ProcessBlock renders frames frames into out, overwriting it. It runs on
// the audio thread: it never blocks, allocates or logs. Channels of out
// beyond the pool's channel count are cleared.
func (p *Pool) ProcessBlock(out plughost.AudioBuffer, frames int) {
	if s := p.mailbox.Take(); s != nil {
		p.events, p.params = s.events, s.params
		p.index, p.playhead = 0, 0
		p.applyParams()
	}
	if p.reset.Swap(false) {
		for i := range p.voices {
			p.voices[i].stop()
		}
		p.index, p.playhead = 0, 0
	}
	if p.rewind.Swap(false) {
		p.index, p.playhead = 0, 0
	}
	for c := p.opts.Channels; c < len(out); c++ {
		clear(out[c][:frames])
	}
	for off := 0; off < frames; {
		n := min(frames-off, p.opts.MaxFrames)
		p.processChunk(p.view(out, off, off+n), n)
		off += n
	}
}

func (p *Pool) processChunk(out plughost.AudioBuffer, frames int) {
	window := p.playhead + int64(frames) + p.lookahead
	for p.index < len(p.events) {
		ev := &p.events[p.index]
		at := timeline.TimeToSamples(ev.Time, p.opts.SampleRate)
		if at >= window {
			break
		}
		p.index++
		v := p.freeVoice()
		if v == nil {
			p.missed.Add(1)
			continue
		}
		p.seed = p.seed*1664525 + 1013904223
		p.setup.seed = p.seed
		v.start(ev, int(max(at-p.playhead, 0)), &p.setup)
		p.triggered.Add(1)
	}

	bus := p.bus.Slice(p.busView, 0, frames)
	for _, ch := range bus {
		vek32.Zeros_Into(ch, frames)
	}
	sounding := 0
	for i := range p.voices {
		v := &p.voices[i]
		if !v.active {
			continue
		}
		sounding++
		v.render(bus, frames)
	}

	target := float32(1)
	if sounding > 1 {
		target = float32(1 / math.Sqrt(float64(sounding)))
	}
	ramp := p.ramp[:frames]
	for i := range ramp {
		p.scale += p.coef * (target - p.scale)
		ramp[i] = p.scale
	}
	for c := range min(len(out), len(bus)) {
		vek32.Mul_Into(out[c], bus[c], ramp)
	}

	p.playhead += int64(frames)
	active := 0
	for i := range p.voices {
		if p.voices[i].active {
			active++
		}
	}
	p.active.Store(int32(active))
	p.position.Store(p.playhead)
}

// view slices the pool's channels of out without allocating.
func (p *Pool) view(out plughost.AudioBuffer, from, to int) plughost.AudioBuffer {
	v := p.outView[:0]
	for c := 0; c < len(out) && c < p.opts.Channels; c++ {
		v = append(v, out[c][from:to])
	}
	return v
}

// freeVoice returns the first inactive voice, or nil.
func (p *Pool) freeVoice() *Voice {
	for i := range p.voices {
		if !p.voices[i].active {
			return &p.voices[i]
		}
	}
	return nil
}
