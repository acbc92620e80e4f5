// Package oto plays a chain through the system audio device. The device
// pulls audio through a Reader, so rendering happens on oto's own goroutine.
package oto

import (
	"fmt"
	"sync"
	"time"

	"github.com/Xenakios/AudioPluginHost-II-sub001"
	"github.com/ebitengine/oto/v3"
)

type (
	Options struct {
		SampleRate int
		Channels   int
		MaxFrames  int           // largest block handed to the fill function
		BufferSize time.Duration // device buffer, 0 uses the driver default
		Int16      bool          // signed 16-bit samples instead of float32
	}

	OtoContext struct {
		ctx  *oto.Context
		opts Options
	}

	OtoOutput struct {
		player *oto.Player
		reader *Reader
		once   sync.Once
		done   chan struct{}
	}
)

var _ plughost.AudioContext = (*OtoContext)(nil)

// NewContext opens the audio device. Only one context can exist per process.
func NewContext(opts Options) (*OtoContext, error) {
	if opts.Channels <= 0 || opts.SampleRate <= 0 || opts.MaxFrames <= 0 {
		return nil, plughost.ConfigErrorf("invalid audio output %d Hz, %d channels, %d frames", opts.SampleRate, opts.Channels, opts.MaxFrames)
	}
	format := oto.FormatFloat32LE
	if opts.Int16 {
		format = oto.FormatSignedInt16LE
	}
	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   opts.SampleRate,
		ChannelCount: opts.Channels,
		Format:       format,
		BufferSize:   opts.BufferSize,
	})
	if err != nil {
		return nil, fmt.Errorf("cannot create oto context: %w", err)
	}
	<-ready
	return &OtoContext{ctx: ctx, opts: opts}, nil
}

// Play starts a player that pulls audio from fill.
func (c *OtoContext) Play(fill func(out plughost.AudioBuffer)) plughost.CloserWaiter {
	r := NewReader(fill, c.opts.Channels, c.opts.MaxFrames, c.opts.Int16)
	p := c.ctx.NewPlayer(r)
	p.Play()
	return &OtoOutput{player: p, reader: r, done: make(chan struct{})}
}

// Close suspends the device. oto contexts cannot be destroyed.
func (c *OtoContext) Close() error {
	if err := c.ctx.Suspend(); err != nil {
		return fmt.Errorf("cannot suspend oto context: %w", err)
	}
	return nil
}

func (o *OtoOutput) Close() (err error) {
	o.once.Do(func() {
		if cerr := o.player.Close(); cerr != nil {
			err = fmt.Errorf("cannot close oto player: %w", cerr)
		}
		close(o.done)
	})
	return err
}

// Wait blocks until Close has been called.
func (o *OtoOutput) Wait() { <-o.done }
