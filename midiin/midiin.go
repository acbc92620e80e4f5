// Package midiin forwards live MIDI input to a unit of a running chain.
package midiin

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/Xenakios/AudioPluginHost-II-sub001/timeline"
	"gitlab.com/gomidi/midi/v2"
)

type (
	// Poster is implemented by *chain.Engine.
	Poster interface {
		Post(i int, ev timeline.Event, delay float64) error
	}

	Device interface {
		Open() error
		String() string
	}

	Context interface {
		InputDevices(yield func(Device) bool)
		HasDeviceOpen() bool
		Close()
	}

	// Router turns incoming MIDI messages into timeline events and posts
	// them to one unit. HandleMessage is called on the driver's goroutine.
	Router struct {
		target   Poster
		unit     int
		port     int16
		delay    float64
		log      *slog.Logger
		received atomic.Int64
		failed   atomic.Int64
	}

	// NullContext has no devices. It is used when no MIDI driver is
	// available.
	NullContext struct{}
)

var ErrNoDevice = errors.New("no MIDI input found")

// NewRouter posts to unit i of target. Every event is delayed by delay
// seconds, which evens out the jitter of messages arriving between blocks.
func NewRouter(target Poster, i int, port int16, delay float64, log *slog.Logger) *Router {
	if log == nil {
		log = slog.Default()
	}
	return &Router{target: target, unit: i, port: port, delay: max(delay, 0), log: log}
}

func (r *Router) HandleMessage(msg midi.Message, timestampms int32) {
	if len(msg) == 0 || msg[0] >= 0xF0 {
		return // system and realtime messages are not forwarded
	}
	r.received.Add(1)
	if err := r.target.Post(r.unit, timeline.FromMIDI(0, r.port, msg), r.delay); err != nil {
		if r.failed.Add(1) == 1 {
			r.log.Warn("cannot forward MIDI message", "message", msg.String(), "error", err)
		}
	}
}

func (r *Router) Received() int64 { return r.received.Load() }
func (r *Router) Failed() int64   { return r.failed.Load() }

// OpenBy opens the first input whose name starts with namePrefix, or the
// first input at all when takeFirst is set.
func OpenBy(c Context, namePrefix string, takeFirst bool) (Device, error) {
	if namePrefix == "" && !takeFirst {
		return nil, nil
	}
	for input := range c.InputDevices {
		if takeFirst || strings.HasPrefix(input.String(), namePrefix) {
			if err := input.Open(); err != nil {
				return nil, err
			}
			return input, nil
		}
	}
	if takeFirst {
		return nil, ErrNoDevice
	}
	return nil, fmt.Errorf("%w starting with %q", ErrNoDevice, namePrefix)
}

func (NullContext) InputDevices(yield func(Device) bool) {}
func (NullContext) HasDeviceOpen() bool                  { return false }
func (NullContext) Close()                               {}
