//go:build !cgo

package midiin

import "gitlab.com/gomidi/midi/v2"

// NewContext returns a NullContext: without cgo there is no MIDI driver.
func NewContext(handler func(msg midi.Message, timestampms int32)) Context {
	return NullContext{}
}
