//go:build cgo

package midiin

import (
	"errors"
	"fmt"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	"gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
)

type (
	RTMIDIContext struct {
		driver             *rtmididrv.Driver
		currentIn          drivers.In
		stop               func()
		inputDevices       []RTMIDIDevice
		devicesInitialized bool
		handler            func(msg midi.Message, timestampms int32)
	}

	RTMIDIDevice struct {
		context *RTMIDIContext
		in      drivers.In
	}
)

// NewContext opens the rtmidi driver. Messages of the opened input are passed
// to handler. When the driver cannot be opened, a NullContext is returned.
func NewContext(handler func(msg midi.Message, timestampms int32)) Context {
	driver, err := rtmididrv.New()
	if err != nil {
		return NullContext{}
	}
	return &RTMIDIContext{driver: driver, handler: handler}
}

func (m *RTMIDIContext) InputDevices(yield func(Device) bool) {
	if !m.devicesInitialized {
		ins, err := m.driver.Ins()
		if err != nil {
			return
		}
		for _, in := range ins {
			m.inputDevices = append(m.inputDevices, RTMIDIDevice{context: m, in: in})
		}
		m.devicesInitialized = true
	}
	for _, device := range m.inputDevices {
		if !yield(device) {
			break
		}
	}
}

// Open an input device while closing the currently open if necessary.
func (d RTMIDIDevice) Open() error {
	c := d.context
	if c.currentIn == d.in {
		return nil
	}
	if c.driver == nil {
		return errors.New("no driver available")
	}
	c.closeInput()
	if err := d.in.Open(); err != nil {
		return fmt.Errorf("opening MIDI input failed: %w", err)
	}
	stop, err := midi.ListenTo(d.in, c.handler)
	if err != nil {
		d.in.Close()
		return fmt.Errorf("listening to MIDI input failed: %w", err)
	}
	c.currentIn, c.stop = d.in, stop
	return nil
}

func (d RTMIDIDevice) String() string {
	return d.in.String()
}

func (m *RTMIDIContext) HasDeviceOpen() bool {
	return m.currentIn != nil && m.currentIn.IsOpen()
}

func (m *RTMIDIContext) closeInput() {
	if m.stop != nil {
		m.stop()
		m.stop = nil
	}
	if m.HasDeviceOpen() {
		m.currentIn.Close()
	}
	m.currentIn = nil
}

func (m *RTMIDIContext) Close() {
	m.closeInput()
	m.driver.Close()
}
