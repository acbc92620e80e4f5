package midiin_test

import (
	"errors"
	"sync"
	"testing"

	"github.com/Xenakios/AudioPluginHost-II-sub001/midiin"
	"github.com/Xenakios/AudioPluginHost-II-sub001/timeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/gomidi/midi/v2"
)

type posted struct {
	unit  int
	ev    timeline.Event
	delay float64
}

type recorder struct {
	mu   sync.Mutex
	got  []posted
	fail error
}

func (r *recorder) Post(i int, ev timeline.Event, delay float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return r.fail
	}
	r.got = append(r.got, posted{i, ev, delay})
	return nil
}

func TestRouterPostsNotes(t *testing.T) {
	var rec recorder
	r := midiin.NewRouter(&rec, 2, 1, 0.005, nil)
	r.HandleMessage(midi.NoteOn(3, 60, 127), 0)
	r.HandleMessage(midi.NoteOff(3, 60), 10)
	r.HandleMessage(midi.ControlChange(3, 7, 100), 20)
	r.HandleMessage(midi.TimingClock(), 30)

	require.Len(t, rec.got, 3)
	assert.Equal(t, int64(3), r.Received())
	for _, p := range rec.got {
		assert.Equal(t, 2, p.unit)
		assert.Equal(t, 0.005, p.delay)
	}
	on, ok := rec.got[0].ev.Note()
	require.True(t, ok)
	assert.Equal(t, timeline.KindNoteOn, rec.got[0].ev.Kind)
	assert.Equal(t, timeline.NoteAddress{Port: 1, Channel: 3, Key: 60, NoteID: -1}, on.NoteAddress)
	assert.InDelta(t, 1.0, on.Velocity, 1e-9)
	assert.Equal(t, timeline.KindNoteOff, rec.got[1].ev.Kind)
	assert.Equal(t, timeline.KindMIDI, rec.got[2].ev.Kind)
}

func TestRouterCountsFailures(t *testing.T) {
	rec := recorder{fail: errors.New("no such unit")}
	r := midiin.NewRouter(&rec, 9, 0, -1, nil)
	r.HandleMessage(midi.NoteOn(0, 60, 100), 0)
	r.HandleMessage(midi.NoteOn(0, 61, 100), 0)
	assert.Equal(t, int64(2), r.Failed())
}

type fakeDevice struct {
	name   string
	opened *string
}

func (d fakeDevice) Open() error {
	*d.opened = d.name
	return nil
}

func (d fakeDevice) String() string { return d.name }

type fakeContext struct{ devices []midiin.Device }

func (c fakeContext) InputDevices(yield func(midiin.Device) bool) {
	for _, d := range c.devices {
		if !yield(d) {
			return
		}
	}
}
func (fakeContext) HasDeviceOpen() bool { return false }
func (fakeContext) Close()              {}

func TestOpenBy(t *testing.T) {
	var opened string
	c := fakeContext{devices: []midiin.Device{fakeDevice{"Keystation", &opened}, fakeDevice{"Launchpad", &opened}}}

	d, err := midiin.OpenBy(c, "Launch", false)
	require.NoError(t, err)
	assert.Equal(t, "Launchpad", d.String())
	assert.Equal(t, "Launchpad", opened)

	d, err = midiin.OpenBy(c, "", true)
	require.NoError(t, err)
	assert.Equal(t, "Keystation", d.String())

	_, err = midiin.OpenBy(c, "Nope", false)
	assert.ErrorIs(t, err, midiin.ErrNoDevice)
	_, err = midiin.OpenBy(midiin.NullContext{}, "", true)
	assert.ErrorIs(t, err, midiin.ErrNoDevice)

	d, err = midiin.OpenBy(c, "", false)
	assert.NoError(t, err)
	assert.Nil(t, d)
}
