package grain_test

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/Xenakios/AudioPluginHost-II-sub001"
	"github.com/Xenakios/AudioPluginHost-II-sub001/chain"
	"github.com/Xenakios/AudioPluginHost-II-sub001/grain"
	"github.com/Xenakios/AudioPluginHost-II-sub001/timeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const listYAML = `
params:
  release_tail: 0.01
  max_time: 2
events:
  - time: 0.1
    duration: 0.05
    frequency: 220
    oscillator: fm
    osc_param: 1.5
    envelope: sine
    shape: 2
    filters:
      - {model: lowpass, cutoff: 3000, resonance: 0.3}
      - {model: highpass, cutoff: 100, resonance: 0}
    routing: parallel
    azimuth: 0.5
    volume: 0.8
  - time: 0.0
    duration: 0.05
    frequency: 330
    oscillator: square
    envelope: cubic
    shape: 0.2
    filters:
      - {model: none, cutoff: 0, resonance: 0}
      - {model: bandpass, cutoff: 1000, resonance: 0.5}
    routing: series
    volume: 1
`

func TestReadList(t *testing.T) {
	l, err := grain.ReadList(strings.NewReader(listYAML))
	require.NoError(t, err)
	assert.Equal(t, 0.01, l.Params.ReleaseTail)
	assert.Equal(t, 1.0, l.Params.Volume, "missing params keep their defaults")
	require.Len(t, l.Events, 2)
	ev := l.Events[0]
	assert.Equal(t, grain.OscFM, ev.Oscillator)
	assert.Equal(t, grain.EnvSine, ev.Envelope)
	assert.Equal(t, grain.Parallel, ev.Routing)
	assert.Equal(t, grain.FilterHighpass, ev.Filters[1].Model)

	var buf bytes.Buffer
	require.NoError(t, l.Write(&buf))
	assert.Contains(t, buf.String(), "oscillator: fm")
	again, err := grain.ReadList(&buf)
	require.NoError(t, err)
	assert.Equal(t, l, again)

	_, err = grain.ReadList(strings.NewReader("events:\n  - oscillator: theremin\n"))
	assert.ErrorIs(t, err, plughost.ErrConfiguration)
}

func TestUnitInChain(t *testing.T) {
	l, err := grain.ReadList(strings.NewReader(listYAML))
	require.NoError(t, err)
	u := grain.NewUnit(grain.PoolOptions{Voices: 4, Channels: 2}, l)
	e := chain.NewEngine(chain.Options{})
	defer e.Close()
	_, err = e.AddUnit(u)
	require.NoError(t, err)

	out, err := e.Render(context.Background(), 8000, 64, 2, 0.2)
	require.NoError(t, err)
	var peak float32
	for _, ch := range out {
		for _, v := range ch {
			peak = max(peak, v, -v)
		}
	}
	assert.Positive(t, peak)
	assert.Nil(t, u.Pool(), "render deactivates the unit")
	triggered, missed := u.Counts()
	assert.Equal(t, int64(2), triggered, "counts survive deactivation")
	assert.Zero(t, missed)

	var state bytes.Buffer
	require.NoError(t, e.SaveUnitState(0, &state))

	other := grain.NewUnit(grain.PoolOptions{Voices: 1, Channels: 1}, grain.List{})
	e2 := chain.NewEngine(chain.Options{})
	defer e2.Close()
	_, err = e2.AddUnit(other)
	require.NoError(t, err)
	require.NoError(t, e2.LoadUnitState(0, &state))
	assert.Equal(t, l, other.List())
}

func TestUnitSetListWhileActive(t *testing.T) {
	u := grain.NewUnit(grain.PoolOptions{Voices: 2, Channels: 1}, grain.List{Params: grain.DefaultParams()})
	require.NoError(t, u.Activate(1000, 16))
	defer u.Deactivate()
	discarded, err := u.SetList(grain.List{
		Params: grain.DefaultParams(),
		Events: []grain.Event{sineGrain(0, 0.1), sineGrain(-1, 0.1)},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, discarded)

	p := plughost.NewProcess(4)
	p.Frames = 16
	p.Out = plughost.MakeAudioBuffer(1, 16)
	assert.Equal(t, plughost.StatusContinue, u.Process(p))
	assert.Equal(t, 1, u.Pool().ActiveVoices())
}

func TestUnitNoteEventsRewindAndSilence(t *testing.T) {
	u := grain.NewUnit(grain.PoolOptions{Voices: 1, Channels: 1}, grain.List{
		Params: grain.DefaultParams(),
		Events: []grain.Event{sineGrain(0, 1)},
	})
	require.NoError(t, u.Activate(1000, 16))
	defer u.Deactivate()
	p := plughost.NewProcess(4)
	p.Frames = 16
	p.Out = plughost.MakeAudioBuffer(1, 16)
	for range 4 {
		u.Process(p)
	}
	assert.Equal(t, int64(64), u.Pool().Playhead())

	p.Events = append(p.Events[:0], timeline.NewNoteOn(0, timeline.AnyNote, 1))
	u.Process(p)
	assert.Equal(t, int64(16), u.Pool().Playhead(), "note on restarts the list")
	assert.Equal(t, 1, u.Pool().ActiveVoices())
	_, missed := u.Counts()
	assert.Equal(t, int64(1), missed, "the old grain keeps ringing, so the restarted one finds no voice")

	p.Events = append(p.Events[:0], timeline.NewMIDI(0, 0, 0xB3, 123, 0))
	u.Process(p)
	assert.Equal(t, int64(16), u.Pool().Playhead())
	triggered, missed := u.Counts()
	assert.Equal(t, int64(2), triggered, "all notes off frees the voice for the rewound list")
	assert.Equal(t, int64(1), missed)
}
