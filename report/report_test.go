package report_test

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/Xenakios/AudioPluginHost-II-sub001"
	"github.com/Xenakios/AudioPluginHost-II-sub001/grain"
	"github.com/Xenakios/AudioPluginHost-II-sub001/report"
	"github.com/Xenakios/AudioPluginHost-II-sub001/timeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummarizeTimeline(t *testing.T) {
	tl := timeline.New()
	tl.AddNoteOn(0.5, 0, 0, 60, -1, 1)
	tl.AddNoteOff(1.5, 0, 0, 60, -1, 0)
	tl.AddNoteOn(0.25, 0, 0, 64, -1, 1)
	tl.AddParamValue(2, 1, 0.5)

	s := report.SummarizeTimeline(tl)
	assert.Equal(t, 4, s.Events)
	assert.Equal(t, 0.25, s.Start)
	assert.Equal(t, 2.0, s.End)
	assert.Equal(t, []report.KindCount{
		{Kind: "note-on", Count: 2, Bar: 40},
		{Kind: "note-off", Count: 1, Bar: 20},
		{Kind: "param-value", Count: 1, Bar: 20},
	}, s.Kinds)

	r, err := report.New()
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, r.Timeline(&buf, s))
	out := buf.String()
	assert.Contains(t, out, "Timeline: 4 events, 0.250s to 2.000s\n")
	assert.Contains(t, out, "Note On")
	assert.Contains(t, out, "Param Value")
	assert.Contains(t, out, "########################################\n")
}

func TestEmptyTimeline(t *testing.T) {
	r, err := report.New()
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, r.Timeline(&buf, report.SummarizeTimeline(timeline.New())))
	assert.Equal(t, "Timeline: 0 events\n", buf.String())
}

func TestSummarizeGrains(t *testing.T) {
	l := grain.List{
		Params: grain.GlobalParams{ReleaseTail: 0.1, MaxTime: 3, Volume: 1},
		Events: []grain.Event{
			{Time: 0, Duration: 1, Oscillator: grain.OscSine},
			{Time: 0.5, Duration: 1, Oscillator: grain.OscSaw, Envelope: grain.EnvSine},
			{Time: 1.05, Duration: 1, Oscillator: grain.OscSine}, // overlaps the release tail of the first
			{Time: 2.5, Duration: 1},                             // ends after max time
			{Time: 1, Duration: 0},
		},
	}
	s := report.SummarizeGrains(l, 2)
	assert.Equal(t, 3, s.Events)
	assert.Equal(t, 2, s.Discarded)
	assert.Equal(t, 0.0, s.Start)
	assert.InDelta(t, 2.05, s.End, 1e-12)
	assert.Equal(t, 3, s.MaxOverlap)
	assert.Equal(t, []report.KindCount{{Kind: "sine", Count: 2, Bar: 40}, {Kind: "saw", Count: 1, Bar: 20}}, s.Oscillators)

	r, err := report.New()
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, r.Grains(&buf, s))
	out := buf.String()
	assert.Contains(t, out, "Grains: 3 events, 0.000s to 2.050s (2 discarded)")
	assert.Contains(t, out, "Oscillators:\n")
	assert.Contains(t, out, "Envelopes:\n")
	assert.Contains(t, out, "Max overlap: 3 grains (exceeds 2 voices, 1 or more grains will be missed)")
}

func TestAnalyze(t *testing.T) {
	const n = 1000
	buf := plughost.MakeAudioBuffer(2, n)
	for i := range n {
		buf[0][i] = float32(math.Sin(2 * math.Pi * float64(i) / 100))
		buf[1][i] = -0.5
	}
	s := report.Analyze(buf, 1000)
	assert.Equal(t, 1.0, s.Duration)
	assert.InDelta(t, 1.0, s.PerChannel[0].Peak, 1e-3)
	assert.InDelta(t, math.Sqrt2/2, s.PerChannel[0].RMS, 1e-3)
	assert.InDelta(t, 0.5, s.PerChannel[1].Peak, 1e-6)
	assert.InDelta(t, 0.5, s.PerChannel[1].RMS, 1e-6)
	assert.InDelta(t, 1.0, s.Peak, 1e-3)

	r, err := report.New()
	require.NoError(t, err)
	var out bytes.Buffer
	require.NoError(t, r.Audio(&out, s))
	assert.Contains(t, out.String(), "Audio: 2 channels, 1000 frames at 1000 Hz (1.000s)")
	assert.Contains(t, out.String(), "(-6.0 dBFS)")
	assert.NotContains(t, out.String(), "clips")

	silent := report.Analyze(plughost.MakeAudioBuffer(1, 0), 48000)
	assert.Equal(t, []report.ChannelLevel{{}}, silent.PerChannel)
}

func TestCustomTemplates(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "mine.tmpl"), []byte(`{{define "audio"}}{{.Channels}}ch {{upper "ok"}}{{end}}`), 0o644))
	r, err := report.NewFromTemplates(dir)
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, r.Audio(&buf, report.AudioSummary{Channels: 3}))
	assert.Equal(t, "3ch OK", buf.String())
	assert.Error(t, r.Grains(&buf, report.GrainSummary{}), "template not defined")

	_, err = report.NewFromTemplates(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}
