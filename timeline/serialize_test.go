package timeline_test

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"github.com/Xenakios/AudioPluginHost-II-sub001/timeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func everyKind() *timeline.Timeline {
	addr := timeline.NoteAddress{Port: 1, Channel: 2, Key: 60, NoteID: 42}
	tl := timeline.New()
	tl.Add(timeline.NewNoteOn(0.5, addr, 0.75))
	tl.Add(timeline.NewNoteOff(1.5, addr, 0.25))
	tl.Add(timeline.NewNoteChoke(1.5, addr))
	tl.Add(timeline.NewNoteEnd(1.5, addr))
	tl.Add(timeline.NewNoteExpression(0.75, addr, timeline.ExpressionTuning, -0.5))
	tl.Add(timeline.NewParamValue(0, 3, 0.125, timeline.AnyNote))
	tl.Add(timeline.NewParamMod(0.25, 4, -0.3, addr))
	tl.Add(timeline.NewTransport(0, timeline.TransportData{Tempo: 120, Beats: 4.5, Flags: timeline.TransportPlaying | timeline.TransportTempoValid, TimeSigNum: 3, TimeSigDen: 4}))
	tl.Add(timeline.NewMIDI(2, 3, 0xB0, 7, 100))
	tl.Add(timeline.NewMIDI2(2, 0, [4]uint32{0x40903C00, 0xFFFF0000, 1, 2}))
	tl.AddString(2.5, "marker: chorus", 9)
	tl.Add(timeline.NewBufferRef(3, 5, 1, 0.5))
	tl.Add(timeline.NewRouting(3, 2, 0, 1, 0.7))

	// full-range values of every integer field
	wide := timeline.NoteAddress{Port: math.MaxInt16, Channel: math.MinInt16, Key: 127, NoteID: math.MaxInt32}
	tl.Add(timeline.NewNoteOn(4, wide, 1))
	tl.Add(timeline.NewParamMod(4, math.MaxUint32, 1, wide))
	tl.Add(timeline.NewBufferRef(4, math.MaxUint32, 40000, 0.5))
	tl.Add(timeline.NewBufferRef(4, 6, math.MaxUint32, -1))
	tl.Add(timeline.NewRouting(4, math.MaxUint32, math.MaxUint32, math.MaxUint32, 1))
	tl.AddString(4, "", math.MaxUint32)
	ext := timeline.NewMIDI2(4, math.MinInt16, [4]uint32{math.MaxUint32, 0, 0, math.MaxUint32})
	ext.Ext0 = math.MinInt64 + 1
	ext.Ext1 = math.MaxInt64
	tl.Add(ext)

	override := timeline.NewParamValue(3, 11, 1, timeline.AnyNote)
	override.Space = 77
	override.Ext0 = 5
	override.Ext1 = -3
	tl.Add(override)
	return tl
}

func requireSameTimeline(t *testing.T, want, got *timeline.Timeline) {
	t.Helper()
	require.Equal(t, want.NumEvents(), got.NumEvents())
	assert.Equal(t, want.Events(), got.Events())
	for _, e := range want.Events() {
		if s, ok := e.StringRef(); ok {
			w, _ := want.String(s.StringID)
			g, ok := got.String(s.StringID)
			require.True(t, ok)
			assert.Equal(t, w, g)
		}
	}
}

func TestRoundTrip(t *testing.T) {
	for _, sorted := range []bool{false, true} {
		tl := everyKind()
		if sorted {
			tl.Sort()
		}
		t.Run("yaml", func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, tl.Write(&buf, false))
			got, err := timeline.Read(&buf)
			require.NoError(t, err)
			requireSameTimeline(t, tl, got)
		})
		t.Run("json", func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, tl.Write(&buf, true))
			got, err := timeline.Read(&buf)
			require.NoError(t, err)
			requireSameTimeline(t, tl, got)
		})
		t.Run("document", func(t *testing.T) {
			got, err := timeline.FromDocument(tl.Document())
			require.NoError(t, err)
			requireSameTimeline(t, tl, got)
		})
	}
}

func TestYAMLMarshalerEmbedding(t *testing.T) {
	type session struct {
		Name     string
		Timeline *timeline.Timeline
	}
	in := session{Name: "s", Timeline: everyKind()}
	data, err := yaml.Marshal(in)
	require.NoError(t, err)
	var out session
	require.NoError(t, yaml.Unmarshal(data, &out))
	requireSameTimeline(t, in.Timeline, out.Timeline)
}

func TestSerializedFieldsAreOmittedWhenZero(t *testing.T) {
	tl := timeline.New()
	tl.AddParamValue(1, 0, 0.5)
	var buf bytes.Buffer
	require.NoError(t, tl.Write(&buf, false))
	s := buf.String()
	assert.Contains(t, s, "version: 1")
	assert.NotContains(t, s, "ext0")
	assert.NotContains(t, s, "space_id")
}

func TestReadRejectsBadInput(t *testing.T) {
	_, err := timeline.Read(strings.NewReader("version: 99\nevents: []\n"))
	assert.ErrorIs(t, err, timeline.ErrUnsupportedVersion)
	_, err = timeline.Read(strings.NewReader("version: 1\nevents:\n  - time: 0\n    type: 55\n"))
	assert.ErrorIs(t, err, timeline.ErrUnknownKind)
	_, err = timeline.Read(strings.NewReader("{not yaml: ["))
	assert.Error(t, err)
}
