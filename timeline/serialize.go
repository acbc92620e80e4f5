package timeline

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// FormatVersion is the version written by Document.
const FormatVersion = 1

var (
	ErrUnsupportedVersion = errors.New("unsupported timeline version")
	ErrUnknownKind        = errors.New("unknown event type")
)

type (
	// Document is the tree form of a timeline, marshalled as YAML or JSON.
	Document struct {
		Version int          `yaml:"version" json:"version"`
		Events  []EventEntry `yaml:"events" json:"events"`
	}

	// EventEntry is one serialized event. Which of the optional fields are
	// meaningful depends on Type.
	EventEntry struct {
		Time    float64 `yaml:"time" json:"time"`
		Type    int     `yaml:"type" json:"type"`
		Ext0    int64   `yaml:"ext0,omitempty" json:"ext0,omitempty"`
		Ext1    int64   `yaml:"ext1,omitempty" json:"ext1,omitempty"`
		SpaceID *int    `yaml:"space_id,omitempty" json:"space_id,omitempty"`

		Port     int16   `yaml:"port,omitempty" json:"port,omitempty"`
		Channel  int16   `yaml:"channel,omitempty" json:"channel,omitempty"`
		Key      int16   `yaml:"key,omitempty" json:"key,omitempty"`
		NoteID   int32   `yaml:"note_id,omitempty" json:"note_id,omitempty"`
		Velocity float64 `yaml:"velocity,omitempty" json:"velocity,omitempty"`

		ExpressionID uint32  `yaml:"expression_id,omitempty" json:"expression_id,omitempty"`
		ParamID      uint32  `yaml:"param_id,omitempty" json:"param_id,omitempty"`
		Value        float64 `yaml:"value,omitempty" json:"value,omitempty"`

		Tempo      float64 `yaml:"tempo,omitempty" json:"tempo,omitempty"`
		Beats      float64 `yaml:"beats,omitempty" json:"beats,omitempty"`
		Flags      uint32  `yaml:"flags,omitempty" json:"flags,omitempty"`
		TimeSigNum uint16  `yaml:"tsig_num,omitempty" json:"tsig_num,omitempty"`
		TimeSigDen uint16  `yaml:"tsig_den,omitempty" json:"tsig_den,omitempty"`

		Data0 uint32 `yaml:"data0,omitempty" json:"data0,omitempty"`
		Data1 uint32 `yaml:"data1,omitempty" json:"data1,omitempty"`
		Data2 uint32 `yaml:"data2,omitempty" json:"data2,omitempty"`
		Data3 uint32 `yaml:"data3,omitempty" json:"data3,omitempty"`

		StringID uint32 `yaml:"string_id,omitempty" json:"string_id,omitempty"`
		Text     string `yaml:"text,omitempty" json:"text,omitempty"`
		Target   uint32 `yaml:"target,omitempty" json:"target,omitempty"`
		BufferID uint32 `yaml:"buffer_id,omitempty" json:"buffer_id,omitempty"`
		Command  uint32 `yaml:"command,omitempty" json:"command,omitempty"`
		Source   uint32 `yaml:"source,omitempty" json:"source,omitempty"`
		Dest     uint32 `yaml:"dest,omitempty" json:"dest,omitempty"`

		// BufferChannel is separate from the int16 note channel so that
		// buffer refs keep the full channel range.
		BufferChannel uint32 `yaml:"buffer_channel,omitempty" json:"buffer_channel,omitempty"`
	}
)

// Document returns the tree form of the timeline, in the timeline's current
// event order.
func (t *Timeline) Document() Document {
	doc := Document{Version: FormatVersion, Events: make([]EventEntry, 0, len(t.events))}
	for _, e := range t.events {
		doc.Events = append(doc.Events, t.entry(e))
	}
	return doc
}

func (t *Timeline) entry(e Event) EventEntry {
	ret := EventEntry{Time: e.Time, Type: int(e.Kind), Ext0: e.Ext0, Ext1: e.Ext1}
	if e.Space != DefaultSpace(e.Kind) {
		s := int(e.Space)
		ret.SpaceID = &s
	}
	setAddr := func(a NoteAddress) {
		ret.Port, ret.Channel, ret.Key, ret.NoteID = a.Port, a.Channel, a.Key, a.NoteID
	}
	switch {
	case e.Kind.IsNote():
		n, _ := e.Note()
		setAddr(n.NoteAddress)
		ret.Velocity = n.Velocity
	case e.Kind == KindNoteExpression:
		x, _ := e.Expression()
		setAddr(x.NoteAddress)
		ret.ExpressionID, ret.Value = x.ExpressionID, x.Value
	case e.Kind.IsParam():
		p, _ := e.Param()
		setAddr(p.NoteAddress)
		ret.ParamID, ret.Value = p.ParamID, p.Value
	case e.Kind == KindTransport:
		tr, _ := e.Transport()
		ret.Tempo, ret.Beats, ret.Flags = tr.Tempo, tr.Beats, tr.Flags
		ret.TimeSigNum, ret.TimeSigDen = tr.TimeSigNum, tr.TimeSigDen
	case e.Kind.IsMIDI():
		m, _ := e.MIDI()
		ret.Port = m.Port
		ret.Data0, ret.Data1, ret.Data2, ret.Data3 = m.Data[0], m.Data[1], m.Data[2], m.Data[3]
	case e.Kind == KindStringRef:
		s, _ := e.StringRef()
		ret.StringID, ret.Target = s.StringID, s.Target
		ret.Text = t.strings[s.StringID]
	case e.Kind == KindBufferRef:
		b, _ := e.BufferRef()
		ret.BufferID, ret.BufferChannel, ret.Value = b.BufferID, b.Channel, b.Gain
	case e.Kind == KindRouting:
		r, _ := e.Routing()
		ret.Command, ret.Source, ret.Dest, ret.Value = r.Command, r.Source, r.Dest, r.Amount
	}
	return ret
}

// FromDocument rebuilds a timeline from its tree form. The event order of
// the document is kept as is.
func FromDocument(doc Document) (*Timeline, error) {
	if doc.Version < 1 || doc.Version > FormatVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, doc.Version)
	}
	t := New()
	t.events = make([]Event, 0, len(doc.Events))
	for i, en := range doc.Events {
		e, err := t.fromEntry(en)
		if err != nil {
			return nil, fmt.Errorf("event %d: %w", i, err)
		}
		t.Add(e)
	}
	return t, nil
}

func (t *Timeline) fromEntry(en EventEntry) (Event, error) {
	k := Kind(en.Type)
	if en.Type < 0 || !k.Valid() {
		return Event{}, fmt.Errorf("%w: %d", ErrUnknownKind, en.Type)
	}
	addr := NoteAddress{Port: en.Port, Channel: en.Channel, Key: en.Key, NoteID: en.NoteID}
	var e Event
	switch k {
	case KindNoteOn:
		e = NewNoteOn(en.Time, addr, en.Velocity)
	case KindNoteOff:
		e = NewNoteOff(en.Time, addr, en.Velocity)
	case KindNoteChoke:
		e = NewNoteChoke(en.Time, addr)
		e.value = en.Velocity
	case KindNoteEnd:
		e = NewNoteEnd(en.Time, addr)
		e.value = en.Velocity
	case KindNoteExpression:
		e = NewNoteExpression(en.Time, addr, en.ExpressionID, en.Value)
	case KindParamValue:
		e = NewParamValue(en.Time, en.ParamID, en.Value, addr)
	case KindParamMod:
		e = NewParamMod(en.Time, en.ParamID, en.Value, addr)
	case KindTransport:
		e = NewTransport(en.Time, TransportData{Tempo: en.Tempo, Beats: en.Beats, Flags: en.Flags, TimeSigNum: en.TimeSigNum, TimeSigDen: en.TimeSigDen})
	case KindMIDI:
		e = NewMIDI(en.Time, en.Port, 0, 0, 0)
		e.data = [4]uint32{en.Data0, en.Data1, en.Data2, en.Data3}
	case KindMIDI2:
		e = NewMIDI2(en.Time, en.Port, [4]uint32{en.Data0, en.Data1, en.Data2, en.Data3})
	case KindStringRef:
		e = NewStringRef(en.Time, en.StringID, en.Target)
		t.setString(en.StringID, en.Text)
	case KindBufferRef:
		e = NewBufferRef(en.Time, en.BufferID, en.BufferChannel, en.Value)
	case KindRouting:
		e = NewRouting(en.Time, en.Command, en.Source, en.Dest, en.Value)
	}
	e.Ext0, e.Ext1 = en.Ext0, en.Ext1
	if en.SpaceID != nil {
		e.Space = uint16(*en.SpaceID)
	}
	return e, nil
}

func (t *Timeline) MarshalYAML() (any, error) { return t.Document(), nil }

func (t *Timeline) UnmarshalYAML(node *yaml.Node) error {
	var doc Document
	if err := node.Decode(&doc); err != nil {
		return err
	}
	return t.replace(doc)
}

func (t *Timeline) MarshalJSON() ([]byte, error) { return json.Marshal(t.Document()) }

func (t *Timeline) UnmarshalJSON(data []byte) error {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	return t.replace(doc)
}

func (t *Timeline) replace(doc Document) error {
	n, err := FromDocument(doc)
	if err != nil {
		return err
	}
	*t = *n
	return nil
}

// Write encodes the timeline as YAML, or JSON if asJSON is set.
func (t *Timeline) Write(w io.Writer, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(t.Document()); err != nil {
			return fmt.Errorf("could not encode timeline as json: %w", err)
		}
		return nil
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(t.Document()); err != nil {
		return fmt.Errorf("could not encode timeline as yaml: %w", err)
	}
	return enc.Close()
}

// Read decodes a timeline from JSON or YAML, trying JSON first.
func Read(r io.Reader) (*Timeline, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("could not read timeline: %w", err)
	}
	var doc Document
	if errJSON := json.Unmarshal(data, &doc); errJSON != nil {
		doc = Document{}
		if errYaml := yaml.NewDecoder(bytes.NewReader(data)).Decode(&doc); errYaml != nil {
			return nil, fmt.Errorf("the timeline could not be parsed as .json (%v) or .yml (%v)", errJSON, errYaml)
		}
	}
	return FromDocument(doc)
}
