package timeline

import (
	"math"

	"gitlab.com/gomidi/midi/v2"
)

type (
	// Kind tells which payload an Event carries. The numeric values are the
	// "type" discriminants of the serialized form.
	Kind uint16

	// Event is a timestamped event. The payload is private and read through
	// the kind-checked accessors (Note, Param, ...), each of which returns
	// ok=false for events of other kinds. Events are plain values: copying
	// one never allocates.
	Event struct {
		Time  float64
		Kind  Kind
		Space uint16 // event space; DefaultSpace(Kind) unless overridden
		Ext0  int64
		Ext1  int64

		addr  NoteAddress
		id    uint32
		value float64
		data  [4]uint32
	}

	// NoteAddress selects the note(s) an event applies to. -1 in any field is
	// a wildcard.
	NoteAddress struct {
		Port    int16
		Channel int16
		Key     int16
		NoteID  int32
	}

	NoteData struct {
		NoteAddress
		Velocity float64
	}

	ExpressionData struct {
		NoteAddress
		ExpressionID uint32
		Value        float64
	}

	ParamData struct {
		NoteAddress
		ParamID uint32
		Value   float64
	}

	TransportData struct {
		Tempo      float64
		Beats      float64
		Flags      uint32
		TimeSigNum uint16
		TimeSigDen uint16
	}

	// MIDIData is raw protocol data: three bytes in Data[0..2] for KindMIDI,
	// four 32-bit words for KindMIDI2.
	MIDIData struct {
		Port int16
		Data [4]uint32
	}

	// StringData refers to an entry of the owning timeline's string table.
	StringData struct {
		StringID uint32
		Target   uint32
	}

	BufferData struct {
		BufferID uint32
		Channel  uint32
		Gain     float64
	}

	RoutingData struct {
		Command uint32
		Source  uint32
		Dest    uint32
		Amount  float64
	}
)

const (
	KindNoteOn         Kind = 0
	KindNoteOff        Kind = 1
	KindNoteChoke      Kind = 2
	KindNoteEnd        Kind = 3
	KindNoteExpression Kind = 4
	KindParamValue     Kind = 5
	KindParamMod       Kind = 6
	KindTransport      Kind = 9
	KindMIDI           Kind = 10
	KindMIDI2          Kind = 12

	// Host extension kinds live in ExtensionSpace.
	KindStringRef Kind = 100
	KindBufferRef Kind = 101
	KindRouting   Kind = 102
)

const (
	CoreSpace      uint16 = 0
	ExtensionSpace uint16 = 0x5048
)

// Transport flags
const (
	TransportPlaying uint32 = 1 << iota
	TransportRecording
	TransportLooping
	TransportTempoValid
)

// Expression ids
const (
	ExpressionVolume uint32 = iota
	ExpressionPan
	ExpressionTuning
	ExpressionVibrato
	ExpressionExpression
	ExpressionBrightness
	ExpressionPressure
)

// AnyNote addresses every note on every port and channel.
var AnyNote = NoteAddress{Port: -1, Channel: -1, Key: -1, NoteID: -1}

var kindNames = map[Kind]string{
	KindNoteOn:         "note-on",
	KindNoteOff:        "note-off",
	KindNoteChoke:      "note-choke",
	KindNoteEnd:        "note-end",
	KindNoteExpression: "note-expression",
	KindParamValue:     "param-value",
	KindParamMod:       "param-mod",
	KindTransport:      "transport",
	KindMIDI:           "midi",
	KindMIDI2:          "midi2",
	KindStringRef:      "string-ref",
	KindBufferRef:      "buffer-ref",
	KindRouting:        "routing",
}

// Kinds lists every supported kind in discriminant order.
var Kinds = []Kind{
	KindNoteOn, KindNoteOff, KindNoteChoke, KindNoteEnd, KindNoteExpression,
	KindParamValue, KindParamMod, KindTransport, KindMIDI, KindMIDI2,
	KindStringRef, KindBufferRef, KindRouting,
}

func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return "unknown"
}

func (k Kind) Valid() bool {
	_, ok := kindNames[k]
	return ok
}

func (k Kind) IsNote() bool { return k <= KindNoteEnd }

func (k Kind) IsParam() bool { return k == KindParamValue || k == KindParamMod }

func (k Kind) IsMIDI() bool { return k == KindMIDI || k == KindMIDI2 }

// DefaultSpace returns the event space an event of kind k belongs to when
// not overridden.
func DefaultSpace(k Kind) uint16 {
	if k >= KindStringRef {
		return ExtensionSpace
	}
	return CoreSpace
}

func newEvent(t float64, k Kind) Event {
	return Event{Time: t, Kind: k, Space: DefaultSpace(k)}
}

func NewNoteOn(t float64, addr NoteAddress, velocity float64) Event {
	e := newEvent(t, KindNoteOn)
	e.addr, e.value = addr, velocity
	return e
}

func NewNoteOff(t float64, addr NoteAddress, velocity float64) Event {
	e := newEvent(t, KindNoteOff)
	e.addr, e.value = addr, velocity
	return e
}

func NewNoteChoke(t float64, addr NoteAddress) Event {
	e := newEvent(t, KindNoteChoke)
	e.addr = addr
	return e
}

func NewNoteEnd(t float64, addr NoteAddress) Event {
	e := newEvent(t, KindNoteEnd)
	e.addr = addr
	return e
}

func NewNoteExpression(t float64, addr NoteAddress, expressionID uint32, value float64) Event {
	e := newEvent(t, KindNoteExpression)
	e.addr, e.id, e.value = addr, expressionID, value
	return e
}

func NewParamValue(t float64, paramID uint32, value float64, addr NoteAddress) Event {
	e := newEvent(t, KindParamValue)
	e.addr, e.id, e.value = addr, paramID, value
	return e
}

func NewParamMod(t float64, paramID uint32, amount float64, addr NoteAddress) Event {
	e := newEvent(t, KindParamMod)
	e.addr, e.id, e.value = addr, paramID, amount
	return e
}

func NewTransport(t float64, tr TransportData) Event {
	e := newEvent(t, KindTransport)
	bits := math.Float64bits(tr.Beats)
	e.value = tr.Tempo
	e.data = [4]uint32{tr.Flags, uint32(tr.TimeSigNum)<<16 | uint32(tr.TimeSigDen), uint32(bits >> 32), uint32(bits)}
	return e
}

// NewMIDI returns a three-byte raw MIDI event.
func NewMIDI(t float64, port int16, status, data1, data2 byte) Event {
	e := newEvent(t, KindMIDI)
	e.addr = NoteAddress{Port: port, Channel: -1, Key: -1, NoteID: -1}
	e.data = [4]uint32{uint32(status), uint32(data1), uint32(data2), 0}
	return e
}

// NewMIDI2 returns a raw event carrying up to four 32-bit protocol words.
func NewMIDI2(t float64, port int16, words [4]uint32) Event {
	e := newEvent(t, KindMIDI2)
	e.addr = NoteAddress{Port: port, Channel: -1, Key: -1, NoteID: -1}
	e.data = words
	return e
}

func NewStringRef(t float64, stringID, target uint32) Event {
	e := newEvent(t, KindStringRef)
	e.id = stringID
	e.data[0] = target
	return e
}

func NewBufferRef(t float64, bufferID, channel uint32, gain float64) Event {
	e := newEvent(t, KindBufferRef)
	e.id, e.value = bufferID, gain
	e.data[0] = channel
	return e
}

func NewRouting(t float64, command, source, dest uint32, amount float64) Event {
	e := newEvent(t, KindRouting)
	e.id, e.value = command, amount
	e.data[0], e.data[1] = source, dest
	return e
}

// WithTime returns a copy of the event with a different timestamp.
func (e Event) WithTime(t float64) Event {
	e.Time = t
	return e
}

func (e Event) Note() (NoteData, bool) {
	if !e.Kind.IsNote() {
		return NoteData{}, false
	}
	return NoteData{NoteAddress: e.addr, Velocity: e.value}, true
}

func (e Event) Expression() (ExpressionData, bool) {
	if e.Kind != KindNoteExpression {
		return ExpressionData{}, false
	}
	return ExpressionData{NoteAddress: e.addr, ExpressionID: e.id, Value: e.value}, true
}

func (e Event) Param() (ParamData, bool) {
	if !e.Kind.IsParam() {
		return ParamData{}, false
	}
	return ParamData{NoteAddress: e.addr, ParamID: e.id, Value: e.value}, true
}

func (e Event) Transport() (TransportData, bool) {
	if e.Kind != KindTransport {
		return TransportData{}, false
	}
	return TransportData{
		Tempo:      e.value,
		Beats:      math.Float64frombits(uint64(e.data[2])<<32 | uint64(e.data[3])),
		Flags:      e.data[0],
		TimeSigNum: uint16(e.data[1] >> 16),
		TimeSigDen: uint16(e.data[1]),
	}, true
}

func (e Event) MIDI() (MIDIData, bool) {
	if !e.Kind.IsMIDI() {
		return MIDIData{}, false
	}
	return MIDIData{Port: e.addr.Port, Data: e.data}, true
}

func (e Event) StringRef() (StringData, bool) {
	if e.Kind != KindStringRef {
		return StringData{}, false
	}
	return StringData{StringID: e.id, Target: e.data[0]}, true
}

func (e Event) BufferRef() (BufferData, bool) {
	if e.Kind != KindBufferRef {
		return BufferData{}, false
	}
	return BufferData{BufferID: e.id, Channel: e.data[0], Gain: e.value}, true
}

func (e Event) Routing() (RoutingData, bool) {
	if e.Kind != KindRouting {
		return RoutingData{}, false
	}
	return RoutingData{Command: e.id, Source: e.data[0], Dest: e.data[1], Amount: e.value}, true
}

// MIDIMessage converts note and three-byte MIDI events to a gomidi message.
// It allocates, so it is meant for the control thread.
func (e Event) MIDIMessage() (midi.Message, bool) {
	switch e.Kind {
	case KindMIDI:
		return midi.Message{byte(e.data[0]), byte(e.data[1]), byte(e.data[2])}, true
	case KindNoteOn, KindNoteOff:
		if e.addr.Channel < 0 || e.addr.Key < 0 {
			return nil, false
		}
		vel := uint8(math.Max(0, math.Min(127, math.Round(e.value*127))))
		if e.Kind == KindNoteOn {
			return midi.NoteOn(uint8(e.addr.Channel), uint8(e.addr.Key), vel), true
		}
		return midi.NoteOffVelocity(uint8(e.addr.Channel), uint8(e.addr.Key), vel), true
	}
	return nil, false
}

// FromMIDI converts a MIDI message to an event: note on/off become note
// events with velocity scaled to [0, 1] (note on with velocity 0 is a note
// off), everything else a raw KindMIDI event with the first three bytes.
func FromMIDI(t float64, port int16, msg midi.Message) Event {
	var channel, key, velocity uint8
	switch {
	case msg.GetNoteStart(&channel, &key, &velocity):
		return NewNoteOn(t, NoteAddress{Port: port, Channel: int16(channel), Key: int16(key), NoteID: -1}, float64(velocity)/127)
	case msg.GetNoteEnd(&channel, &key):
		var vel uint8
		msg.GetNoteOff(&channel, &key, &vel)
		return NewNoteOff(t, NoteAddress{Port: port, Channel: int16(channel), Key: int16(key), NoteID: -1}, float64(vel)/127)
	}
	var b [3]byte
	copy(b[:], msg)
	return NewMIDI(t, port, b[0], b[1], b[2])
}
