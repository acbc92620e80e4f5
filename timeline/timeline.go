// Package timeline stores timestamped events and reads them back in
// block-sized windows during rendering.
//
// A Timeline must be sorted before it is read. Adding events in
// non-decreasing time order keeps it sorted; adding an event earlier than
// the last one marks it unsorted until Sort is called.
package timeline

import (
	"cmp"
	"slices"
)

type Timeline struct {
	events       []Event
	strings      map[uint32]string
	nextStringID uint32
	sorted       bool
}

func New() *Timeline {
	return &Timeline{strings: map[uint32]string{}, sorted: true}
}

// Add appends an event. O(1) amortized.
func (t *Timeline) Add(e Event) {
	if n := len(t.events); n > 0 && e.Time < t.events[n-1].Time {
		t.sorted = false
	}
	t.events = append(t.events, e)
}

func (t *Timeline) AddNoteOn(time float64, port, channel, key int16, noteID int32, velocity float64) {
	t.Add(NewNoteOn(time, NoteAddress{Port: port, Channel: channel, Key: key, NoteID: noteID}, velocity))
}

func (t *Timeline) AddNoteOff(time float64, port, channel, key int16, noteID int32, velocity float64) {
	t.Add(NewNoteOff(time, NoteAddress{Port: port, Channel: channel, Key: key, NoteID: noteID}, velocity))
}

func (t *Timeline) AddParamValue(time float64, paramID uint32, value float64) {
	t.Add(NewParamValue(time, paramID, value, AnyNote))
}

func (t *Timeline) AddMIDI(time float64, port int16, status, data1, data2 byte) {
	t.Add(NewMIDI(time, port, status, data1, data2))
}

// AddString stores s in the string table and adds a string-reference event
// pointing to it. Returns the string id.
func (t *Timeline) AddString(time float64, s string, target uint32) uint32 {
	id := t.nextStringID
	t.setString(id, s)
	t.Add(NewStringRef(time, id, target))
	return id
}

// String looks up an entry of the string table.
func (t *Timeline) String(id uint32) (string, bool) {
	s, ok := t.strings[id]
	return s, ok
}

func (t *Timeline) setString(id uint32, s string) {
	if t.strings == nil {
		t.strings = map[uint32]string{}
	}
	t.strings[id] = s
	if id >= t.nextStringID {
		t.nextStringID = id + 1
	}
}

// Merge adds every event of src. Strings referenced by src are copied into
// the string table of t under new ids.
func (t *Timeline) Merge(src *Timeline) {
	ids := map[uint32]uint32{}
	for _, e := range src.events {
		if e.Kind == KindStringRef {
			old := e.id
			id, ok := ids[old]
			if !ok {
				id = t.nextStringID
				t.setString(id, src.strings[old])
				ids[old] = id
			}
			e.id = id
		}
		t.Add(e)
	}
}

// Sort orders the events by time. Events with equal timestamps keep their
// insertion order.
func (t *Timeline) Sort() {
	if !t.sorted {
		slices.SortStableFunc(t.events, func(a, b Event) int { return cmp.Compare(a.Time, b.Time) })
	}
	t.sorted = true
}

func (t *Timeline) IsSorted() bool { return t.sorted }

// Clear removes all events and strings, keeping the allocated capacity.
func (t *Timeline) Clear() {
	t.events = t.events[:0]
	clear(t.strings)
	t.nextStringID = 0
	t.sorted = true
}

func (t *Timeline) NumEvents() int { return len(t.events) }

func (t *Timeline) Event(i int) Event { return t.events[i] }

// Events returns the events in their current order. The slice aliases the
// timeline and must not be modified.
func (t *Timeline) Events() []Event { return t.events[:len(t.events):len(t.events)] }

// MaximumEventTime returns the largest timestamp, or 0 for an empty
// timeline.
func (t *Timeline) MaximumEventTime() float64 {
	if len(t.events) == 0 {
		return 0
	}
	if t.sorted {
		return t.events[len(t.events)-1].Time
	}
	ret := t.events[0].Time
	for _, e := range t.events[1:] {
		ret = max(ret, e.Time)
	}
	return ret
}
