package timeline

import (
	"fmt"
	"io"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

// ReadSMF imports a Standard MIDI File. Event times come from the file's
// tempo map; each track becomes a port. Meta and system exclusive messages
// are skipped. The returned timeline is sorted.
func ReadSMF(r io.Reader) (*Timeline, error) {
	t := New()
	rd := smf.ReadTracksFrom(r)
	rd.Do(func(te smf.TrackEvent) {
		if te.Message.IsMeta() || len(te.Message) == 0 || te.Message[0] == 0xF0 || te.Message[0] == 0xF7 {
			return
		}
		t.Add(FromMIDI(float64(te.AbsMicroSeconds)/1e6, int16(te.TrackNo), midi.Message(te.Message)))
	})
	if err := rd.Error(); err != nil {
		return nil, fmt.Errorf("could not read midi file: %w", err)
	}
	t.Sort()
	return t, nil
}
