// Package units has small processing units for exercising a chain: a
// polyphonic sine synthesizer played by note events and a gain stage driven
// by parameter events. They are hosted the same way as any third party unit.
package units

import (
	"fmt"
	"io"
	"math"
	"sync"

	"github.com/Xenakios/AudioPluginHost-II-sub001"
	"github.com/Xenakios/AudioPluginHost-II-sub001/timeline"
	"gopkg.in/yaml.v3"
)

const (
	ToneID = "plughost.tone"

	// ParamVolume sets the output volume of Tone and the gain of Gain.
	ParamVolume uint32 = 0

	maxToneVoices = 32
	allNotesOff   = 123
)

type (
	// Tone is a polyphonic sine synthesizer. Note events and raw MIDI note
	// messages start and release voices; MIDI "all notes off" releases them
	// all.
	Tone struct {
		mu       sync.Mutex
		settings ToneSettings

		// audio thread; cur is the settings at activation
		cur        ToneSettings
		sampleRate float64
		volume     float64
		voices     [maxToneVoices]toneVoice
	}

	ToneSettings struct {
		Voices  int     `yaml:"voices"`
		Volume  float64 `yaml:"volume"`
		Attack  float64 `yaml:"attack"`  // seconds
		Release float64 `yaml:"release"` // seconds
	}

	toneVoice struct {
		key               int16
		channel           int16
		noteID            int32
		sustain           bool
		level             float64
		phase, inc        float64
		samplesSinceEvent int
	}
)

var _ plughost.StatefulUnit = (*Tone)(nil)

func DefaultToneSettings() ToneSettings {
	return ToneSettings{Voices: 8, Volume: 0.3, Attack: 0.005, Release: 0.1}
}

func NewTone(s ToneSettings) (*Tone, error) {
	if err := s.validate(); err != nil {
		return nil, err
	}
	return &Tone{settings: s}, nil
}

func (s ToneSettings) validate() error {
	if s.Voices < 1 || s.Voices > maxToneVoices {
		return plughost.ConfigErrorf("tone voices must be in [1, %d], got %d", maxToneVoices, s.Voices)
	}
	if s.Attack < 0 || s.Release < 0 {
		return plughost.ConfigErrorf("tone attack and release must not be negative")
	}
	return nil
}

func (t *Tone) ID() string { return ToneID }

func (t *Tone) Channels() (inputs, outputs int) { return 0, 2 }

func (t *Tone) Activate(sampleRate float64, maxFrames int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cur = t.settings
	t.sampleRate = sampleRate
	t.volume = t.cur.Volume
	t.voices = [maxToneVoices]toneVoice{}
	return nil
}

func (t *Tone) Deactivate() {}

func (t *Tone) Process(p *plughost.Process) plughost.ProcessStatus {
	p.Out.Clear()
	s := &t.cur
	attack := envelopeStep(s.Attack, t.sampleRate)
	release := envelopeStep(s.Release, t.sampleRate)
	next := 0
	for i := 0; i < p.Frames; i++ {
		for next < len(p.Events) && p.Events[next].Time <= float64(i) {
			t.handle(p.Events[next])
			next++
		}
		var sample float64
		for v := range t.voices[:s.Voices] {
			voice := &t.voices[v]
			if voice.sustain {
				voice.level = min(voice.level+attack, 1)
			} else {
				voice.level = max(voice.level-release, 0)
			}
			if voice.level == 0 {
				continue
			}
			sample += voice.level * math.Sin(2*math.Pi*voice.phase)
			voice.phase += voice.inc
			voice.phase -= math.Floor(voice.phase)
		}
		out := float32(sample * t.volume)
		for _, ch := range p.Out {
			ch[i] = out
		}
	}
	for v := range t.voices[:s.Voices] {
		t.voices[v].samplesSinceEvent += p.Frames
	}
	return plughost.StatusContinue
}

func envelopeStep(seconds, sampleRate float64) float64 {
	if seconds <= 0 || sampleRate <= 0 {
		return 1
	}
	return 1 / (seconds * sampleRate)
}

func (t *Tone) handle(e timeline.Event) {
	switch e.Kind {
	case timeline.KindNoteOn:
		n, _ := e.Note()
		t.trigger(n.NoteAddress)
	case timeline.KindNoteOff, timeline.KindNoteChoke, timeline.KindNoteEnd:
		n, _ := e.Note()
		t.release(n.NoteAddress)
	case timeline.KindParamValue:
		if p, _ := e.Param(); p.ParamID == ParamVolume {
			t.volume = max(p.Value, 0)
		}
	case timeline.KindMIDI:
		m, _ := e.MIDI()
		status, data1, data2 := byte(m.Data[0]), int16(m.Data[1]), m.Data[2]
		addr := timeline.NoteAddress{Port: m.Port, Channel: int16(status & 0x0F), Key: data1, NoteID: -1}
		switch {
		case status&0xF0 == 0x90 && data2 > 0:
			t.trigger(addr)
		case status&0xF0 == 0x80 || status&0xF0 == 0x90:
			t.release(addr)
		case status&0xF0 == 0xB0 && data1 == allNotesOff:
			for v := range t.voices {
				t.voices[v].sustain = false
			}
		}
	}
}

// trigger prefers a released voice over a sounding one and, among equals,
// the one that changed longest ago.
func (t *Tone) trigger(addr timeline.NoteAddress) {
	age := 0
	oldestReleased := false
	oldest := 0
	for i := range t.voices[:t.cur.Voices] {
		v := &t.voices[i]
		if (!v.sustain && !oldestReleased) ||
			(!v.sustain == oldestReleased && v.samplesSinceEvent >= age) {
			oldest = i
			oldestReleased = !v.sustain
			age = v.samplesSinceEvent
		}
	}
	v := &t.voices[oldest]
	*v = toneVoice{
		key:     addr.Key,
		channel: addr.Channel,
		noteID:  addr.NoteID,
		sustain: true,
		level:   v.level,
		phase:   v.phase,
		inc:     440 * math.Pow(2, (float64(addr.Key)-69)/12) / t.sampleRate,
	}
}

func (t *Tone) release(addr timeline.NoteAddress) {
	for i := range t.voices[:t.cur.Voices] {
		v := &t.voices[i]
		if v.sustain && matches(addr, v) {
			v.sustain = false
			v.samplesSinceEvent = 0
		}
	}
}

func matches(addr timeline.NoteAddress, v *toneVoice) bool {
	if addr.NoteID >= 0 && v.noteID >= 0 {
		return addr.NoteID == v.noteID
	}
	return (addr.Key < 0 || addr.Key == v.key) && (addr.Channel < 0 || addr.Channel == v.channel)
}

// Voices returns the number of voices currently holding a note.
func (t *Tone) Voices() int {
	n := 0
	for i := range t.voices[:t.cur.Voices] {
		if t.voices[i].sustain {
			n++
		}
	}
	return n
}

func (t *Tone) Settings() ToneSettings {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.settings
}

func (t *Tone) SaveState(w io.Writer) error {
	return yaml.NewEncoder(w).Encode(t.Settings())
}

// LoadState replaces the settings. They take effect at the next activation.
func (t *Tone) LoadState(r io.Reader) error {
	var s ToneSettings
	if err := yaml.NewDecoder(r).Decode(&s); err != nil {
		return fmt.Errorf("%w: could not decode tone settings: %v", plughost.ErrProtocolViolation, err)
	}
	if err := s.validate(); err != nil {
		return err
	}
	t.mu.Lock()
	t.settings = s
	t.mu.Unlock()
	return nil
}
