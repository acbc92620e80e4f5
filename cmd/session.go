// Package cmd has the pieces shared by the plughost binaries: reading input
// files, building the reference chains from settings and writing renders.
package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/Xenakios/AudioPluginHost-II-sub001"
	"github.com/Xenakios/AudioPluginHost-II-sub001/chain"
	"github.com/Xenakios/AudioPluginHost-II-sub001/config"
	"github.com/Xenakios/AudioPluginHost-II-sub001/grain"
	"github.com/Xenakios/AudioPluginHost-II-sub001/timeline"
	"github.com/Xenakios/AudioPluginHost-II-sub001/units"
)

// ReadTimeline reads a Standard MIDI File (.mid, .midi) or a YAML or JSON
// timeline document.
func ReadTimeline(path string) (*timeline.Timeline, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("could not open %v: %w", path, err)
	}
	defer f.Close()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mid", ".midi":
		return timeline.ReadSMF(f)
	}
	return timeline.Read(f)
}

func ReadGrainList(path string) (grain.List, error) {
	f, err := os.Open(path)
	if err != nil {
		return grain.List{}, fmt.Errorf("could not open %v: %w", path, err)
	}
	defer f.Close()
	return grain.ReadList(f)
}

// NewToneChain builds the note-driven reference chain: a Tone synthesizer
// followed by a Gain stage. The timeline, if any, is scheduled on the Tone.
func NewToneChain(s *config.Settings, tone units.ToneSettings, tl *timeline.Timeline, log *slog.Logger) (*chain.Engine, error) {
	synth, err := units.NewTone(tone)
	if err != nil {
		return nil, err
	}
	e := chain.NewEngine(s.ChainOptions(log))
	entry, err := e.AddUnit(synth)
	if err != nil {
		e.Close()
		return nil, err
	}
	if tl != nil {
		entry.Timeline().Merge(tl)
	}
	if _, err := e.AddUnit(units.NewGain(s.Audio.Channels, 1, s.Chain.GainSmoothing)); err != nil {
		e.Close()
		return nil, err
	}
	return e, nil
}

// NewGrainChain hosts a grain unit playing list.
func NewGrainChain(s *config.Settings, list grain.List, log *slog.Logger) (*chain.Engine, *grain.Unit, error) {
	u := grain.NewUnit(s.PoolOptions(), list)
	e := chain.NewEngine(s.ChainOptions(log))
	if _, err := e.AddUnit(u); err != nil {
		e.Close()
		return nil, nil, err
	}
	return e, u, nil
}

// OutputPath places input's base name with a new extension in dir, or next
// to the input when dir is empty.
func OutputPath(dir, input, extension string) string {
	if dir == "" {
		dir = filepath.Dir(input)
	}
	name := filepath.Base(input)
	return filepath.Join(dir, strings.TrimSuffix(name, filepath.Ext(name))+extension)
}

type OutputFormat struct {
	Raw      bool // interleaved samples instead of .wav
	PCM16    bool // 16-bit .raw samples instead of float32
	BitDepth int  // of .wav files
}

// WriteAudio writes buf to path, creating the directory if needed.
func WriteAudio(path string, buf plughost.AudioBuffer, sampleRate int, format OutputFormat) error {
	if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
		return fmt.Errorf("could not create output directory: %w", err)
	}
	if format.Raw {
		raw, err := plughost.Raw(buf, format.PCM16)
		if err != nil {
			return fmt.Errorf("could not generate .raw file: %w", err)
		}
		return os.WriteFile(path, raw, 0o644)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("could not create %v: %w", path, err)
	}
	if err := plughost.WriteWav(f, buf, sampleRate, format.BitDepth); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
