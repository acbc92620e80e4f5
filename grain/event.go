package grain

import (
	"fmt"
	"io"
	"slices"

	"github.com/Xenakios/AudioPluginHost-II-sub001"
	"gopkg.in/yaml.v3"
)

type (
	// Event is one grain: when it starts, how long it lasts and how it
	// sounds. Times are in seconds, angles in radians.
	Event struct {
		Time       float64           `yaml:"time"`
		Duration   float64           `yaml:"duration"`
		Frequency  float64           `yaml:"frequency"`
		Oscillator OscillatorKind    `yaml:"oscillator"`
		OscParam   float64           `yaml:"osc_param,omitempty"` // pulse width for square, modulation index for fm
		Envelope   EnvelopeKind      `yaml:"envelope"`
		Shape      float64           `yaml:"shape"` // peak position for cubic, frequency multiple for sine
		Filters    [2]FilterSettings `yaml:"filters,flow"`
		Routing    Routing           `yaml:"routing"`
		Feedback   float64           `yaml:"feedback,omitempty"`
		Azimuth    float64           `yaml:"azimuth,omitempty"`
		Elevation  float64           `yaml:"elevation,omitempty"`
		Volume     float64           `yaml:"volume"`
	}

	FilterSettings struct {
		Model     FilterModel `yaml:"model"`
		Cutoff    float64     `yaml:"cutoff"`
		Resonance float64     `yaml:"resonance"`
	}

	// GlobalParams apply to a whole prepared event list.
	GlobalParams struct {
		ReleaseTail float64 `yaml:"release_tail"` // seconds a voice keeps ringing after its grain
		MaxTime     float64 `yaml:"max_time"`     // grains ending after this are discarded; 0 means no limit
		Volume      float64 `yaml:"volume"`
	}

	// List is the YAML document form of a grain list.
	List struct {
		Params GlobalParams `yaml:"params"`
		Events []Event      `yaml:"events"`
	}

	OscillatorKind int
	EnvelopeKind   int
	Routing        int
)

const (
	OscSine OscillatorKind = iota
	OscSaw
	OscSquare
	OscTriangle
	OscNoise
	OscFM
	numOscillators
)

const (
	// EnvCubic rises with a cubic curve to the peak position given by Shape
	// (a fraction of the grain) and falls with a cubic curve to the end.
	EnvCubic EnvelopeKind = iota
	// EnvSine is a raised cosine at Shape times the grain frequency.
	EnvSine
	numEnvelopes
)

const (
	Series Routing = iota
	Parallel
	numRoutings
)

var (
	oscillatorNames = []string{"sine", "saw", "square", "triangle", "noise", "fm"}
	envelopeNames   = []string{"cubic", "sine"}
	routingNames    = []string{"series", "parallel"}
)

func DefaultParams() GlobalParams {
	return GlobalParams{ReleaseTail: 0.05, Volume: 1}
}

func (k OscillatorKind) String() string { return enumName(oscillatorNames, int(k)) }
func (k EnvelopeKind) String() string   { return enumName(envelopeNames, int(k)) }
func (r Routing) String() string        { return enumName(routingNames, int(r)) }

func (k OscillatorKind) MarshalText() ([]byte, error) { return marshalEnum(oscillatorNames, int(k)) }
func (k EnvelopeKind) MarshalText() ([]byte, error)   { return marshalEnum(envelopeNames, int(k)) }
func (r Routing) MarshalText() ([]byte, error)        { return marshalEnum(routingNames, int(r)) }

func (k *OscillatorKind) UnmarshalText(b []byte) error {
	return unmarshalEnum(oscillatorNames, "oscillator", b, (*int)(k))
}

func (k *EnvelopeKind) UnmarshalText(b []byte) error {
	return unmarshalEnum(envelopeNames, "envelope", b, (*int)(k))
}

func (r *Routing) UnmarshalText(b []byte) error {
	return unmarshalEnum(routingNames, "routing", b, (*int)(r))
}

func enumName(names []string, i int) string {
	if i < 0 || i >= len(names) {
		return fmt.Sprintf("unknown(%d)", i)
	}
	return names[i]
}

func marshalEnum(names []string, i int) ([]byte, error) {
	if i < 0 || i >= len(names) {
		return nil, fmt.Errorf("invalid enum value %d", i)
	}
	return []byte(names[i]), nil
}

func unmarshalEnum(names []string, what string, b []byte, dst *int) error {
	i := slices.Index(names, string(b))
	if i < 0 {
		return plughost.ConfigErrorf("unknown %s %q", what, b)
	}
	*dst = i
	return nil
}

// End returns the time at which the grain itself ends.
func (e *Event) End() float64 { return e.Time + e.Duration }

// ReadList decodes a YAML grain list. Missing params get DefaultParams.
func ReadList(r io.Reader) (List, error) {
	l := List{Params: DefaultParams()}
	if err := yaml.NewDecoder(r).Decode(&l); err != nil {
		return List{}, fmt.Errorf("could not decode grain list: %w", err)
	}
	return l, nil
}

func (l List) Write(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(l); err != nil {
		return fmt.Errorf("could not encode grain list: %w", err)
	}
	return enc.Close()
}
