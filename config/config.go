// Package config loads the settings of the command line tools with viper:
// built-in defaults, then an optional YAML file, then PLUGHOST_* environment
// variables, then command line flags bound by the caller.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Xenakios/AudioPluginHost-II-sub001"
	"github.com/Xenakios/AudioPluginHost-II-sub001/chain"
	"github.com/Xenakios/AudioPluginHost-II-sub001/grain"
	"github.com/Xenakios/AudioPluginHost-II-sub001/logging"
	"github.com/spf13/viper"
)

const EnvPrefix = "PLUGHOST"

type (
	Settings struct {
		Audio   AudioSettings   `mapstructure:"audio"`
		Chain   ChainSettings   `mapstructure:"chain"`
		Grains  GrainSettings   `mapstructure:"grains"`
		Log     logging.Config  `mapstructure:"log"`
		Metrics MetricsSettings `mapstructure:"metrics"`
	}

	AudioSettings struct {
		SampleRate int           `mapstructure:"samplerate"`
		BlockSize  int           `mapstructure:"blocksize"`
		Channels   int           `mapstructure:"channels"`
		BitDepth   int           `mapstructure:"bitdepth"`   // of rendered WAV files
		BufferSize time.Duration `mapstructure:"buffersize"` // output device buffer
	}

	ChainSettings struct {
		MessageQueue   int           `mapstructure:"messagequeue"`
		CommandQueue   int           `mapstructure:"commandqueue"`
		MaxDelayed     int           `mapstructure:"maxdelayed"`
		MaxBlockEvents int           `mapstructure:"maxblockevents"`
		GainSmoothing  float64       `mapstructure:"gainsmoothing"`
		StopTimeout    time.Duration `mapstructure:"stoptimeout"`
	}

	GrainSettings struct {
		Voices    int     `mapstructure:"voices"`
		Channels  int     `mapstructure:"channels"`
		Lookahead float64 `mapstructure:"lookahead"`
		Smoothing float64 `mapstructure:"smoothing"`
	}

	MetricsSettings struct {
		Enabled bool   `mapstructure:"enabled"`
		Listen  string `mapstructure:"listen"`
	}
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("audio.samplerate", 48000)
	v.SetDefault("audio.blocksize", 256)
	v.SetDefault("audio.channels", 2)
	v.SetDefault("audio.bitdepth", 16)
	v.SetDefault("audio.buffersize", "20ms")

	def := chain.DefaultOptions()
	v.SetDefault("chain.messagequeue", def.MessageQueueSize)
	v.SetDefault("chain.commandqueue", def.CommandQueueSize)
	v.SetDefault("chain.maxdelayed", def.MaxDelayedMessages)
	v.SetDefault("chain.maxblockevents", def.MaxBlockEvents)
	v.SetDefault("chain.gainsmoothing", def.GainSmoothing)
	v.SetDefault("chain.stoptimeout", def.StopTimeout.String())

	pool := grain.DefaultPoolOptions()
	v.SetDefault("grains.voices", pool.Voices)
	v.SetDefault("grains.channels", pool.Channels)
	v.SetDefault("grains.lookahead", pool.Lookahead)
	v.SetDefault("grains.smoothing", pool.Smoothing)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.file", "")
	v.SetDefault("log.maxsize", 10)
	v.SetDefault("log.maxbackups", 3)

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.listen", "localhost:9464")
}

// New returns a viper instance with defaults and environment lookup set up.
// Callers may bind flags to it before calling Load.
func New() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

// Load reads file (if not empty) into v and returns the validated settings.
func Load(v *viper.Viper, file string) (*Settings, error) {
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}
	s := &Settings{}
	if err := v.Unmarshal(s); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate reports every invalid setting at once.
func (s *Settings) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, plughost.ConfigErrorf(format, args...))
		}
	}
	check(s.Audio.SampleRate >= 8000 && s.Audio.SampleRate <= 384000, "audio.samplerate %d out of range", s.Audio.SampleRate)
	check(s.Audio.BlockSize > 0 && s.Audio.BlockSize <= 8192, "audio.blocksize %d out of range", s.Audio.BlockSize)
	check(s.Audio.Channels > 0 && s.Audio.Channels <= grain.MaxChannels, "audio.channels %d out of range", s.Audio.Channels)
	check(s.Audio.BitDepth == 16 || s.Audio.BitDepth == 24, "audio.bitdepth must be 16 or 24")
	check(s.Audio.BufferSize > 0, "audio.buffersize must be positive")
	check(s.Chain.MessageQueue > 0 && s.Chain.CommandQueue > 0, "chain queue sizes must be positive")
	check(s.Chain.MaxDelayed > 0 && s.Chain.MaxBlockEvents > 0, "chain event limits must be positive")
	check(s.Chain.GainSmoothing >= 0, "chain.gainsmoothing must not be negative")
	check(s.Chain.StopTimeout > 0, "chain.stoptimeout must be positive")
	check(s.Grains.Voices > 0, "grains.voices must be positive")
	check(s.Grains.Channels > 0 && s.Grains.Channels <= grain.MaxChannels, "grains.channels %d out of range", s.Grains.Channels)
	check(s.Grains.Lookahead >= 0 && s.Grains.Smoothing >= 0, "grains.lookahead and grains.smoothing must not be negative")
	if _, err := logging.ParseLevel(s.Log.Level); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// ChainOptions converts the chain settings for chain.NewEngine.
func (s *Settings) ChainOptions(log *slog.Logger) chain.Options {
	return chain.Options{
		MessageQueueSize:   s.Chain.MessageQueue,
		CommandQueueSize:   s.Chain.CommandQueue,
		MaxDelayedMessages: s.Chain.MaxDelayed,
		MaxBlockEvents:     s.Chain.MaxBlockEvents,
		GainSmoothing:      s.Chain.GainSmoothing,
		StopTimeout:        s.Chain.StopTimeout,
		Logger:             log,
	}
}

// PoolOptions converts the grain settings. SampleRate and MaxFrames come
// from the audio settings.
func (s *Settings) PoolOptions() grain.PoolOptions {
	return grain.PoolOptions{
		Voices:     s.Grains.Voices,
		Channels:   s.Grains.Channels,
		SampleRate: float64(s.Audio.SampleRate),
		MaxFrames:  s.Audio.BlockSize,
		Lookahead:  s.Grains.Lookahead,
		Smoothing:  s.Grains.Smoothing,
	}
}
