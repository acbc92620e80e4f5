package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Xenakios/AudioPluginHost-II-sub001"
	"github.com/Xenakios/AudioPluginHost-II-sub001/chain"
	"github.com/Xenakios/AudioPluginHost-II-sub001/cmd"
	"github.com/Xenakios/AudioPluginHost-II-sub001/logging"
	"github.com/Xenakios/AudioPluginHost-II-sub001/metrics"
	"github.com/Xenakios/AudioPluginHost-II-sub001/midiin"
	"github.com/Xenakios/AudioPluginHost-II-sub001/oto"
	"github.com/Xenakios/AudioPluginHost-II-sub001/timeline"
	"github.com/Xenakios/AudioPluginHost-II-sub001/units"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

type playFlags struct {
	midiIn    string
	midiFirst bool
	latency   time.Duration
	duration  time.Duration
	tail      float64
	pcm       bool
}

func playCommand(a *app) *cobra.Command {
	var f playFlags
	c := &cobra.Command{
		Use:   "play [timeline]",
		Short: "Play the tone chain live",
		Long: `Play the tone chain through the default audio device. An optional
timeline is played from the start; MIDI input, if opened, plays the chain
live. Without a timeline or MIDI input, play runs until interrupted.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			var tl *timeline.Timeline
			if len(args) == 1 {
				var err error
				if tl, err = cmd.ReadTimeline(args[0]); err != nil {
					return err
				}
			}
			return a.play(c.Context(), tl, f)
		},
	}
	c.Flags().StringVar(&f.midiIn, "midi-in", "", "Open the MIDI input whose name starts with this prefix")
	c.Flags().BoolVar(&f.midiFirst, "midi-first", false, "Open the first MIDI input found")
	c.Flags().DurationVar(&f.latency, "midi-latency", 5*time.Millisecond, "Delay applied to incoming MIDI to even out jitter")
	c.Flags().DurationVarP(&f.duration, "duration", "d", 0, "Stop after this long; 0 plays the timeline to its end")
	c.Flags().Float64Var(&f.tail, "tail", 1, "Seconds played after the last timeline event")
	c.Flags().BoolVar(&f.pcm, "pcm", false, "Send 16-bit samples to the device instead of float32")
	return c
}

func (a *app) play(ctx context.Context, tl *timeline.Timeline, f playFlags) (err error) {
	log := logging.ForService("play")
	s := a.settings
	e, err := cmd.NewToneChain(s, units.DefaultToneSettings(), tl, logging.ForService("chain"))
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, e.Close()) }()
	if err := e.Activate(float64(s.Audio.SampleRate), s.Audio.BlockSize); err != nil {
		return err
	}

	if s.Metrics.Enabled {
		ep, err := startMetrics(s.Metrics.Listen, e)
		if err != nil {
			return err
		}
		defer ep.Shutdown(context.WithoutCancel(ctx))
	}

	router := midiin.NewRouter(e, 0, 0, f.latency.Seconds(), logging.ForService("midi"))
	midiCtx := midiin.NewContext(router.HandleMessage)
	defer midiCtx.Close()
	if dev, err := midiin.OpenBy(midiCtx, f.midiIn, f.midiFirst); err != nil {
		log.Warn("MIDI input not available", "error", err)
	} else if dev != nil {
		log.Info("listening to MIDI input", "device", dev.String())
	}

	audio, err := oto.NewContext(oto.Options{
		SampleRate: s.Audio.SampleRate,
		Channels:   s.Audio.Channels,
		MaxFrames:  s.Audio.BlockSize,
		BufferSize: s.Audio.BufferSize,
		Int16:      f.pcm,
	})
	if err != nil {
		return err
	}
	defer audio.Close()
	silence := plughost.MakeAudioBuffer(s.Audio.Channels, s.Audio.BlockSize)
	view := make(plughost.AudioBuffer, 0, s.Audio.Channels)
	output := audio.Play(func(out plughost.AudioBuffer) {
		view = silence.Slice(view, 0, out.Frames())
		e.ProcessAudio(view, out)
	})
	log.Info("playing", "samplerate", s.Audio.SampleRate, "blocksize", s.Audio.BlockSize, "channels", s.Audio.Channels)

	wait := f.duration
	if wait == 0 && tl != nil && !midiCtx.HasDeviceOpen() {
		wait = time.Duration((tl.MaximumEventTime() + f.tail) * float64(time.Second))
	}
	var timeout <-chan time.Time
	if wait > 0 {
		timeout = time.After(wait)
	}
	select {
	case <-ctx.Done():
		log.Info("interrupted")
	case <-timeout:
	}

	e.RequestStop()
	stopErr := e.Stop(context.WithoutCancel(ctx))
	if err := output.Close(); err != nil {
		return errors.Join(stopErr, err)
	}
	output.Wait()
	st := e.Stats()
	log.Info("stopped", "blocks", st.Blocks, "midi_messages", router.Received())
	return stopErr
}

func startMetrics(listen string, e *chain.Engine) (*metrics.Endpoint, error) {
	reg, err := metrics.NewRegistry(metrics.NewChainCollector(e, prometheus.Labels{"chain": "tone"}))
	if err != nil {
		return nil, err
	}
	ep := metrics.NewEndpoint(listen, reg, logging.ForService("metrics"))
	if err := ep.Start(); err != nil {
		return nil, fmt.Errorf("could not start metrics endpoint: %w", err)
	}
	return ep, nil
}
