package main

import (
	"context"
	"fmt"
	"runtime"

	"github.com/Xenakios/AudioPluginHost-II-sub001/cmd"
	"github.com/Xenakios/AudioPluginHost-II-sub001/logging"
	"github.com/Xenakios/AudioPluginHost-II-sub001/units"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func renderCommand(a *app) *cobra.Command {
	var (
		out  outputFlags
		tail float64
		jobs int
	)
	c := &cobra.Command{
		Use:   "render [timeline...]",
		Short: "Render timelines through the tone chain",
		Long: `Render each timeline (.yml, .json, or a Standard MIDI File) offline
through a Tone synthesizer followed by a Gain stage, and write one audio file
per input. Inputs are rendered in parallel.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			return a.renderAll(c.Context(), args, out, tail, jobs)
		},
	}
	out.register(c)
	c.Flags().Float64Var(&tail, "tail", 1, "Seconds rendered after the last event")
	c.Flags().IntVarP(&jobs, "jobs", "j", runtime.GOMAXPROCS(0), "Number of inputs rendered at once")
	return c
}

func (a *app) renderAll(ctx context.Context, files []string, out outputFlags, tail float64, jobs int) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(jobs, 1))
	for _, file := range files {
		g.Go(func() error {
			if err := a.renderOne(ctx, file, out, tail); err != nil {
				return fmt.Errorf("could not render %v: %w", file, err)
			}
			return nil
		})
	}
	return g.Wait()
}

func (a *app) renderOne(ctx context.Context, file string, out outputFlags, tail float64) error {
	log := logging.ForService("render").With("input", file)
	tl, err := cmd.ReadTimeline(file)
	if err != nil {
		return err
	}
	s := a.settings
	e, err := cmd.NewToneChain(s, units.DefaultToneSettings(), tl, log)
	if err != nil {
		return err
	}
	defer e.Close()
	length := tl.MaximumEventTime() + max(tail, 0)
	buf, err := e.Render(ctx, float64(s.Audio.SampleRate), s.Audio.BlockSize, s.Audio.Channels, length)
	if err != nil {
		return err
	}
	path := a.outputPath(out, file)
	if err := cmd.WriteAudio(path, buf, s.Audio.SampleRate, a.outputFormat(out)); err != nil {
		return err
	}
	log.Info("rendered", "output", path, "seconds", length, "events", tl.NumEvents())
	return nil
}

func (a *app) outputPath(out outputFlags, input string) string {
	ext := ".wav"
	if out.raw {
		ext = ".raw"
	}
	return cmd.OutputPath(out.directory, input, ext)
}

func (a *app) outputFormat(out outputFlags) cmd.OutputFormat {
	return cmd.OutputFormat{Raw: out.raw, PCM16: out.pcm, BitDepth: a.settings.Audio.BitDepth}
}
