package main

import (
	"context"
	"io"

	"github.com/Xenakios/AudioPluginHost-II-sub001/cmd"
	"github.com/Xenakios/AudioPluginHost-II-sub001/report"
	"github.com/Xenakios/AudioPluginHost-II-sub001/units"
	"github.com/spf13/cobra"
)

func describeCommand(a *app) *cobra.Command {
	var (
		grains    bool
		noRender  bool
		templates string
		tail      float64
	)
	c := &cobra.Command{
		Use:   "describe [file...]",
		Short: "Summarize timelines or grain lists",
		Long: `Print event counts and the time span of each input, then render it
offline and print the peak and RMS level of every channel.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			r, err := newReporter(templates)
			if err != nil {
				return err
			}
			for _, file := range args {
				if grains {
					err = a.describeGrains(c.Context(), c.OutOrStdout(), r, file, !noRender)
				} else {
					err = a.describeTimeline(c.Context(), c.OutOrStdout(), r, file, !noRender, tail)
				}
				if err != nil {
					return err
				}
			}
			return nil
		},
	}
	c.Flags().BoolVarP(&grains, "grains", "g", false, "Inputs are grain lists")
	c.Flags().BoolVar(&noRender, "no-render", false, "Skip rendering and level analysis")
	c.Flags().StringVar(&templates, "templates", "", "Directory of *.tmpl files overriding the built-in report templates")
	c.Flags().Float64Var(&tail, "tail", 1, "Seconds rendered after the last timeline event")
	return c
}

func newReporter(dir string) (*report.Reporter, error) {
	if dir != "" {
		return report.NewFromTemplates(dir)
	}
	return report.New()
}

func (a *app) describeTimeline(ctx context.Context, w io.Writer, r *report.Reporter, file string, render bool, tail float64) error {
	tl, err := cmd.ReadTimeline(file)
	if err != nil {
		return err
	}
	if err := r.Timeline(w, report.SummarizeTimeline(tl)); err != nil {
		return err
	}
	if !render {
		return nil
	}
	s := a.settings
	e, err := cmd.NewToneChain(s, units.DefaultToneSettings(), tl, nil)
	if err != nil {
		return err
	}
	defer e.Close()
	buf, err := e.Render(ctx, float64(s.Audio.SampleRate), s.Audio.BlockSize, s.Audio.Channels, tl.MaximumEventTime()+max(tail, 0))
	if err != nil {
		return err
	}
	return r.Audio(w, report.Analyze(buf, float64(s.Audio.SampleRate)))
}

func (a *app) describeGrains(ctx context.Context, w io.Writer, r *report.Reporter, file string, render bool) error {
	list, err := cmd.ReadGrainList(file)
	if err != nil {
		return err
	}
	s := a.settings
	if err := r.Grains(w, report.SummarizeGrains(list, s.Grains.Voices)); err != nil {
		return err
	}
	if !render {
		return nil
	}
	e, _, err := cmd.NewGrainChain(s, list, nil)
	if err != nil {
		return err
	}
	defer e.Close()
	buf, err := e.Render(ctx, float64(s.Audio.SampleRate), s.Audio.BlockSize, s.Audio.Channels, listLength(list))
	if err != nil {
		return err
	}
	return r.Audio(w, report.Analyze(buf, float64(s.Audio.SampleRate)))
}
