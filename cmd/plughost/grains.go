package main

import (
	"context"

	"github.com/Xenakios/AudioPluginHost-II-sub001/cmd"
	"github.com/Xenakios/AudioPluginHost-II-sub001/grain"
	"github.com/Xenakios/AudioPluginHost-II-sub001/logging"
	"github.com/spf13/cobra"
)

func grainsCommand(a *app) *cobra.Command {
	var out outputFlags
	c := &cobra.Command{
		Use:   "grains [list.yml]",
		Short: "Render a grain list",
		Long: `Render a YAML grain list offline through the grain engine. Grains that
find no free voice are dropped and counted; raise --voices to avoid that.`,
		Args: cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			return a.renderGrains(c.Context(), args[0], out)
		},
	}
	out.register(c)
	return c
}

func (a *app) renderGrains(ctx context.Context, file string, out outputFlags) error {
	log := logging.ForService("grains").With("input", file)
	list, err := cmd.ReadGrainList(file)
	if err != nil {
		return err
	}
	s := a.settings
	e, u, err := cmd.NewGrainChain(s, list, log)
	if err != nil {
		return err
	}
	defer e.Close()
	buf, err := e.Render(ctx, float64(s.Audio.SampleRate), s.Audio.BlockSize, s.Audio.Channels, listLength(list))
	if err != nil {
		return err
	}
	path := a.outputPath(out, file)
	if err := cmd.WriteAudio(path, buf, s.Audio.SampleRate, a.outputFormat(out)); err != nil {
		return err
	}
	triggered, missed := u.Counts()
	log.Info("rendered", "output", path, "grains", triggered)
	if missed > 0 {
		log.Warn("grains were dropped for lack of voices", "missed", missed, "voices", s.Grains.Voices)
	}
	return nil
}

// listLength is the time the last grain of l stops ringing.
func listLength(l grain.List) float64 {
	end := 0.0
	for i := range l.Events {
		end = max(end, l.Events[i].End())
	}
	if l.Params.MaxTime > 0 {
		end = min(end, l.Params.MaxTime)
	}
	return end + l.Params.ReleaseTail
}
