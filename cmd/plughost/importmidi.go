package main

import (
	"fmt"
	"os"

	"github.com/Xenakios/AudioPluginHost-II-sub001/cmd"
	"github.com/Xenakios/AudioPluginHost-II-sub001/logging"
	"github.com/spf13/cobra"
)

func importMIDICommand() *cobra.Command {
	var (
		directory string
		asJSON    bool
		stdout    bool
	)
	c := &cobra.Command{
		Use:   "import-midi [file.mid...]",
		Short: "Convert Standard MIDI Files to timelines",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			log := logging.ForService("import")
			ext := ".yml"
			if asJSON {
				ext = ".json"
			}
			for _, file := range args {
				tl, err := cmd.ReadTimeline(file)
				if err != nil {
					return err
				}
				if stdout {
					if err := tl.Write(c.OutOrStdout(), asJSON); err != nil {
						return err
					}
					continue
				}
				path := cmd.OutputPath(directory, file, ext)
				f, err := os.Create(path)
				if err != nil {
					return fmt.Errorf("could not create %v: %w", path, err)
				}
				if err := tl.Write(f, asJSON); err != nil {
					f.Close()
					return err
				}
				if err := f.Close(); err != nil {
					return err
				}
				log.Info("imported", "input", file, "output", path, "events", tl.NumEvents())
			}
			return nil
		},
	}
	c.Flags().StringVarP(&directory, "output", "o", "", "Directory for the timelines; by default next to each input")
	c.Flags().BoolVar(&asJSON, "json", false, "Write JSON instead of YAML")
	c.Flags().BoolVarP(&stdout, "stdout", "s", false, "Write to standard output instead of files")
	return c
}
