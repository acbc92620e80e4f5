package main

import (
	"fmt"

	"github.com/Xenakios/AudioPluginHost-II-sub001/config"
	"github.com/Xenakios/AudioPluginHost-II-sub001/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// app is the state shared by the subcommands once the root command has
// loaded the configuration.
type app struct {
	v          *viper.Viper
	configFile string
	settings   *config.Settings
}

// RootCommand creates and returns the root command
func RootCommand() *cobra.Command {
	a := &app{v: config.New()}
	rootCmd := &cobra.Command{
		Use:          "plughost",
		Short:        "Render and play processing chains and grain lists",
		SilenceUsage: true,
	}
	if err := setupFlags(rootCmd, a); err != nil {
		panic(err)
	}

	versionCmd := versionCommand()
	rootCmd.AddCommand(
		renderCommand(a),
		playCommand(a),
		grainsCommand(a),
		describeCommand(a),
		importMIDICommand(),
		versionCmd,
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == versionCmd.Name() {
			return nil
		}
		return a.initialize()
	}
	return rootCmd
}

func (a *app) initialize() error {
	s, err := config.Load(a.v, a.configFile)
	if err != nil {
		return err
	}
	if err := logging.Init(s.Log); err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	a.settings = s
	return nil
}

// setupFlags defines the flags shared by every subcommand and binds them to
// their configuration keys.
func setupFlags(rootCmd *cobra.Command, a *app) error {
	f := rootCmd.PersistentFlags()
	f.StringVarP(&a.configFile, "config", "c", "", "YAML configuration file")
	f.Int("samplerate", 0, "Sample rate in Hz")
	f.Int("blocksize", 0, "Processing block size in frames")
	f.Int("channels", 0, "Number of output channels")
	f.Int("voices", 0, "Voices of the grain engine")
	f.String("log-level", "", "Log level: trace, debug, info, warn, error")
	f.String("log-format", "", "Log format: text, json")

	bindings := map[string]string{
		"audio.samplerate": "samplerate",
		"audio.blocksize":  "blocksize",
		"audio.channels":   "channels",
		"grains.voices":    "voices",
		"log.level":        "log-level",
		"log.format":       "log-format",
	}
	for key, flag := range bindings {
		if err := a.v.BindPFlag(key, f.Lookup(flag)); err != nil {
			return fmt.Errorf("error binding flag %v: %w", flag, err)
		}
	}
	return nil
}

// outputFlags are shared by the commands that write audio files.
type outputFlags struct {
	directory string
	raw, pcm  bool
}

func (o *outputFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&o.directory, "output", "o", "", "Directory for the output files; by default next to each input")
	cmd.Flags().BoolVarP(&o.raw, "raw", "r", false, "Write interleaved .raw samples instead of .wav")
	cmd.Flags().BoolVar(&o.pcm, "pcm", false, "Write 16-bit signed .raw samples instead of float32")
}
