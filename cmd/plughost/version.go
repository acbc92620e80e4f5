package main

import (
	"fmt"

	"github.com/Xenakios/AudioPluginHost-II-sub001/version"
	"github.com/spf13/cobra"
)

func versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(c *cobra.Command, args []string) {
			fmt.Fprintln(c.OutOrStdout(), version.Describe("plughost"))
		},
	}
}
