package main

import (
	"fmt"

	"github.com/danmuck/newswire/internal/logging"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "newsctl",
		Short:         "News headline server and interactive client",
		Long:          "newsctl serves news headlines and sources over a line-delimited JSON protocol and ships the matching interactive client.",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logging.ConfigureRuntime()
		},
	}
	root.AddCommand(newServeCmd())
	root.AddCommand(newClientCmd())
	root.AddCommand(newConfigCmd())
	root.AddCommand(newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "newsctl %s (commit: %s, built: %s)\n", version, commit, date)
		},
	}
}
