// Package main provides the entry point for the mipforge CLI tool.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/mipforge/cmd/mipforge/commands"
	"github.com/Sumatoshi-tech/mipforge/pkg/version"
)

func main() {
	version.InitBinaryVersion()

	rootCmd := &cobra.Command{
		Use:   "mipforge",
		Short: "mipforge - memory-bounded mipmap chain builder",
		Long: `mipforge downscales mipmap levels in memory-bounded tiles and packs
them into a DDS container.

Commands:
  build     Build and transcode a mip chain
  plan      Show the tile plan for an image size`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(commands.NewBuildCommand())
	rootCmd.AddCommand(commands.NewPlanCommand())
	rootCmd.AddCommand(versionCmd())

	// Interrupts cancel the run so deferred workspace cleanup still happens.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := rootCmd.ExecuteContext(ctx)

	stop()

	if err != nil {
		if !commands.Reported(err) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}

		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Fprintf(os.Stdout, "mipforge %s (commit: %s, built: %s)\n", version.Version, version.Commit, version.Date)
		},
	}
}
