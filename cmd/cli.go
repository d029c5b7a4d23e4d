// Package cmd implements the soundnode CLI: a cobra root command with
// serve and version subcommands, replacing the original single-URL
// player's flag-based argument parsing.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lavahost/soundnode/internal/node"
)

var configPath string

// Version, BuildCommit, and BuildTime are set at build time via -ldflags.
var (
	Version     = "4.0.0-dev"
	BuildCommit = ""
	BuildTime   = ""
)

var rootCmd = &cobra.Command{
	Use:   "soundnode",
	Short: "A standalone audio streaming node for chat-platform voice bots",
	// Silence cobra's own usage dump; errors are reported explicitly below.
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "application.yml",
		"path to the node's YAML configuration document")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(versionCmd())
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the node's HTTP control surface and player engine",
		RunE: func(_ *cobra.Command, _ []string) error {
			return node.Run(configPath, node.BuildInfo{
				Version: Version,
				Commit:  BuildCommit,
				Time:    BuildTime,
			})
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the node's version",
		RunE: func(_ *cobra.Command, _ []string) error {
			fmt.Println(Version)
			return nil
		},
	}
}

// Execute runs the root command and exits with code 1 on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
