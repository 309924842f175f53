// Package commands implements glided's Cobra command tree.
package commands

import (
	"github.com/spf13/cobra"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:   "glided",
	Short: "glided is the glide rendezvous server",
	Long: `glided runs the glide TCP rendezvous server: peers register a
handle, discover each other, and exchange files through the server acting
as a consent-gated relay.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "path to a YAML config file")
	rootCmd.AddCommand(serveCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
