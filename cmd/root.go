package cmd

import (
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "autogenius",
	Short: "AI-powered automotive diagnosis assistant",
	Long: `AutoGenius diagnoses vehicle problems through a conversation with an
LLM-backed assistant. It recommends parts and tools from a product
catalog, keeps a per-user history of past conversations, and signs users
in with Google.

Run "autogenius serve" to start the server and "autogenius chat" to talk
to it from the terminal.`,
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", ".autogenius.yml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
