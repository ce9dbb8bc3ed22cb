package cmd

import (
	"github.com/spf13/cobra"

	"github.com/autogenius/autogenius/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize autogenius configuration with an interactive wizard",
	Long:  `Runs an interactive wizard to configure the AutoGenius server and generates a .autogenius.yml file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := config.RunWizard(cfgFile)
		return err
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
