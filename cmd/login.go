package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in with Google",
	Long: `Opens the browser on the server's Google sign-in page and stores the
resulting session token in the local state file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		t, err := newTerminal(cfg)
		if err != nil {
			return err
		}
		defer t.logger.Sync()
		if err := t.login(cmd.Context()); err != nil {
			return err
		}
		if t.ctrl.User() == nil {
			return fmt.Errorf("sign-in did not complete")
		}
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and forget the stored session token",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		t, err := newTerminal(cfg)
		if err != nil {
			return err
		}
		defer t.logger.Sync()
		t.ctrl.Logout(cmd.Context())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
}
