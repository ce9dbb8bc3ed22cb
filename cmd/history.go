package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List your past conversations",
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

		ctx := cmd.Context()
		items, err := t.api.ListHistory(ctx)
		if err != nil {
			return fmt.Errorf("loading history: %w", err)
		}
		if len(items) == 0 {
			fmt.Fprintln(t.out, "No previous conversations")
			return nil
		}
		for _, it := range items {
			active := " "
			if it.ID == t.state.SessionID {
				active = "*"
			}
			fmt.Fprintf(t.out, "%s %s  %-32s %s  %d messages\n",
				active, it.ID, it.Vehicle, it.CreatedAt.Local().Format("2006-01-02 15:04"), it.MessageCount)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)
}
