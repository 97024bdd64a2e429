package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var resetYes bool

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset all limiters to full capacity",
	Long: `Restore every provider's limiter to full capacity, clearing backoff
windows and period counters. Daily quota counters are untouched.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !resetYes {
			return errors.New("reset requires --yes")
		}

		svc, db, err := buildService(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer closeService(svc, db)

		svc.ResetAll(cmd.Context())
		fmt.Printf("Reset %d limiter(s)\n", len(svc.Providers()))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(resetCmd)

	resetCmd.Flags().BoolVar(&resetYes, "yes", false, "Confirm the reset")
}
