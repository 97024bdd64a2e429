package cmd

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ratelens/ratelens/internal/core"
)

var monitorPoll time.Duration

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Monitor provider health until interrupted",
	Long: `Start periodic background probing of every configured provider and print
health transitions as they happen. Runs until Ctrl+C.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, db, err := buildService(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer closeService(svc, db)

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		svc.StartMonitoring()
		defer svc.StopMonitoring()

		fmt.Printf("monitoring %d provider(s), press Ctrl+C to stop\n", len(svc.Providers()))

		last := make(map[string]core.HealthStatus)
		ticker := time.NewTicker(monitorPoll)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				fmt.Println("monitoring stopped")
				return nil
			case <-ticker.C:
				for _, id := range svc.Providers() {
					result, ok := svc.Health(id)
					if !ok {
						continue
					}
					previous, seen := last[id]
					if seen && previous == result.Status {
						continue
					}
					last[id] = result.Status

					line := fmt.Sprintf("%s  %s: %s", result.LastCheck.Format(time.RFC3339), id, result.Status)
					if result.Error != "" {
						line += " (" + result.Error + ")"
					}
					fmt.Println(line)
				}
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(monitorCmd)

	monitorCmd.Flags().DurationVar(&monitorPoll, "poll", time.Second, "How often to check for health transitions")
}
