package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ratelens/ratelens/internal/core"
	"github.com/ratelens/ratelens/internal/output"
)

var (
	admitWait    bool
	admitTimeout time.Duration
	admitOutput  string
)

var admitCmd = &cobra.Command{
	Use:   "admit <provider>",
	Short: "Run one admission check against a provider",
	Long: `Run one admission check against a provider's limiter.

The exit code reflects the decision: zero when the request was admitted,
non-zero when it was denied. With --wait the command blocks until a slot
opens or --timeout elapses.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		providerID := args[0]

		format, err := output.ParseFormat(admitOutput)
		if err != nil {
			return err
		}
		if format == output.FormatMarkdown {
			return fmt.Errorf("unsupported output format: %s", format)
		}

		svc, db, err := buildService(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer closeService(svc, db)

		var result core.RateLimitResult
		if admitWait {
			ctx := cmd.Context()
			if admitTimeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, admitTimeout)
				defer cancel()
			}
			result, err = svc.AdmitWait(ctx, providerID)
		} else {
			result, err = svc.Admit(cmd.Context(), providerID)
		}
		if err != nil {
			return err
		}

		if format == output.FormatJSON {
			payload, err := json.MarshalIndent(result, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(payload))
		} else if result.Allowed {
			fmt.Printf("admitted: %s (%.1f tokens remaining)\n", providerID, result.TokensRemaining)
		} else {
			fmt.Printf("denied: %s (retry in %s)\n", providerID, result.WaitTime.Round(time.Millisecond))
		}

		if !result.Allowed {
			cmd.SilenceUsage = true
			cmd.SilenceErrors = true
			return fmt.Errorf("admission denied for %s", providerID)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(admitCmd)

	admitCmd.Flags().BoolVar(&admitWait, "wait", false, "Block until a slot opens")
	admitCmd.Flags().DurationVar(&admitTimeout, "timeout", 30*time.Second, "Wait deadline when --wait is set")
	admitCmd.Flags().StringVar(&admitOutput, "output-format", string(output.FormatTable), "Output format: table|json")
}
