package cmd

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/fulmenhq/gofulmen/ascii"
	"github.com/spf13/cobra"

	"github.com/ratelens/ratelens/internal/output"
)

var (
	historyLimitFlag int
	historyOutput    string
)

var historyCmd = &cobra.Command{
	Use:   "history [provider]",
	Short: "Show recorded provider events",
	Long: `Show recorded events for a provider from the audit store: admission
denials, penalties, resets, config changes, and probe outcomes. Without an
argument events from all providers are shown.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := output.ParseFormat(historyOutput)
		if err != nil {
			return err
		}
		if format == output.FormatMarkdown {
			return fmt.Errorf("unsupported output format: %s", format)
		}

		providerID := ""
		if len(args) == 1 {
			providerID = args[0]
		}

		db, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		events, err := db.RecentEvents(cmd.Context(), providerID, historyLimitFlag)
		if err != nil {
			return err
		}

		if format == output.FormatJSON {
			payload, err := json.MarshalIndent(events, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(payload))
			return nil
		}

		lines := []string{"Provider Events", ""}
		if len(events) == 0 {
			lines = append(lines, "(no recorded events)")
			fmt.Print(ascii.DrawBox(strings.Join(lines, "\n"), 0))
			return nil
		}

		for _, event := range events {
			line := fmt.Sprintf("%s  %s  %s", event.CreatedAt.UTC().Format(time.RFC3339), event.Provider, event.Type)
			if detail := summarizeDetail(event.Detail); detail != "" {
				line += "  " + detail
			}
			lines = append(lines, line)
		}

		fmt.Print(ascii.DrawBox(strings.Join(lines, "\n"), 0))
		return nil
	},
}

func summarizeDetail(detail map[string]any) string {
	if len(detail) == 0 {
		return ""
	}

	parts := make([]string, 0, len(detail))
	for _, key := range []string{"status", "error", "retry_after_ms", "wait_time_ms"} {
		if value, ok := detail[key]; ok {
			parts = append(parts, fmt.Sprintf("%s=%v", key, value))
		}
	}
	return strings.Join(parts, " ")
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().IntVar(&historyLimitFlag, "limit", 50, "Maximum number of events to show")
	historyCmd.Flags().StringVar(&historyOutput, "output-format", string(output.FormatTable), "Output format: table|json")
}
