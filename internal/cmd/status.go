package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ratelens/ratelens/internal/output"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show provider admission status",
	Long:  "Show a snapshot of every configured provider's limiter: tokens, rate, backoff, and quota usage.",
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := resolveOutputFormat(cmd)
		if err != nil {
			return err
		}

		svc, db, err := buildService(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer closeService(svc, db)

		outPath, outDir, err := resolveOutputTargets(cmd)
		if err != nil {
			return err
		}
		if outDir != "" {
			outDir, err = ensureOutDir(outDir)
			if err != nil {
				return err
			}
			outPath = filepath.Join(outDir, fmt.Sprintf("status.%s", outputExtension(format)))
		}

		sink, err := openSink(outPath)
		if err != nil {
			return err
		}
		defer func() { _ = sink.close() }()

		rendered, err := output.NewFormatter(format).FormatStatuses(svc.Statuses())
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(sink.writer, rendered)
		return err
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().String("output-format", string(output.FormatTable), "Output format: table|json|markdown")
	statusCmd.Flags().String("out", "", "Write output to a file (default stdout)")
	statusCmd.Flags().String("out-dir", "", "Write output to a directory")
}
