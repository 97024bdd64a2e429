package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ratelens/ratelens/internal/output"
)

var quotaCmd = &cobra.Command{
	Use:   "quota",
	Short: "Show provider daily quotas",
	Long:  "Show daily quota usage for providers with a quota configured. Providers without a quota are omitted.",
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
			outPath = filepath.Join(outDir, fmt.Sprintf("quota.%s", outputExtension(format)))
		}

		sink, err := openSink(outPath)
		if err != nil {
			return err
		}
		defer func() { _ = sink.close() }()

		rendered, err := output.NewFormatter(format).FormatQuotas(svc.Quotas())
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(sink.writer, rendered)
		return err
	},
}

func init() {
	rootCmd.AddCommand(quotaCmd)

	quotaCmd.Flags().String("output-format", string(output.FormatTable), "Output format: table|json|markdown")
	quotaCmd.Flags().String("out", "", "Write output to a file (default stdout)")
	quotaCmd.Flags().String("out-dir", "", "Write output to a directory")
}
