package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ratelens/ratelens/internal/core"
	"github.com/ratelens/ratelens/internal/output"
)

var probeCmd = &cobra.Command{
	Use:   "probe [provider...]",
	Short: "Run one-shot health probes",
	Long: `Probe the named providers once, or every configured provider when no
arguments are given. Individual probe failures are reported in the output and
never abort the run.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := resolveOutputFormat(cmd)
		if err != nil {
			return err
		}

		svc, db, err := buildService(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer closeService(svc, db)

		var results []core.HealthCheckResult
		if len(args) == 0 {
			results = svc.ProbeAll(cmd.Context())
		} else {
			for _, providerID := range args {
				result, err := svc.Probe(cmd.Context(), providerID)
				if err != nil {
					return err
				}
				results = append(results, result)
			}
		}

		outPath, outDir, err := resolveOutputTargets(cmd)
		if err != nil {
			return err
		}
		if outDir != "" {
			outDir, err = ensureOutDir(outDir)
			if err != nil {
				return err
			}
			outPath = filepath.Join(outDir, fmt.Sprintf("probe.%s", outputExtension(format)))
		}

		sink, err := openSink(outPath)
		if err != nil {
			return err
		}
		defer func() { _ = sink.close() }()

		rendered, err := output.NewFormatter(format).FormatHealth(results)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(sink.writer, rendered)
		return err
	},
}

func init() {
	rootCmd.AddCommand(probeCmd)

	probeCmd.Flags().String("output-format", string(output.FormatTable), "Output format: table|json|markdown")
	probeCmd.Flags().String("out", "", "Write output to a file (default stdout)")
	probeCmd.Flags().String("out-dir", "", "Write output to a directory")
}
