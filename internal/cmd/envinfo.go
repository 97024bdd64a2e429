package cmd

import (
	"fmt"
	"runtime"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fulmenhq/gofulmen/crucible"
	"github.com/ratelens/ratelens/internal/config"
	"github.com/ratelens/ratelens/internal/observability"
)

var envInfoCmd = &cobra.Command{
	Use:   "envinfo",
	Short: "Display environment information",
	Long:  "Display comprehensive environment, configuration, and version information.",
	Run: func(cmd *cobra.Command, args []string) {
		version := crucible.GetVersion()

		observability.CLILogger.Info("=== RateLens Environment Information ===")
		observability.CLILogger.Info("")

		// Application Info
		identity := GetAppIdentity()
		observability.CLILogger.Info("Application:")
		observability.CLILogger.Info("  Name:       " + identity.BinaryName)
		observability.CLILogger.Info("  Version:    " + versionInfo.Version)
		observability.CLILogger.Info("  Commit:     " + versionInfo.Commit)
		observability.CLILogger.Info("  Built:      " + versionInfo.BuildDate)
		observability.CLILogger.Info("")

		// SSOT Info
		observability.CLILogger.Info("SSOT:")
		observability.CLILogger.Info("  Gofulmen:   "+version.Gofulmen, zap.String("gofulmen_version", version.Gofulmen))
		observability.CLILogger.Info("  Crucible:   "+version.Crucible, zap.String("crucible_version", version.Crucible))
		observability.CLILogger.Info("")

		// Runtime Info
		observability.CLILogger.Info("Runtime:")
		observability.CLILogger.Info("  Go Version: "+runtime.Version(), zap.String("go_version", runtime.Version()))
		observability.CLILogger.Info("  GOOS:       "+runtime.GOOS, zap.String("goos", runtime.GOOS))
		observability.CLILogger.Info("  GOARCH:     "+runtime.GOARCH, zap.String("goarch", runtime.GOARCH))
		observability.CLILogger.Info(fmt.Sprintf("  NumCPU:     %d", runtime.NumCPU()), zap.Int("num_cpu", runtime.NumCPU()))
		observability.CLILogger.Info("")

		cfg, err := config.Load(cmd.Context())
		if err != nil {
			observability.CLILogger.Warn("Config load failed", zap.Error(err))
			return
		}

		// Configuration
		observability.CLILogger.Info("Configuration:")
		observability.CLILogger.Info("  Server Host:    "+cfg.Server.Host, zap.String("host", cfg.Server.Host))
		observability.CLILogger.Info(fmt.Sprintf("  Server Port:    %d", cfg.Server.Port), zap.Int("port", cfg.Server.Port))
		observability.CLILogger.Info("  Log Level:      "+cfg.Logging.Level, zap.String("log_level", cfg.Logging.Level))
		observability.CLILogger.Info("  Log Profile:    "+cfg.Logging.Profile, zap.String("log_profile", cfg.Logging.Profile))
		observability.CLILogger.Info("  DB Driver:      "+cfg.Store.Driver, zap.String("db_driver", cfg.Store.Driver))
		if strings.TrimSpace(cfg.Store.URL) != "" {
			observability.CLILogger.Info("  DB URL:         "+cfg.Store.URL, zap.String("db_url", cfg.Store.URL))
		} else {
			observability.CLILogger.Info("  DB Path:        "+cfg.Store.Path, zap.String("db_path", cfg.Store.Path))
		}
		observability.CLILogger.Info(fmt.Sprintf("  Metrics Port:   %d", cfg.Metrics.Port), zap.Int("metrics_port", cfg.Metrics.Port))
		observability.CLILogger.Info("  Config File:    "+config.DefaultConfigPath(), zap.String("config_file", config.DefaultConfigPath()))
		observability.CLILogger.Info("")

		// Limiter defaults
		observability.CLILogger.Info("Limiter Defaults:")
		observability.CLILogger.Info(fmt.Sprintf("  Requests/sec:   %.2f", cfg.Defaults.RequestsPerSecond))
		observability.CLILogger.Info(fmt.Sprintf("  Burst Size:     %d", cfg.Defaults.BurstSize))
		observability.CLILogger.Info(fmt.Sprintf("  Quota/day:      %d", cfg.Defaults.QuotaPerDay))
		observability.CLILogger.Info(fmt.Sprintf("  Backoff:        %t", cfg.Defaults.BackoffOnLimit))
		observability.CLILogger.Info("  Max Backoff:    " + cfg.Defaults.MaxBackoffDelay.String())
		observability.CLILogger.Info("")

		// Prober configuration
		observability.CLILogger.Info("Probing:")
		observability.CLILogger.Info("  Interval:       " + cfg.Probing.CheckInterval.String())
		observability.CLILogger.Info("  Timeout:        " + cfg.Probing.Timeout.String())
		observability.CLILogger.Info(fmt.Sprintf("  Caching:        %t (%s)", cfg.Probing.EnableCaching, cfg.Probing.CacheDuration))
		observability.CLILogger.Info(fmt.Sprintf("  Detailed:       %t", cfg.Probing.EnableDetailedChecks))
		observability.CLILogger.Info("")

		// Provider configuration
		observability.CLILogger.Info("Providers:")
		if len(cfg.Providers) == 0 {
			observability.CLILogger.Info("  (none configured)")
		} else {
			ids := make([]string, 0, len(cfg.Providers))
			for id := range cfg.Providers {
				ids = append(ids, id)
			}
			sort.Strings(ids)
			for _, id := range ids {
				provider := cfg.Providers[id]
				providerType := provider.Type
				if providerType == "" {
					providerType = "http"
				}
				observability.CLILogger.Info(fmt.Sprintf("  %s: type=%s base_url=%s", id, providerType, provider.BaseURL))
				if provider.RateLimit != nil {
					observability.CLILogger.Info(fmt.Sprintf("  %s.rate_limit: %.2f/s burst=%d quota=%d",
						id, provider.RateLimit.RequestsPerSecond, provider.RateLimit.BurstSize, provider.RateLimit.QuotaPerDay))
				}
			}
		}
		observability.CLILogger.Info("")

		observability.CLILogger.Info("=== End Environment Information ===")
	},
}

func init() {
	rootCmd.AddCommand(envInfoCmd)
}
