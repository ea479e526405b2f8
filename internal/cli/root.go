// Package cli is the logwatch-alerts command tree.
package cli

import (
	"context"
	"fmt"

	"github.com/olegiv/logwatch-alerts-go/internal/config"
	"github.com/spf13/cobra"
)

var (
	appVersion = "dev"
	appCommit  = "unknown"
	appDate    = "unknown"
)

// SetVersionInfo sets the version information injected via ldflags.
func SetVersionInfo(version, commit, date string) {
	appVersion = version
	appCommit = commit
	appDate = date
}

// cliOpts receives the persistent flags shared by every command.
var cliOpts config.CLIOptions

var rootCmd = &cobra.Command{
	Use:   "logwatch-alerts",
	Short: "Application log monitoring and alerting",
	Long: `logwatch-alerts scans application logs kept in object storage.

It sends an alert for every log object that contains errors, critical
messages or slow queries, and a daily summary with error, warning and
slow query counts plus query execution time statistics.

Environment variables can be set in .env file or exported directly.
Flags override environment variables.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		_, _ = fmt.Fprintf(out, "logwatch-alerts %s\n", appVersion)
		if appCommit != "unknown" {
			_, _ = fmt.Fprintf(out, "  commit: %s\n", appCommit)
		}
		if appDate != "unknown" {
			_, _ = fmt.Fprintf(out, "  built:  %s\n", appDate)
		}
	},
}

func init() {
	f := rootCmd.PersistentFlags()
	f.StringVar(&cliOpts.EnvFile, "env-file", "", "dotenv file to load instead of ./.env")
	f.StringVar(&cliOpts.StoreType, "store", "", "object store type: s3, local")
	f.StringVar(&cliOpts.StoreDir, "store-dir", "", "local object store directory")
	f.StringVar(&cliOpts.Bucket, "bucket", "", "S3 bucket holding the logs")
	f.StringVar(&cliOpts.Notifiers, "notifiers", "", "comma separated notifiers: sns, telegram")
	f.StringVar(&cliOpts.MetricsBackend, "metrics", "", "metrics backend: cloudwatch, sqlite")
	f.StringVar(&cliOpts.LogLevel, "log-level", "", "operator log level: debug, info, warn, error")
	f.BoolVar(&cliOpts.NoDatabase, "no-db", false, "disable the history database")

	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command with ctx.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// loadConfig loads configuration with the persistent flag overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadWithCLI(&cliOpts)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}
