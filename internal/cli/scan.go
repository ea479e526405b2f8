package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/olegiv/logwatch-alerts-go/internal/analyzer"
	"github.com/spf13/cobra"
)

var scanKeys []string

var scanCmd = &cobra.Command{
	Use:   "scan --key <object-key> [--key <object-key>...]",
	Short: "Scan log objects for critical issues",
	Long: `Read each log object, collect its ERROR and CRITICAL lines and its slow
query warnings, and send them to every configured notifier.

An object without critical lines is a successful scan and sends nothing.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(scanKeys) == 0 {
			return fmt.Errorf("at least one --key is required")
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		app, err := newApp(cmd.Context(), cfg, logFile)
		if err != nil {
			return err
		}
		defer app.Close()

		scanner, err := app.Scanner(app.Store)
		if err != nil {
			return err
		}
		err = runScans(cmd.Context(), scanner, scanKeys, cmd.OutOrStdout())
		app.CleanupHistory(cmd.Context())
		return err
	},
}

func init() {
	scanCmd.Flags().StringSliceVar(&scanKeys, "key", nil, "object key to scan (repeatable)")
	rootCmd.AddCommand(scanCmd)
}

// objectScanner is satisfied by *analyzer.Scanner.
type objectScanner interface {
	Scan(ctx context.Context, key string) (*analyzer.ScanResult, error)
}

// runScans scans every key and prints one line per object. All keys are
// attempted; the failures are joined.
func runScans(ctx context.Context, scanner objectScanner, keys []string, out io.Writer) error {
	var errs []error
	for _, key := range keys {
		res, err := scanner.Scan(ctx, key)
		if err != nil {
			errs = append(errs, fmt.Errorf("scan %s: %w", key, err))
			_, _ = fmt.Fprintf(out, "%s: failed\n", key)
			continue
		}
		status := "ok"
		if res.Notified {
			status = "notified"
		}
		_, _ = fmt.Fprintf(out, "%s: %d lines, %d critical issues, %s\n", key, res.TotalLines, len(res.Issues), status)
	}
	return errors.Join(errs...)
}
