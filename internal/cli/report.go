package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/olegiv/logwatch-alerts-go/internal/analyzer"
	"github.com/spf13/cobra"
)

const dateFlagLayout = "2006-01-02"

var reportDate string

var reportCmd = &cobra.Command{
	Use:   "report [--date YYYY-MM-DD]",
	Short: "Send the daily log summary",
	Long: `Summarize every log object stored under the day's date prefix, add the
day's average and maximum query execution time, and send the summary.

The day defaults to yesterday in REPORT_TIMEZONE.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		day, err := parseReportDate(reportDate, cfg.Location())
		if err != nil {
			return err
		}

		app, err := newApp(cmd.Context(), cfg, logFile)
		if err != nil {
			return err
		}
		defer app.Close()

		reporter, err := app.Reporter()
		if err != nil {
			return err
		}
		err = runReport(cmd.Context(), reporter, day, cmd.OutOrStdout())
		app.CleanupHistory(cmd.Context())
		return err
	},
}

func init() {
	reportCmd.Flags().StringVar(&reportDate, "date", "", "report day (YYYY-MM-DD), default yesterday")
	rootCmd.AddCommand(reportCmd)
}

// dailyReporter is satisfied by *analyzer.Reporter.
type dailyReporter interface {
	Run(ctx context.Context, day time.Time) (*analyzer.Report, error)
	Yesterday() time.Time
}

// parseReportDate parses s in loc. An empty s yields the zero time, which
// runReport replaces with yesterday.
func parseReportDate(s string, loc *time.Location) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	day, err := time.ParseInLocation(dateFlagLayout, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --date %q (expected YYYY-MM-DD): %w", s, err)
	}
	return day, nil
}

func runReport(ctx context.Context, reporter dailyReporter, day time.Time, out io.Writer) error {
	if day.IsZero() {
		day = reporter.Yesterday()
	}
	report, err := reporter.Run(ctx, day)
	if err != nil {
		return fmt.Errorf("daily report for %s: %w", day.Format(dateFlagLayout), err)
	}
	_, _ = fmt.Fprintf(out, "%s\n\n%s\n", report.Message.Subject, report.Message.Body)
	return nil
}
