package cli

import (
	"context"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/olegiv/logwatch-alerts-go/internal/analyzer"
	"github.com/spf13/cobra"
)

var (
	historyDays  int
	historyScans bool
	historyStats bool
)

var historyCmd = &cobra.Command{
	Use:   "history [--days N] [--scans] [--stats]",
	Short: "List recent daily reports and scans",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if !cfg.EnableDatabase {
			return fmt.Errorf("history requires ENABLE_DATABASE=true")
		}
		if historyDays < 1 {
			return fmt.Errorf("--days must be at least 1")
		}

		app, err := newApp(cmd.Context(), cfg, logDiscard)
		if err != nil {
			return err
		}
		defer app.Close()

		return showHistory(cmd.Context(), app.DB, historyDays, historyScans, historyStats, cmd.OutOrStdout())
	},
}

func init() {
	historyCmd.Flags().IntVar(&historyDays, "days", 7, "number of days to show")
	historyCmd.Flags().BoolVar(&historyScans, "scans", false, "list critical scans instead of daily reports")
	historyCmd.Flags().BoolVar(&historyStats, "stats", false, "print database statistics")
	rootCmd.AddCommand(historyCmd)
}

// historySource is satisfied by *storage.Storage.
type historySource interface {
	GetRecentReports(ctx context.Context, days int) ([]*analyzer.ReportRecord, error)
	GetRecentScans(ctx context.Context, days int) ([]*analyzer.ScanRecord, error)
	GetStatistics(ctx context.Context) (map[string]interface{}, error)
}

func showHistory(ctx context.Context, src historySource, days int, scans, stats bool, out io.Writer) error {
	if scans {
		records, err := src.GetRecentScans(ctx, days)
		if err != nil {
			return err
		}
		printScans(out, records)
	} else {
		records, err := src.GetRecentReports(ctx, days)
		if err != nil {
			return err
		}
		printReports(out, records)
	}

	if stats {
		s, err := src.GetStatistics(ctx)
		if err != nil {
			return fmt.Errorf("failed to get statistics: %w", err)
		}
		printStatistics(out, s)
	}
	return nil
}

func printReports(out io.Writer, records []*analyzer.ReportRecord) {
	if len(records) == 0 {
		_, _ = fmt.Fprintln(out, "No daily reports recorded.")
		return
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "DATE\tLOGS\tERRORS\tWARNINGS\tSLOW\tCRITICAL\tAVG\tMAX\tOBJECTS\tGENERATED")
	for _, r := range records {
		qt := r.Summary.QueryTimes
		avg, peak := "N/A", "N/A"
		if qt.Available {
			avg = fmt.Sprintf("%.2fms", qt.AverageMs)
			peak = fmt.Sprintf("%.2fms", qt.MaxMs)
		}
		objects := humanize.Comma(int64(r.Objects))
		if r.SkippedObjects > 0 {
			objects = fmt.Sprintf("%s (%d skipped)", objects, r.SkippedObjects)
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%d\t%s\t%s\t%s\t%s\n",
			r.ReportDate.Format(dateFlagLayout),
			humanize.Comma(int64(r.Summary.TotalLines)),
			r.Summary.ErrorCount,
			r.Summary.WarningCount,
			r.Summary.SlowQueryCount,
			r.Summary.CriticalCount,
			avg, peak,
			objects,
			humanize.Time(r.GeneratedAt),
		)
	}
	_ = tw.Flush()
}

func printScans(out io.Writer, records []*analyzer.ScanRecord) {
	if len(records) == 0 {
		_, _ = fmt.Fprintln(out, "No scans recorded.")
		return
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "SCANNED\tOBJECT\tLINES\tISSUES\tNOTIFIED")
	for _, r := range records {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%t\n",
			r.ScannedAt.UTC().Format("2006-01-02 15:04:05"),
			r.ObjectKey,
			humanize.Comma(int64(r.TotalLines)),
			len(r.Issues),
			r.Notified,
		)
	}
	_ = tw.Flush()
}

func printStatistics(out io.Writer, stats map[string]interface{}) {
	keys := make([]string, 0, len(stats))
	for k := range stats {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	_, _ = fmt.Fprintln(out, "\nDatabase statistics:")
	for _, k := range keys {
		_, _ = fmt.Fprintf(out, "  %-20s %v\n", k, stats[k])
	}
}
