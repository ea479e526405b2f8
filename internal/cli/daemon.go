package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/olegiv/logwatch-alerts-go/internal/scheduler"
	"github.com/olegiv/logwatch-alerts-go/internal/watch"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 30 * time.Second

var daemonRunNow bool

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the daily report on a schedule",
	Long: `Run the daily report on REPORT_SCHEDULE in REPORT_TIMEZONE until interrupted.

With WATCH_LOCAL_STORE=true every new object in the local store is scanned
for critical issues as soon as it is written.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		app, err := newApp(cmd.Context(), cfg, logFile)
		if err != nil {
			return err
		}
		defer app.Close()

		return runDaemon(cmd.Context(), app, daemonRunNow)
	},
}

func init() {
	daemonCmd.Flags().BoolVar(&daemonRunNow, "run-now", false, "send yesterday's report immediately on start")
	rootCmd.AddCommand(daemonCmd)
}

func runDaemon(ctx context.Context, app *App, runNow bool) error {
	cfg := app.Config
	log := app.Log

	reporter, err := app.Reporter()
	if err != nil {
		return err
	}
	job := func(ctx context.Context) error {
		_, err := reporter.Run(ctx, reporter.Yesterday())
		app.CleanupHistory(ctx)
		return err
	}

	sched, err := scheduler.New(cfg.ReportSchedule, cfg.Location(), "daily_report", job, log)
	if err != nil {
		return err
	}

	watchDone := make(chan error, 1)
	if cfg.WatchLocalStore {
		scanner, err := app.Scanner(app.Store)
		if err != nil {
			return err
		}
		w, err := watch.New(app.Local, func(ctx context.Context, key string) {
			if _, err := scanner.Scan(ctx, key); err != nil {
				log.Error().Err(err).Str("key", key).Msg("Scan failed")
			}
		}, log)
		if err != nil {
			return err
		}
		go func() { watchDone <- w.Run(ctx) }()
	} else {
		close(watchDone)
	}

	if err := sched.Start(ctx); err != nil {
		return err
	}
	log.Info().Str("schedule", cfg.ReportSchedule).Str("timezone", cfg.ReportTimezone).Msg("Daemon started")

	if runNow {
		sched.RunNow()
	}

	<-ctx.Done()
	log.Info().Msg("Shutting down daemon")

	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := sched.Stop(stopCtx); err != nil {
		return fmt.Errorf("failed to stop scheduler: %w", err)
	}
	if err := <-watchDone; err != nil {
		return fmt.Errorf("local store watcher: %w", err)
	}
	return nil
}
