package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/olegiv/logwatch-alerts-go/internal/instrument"
	"github.com/olegiv/logwatch-alerts-go/internal/userstore"
	"github.com/olegiv/logwatch-alerts-go/pkg/applog"
	"github.com/spf13/cobra"
)

var (
	demoSlowDelay time.Duration
	demoScan      bool
)

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Run the instrumented MongoDB sample workload",
	Long: `Run a find, insert, update, delete, aggregation and a deliberately slow
query against MONGO_URI. Every operation is timed; the application log is
written to LOG_FILE_PATH and uploaded to the object store on exit, and the
query times are published to the metrics backend.

With --scan the uploaded log is scanned for critical issues right away.`,
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

		appLog, err := applog.New(applog.Config{
			Name:     cfg.AppLoggerName,
			Level:    "info",
			FilePath: cfg.LogFilePath,
			Output:   os.Stdout,
			Uploader: app.Writer,
			Location: cfg.Location(),
		})
		if err != nil {
			return fmt.Errorf("failed to create application log: %w", err)
		}

		client, err := userstore.Connect(cmd.Context(), cfg.MongoURI)
		if err != nil {
			_, _ = appLog.Close(cmd.Context())
			return err
		}
		defer func() {
			if err := client.Disconnect(context.Background()); err != nil {
				app.Log.Warn().Err(err).Msg("Failed to disconnect from MongoDB")
			}
		}()

		timer := instrument.New(app.Recorder, appLog, cfg.CloudWatchNamespace)
		repo := userstore.NewRepository(client.Database(cfg.MongoDatabase), timer)

		key, err := runDemo(cmd.Context(), repo, timer, appLog, demoSlowDelay, cmd.OutOrStdout())
		if err != nil {
			return err
		}
		app.Log.Info().Str("key", key).Msg("Application log uploaded")

		if demoScan && key != "" {
			scanner, err := app.Scanner(app.Store)
			if err != nil {
				return err
			}
			return runScans(cmd.Context(), scanner, []string{key}, cmd.OutOrStdout())
		}
		return nil
	},
}

func init() {
	demoCmd.Flags().DurationVar(&demoSlowDelay, "slow-delay", userstore.DefaultSlowDelay, "delay of the slow query step")
	demoCmd.Flags().BoolVar(&demoScan, "scan", false, "scan the uploaded application log afterwards")
	rootCmd.AddCommand(demoCmd)
}

// runDemo runs the workload traced as one function, then closes the
// application log and returns the uploaded object key.
func runDemo(ctx context.Context, repo *userstore.Repository, timer *instrument.Timer, appLog *applog.Logger, slowDelay time.Duration, out io.Writer) (string, error) {
	res, runErr := instrument.Trace(ctx, timer, "run_workload", func(ctx context.Context) (*userstore.WorkloadResult, error) {
		return userstore.RunWorkload(ctx, repo, appLog, slowDelay)
	})

	key, closeErr := appLog.Close(context.WithoutCancel(ctx))
	if runErr != nil {
		return key, fmt.Errorf("workload failed: %w", runErr)
	}
	if closeErr != nil {
		return key, closeErr
	}

	_, _ = fmt.Fprintf(out, "\nFound %d users, modified %d, deleted %d, %d age buckets\n",
		res.Found, res.Modified, res.Deleted, len(res.Distribution))
	if key != "" {
		_, _ = fmt.Fprintf(out, "Application log stored as %s\n", key)
	}
	return key, nil
}
