package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/olegiv/go-logger"
	"github.com/olegiv/logwatch-alerts-go/internal/analyzer"
	"github.com/olegiv/logwatch-alerts-go/internal/config"
	"github.com/olegiv/logwatch-alerts-go/internal/logging"
	"github.com/olegiv/logwatch-alerts-go/internal/metrics"
	"github.com/olegiv/logwatch-alerts-go/internal/notification"
	"github.com/olegiv/logwatch-alerts-go/internal/objectstore"
	"github.com/olegiv/logwatch-alerts-go/internal/storage"
	"github.com/rs/zerolog"
)

// logMode selects where operator logs go.
type logMode int

const (
	logFile logMode = iota
	logConsole
	logDiscard
)

// App holds the components wired from configuration.
type App struct {
	Config *config.Config
	Log    *logging.SecureLogger

	Store  analyzer.ObjectStore
	Writer analyzer.ObjectWriter
	Local  *objectstore.LocalStore // set when the store is local

	Notifier *analyzer.Registry
	Recorder analyzer.MetricsRecorder
	Source   analyzer.MetricsSource
	DB       *storage.Storage // nil when the database is disabled

	s3Client *s3.Client
	closers  []func() error
}

// newApp initializes every component named by cfg.
func newApp(ctx context.Context, cfg *config.Config, mode logMode) (*App, error) {
	app := &App{Config: cfg, Log: newOperatorLog(cfg, mode)}
	app.closers = append(app.closers, app.Log.Close)

	if err := app.init(ctx); err != nil {
		app.Close()
		return nil, err
	}
	return app, nil
}

func newOperatorLog(cfg *config.Config, mode logMode) *logging.SecureLogger {
	switch mode {
	case logConsole:
		level, err := zerolog.ParseLevel(cfg.LogLevel)
		if err != nil {
			level = zerolog.InfoLevel
		}
		return logging.NewConsole(os.Stdout, level)
	case logDiscard:
		return logging.Nop()
	default:
		return logging.New(logger.Config{
			Level:      cfg.LogLevel,
			LogDir:     cfg.LogDir,
			MaxSizeMB:  10,
			MaxBackups: 5,
			Console:    true,
		})
	}
}

func (a *App) init(ctx context.Context) error {
	cfg := a.Config

	var awsCfg aws.Config
	if cfg.NeedsAWS() {
		var err error
		awsCfg, err = awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
		if err != nil {
			return fmt.Errorf("failed to load AWS configuration: %w", err)
		}
	}

	// 1. History database (if enabled)
	if cfg.EnableDatabase {
		db, err := storage.New(cfg.DatabasePath)
		if err != nil {
			return fmt.Errorf("failed to initialize storage: %w", err)
		}
		a.DB = db
		a.closers = append(a.closers, db.Close)
		a.Log.Info().Str("path", cfg.DatabasePath).Msg("Database initialized")
	}

	// 2. Object store
	if cfg.IsLocalStore() {
		local, err := objectstore.NewLocalStore(cfg.LocalStoreDir, cfg.MaxLogSizeMB)
		if err != nil {
			return fmt.Errorf("failed to initialize local store: %w", err)
		}
		a.Local, a.Store, a.Writer = local, local, local
		a.Log.Info().Str("dir", local.Root()).Msg("Local object store initialized")
	} else {
		a.s3Client = s3.NewFromConfig(awsCfg)
		store, err := objectstore.NewS3Store(a.s3Client, cfg.BucketName, cfg.MaxLogSizeMB)
		if err != nil {
			return fmt.Errorf("failed to initialize S3 store: %w", err)
		}
		a.Store, a.Writer = store, store
		a.Log.Info().Str("bucket", store.Bucket()).Msg("S3 object store initialized")
	}

	// 3. Notifiers
	a.Notifier = analyzer.NewRegistry()
	for _, t := range cfg.NotifierTypes() {
		n, err := a.newNotifier(t, awsCfg)
		if err != nil {
			return err
		}
		if err := a.Notifier.Register(t, n); err != nil {
			return err
		}
	}
	a.Log.Info().Strs("notifiers", cfg.Notifiers).Msg("Notifiers registered")

	// 4. Metrics backend
	if cfg.UsesSQLiteMetrics() {
		a.Recorder, a.Source = a.DB, a.DB
	} else {
		cw := metrics.NewCloudWatch(cloudwatch.NewFromConfig(awsCfg))
		a.Recorder, a.Source = cw, cw
	}
	a.Log.Info().Str("backend", cfg.MetricsBackend).Msg("Metrics backend initialized")

	return nil
}

func (a *App) newNotifier(t analyzer.NotifierType, awsCfg aws.Config) (analyzer.Notifier, error) {
	switch t {
	case analyzer.NotifierSNS:
		p, err := notification.NewSNSPublisher(sns.NewFromConfig(awsCfg), a.Config.SNSTopicARN)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SNS publisher: %w", err)
		}
		return p, nil
	case analyzer.NotifierTelegram:
		c, err := notification.NewTelegramClient(a.Config.TelegramBotToken, a.Config.TelegramChatID)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Telegram client: %w", err)
		}
		a.closers = append(a.closers, c.Close)
		return c, nil
	default:
		return nil, fmt.Errorf("unsupported notifier type: %s", t)
	}
}

// storeForBucket returns the object store for bucket. Events for a bucket
// other than the configured one get a store of their own.
func (a *App) storeForBucket(bucket string) (analyzer.ObjectStore, error) {
	if bucket == "" || a.s3Client == nil || bucket == a.Config.BucketName {
		return a.Store, nil
	}
	return objectstore.NewS3Store(a.s3Client, bucket, a.Config.MaxLogSizeMB)
}

// Scanner returns a critical scanner over store.
func (a *App) Scanner(store analyzer.ObjectStore) (*analyzer.Scanner, error) {
	sc := analyzer.ScannerConfig{
		Store:    store,
		Notifier: a.Notifier,
		Log:      a.Log,
	}
	if a.DB != nil {
		sc.History = a.DB
	}
	return analyzer.NewScanner(sc)
}

// Reporter returns the daily reporter.
func (a *App) Reporter() (*analyzer.Reporter, error) {
	rc := analyzer.ReporterConfig{
		Store:     a.Store,
		Metrics:   a.Source,
		Notifier:  a.Notifier,
		Log:       a.Log,
		Namespace: a.Config.CloudWatchNamespace,
		Location:  a.Config.Location(),
	}
	if a.DB != nil {
		rc.History = a.DB
	}
	return analyzer.NewReporter(rc)
}

// CleanupHistory removes history older than the retention period.
func (a *App) CleanupHistory(ctx context.Context) {
	if a.DB == nil {
		return
	}
	deleted, err := a.DB.CleanupOld(ctx, a.Config.HistoryRetentionDays)
	if err != nil {
		a.Log.Warn().Err(err).Msg("Failed to cleanup old history")
		return
	}
	if deleted > 0 {
		a.Log.Info().Int64("deleted", deleted).Int("retention_days", a.Config.HistoryRetentionDays).Msg("Cleaned up old history")
	}
}

// Close releases every component in reverse order of creation.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Failed to close component: %v\n", err)
		}
	}
	a.closers = nil
}
