package config

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/olegiv/logwatch-alerts-go/internal/analyzer"
	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

// Object store and metrics backend types.
const (
	StoreS3    = "s3"
	StoreLocal = "local"

	MetricsCloudWatch = "cloudwatch"
	MetricsSQLite     = "sqlite"
)

var telegramTokenRegex = regexp.MustCompile(`^\d+:[A-Za-z0-9_-]+$`)

// CLIOptions holds command-line overrides. Empty fields leave the
// environment value in place.
type CLIOptions struct {
	EnvFile        string // --env-file: dotenv file to load instead of .env
	StoreType      string // --store: s3 or local
	StoreDir       string // --store-dir: local store root
	Bucket         string // --bucket: S3 bucket
	Notifiers      string // --notifiers: comma list of notifier types
	MetricsBackend string // --metrics: cloudwatch or sqlite
	LogLevel       string // --log-level
	NoDatabase     bool   // --no-db: disable history
}

// Config holds all application configuration
type Config struct {
	// Object storage
	ObjectStoreType string // "s3" (default) or "local"
	BucketName      string
	LocalStoreDir   string
	AWSRegion       string
	MaxLogSizeMB    int

	// Notifications
	Notifiers        []string
	SNSTopicARN      string
	TelegramBotToken string
	TelegramChatID   int64

	// Metrics
	MetricsBackend      string // "cloudwatch" (default) or "sqlite"
	CloudWatchNamespace string

	// History
	EnableDatabase       bool
	DatabasePath         string
	HistoryRetentionDays int

	// Operator logging
	LogLevel string
	LogDir   string

	// Scheduling
	ReportSchedule  string
	ReportTimezone  string
	WatchLocalStore bool

	// Demo workload and application log
	MongoURI      string
	MongoDatabase string
	AppLoggerName string
	LogFilePath   string

	location *time.Location
}

// Load loads configuration from .env file and environment variables.
// For CLI overrides, use LoadWithCLI instead.
func Load() (*Config, error) {
	return LoadWithCLI(nil)
}

// LoadWithCLI loads configuration with CLI argument overrides
// Priority: CLI args > .env file > OS environment variables
func LoadWithCLI(cli *CLIOptions) (*Config, error) {
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// godotenv.Load() sets OS env vars from .env, which viper then reads
	if cli != nil && cli.EnvFile != "" {
		if err := godotenv.Overload(cli.EnvFile); err != nil {
			return nil, fmt.Errorf("failed to load env file %s: %w", cli.EnvFile, err)
		}
	} else {
		_ = godotenv.Load()
	}

	setDefaults()

	config := &Config{
		ObjectStoreType: strings.ToLower(viper.GetString("OBJECT_STORE_TYPE")),
		BucketName:      viper.GetString("BUCKET_NAME"),
		LocalStoreDir:   viper.GetString("LOCAL_STORE_DIR"),
		AWSRegion:       viper.GetString("AWS_REGION"),
		MaxLogSizeMB:    viper.GetInt("MAX_LOG_SIZE_MB"),

		Notifiers:        splitList(viper.GetString("NOTIFIERS")),
		SNSTopicARN:      viper.GetString("SNS_TOPIC_ARN"),
		TelegramBotToken: viper.GetString("TELEGRAM_BOT_TOKEN"),
		TelegramChatID:   viper.GetInt64("TELEGRAM_CHAT_ID"),

		MetricsBackend:      strings.ToLower(viper.GetString("METRICS_BACKEND")),
		CloudWatchNamespace: viper.GetString("CLOUDWATCH_NAMESPACE"),

		EnableDatabase:       viper.GetBool("ENABLE_DATABASE"),
		DatabasePath:         viper.GetString("DATABASE_PATH"),
		HistoryRetentionDays: viper.GetInt("HISTORY_RETENTION_DAYS"),

		LogLevel: viper.GetString("LOG_LEVEL"),
		LogDir:   viper.GetString("LOG_DIR"),

		ReportSchedule:  viper.GetString("REPORT_SCHEDULE"),
		ReportTimezone:  viper.GetString("REPORT_TIMEZONE"),
		WatchLocalStore: viper.GetBool("WATCH_LOCAL_STORE"),

		MongoURI:      viper.GetString("MONGO_URI"),
		MongoDatabase: viper.GetString("MONGO_DATABASE"),
		AppLoggerName: viper.GetString("APP_LOGGER_NAME"),
		LogFilePath:   viper.GetString("LOG_FILE_PATH"),
	}

	config.applyCLI(cli)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// applyCLI applies command-line overrides (highest priority)
func (c *Config) applyCLI(cli *CLIOptions) {
	if cli == nil {
		return
	}
	if cli.StoreType != "" {
		c.ObjectStoreType = strings.ToLower(cli.StoreType)
	}
	if cli.StoreDir != "" {
		c.LocalStoreDir = cli.StoreDir
	}
	if cli.Bucket != "" {
		c.BucketName = cli.Bucket
	}
	if cli.Notifiers != "" {
		c.Notifiers = splitList(cli.Notifiers)
	}
	if cli.MetricsBackend != "" {
		c.MetricsBackend = strings.ToLower(cli.MetricsBackend)
	}
	if cli.LogLevel != "" {
		c.LogLevel = cli.LogLevel
	}
	if cli.NoDatabase {
		c.EnableDatabase = false
	}
}

// setDefaults sets default configuration values
func setDefaults() {
	viper.SetDefault("OBJECT_STORE_TYPE", StoreS3)
	viper.SetDefault("LOCAL_STORE_DIR", "./data/logs")
	viper.SetDefault("AWS_REGION", "us-east-1")
	viper.SetDefault("MAX_LOG_SIZE_MB", 50)

	viper.SetDefault("NOTIFIERS", string(analyzer.NotifierSNS))

	viper.SetDefault("METRICS_BACKEND", MetricsCloudWatch)
	viper.SetDefault("CLOUDWATCH_NAMESPACE", analyzer.DefaultNamespace)

	viper.SetDefault("ENABLE_DATABASE", true)
	viper.SetDefault("DATABASE_PATH", "./data/history.db")
	viper.SetDefault("HISTORY_RETENTION_DAYS", 90)

	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("LOG_DIR", "./logs")

	viper.SetDefault("REPORT_SCHEDULE", "0 6 * * *")
	viper.SetDefault("REPORT_TIMEZONE", "UTC")
	viper.SetDefault("WATCH_LOCAL_STORE", false)

	viper.SetDefault("MONGO_URI", "mongodb://localhost:27017/")
	viper.SetDefault("MONGO_DATABASE", "sample_database")
	viper.SetDefault("APP_LOGGER_NAME", "XemplaLogger")
	viper.SetDefault("LOG_FILE_PATH", "./logs/app.log")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if err := c.validateObjectStore(); err != nil {
		return err
	}

	if err := c.validateNotifiers(); err != nil {
		return err
	}

	switch c.MetricsBackend {
	case MetricsCloudWatch:
		if c.CloudWatchNamespace == "" {
			return fmt.Errorf("CLOUDWATCH_NAMESPACE is required when METRICS_BACKEND=cloudwatch")
		}
	case MetricsSQLite:
		if !c.EnableDatabase {
			return fmt.Errorf("METRICS_BACKEND=sqlite requires ENABLE_DATABASE=true")
		}
	default:
		return fmt.Errorf("METRICS_BACKEND must be 'cloudwatch' or 'sqlite' (got: %s)", c.MetricsBackend)
	}

	if c.EnableDatabase {
		if c.DatabasePath == "" {
			return fmt.Errorf("DATABASE_PATH is required when ENABLE_DATABASE=true")
		}
		if c.HistoryRetentionDays < 1 || c.HistoryRetentionDays > 3650 {
			return fmt.Errorf("HISTORY_RETENTION_DAYS must be between 1 and 3650")
		}
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		return fmt.Errorf("LOG_LEVEL must be one of: debug, info, warn, error")
	}

	if _, err := cron.ParseStandard(c.ReportSchedule); err != nil {
		return fmt.Errorf("REPORT_SCHEDULE is not a valid cron expression: %w", err)
	}
	loc, err := time.LoadLocation(c.ReportTimezone)
	if err != nil {
		return fmt.Errorf("REPORT_TIMEZONE is not a valid IANA time zone: %w", err)
	}
	c.location = loc

	if c.WatchLocalStore && c.ObjectStoreType != StoreLocal {
		return fmt.Errorf("WATCH_LOCAL_STORE requires OBJECT_STORE_TYPE=local")
	}

	return nil
}

func (c *Config) validateObjectStore() error {
	switch c.ObjectStoreType {
	case StoreS3:
		if c.BucketName == "" {
			return fmt.Errorf("BUCKET_NAME is required when OBJECT_STORE_TYPE=s3")
		}
		if c.AWSRegion == "" {
			return fmt.Errorf("AWS_REGION is required when OBJECT_STORE_TYPE=s3")
		}
	case StoreLocal:
		if c.LocalStoreDir == "" {
			return fmt.Errorf("LOCAL_STORE_DIR is required when OBJECT_STORE_TYPE=local")
		}
	default:
		return fmt.Errorf("OBJECT_STORE_TYPE must be 's3' or 'local' (got: %s)", c.ObjectStoreType)
	}

	if c.MaxLogSizeMB < 1 || c.MaxLogSizeMB > 1024 {
		return fmt.Errorf("MAX_LOG_SIZE_MB must be between 1 and 1024")
	}
	return nil
}

func (c *Config) validateNotifiers() error {
	if len(c.Notifiers) == 0 {
		return fmt.Errorf("NOTIFIERS must name at least one of: %s", strings.Join(analyzer.ValidNotifierTypes(), ", "))
	}

	for _, name := range c.Notifiers {
		t, err := analyzer.ParseNotifierType(name)
		if err != nil {
			return fmt.Errorf("NOTIFIERS: %w", err)
		}

		switch t {
		case analyzer.NotifierSNS:
			if c.SNSTopicARN == "" {
				return fmt.Errorf("SNS_TOPIC_ARN is required when NOTIFIERS includes sns")
			}
			if !strings.HasPrefix(c.SNSTopicARN, "arn:") {
				return fmt.Errorf("SNS_TOPIC_ARN must start with 'arn:'")
			}
		case analyzer.NotifierTelegram:
			if c.TelegramBotToken == "" {
				return fmt.Errorf("TELEGRAM_BOT_TOKEN is required when NOTIFIERS includes telegram")
			}
			if !telegramTokenRegex.MatchString(c.TelegramBotToken) {
				return fmt.Errorf("TELEGRAM_BOT_TOKEN has invalid format (expected: 'number:token')")
			}
			if c.TelegramChatID == 0 {
				return fmt.Errorf("TELEGRAM_CHAT_ID is required when NOTIFIERS includes telegram")
			}
		}
	}
	return nil
}

// Location returns the report time zone. It is UTC until Validate succeeds.
func (c *Config) Location() *time.Location {
	if c.location == nil {
		return time.UTC
	}
	return c.location
}

// NotifierTypes returns the configured notifier types in configuration order.
// Call after Validate.
func (c *Config) NotifierTypes() []analyzer.NotifierType {
	types := make([]analyzer.NotifierType, 0, len(c.Notifiers))
	for _, name := range c.Notifiers {
		if t, err := analyzer.ParseNotifierType(name); err == nil {
			types = append(types, t)
		}
	}
	return types
}

// IsLocalStore returns true if log objects live on the local filesystem.
func (c *Config) IsLocalStore() bool {
	return c.ObjectStoreType == StoreLocal
}

// UsesSQLiteMetrics returns true if metrics are kept in the history database.
func (c *Config) UsesSQLiteMetrics() bool {
	return c.MetricsBackend == MetricsSQLite
}

// NeedsAWS returns true if any configured component talks to AWS.
func (c *Config) NeedsAWS() bool {
	if c.ObjectStoreType == StoreS3 || c.MetricsBackend == MetricsCloudWatch {
		return true
	}
	for _, n := range c.Notifiers {
		if n == string(analyzer.NotifierSNS) {
			return true
		}
	}
	return false
}

// splitList splits a comma separated list, dropping blanks and duplicates.
func splitList(s string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part == "" || seen[part] {
			continue
		}
		seen[part] = true
		out = append(out, part)
	}
	return out
}
