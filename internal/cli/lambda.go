package cli

import (
	"context"
	"fmt"
	"net/url"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/olegiv/logwatch-alerts-go/internal/logging"
	"github.com/spf13/cobra"
)

// Lambda handler kinds.
const (
	handlerScan   = "scan"
	handlerReport = "report"
)

// Generic response bodies. Error details go to the log only.
const (
	scanOKBody       = "Log parsing completed successfully"
	scanFailedBody   = "Error parsing logs"
	reportOKBody     = "Daily summary sent successfully"
	reportFailedBody = "Error creating daily summary"
)

// Response is returned to the Lambda runtime.
type Response struct {
	StatusCode int    `json:"statusCode"`
	Body       string `json:"body"`
}

var lambdaHandlerKind string

var lambdaCmd = &cobra.Command{
	Use:   "lambda --handler scan|report",
	Short: "Serve as an AWS Lambda function",
	Long: `Start the AWS Lambda runtime loop.

  --handler scan    scans every object named in an S3 put event
  --handler report  sends yesterday's summary on a scheduled event

Operator logs go to stdout as JSON.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if lambdaHandlerKind != handlerScan && lambdaHandlerKind != handlerReport {
			return fmt.Errorf("--handler must be 'scan' or 'report' (got: %q)", lambdaHandlerKind)
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		app, err := newApp(cmd.Context(), cfg, logConsole)
		if err != nil {
			return err
		}
		defer app.Close()

		h, err := newLambdaHandler(app)
		if err != nil {
			return err
		}
		if lambdaHandlerKind == handlerScan {
			lambda.StartWithOptions(h.handleS3Event, lambda.WithContext(cmd.Context()))
		} else {
			lambda.StartWithOptions(h.handleScheduledEvent, lambda.WithContext(cmd.Context()))
		}
		return nil
	},
}

func init() {
	lambdaCmd.Flags().StringVar(&lambdaHandlerKind, "handler", "", "handler to serve: scan or report")
	rootCmd.AddCommand(lambdaCmd)
}

type lambdaHandler struct {
	scan    func(ctx context.Context, bucket, key string) error
	report  func(ctx context.Context) error
	cleanup func(ctx context.Context)
	log     *logging.SecureLogger
}

func newLambdaHandler(app *App) (*lambdaHandler, error) {
	reporter, err := app.Reporter()
	if err != nil {
		return nil, err
	}

	return &lambdaHandler{
		scan: func(ctx context.Context, bucket, key string) error {
			store, err := app.storeForBucket(bucket)
			if err != nil {
				return err
			}
			scanner, err := app.Scanner(store)
			if err != nil {
				return err
			}
			_, err = scanner.Scan(ctx, key)
			return err
		},
		report: func(ctx context.Context) error {
			_, err := reporter.Run(ctx, reporter.Yesterday())
			return err
		},
		cleanup: app.CleanupHistory,
		log:     app.Log,
	}, nil
}

// handleS3Event scans every object in the event. S3 delivers keys URL
// encoded.
func (h *lambdaHandler) handleS3Event(ctx context.Context, event events.S3Event) (Response, error) {
	failed := 0
	for _, record := range event.Records {
		bucket := record.S3.Bucket.Name
		key, err := url.QueryUnescape(record.S3.Object.Key)
		if err != nil {
			h.log.Error().Err(err).Str("key", record.S3.Object.Key).Msg("Invalid object key in event")
			failed++
			continue
		}

		if err := h.scan(ctx, bucket, key); err != nil {
			h.log.Error().Err(err).Str("bucket", bucket).Str("key", key).Msg("Scan failed")
			failed++
		}
	}
	h.runCleanup(ctx)

	if failed > 0 {
		return Response{StatusCode: 500, Body: scanFailedBody}, nil
	}
	return Response{StatusCode: 200, Body: scanOKBody}, nil
}

func (h *lambdaHandler) handleScheduledEvent(ctx context.Context, event events.CloudWatchEvent) (Response, error) {
	h.log.Info().Str("source", event.Source).Str("event_id", event.ID).Msg("Scheduled report triggered")

	err := h.report(ctx)
	h.runCleanup(ctx)
	if err != nil {
		h.log.Error().Err(err).Msg("Daily report failed")
		return Response{StatusCode: 500, Body: reportFailedBody}, nil
	}
	return Response{StatusCode: 200, Body: reportOKBody}, nil
}

func (h *lambdaHandler) runCleanup(ctx context.Context) {
	if h.cleanup != nil {
		h.cleanup(ctx)
	}
}
