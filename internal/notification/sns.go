// Package notification delivers alert and report messages over Amazon SNS
// and Telegram.
package notification

import (
	"context"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/olegiv/logwatch-alerts-go/internal/analyzer"
)

const (
	// maxSubjectLength is the SNS limit for email subjects
	maxSubjectLength = 100
	// maxBodyBytes is the SNS message size limit
	maxBodyBytes = 256 * 1024

	truncatedMarker = "\n... [truncated]"
)

var _ analyzer.Notifier = (*SNSPublisher)(nil)

type snsAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SNSPublisher publishes messages to one SNS topic.
type SNSPublisher struct {
	client   snsAPI
	topicARN string
}

// NewSNSPublisher creates a publisher for topicARN.
func NewSNSPublisher(client snsAPI, topicARN string) (*SNSPublisher, error) {
	if !strings.HasPrefix(topicARN, "arn:") {
		return nil, fmt.Errorf("invalid SNS topic ARN: %q", topicARN)
	}
	return &SNSPublisher{client: client, topicARN: topicARN}, nil
}

// Name implements analyzer.Notifier.
func (p *SNSPublisher) Name() string {
	return string(analyzer.NotifierSNS)
}

// Send implements analyzer.Notifier. Subject and body are trimmed to the
// SNS limits.
func (p *SNSPublisher) Send(ctx context.Context, subject, body string) error {
	out, err := p.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(p.topicARN),
		Subject:  aws.String(cleanSubject(subject)),
		Message:  aws.String(truncateBody(body)),
	})
	if err != nil {
		return fmt.Errorf("failed to publish to SNS: %w", err)
	}
	if out != nil && aws.ToString(out.MessageId) == "" {
		return fmt.Errorf("SNS publish returned no message id")
	}
	return nil
}

// cleanSubject makes subject acceptable to SNS: printable ASCII on a single
// line, at most maxSubjectLength characters.
func cleanSubject(subject string) string {
	var b strings.Builder
	for _, r := range subject {
		switch {
		case r == '\n' || r == '\r' || r == '\t':
			b.WriteByte(' ')
		case r < utf8.RuneSelf && unicode.IsPrint(r):
			b.WriteRune(r)
		}
		if b.Len() >= maxSubjectLength {
			break
		}
	}
	s := strings.TrimSpace(b.String())
	if len(s) > maxSubjectLength {
		s = s[:maxSubjectLength]
	}
	return s
}

// truncateBody cuts body to maxBodyBytes on a rune boundary, appending a
// marker when anything was removed.
func truncateBody(body string) string {
	if len(body) <= maxBodyBytes {
		return body
	}
	cut := maxBodyBytes - len(truncatedMarker)
	for cut > 0 && !utf8.RuneStart(body[cut]) {
		cut--
	}
	return body[:cut] + truncatedMarker
}
