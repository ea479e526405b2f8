package analyzer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	internalerrors "github.com/olegiv/logwatch-alerts-go/internal/errors"
	"github.com/olegiv/logwatch-alerts-go/internal/logging"
	"github.com/olegiv/logwatch-alerts-go/internal/logscan"
)

// ScanRecord is the persisted outcome of one critical scan.
type ScanRecord struct {
	ID         int64
	RunID      string
	ScannedAt  time.Time
	ObjectKey  string
	TotalLines int
	Issues     []string
	Notified   bool
}

// ScanHistory persists scan outcomes.
type ScanHistory interface {
	SaveScan(ctx context.Context, rec *ScanRecord) error
}

// ScannerConfig wires a Scanner. History is optional.
type ScannerConfig struct {
	Store    ObjectStore
	Notifier Notifier
	History  ScanHistory
	Log      *logging.SecureLogger
}

// Scanner runs the critical-filter scan over one log object.
type Scanner struct {
	store      ObjectStore
	notifier   Notifier
	history    ScanHistory
	log        *logging.SecureLogger
	summarizer *logscan.Summarizer
	now        func() time.Time
}

// ScanResult describes a finished scan.
type ScanResult struct {
	RunID      string
	Key        string
	TotalLines int
	Issues     []string
	Notified   bool
}

// NewScanner creates a scanner.
func NewScanner(cfg ScannerConfig) (*Scanner, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("scanner requires an object store")
	}
	if cfg.Notifier == nil {
		return nil, fmt.Errorf("scanner requires a notifier")
	}
	if cfg.Log == nil {
		cfg.Log = logging.Nop()
	}
	return &Scanner{
		store:      cfg.Store,
		notifier:   cfg.Notifier,
		history:    cfg.History,
		log:        cfg.Log,
		summarizer: logscan.NewCriticalFilter(),
		now:        time.Now,
	}, nil
}

// Scan reads the object under key and notifies about its critical lines.
// An object without critical lines is a successful scan with nothing sent.
func (s *Scanner) Scan(ctx context.Context, key string) (*ScanResult, error) {
	result := &ScanResult{RunID: uuid.NewString(), Key: key}

	content, err := s.store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrObjectFetch, key, internalerrors.SanitizeError(err))
	}

	lines := logscan.SplitLines(content)
	result.TotalLines = len(lines)
	result.Issues = s.summarizer.FindCritical(lines)

	s.log.Info().
		Str("run_id", result.RunID).
		Str("key", key).
		Int("lines", result.TotalLines).
		Int("critical_issues", len(result.Issues)).
		Msg("Log object scanned")

	if msg, ok := logscan.CriticalMessage(result.Issues); ok {
		if err := s.notifier.Send(ctx, msg.Subject, msg.Body); err != nil {
			return nil, dispatchError(err)
		}
		result.Notified = true
		s.log.Info().Str("run_id", result.RunID).Msg("Critical issues notification sent")
	}

	if s.history != nil {
		rec := &ScanRecord{
			RunID:      result.RunID,
			ScannedAt:  s.now(),
			ObjectKey:  key,
			TotalLines: result.TotalLines,
			Issues:     result.Issues,
			Notified:   result.Notified,
		}
		if err := s.history.SaveScan(ctx, rec); err != nil {
			s.log.Warn().Err(err).Msg("Failed to save scan result")
		}
	}

	return result, nil
}

// dispatchError makes sure err matches ErrNotificationDispatch.
func dispatchError(err error) error {
	if errors.Is(err, ErrNotificationDispatch) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrNotificationDispatch, internalerrors.SanitizeError(err))
}
