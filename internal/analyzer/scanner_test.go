package analyzer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/olegiv/logwatch-alerts-go/internal/logscan"
)

const scanKey = "2026/10/18/app-120000-abcd.log"

func newTestScanner(t *testing.T, store ObjectStore, n Notifier, h ScanHistory) *Scanner {
	t.Helper()
	s, err := NewScanner(ScannerConfig{Store: store, Notifier: n, History: h})
	if err != nil {
		t.Fatalf("NewScanner() error = %v", err)
	}
	return s
}

func TestNewScanner_Validation(t *testing.T) {
	if _, err := NewScanner(ScannerConfig{Notifier: &fakeNotifier{}}); err == nil {
		t.Error("expected error without store")
	}
	if _, err := NewScanner(ScannerConfig{Store: &fakeStore{}}); err == nil {
		t.Error("expected error without notifier")
	}
}

func TestScanner_ScanSendsCriticalLines(t *testing.T) {
	content := strings.Join([]string{
		"2026-10-18 10:00:00 - XemplaLogger - INFO - Query find_users executed in 12.00ms",
		"2026-10-18 10:00:01 - XemplaLogger - ERROR - Error in insert_user: duplicate key",
		"2026-10-18 10:00:02 - XemplaLogger - WARNING - Slow query detected: potentially_slow_query took more than 5 seconds (6001.00ms)",
		"2026-10-18 10:00:03 - XemplaLogger - WARNING - cache miss",
	}, "\n") + "\n"

	store := &fakeStore{objects: map[string]string{scanKey: content}}
	n := &fakeNotifier{}
	h := &fakeHistory{}
	s := newTestScanner(t, store, n, h)

	res, err := s.Scan(context.Background(), scanKey)
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if len(res.Issues) != 2 {
		t.Fatalf("Issues = %v, want 2 lines", res.Issues)
	}
	if !res.Notified || len(n.sent) != 1 {
		t.Fatalf("expected exactly one notification, got %d", len(n.sent))
	}
	if n.sent[0].subject != logscan.CriticalSubject {
		t.Errorf("subject = %q", n.sent[0].subject)
	}
	wantBody := "Critical issues found in logs:\n\n" + res.Issues[0] + "\n" + res.Issues[1]
	if n.sent[0].body != wantBody {
		t.Errorf("body = %q, want %q", n.sent[0].body, wantBody)
	}
	if len(h.scans) != 1 || h.scans[0].ObjectKey != scanKey || !h.scans[0].Notified {
		t.Errorf("history = %+v", h.scans)
	}
	if res.RunID == "" || h.scans[0].RunID != res.RunID {
		t.Error("run id should be set and persisted")
	}
}

func TestScanner_ScanNothingCritical(t *testing.T) {
	store := &fakeStore{objects: map[string]string{scanKey: "INFO - all good\nWARNING - disk 80%\n"}}
	n := &fakeNotifier{}
	s := newTestScanner(t, store, n, nil)

	res, err := s.Scan(context.Background(), scanKey)
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if res.Notified || len(n.sent) != 0 {
		t.Error("no notification expected without critical lines")
	}
	if res.Issues == nil || len(res.Issues) != 0 {
		t.Errorf("Issues = %#v, want empty non-nil", res.Issues)
	}
}

func TestScanner_SlowQueryPhraseAloneIsNotAlerted(t *testing.T) {
	store := &fakeStore{objects: map[string]string{scanKey: "WARNING: Slow query detected in module X\nINFO done"}}
	n := &fakeNotifier{}
	s := newTestScanner(t, store, n, nil)

	res, err := s.Scan(context.Background(), scanKey)
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if len(res.Issues) != 0 || len(n.sent) != 0 {
		t.Errorf("Issues = %q, sent = %d; only the threshold phrase marks a slow warning", res.Issues, len(n.sent))
	}
}

func TestScanner_ScanFetchError(t *testing.T) {
	n := &fakeNotifier{}
	s := newTestScanner(t, &fakeStore{objects: map[string]string{}}, n, nil)

	_, err := s.Scan(context.Background(), "missing.log")
	if !errors.Is(err, ErrObjectFetch) {
		t.Fatalf("Scan() error = %v, want ErrObjectFetch", err)
	}
	if len(n.sent) != 0 {
		t.Error("nothing should be sent when the object cannot be read")
	}
}

func TestScanner_ScanDispatchError(t *testing.T) {
	store := &fakeStore{objects: map[string]string{scanKey: "ERROR boom"}}
	h := &fakeHistory{}
	s := newTestScanner(t, store, &fakeNotifier{err: errors.New("endpoint unreachable")}, h)

	_, err := s.Scan(context.Background(), scanKey)
	if !errors.Is(err, ErrNotificationDispatch) {
		t.Fatalf("Scan() error = %v, want ErrNotificationDispatch", err)
	}
	if strings.Count(err.Error(), ErrNotificationDispatch.Error()) != 1 {
		t.Errorf("sentinel should appear once: %v", err)
	}
	if len(h.scans) != 0 {
		t.Error("failed scans should not be persisted")
	}
}

func TestScanner_RegistryErrorNotDoubleWrapped(t *testing.T) {
	r := NewRegistry()
	_ = r.Register(NotifierSNS, &fakeNotifier{name: "sns", err: errors.New("denied")})
	store := &fakeStore{objects: map[string]string{scanKey: "CRITICAL down"}}
	s := newTestScanner(t, store, r, nil)

	_, err := s.Scan(context.Background(), scanKey)
	if !errors.Is(err, ErrNotificationDispatch) {
		t.Fatalf("Scan() error = %v", err)
	}
	if strings.Count(err.Error(), ErrNotificationDispatch.Error()) != 1 {
		t.Errorf("sentinel should appear once: %v", err)
	}
}

func TestScanner_HistoryFailureIgnored(t *testing.T) {
	store := &fakeStore{objects: map[string]string{scanKey: "ERROR boom"}}
	s := newTestScanner(t, store, &fakeNotifier{}, &fakeHistory{err: errors.New("disk full")})

	if _, err := s.Scan(context.Background(), scanKey); err != nil {
		t.Errorf("history failure should not fail the scan: %v", err)
	}
}
