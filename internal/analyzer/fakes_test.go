package analyzer

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
)

type fakeStore struct {
	objects map[string]string
	failGet map[string]bool
	listErr error
}

func (f *fakeStore) Get(_ context.Context, key string) (string, error) {
	if f.failGet[key] {
		return "", errors.New("access denied")
	}
	content, ok := f.objects[key]
	if !ok {
		return "", errors.New("NoSuchKey: " + key)
	}
	return content, nil
}

func (f *fakeStore) List(_ context.Context, prefix string) ([]ObjectInfo, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []ObjectInfo
	for key, content := range f.objects {
		if strings.HasPrefix(key, prefix) {
			out = append(out, ObjectInfo{Key: key, Size: int64(len(content))})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

type sentMessage struct {
	subject string
	body    string
}

type fakeNotifier struct {
	mu   sync.Mutex
	name string
	err  error
	sent []sentMessage
}

func (f *fakeNotifier) Send(_ context.Context, subject, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentMessage{subject: subject, body: body})
	return nil
}

func (f *fakeNotifier) Name() string {
	if f.name == "" {
		return "fake"
	}
	return f.name
}

type fakeMetrics struct {
	stats   Statistics
	err     error
	queries []StatisticsQuery
}

func (f *fakeMetrics) Statistics(_ context.Context, q StatisticsQuery) (Statistics, error) {
	f.queries = append(f.queries, q)
	return f.stats, f.err
}

type fakeHistory struct {
	err     error
	scans   []*ScanRecord
	reports []*ReportRecord
}

func (f *fakeHistory) SaveScan(_ context.Context, rec *ScanRecord) error {
	f.scans = append(f.scans, rec)
	return f.err
}

func (f *fakeHistory) SaveReport(_ context.Context, rec *ReportRecord) error {
	f.reports = append(f.reports, rec)
	return f.err
}
