package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/olegiv/logwatch-alerts-go/internal/objectstore"
)

func TestShouldIgnoreFile(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"/data/2026/10/18/app.log", false},
		{"/data/2026/10/18/.app.log", true},
		{"/data/2026/10/18/app.log.swp", true},
		{"/data/2026/10/18/app.log.tmp", true},
		{"/data/2026/10/18/app.log~", true},
		{"/data/2026", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := shouldIgnoreFile(tt.path); got != tt.want {
				t.Errorf("shouldIgnoreFile(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}

func startWatcher(t *testing.T, settle time.Duration) (*objectstore.LocalStore, <-chan string) {
	t.Helper()
	store, err := objectstore.NewLocalStore(t.TempDir(), 1)
	if err != nil {
		t.Fatalf("NewLocalStore() error = %v", err)
	}

	keys := make(chan string, 16)
	w, err := New(store, func(_ context.Context, key string) { keys <- key }, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	w.settle = settle

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = w.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return store, keys
}

func waitKey(t *testing.T, keys <-chan string) string {
	t.Helper()
	select {
	case k := <-keys:
		return k
	case <-time.After(5 * time.Second):
		t.Fatal("no key reported")
		return ""
	}
}

func TestWatcherReportsObjectInNewDirectories(t *testing.T) {
	store, keys := startWatcher(t, 20*time.Millisecond)

	key := "2026/10/18/XemplaLogger-060000-abc.log"
	if err := store.Put(context.Background(), key, []byte("line\n")); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	if got := waitKey(t, keys); got != key {
		t.Errorf("key = %q, want %q", got, key)
	}
}

func TestWatcherSkipsIgnoredFiles(t *testing.T) {
	store, keys := startWatcher(t, 20*time.Millisecond)
	root := store.Root()

	if err := os.WriteFile(filepath.Join(root, ".hidden"), []byte("x"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "app.log~"), []byte("x"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "app.log"), []byte("x"), 0600); err != nil {
		t.Fatal(err)
	}

	if got := waitKey(t, keys); got != "app.log" {
		t.Errorf("key = %q, want app.log", got)
	}
}

func TestWatcherCoalescesWrites(t *testing.T) {
	store, keys := startWatcher(t, 300*time.Millisecond)
	p := filepath.Join(store.Root(), "burst.log")

	f, err := os.Create(p)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 5; i++ {
		if _, err := f.WriteString("line\n"); err != nil {
			t.Fatal(err)
		}
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}

	if got := waitKey(t, keys); got != "burst.log" {
		t.Errorf("key = %q, want burst.log", got)
	}
	select {
	case k := <-keys:
		t.Errorf("unexpected second report %q", k)
	case <-time.After(time.Second):
	}
}
