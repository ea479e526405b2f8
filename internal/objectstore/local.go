package objectstore

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/olegiv/logwatch-alerts-go/internal/analyzer"
	"github.com/spf13/afero"
)

// Compile-time interface checks
var (
	_ analyzer.ObjectStore  = (*LocalStore)(nil)
	_ analyzer.ObjectWriter = (*LocalStore)(nil)
)

// LocalStore keeps log objects as files below a root directory. Keys use
// forward slashes and map onto the directory tree.
type LocalStore struct {
	fs        afero.Fs
	root      string
	maxSizeMB int
}

// NewLocalStore creates a store rooted at root on the OS filesystem.
func NewLocalStore(root string, maxSizeMB int) (*LocalStore, error) {
	return NewLocalStoreFs(afero.NewOsFs(), root, maxSizeMB)
}

// NewLocalStoreFs creates a store on the given filesystem.
func NewLocalStoreFs(fs afero.Fs, root string, maxSizeMB int) (*LocalStore, error) {
	if root == "" {
		return nil, fmt.Errorf("local store directory is required")
	}
	if err := fs.MkdirAll(root, 0750); err != nil {
		return nil, fmt.Errorf("failed to create local store directory: %w", err)
	}
	return &LocalStore{fs: fs, root: filepath.Clean(root), maxSizeMB: maxSizeMB}, nil
}

// Root returns the root directory.
func (l *LocalStore) Root() string {
	return l.root
}

// Get reads the object under key.
func (l *LocalStore) Get(_ context.Context, key string) (string, error) {
	p, err := l.pathFor(key)
	if err != nil {
		return "", err
	}

	info, err := l.fs.Stat(p)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return "", fmt.Errorf("failed to stat %s: %w", key, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%w: %s is a directory", ErrNotFound, key)
	}

	if maxBytes := int64(l.maxSizeMB) * bytesPerMB; maxBytes > 0 && info.Size() > maxBytes {
		return "", fmt.Errorf("%w of %dMB: %s (size: %.2fMB)",
			ErrTooLarge, l.maxSizeMB, key, float64(info.Size())/bytesPerMB)
	}

	content, err := afero.ReadFile(l.fs, p)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", key, err)
	}
	return string(content), nil
}

// List walks the tree and returns files whose key starts with prefix, in
// key order.
func (l *LocalStore) List(_ context.Context, prefix string) ([]analyzer.ObjectInfo, error) {
	objects := make([]analyzer.ObjectInfo, 0)
	err := afero.Walk(l.fs, l.root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || strings.HasSuffix(info.Name(), tmpSuffix) {
			return nil
		}
		key, err := l.KeyFor(p)
		if err != nil {
			return err
		}
		if strings.HasPrefix(key, prefix) {
			objects = append(objects, analyzer.ObjectInfo{
				Key:          key,
				Size:         info.Size(),
				LastModified: info.ModTime(),
			})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", prefix, err)
	}
	return objects, nil
}

const tmpSuffix = ".tmp"

// Put writes body under key. The file is written next to its final name and
// renamed into place, so readers never see a partial object.
func (l *LocalStore) Put(_ context.Context, key string, body []byte) error {
	p, err := l.pathFor(key)
	if err != nil {
		return err
	}
	if err := l.fs.MkdirAll(filepath.Dir(p), 0750); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", key, err)
	}

	tmp := p + tmpSuffix
	if err := afero.WriteFile(l.fs, tmp, body, 0640); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	if err := l.fs.Rename(tmp, p); err != nil {
		_ = l.fs.Remove(tmp)
		return fmt.Errorf("failed to store %s: %w", key, err)
	}
	return nil
}

// KeyFor converts a file path below the root into its object key.
func (l *LocalStore) KeyFor(p string) (string, error) {
	rel, err := filepath.Rel(l.root, filepath.Clean(p))
	if err != nil {
		return "", fmt.Errorf("path %s is outside the store: %w", p, err)
	}
	if rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %s is outside the store", p)
	}
	return filepath.ToSlash(rel), nil
}

// pathFor maps key onto a path below the root, rejecting keys that escape it.
func (l *LocalStore) pathFor(key string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("object key is required")
	}
	clean := path.Clean("/" + key)
	if clean == "/" || clean != "/"+strings.TrimPrefix(key, "/") {
		return "", fmt.Errorf("invalid object key: %q", key)
	}
	return filepath.Join(l.root, filepath.FromSlash(clean[1:])), nil
}
