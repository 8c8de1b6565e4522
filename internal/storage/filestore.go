// Package storage keeps uploaded document bytes on an afero filesystem.
package storage

import (
	"fmt"
	"log/slog"
	"os"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/afero"
)

var reUnsafe = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

// FileStore saves uploads under a flat directory of the given filesystem.
type FileStore struct {
	fs     afero.Fs
	logger *slog.Logger
	now    func() time.Time
}

// NewFileStore stores files in fs. Use NewDiskStore for an OS directory.
func NewFileStore(fs afero.Fs, logger *slog.Logger) *FileStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileStore{fs: fs, logger: logger, now: time.Now}
}

// NewDiskStore roots a FileStore at dir, creating it if needed.
func NewDiskStore(dir string, logger *slog.Logger) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return NewFileStore(afero.NewBasePathFs(afero.NewOsFs(), dir), logger), nil
}

// SafeName replaces characters outside [a-zA-Z0-9._-] with '_'.
func SafeName(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		name = "upload"
	}
	return reUnsafe.ReplaceAllString(name, "_")
}

// Save writes data as "<unixmillis>-<safe name>" and returns the stored key.
func (s *FileStore) Save(original string, data []byte) (string, error) {
	key := fmt.Sprintf("%d-%s", s.now().UnixMilli(), SafeName(original))
	if err := afero.WriteFile(s.fs, key, data, 0o644); err != nil {
		s.logger.Error("storage.save.failed", "key", key, "error", err)
		return "", fmt.Errorf("save upload %q: %w", key, err)
	}
	s.logger.Debug("storage.save.ok", "key", key, "bytes", len(data))
	return key, nil
}

func (s *FileStore) Read(key string) ([]byte, error) {
	data, err := afero.ReadFile(s.fs, key)
	if err != nil {
		return nil, fmt.Errorf("read upload %q: %w", key, err)
	}
	return data, nil
}

func (s *FileStore) Exists(key string) (bool, error) {
	return afero.Exists(s.fs, key)
}

// Delete removes key; missing files are not an error.
func (s *FileStore) Delete(key string) error {
	if err := s.fs.Remove(key); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete upload %q: %w", key, err)
	}
	return nil
}
