package secretstore

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/vitalsync/device-transfer-backend/interfaces"
)

// FileStore implements a SecretStore using one file per secret under a base
// directory. Files are created with 0600 permissions; the directory with
// 0700.
type FileStore struct {
	baseDir string
	log     *slog.Logger
}

// NewFileStore creates a file-backed secret store rooted at baseDir,
// creating the directory if needed.
func NewFileStore(baseDir string, log *slog.Logger) (*FileStore, error) {
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("%w: creating secret directory: %v", interfaces.ErrStoreUnavailable, err)
	}
	return &FileStore{baseDir: baseDir, log: log}, nil
}

// Load implements interfaces.SecretStore.
func (s *FileStore) Load(ctx context.Context, id interfaces.SecretID) ([]byte, error) {
	path, err := s.secretPath(id)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, interfaces.ErrSecretNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", interfaces.ErrStoreUnavailable, id, err)
	}
	s.log.Debug("Loaded secret from file", slog.String("id", string(id)), slog.Int("size", len(data)))
	return data, nil
}

// Save implements interfaces.SecretStore. The write goes through a temp file
// and rename so a crash never leaves a half-written secret behind.
func (s *FileStore) Save(ctx context.Context, id interfaces.SecretID, data []byte) error {
	path, err := s.secretPath(id)
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("%w: writing %s: %v", interfaces.ErrStoreUnavailable, id, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("%w: replacing %s: %v", interfaces.ErrStoreUnavailable, id, err)
	}
	return nil
}

// Delete implements interfaces.SecretStore.
func (s *FileStore) Delete(ctx context.Context, id interfaces.SecretID) error {
	path, err := s.secretPath(id)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("%w: deleting %s: %v", interfaces.ErrStoreUnavailable, id, err)
	}
	return nil
}

// secretPath maps a secret ID onto a file name, rejecting IDs that could
// escape the base directory.
func (s *FileStore) secretPath(id interfaces.SecretID) (string, error) {
	name := string(id)
	if name == "" || strings.ContainsAny(name, "/\\") || strings.Contains(name, "..") {
		return "", fmt.Errorf("%w: invalid secret id %q", interfaces.ErrStoreUnavailable, name)
	}
	return filepath.Join(s.baseDir, name), nil
}
