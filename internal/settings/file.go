package settings

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/pelletier/go-toml/v2"
)

const (
	filePermissions = 0o600
	dirPermissions  = 0o750
)

// FileStore keeps settings as a flat TOML table in a single file. Every Set
// rewrites the file through a temporary file and rename.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore returns a store backed by path. The file is created on the
// first Set.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the backing file path.
func (f *FileStore) Path() string {
	return f.path
}

// Get implements core.SettingsStore.
func (f *FileStore) Get(_ context.Context, key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	values, err := f.read()
	if err != nil {
		return "", false, err
	}

	value, ok := values[key]

	return value, ok, nil
}

// Set implements core.SettingsStore.
func (f *FileStore) Set(_ context.Context, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	values, err := f.read()
	if err != nil {
		return err
	}

	values[key] = value

	return f.write(values)
}

func (f *FileStore) read() (map[string]string, error) {
	values := make(map[string]string)

	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return values, nil
	}

	if err != nil {
		return nil, fmt.Errorf("failed to read settings file %s: %w", f.path, err)
	}

	err = toml.Unmarshal(data, &values)
	if err != nil {
		return nil, fmt.Errorf("failed to parse settings file %s: %w", f.path, err)
	}

	return values, nil
}

func (f *FileStore) write(values map[string]string) error {
	data, err := toml.Marshal(values)
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}

	dir := filepath.Dir(f.path)

	err = os.MkdirAll(dir, dirPermissions)
	if err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".settings-*.toml")
	if err != nil {
		return fmt.Errorf("failed to create temp settings file: %w", err)
	}

	tmpName := tmp.Name()

	_, writeErr := tmp.Write(data)
	closeErr := tmp.Close()

	if writeErr != nil || closeErr != nil {
		_ = os.Remove(tmpName)

		return fmt.Errorf("failed to write settings file: %w", errors.Join(writeErr, closeErr))
	}

	err = os.Chmod(tmpName, filePermissions)
	if err != nil {
		_ = os.Remove(tmpName)

		return fmt.Errorf("failed to set settings file permissions: %w", err)
	}

	err = os.Rename(tmpName, f.path)
	if err != nil {
		_ = os.Remove(tmpName)

		return fmt.Errorf("failed to replace settings file: %w", err)
	}

	return nil
}
