package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/i474232898/nowplaying-aggregator/internal/logging"
)

var (
	// ErrInvalidKey is returned for keys that are empty or would escape the store directory.
	ErrInvalidKey = errors.New("invalid cache key")
)

// FileStore persists one JSON document per key inside a single directory.
// Writes go to a temporary file in the same directory and are renamed into
// place, so readers see either the previous or the new complete document.
type FileStore struct {
	dir      string
	validate *validator.Validate
}

// NewFileStore creates the directory if needed and returns a store rooted at it.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("store: create directory %s: %w", dir, err)
	}
	return &FileStore{
		dir:      dir,
		validate: validator.New(),
	}, nil
}

// Dir returns the directory backing the store.
func (s *FileStore) Dir() string {
	return s.dir
}

func (s *FileStore) path(key string) (string, error) {
	if key == "" || strings.ContainsAny(key, `/\`) || key == "." || key == ".." {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return filepath.Join(s.dir, key+".json"), nil
}

// Write marshals value as JSON and atomically replaces the document for key.
func (s *FileStore) Write(key string, value any) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("store: marshal %s: %w", key, err)
	}
	if err := atomicWrite(p, data, s.dir); err != nil {
		return fmt.Errorf("store: write %s: %w", key, err)
	}
	return nil
}

// Exists reports whether a document for key is present on disk.
func (s *FileStore) Exists(key string) bool {
	p, err := s.path(key)
	if err != nil {
		return false
	}
	_, err = os.Stat(p)
	return err == nil
}

// decode reads the document for key into dst and validates its shape.
func (s *FileStore) decode(key string, dst any) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	if err := s.validate.Struct(dst); err != nil {
		var invalid *validator.InvalidValidationError
		if errors.As(err, &invalid) {
			// Not a struct; nothing to validate.
			return nil
		}
		return fmt.Errorf("shape: %w", err)
	}
	return nil
}

// Read returns the document stored under key, or def when it is missing,
// unreadable, or does not match the shape of T. It never fails.
func Read[T any](s *FileStore, key string, def T) T {
	var v T
	if err := s.decode(key, &v); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			logging.Warn().Err(err).Str("key", key).Msg("store: unreadable cache entry, using default")
		}
		return def
	}
	return v
}

// EnsureDefault writes def under key if nothing is stored there yet.
func EnsureDefault(s *FileStore, key string, def any) error {
	if s.Exists(key) {
		return nil
	}
	return s.Write(key, def)
}

// atomicWrite writes data to path via a temporary file and rename.
// tmpDir must be on the same filesystem as path.
func atomicWrite(path string, data []byte, tmpDir string) error {
	tmp, err := os.CreateTemp(tmpDir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return err
	}

	if err := os.Rename(tmpName, path); err != nil {
		return err
	}

	success = true
	return nil
}
