package statuslight

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
)

// ConfigStore loads and saves the configuration document.
type ConfigStore interface {
	// Load reads and validates the current configuration.
	Load() (*Config, error)
	// Save persists the whole configuration, replacing the previous one.
	Save(cfg *Config) error
}

// FileStore is a ConfigStore backed by a JSON file.
type FileStore struct {
	Path string
}

var _ ConfigStore = (*FileStore)(nil)

// Init writes def to the store if the file does not exist yet.
func (s *FileStore) Init(def *Config) error {
	_, err := os.Stat(s.Path)
	if err == nil {
		return nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return &PersistenceError{Op: "load", Path: s.Path, Err: err}
	}
	return s.Save(def)
}

func (s *FileStore) Load() (*Config, error) {
	b, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, &PersistenceError{Op: "load", Path: s.Path, Err: err}
	}
	return DecodeConfig(b)
}

// Save writes the configuration to a temporary file and renames it over the
// old one, so readers never observe a partially written document.
func (s *FileStore) Save(cfg *Config) error {
	b, err := EncodeConfig(cfg)
	if err != nil {
		return &PersistenceError{Op: "save", Path: s.Path, Err: err}
	}

	if err := writeFileAtomic(s.Path, b, 0644); err != nil {
		return &PersistenceError{Op: "save", Path: s.Path, Err: err}
	}

	return nil
}

func writeFileAtomic(path string, b []byte, perm fs.FileMode) error {
	f, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(f.Name())

	if _, err := f.Write(b); err != nil {
		f.Close()
		return err
	}
	if err := f.Chmod(perm); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	return os.Rename(f.Name(), path)
}
