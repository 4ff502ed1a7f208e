package credentials

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Store holds the single user-saved API credential. Load returns "" (not an
// error) when nothing has been saved yet.
type Store interface {
	Load() (string, error)
	Save(key string) error
}

type credentialFile struct {
	APIKey string `yaml:"api_key"`
}

// FileStore keeps the credential in a small YAML file, by default under the
// user config dir. Every Load re-reads the file, so a save from a settings
// flow is visible to the next resolution without restart.
type FileStore struct {
	path string
}

func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			return nil, fmt.Errorf("resolve config dir: %w", err)
		}
		path = filepath.Join(base, "kidcoach", "credentials.yaml")
	}
	return &FileStore{path: path}, nil
}

func (s *FileStore) Path() string { return s.path }

func (s *FileStore) Load() (string, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("read credential file: %w", err)
	}
	var f credentialFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return "", fmt.Errorf("parse credential file: %w", err)
	}
	return f.APIKey, nil
}

func (s *FileStore) Save(key string) error {
	raw, err := yaml.Marshal(credentialFile{APIKey: key})
	if err != nil {
		return fmt.Errorf("encode credential file: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create credential dir: %w", err)
	}
	if err := os.WriteFile(s.path, raw, 0o600); err != nil {
		return fmt.Errorf("write credential file: %w", err)
	}
	return nil
}

// MemoryStore is an in-process Store for tests and embedding callers that
// manage the key themselves.
type MemoryStore struct {
	Key string
	Err error
}

func (s *MemoryStore) Load() (string, error) { return s.Key, s.Err }

func (s *MemoryStore) Save(key string) error {
	if s.Err != nil {
		return s.Err
	}
	s.Key = key
	return nil
}
