package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrNotInteractive is returned by Complete when credentials are absent
// and no interactive surface is available. Deliberate hard stop: the
// loop never syncs with unknown or empty credentials.
var ErrNotInteractive = errors.New("config: incomplete and no interactive terminal available")

// appDirName is the directory under the user config dir that holds
// config.json and the logs folder.
const appDirName = "cfsync"

// DefaultDir returns the config directory, creating it if needed.
// Inability to determine it is one of the few fatal startup conditions.
func DefaultDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("config: determine config dir: %w", err)
	}
	dir := filepath.Join(base, appDirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("config: create config dir: %w", err)
	}
	return dir, nil
}

// DefaultPath returns the default config file path.
func DefaultPath() (string, error) {
	dir, err := DefaultDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// Store reads and writes the config file at a fixed path. The file is
// the only shared mutable resource; exactly one process instance is
// expected to touch it at a time, by convention.
type Store struct {
	Path string
}

// Load reads and decodes the file into its incomplete form. A missing
// file surfaces as fs.ErrNotExist so callers can distinguish first-run
// from corruption.
func (s *Store) Load() (*Incomplete, error) {
	b, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, err
	}
	var inc Incomplete
	if err := json.Unmarshal(b, &inc); err != nil {
		return nil, fmt.Errorf("config: %s is not valid JSON: %w", s.Path, err)
	}
	return &inc, nil
}

// Save writes the config as tab-indented JSON. HTML escaping is off so
// URLs and record bodies stay readable; path separators are kept as
// forward slashes by the encoder already.
func (s *Store) Save(c *Config) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "\t")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(c); err != nil {
		return fmt.Errorf("config: encode: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.Path), 0o755); err != nil {
		return fmt.Errorf("config: create config dir: %w", err)
	}
	if err := os.WriteFile(s.Path, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("config: write %s: %w", s.Path, err)
	}
	return nil
}
