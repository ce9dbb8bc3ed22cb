package client

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/autogenius/autogenius/internal/chat"
)

// State is what the client remembers between runs.
type State struct {
	SessionID string `yaml:"session_id,omitempty"`
	DarkTheme bool   `yaml:"dark_theme"`
	TextSize  string `yaml:"text_size,omitempty"`
	AuthToken string `yaml:"auth_token,omitempty"`

	path string
}

// DefaultStatePath returns ~/.autogenius/state.yml.
func DefaultStatePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, ".autogenius", "state.yml"), nil
}

// LoadState reads the state file at path. A missing file yields the
// defaults. An empty path keeps the state in memory only.
func LoadState(path string) (*State, error) {
	s := &State{TextSize: chat.DefaultTextSize, path: path}
	if path == "" {
		return s, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("reading state: %w", err)
	}
	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("parsing state %s: %w", path, err)
	}
	if !chat.ValidTextSize(s.TextSize) {
		s.TextSize = chat.DefaultTextSize
	}
	return s, nil
}

// Path is the file the state is saved to.
func (s *State) Path() string { return s.path }

// Save writes the state with owner-only permissions, since it holds the
// auth token.
func (s *State) Save() error {
	if s.path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("creating state directory: %w", err)
	}
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshalling state: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0600); err != nil {
		return fmt.Errorf("writing state: %w", err)
	}
	return nil
}
