package launchconfig

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/tidwall/jsonc"
)

// LaunchFile is the workspace-relative location of the named configurations.
var LaunchFile = filepath.Join(".vscode", "launch.json")

// ErrNoLaunchFile is returned when the workspace has no launch.json.
var ErrNoLaunchFile = errors.New("launch.json not found")

// Store looks up named debug configurations within a workspace folder.
// Implementations must not hand out their internal maps; callers are free
// to mutate what Lookup returns.
type Store interface {
	Lookup(name, scope string) (Config, bool, error)
}

// MemoryStore is a fixed store keyed by scope.
type MemoryStore struct {
	mu      sync.RWMutex
	configs map[string][]Config
}

// NewMemoryStore creates a store holding configs for a single scope.
func NewMemoryStore(scope string, configs ...Config) *MemoryStore {
	s := &MemoryStore{configs: make(map[string][]Config)}
	s.Set(scope, configs...)
	return s
}

// Set replaces the configurations known for scope.
func (s *MemoryStore) Set(scope string, configs ...Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cloned := make([]Config, len(configs))
	for i, c := range configs {
		cloned[i] = c.Clone()
	}
	s.configs[scope] = cloned
}

// Lookup returns a copy of the first configuration called name.
func (s *MemoryStore) Lookup(name, scope string) (Config, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return findByName(s.configs[scope], name)
}

// FileStore reads <scope>/.vscode/launch.json on every lookup so edits
// to the file are picked up by the next launch.
type FileStore struct{}

// Lookup implements Store.
func (FileStore) Lookup(name, scope string) (Config, bool, error) {
	configs, err := ReadLaunchFile(scope)
	if err != nil {
		return nil, false, err
	}
	return findByName(configs, name)
}

// launchDocument is the subset of launch.json we read.
type launchDocument struct {
	Version        string `json:"version"`
	Configurations []any  `json:"configurations"`
}

// ReadLaunchFile returns every configuration in the workspace's
// launch.json. Comments and trailing commas are accepted.
func ReadLaunchFile(scope string) ([]Config, error) {
	path := filepath.Join(scope, LaunchFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNoLaunchFile, path)
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return ParseLaunchFile(data)
}

// ParseLaunchFile decodes launch.json content.
func ParseLaunchFile(data []byte) ([]Config, error) {
	var doc launchDocument
	if err := json.Unmarshal(jsonc.ToJSON(data), &doc); err != nil {
		return nil, fmt.Errorf("unexpected error with the launch.json file: %w", err)
	}
	configs := make([]Config, 0, len(doc.Configurations))
	for _, entry := range doc.Configurations {
		if c := ToConfig(entry); c != nil {
			configs = append(configs, c)
		}
	}
	return configs, nil
}

func findByName(configs []Config, name string) (Config, bool, error) {
	for _, c := range configs {
		if c.Name() == name {
			return c.Clone(), true, nil
		}
	}
	return nil, false, nil
}
