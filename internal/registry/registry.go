// Package registry resolves model versions into launch plans. A resolver
// only describes how to start a model server; the orchestrator owns the
// process it starts.
package registry

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"servingd/pkg/types"
)

// ErrNotFound is returned (wrapped) when a resolver does not know a model version.
var ErrNotFound = errors.New("model version not registered")

// Entry is one catalog row: an explicit command for a model version.
type Entry struct {
	Name    string                  `json:"name" yaml:"name" toml:"name"`
	Version int                     `json:"version" yaml:"version" toml:"version"`
	Command []string                `json:"command" yaml:"command" toml:"command"`
	Env     []string                `json:"env,omitempty" yaml:"env" toml:"env"`
	Dir     string                  `json:"dir,omitempty" yaml:"dir" toml:"dir"`
	Runtime types.RuntimeDescriptor `json:"runtime" yaml:"runtime" toml:"runtime"`
}

// Key returns the model key the entry serves.
func (e Entry) Key() types.ModelKey { return types.ModelKey{Name: e.Name, Version: e.Version} }

// Validate checks that the entry can be launched.
func (e Entry) Validate() error {
	if strings.TrimSpace(e.Name) == "" {
		return errors.New("entry name is empty")
	}
	if e.Version < 0 {
		return fmt.Errorf("entry %s: negative version", e.Name)
	}
	if len(e.Command) == 0 || strings.TrimSpace(e.Command[0]) == "" {
		return fmt.Errorf("entry %s: command is empty", e.Key())
	}
	if !containsPortPlaceholder(e.Command) {
		return fmt.Errorf("entry %s: command must reference {port}", e.Key())
	}
	if _, err := expandHome(e.Dir); err != nil {
		return fmt.Errorf("entry %s: dir: %w", e.Key(), err)
	}
	return nil
}

// Plan converts the entry into a launch plan, expanding a leading ~ in Dir.
func (e Entry) Plan() (types.LaunchPlan, error) {
	dir, err := expandHome(e.Dir)
	if err != nil {
		return types.LaunchPlan{}, fmt.Errorf("entry %s: dir: %w", e.Key(), err)
	}
	return types.LaunchPlan{
		Command: append([]string(nil), e.Command...),
		Env:     append([]string(nil), e.Env...),
		Dir:     dir,
		Runtime: e.Runtime,
	}, nil
}

func containsPortPlaceholder(args []string) bool {
	for _, a := range args {
		if strings.Contains(a, "{port}") {
			return true
		}
	}
	return false
}

func notFound(key types.ModelKey) error {
	return fmt.Errorf("%s: %w", key, ErrNotFound)
}

// expandHome expands a leading '~' to the user's home directory.
func expandHome(path string) (string, error) {
	if path == "" || path[0] != '~' {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("home dir: %w", err)
	}
	if path == "~" {
		return home, nil
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~/")), nil
}
