package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"servingd/pkg/types"
)

// Catalog is a static, file-backed resolver.
type Catalog struct {
	entries map[types.ModelKey]Entry
}

type catalogFile struct {
	Models []Entry `json:"models" yaml:"models" toml:"models"`
}

// NewCatalog builds a catalog from entries. Duplicate keys are rejected.
func NewCatalog(entries []Entry) (*Catalog, error) {
	c := &Catalog{entries: make(map[types.ModelKey]Entry, len(entries))}
	for _, e := range entries {
		if err := e.Validate(); err != nil {
			return nil, err
		}
		if _, dup := c.entries[e.Key()]; dup {
			return nil, fmt.Errorf("duplicate catalog entry %s", e.Key())
		}
		c.entries[e.Key()] = e
	}
	return c, nil
}

// LoadCatalog reads a catalog from a YAML, JSON or TOML file, chosen by extension.
func LoadCatalog(path string) (*Catalog, error) {
	p, err := expandHome(path)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	var f catalogFile
	switch strings.ToLower(filepath.Ext(p)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &f)
	case ".json":
		err = json.Unmarshal(b, &f)
	case ".toml":
		err = toml.Unmarshal(b, &f)
	default:
		return nil, fmt.Errorf("unsupported catalog extension: %s", filepath.Ext(p))
	}
	if err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", p, err)
	}
	return NewCatalog(f.Models)
}

func (c *Catalog) Resolve(ctx context.Context, key types.ModelKey) (types.LaunchPlan, error) {
	if err := ctx.Err(); err != nil {
		return types.LaunchPlan{}, err
	}
	e, ok := c.entries[key]
	if !ok {
		return types.LaunchPlan{}, notFound(key)
	}
	return e.Plan()
}

// Entries returns all entries ordered by name and version.
func (c *Catalog) Entries() []Entry {
	out := make([]Entry, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, e)
	}
	sortEntries(out)
	return out
}

func sortEntries(es []Entry) {
	sort.Slice(es, func(i, j int) bool {
		if es[i].Name != es[j].Name {
			return es[i].Name < es[j].Name
		}
		return es[i].Version < es[j].Version
	})
}
