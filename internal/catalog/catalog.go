// Package catalog provides static per-species attributes: habitat tags,
// size class, food preferences and the nocturnal flag.
package catalog

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/agnivade/levenshtein"
	"gopkg.in/yaml.v3"

	"github.com/nidhogg/bird-zoo/internal/zoo"
)

//go:embed default.yaml
var defaultTable []byte

// ErrSpeciesNotFound is returned for names missing from the catalog.
var ErrSpeciesNotFound = fmt.Errorf("species %w", zoo.ErrNotFound)

// Species is one catalog entry.
type Species struct {
	Name            string   `yaml:"name" json:"name"`
	HabitatTags     []string `yaml:"habitat" json:"habitat_tags"`
	SizeClass       string   `yaml:"size" json:"size_class"`
	FavoriteFoods   []string `yaml:"favorite_foods" json:"favorite_foods"`
	AcceptableFoods []string `yaml:"acceptable_foods" json:"acceptable_foods"`
	Nocturnal       *bool    `yaml:"nocturnal,omitempty" json:"nocturnal,omitempty"`
	Migratory       bool     `yaml:"migratory" json:"migratory"`
}

// Catalog looks up species attributes.
type Catalog interface {
	Lookup(ctx context.Context, name string) (*Species, error)
}

// Table is an in-memory catalog loaded from YAML.
type Table struct {
	species map[string]*Species
	names   []string
}

type tableFile struct {
	Species []*Species `yaml:"species"`
}

// Parse builds a table from YAML.
func Parse(data []byte) (*Table, error) {
	var f tableFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	t := &Table{species: make(map[string]*Species, len(f.Species))}
	for _, sp := range f.Species {
		if sp == nil || sp.Name == "" {
			continue
		}
		t.species[sp.Name] = sp
		t.names = append(t.names, sp.Name)
	}
	sort.Strings(t.names)
	return t, nil
}

// Load reads a YAML table from path.
func Load(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	return Parse(data)
}

// Default returns the built-in table.
func Default() *Table {
	t, err := Parse(defaultTable)
	if err != nil {
		panic(err)
	}
	return t
}

// Lookup returns the species named name.
func (t *Table) Lookup(_ context.Context, name string) (*Species, error) {
	sp, ok := t.species[name]
	if !ok {
		return nil, ErrSpeciesNotFound
	}
	cp := *sp
	return &cp, nil
}

// Names returns every species name, sorted.
func (t *Table) Names() []string {
	return append([]string(nil), t.names...)
}

// Migratory returns the names of migratory species.
func (t *Table) Migratory() []string {
	var out []string
	for _, n := range t.names {
		if t.species[n].Migratory {
			out = append(out, n)
		}
	}
	return out
}

// Suggest returns up to max species names closest to name.
func (t *Table) Suggest(name string, max int) []string {
	type scored struct {
		name string
		dist int
	}
	var all []scored
	for _, n := range t.names {
		d := levenshtein.ComputeDistance(name, n)
		if strings.Contains(n, name) {
			d = 0
		}
		all = append(all, scored{n, d})
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].dist < all[j].dist })

	limit := len([]rune(name))/2 + 1
	var out []string
	for _, s := range all {
		if len(out) == max || s.dist > limit {
			break
		}
		out = append(out, s.name)
	}
	return out
}

// LookupBounded calls c.Lookup with a deadline. A timeout or transport
// failure is reported as zoo.ErrUpstreamUnavailable; a missing species is
// passed through as ErrSpeciesNotFound.
func LookupBounded(ctx context.Context, c Catalog, name string, timeout time.Duration) (*Species, error) {
	if c == nil {
		return nil, zoo.ErrUpstreamUnavailable
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	sp, err := c.Lookup(ctx, name)
	switch {
	case err == nil:
		return sp, nil
	case errors.Is(err, zoo.ErrNotFound):
		return nil, err
	default:
		return nil, fmt.Errorf("%w: catalog lookup %s: %v", zoo.ErrUpstreamUnavailable, name, err)
	}
}
