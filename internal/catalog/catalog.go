// Package catalog holds the set of executables recognized as media
// producers, grouped by category.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"maps"
	"os"
	"slices"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/jmylchreest/mutewatch/internal/platform"
)

// Category groups related media executables.
type Category string

const (
	CategoryVideo   Category = "video"
	CategoryAudio   Category = "audio"
	CategoryBrowser Category = "browser"
)

// ValidCategories returns all known categories.
func ValidCategories() []Category {
	return []Category{CategoryVideo, CategoryAudio, CategoryBrowser}
}

//go:embed default.yaml
var defaultYAML []byte

// ErrEmptyCatalog is returned when a catalog file lists no executables.
var ErrEmptyCatalog = errors.New("catalog lists no executables")

// Catalog is an immutable set of media executable names.
type Catalog struct {
	// lowercase name -> category
	members map[string]Category
	groups  map[Category][]string
}

// Default returns the built-in catalog.
func Default() *Catalog {
	c, err := Parse(defaultYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded catalog is invalid: %v", err))
	}
	return c
}

// New builds a catalog from category groups. Names are normalized to
// their lowercase base name; duplicates keep the first category seen.
func New(groups map[Category][]string) *Catalog {
	c := &Catalog{
		members: make(map[string]Category),
		groups:  make(map[Category][]string),
	}

	cats := slices.Collect(maps.Keys(groups))
	sort.Slice(cats, func(i, j int) bool { return cats[i] < cats[j] })

	for _, cat := range cats {
		for _, name := range groups[cat] {
			key := normalize(name)
			if key == "" {
				continue
			}
			if _, dup := c.members[key]; dup {
				continue
			}
			c.members[key] = cat
			c.groups[cat] = append(c.groups[cat], key)
		}
	}
	for cat := range c.groups {
		sort.Strings(c.groups[cat])
	}
	return c
}

// Parse decodes a YAML catalog: a mapping from category to a list of
// executable names.
func Parse(data []byte) (*Catalog, error) {
	var raw map[string][]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}

	groups := make(map[Category][]string, len(raw))
	for name, exes := range raw {
		cat := Category(strings.ToLower(strings.TrimSpace(name)))
		if !slices.Contains(ValidCategories(), cat) {
			return nil, fmt.Errorf("unknown catalog category %q, must be one of: %v", name, ValidCategories())
		}
		groups[cat] = append(groups[cat], exes...)
	}

	c := New(groups)
	if c.Len() == 0 {
		return nil, ErrEmptyCatalog
	}
	return c, nil
}

// Load reads a catalog file. An empty path returns the built-in catalog.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}
	return Parse(data)
}

// Contains reports whether name exactly matches a catalog member,
// ignoring case. Paths are reduced to their executable name first.
func (c *Catalog) Contains(name string) bool {
	_, ok := c.Category(name)
	return ok
}

// Category returns the category of a member.
func (c *Catalog) Category(name string) (Category, bool) {
	if c == nil {
		return "", false
	}
	cat, ok := c.members[normalize(name)]
	return cat, ok
}

// Names returns the members of a category, sorted.
func (c *Catalog) Names(cat Category) []string {
	return slices.Clone(c.groups[cat])
}

// Groups returns a copy of all categories and their members.
func (c *Catalog) Groups() map[Category][]string {
	out := make(map[Category][]string, len(c.groups))
	for cat, names := range c.groups {
		out[cat] = slices.Clone(names)
	}
	return out
}

// Len returns the number of members.
func (c *Catalog) Len() int {
	return len(c.members)
}

func normalize(name string) string {
	return strings.ToLower(platform.BaseName(name))
}
