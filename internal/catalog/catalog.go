// Package catalog loads the item catalog used for stack sizes and server
// prices.
package catalog

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"

	"github.com/StimpyDev/EconomyCraft/internal/model"

	"gopkg.in/yaml.v3"
)

type file struct {
	Items []model.ItemDescriptor `yaml:"items"`
}

// YAMLCatalog is an immutable item catalog read from a YAML file.
type YAMLCatalog struct {
	items map[string]model.ItemDescriptor
}

// Load reads the catalog at path. A missing file yields an empty catalog.
func Load(path string) (*YAMLCatalog, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return &YAMLCatalog{items: map[string]model.ItemDescriptor{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read item catalog: %w", err)
	}
	return Parse(data)
}

// Parse decodes a catalog document. Keys are matched case-insensitively.
func Parse(data []byte) (*YAMLCatalog, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse item catalog: %w", err)
	}

	c := &YAMLCatalog{items: make(map[string]model.ItemDescriptor, len(f.Items))}
	for i, it := range f.Items {
		key := normalize(it.Key)
		if key == "" {
			return nil, fmt.Errorf("item catalog entry %d has no key", i)
		}
		if _, dup := c.items[key]; dup {
			return nil, fmt.Errorf("item catalog has duplicate key %q", it.Key)
		}
		if it.SellPrice < 0 || it.BuyPrice < 0 || it.MaxStack < 0 {
			return nil, fmt.Errorf("item catalog entry %q has a negative value", it.Key)
		}
		it.Key = key
		c.items[key] = it
	}
	return c, nil
}

func normalize(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

// Resolve returns the descriptor for key.
func (c *YAMLCatalog) Resolve(key string) (model.ItemDescriptor, bool) {
	d, ok := c.items[normalize(key)]
	return d, ok
}

// Keys returns every item key in order.
func (c *YAMLCatalog) Keys() []string {
	keys := make([]string, 0, len(c.items))
	for k := range c.items {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Categories returns the distinct categories in order.
func (c *YAMLCatalog) Categories() []string {
	seen := map[string]struct{}{}
	for _, it := range c.items {
		if it.Category != "" {
			seen[it.Category] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for cat := range seen {
		out = append(out, cat)
	}
	sort.Strings(out)
	return out
}

// Items returns the descriptors of category, or all of them when category
// is empty, ordered by key.
func (c *YAMLCatalog) Items(category string) []model.ItemDescriptor {
	out := make([]model.ItemDescriptor, 0, len(c.items))
	for _, k := range c.Keys() {
		it := c.items[k]
		if category == "" || strings.EqualFold(it.Category, category) {
			out = append(out, it)
		}
	}
	return out
}

// Len returns the number of items.
func (c *YAMLCatalog) Len() int { return len(c.items) }
