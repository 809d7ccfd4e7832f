package catalog

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/straja-ai/adaware/internal/logger"
	"github.com/straja-ai/adaware/internal/signals"
)

//go:embed brands.json
var builtin []byte

// Catalog is an immutable list of known brands.
type Catalog struct {
	entries []signals.CatalogMatch
}

// Default returns the built-in brand list.
func Default() *Catalog {
	c, err := Parse(builtin)
	if err != nil {
		panic(fmt.Sprintf("catalog: built-in brand list: %v", err))
	}
	return c
}

// Load reads a JSON brand list from path. An empty path yields the
// built-in list.
func Load(path string) (*Catalog, error) {
	if strings.TrimSpace(path) == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}
	logger.Log.Infof("catalog: loaded %d brands from %s", c.Len(), path)
	return c, nil
}

// Parse decodes a JSON array of brand entries. Entries without names are
// skipped.
func Parse(data []byte) (*Catalog, error) {
	var raw []signals.CatalogMatch
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	c := &Catalog{}
	for _, e := range raw {
		var names []string
		for _, n := range e.Names {
			if n = strings.TrimSpace(n); n != "" {
				names = append(names, n)
			}
		}
		if len(names) == 0 {
			continue
		}
		e.Names = names
		c.entries = append(c.entries, e)
	}
	return c, nil
}

// Len is the number of entries.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.entries)
}

// Lookup matches the vision brand exactly (case-insensitive) first, then any
// catalog name appearing in the text. The first match in catalog order wins.
func (c *Catalog) Lookup(brand, text string) *signals.CatalogMatch {
	if c == nil {
		return nil
	}
	if b := strings.ToLower(strings.TrimSpace(brand)); b != "" {
		for i := range c.entries {
			for _, n := range c.entries[i].Names {
				if strings.ToLower(n) == b {
					return c.copyOf(i)
				}
			}
		}
	}
	lower := strings.ToLower(text)
	if strings.TrimSpace(lower) == "" {
		return nil
	}
	for i := range c.entries {
		for _, n := range c.entries[i].Names {
			if strings.Contains(lower, strings.ToLower(n)) {
				return c.copyOf(i)
			}
		}
	}
	return nil
}

func (c *Catalog) copyOf(i int) *signals.CatalogMatch {
	m := c.entries[i]
	m.Names = append([]string(nil), m.Names...)
	m.HealthAdvisories = append([]string(nil), m.HealthAdvisories...)
	return &m
}
