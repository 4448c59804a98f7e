package lov

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/platinummonkey/adminkit/pkg/extension"
)

// Catalog is a static list of values read from YAML:
//
//	name: levels
//	items:
//	  - value: "1"
//	    label: Junior
//	    order: 1
type Catalog struct {
	Name  string `yaml:"name"`
	Items []Item `yaml:"items"`
}

// Item is one catalog entry. Items sort by Order, then file position.
type Item struct {
	Value string `yaml:"value"`
	Label string `yaml:"label"`
	Order int    `yaml:"order,omitempty"`
}

// Options returns the catalog as LOV options in display order
func (c Catalog) Options() Static {
	items := append([]Item(nil), c.Items...)
	sort.SliceStable(items, func(i, j int) bool { return items[i].Order < items[j].Order })
	options := make(Static, len(items))
	for i, item := range items {
		label := item.Label
		if label == "" {
			label = item.Value
		}
		options[i] = extension.LOVOption{Value: item.Value, Label: label}
	}
	return options
}

func isCatalogFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".yaml" || ext == ".yml"
}

// LoadCatalogFile reads one catalog. Its name defaults to the file name
// without extension.
func LoadCatalogFile(path string) (Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Catalog{}, fmt.Errorf("failed to read catalog %s: %w", path, err)
	}
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Catalog{}, fmt.Errorf("failed to parse catalog %s: %w", path, err)
	}
	if c.Name == "" {
		base := filepath.Base(path)
		c.Name = strings.TrimSuffix(base, filepath.Ext(base))
	}
	seen := make(map[string]bool, len(c.Items))
	for _, item := range c.Items {
		if item.Value == "" {
			return Catalog{}, fmt.Errorf("catalog %s: item without value", c.Name)
		}
		if seen[item.Value] {
			return Catalog{}, fmt.Errorf("catalog %s: duplicate value %q", c.Name, item.Value)
		}
		seen[item.Value] = true
	}
	if _, err := extension.EncodeOptions(c.Options()); err != nil {
		return Catalog{}, fmt.Errorf("catalog %s: %w", c.Name, err)
	}
	return c, nil
}

// LoadCatalogDir reads every *.yaml / *.yml catalog in dir
func LoadCatalogDir(dir string) (map[string]Catalog, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog dir %s: %w", dir, err)
	}
	result := make(map[string]Catalog)
	for _, entry := range entries {
		if entry.IsDir() || !isCatalogFile(entry.Name()) {
			continue
		}
		c, err := LoadCatalogFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		if _, exists := result[c.Name]; exists {
			return nil, fmt.Errorf("catalog %q defined twice in %s", c.Name, dir)
		}
		result[c.Name] = c
	}
	return result, nil
}
