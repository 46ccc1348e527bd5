package catalog

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Parse reads a catalog file. Files ending in .json are JSON, anything else
// is YAML. Items without a URL are skipped; missing ids and names are
// derived from the URL.
func Parse(path string) ([]Item, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: read %s: %w", path, err)
	}
	var f file
	if strings.EqualFold(filepath.Ext(path), ".json") {
		err = json.Unmarshal(raw, &f)
	} else {
		err = yaml.Unmarshal(raw, &f)
	}
	if err != nil {
		return nil, fmt.Errorf("catalog: parse %s: %w", path, err)
	}

	items := make([]Item, 0, len(f.Items))
	seen := make(map[string]bool)
	for _, it := range f.Items {
		if it.URL == "" {
			continue
		}
		if it.ID == "" {
			it.ID = stem(it.URL)
		}
		if it.Name == "" {
			it.Name = displayName(stem(it.URL))
		}
		if seen[it.ID] {
			return nil, fmt.Errorf("catalog: %s: duplicate id %q", path, it.ID)
		}
		seen[it.ID] = true
		items = append(items, it)
	}
	return items, nil
}

// Scan walks dir for .glb files and returns an item per file, with URLs
// relative to dir.
func Scan(dir string) ([]Item, error) {
	var items []Item
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			return nil
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(path), ".glb") {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return nil
		}
		url := "/" + filepath.ToSlash(rel)
		items = append(items, Item{
			ID:      "scan:" + strings.TrimSuffix(filepath.ToSlash(rel), filepath.Ext(rel)),
			Name:    displayName(stem(rel)),
			URL:     url,
			Scanned: true,
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("catalog: scan %s: %w", dir, err)
	}
	return items, nil
}

func stem(p string) string {
	base := filepath.Base(filepath.FromSlash(p))
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// displayName turns "red_tshirt-v2" into "Red Tshirt V2".
func displayName(s string) string {
	words := strings.FieldsFunc(s, func(r rune) bool { return r == '_' || r == '-' || r == ' ' })
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
