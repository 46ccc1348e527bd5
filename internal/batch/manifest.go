package batch

import (
	"encoding/json"
	"fmt"
	"os"

	"fitroom/internal/catalog"
)

// ManifestEntry represents one item in the output manifest.
type ManifestEntry struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	URL   string `json:"url"`
	Image string `json:"image,omitempty"`
	Error string `json:"error,omitempty"`
}

// WriteManifest writes the manifest for items to path. Results are matched
// by id; items without a successful render carry their error instead of an
// image.
func WriteManifest(path string, items []catalog.Item, results []Result) error {
	byID := make(map[string]Result, len(results))
	for _, r := range results {
		byID[r.ID] = r
	}
	entries := make([]ManifestEntry, len(items))
	for i, it := range items {
		e := ManifestEntry{ID: it.ID, Name: it.Name, URL: it.URL}
		if r, ok := byID[it.ID]; ok {
			if r.Success {
				e.Image = r.Image
			} else {
				e.Error = r.Error
			}
		}
		entries[i] = e
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("batch: manifest: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// ReadManifest loads a manifest written by WriteManifest.
func ReadManifest(path string) ([]ManifestEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("batch: read manifest: %w", err)
	}
	var entries []ManifestEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("batch: parse manifest: %w", err)
	}
	return entries, nil
}
