package catalog

import "fitroom/internal/mathutil"

// Item is one wearable offered in the wardrobe. Position and Rotation are
// the initial placement applied when the item is loaded, written as
// [x, y, z] (rotation in radians).
type Item struct {
	ID       string        `json:"id" yaml:"id"`
	Name     string        `json:"name" yaml:"name"`
	URL      string        `json:"url" yaml:"url"`
	Position mathutil.Vec3 `json:"position" yaml:"position"`
	Rotation mathutil.Vec3 `json:"rotation" yaml:"rotation"`
	Preview  string        `json:"preview,omitempty" yaml:"preview,omitempty"`
	// Scanned marks items discovered in the asset directory rather than
	// listed in the catalog file.
	Scanned bool `json:"scanned,omitempty" yaml:"-"`
}

type file struct {
	Items []Item `json:"items" yaml:"items"`
}
