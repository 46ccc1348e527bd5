package texture

import (
	"crypto/sha256"
	"image"
	"sync"
)

// Cache decodes each distinct image payload once. Entries are keyed by
// content digest, so the same texture embedded in many assets (or the
// same asset loaded twice) shares one decoded image. Decoded pixels are
// read-only.
type Cache struct {
	mu    sync.RWMutex
	items map[[sha256.Size]byte]*cacheEntry
}

type cacheEntry struct {
	img *image.NRGBA
	err error
}

func NewCache() *Cache {
	return &Cache{items: make(map[[sha256.Size]byte]*cacheEntry)}
}

// Decode returns the cached image for data, decoding it on first use.
// A nil *Cache decodes without caching.
func (c *Cache) Decode(data []byte) (*image.NRGBA, error) {
	if c == nil {
		return Decode(data)
	}
	key := sha256.Sum256(data)

	c.mu.RLock()
	if entry, ok := c.items[key]; ok {
		c.mu.RUnlock()
		return entry.img, entry.err
	}
	c.mu.RUnlock()

	img, err := Decode(data)

	c.mu.Lock()
	defer c.mu.Unlock()
	if entry, ok := c.items[key]; ok {
		return entry.img, entry.err
	}
	c.items[key] = &cacheEntry{img: img, err: err}
	return img, err
}

// Len returns the number of cached payloads.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}
