package looks

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var ErrNotFound = errors.New("looks: look not found")

// Look is a saved merged result.
type Look struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	URL       string    `json:"url"`
	Owner     string    `json:"owner,omitempty"`
	Vertices  int       `json:"vertices"`
	Triangles int       `json:"triangles"`
	CreatedAt time.Time `json:"createdAt"`
}

// Store keeps look records in a JSON file and the exported GLBs under
// assetDir/looks, so they are loadable by URL like any other asset.
type Store struct {
	mu       sync.Mutex
	index    string
	assetDir string
	looks    []Look
	now      func() time.Time
	logger   *zap.Logger
}

// Dir is the asset subdirectory holding exported looks.
const Dir = "looks"

// Open loads indexPath if it exists.
func Open(indexPath, assetDir string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{
		index:    indexPath,
		assetDir: assetDir,
		now:      time.Now,
		logger:   logger.With(zap.String("component", "looks")),
	}
	data, err := os.ReadFile(indexPath)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("looks: read %s: %w", indexPath, err)
	}
	if len(strings.TrimSpace(string(data))) > 0 {
		if err := json.Unmarshal(data, &s.looks); err != nil {
			return nil, fmt.Errorf("looks: parse %s: %w", indexPath, err)
		}
	}
	return s, nil
}

// Meta describes the geometry being saved.
type Meta struct {
	Owner     string
	Vertices  int
	Triangles int
}

// Save writes glb and records it under name.
func (s *Store) Save(name string, glb []byte, meta Meta) (Look, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = "Untitled look"
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	l := Look{
		ID:        uuid.NewString(),
		Name:      name,
		Owner:     meta.Owner,
		Vertices:  meta.Vertices,
		Triangles: meta.Triangles,
		CreatedAt: s.now().UTC(),
	}
	rel := Dir + "/" + l.ID + ".glb"
	l.URL = "/" + rel
	path := filepath.Join(s.assetDir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return Look{}, fmt.Errorf("looks: %w", err)
	}
	if err := writeAtomic(path, glb); err != nil {
		return Look{}, err
	}

	s.looks = append(s.looks, l)
	if err := s.flush(); err != nil {
		s.looks = s.looks[:len(s.looks)-1]
		_ = os.Remove(path)
		return Look{}, err
	}
	s.logger.Info("look saved", zap.String("id", l.ID), zap.String("name", l.Name), zap.Int("bytes", len(glb)))
	return l, nil
}

// List returns looks newest first. A non-empty owner filters by owner.
func (s *Store) List(owner string) []Look {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Look, 0, len(s.looks))
	for _, l := range s.looks {
		if owner == "" || l.Owner == owner {
			out = append(out, l)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (s *Store) Get(id string) (Look, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range s.looks {
		if l.ID == id {
			return l, nil
		}
	}
	return Look{}, ErrNotFound
}

// Delete removes the record and its GLB.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, l := range s.looks {
		if l.ID != id {
			continue
		}
		s.looks = append(s.looks[:i], s.looks[i+1:]...)
		if err := s.flush(); err != nil {
			return err
		}
		path := filepath.Join(s.assetDir, filepath.FromSlash(strings.TrimPrefix(l.URL, "/")))
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("remove look file", zap.String("path", path), zap.Error(err))
		}
		return nil
	}
	return ErrNotFound
}

func (s *Store) flush() error {
	data, err := json.MarshalIndent(s.looks, "", "  ")
	if err != nil {
		return fmt.Errorf("looks: marshal: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.index), 0o755); err != nil {
		return fmt.Errorf("looks: %w", err)
	}
	return writeAtomic(s.index, data)
}

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("looks: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("looks: write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("looks: write %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("looks: %w", err)
	}
	return nil
}
