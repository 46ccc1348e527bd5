// Package uploads keeps user-supplied GLB files and resolves the blob:
// references handed back for them.
package uploads

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"fitroom/internal/asset"
)

var (
	ErrNotGLB   = errors.New("uploads: not a binary glTF file")
	ErrTooLarge = errors.New("uploads: file too large")
	ErrNotFound = errors.New("uploads: no such blob")
)

var glbMagic = []byte("glTF")

const DefaultMaxBytes = 50 << 20

// Store writes uploads to <dir>/<uuid>.glb.
type Store struct {
	dir      string
	maxBytes int64
	logger   *zap.Logger
}

func NewStore(dir string, maxBytes int64, logger *zap.Logger) (*Store, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("uploads: create %s: %w", dir, err)
	}
	return &Store{dir: dir, maxBytes: maxBytes, logger: logger.With(zap.String("component", "uploads"))}, nil
}

func (s *Store) MaxBytes() int64 { return s.maxBytes }

// Save reads r up to the size cap, checks the GLB header and stores the
// bytes. It returns the blob: reference to pass to the loader.
func (s *Store) Save(r io.Reader) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, s.maxBytes+1))
	if err != nil {
		return "", fmt.Errorf("uploads: read: %w", err)
	}
	if int64(len(data)) > s.maxBytes {
		return "", ErrTooLarge
	}
	if len(data) < 12 || !bytes.Equal(data[:4], glbMagic) {
		return "", ErrNotGLB
	}

	id := uuid.NewString()
	path := filepath.Join(s.dir, id+".glb")
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", fmt.Errorf("uploads: write: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("uploads: write: %w", err)
	}
	s.logger.Info("stored upload", zap.String("id", id), zap.Int("bytes", len(data)))
	return asset.BlobPrefix + id, nil
}

// ResolveBlob returns the bytes stored for ref.
func (s *Store) ResolveBlob(ref string) ([]byte, error) {
	id, ok := strings.CutPrefix(ref, asset.BlobPrefix)
	if !ok {
		return nil, fmt.Errorf("uploads: %q is not a blob reference", ref)
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	data, err := os.ReadFile(filepath.Join(s.dir, id+".glb"))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("uploads: read %s: %w", id, err)
	}
	return data, nil
}

// Remove deletes a stored upload. Unknown references are not an error.
func (s *Store) Remove(ref string) error {
	id, _ := strings.CutPrefix(ref, asset.BlobPrefix)
	if _, err := uuid.Parse(id); err != nil {
		return nil
	}
	err := os.Remove(filepath.Join(s.dir, id+".glb"))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("uploads: remove %s: %w", id, err)
	}
	return nil
}
