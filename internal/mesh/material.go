package mesh

import "image"

// Material is a PBR metallic-roughness surface description.
type Material struct {
	Name        string
	BaseColor   [4]float32
	Metalness   float32
	Roughness   float32
	DoubleSided bool
	// Texture is the decoded base-color image; pixel data is shared
	// read-only between clones.
	Texture *image.NRGBA

	h        *handle
	disposed bool
}

// NewMaterial returns a white, fully rough material owned by t.
func NewMaterial(t *Tracker, name string) *Material {
	return &Material{
		Name:      name,
		BaseColor: [4]float32{1, 1, 1, 1},
		Roughness: 1,
		h:         t.acquire(KindMaterial),
	}
}

// DefaultMaterial is used for a combined object when no contributor
// supplies a material: grey 0xcccccc, roughness 0.3, metalness 0.2,
// double-sided.
func DefaultMaterial(t *Tracker) *Material {
	m := NewMaterial(t, "default")
	m.BaseColor = [4]float32{0.8, 0.8, 0.8, 1}
	m.Roughness = 0.3
	m.Metalness = 0.2
	m.DoubleSided = true
	return m
}

func (m *Material) Clone() *Material {
	c := *m
	c.h = m.h.owner().acquire(KindMaterial)
	c.disposed = false
	return &c
}

func (m *Material) Disposed() bool { return m.disposed }

func (m *Material) Dispose() {
	if m == nil || m.disposed {
		return
	}
	m.disposed = true
	m.h.release()
	m.Texture = nil
}
