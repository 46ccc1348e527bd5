package asset

import (
	"fitroom/internal/mathutil"
	"fitroom/internal/mesh"
)

// Classification summarizes a parsed fragment.
type Classification struct {
	Meshes    int
	Skinned   int
	Vertices  int
	Triangles int
	Textured  int
	Bounds    mathutil.Box3
}

// Rigged reports whether at least one mesh is skinned.
func (c Classification) Rigged() bool { return c.Skinned > 0 }

// Classify counts meshes and computes bounds with root at identity.
func Classify(root *mesh.Node) Classification {
	c := Classification{Bounds: root.Bounds(mathutil.Mat4Identity())}
	for _, n := range root.MeshNodes() {
		c.Meshes++
		if n.Mesh.Skinned {
			c.Skinned++
		}
		if n.Mesh.Material != nil && n.Mesh.Material.Texture != nil {
			c.Textured++
		}
		c.Vertices += n.Mesh.Geometry.VertexCount()
		c.Triangles += n.Mesh.Geometry.TriangleCount()
	}
	return c
}
