package mesh

import "fitroom/internal/mathutil"

// Mesh binds a geometry to a material.
type Mesh struct {
	Name          string
	Geometry      *Geometry
	Material      *Material
	CastShadow    bool
	ReceiveShadow bool
	Skinned       bool
}

// Node is a transform in a scene fragment. Rotation is XYZ Euler in
// radians. Basis, when set, is an extra local matrix applied after TRS
// (glTF nodes that carry a matrix).
type Node struct {
	Name     string
	Position mathutil.Vec3
	Rotation mathutil.Vec3
	Scale    mathutil.Vec3
	Basis    *mathutil.Mat4
	Visible  bool
	Mesh     *Mesh
	Children []*Node

	// World is refreshed by UpdateWorld.
	World mathutil.Mat4
}

func NewNode(name string) *Node {
	return &Node{Name: name, Scale: mathutil.One, Visible: true, World: mathutil.Mat4Identity()}
}

func (n *Node) Add(children ...*Node) {
	n.Children = append(n.Children, children...)
}

// Local returns the node's local transform.
func (n *Node) Local() mathutil.Mat4 {
	m := mathutil.Compose(n.Position, n.Rotation, n.Scale)
	if n.Basis != nil {
		m = mathutil.Mat4Mul(m, *n.Basis)
	}
	return m
}

// UpdateWorld recomputes World for n and its descendants.
func (n *Node) UpdateWorld(parent mathutil.Mat4) {
	n.World = mathutil.Mat4Mul(parent, n.Local())
	for _, c := range n.Children {
		c.UpdateWorld(n.World)
	}
}

// Traverse visits n and its descendants depth-first, parents first.
func (n *Node) Traverse(fn func(*Node)) {
	fn(n)
	for _, c := range n.Children {
		c.Traverse(fn)
	}
}

// MeshNodes returns every node carrying a mesh.
func (n *Node) MeshNodes() []*Node {
	var out []*Node
	n.Traverse(func(c *Node) {
		if c.Mesh != nil && c.Mesh.Geometry != nil {
			out = append(out, c)
		}
	})
	return out
}

// Bounds refreshes world matrices under parent and returns the world-space
// box of every mesh vertex.
func (n *Node) Bounds(parent mathutil.Mat4) mathutil.Box3 {
	n.UpdateWorld(parent)
	b := mathutil.EmptyBox3()
	for _, c := range n.MeshNodes() {
		b = b.Union(c.Mesh.Geometry.Bounds(c.World))
	}
	return b
}

// Clone deep-copies the subtree. Geometries and materials are cloned so
// the copy owns its resources.
func (n *Node) Clone() *Node {
	c := *n
	if n.Basis != nil {
		b := *n.Basis
		c.Basis = &b
	}
	if n.Mesh != nil {
		m := *n.Mesh
		if m.Geometry != nil {
			m.Geometry = m.Geometry.Clone()
		}
		if m.Material != nil {
			m.Material = m.Material.Clone()
		}
		c.Mesh = &m
	}
	c.Children = make([]*Node, len(n.Children))
	for i, ch := range n.Children {
		c.Children[i] = ch.Clone()
	}
	return &c
}

// Dispose releases every geometry and material in the subtree.
func (n *Node) Dispose() {
	n.Traverse(func(c *Node) {
		if c.Mesh == nil {
			return
		}
		c.Mesh.Geometry.Dispose()
		c.Mesh.Material.Dispose()
	})
}
