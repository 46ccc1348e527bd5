package merge

import "fitroom/internal/mesh"

// Reconcile brings every geometry to one minimal layout so they can be
// concatenated: position, normal and uv always, color when any input has
// it. Missing uvs are zero-filled, missing normals recomputed, missing
// colors filled with white. Other channels, morph targets and groups are
// dropped. When inputs mix indexed and non-indexed geometry, the
// non-indexed ones get a sequential index.
func Reconcile(geoms []*mesh.Geometry) {
	anyColor, anyIndexed := false, false
	for _, g := range geoms {
		anyColor = anyColor || g.Colors != nil
		anyIndexed = anyIndexed || g.Indexed()
	}
	for _, g := range geoms {
		n := g.VertexCount()
		if g.UVs == nil {
			g.UVs = make([][2]float32, n)
		}
		if g.Normals == nil {
			g.ComputeVertexNormals()
		}
		if anyColor && g.Colors == nil {
			g.Colors = make([][4]float32, n)
			for i := range g.Colors {
				g.Colors[i] = [4]float32{1, 1, 1, 1}
			}
		}
		if anyIndexed && !g.Indexed() {
			g.Indices = make([]uint32, n)
			for i := range g.Indices {
				g.Indices[i] = uint32(i)
			}
		}
		g.Extra = nil
		g.Morph = nil
		g.Groups = nil
	}
}
