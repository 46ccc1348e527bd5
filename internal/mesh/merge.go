package mesh

import (
	"fmt"
	"slices"
)

// MergeGeometries concatenates geometries into a new one owned by t.
// Inputs must share a channel set, indexing mode and morph layout. With
// useGroups each input becomes one draw group.
func MergeGeometries(geoms []*Geometry, useGroups bool, t *Tracker) (*Geometry, error) {
	if len(geoms) == 0 {
		return nil, fmt.Errorf("%w: no geometries", ErrIncompatibleLayout)
	}
	first := geoms[0]
	layout := first.Layout()
	for i, g := range geoms[1:] {
		if g.Indexed() != first.Indexed() {
			return nil, fmt.Errorf("%w: geometry %d indexed=%t, want %t", ErrIncompatibleLayout, i+1, g.Indexed(), first.Indexed())
		}
		if l := g.Layout(); !slices.Equal(l, layout) {
			return nil, fmt.Errorf("%w: geometry %d has %v, want %v", ErrIncompatibleLayout, i+1, l, layout)
		}
		if !sameMorph(first, g) {
			return nil, fmt.Errorf("%w: geometry %d morph targets differ", ErrIncompatibleLayout, i+1)
		}
	}

	out := NewGeometry(t)
	offset := 0
	for i, g := range geoms {
		start := len(out.Positions)
		if first.Indexed() {
			start = len(out.Indices)
		}
		out.Positions = append(out.Positions, g.Positions...)
		if g.Normals != nil {
			out.Normals = append(out.Normals, g.Normals...)
		}
		if g.UVs != nil {
			out.UVs = append(out.UVs, g.UVs...)
		}
		if g.Colors != nil {
			out.Colors = append(out.Colors, g.Colors...)
		}
		for name, ch := range g.Extra {
			if out.Extra == nil {
				out.Extra = make(map[string][][4]float32)
			}
			out.Extra[name] = append(out.Extra[name], ch...)
		}
		for name, targets := range g.Morph {
			if out.Morph == nil {
				out.Morph = make(map[string][][][3]float32)
			}
			if out.Morph[name] == nil {
				out.Morph[name] = make([][][3]float32, len(targets))
			}
			for ti, d := range targets {
				out.Morph[name][ti] = append(out.Morph[name][ti], d...)
			}
		}
		if g.Indexed() {
			if out.Indices == nil {
				out.Indices = make([]uint32, 0, len(g.Indices))
			}
			for _, idx := range g.Indices {
				out.Indices = append(out.Indices, idx+uint32(offset))
			}
		}
		if useGroups {
			count := g.VertexCount()
			if g.Indexed() {
				count = len(g.Indices)
			}
			out.Groups = append(out.Groups, Group{Start: start, Count: count, MaterialIndex: i})
		}
		offset += g.VertexCount()
	}
	return out, nil
}

func sameMorph(a, b *Geometry) bool {
	if len(a.Morph) != len(b.Morph) {
		return false
	}
	for name, targets := range a.Morph {
		if len(b.Morph[name]) != len(targets) {
			return false
		}
	}
	return true
}
