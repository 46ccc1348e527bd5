// Package looks exports merged looks to GLB and keeps the saved-look list.
package looks

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"

	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"

	"fitroom/internal/mathutil"
	"fitroom/internal/mesh"
)

var ErrEmpty = errors.New("looks: nothing to export")

// EncodeGLB writes every visible mesh under root as a binary glTF with
// world transforms baked into the vertices. Textures are embedded as PNG.
func EncodeGLB(root *mesh.Node) ([]byte, error) {
	root.UpdateWorld(mathutil.Mat4Identity())

	doc := gltf.NewDocument()
	doc.Asset.Generator = "fitroom"

	type pending struct {
		mat *gltf.Material
		tex *image.NRGBA
	}
	var textured []pending
	var walk func(n *mesh.Node)
	walk = func(n *mesh.Node) {
		if !n.Visible {
			return
		}
		if n.Mesh != nil && n.Mesh.Geometry != nil && !n.Mesh.Geometry.Disposed() && n.Mesh.Geometry.VertexCount() > 0 {
			prim, mat := writeMesh(doc, n)
			if mat != nil && n.Mesh.Material.Texture != nil && hasAttr(prim, gltf.TEXCOORD_0) {
				textured = append(textured, pending{mat, n.Mesh.Material.Texture})
			}
			doc.Meshes = append(doc.Meshes, &gltf.Mesh{Name: n.Mesh.Name, Primitives: []*gltf.Primitive{prim}})
			doc.Nodes = append(doc.Nodes, &gltf.Node{
				Name:     n.Name,
				Mesh:     gltf.Index(uint32(len(doc.Meshes) - 1)),
				Rotation: [4]float32{0, 0, 0, 1},
				Scale:    [3]float32{1, 1, 1},
			})
			doc.Scenes[0].Nodes = append(doc.Scenes[0].Nodes, uint32(len(doc.Nodes)-1))
		}
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(root)
	if len(doc.Meshes) == 0 {
		return nil, ErrEmpty
	}

	// images go after all accessor data so accessor offsets stay aligned
	seen := make(map[*image.NRGBA]uint32)
	for _, p := range textured {
		idx, ok := seen[p.tex]
		if !ok {
			var err error
			if idx, err = embedPNG(doc, p.tex); err != nil {
				return nil, err
			}
			seen[p.tex] = idx
		}
		p.mat.PBRMetallicRoughness.BaseColorTexture = &gltf.TextureInfo{Index: idx}
	}

	var buf bytes.Buffer
	enc := gltf.NewEncoder(&buf)
	enc.AsBinary = true
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("looks: encode glb: %w", err)
	}
	return buf.Bytes(), nil
}

func writeMesh(doc *gltf.Document, n *mesh.Node) (*gltf.Primitive, *gltf.Material) {
	g := n.Mesh.Geometry
	pos := make([][3]float32, len(g.Positions))
	for i, p := range g.Positions {
		pos[i] = n.World.MulPoint(mathutil.Vec3From32(p)).To32()
	}
	attrs := map[string]uint32{gltf.POSITION: modeler.WritePosition(doc, pos)}

	if len(g.Normals) == len(g.Positions) {
		nm := n.World.NormalMatrix()
		nrm := make([][3]float32, len(g.Normals))
		for i, v := range g.Normals {
			nrm[i] = nm.MulVec3(mathutil.Vec3From32(v)).Normalize().To32()
		}
		attrs[gltf.NORMAL] = modeler.WriteNormal(doc, nrm)
	}
	if len(g.UVs) == len(g.Positions) {
		attrs[gltf.TEXCOORD_0] = modeler.WriteTextureCoord(doc, g.UVs)
	}
	if len(g.Colors) == len(g.Positions) {
		attrs[gltf.COLOR_0] = modeler.WriteColor(doc, g.Colors)
	}

	prim := &gltf.Primitive{Attributes: attrs, Mode: gltf.PrimitiveTriangles}
	if g.Indexed() {
		prim.Indices = gltf.Index(modeler.WriteIndices(doc, g.Indices))
	}

	m := n.Mesh.Material
	if m == nil {
		return prim, nil
	}
	col := m.BaseColor
	mat := &gltf.Material{
		Name:        m.Name,
		DoubleSided: m.DoubleSided,
		PBRMetallicRoughness: &gltf.PBRMetallicRoughness{
			BaseColorFactor: &col,
			MetallicFactor:  gltf.Float(m.Metalness),
			RoughnessFactor: gltf.Float(m.Roughness),
		},
	}
	if col[3] < 1 {
		mat.AlphaMode = gltf.AlphaBlend
	}
	doc.Materials = append(doc.Materials, mat)
	prim.Material = gltf.Index(uint32(len(doc.Materials) - 1))
	return prim, mat
}

func embedPNG(doc *gltf.Document, img *image.NRGBA) (uint32, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return 0, fmt.Errorf("looks: encode texture: %w", err)
	}
	if len(doc.Buffers) == 0 {
		doc.Buffers = append(doc.Buffers, &gltf.Buffer{})
	}
	b := doc.Buffers[0]
	offset := len(b.Data)
	b.Data = append(b.Data, buf.Bytes()...)
	b.ByteLength = uint32(len(b.Data))
	doc.BufferViews = append(doc.BufferViews, &gltf.BufferView{
		Buffer:     0,
		ByteOffset: uint32(offset),
		ByteLength: uint32(buf.Len()),
	})
	doc.Images = append(doc.Images, &gltf.Image{
		MimeType:   "image/png",
		BufferView: gltf.Index(uint32(len(doc.BufferViews) - 1)),
	})
	doc.Textures = append(doc.Textures, &gltf.Texture{Source: gltf.Index(uint32(len(doc.Images) - 1))})
	return uint32(len(doc.Textures) - 1), nil
}

func hasAttr(p *gltf.Primitive, name string) bool {
	_, ok := p.Attributes[name]
	return ok
}
