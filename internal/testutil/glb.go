// Package testutil builds GLB fixtures and scene fragments for tests.
package testutil

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"

	"fitroom/internal/mathutil"
	"fitroom/internal/mesh"
)

// Cube describes one axis-aligned box mesh placed under its own node.
type Cube struct {
	Name   string
	Size   float32
	Center [3]float32

	UV       bool
	Normals  bool
	Colors   bool
	Tangents bool
	Skinned  bool
	Morph    bool
	Texture  bool
	// TextureData replaces the generated 2x2 PNG when Texture is set.
	TextureData []byte
	// NoMaterial leaves the primitive without a material.
	NoMaterial bool
	BaseColor  [4]float32

	NodeTranslation [3]float32
	// NodeRotation is a quaternion; zero means identity.
	NodeRotation [4]float32
}

func (c Cube) size() float32 {
	if c.Size == 0 {
		return 1
	}
	return c.Size
}

func (c Cube) color() [4]float32 {
	if c.BaseColor == ([4]float32{}) {
		return [4]float32{0.6, 0.3, 0.2, 1}
	}
	return c.BaseColor
}

// face corners and normals for the six cube faces
var faces = []struct {
	n       [3]float32
	corners [4][3]float32
}{
	{[3]float32{1, 0, 0}, [4][3]float32{{1, -1, 1}, {1, -1, -1}, {1, 1, -1}, {1, 1, 1}}},
	{[3]float32{-1, 0, 0}, [4][3]float32{{-1, -1, -1}, {-1, -1, 1}, {-1, 1, 1}, {-1, 1, -1}}},
	{[3]float32{0, 1, 0}, [4][3]float32{{-1, 1, 1}, {1, 1, 1}, {1, 1, -1}, {-1, 1, -1}}},
	{[3]float32{0, -1, 0}, [4][3]float32{{-1, -1, -1}, {1, -1, -1}, {1, -1, 1}, {-1, -1, 1}}},
	{[3]float32{0, 0, 1}, [4][3]float32{{-1, -1, 1}, {1, -1, 1}, {1, 1, 1}, {-1, 1, 1}}},
	{[3]float32{0, 0, -1}, [4][3]float32{{1, -1, -1}, {-1, -1, -1}, {-1, 1, -1}, {1, 1, -1}}},
}

type cubeData struct {
	positions [][3]float32
	normals   [][3]float32
	uvs       [][2]float32
	indices   []uint32
}

func buildCube(c Cube) cubeData {
	h := c.size() / 2
	var d cubeData
	uv := [4][2]float32{{0, 1}, {1, 1}, {1, 0}, {0, 0}}
	for _, f := range faces {
		base := uint32(len(d.positions))
		for i, corner := range f.corners {
			d.positions = append(d.positions, [3]float32{
				c.Center[0] + corner[0]*h,
				c.Center[1] + corner[1]*h,
				c.Center[2] + corner[2]*h,
			})
			d.normals = append(d.normals, f.n)
			d.uvs = append(d.uvs, uv[i])
		}
		d.indices = append(d.indices, base, base+1, base+2, base, base+2, base+3)
	}
	return d
}

// GLB encodes the cubes as a binary glTF with one root node per cube.
func GLB(tb testing.TB, cubes ...Cube) []byte {
	tb.Helper()
	doc := gltf.NewDocument()
	doc.Asset.Generator = "fitroom testutil"

	var textureIdx *uint32
	for i, c := range cubes {
		d := buildCube(c)
		attrs := map[string]uint32{
			gltf.POSITION: uint32(modeler.WritePosition(doc, d.positions)),
		}
		if c.Normals {
			attrs[gltf.NORMAL] = uint32(modeler.WriteNormal(doc, d.normals))
		}
		if c.UV {
			attrs[gltf.TEXCOORD_0] = uint32(modeler.WriteTextureCoord(doc, d.uvs))
		}
		if c.Colors {
			cols := make([][4]float32, len(d.positions))
			for j := range cols {
				cols[j] = c.color()
			}
			attrs[gltf.COLOR_0] = uint32(modeler.WriteColor(doc, cols))
		}
		if c.Tangents {
			tan := make([][4]float32, len(d.positions))
			for j := range tan {
				tan[j] = [4]float32{1, 0, 0, 1}
			}
			attrs[gltf.TANGENT] = uint32(modeler.WriteTangent(doc, tan))
		}
		if c.Skinned {
			joints := make([][4]uint8, len(d.positions))
			weights := make([][4]float32, len(d.positions))
			for j := range weights {
				weights[j] = [4]float32{1, 0, 0, 0}
			}
			attrs[gltf.JOINTS_0] = uint32(modeler.WriteJoints(doc, joints))
			attrs[gltf.WEIGHTS_0] = uint32(modeler.WriteWeights(doc, weights))
		}
		prim := &gltf.Primitive{
			Attributes: attrs,
			Indices:    gltf.Index(uint32(modeler.WriteIndices(doc, d.indices))),
		}
		if c.Morph {
			deltas := make([][3]float32, len(d.positions))
			for j := range deltas {
				deltas[j] = [3]float32{0, 0.1, 0}
			}
			prim.Targets = append(prim.Targets, map[string]uint32{gltf.POSITION: uint32(modeler.WritePosition(doc, deltas))})
		}
		if !c.NoMaterial {
			col := c.color()
			mat := &gltf.Material{
				Name: c.Name + "-material",
				PBRMetallicRoughness: &gltf.PBRMetallicRoughness{
					BaseColorFactor: &col,
					MetallicFactor:  gltf.Float(0.1),
					RoughnessFactor: gltf.Float(0.7),
				},
			}
			if c.Texture {
				if textureIdx == nil {
					textureIdx = gltf.Index(embedImage(tb, doc, c.TextureData))
				}
				mat.PBRMetallicRoughness.BaseColorTexture = &gltf.TextureInfo{Index: *textureIdx}
			}
			doc.Materials = append(doc.Materials, mat)
			prim.Material = gltf.Index(uint32(len(doc.Materials) - 1))
		}
		doc.Meshes = append(doc.Meshes, &gltf.Mesh{Name: c.Name, Primitives: []*gltf.Primitive{prim}})

		rot := c.NodeRotation
		if rot == ([4]float32{}) {
			rot = [4]float32{0, 0, 0, 1}
		}
		doc.Nodes = append(doc.Nodes, &gltf.Node{
			Name:        c.Name,
			Mesh:        gltf.Index(uint32(i)),
			Translation: c.NodeTranslation,
			Rotation:    rot,
			Scale:       [3]float32{1, 1, 1},
		})
		doc.Scenes[0].Nodes = append(doc.Scenes[0].Nodes, uint32(i))
	}

	var buf bytes.Buffer
	enc := gltf.NewEncoder(&buf)
	enc.AsBinary = true
	if err := enc.Encode(doc); err != nil {
		tb.Fatalf("testutil: encode glb: %v", err)
	}
	return buf.Bytes()
}

// embedImage appends data (a 2x2 PNG when nil) to the binary buffer and returns
// its texture index.
func embedImage(tb testing.TB, doc *gltf.Document, data []byte) uint32 {
	tb.Helper()
	if data == nil {
		data = redPNG(tb)
	}
	if len(doc.Buffers) == 0 {
		doc.Buffers = append(doc.Buffers, &gltf.Buffer{})
	}
	b := doc.Buffers[0]
	offset := len(b.Data)
	b.Data = append(b.Data, data...)
	b.ByteLength = uint32(len(b.Data))
	doc.BufferViews = append(doc.BufferViews, &gltf.BufferView{
		Buffer:     0,
		ByteOffset: uint32(offset),
		ByteLength: uint32(len(data)),
	})
	doc.Images = append(doc.Images, &gltf.Image{
		MimeType:   "image/png",
		BufferView: gltf.Index(uint32(len(doc.BufferViews) - 1)),
	})
	doc.Textures = append(doc.Textures, &gltf.Texture{Source: gltf.Index(uint32(len(doc.Images) - 1))})
	return uint32(len(doc.Textures) - 1)
}

// Fragment builds the scene fragment the asset parser would produce for c,
// without going through GLB encoding.
func Fragment(tr *mesh.Tracker, c Cube) *mesh.Node {
	d := buildCube(c)
	g := mesh.NewGeometry(tr)
	g.Positions = d.positions
	g.Indices = d.indices
	if c.Normals {
		g.Normals = d.normals
	}
	if c.UV {
		g.UVs = d.uvs
	}
	if c.Colors {
		g.Colors = make([][4]float32, len(d.positions))
		for i := range g.Colors {
			g.Colors[i] = c.color()
		}
	}
	if c.Tangents {
		g.Extra = map[string][][4]float32{"tangent": make([][4]float32, len(d.positions))}
	}
	if c.Morph {
		g.Morph = map[string][][][3]float32{mesh.Position: {make([][3]float32, len(d.positions))}}
	}
	var mat *mesh.Material
	if !c.NoMaterial {
		mat = mesh.NewMaterial(tr, c.Name+"-material")
		mat.BaseColor = c.color()
	}

	node := mesh.NewNode(c.Name)
	node.Position = mathutil.Vec3From32(c.NodeTranslation)
	node.Mesh = &mesh.Mesh{Name: c.Name, Geometry: g, Material: mat, CastShadow: true, ReceiveShadow: true, Skinned: c.Skinned}
	root := mesh.NewNode("scene")
	root.Add(node)
	return root
}

func redPNG(tb testing.TB) []byte {
	tb.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	for y := 0; y < 2; y++ {
		for x := 0; x < 2; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: 200, G: 40, B: 40, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		tb.Fatalf("testutil: encode png: %v", err)
	}
	return buf.Bytes()
}
