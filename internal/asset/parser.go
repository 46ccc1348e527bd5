package asset

import (
	"bytes"
	"fmt"
	"image"
	"strings"

	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
	"go.uber.org/zap"

	"fitroom/internal/mathutil"
	"fitroom/internal/mesh"
	"fitroom/internal/texture"
)

// maxDepth bounds node nesting in untrusted files.
const maxDepth = 64

// Parse decodes a glTF (binary or embedded JSON) held in memory into a
// scene fragment rooted at an identity node. Every geometry and material
// is registered with tracker. Textures that fail to decode are logged and
// dropped; a nil logger discards those warnings.
func Parse(data []byte, tracker *mesh.Tracker, textures *texture.Cache, logger *zap.Logger) (*mesh.Node, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	doc := new(gltf.Document)
	if err := gltf.NewDecoder(bytes.NewReader(data)).Decode(doc); err != nil {
		return nil, fmt.Errorf("asset: decode: %w", err)
	}
	p := &parser{
		doc:      doc,
		tracker:  tracker,
		textures: textures,
		images:   make(map[uint32]*image.NRGBA),
		onPath:   make(map[uint32]bool),
		logger:   logger,
	}
	root, err := p.parse()
	if err != nil {
		root.Dispose()
		return nil, err
	}
	return root, nil
}

type parser struct {
	doc      *gltf.Document
	tracker  *mesh.Tracker
	textures *texture.Cache
	images   map[uint32]*image.NRGBA
	onPath   map[uint32]bool
	logger   *zap.Logger
}

func (p *parser) parse() (*mesh.Node, error) {
	root := mesh.NewNode("scene")
	if len(p.doc.Scenes) == 0 {
		return root, fmt.Errorf("asset: %w: document has no scenes", errUnsupported)
	}
	si := 0
	if p.doc.Scene != nil {
		si = int(*p.doc.Scene)
	}
	if si >= len(p.doc.Scenes) {
		return root, fmt.Errorf("asset: scene %d out of range", si)
	}
	scene := p.doc.Scenes[si]
	if scene.Name != "" {
		root.Name = scene.Name
	}
	for _, ni := range scene.Nodes {
		n, err := p.node(ni, 0)
		if n != nil {
			root.Add(n)
		}
		if err != nil {
			return root, err
		}
	}
	return root, nil
}

func (p *parser) node(idx uint32, depth int) (*mesh.Node, error) {
	if int(idx) >= len(p.doc.Nodes) {
		return nil, fmt.Errorf("asset: node %d out of range", idx)
	}
	if depth > maxDepth {
		return nil, fmt.Errorf("asset: %w: node nesting deeper than %d", errUnsupported, maxDepth)
	}
	if p.onPath[idx] {
		return nil, fmt.Errorf("asset: node %d is its own ancestor", idx)
	}
	p.onPath[idx] = true
	defer delete(p.onPath, idx)

	src := p.doc.Nodes[idx]
	out := mesh.NewNode(src.Name)
	if hasMatrix(src.Matrix) {
		m := mathutil.Mat4FromColumnMajor(src.Matrix)
		out.Basis = &m
	} else {
		out.Position = mathutil.Vec3From32(src.Translation)
		out.Rotation = mathutil.EulerFromMat3(mathutil.QuatToMat3(mathutil.QuatFrom32(src.Rotation)))
		if src.Scale != ([3]float32{}) {
			out.Scale = mathutil.Vec3From32(src.Scale)
		}
	}

	if src.Mesh != nil {
		if err := p.attachMesh(out, *src.Mesh, src.Skin != nil); err != nil {
			return out, err
		}
	}
	for _, ci := range src.Children {
		c, err := p.node(ci, depth+1)
		if c != nil {
			out.Add(c)
		}
		if err != nil {
			return out, err
		}
	}
	return out, nil
}

func hasMatrix(m [16]float32) bool {
	if m == ([16]float32{}) {
		return false
	}
	return !mathutil.Mat4FromColumnMajor(m).IsIdentity()
}

func (p *parser) attachMesh(n *mesh.Node, mi uint32, skinned bool) error {
	if int(mi) >= len(p.doc.Meshes) {
		return fmt.Errorf("asset: mesh %d out of range", mi)
	}
	src := p.doc.Meshes[mi]
	var meshes []*mesh.Mesh
	for i, prim := range src.Primitives {
		if prim.Mode != gltf.PrimitiveTriangles {
			continue
		}
		m, err := p.primitive(prim)
		if err != nil {
			for _, done := range meshes {
				done.Geometry.Dispose()
				done.Material.Dispose()
			}
			return fmt.Errorf("asset: mesh %q primitive %d: %w", src.Name, i, err)
		}
		m.Name = src.Name
		m.Skinned = m.Skinned || skinned
		meshes = append(meshes, m)
	}
	switch len(meshes) {
	case 0:
	case 1:
		n.Mesh = meshes[0]
	default:
		for i, m := range meshes {
			c := mesh.NewNode(fmt.Sprintf("%s.%d", src.Name, i))
			c.Mesh = m
			n.Add(c)
		}
	}
	return nil
}

func (p *parser) accessor(idx uint32) (*gltf.Accessor, error) {
	if int(idx) >= len(p.doc.Accessors) {
		return nil, fmt.Errorf("accessor %d out of range", idx)
	}
	return p.doc.Accessors[idx], nil
}

func (p *parser) primitive(prim *gltf.Primitive) (*mesh.Mesh, error) {
	posIdx, ok := prim.Attributes[gltf.POSITION]
	if !ok {
		return nil, fmt.Errorf("%w: primitive without POSITION", errUnsupported)
	}
	g := mesh.NewGeometry(p.tracker)
	fail := func(err error) (*mesh.Mesh, error) {
		g.Dispose()
		return nil, err
	}

	acr, err := p.accessor(posIdx)
	if err != nil {
		return fail(err)
	}
	if g.Positions, err = modeler.ReadPosition(p.doc, acr, nil); err != nil {
		return fail(fmt.Errorf("read positions: %w", err))
	}
	if prim.Indices != nil {
		acr, err := p.accessor(*prim.Indices)
		if err != nil {
			return fail(err)
		}
		if g.Indices, err = modeler.ReadIndices(p.doc, acr, nil); err != nil {
			return fail(fmt.Errorf("read indices: %w", err))
		}
	}

	skinned := false
	for name, ai := range prim.Attributes {
		if name == gltf.POSITION {
			continue
		}
		acr, err := p.accessor(ai)
		if err != nil {
			return fail(err)
		}
		if strings.HasPrefix(name, "JOINTS_") {
			skinned = true
		}
		if err := p.readChannel(g, name, acr); err != nil {
			return fail(fmt.Errorf("read %s: %w", name, err))
		}
	}

	for ti, target := range prim.Targets {
		ai, ok := target[gltf.POSITION]
		if !ok {
			continue
		}
		acr, err := p.accessor(ai)
		if err != nil {
			return fail(err)
		}
		deltas, err := modeler.ReadPosition(p.doc, acr, nil)
		if err != nil {
			return fail(fmt.Errorf("read morph target %d: %w", ti, err))
		}
		if g.Morph == nil {
			g.Morph = make(map[string][][][3]float32)
		}
		g.Morph[mesh.Position] = append(g.Morph[mesh.Position], deltas)
	}

	if err := g.Validate(); err != nil {
		return fail(err)
	}

	m := &mesh.Mesh{Geometry: g, Skinned: skinned}
	if prim.Material != nil {
		if m.Material, err = p.material(*prim.Material); err != nil {
			return fail(err)
		}
	}
	return m, nil
}

func (p *parser) readChannel(g *mesh.Geometry, name string, acr *gltf.Accessor) error {
	var err error
	switch {
	case name == gltf.NORMAL:
		g.Normals, err = modeler.ReadNormal(p.doc, acr, nil)
	case name == gltf.TEXCOORD_0:
		g.UVs, err = modeler.ReadTextureCoord(p.doc, acr, nil)
	case name == gltf.COLOR_0:
		var cols [][4]uint8
		if cols, err = modeler.ReadColor(p.doc, acr, nil); err == nil {
			g.Colors = make([][4]float32, len(cols))
			for i, c := range cols {
				g.Colors[i] = [4]float32{float32(c[0]) / 255, float32(c[1]) / 255, float32(c[2]) / 255, float32(c[3]) / 255}
			}
		}
	case name == gltf.TANGENT:
		var tan [][4]float32
		if tan, err = modeler.ReadTangent(p.doc, acr, nil); err == nil {
			setExtra(g, "tangent", tan)
		}
	case strings.HasPrefix(name, "JOINTS_"):
		var joints [][4]uint16
		if joints, err = modeler.ReadJoints(p.doc, acr, nil); err == nil {
			out := make([][4]float32, len(joints))
			for i, j := range joints {
				out[i] = [4]float32{float32(j[0]), float32(j[1]), float32(j[2]), float32(j[3])}
			}
			setExtra(g, strings.ToLower(name), out)
		}
	case strings.HasPrefix(name, "WEIGHTS_"):
		var w [][4]float32
		if w, err = modeler.ReadWeights(p.doc, acr, nil); err == nil {
			setExtra(g, strings.ToLower(name), w)
		}
	case strings.HasPrefix(name, "TEXCOORD_"):
		var uv [][2]float32
		if uv, err = modeler.ReadTextureCoord(p.doc, acr, nil); err == nil {
			out := make([][4]float32, len(uv))
			for i, t := range uv {
				out[i] = [4]float32{t[0], t[1]}
			}
			setExtra(g, strings.ToLower(name), out)
		}
	}
	// Application-specific attributes (leading underscore) are ignored.
	return err
}

func setExtra(g *mesh.Geometry, name string, data [][4]float32) {
	if g.Extra == nil {
		g.Extra = make(map[string][][4]float32)
	}
	g.Extra[name] = data
}

// material builds a fresh material per primitive so every mesh owns its
// material exclusively. Decoded textures are shared.
func (p *parser) material(idx uint32) (*mesh.Material, error) {
	if int(idx) >= len(p.doc.Materials) {
		return nil, fmt.Errorf("material %d out of range", idx)
	}
	src := p.doc.Materials[idx]
	m := mesh.NewMaterial(p.tracker, src.Name)
	m.DoubleSided = src.DoubleSided
	m.Metalness = 1
	if pbr := src.PBRMetallicRoughness; pbr != nil {
		if pbr.BaseColorFactor != nil {
			m.BaseColor = *pbr.BaseColorFactor
		}
		if pbr.MetallicFactor != nil {
			m.Metalness = *pbr.MetallicFactor
		}
		if pbr.RoughnessFactor != nil {
			m.Roughness = *pbr.RoughnessFactor
		}
		if pbr.BaseColorTexture != nil {
			m.Texture = p.texture(pbr.BaseColorTexture.Index)
		}
	}
	return m, nil
}

// texture returns nil when the image is missing, external or undecodable;
// the material keeps its base color.
func (p *parser) texture(ti uint32) *image.NRGBA {
	if int(ti) >= len(p.doc.Textures) || p.doc.Textures[ti].Source == nil {
		return nil
	}
	ii := *p.doc.Textures[ti].Source
	if img, ok := p.images[ii]; ok {
		return img
	}
	var img *image.NRGBA
	if data := p.imageBytes(ii); data != nil {
		var err error
		if img, err = p.textures.Decode(data); err != nil {
			p.logger.Warn("texture dropped",
				zap.Uint32("image", ii),
				zap.String("mime", p.doc.Images[ii].MimeType),
				zap.Error(err))
		}
	}
	p.images[ii] = img
	return img
}

func (p *parser) imageBytes(ii uint32) []byte {
	if int(ii) >= len(p.doc.Images) {
		return nil
	}
	im := p.doc.Images[ii]
	if im.BufferView == nil || int(*im.BufferView) >= len(p.doc.BufferViews) {
		return nil
	}
	bv := p.doc.BufferViews[*im.BufferView]
	if int(bv.Buffer) >= len(p.doc.Buffers) {
		return nil
	}
	data := p.doc.Buffers[bv.Buffer].Data
	start, end := int(bv.ByteOffset), int(bv.ByteOffset)+int(bv.ByteLength)
	if end > len(data) || start > end {
		return nil
	}
	return data[start:end]
}
