package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"fitroom/internal/asset"
	"fitroom/internal/mathutil"
	"fitroom/internal/mesh"
	"fitroom/internal/preview"
	"fitroom/internal/texture"
)

func main() {
	webp := flag.String("webp", "", "Also render a preview to this WebP file")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: inspect [-webp out.webp] model.glb\n")
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	path := flag.Arg(0)

	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	tracker := mesh.NewTracker()
	root, err := asset.Parse(data, tracker, texture.NewCache(), nil)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	defer root.Dispose()

	class := asset.Classify(root)
	fmt.Printf("%s: %d bytes\n", path, len(data))
	fmt.Printf("Meshes: %d (skinned %d, textured %d)\n", class.Meshes, class.Skinned, class.Textured)
	fmt.Printf("Vertices: %d, Triangles: %d\n", class.Vertices, class.Triangles)

	b := class.Bounds
	size := b.Size()
	fmt.Printf("BBox: X[%.3f, %.3f] Y[%.3f, %.3f] Z[%.3f, %.3f]\n", b.Min[0], b.Max[0], b.Min[1], b.Max[1], b.Min[2], b.Max[2])
	fmt.Printf("Size: %.3f x %.3f x %.3f\n", size[0], size[1], size[2])

	switch {
	case class.Meshes == 0:
		fmt.Println("Usable as: nothing (no geometry)")
	case class.Rigged():
		fmt.Println("Usable as: avatar or rigged wearable")
	default:
		fmt.Println("Usable as: avatar or static wearable")
	}

	layouts := map[string]int{}
	for i, n := range root.MeshNodes() {
		m := n.Mesh
		g := m.Geometry
		layout := strings.Join(g.Layout(), ",")
		if g.Indices != nil {
			layout += " +index"
		}
		layouts[layout]++
		mat := "(none)"
		if m.Material != nil {
			mat = fmt.Sprintf("%q color=%.2v", m.Material.Name, m.Material.BaseColor)
			if m.Material.Texture != nil {
				r := m.Material.Texture.Bounds()
				mat += fmt.Sprintf(" texture=%dx%d", r.Dx(), r.Dy())
			}
		}
		fmt.Printf("  Mesh[%d] %q: verts=%d, tris=%d, skinned=%v\n", i, n.Name, g.VertexCount(), g.TriangleCount(), m.Skinned)
		fmt.Printf("    Layout: %s\n", layout)
		fmt.Printf("    Material: %s\n", mat)
		if len(g.Morph) > 0 {
			fmt.Printf("    Morph channels: %d\n", len(g.Morph))
		}
	}
	if len(layouts) > 1 {
		fmt.Printf("Note: %d distinct attribute layouts; merging reconciles them\n", len(layouts))
	}

	if *webp != "" {
		img := preview.Render(preview.Collect(root, mathutil.Mat4Identity()), preview.DefaultOptions())
		if err := preview.SaveWebP(*webp, img); err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Preview: %s\n", *webp)
	}
}
