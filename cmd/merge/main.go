package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"fitroom/internal/asset"
	"fitroom/internal/looks"
	"fitroom/internal/mathutil"
	"fitroom/internal/mesh"
	"fitroom/internal/preview"
	"fitroom/internal/registry"
	"fitroom/internal/room"
	"fitroom/internal/texture"
)

// wearableArg is "path" or "path@x,y,z".
type wearableArg struct {
	path   string
	offset mathutil.Vec3
}

type wearableList []wearableArg

func (l *wearableList) String() string {
	parts := make([]string, len(*l))
	for i, w := range *l {
		parts[i] = w.path
	}
	return strings.Join(parts, " ")
}

func (l *wearableList) Set(v string) error {
	path, at, found := strings.Cut(v, "@")
	w := wearableArg{path: path}
	if found {
		coords := strings.Split(at, ",")
		if len(coords) != 3 {
			return fmt.Errorf("offset %q: want x,y,z", at)
		}
		for i, c := range coords {
			f, err := strconv.ParseFloat(strings.TrimSpace(c), 64)
			if err != nil {
				return fmt.Errorf("offset %q: %w", at, err)
			}
			w.offset[i] = f
		}
	}
	*l = append(*l, w)
	return nil
}

// fileSaver writes the exported look to a fixed path.
type fileSaver struct{ path string }

func (s fileSaver) Save(name string, glb []byte, meta looks.Meta) (looks.Look, error) {
	if err := os.WriteFile(s.path, glb, 0o644); err != nil {
		return looks.Look{}, err
	}
	return looks.Look{Name: name, URL: s.path, Vertices: meta.Vertices, Triangles: meta.Triangles, CreatedAt: time.Now()}, nil
}

func main() {
	var wearables wearableList
	avatar := flag.String("avatar", "", "Avatar GLB")
	flag.Var(&wearables, "wearable", "Wearable GLB, optionally path@x,y,z (repeatable)")
	out := flag.String("out", "look.glb", "Output GLB")
	webp := flag.String("webp", "", "Also render a preview to this WebP file")
	size := flag.Int("size", 512, "Preview size in pixels")
	flag.Parse()

	if *avatar == "" || len(wearables) == 0 {
		fmt.Fprintln(os.Stderr, "Usage: merge -avatar body.glb -wearable shirt.glb[@x,y,z] ... [-out look.glb] [-webp look.webp]")
		os.Exit(2)
	}

	tracker := mesh.NewTracker()
	loader := asset.NewLoader(asset.Config{}, nil, tracker, texture.NewCache(), nil)
	r := room.New("cli", room.Options{Loader: loader, Tracker: tracker})
	defer r.Close()

	notices, stop := r.Subscribe(64)
	go func() {
		for n := range notices {
			fmt.Printf("[%s] %s: %s\n", n.Level, n.Title, n.Description)
		}
	}()
	defer stop()

	ctx := context.Background()
	if err := r.LoadAvatar(ctx, *avatar); err != nil {
		fatal(err)
	}
	for _, w := range wearables {
		if _, err := r.LoadWearableAt(ctx, w.path, "", registry.Transform{Position: w.offset}); err != nil {
			fatal(err)
		}
	}
	if err := r.MergeLook(); err != nil {
		fatal(err)
	}
	look, err := r.ExportLook(fileSaver{path: *out}, strings.TrimSuffix(*out, ".glb"), "")
	if err != nil {
		fatal(err)
	}
	fmt.Printf("Merged: %d vertices, %d triangles -> %s\n", look.Vertices, look.Triangles, look.URL)

	if *webp != "" {
		opts := preview.DefaultOptions()
		opts.Width, opts.Height = *size, *size
		if err := preview.SaveWebP(*webp, r.Preview(opts)); err != nil {
			fatal(err)
		}
		fmt.Printf("Preview: %s\n", *webp)
	}
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
