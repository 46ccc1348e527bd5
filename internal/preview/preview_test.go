package preview

import (
	"bytes"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fitroom/internal/mathutil"
	"fitroom/internal/testutil"
)

func TestRenderDrawsCube(t *testing.T) {
	root := testutil.Fragment(nil, testutil.Cube{Name: "box", UV: true})
	items := Collect(root, mathutil.Mat4Identity())
	require.Len(t, items, 1)

	img := Render(items, Options{Width: 64, Height: 48, Supersample: 2, Yaw: 30, Pitch: 20, Margin: 4})
	assert.Equal(t, 64, img.Bounds().Dx())
	assert.Equal(t, 48, img.Bounds().Dy())

	center := img.NRGBAAt(32, 24)
	assert.Equal(t, uint8(255), center.A)
	corner := img.NRGBAAt(0, 0)
	assert.Equal(t, uint8(0), corner.A)
}

func TestRenderEmptyUsesBackground(t *testing.T) {
	bg := color.NRGBA{R: 10, G: 20, B: 30, A: 255}
	img := Render(nil, Options{Width: 8, Background: bg})
	assert.Equal(t, bg, img.NRGBAAt(4, 4))
}

func TestCollectSkipsHiddenAndBakesWorld(t *testing.T) {
	root := testutil.Fragment(nil, testutil.Cube{Name: "box"})
	items := Collect(root, mathutil.Compose(mathutil.Vec3{5, 0, 0}, mathutil.Vec3{}, mathutil.One))
	require.Len(t, items, 1)
	for _, p := range items[0].Positions {
		assert.GreaterOrEqual(t, p[0], float32(4.5))
	}

	root.Children[0].Visible = false
	assert.Empty(t, Collect(root, mathutil.Mat4Identity()))
}

func TestFrameBufferCoverage(t *testing.T) {
	fb := NewFrameBuffer(16, 16, color.NRGBA{})
	rasterizeTriangle(fb, [3]vertex{{x: 0, y: 0, z: 1}, {x: 16, y: 0, z: 1}, {x: 0, y: 16, z: 1}},
		mathutil.Vec3{0, 0, 1}, nil, [4]float64{1, 1, 1, 1}, new(LightConfig))
	covered := fb.Covered()
	assert.Greater(t, covered, 100)
	assert.Less(t, covered, 16*16)
}

func TestWebPEncoding(t *testing.T) {
	img := Render(Collect(testutil.Fragment(nil, testutil.Cube{Name: "box"}), mathutil.Mat4Identity()), DefaultOptions())
	data, err := WebPBytes(img)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("RIFF")))
	assert.Equal(t, "WEBP", string(data[8:12]))
}
