package assets

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCubeWindsOutward(t *testing.T) {
	m := Cube()
	require.Len(t, m.Vertices, 24)
	require.Len(t, m.Indices, 36)
	for i := 0; i < len(m.Indices); i += 3 {
		a := m.Vertices[m.Indices[i]]
		b := m.Vertices[m.Indices[i+1]]
		c := m.Vertices[m.Indices[i+2]]
		n := b.Position.Sub(a.Position).Cross(c.Position.Sub(a.Position))
		assert.Greater(t, n.Dot(a.Normal), float32(0), "triangle %d", i/3)
	}
	for _, v := range m.Vertices {
		for k := 0; k < 3; k++ {
			assert.InDelta(t, 0.5, abs(v.Position[k]), 1e-6)
		}
	}
}

func abs(f float32) float32 {
	if f < 0 {
		return -f
	}
	return f
}

func TestMeshBytes(t *testing.T) {
	m := Cube()
	assert.Len(t, m.VertexBytes(), 24*VertexStride)
	assert.Len(t, m.IndexBytes(), 36*4)
	attrs := VertexAttributes()
	require.Len(t, attrs, 4)
	assert.Equal(t, uint32(36), attrs[3].Offset)
}

func TestDecodeTexturePNG(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 3, 2))
	img.Set(0, 0, color.NRGBA{R: 255, A: 255})
	img.Set(2, 1, color.NRGBA{B: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	tex, err := DecodeTexture(&buf)
	require.NoError(t, err)
	assert.Equal(t, uint32(3), tex.Width)
	assert.Equal(t, uint32(2), tex.Height)
	require.Len(t, tex.Pixels, 3*2*4)
	assert.Equal(t, []byte{255, 0, 0, 255}, tex.Pixels[0:4])
	assert.Equal(t, []byte{0, 0, 255, 255}, tex.Pixels[20:24])
}

func TestDecodeTextureRejectsGarbage(t *testing.T) {
	_, err := DecodeTexture(bytes.NewReader([]byte("not an image")))
	assert.Error(t, err)
}

func TestFitSize(t *testing.T) {
	w, h := fitSize(100, 50, 4096)
	assert.Equal(t, []int{100, 50}, []int{w, h})
	w, h = fitSize(8192, 2048, 4096)
	assert.Equal(t, []int{4096, 1024}, []int{w, h})
	w, h = fitSize(10, 100000, 4096)
	assert.Equal(t, []int{1, 4096}, []int{w, h})
}

func TestFromImageScalesLargeImages(t *testing.T) {
	tex := FromImage(image.NewGray(image.Rect(0, 0, MaxTextureSize*2, 8)))
	assert.Equal(t, uint32(MaxTextureSize), tex.Width)
	assert.Equal(t, uint32(4), tex.Height)
}

func TestCheckerboard(t *testing.T) {
	tex := Checkerboard(8, 2)
	require.Len(t, tex.Pixels, 8*8*4)
	assert.Equal(t, byte(0xe0), tex.Pixels[0])
	assert.Equal(t, byte(0x30), tex.Pixels[4*4])
	assert.Equal(t, byte(0xe0), tex.Pixels[(4*8+4)*4])
}
