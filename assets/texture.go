// Package assets decodes textures and builds the demo mesh uploaded by the
// framevk command.
package assets

import (
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"

	"github.com/pkg/errors"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// Texture is tightly packed RGBA8 pixel data, row major from the top left.
type Texture struct {
	Width, Height uint32
	Pixels        []byte
}

// MaxTextureSize bounds the longer edge of decoded textures. Larger images
// are scaled down keeping their aspect ratio.
const MaxTextureSize = 4096

func LoadTexture(path string) (*Texture, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open texture")
	}
	defer f.Close()
	tex, err := DecodeTexture(f)
	if err != nil {
		return nil, errors.Wrapf(err, "texture %s", path)
	}
	return tex, nil
}

// DecodeTexture reads any registered format (png, jpeg, bmp, webp).
func DecodeTexture(r io.Reader) (*Texture, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, errors.Wrap(err, "decode")
	}
	bounds := img.Bounds()
	if bounds.Empty() {
		return nil, errors.Errorf("empty %s image", format)
	}
	return FromImage(img), nil
}

// FromImage converts img to RGBA8, scaling it down when it exceeds
// MaxTextureSize.
func FromImage(img image.Image) *Texture {
	src := img.Bounds()
	w, h := fitSize(src.Dx(), src.Dy(), MaxTextureSize)
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	if w == src.Dx() && h == src.Dy() {
		draw.Draw(dst, dst.Bounds(), img, src.Min, draw.Src)
	} else {
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, src, draw.Src, nil)
	}
	return &Texture{Width: uint32(w), Height: uint32(h), Pixels: dst.Pix}
}

func fitSize(w, h, limit int) (int, int) {
	if w <= limit && h <= limit {
		return w, h
	}
	if w >= h {
		return limit, max(1, h*limit/w)
	}
	return max(1, w*limit/h), limit
}

// Checkerboard is the fallback texture used when no image is configured.
func Checkerboard(size, cells int) *Texture {
	if cells < 1 {
		cells = 1
	}
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	light := color.RGBA{R: 0xe0, G: 0xe0, B: 0xe0, A: 0xff}
	dark := color.RGBA{R: 0x30, G: 0x30, B: 0x40, A: 0xff}
	cell := max(1, size/cells)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			c := dark
			if (x/cell+y/cell)%2 == 0 {
				c = light
			}
			img.SetRGBA(x, y, c)
		}
	}
	return &Texture{Width: uint32(size), Height: uint32(size), Pixels: img.Pix}
}
