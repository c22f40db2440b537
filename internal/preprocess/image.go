// Package preprocess turns uploaded image bytes into the fixed-size pixel
// tensor the classifier expects.
package preprocess

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
	"github.com/nfnt/resize"
)

// DefaultSize is the spatial input size of the tumor model.
const DefaultSize = 150

// MaxPixels caps width*height of an upload before its pixels are allocated.
const MaxPixels = 178956970

// Decode reads an image in any of the formats imaging registers
// (JPEG, PNG, GIF, BMP, TIFF).
func Decode(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, &DecodeError{Err: errors.New("empty upload")}
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, &DecodeError{Err: err}
	}
	if int64(cfg.Width)*int64(cfg.Height) > MaxPixels {
		return nil, &DecodeError{Err: fmt.Errorf("image of %dx%d pixels exceeds limit of %d", cfg.Width, cfg.Height, MaxPixels)}
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, &DecodeError{Err: err}
	}

	return img, nil
}

// Channels reports how many channels a decoded image carries: 1 for
// grayscale, 4 when an alpha channel is actually used, 3 otherwise.
func Channels(img image.Image) int {
	switch img.(type) {
	case *image.Gray, *image.Gray16:
		return 1
	}
	if o, ok := img.(interface{ Opaque() bool }); ok && !o.Opaque() {
		return 4
	}
	return 3
}

// Resize scales img to size×size and returns its pixels as a tensor.
// The channel count of the source image is preserved.
func Resize(img image.Image, size int) (*Tensor, error) {
	if img == nil {
		return nil, &ResizeError{Err: errors.New("nil image")}
	}
	if size <= 0 {
		return nil, &ResizeError{Err: fmt.Errorf("invalid target size %d", size)}
	}

	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, &ResizeError{Err: fmt.Errorf("invalid input dimensions %dx%d", b.Dx(), b.Dy())}
	}

	channels := Channels(img)
	resized := resize.Resize(uint(size), uint(size), img, resize.Bicubic)

	rb := resized.Bounds()
	if rb.Dx() != size || rb.Dy() != size {
		return nil, &ResizeError{Err: fmt.Errorf("resized to %dx%d, expected %dx%d", rb.Dx(), rb.Dy(), size, size)}
	}

	t := NewTensor(size, size, channels)
	i := 0
	for y := rb.Min.Y; y < rb.Max.Y; y++ {
		for x := rb.Min.X; x < rb.Max.X; x++ {
			px := resized.At(x, y)
			if channels == 1 {
				t.Data[i] = color.GrayModel.Convert(px).(color.Gray).Y
				i++
				continue
			}
			c := color.NRGBAModel.Convert(px).(color.NRGBA)
			t.Data[i] = c.R
			t.Data[i+1] = c.G
			t.Data[i+2] = c.B
			if channels == 4 {
				t.Data[i+3] = c.A
			}
			i += channels
		}
	}

	return t, nil
}

// Load decodes data and resizes it to size×size in one step.
func Load(data []byte, size int) (*Tensor, error) {
	img, err := Decode(data)
	if err != nil {
		return nil, err
	}
	return Resize(img, size)
}
