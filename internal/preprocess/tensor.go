package preprocess

import (
	"bytes"
	"strconv"
)

// Tensor is an image laid out height × width × channels, row major.
type Tensor struct {
	Height   int
	Width    int
	Channels int
	Data     []uint8
}

func NewTensor(height, width, channels int) *Tensor {
	return &Tensor{
		Height:   height,
		Width:    width,
		Channels: channels,
		Data:     make([]uint8, height*width*channels),
	}
}

func (t *Tensor) At(y, x, c int) uint8 {
	return t.Data[(y*t.Width+x)*t.Channels+c]
}

func (t *Tensor) Shape() []int64 {
	return []int64{int64(t.Height), int64(t.Width), int64(t.Channels)}
}

// Float32 returns the pixel values unscaled, in the same HWC order.
func (t *Tensor) Float32() []float32 {
	out := make([]float32, len(t.Data))
	for i, v := range t.Data {
		out[i] = float32(v)
	}
	return out
}

// MarshalJSON writes the tensor as nested integer arrays. Single channel
// images are written as [height][width], the rest as [height][width][channels].
func (t *Tensor) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(len(t.Data)*4 + t.Height*t.Width*2 + 16)
	num := make([]byte, 0, 3)

	buf.WriteByte('[')
	for y := 0; y < t.Height; y++ {
		if y > 0 {
			buf.WriteByte(',')
		}
		buf.WriteByte('[')
		for x := 0; x < t.Width; x++ {
			if x > 0 {
				buf.WriteByte(',')
			}
			base := (y*t.Width + x) * t.Channels
			if t.Channels == 1 {
				buf.Write(strconv.AppendUint(num[:0], uint64(t.Data[base]), 10))
				continue
			}
			buf.WriteByte('[')
			for c := 0; c < t.Channels; c++ {
				if c > 0 {
					buf.WriteByte(',')
				}
				buf.Write(strconv.AppendUint(num[:0], uint64(t.Data[base+c]), 10))
			}
			buf.WriteByte(']')
		}
		buf.WriteByte(']')
	}
	buf.WriteByte(']')

	return buf.Bytes(), nil
}
