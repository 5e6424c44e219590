package effects

import (
	"image"
	"image/color"
)

// Frame is an RGB float buffer with channels nominally in [0,1], stored row
// major with three values per pixel.
type Frame struct {
	W, H int
	Pix  []float32
}

// NewFrame allocates a black frame.
func NewFrame(w, h int) *Frame {
	if w < 0 {
		w = 0
	}
	if h < 0 {
		h = 0
	}
	return &Frame{W: w, H: h, Pix: make([]float32, w*h*3)}
}

func (f *Frame) offset(x, y int) int { return (y*f.W + x) * 3 }

// At returns the pixel at (x, y).
func (f *Frame) At(x, y int) [3]float32 {
	i := f.offset(x, y)
	return [3]float32{f.Pix[i], f.Pix[i+1], f.Pix[i+2]}
}

// Set overwrites the pixel at (x, y).
func (f *Frame) Set(x, y int, c [3]float32) {
	i := f.offset(x, y)
	f.Pix[i], f.Pix[i+1], f.Pix[i+2] = c[0], c[1], c[2]
}

// AddScaled adds c*k to the pixel at (x, y).
func (f *Frame) AddScaled(x, y int, c [3]float64, k float64) {
	i := f.offset(x, y)
	f.Pix[i] += float32(c[0] * k)
	f.Pix[i+1] += float32(c[1] * k)
	f.Pix[i+2] += float32(c[2] * k)
}

// Clamp limits every channel to [0,1].
func (f *Frame) Clamp() *Frame {
	for i, v := range f.Pix {
		switch {
		case v < 0:
			f.Pix[i] = 0
		case v > 1:
			f.Pix[i] = 1
		}
	}
	return f
}

// IsBlack reports whether every channel is zero.
func (f *Frame) IsBlack() bool {
	for _, v := range f.Pix {
		if v != 0 {
			return false
		}
	}
	return true
}

// Clone returns a deep copy.
func (f *Frame) Clone() *Frame {
	out := &Frame{W: f.W, H: f.H, Pix: make([]float32, len(f.Pix))}
	copy(out.Pix, f.Pix)
	return out
}

// ToRGBA converts the frame to 8-bit RGBA, clipping to [0,1].
func (f *Frame) ToRGBA() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, f.W, f.H))
	for y := 0; y < f.H; y++ {
		for x := 0; x < f.W; x++ {
			p := f.At(x, y)
			img.SetRGBA(x, y, color.RGBA{R: to8(p[0]), G: to8(p[1]), B: to8(p[2]), A: 255})
		}
	}
	return img
}

func to8(v float32) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 1 {
		return 255
	}
	return uint8(v * 255)
}

// ApplyVignette darkens rows linearly from 1.0 at the top to 0.6 at the
// bottom.
func ApplyVignette(f *Frame) *Frame {
	for y := 0; y < f.H; y++ {
		k := float32(linspace(1.0, 0.6, f.H, y))
		row := f.Pix[y*f.W*3 : (y+1)*f.W*3]
		for i := range row {
			row[i] *= k
		}
	}
	return f
}

// linspace returns the i-th of n evenly spaced values from a to b inclusive.
func linspace(a, b float64, n, i int) float64 {
	if n <= 1 {
		return a
	}
	return a + (b-a)*float64(i)/float64(n-1)
}
