package video

import (
	"math"
	"math/rand"

	"github.com/PG-9-9/Musical-Video-Generator/pkg/effects"
	"github.com/PG-9-9/Musical-Video-Generator/pkg/timeline"
)

const (
	grainSeed      = 7
	grainStrength  = 6.0 / 255
	blurThreshold  = 0.6
	bloomGain      = 0.6
	bloomRadius    = 3.0
	bloomMixAmount = 0.25
)

// ApplyTexture applies the frame's texture scaled by its intensity. Film
// grain is seeded by the frame index; vignette darkens radially; every other
// texture softens the frame once intensity passes 0.6.
func ApplyTexture(f *effects.Frame, sf timeline.StyleFrame, i int) *effects.Frame {
	k := math.Min(1, math.Max(0, sf.Intensity))
	switch sf.Texture {
	case "":
		return f
	case timeline.FilmGrain:
		return filmGrain(f, k, int64(i))
	case timeline.Vignette:
		return radialVignette(f, k)
	}
	if k > blurThreshold {
		return Blur(f, k)
	}
	return f
}

func filmGrain(f *effects.Frame, k float64, frame int64) *effects.Frame {
	if k == 0 {
		return f
	}
	rng := rand.New(rand.NewSource(grainSeed + frame))
	sd := grainStrength * k
	for i := range f.Pix {
		f.Pix[i] += float32(rng.NormFloat64() * sd)
	}
	return f.Clamp()
}

func radialVignette(f *effects.Frame, k float64) *effects.Frame {
	cx, cy := float64(f.W)/2, float64(f.H)/2
	for y := 0; y < f.H; y++ {
		dy := (float64(y) - cy) / cy
		for x := 0; x < f.W; x++ {
			dx := (float64(x) - cx) / cx
			d := math.Sqrt(dx*dx + dy*dy)
			g := float32(1 - math.Min(1, math.Pow(d, 1.5))*k)
			c := f.At(x, y)
			f.Set(x, y, [3]float32{c[0] * g, c[1] * g, c[2] * g})
		}
	}
	return f
}

// Bloom mixes in a brightened, blurred copy of f weighted by energy. It is a
// no-op when energy is not positive.
func Bloom(f *effects.Frame, energy float64) *effects.Frame {
	if energy <= 0 {
		return f
	}
	e := math.Min(1, energy)
	bright := f.Clone()
	gain := float32(1 + e*bloomGain)
	for i := range bright.Pix {
		bright.Pix[i] *= gain
	}
	glow := Blur(bright.Clamp(), bloomRadius*e)

	a := float32(bloomMixAmount * e)
	for i := range f.Pix {
		f.Pix[i] = f.Pix[i]*(1-a) + glow.Pix[i]*a
	}
	return f.Clamp()
}

// Blur returns a gaussian blur of f with standard deviation sigma pixels.
// Edges are clamped.
func Blur(f *effects.Frame, sigma float64) *effects.Frame {
	if sigma <= 0 || f.W == 0 || f.H == 0 {
		return f
	}
	kernel := gaussianKernel(sigma)
	half := len(kernel) / 2

	tmp := effects.NewFrame(f.W, f.H)
	for y := 0; y < f.H; y++ {
		for x := 0; x < f.W; x++ {
			var acc [3]float32
			for k, w := range kernel {
				c := f.At(clampInt(x+k-half, 0, f.W-1), y)
				acc[0] += c[0] * w
				acc[1] += c[1] * w
				acc[2] += c[2] * w
			}
			tmp.Set(x, y, acc)
		}
	}

	out := effects.NewFrame(f.W, f.H)
	for y := 0; y < f.H; y++ {
		for x := 0; x < f.W; x++ {
			var acc [3]float32
			for k, w := range kernel {
				c := tmp.At(x, clampInt(y+k-half, 0, f.H-1))
				acc[0] += c[0] * w
				acc[1] += c[1] * w
				acc[2] += c[2] * w
			}
			out.Set(x, y, acc)
		}
	}
	return out
}

func gaussianKernel(sigma float64) []float32 {
	half := int(math.Ceil(3 * sigma))
	kernel := make([]float32, 2*half+1)
	sum := 0.0
	for i := range kernel {
		d := float64(i - half)
		w := math.Exp(-d * d / (2 * sigma * sigma))
		kernel[i] = float32(w)
		sum += w
	}
	for i := range kernel {
		kernel[i] = float32(float64(kernel[i]) / sum)
	}
	return kernel
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
