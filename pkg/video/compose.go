package video

import (
	"math"

	"github.com/PG-9-9/Musical-Video-Generator/pkg/effects"
	"github.com/PG-9-9/Musical-Video-Generator/pkg/timeline"
)

const (
	sceneTintAmount = 0.08
	pulseLength     = 0.9
	gradeTintScale  = 0.35
	driftPixels     = 3.0
)

var pulseEffect = effects.NewExpandingRingPulse()

var pulseState = &effects.RenderState{Color: [3]float64{1, 1, 1}, Energy: 1, Beats: []float64{0}}

// FadeIn scales f towards black while local < fade.
func FadeIn(f *effects.Frame, local, fade float64) *effects.Frame {
	if fade <= 0 || local >= fade {
		return f
	}
	k := float32(math.Max(0, local/fade))
	for i := range f.Pix {
		f.Pix[i] *= k
	}
	return f
}

// Grade applies the style contrast around the frame's mean luminance, then
// tints towards the palette color by intensity*0.35.
func Grade(f *effects.Frame, sf timeline.StyleFrame) *effects.Frame {
	n := f.W * f.H
	if n == 0 {
		return f
	}
	mean := 0.0
	for i := 0; i < len(f.Pix); i += 3 {
		mean += 0.299*float64(f.Pix[i]) + 0.587*float64(f.Pix[i+1]) + 0.114*float64(f.Pix[i+2])
	}
	mean /= float64(n)

	tint := sf.PaletteColor.Unit()
	a := math.Min(1, math.Max(0, sf.Intensity*gradeTintScale))
	for i := range f.Pix {
		v := mean + (float64(f.Pix[i])-mean)*sf.Contrast
		v = math.Min(1, math.Max(0, v))
		f.Pix[i] = float32(v*(1-a) + tint[i%3]*a)
	}
	return f
}

// DriftOffset is the energy-driven camera offset for global frame i.
func DriftOffset(i int, env float64) (dx, dy int) {
	dx = int(math.Round((math.Sin(float64(i)*0.1)*0.5 + 0.5) * driftPixels * env))
	dy = int(math.Round((math.Cos(float64(i)*0.07)*0.5 + 0.5) * driftPixels * env))
	return dx, dy
}

// Translate shifts f by (dx, dy) and fills the uncovered area with black.
func Translate(f *effects.Frame, dx, dy int) *effects.Frame {
	if dx == 0 && dy == 0 {
		return f
	}
	out := effects.NewFrame(f.W, f.H)
	for y := 0; y < f.H; y++ {
		sy := y - dy
		if sy < 0 || sy >= f.H {
			continue
		}
		for x := 0; x < f.W; x++ {
			sx := x - dx
			if sx < 0 || sx >= f.W {
				continue
			}
			out.Set(x, y, f.At(sx, sy))
		}
	}
	return out
}

// SceneTint blends f towards c by a fixed small amount.
func SceneTint(f *effects.Frame, c timeline.RGB) *effects.Frame {
	u := c.Unit()
	for i := range f.Pix {
		f.Pix[i] = float32(float64(f.Pix[i])*(1-sceneTintAmount) + u[i%3]*sceneTintAmount)
	}
	return f
}

// PulseOverlay renders the white ring pulses for every beat b with
// t in [b, b+0.9). The frame is black when no pulse is active.
func PulseOverlay(beats []float64, t float64, w, h int) *effects.Frame {
	out := effects.NewFrame(w, h)
	for _, b := range beats {
		dt := t - b
		if dt < 0 || dt >= pulseLength {
			continue
		}
		ring := pulseEffect.Render(pulseState, dt, w, h)
		for i, v := range ring.Pix {
			out.Pix[i] += v
		}
	}
	return out.Clamp()
}

// AddPulses blends the pulse overlay into f additively.
func AddPulses(f *effects.Frame, beats []float64, t float64) *effects.Frame {
	p := PulseOverlay(beats, t, f.W, f.H)
	for i, v := range p.Pix {
		f.Pix[i] += v
	}
	return f.Clamp()
}
