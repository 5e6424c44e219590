package effects

import (
	"math"
	"math/rand"

	"github.com/PG-9-9/Musical-Video-Generator/pkg/timeline"
)

// RenderState is the per-segment input to an effect. Beats are in
// segment-local seconds.
type RenderState struct {
	Color  [3]float64
	Energy float64
	Beats  []float64
}

// NewRenderState builds the state for seg. Only beats inside
// [seg.Start, seg.End) are kept, shifted to segment-local time.
func NewRenderState(seg timeline.Segment, c timeline.RGB, beats []float64) *RenderState {
	return &RenderState{
		Color:  c.Unit(),
		Energy: seg.Intensity,
		Beats:  LocalBeats(beats, seg.Start, seg.End),
	}
}

// LocalBeats returns b-start for every beat b in [start, end).
func LocalBeats(beats []float64, start, end float64) []float64 {
	local := make([]float64, 0, len(beats))
	for _, b := range beats {
		if b >= start && b < end {
			local = append(local, b-start)
		}
	}
	return local
}

// Effect renders one frame at segment-local time t. Implementations must be
// deterministic in (state, t, w, h) and safe for concurrent use once built.
type Effect interface {
	Render(st *RenderState, t float64, w, h int) *Frame
}

var registry = map[timeline.Emotion]func() Effect{
	timeline.Calm:      func() Effect { return NewGradientWave() },
	timeline.Neutral:   func() Effect { return NewGradientWave() },
	timeline.Sad:       func() Effect { return NewSoftParticleDrift(80, 42) },
	timeline.Hopeful:   func() Effect { return NewExpandingRingPulse() },
	timeline.Energetic: func() Effect { return NewBeatFlash() },
	timeline.Euphoric:  func() Effect { return NewParticleExplosion(200, 1) },
	timeline.Romantic:  func() Effect { return NewSmoothOrbit() },
	timeline.Dark:      func() Effect { return NewNoiseFog(123) },
}

// For returns a fresh effect instance for e. Unknown emotions get the
// gradient wave.
func For(e timeline.Emotion) Effect {
	if build, ok := registry[e]; ok {
		return build()
	}
	return NewGradientWave()
}

// RenderFrame renders eff and applies the vignette.
func RenderFrame(eff Effect, st *RenderState, t float64, w, h int) *Frame {
	return ApplyVignette(eff.Render(st, t, w, h))
}

// GradientWave is a slow horizontal sine over a vertical ramp.
type GradientWave struct {
	Speed float64
}

func NewGradientWave() *GradientWave { return &GradientWave{Speed: 0.1} }

func (g *GradientWave) Render(st *RenderState, t float64, w, h int) *Frame {
	f := NewFrame(w, h)
	for y := 0; y < h; y++ {
		ramp := linspace(0, 1, h, y)
		for x := 0; x < w; x++ {
			phase := math.Sin(linspace(0, 2*math.Pi, w, x)*2+t*g.Speed)*0.5 + 0.5
			base := ramp*0.6 + phase*0.4
			f.AddScaled(x, y, st.Color, base*st.Energy)
		}
	}
	return f.Clamp()
}

// SoftParticleDrift draws soft round particles falling slowly down the frame.
type SoftParticleDrift struct {
	px, py, size, speed []float64
}

func NewSoftParticleDrift(n int, seed int64) *SoftParticleDrift {
	rng := rand.New(rand.NewSource(seed))
	p := &SoftParticleDrift{
		px:    make([]float64, n),
		py:    make([]float64, n),
		size:  make([]float64, n),
		speed: make([]float64, n),
	}
	for i := 0; i < n; i++ {
		p.px[i] = rng.Float64()
	}
	for i := 0; i < n; i++ {
		p.py[i] = rng.Float64()
	}
	for i := 0; i < n; i++ {
		p.size[i] = 0.01 + 0.06*rng.Float64()
	}
	for i := 0; i < n; i++ {
		p.speed[i] = 0.05 + 0.25*rng.Float64()
	}
	return p
}

func (p *SoftParticleDrift) Render(st *RenderState, t float64, w, h int) *Frame {
	f := NewFrame(w, h)
	minDim := math.Min(float64(w), float64(h))
	gain := 0.6 * 0.02 * st.Energy
	for i := range p.px {
		cx := int(math.Mod(p.px[i]+t*p.speed[i]*0.05, 1.0) * float64(w))
		cy := int(math.Mod(p.py[i]+t*p.speed[i], 1.0) * float64(h))
		r := int(p.size[i] * minDim)
		for y := max(0, cy-r); y < min(h, cy+r); y++ {
			for x := max(0, cx-r); x < min(w, cx+r); x++ {
				d := math.Hypot(float64(x-cx), float64(y-cy))
				q := d / (float64(r) + 1e-6)
				f.AddScaled(x, y, st.Color, math.Exp(-q*q)*gain)
			}
		}
	}
	return f.Clamp()
}

// ExpandingRingPulse grows a ring from the frame center at every beat.
type ExpandingRingPulse struct {
	Window float64
}

func NewExpandingRingPulse() *ExpandingRingPulse { return &ExpandingRingPulse{Window: 1.2} }

func (e *ExpandingRingPulse) Render(st *RenderState, t float64, w, h int) *Frame {
	f := NewFrame(w, h)
	cx, cy := float64(w/2), float64(h/2)
	maxDim := math.Max(float64(w), float64(h))
	for _, b := range st.Beats {
		dt := t - b
		if dt < 0 || dt > e.Window {
			continue
		}
		rr := dt * maxDim * 0.6
		width := math.Max(1.0, rr*0.12)
		amp := 0.6 * (1.0 - dt) * st.Energy
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				d := math.Hypot(float64(x)-cx, float64(y)-cy)
				ring := math.Exp(-((d - rr) * (d - rr)) / width)
				f.AddScaled(x, y, st.Color, ring*amp)
			}
		}
	}
	return f.Clamp()
}

// BeatFlash fills the frame on each beat and fades linearly.
type BeatFlash struct {
	Decay float64
}

func NewBeatFlash() *BeatFlash { return &BeatFlash{Decay: 0.35} }

func (b *BeatFlash) Render(st *RenderState, t float64, w, h int) *Frame {
	val := 0.0
	for _, beat := range st.Beats {
		dt := t - beat
		if dt >= 0 && dt < b.Decay {
			val = math.Max(val, (b.Decay-dt)/b.Decay)
		}
	}
	f := NewFrame(w, h)
	if val == 0 {
		return f
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			f.AddScaled(x, y, st.Color, val*st.Energy)
		}
	}
	return f.Clamp()
}

// ParticleExplosion sends point particles outward from the center.
type ParticleExplosion struct {
	angle, speed []float64
}

func NewParticleExplosion(n int, seed int64) *ParticleExplosion {
	rng := rand.New(rand.NewSource(seed))
	p := &ParticleExplosion{angle: make([]float64, n), speed: make([]float64, n)}
	for i := 0; i < n; i++ {
		p.angle[i] = rng.Float64() * 2 * math.Pi
	}
	for i := 0; i < n; i++ {
		p.speed[i] = 0.2 + 0.8*rng.Float64()
	}
	return p
}

func (p *ParticleExplosion) Render(st *RenderState, t float64, w, h int) *Frame {
	f := NewFrame(w, h)
	cx, cy := float64(w/2), float64(h/2)
	minDim := math.Min(float64(w), float64(h))
	for i := range p.angle {
		r := t * p.speed[i] * minDim
		x := int(cx + math.Cos(p.angle[i])*r)
		y := int(cy + math.Sin(p.angle[i])*r)
		if x < 0 || y < 0 || x >= w || y >= h {
			continue
		}
		f.AddScaled(x, y, st.Color, 0.8)
	}
	return f.Clamp()
}

// SmoothOrbit moves three points around the center on an ellipse.
type SmoothOrbit struct {
	Points int
}

func NewSmoothOrbit() *SmoothOrbit { return &SmoothOrbit{Points: 3} }

func (o *SmoothOrbit) Render(st *RenderState, t float64, w, h int) *Frame {
	f := NewFrame(w, h)
	cx, cy := float64(w/2), float64(h/2)
	c := [3]float32{
		float32(st.Color[0] * st.Energy),
		float32(st.Color[1] * st.Energy),
		float32(st.Color[2] * st.Energy),
	}
	for i := 0; i < o.Points; i++ {
		ang := t*(0.2+0.1*float64(i)) + float64(i)
		x := int(cx + math.Cos(ang)*float64(w)*0.25)
		y := int(cy + math.Sin(ang)*float64(h)*0.25)
		if x >= 0 && x < w && y >= 0 && y < h {
			f.Set(x, y, c)
		}
	}
	return f.Clamp()
}

// NoiseFog is per-pixel uniform noise tinted by the segment color. Each
// frame draws from a generator seeded by (seed, t), so frames can be
// rendered in any order.
type NoiseFog struct {
	Seed int64
}

func NewNoiseFog(seed int64) *NoiseFog { return &NoiseFog{Seed: seed} }

func (n *NoiseFog) Render(st *RenderState, t float64, w, h int) *Frame {
	rng := rand.New(rand.NewSource(n.Seed ^ int64(math.Float64bits(t))))
	f := NewFrame(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			f.AddScaled(x, y, st.Color, rng.Float64()*st.Energy)
		}
	}
	return f.Clamp()
}
