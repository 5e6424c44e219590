package timeline

import "math"

// Texture names the surface treatment applied after grading.
type Texture string

const (
	FilmGrain     Texture = "film_grain"
	BokehGlow     Texture = "bokeh_glow"
	LightStreaks  Texture = "light_streaks"
	ParticleFlare Texture = "particle_flare"
	Vignette      Texture = "vignette"
	GlowHalo      Texture = "glow_halo"
)

// StyleProfile holds the grading parameters for one emotion.
type StyleProfile struct {
	Name       string
	Palette    []RGB
	Contrast   float64
	MotionBlur float64
	Texture    Texture
}

var (
	calmProfile = StyleProfile{Name: "Calm", Palette: []RGB{mustHex("#1E3A8A"), mustHex("#60A5FA")}, Contrast: 0.8, MotionBlur: 0.4, Texture: FilmGrain}

	styleProfiles = map[Emotion]StyleProfile{
		Calm:      calmProfile,
		Hopeful:   {Name: "Hopeful", Palette: []RGB{mustHex("#F59E0B"), mustHex("#FDE68A")}, Contrast: 1.0, MotionBlur: 0.6, Texture: BokehGlow},
		Energetic: {Name: "Energetic", Palette: []RGB{mustHex("#EF4444"), mustHex("#FB923C")}, Contrast: 1.4, MotionBlur: 0.2, Texture: LightStreaks},
		Euphoric:  {Name: "Euphoric", Palette: []RGB{mustHex("#7C3AED"), mustHex("#EC4899")}, Contrast: 1.6, MotionBlur: 0.1, Texture: ParticleFlare},
		Sad:       {Name: "Sad", Palette: []RGB{mustHex("#4B5563"), mustHex("#9CA3AF")}, Contrast: 0.7, MotionBlur: 0.2, Texture: Vignette},
		Romantic:  {Name: "Romantic", Palette: []RGB{mustHex("#FCA5A5"), mustHex("#FB7185")}, Contrast: 1.0, MotionBlur: 0.4, Texture: GlowHalo},
	}
)

// ProfileFor returns the style profile for e. Emotions without a profile
// (dark, neutral) use Calm.
func ProfileFor(e Emotion) StyleProfile {
	if p, ok := styleProfiles[e]; ok {
		return p
	}
	return calmProfile
}

// StyleFrame is the interpolated style for one output frame.
type StyleFrame struct {
	Time         float64 `json:"time"`
	PaletteColor RGB     `json:"palette_color"`
	Contrast     float64 `json:"contrast"`
	MotionBlur   float64 `json:"motion_blur"`
	Intensity    float64 `json:"intensity"`
	Texture      Texture `json:"texture"`
}

type keyframe struct {
	t     float64
	style StyleFrame
}

// FrameCount returns round(fps*duration), never negative.
func FrameCount(fps int, duration float64) int {
	n := int(math.Round(float64(fps) * duration))
	if n < 0 {
		return 0
	}
	return n
}

// BuildStyleTimeline produces one style vector per frame at time i/fps.
// Keyframes sit at each segment start; the vector between two keyframes is
// linearly interpolated and palette channels are truncated to integers.
// Texture is held from the left keyframe. A frame exactly on a keyframe takes
// that keyframe's vector.
func BuildStyleTimeline(tl *Timeline, fps int, duration float64) []StyleFrame {
	count := FrameCount(fps, duration)
	frames := make([]StyleFrame, count)
	if count == 0 || fps <= 0 {
		return frames
	}

	keys := keyframes(tl, duration)
	for i := range frames {
		t := float64(i) / float64(fps)
		frames[i] = styleAt(keys, t)
		frames[i].Time = t
	}
	return frames
}

func keyframes(tl *Timeline, duration float64) []keyframe {
	segs := []Segment{{Start: 0, End: duration, Emotion: Calm, Intensity: 0.2}}
	if tl != nil && len(tl.Segments) > 0 {
		segs = tl.Segments
	}

	keys := make([]keyframe, 0, len(segs)+1)
	for _, s := range segs {
		p := ProfileFor(s.Emotion)
		color := p.Palette[0]
		if s.ColorExplicit {
			color = s.Color
		}
		keys = append(keys, keyframe{t: s.Start, style: StyleFrame{
			PaletteColor: color,
			Contrast:     p.Contrast,
			MotionBlur:   p.MotionBlur,
			Intensity:    s.Intensity,
			Texture:      p.Texture,
		}})
	}
	if segs[len(segs)-1].End < duration {
		keys = append(keys, keyframe{t: duration, style: keys[len(keys)-1].style})
	}
	return keys
}

func styleAt(keys []keyframe, t float64) StyleFrame {
	for k := 0; k+1 < len(keys); k++ {
		t0, t1 := keys[k].t, keys[k+1].t
		if t < t0 || t >= t1 {
			continue
		}
		alpha := 0.0
		if t1 != t0 {
			alpha = (t - t0) / (t1 - t0)
		}
		v0, v1 := keys[k].style, keys[k+1].style
		return StyleFrame{
			PaletteColor: RGB{
				R: lerpChannel(v0.PaletteColor.R, v1.PaletteColor.R, alpha),
				G: lerpChannel(v0.PaletteColor.G, v1.PaletteColor.G, alpha),
				B: lerpChannel(v0.PaletteColor.B, v1.PaletteColor.B, alpha),
			},
			Contrast:   lerp(v0.Contrast, v1.Contrast, alpha),
			MotionBlur: lerp(v0.MotionBlur, v1.MotionBlur, alpha),
			Intensity:  lerp(v0.Intensity, v1.Intensity, alpha),
			Texture:    v0.Texture,
		}
	}
	return keys[len(keys)-1].style
}

func lerp(a, b, alpha float64) float64 { return a + (b-a)*alpha }

func lerpChannel(a, b uint8, alpha float64) uint8 {
	return uint8(int(lerp(float64(a), float64(b), alpha)))
}
