package video

import (
	"math"
	"sort"
	"strings"

	"github.com/PG-9-9/Musical-Video-Generator/pkg/audio"
	"github.com/PG-9-9/Musical-Video-Generator/pkg/effects"
	"github.com/PG-9-9/Musical-Video-Generator/pkg/timeline"
)

// palettePresets override the effect color of segments without an explicit
// color_hex. Unknown presets leave the emotion default colors in place.
var palettePresets = map[string]map[timeline.Emotion]string{
	"synthwave": {
		timeline.Calm:      "#6CC0FF",
		timeline.Sad:       "#0B0B0B",
		timeline.Hopeful:   "#FF6FA3",
		timeline.Energetic: "#FF7F11",
		timeline.Euphoric:  "#9B5DE5",
		timeline.Romantic:  "#FF6FA3",
		timeline.Dark:      "#0B0B0B",
		timeline.Neutral:   "#00FFFF",
	},
	"lofi": {
		timeline.Calm:      "#6B7280",
		timeline.Sad:       "#4B5563",
		timeline.Hopeful:   "#D6A65A",
		timeline.Energetic: "#C2410C",
		timeline.Euphoric:  "#9F7AEA",
		timeline.Romantic:  "#FCA5A5",
		timeline.Dark:      "#111827",
		timeline.Neutral:   "#9CA3AF",
	},
	"acoustic": {
		timeline.Calm:      "#7C3E19",
		timeline.Sad:       "#5B5B5B",
		timeline.Hopeful:   "#F59E0B",
		timeline.Energetic: "#D97706",
		timeline.Euphoric:  "#F472B6",
		timeline.Romantic:  "#FB7185",
		timeline.Dark:      "#2D2D2D",
		timeline.Neutral:   "#D1BFA7",
	},
	"cinematic": {
		timeline.Calm:      "#1F2937",
		timeline.Sad:       "#0F172A",
		timeline.Hopeful:   "#F59E0B",
		timeline.Energetic: "#EF4444",
		timeline.Euphoric:  "#7C3AED",
		timeline.Romantic:  "#B91C1C",
		timeline.Dark:      "#000000",
		timeline.Neutral:   "#4B5563",
	},
}

// Presets lists the known style preset names.
func Presets() []string {
	names := make([]string, 0, len(palettePresets))
	for name := range palettePresets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func normalizePreset(name string) string {
	n := strings.ToLower(strings.TrimSpace(name))
	if n == "lo-fi" {
		return "lofi"
	}
	return n
}

// EffectColor picks the color an effect draws with for seg under preset.
func EffectColor(seg timeline.Segment, preset string) timeline.RGB {
	if seg.ColorExplicit {
		return seg.Color
	}
	if colors, ok := palettePresets[normalizePreset(preset)]; ok {
		if hex, ok := colors[seg.Emotion]; ok {
			if c, err := timeline.ParseHex(hex); err == nil {
				return c
			}
		}
	}
	return seg.Color
}

// Clip is one segment rendered on its own local clock.
type Clip struct {
	Index    int
	Segment  timeline.Segment
	Start    float64
	Duration float64
	FadeIn   float64
	Effect   effects.Effect
	State    *effects.RenderState
}

// Sequence is everything needed to compose any frame independently.
type Sequence struct {
	Width, Height int
	FPS           int
	Duration      float64
	Clips         []Clip
	Style         []timeline.StyleFrame
	Beats         []float64
	Lines         []timeline.LineTiming
	// Energy is the energy curve sampled at each frame; Drift is its
	// smoothed envelope.
	Energy []float64
	Drift  []float64
	BPM    float64
}

// FrameCount is round(fps * total clip duration).
func (s *Sequence) FrameCount() int {
	return timeline.FrameCount(s.FPS, s.Duration)
}

// ClipAt returns the clip covering global time t and t in clip-local time.
func (s *Sequence) ClipAt(t float64) (*Clip, float64) {
	if len(s.Clips) == 0 {
		return nil, 0
	}
	for i := range s.Clips {
		c := &s.Clips[i]
		if t >= c.Start && t < c.Start+c.Duration {
			return c, t - c.Start
		}
	}
	last := &s.Clips[len(s.Clips)-1]
	return last, math.Min(math.Max(t-last.Start, 0), last.Duration)
}

// BuildSequence lays out one clip per segment in timeline order. Clips after
// the first fade in over crossfadeSec when it is positive.
func (vr *VideoRenderer) BuildSequence(tl *timeline.Timeline, est *audio.TempoEstimate) *Sequence {
	var beats []float64
	bpm := 0.0
	if est != nil {
		beats = est.BeatTimes
		bpm = est.BPM
	}

	seq := &Sequence{
		Width:  vr.Width,
		Height: vr.Height,
		FPS:    vr.FPS,
		Beats:  beats,
		BPM:    bpm,
	}

	start := 0.0
	for i, seg := range tl.Segments {
		clip := Clip{
			Index:    i,
			Segment:  seg,
			Start:    start,
			Duration: seg.Duration(),
			Effect:   effects.For(seg.Emotion),
			State:    effects.NewRenderState(seg, EffectColor(seg, vr.StylePreset), beats),
		}
		if i > 0 && vr.CrossfadeSec > 0 {
			clip.FadeIn = vr.CrossfadeSec
		}
		seq.Clips = append(seq.Clips, clip)
		start += clip.Duration
	}
	seq.Duration = start

	seq.Style = timeline.BuildStyleTimeline(tl, vr.FPS, seq.Duration)
	seq.Lines = timeline.LineTimings(tl)
	seq.Energy = frameEnergy(est, seq.FrameCount(), vr.FPS)
	seq.Drift = smooth(seq.Energy, 5)
	return seq
}

// frameEnergy samples the energy curve at every frame time.
func frameEnergy(est *audio.TempoEstimate, n, fps int) []float64 {
	curve := make([]float64, n)
	if est != nil && len(est.EnergyCurve) > 0 && fps > 0 {
		for i := range curve {
			curve[i] = sampleNearest(est.EnergyCurve, est.EnergyCurveTimes, float64(i)/float64(fps))
		}
	}
	return curve
}

func sampleNearest(values, times []float64, t float64) float64 {
	if len(times) != len(values) {
		return values[0]
	}
	i := sort.SearchFloat64s(times, t)
	if i >= len(values) {
		return values[len(values)-1]
	}
	if i > 0 && t-times[i-1] < times[i]-t {
		return values[i-1]
	}
	return values[i]
}

func smooth(x []float64, window int) []float64 {
	out := make([]float64, len(x))
	for i := range x {
		lo, hi := max(0, i-window), min(len(x), i+window+1)
		sum := 0.0
		for j := lo; j < hi; j++ {
			sum += x[j]
		}
		out[i] = sum / float64(max(1, hi-lo))
	}
	return out
}
