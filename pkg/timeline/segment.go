package timeline

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/PG-9-9/Musical-Video-Generator/pkg/audio"
)

// Segment count limits and boundary tolerance.
const (
	MinSegments  = 3
	MaxSegments  = 5
	MaxKeywords  = 6
	MaxDelta     = 0.4
	boundaryEps  = 1e-6
	defaultLevel = 0.5
)

// ErrTimelineValidation matches every TimelineError via errors.Is.
var ErrTimelineValidation = errors.New("timeline validation failed")

// TimelineError describes why a raw timeline was rejected. Index is -1 for
// timeline-wide problems.
type TimelineError struct {
	Index  int
	Reason string
}

func (e *TimelineError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("invalid timeline: %s", e.Reason)
	}
	return fmt.Sprintf("invalid timeline: segment %d: %s", e.Index, e.Reason)
}

func (e *TimelineError) Is(target error) bool { return target == ErrTimelineValidation }

// RGB is an 8-bit color.
type RGB struct {
	R, G, B uint8
}

// ParseHex parses #RRGGBB or #RGB (leading # optional).
func ParseHex(s string) (RGB, error) {
	h := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(h) == 3 {
		h = string([]byte{h[0], h[0], h[1], h[1], h[2], h[2]})
	}
	if len(h) != 6 {
		return RGB{}, fmt.Errorf("invalid color %q", s)
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return RGB{}, fmt.Errorf("invalid color %q: %w", s, err)
	}
	return RGB{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v)}, nil
}

func mustHex(s string) RGB {
	c, err := ParseHex(s)
	if err != nil {
		panic(err)
	}
	return c
}

// Hex formats the color as #RRGGBB
func (c RGB) Hex() string {
	return fmt.Sprintf("#%02X%02X%02X", c.R, c.G, c.B)
}

// Unit returns the channels scaled to [0,1].
func (c RGB) Unit() [3]float64 {
	return [3]float64{float64(c.R) / 255, float64(c.G) / 255, float64(c.B) / 255}
}

func (c RGB) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(c.Hex())), nil
}

func (c *RGB) UnmarshalJSON(data []byte) error {
	s, err := strconv.Unquote(string(data))
	if err != nil {
		return fmt.Errorf("color must be a string: %w", err)
	}
	parsed, err := ParseHex(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Segment is one validated emotional section of the timeline.
type Segment struct {
	Start         float64  `json:"start_sec"`
	End           float64  `json:"end_sec"`
	Emotion       Emotion  `json:"emotion"`
	Intensity     float64  `json:"intensity"`
	Color         RGB      `json:"color_hex"`
	ColorExplicit bool     `json:"color_explicit"`
	Keywords      []string `json:"keywords"`
	Lines         []string `json:"lines"`
	VisualHint    string   `json:"visual_hint,omitempty"`
	Verified      bool     `json:"verified"`
	Energy        float64  `json:"energy"`
}

// Duration returns End - Start.
func (s Segment) Duration() float64 { return s.End - s.Start }

// Timeline is an ordered, contiguous run of segments covering [0, Duration].
type Timeline struct {
	Segments []Segment `json:"segments"`
	Duration float64   `json:"duration_sec"`
}

// BuildOptions tunes New.
type BuildOptions struct {
	// VerifyEmotions re-classifies each segment's lines and lowers the
	// intensity by 0.2 when the keyword classifier disagrees with the label.
	VerifyEmotions bool
}

var validate = validator.New()

// New validates raw, normalizes every segment, and runs one intensity
// smoothing pass.
func New(raw *RawTimeline, opts BuildOptions) (*Timeline, error) {
	if raw == nil {
		return nil, &TimelineError{Index: -1, Reason: "no timeline"}
	}
	if err := check(raw); err != nil {
		return nil, err
	}

	tl := &Timeline{Duration: raw.DurationSec, Segments: make([]Segment, len(raw.Segments))}
	for i, rs := range raw.Segments {
		tl.Segments[i] = normalize(rs)
	}
	if opts.VerifyEmotions {
		verifyEmotions(tl.Segments)
	}
	SmoothIntensities(tl.Segments)
	return tl, nil
}

func check(raw *RawTimeline) error {
	n := len(raw.Segments)
	if n < MinSegments || n > MaxSegments {
		return &TimelineError{Index: -1, Reason: fmt.Sprintf("got %d segments, want %d to %d", n, MinSegments, MaxSegments)}
	}
	if err := validate.Struct(raw); err != nil {
		return &TimelineError{Index: -1, Reason: fieldReason(err)}
	}

	for i, seg := range raw.Segments {
		if err := validate.Struct(seg); err != nil {
			return &TimelineError{Index: i, Reason: fieldReason(err)}
		}
		if i == 0 && math.Abs(seg.StartSec) > boundaryEps {
			return &TimelineError{Index: i, Reason: fmt.Sprintf("first segment starts at %.6f, want 0", seg.StartSec)}
		}
		if i > 0 {
			prev := raw.Segments[i-1]
			if seg.StartSec < prev.StartSec {
				return &TimelineError{Index: i, Reason: "segments are not ordered by start time"}
			}
			if math.Abs(seg.StartSec-prev.EndSec) > boundaryEps {
				return &TimelineError{Index: i, Reason: fmt.Sprintf("starts at %.6f but previous segment ends at %.6f", seg.StartSec, prev.EndSec)}
			}
		}
	}

	last := raw.Segments[n-1]
	if math.Abs(last.EndSec-raw.DurationSec) > boundaryEps {
		return &TimelineError{Index: n - 1, Reason: fmt.Sprintf("ends at %.6f but timeline lasts %.6f", last.EndSec, raw.DurationSec)}
	}
	return nil
}

func fieldReason(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		if fe.Param() != "" {
			return fmt.Sprintf("%s failed %s=%s", fe.Field(), fe.Tag(), fe.Param())
		}
		return fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag())
	}
	return err.Error()
}

func normalize(rs RawSegment) Segment {
	lines := cleanList(rs.Lines)

	emotion, ok := ParseEmotion(rs.Emotion)
	if !ok {
		emotion = ClassifyText(strings.Join(lines, " "))
	}

	intensity := defaultLevel
	if rs.Intensity != nil {
		intensity = *rs.Intensity
	}

	color, explicit := emotion.DefaultColor(), false
	if rs.ColorHex != "" {
		if c, err := ParseHex(rs.ColorHex); err == nil {
			color, explicit = c, true
		}
	}

	keywords := cleanList(rs.Keywords)
	if len(keywords) == 1 && strings.Contains(keywords[0], ",") {
		keywords = cleanList(strings.Split(keywords[0], ","))
	}
	if len(keywords) > MaxKeywords {
		keywords = keywords[:MaxKeywords]
	}

	return Segment{
		Start:         rs.StartSec,
		End:           rs.EndSec,
		Emotion:       emotion,
		Intensity:     clamp01(intensity),
		Color:         color,
		ColorExplicit: explicit,
		Keywords:      keywords,
		Lines:         lines,
		VisualHint:    strings.TrimSpace(rs.VisualHint),
		Verified:      true,
	}
}

func cleanList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return defaultLevel
	}
	return math.Max(0, math.Min(1, v))
}

func verifyEmotions(segs []Segment) {
	for i := range segs {
		if ClassifyText(strings.Join(segs[i].Lines, " ")) != segs[i].Emotion {
			segs[i].Verified = false
			segs[i].Intensity = math.Max(0, segs[i].Intensity-0.2)
		}
	}
}

// SmoothIntensities makes a single left-to-right pass: whenever neighbours
// i-1 and i differ by more than MaxDelta both become their average, rounded
// to 3 decimals. The pass is not repeated, so a later pair may still differ
// by more than MaxDelta after an earlier pair was averaged.
func SmoothIntensities(segs []Segment) {
	for i := 1; i < len(segs); i++ {
		prev, cur := segs[i-1].Intensity, segs[i].Intensity
		if math.Abs(prev-cur) > MaxDelta {
			avg := math.Round((prev+cur)/2*1000) / 1000
			segs[i-1].Intensity = avg
			segs[i].Intensity = avg
		}
	}
}

// Spans returns the segment ranges for per-segment energy analysis.
func (t *Timeline) Spans() []audio.Span {
	spans := make([]audio.Span, len(t.Segments))
	for i, s := range t.Segments {
		spans[i] = audio.Span{Start: s.Start, End: s.End}
	}
	return spans
}

// WithEnergy returns a copy of the timeline carrying per-segment energy.
// Missing values leave the segment energy at 0.
func (t *Timeline) WithEnergy(values []float64) *Timeline {
	out := &Timeline{Duration: t.Duration, Segments: make([]Segment, len(t.Segments))}
	copy(out.Segments, t.Segments)
	for i := range out.Segments {
		out.Segments[i].Energy = 0
		if i < len(values) {
			out.Segments[i].Energy = values[i]
		}
	}
	return out
}

// SegmentAt returns the index of the segment containing t, treating
// segments as [start, end). Times at or past the end map to the last
// segment; -1 is returned only for an empty timeline or negative t.
func (t *Timeline) SegmentAt(sec float64) int {
	if len(t.Segments) == 0 || sec < 0 {
		return -1
	}
	for i, s := range t.Segments {
		if sec >= s.Start && sec < s.End {
			return i
		}
	}
	return len(t.Segments) - 1
}
