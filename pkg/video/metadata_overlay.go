package video

import (
	"fmt"
	"image"

	"github.com/fogleman/gg"

	"github.com/PG-9-9/Musical-Video-Generator/pkg/timeline"
)

// MetadataOverlay defines the positioning and styling for the header text
// drawn over each frame
type MetadataOverlay struct {
	// Positioning
	TopMargin   int    `json:"top_margin" mapstructure:"top_margin"`
	LeftMargin  int    `json:"left_margin" mapstructure:"left_margin"`
	RightMargin int    `json:"right_margin" mapstructure:"right_margin"`
	FontColor   string `json:"font_color" mapstructure:"font_color"`

	// Shadow for readability
	TextShadow   bool   `json:"text_shadow" mapstructure:"text_shadow"`
	ShadowColor  string `json:"shadow_color" mapstructure:"shadow_color"`
	ShadowOffset int    `json:"shadow_offset" mapstructure:"shadow_offset"`

	// Content
	ShowEmotion bool `json:"show_emotion" mapstructure:"show_emotion"` // left
	ShowTempo   bool `json:"show_tempo" mapstructure:"show_tempo"`     // center
	ShowBPM     bool `json:"show_bpm" mapstructure:"show_bpm"`         // right
}

// DefaultMetadataOverlay returns standard metadata overlay settings
func DefaultMetadataOverlay() *MetadataOverlay {
	return &MetadataOverlay{
		TopMargin:    20,
		LeftMargin:   20,
		RightMargin:  20,
		FontColor:    "#FFFFFF",
		TextShadow:   true,
		ShadowColor:  "#000000",
		ShadowOffset: 1,
		ShowEmotion:  true,
		ShowTempo:    true,
		ShowBPM:      true,
	}
}

// Enabled reports whether any field would be drawn.
func (m *MetadataOverlay) Enabled() bool {
	return m != nil && (m.ShowEmotion || m.ShowTempo || m.ShowBPM)
}

// TempoDescription names a BPM range. Zero means no reliable tempo.
func TempoDescription(bpm float64) string {
	switch {
	case bpm <= 0:
		return ""
	case bpm < 70:
		return "Slow"
	case bpm < 100:
		return "Moderate"
	case bpm < 130:
		return "Upbeat"
	case bpm < 160:
		return "Fast"
	default:
		return "Very Fast"
	}
}

// Texts returns the left, center and right strings for a segment.
func (m *MetadataOverlay) Texts(emotion timeline.Emotion, bpm float64) (left, center, right string) {
	if m.ShowEmotion {
		left = string(emotion)
	}
	if m.ShowTempo {
		center = TempoDescription(bpm)
	}
	if m.ShowBPM && bpm > 0 {
		right = fmt.Sprintf("%.0f BPM", bpm)
	}
	return left, center, right
}

// Draw paints the header onto img.
func (m *MetadataOverlay) Draw(img *image.RGBA, emotion timeline.Emotion, bpm float64) error {
	if !m.Enabled() {
		return nil
	}
	left, center, right := m.Texts(emotion, bpm)
	if left == "" && center == "" && right == "" {
		return nil
	}

	fg, err := timeline.ParseHex(m.FontColor)
	if err != nil {
		return fmt.Errorf("failed to parse font color: %w", err)
	}
	shadow, err := timeline.ParseHex(m.ShadowColor)
	if err != nil && m.TextShadow {
		return fmt.Errorf("failed to parse shadow color: %w", err)
	}

	dc := gg.NewContextForRGBA(img)
	w := float64(img.Bounds().Dx())
	y := float64(m.TopMargin)

	draw := func(s string, x, ax float64) {
		if s == "" {
			return
		}
		if m.TextShadow {
			off := float64(m.ShadowOffset)
			dc.SetRGB255(int(shadow.R), int(shadow.G), int(shadow.B))
			dc.DrawStringAnchored(s, x+off, y+off, ax, 1)
		}
		dc.SetRGB255(int(fg.R), int(fg.G), int(fg.B))
		dc.DrawStringAnchored(s, x, y, ax, 1)
	}

	draw(left, float64(m.LeftMargin), 0)
	draw(center, w/2, 0.5)
	draw(right, w-float64(m.RightMargin), 1)
	return nil
}
