package video

import (
	"fmt"
	"image"
	"os"
	"sync"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"

	"github.com/PG-9-9/Musical-Video-Generator/pkg/timeline"
)

// SubtitleStyle controls the karaoke bar drawn at the bottom of the frame.
type SubtitleStyle struct {
	// FontPath is an optional TTF file; empty uses the built-in bitmap face.
	FontPath  string
	FontSize  float64
	BarAlpha  int
	Highlight string
	HighAlpha int
	Padding   float64

	fontOnce sync.Once
	font     *truetype.Font
	fontErr  error
}

// DefaultSubtitleStyle returns the standard karaoke bar settings
func DefaultSubtitleStyle() *SubtitleStyle {
	return &SubtitleStyle{
		FontSize:  24,
		BarAlpha:  150,
		Highlight: "#FFD166",
		HighAlpha: 200,
		Padding:   12,
	}
}

// ActiveLine returns the line shown at t, if any.
func ActiveLine(lines []timeline.LineTiming, t float64) (timeline.LineTiming, bool) {
	for _, l := range lines {
		if t >= l.Start && t < l.Start+l.Duration {
			return l, true
		}
	}
	return timeline.LineTiming{}, false
}

// LineProgress is the fraction of the line elapsed at t, in [0,1].
func LineProgress(l timeline.LineTiming, t float64) float64 {
	if l.Duration <= 0 {
		return 1
	}
	p := (t - l.Start) / l.Duration
	switch {
	case p < 0:
		return 0
	case p > 1:
		return 1
	}
	return p
}

// Draw paints the active line at t onto img: a translucent bar, a highlight
// growing left to right with line progress, and the text in white.
func (s *SubtitleStyle) Draw(img *image.RGBA, lines []timeline.LineTiming, t float64) error {
	line, ok := ActiveLine(lines, t)
	if !ok || line.Text == "" {
		return nil
	}

	dc := gg.NewContextForRGBA(img)
	if s.FontPath != "" {
		f, err := s.loadFont()
		if err != nil {
			return err
		}
		// faces cache glyphs and are not safe to share between workers
		dc.SetFontFace(truetype.NewFace(f, &truetype.Options{Size: s.FontSize}))
	}

	w, h := float64(img.Bounds().Dx()), float64(img.Bounds().Dy())
	textW, textH := dc.MeasureString(line.Text)
	barH := textH + s.Padding
	barY := h - barH

	dc.SetRGBA255(0, 0, 0, s.BarAlpha)
	dc.DrawRectangle(0, barY, w, barH)
	dc.Fill()

	textX := (w - textW) / 2
	if hw := LineProgress(line, t) * textW; hw > 0 {
		c, err := timeline.ParseHex(s.Highlight)
		if err != nil {
			return err
		}
		dc.SetRGBA255(int(c.R), int(c.G), int(c.B), s.HighAlpha)
		dc.DrawRectangle(textX, barY+s.Padding/2, hw, textH)
		dc.Fill()
	}

	dc.SetRGB(1, 1, 1)
	dc.DrawStringAnchored(line.Text, w/2, barY+barH/2, 0.5, 0.5)
	return nil
}

// loadFont parses FontPath on first use and reuses the result.
func (s *SubtitleStyle) loadFont() (*truetype.Font, error) {
	s.fontOnce.Do(func() {
		data, err := os.ReadFile(s.FontPath)
		if err != nil {
			s.fontErr = fmt.Errorf("failed to read font: %w", err)
			return
		}
		s.font, s.fontErr = truetype.Parse(data)
	})
	return s.font, s.fontErr
}
