package video

import (
	"image"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/image/font/gofont/goregular"

	"github.com/PG-9-9/Musical-Video-Generator/pkg/effects"
	"github.com/PG-9-9/Musical-Video-Generator/pkg/timeline"
)

func filled(w, h int, v float32) *effects.Frame {
	f := effects.NewFrame(w, h)
	for i := range f.Pix {
		f.Pix[i] = v
	}
	return f
}

func near(a, b float32) bool { return math.Abs(float64(a-b)) < 1e-5 }

func TestFadeIn(t *testing.T) {
	tests := []struct {
		local, fade float64
		want        float32
	}{
		{0, 0.5, 0},
		{0.25, 0.5, 0.5},
		{0.5, 0.5, 1},
		{0.1, 0, 1},
	}
	for _, tt := range tests {
		f := FadeIn(filled(2, 2, 1), tt.local, tt.fade)
		if got := f.At(1, 1)[0]; !near(got, tt.want) {
			t.Errorf("FadeIn(local=%v, fade=%v) = %v, want %v", tt.local, tt.fade, got, tt.want)
		}
	}
}

func TestGrade(t *testing.T) {
	red := timeline.RGB{R: 255}

	same := Grade(filled(2, 2, 0.4), timeline.StyleFrame{PaletteColor: red, Contrast: 1.3, Intensity: 0})
	if got := same.At(0, 0); !near(got[0], 0.4) || !near(got[2], 0.4) {
		t.Errorf("uniform frame at zero intensity = %v, want unchanged", got)
	}

	tinted := Grade(filled(2, 2, 0), timeline.StyleFrame{PaletteColor: red, Contrast: 1, Intensity: 1})
	if got := tinted.At(0, 0); !near(got[0], 0.35) || got[1] != 0 {
		t.Errorf("tinted = %v, want red at 0.35", got)
	}

	f := effects.NewFrame(2, 1)
	f.Set(0, 0, [3]float32{0.2, 0.2, 0.2})
	f.Set(1, 0, [3]float32{0.6, 0.6, 0.6})
	Grade(f, timeline.StyleFrame{PaletteColor: red, Contrast: 2, Intensity: 0})
	if lo, hi := f.At(0, 0)[1], f.At(1, 0)[1]; !near(lo, 0) || !near(hi, 0.8) {
		t.Errorf("contrast 2 around 0.4 gave %v and %v, want 0 and 0.8", lo, hi)
	}
}

func TestDriftOffset(t *testing.T) {
	if dx, dy := DriftOffset(17, 0); dx != 0 || dy != 0 {
		t.Errorf("zero energy drift = (%d,%d)", dx, dy)
	}
	if dx, dy := DriftOffset(0, 1); dx != 2 || dy != 3 {
		t.Errorf("frame 0 full energy = (%d,%d), want (2,3)", dx, dy)
	}
	for i := 0; i < 200; i++ {
		dx, dy := DriftOffset(i, 1)
		if dx < 0 || dx > 3 || dy < 0 || dy > 3 {
			t.Fatalf("frame %d drift (%d,%d) outside [0,3]", i, dx, dy)
		}
	}
}

func TestTranslate(t *testing.T) {
	f := effects.NewFrame(3, 3)
	f.Set(0, 0, [3]float32{1, 1, 1})
	out := Translate(f, 1, 2)
	if out.At(1, 2) != [3]float32{1, 1, 1} {
		t.Error("pixel did not move to (1,2)")
	}
	if out.At(0, 0) != [3]float32{} {
		t.Error("uncovered area should be black")
	}
}

func TestSceneTint(t *testing.T) {
	f := SceneTint(effects.NewFrame(1, 1), timeline.RGB{R: 255, G: 255, B: 255})
	if got := f.At(0, 0)[0]; !near(got, 0.08) {
		t.Errorf("tint = %v, want 0.08", got)
	}
}

func TestEffectColor(t *testing.T) {
	seg := timeline.Segment{Emotion: timeline.Calm, Color: timeline.Calm.DefaultColor()}
	tests := []struct {
		name   string
		seg    timeline.Segment
		preset string
		want   string
	}{
		{"synthwave calm", seg, "synthwave", "#6CC0FF"},
		{"lofi alias", seg, "Lo-Fi", "#6B7280"},
		{"cinematic", seg, "cinematic", "#1F2937"},
		{"unknown preset", seg, "default", seg.Color.Hex()},
		{"explicit color wins", timeline.Segment{Emotion: timeline.Calm, Color: timeline.RGB{R: 1, G: 2, B: 3}, ColorExplicit: true}, "synthwave", "#010203"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EffectColor(tt.seg, tt.preset).Hex(); got != tt.want {
				t.Errorf("EffectColor = %s, want %s", got, tt.want)
			}
		})
	}
	if got := Presets(); len(got) != 4 || got[0] != "acoustic" {
		t.Errorf("Presets = %v", got)
	}
}

func TestSmoothAndSample(t *testing.T) {
	got := smooth([]float64{0, 0, 0, 0, 0, 11, 0, 0, 0, 0, 0}, 5)
	if got[5] != 1 {
		t.Errorf("center = %v, want 1", got[5])
	}
	if math.Abs(got[0]-11.0/6) > 1e-9 {
		t.Errorf("edge = %v, want 11/6", got[0])
	}

	values, times := []float64{1, 2, 3}, []float64{0, 1, 2}
	for _, tt := range []struct{ t, want float64 }{{0.2, 1}, {0.8, 2}, {1.6, 3}, {9, 3}} {
		if v := sampleNearest(values, times, tt.t); v != tt.want {
			t.Errorf("sampleNearest(%v) = %v, want %v", tt.t, v, tt.want)
		}
	}
}

func TestActiveLineAndProgress(t *testing.T) {
	lines := []timeline.LineTiming{{Text: "a", Start: 0, Duration: 2}, {Text: "b", Start: 2, Duration: 1}}
	if l, ok := ActiveLine(lines, 2.5); !ok || l.Text != "b" {
		t.Errorf("ActiveLine(2.5) = %+v, %t", l, ok)
	}
	if _, ok := ActiveLine(lines, 3); ok {
		t.Error("no line should be active at 3")
	}
	if p := LineProgress(lines[0], 0.5); p != 0.25 {
		t.Errorf("progress = %v, want 0.25", p)
	}
	if p := LineProgress(lines[1], 9); p != 1 {
		t.Errorf("progress past end = %v, want 1", p)
	}
}

func TestSubtitleDraw(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 200, 60))
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 255
	}
	lines := []timeline.LineTiming{{Text: "hello world", Start: 0, Duration: 2}}
	if err := DefaultSubtitleStyle().Draw(img, lines, 1.5); err != nil {
		t.Fatal(err)
	}
	if img.RGBAAt(100, 0) != (color.RGBA{A: 255}) {
		t.Error("top row should be untouched")
	}
	lit := false
	for y := 30; y < 60 && !lit; y++ {
		for x := 0; x < 200; x++ {
			if img.RGBAAt(x, y).R > 0 {
				lit = true
				break
			}
		}
	}
	if !lit {
		t.Error("no subtitle pixels drawn in the bottom half")
	}
}

func TestSubtitleFontLoadedOnce(t *testing.T) {
	fontPath := filepath.Join(t.TempDir(), "regular.ttf")
	if err := os.WriteFile(fontPath, goregular.TTF, 0644); err != nil {
		t.Fatal(err)
	}
	style := DefaultSubtitleStyle()
	style.FontPath = fontPath
	lines := []timeline.LineTiming{{Text: "hello", Start: 0, Duration: 2}}

	if err := style.Draw(image.NewRGBA(image.Rect(0, 0, 200, 60)), lines, 0.5); err != nil {
		t.Fatal(err)
	}
	// later frames reuse the parsed font
	os.Remove(fontPath)
	if err := style.Draw(image.NewRGBA(image.Rect(0, 0, 200, 60)), lines, 1.5); err != nil {
		t.Errorf("second frame reloaded the font: %v", err)
	}

	missing := DefaultSubtitleStyle()
	missing.FontPath = fontPath
	if err := missing.Draw(image.NewRGBA(image.Rect(0, 0, 200, 60)), lines, 0.5); err == nil {
		t.Error("expected an error for a missing font")
	}
}

func TestMetadataOverlay(t *testing.T) {
	m := DefaultMetadataOverlay()
	left, center, right := m.Texts(timeline.Euphoric, 128.4)
	if left != "euphoric" || center != "Upbeat" || right != "128 BPM" {
		t.Errorf("Texts = %q %q %q", left, center, right)
	}
	if _, _, right := m.Texts(timeline.Calm, 0); right != "" {
		t.Errorf("zero BPM should hide the right text, got %q", right)
	}
	if (&MetadataOverlay{}).Enabled() {
		t.Error("empty overlay should be disabled")
	}
	img := image.NewRGBA(image.Rect(0, 0, 160, 40))
	if err := m.Draw(img, timeline.Calm, 90); err != nil {
		t.Fatal(err)
	}
}
