package timeline

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
	"github.com/goccy/go-yaml"
)

// RawTimeline is the external timeline document before validation.
type RawTimeline struct {
	Segments    []RawSegment `json:"segments" yaml:"segments"`
	DurationSec float64      `json:"duration_sec" yaml:"duration_sec" validate:"gt=0"`
}

// RawSegment mirrors one segment of the external document. Intensity is a
// pointer so an absent value can default to 0.5.
type RawSegment struct {
	StartSec   float64    `json:"start_sec" yaml:"start_sec" validate:"gte=0"`
	EndSec     float64    `json:"end_sec" yaml:"end_sec" validate:"gtfield=StartSec"`
	Emotion    string     `json:"emotion" yaml:"emotion"`
	Intensity  *float64   `json:"intensity,omitempty" yaml:"intensity,omitempty"`
	ColorHex   string     `json:"color_hex,omitempty" yaml:"color_hex,omitempty"`
	Keywords   StringList `json:"keywords,omitempty" yaml:"keywords,omitempty"`
	Lines      StringList `json:"lines,omitempty" yaml:"lines,omitempty"`
	VisualHint string     `json:"visual_hint,omitempty" yaml:"visual_hint,omitempty"`
}

// StringList accepts either a list of strings or a single string, which is
// split on line breaks.
type StringList []string

func (l *StringList) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*l = list
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("expected string or list of strings: %w", err)
	}
	*l = splitLines(s)
	return nil
}

func (l *StringList) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var list []string
	if err := unmarshal(&list); err == nil {
		*l = list
		return nil
	}
	var s string
	if err := unmarshal(&s); err != nil {
		return fmt.Errorf("expected string or list of strings: %w", err)
	}
	*l = splitLines(s)
	return nil
}

func splitLines(s string) []string {
	var out []string
	for _, ln := range strings.Split(s, "\n") {
		if ln = strings.TrimSpace(ln); ln != "" {
			out = append(out, ln)
		}
	}
	return out
}

// Format selects the document codec.
type Format int

const (
	FormatJSON Format = iota
	FormatYAML
)

// FormatFor picks YAML for .yaml/.yml paths and JSON otherwise.
func FormatFor(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	}
	return FormatJSON
}

// Decode parses a raw timeline document.
func Decode(data []byte, format Format) (*RawTimeline, error) {
	var raw RawTimeline
	var err error
	switch format {
	case FormatYAML:
		err = yaml.Unmarshal(data, &raw)
	default:
		err = json.Unmarshal(data, &raw)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse timeline: %w", err)
	}
	return &raw, nil
}

// LoadFile reads, validates and smooths a timeline document.
func LoadFile(path string, opts BuildOptions) (*Timeline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read timeline: %w", err)
	}
	raw, err := Decode(data, FormatFor(path))
	if err != nil {
		return nil, err
	}
	return New(raw, opts)
}

// WriteJSON writes the normalized timeline.
func (t *Timeline) WriteJSON(path string) error {
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal timeline: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write timeline: %w", err)
	}
	return nil
}
