package timeline

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/goccy/go-json"
)

// EventKind tags a TimelineEvent.
type EventKind string

const (
	EventScene EventKind = "scene"
	EventBeat  EventKind = "beat"
	EventWord  EventKind = "word"
)

// Event is a diagnostic record of one timing decision.
type Event struct {
	Kind    EventKind `json:"type"`
	Time    float64   `json:"t"`
	Segment int       `json:"segment"`
	Emotion Emotion   `json:"emotion,omitempty"`
	Word    string    `json:"word,omitempty"`
}

// LineTiming is the slot given to one lyric line.
type LineTiming struct {
	Text     string  `json:"text"`
	Start    float64 `json:"start"`
	Duration float64 `json:"duration"`
	Segment  int     `json:"segment"`
}

// WordTiming is the slot given to one word of a line.
type WordTiming struct {
	Word     string  `json:"word"`
	Start    float64 `json:"start"`
	Duration float64 `json:"duration"`
	Segment  int     `json:"segment"`
}

func round6(v float64) float64 { return math.Round(v*1e6) / 1e6 }

// LineTimings divides each segment's duration evenly across its lines.
// Segments without lines contribute nothing.
func LineTimings(tl *Timeline) []LineTiming {
	var out []LineTiming
	for si, s := range tl.Segments {
		if len(s.Lines) == 0 {
			continue
		}
		per := s.Duration() / float64(len(s.Lines))
		for i, line := range s.Lines {
			out = append(out, LineTiming{
				Text:     line,
				Start:    round6(s.Start + float64(i)*per),
				Duration: round6(per),
				Segment:  si,
			})
		}
	}
	return out
}

// WordTimings subdivides each line's slot evenly across its words.
func WordTimings(lines []LineTiming) []WordTiming {
	var out []WordTiming
	for _, l := range lines {
		words := strings.Fields(l.Text)
		if len(words) == 0 {
			continue
		}
		per := l.Duration / float64(len(words))
		for i, w := range words {
			out = append(out, WordTiming{
				Word:     w,
				Start:    round6(l.Start + float64(i)*per),
				Duration: round6(per),
				Segment:  l.Segment,
			})
		}
	}
	return out
}

// BuildEvents merges scene starts, beats and word starts into one list
// ordered by time. Ties keep scene, beat, word order.
func BuildEvents(tl *Timeline, beats []float64) []Event {
	events := make([]Event, 0, len(tl.Segments)+len(beats))
	for i, s := range tl.Segments {
		events = append(events, Event{Kind: EventScene, Time: s.Start, Segment: i, Emotion: s.Emotion})
	}
	for _, b := range beats {
		events = append(events, Event{Kind: EventBeat, Time: b, Segment: tl.SegmentAt(b)})
	}
	for _, w := range WordTimings(LineTimings(tl)) {
		events = append(events, Event{Kind: EventWord, Time: w.Start, Segment: w.Segment, Word: w.Word})
	}
	sort.SliceStable(events, func(i, j int) bool { return events[i].Time < events[j].Time })
	return events
}

// WriteEvents writes {"events": [...]} as indented JSON.
func WriteEvents(path string, events []Event) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create events directory: %w", err)
	}
	data, err := json.MarshalIndent(map[string][]Event{"events": events}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal events: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write events: %w", err)
	}
	return nil
}
