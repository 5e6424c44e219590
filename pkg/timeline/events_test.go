package timeline

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLineTimings(t *testing.T) {
	tl := scenarioTimeline(t)
	lines := LineTimings(tl)
	if len(lines) != 4 {
		t.Fatalf("got %d lines, want 4", len(lines))
	}
	want := []LineTiming{
		{Text: "quiet morning light", Start: 0, Duration: 2, Segment: 0},
		{Text: "we dream of more", Start: 2, Duration: 1, Segment: 1},
		{Text: "just wait", Start: 3, Duration: 1, Segment: 1},
		{Text: "run run run", Start: 4, Duration: 2, Segment: 2},
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d = %+v, want %+v", i, lines[i], want[i])
		}
	}
}

func TestWordTimings(t *testing.T) {
	words := WordTimings([]LineTiming{{Text: "one two  three", Start: 1, Duration: 3, Segment: 2}})
	if len(words) != 3 {
		t.Fatalf("got %d words, want 3", len(words))
	}
	for i, w := range words {
		if w.Start != float64(1+i) || w.Duration != 1 || w.Segment != 2 {
			t.Errorf("word %d = %+v", i, w)
		}
	}
}

func TestBuildEvents(t *testing.T) {
	tl := scenarioTimeline(t)
	events := BuildEvents(tl, []float64{0, 2.5, 4})

	counts := map[EventKind]int{}
	for i, e := range events {
		counts[e.Kind]++
		if i > 0 && e.Time < events[i-1].Time {
			t.Errorf("event %d at %f precedes previous at %f", i, e.Time, events[i-1].Time)
		}
	}
	if counts[EventScene] != 3 || counts[EventBeat] != 3 {
		t.Errorf("counts = %v, want 3 scenes and 3 beats", counts)
	}
	if counts[EventWord] != 12 {
		t.Errorf("got %d word events, want 12", counts[EventWord])
	}

	// scene, beat and word all land on t=0; insertion order breaks the tie
	if events[0].Kind != EventScene || events[1].Kind != EventBeat || events[2].Kind != EventWord {
		t.Errorf("tie order = %s, %s, %s", events[0].Kind, events[1].Kind, events[2].Kind)
	}
	for _, e := range events {
		if e.Kind == EventBeat && e.Time == 2.5 && e.Segment != 1 {
			t.Errorf("beat at 2.5 assigned to segment %d, want 1", e.Segment)
		}
	}
}

func TestWriteEvents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "events.json")
	if err := WriteEvents(path, BuildEvents(scenarioTimeline(t), nil)); err != nil {
		t.Fatalf("WriteEvents returned error: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"type": "scene"`) {
		t.Errorf("events file missing scene entries:\n%s", data)
	}
}
