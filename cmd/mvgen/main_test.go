package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goccy/go-json"
)

const cliTimeline = `duration_sec: 6
segments:
  - {start_sec: 0, end_sec: 2, emotion: calm, lines: ["hello there"]}
  - {start_sec: 2, end_sec: 4, emotion: hopeful}
  - {start_sec: 4, end_sec: 6, emotion: energetic}
`

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestEventsCommand(t *testing.T) {
	dir := t.TempDir()
	tlPath := filepath.Join(dir, "timeline.yaml")
	if err := os.WriteFile(tlPath, []byte(cliTimeline), 0644); err != nil {
		t.Fatal(err)
	}

	out, err := runCLI(t, "events", tlPath)
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	var doc struct {
		Events []struct {
			Type string  `json:"type"`
			T    float64 `json:"t"`
		} `json:"events"`
	}
	if err := json.Unmarshal([]byte(out), &doc); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	scenes, words := 0, 0
	for _, e := range doc.Events {
		switch e.Type {
		case "scene":
			scenes++
		case "word":
			words++
		}
	}
	if scenes != 3 || words != 2 {
		t.Errorf("scenes = %d, words = %d; want 3 and 2", scenes, words)
	}
}

func TestEventsCommandWritesFile(t *testing.T) {
	dir := t.TempDir()
	tlPath := filepath.Join(dir, "timeline.yaml")
	os.WriteFile(tlPath, []byte(cliTimeline), 0644)
	outPath := filepath.Join(dir, "out", "events.json")

	if _, err := runCLI(t, "events", tlPath, "--out", outPath); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"events"`) {
		t.Errorf("events file = %s", data)
	}
}

func TestCommandErrors(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.yaml")
	os.WriteFile(bad, []byte("duration_sec: 2\nsegments:\n  - {start_sec: 0, end_sec: 2, emotion: calm}\n"), 0644)

	tests := []struct {
		name string
		args []string
	}{
		{"missing args", []string{"render", "only-one.wav"}},
		{"invalid timeline", []string{"events", bad}},
		{"missing audio", []string{"analyze", filepath.Join(dir, "nope.wav")}},
		{"unknown command", []string{"play"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := runCLI(t, tt.args...); err == nil {
				t.Error("expected an error")
			}
		})
	}
}
