package services

import (
	"strings"
	"testing"

	"github.com/PG-9-9/Musical-Video-Generator/internal/models"
)

func TestBroadcastReachesSubscribers(t *testing.T) {
	pb := NewProgressBroadcaster()
	a, b := pb.Subscribe(), pb.Subscribe()
	if pb.ClientCount() != 2 {
		t.Fatalf("clients = %d, want 2", pb.ClientCount())
	}

	pb.BroadcastFromJob(&models.Job{ID: "j1", Status: models.StatusProcessing, CurrentStep: models.StepRender, Progress: 40}, "rendering")
	for _, ch := range []chan ProgressUpdate{a, b} {
		u := <-ch
		if u.JobID != "j1" || u.Progress != 40 || u.Message != "rendering" || u.Timestamp.IsZero() {
			t.Errorf("update = %+v", u)
		}
	}

	pb.Unsubscribe(a)
	if _, ok := <-a; ok {
		t.Error("unsubscribed channel should be closed")
	}
	pb.Unsubscribe(a)
	if pb.ClientCount() != 1 {
		t.Errorf("clients = %d, want 1", pb.ClientCount())
	}
}

func TestBroadcastSkipsFullClients(t *testing.T) {
	pb := NewProgressBroadcaster()
	ch := pb.Subscribe()
	for i := 0; i < 25; i++ {
		pb.Broadcast(ProgressUpdate{JobID: "j", Progress: i})
	}
	if len(ch) != cap(ch) {
		t.Errorf("buffered %d updates, want %d", len(ch), cap(ch))
	}
}

func TestFormatSSE(t *testing.T) {
	s := FormatSSE(ProgressUpdate{JobID: "abc", Progress: 10})
	if !strings.HasPrefix(s, "data: {") || !strings.HasSuffix(s, "}\n\n") {
		t.Errorf("FormatSSE = %q", s)
	}
	if !strings.Contains(s, `"job_id":"abc"`) {
		t.Errorf("FormatSSE = %q", s)
	}
}
