package handlers

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"

	"github.com/PG-9-9/Musical-Video-Generator/internal/database"
	"github.com/PG-9-9/Musical-Video-Generator/internal/models"
	"github.com/PG-9-9/Musical-Video-Generator/internal/services"
	"github.com/PG-9-9/Musical-Video-Generator/pkg/timeline"
)

type fixture struct {
	router      *gin.Engine
	repo        *database.JobRepository
	broadcaster *services.ProgressBroadcaster
	dir         string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	dir := t.TempDir()
	db, err := database.Open(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	repo := database.NewJobRepository(db)
	pb := services.NewProgressBroadcaster()
	return &fixture{router: NewRouter(repo, pb), repo: repo, broadcaster: pb, dir: dir}
}

func (f *fixture) do(method, path string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func (f *fixture) touch(t *testing.T, name string) string {
	t.Helper()
	p := filepath.Join(f.dir, name)
	if err := os.WriteFile(p, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	w := f.do(http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"status":"ok"`) {
		t.Errorf("health = %d %s", w.Code, w.Body.String())
	}
}

func TestCreateAndGetJob(t *testing.T) {
	f := newFixture(t)
	body, _ := json.Marshal(models.CreateJobRequest{
		AudioPath:    f.touch(t, "song.wav"),
		TimelinePath: f.touch(t, "timeline.json"),
		StylePreset:  "lofi",
	})

	w := f.do(http.MethodPost, "/api/v1/jobs", body)
	if w.Code != http.StatusCreated {
		t.Fatalf("create = %d %s", w.Code, w.Body.String())
	}
	var created models.Job
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatal(err)
	}
	if created.ID == "" || created.Status != models.StatusQueued {
		t.Fatalf("created = %+v", created)
	}

	w = f.do(http.MethodGet, "/api/v1/jobs/"+created.ID, nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"style_preset":"lofi"`) {
		t.Errorf("get = %d %s", w.Code, w.Body.String())
	}

	w = f.do(http.MethodGet, "/api/v1/jobs", nil)
	var list struct {
		Jobs []models.Job `json:"jobs"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil || len(list.Jobs) != 1 {
		t.Errorf("list = %s (%v)", w.Body.String(), err)
	}
}

func TestCreateJobRejectsBadInput(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		name string
		body string
	}{
		{"not json", `{`},
		{"missing timeline", `{"audio_path":"a.wav"}`},
		{"missing files", `{"audio_path":"/nope.wav","timeline_path":"/nope.json"}`},
		{"priority out of range", `{"audio_path":"a","timeline_path":"b","priority":11}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if w := f.do(http.MethodPost, "/api/v1/jobs", []byte(tt.body)); w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", w.Code)
			}
		})
	}
}

func TestGetJobNotFound(t *testing.T) {
	f := newFixture(t)
	for _, path := range []string{"/api/v1/jobs/missing", "/api/v1/jobs/missing/events"} {
		if w := f.do(http.MethodGet, path, nil); w.Code != http.StatusNotFound {
			t.Errorf("%s = %d, want 404", path, w.Code)
		}
	}
}

func TestGetEvents(t *testing.T) {
	f := newFixture(t)
	job := &models.Job{AudioPath: "a.wav", TimelinePath: "a.json"}
	if err := f.repo.Create(job); err != nil {
		t.Fatal(err)
	}

	if w := f.do(http.MethodGet, "/api/v1/jobs/"+job.ID+"/events", nil); w.Code != http.StatusConflict {
		t.Errorf("queued job events = %d, want 409", w.Code)
	}

	out := filepath.Join(f.dir, "out")
	events := []timeline.Event{
		{Kind: timeline.EventScene, Time: 0, Segment: 0, Emotion: timeline.Calm},
		{Kind: timeline.EventBeat, Time: 0.5, Segment: 0},
	}
	if err := timeline.WriteEvents(filepath.Join(out, "events.json"), events); err != nil {
		t.Fatal(err)
	}
	job.Status = models.StatusCompleted
	job.OutputDir = out
	if err := f.repo.Update(job); err != nil {
		t.Fatal(err)
	}

	w := f.do(http.MethodGet, "/api/v1/jobs/"+job.ID+"/events", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("events = %d %s", w.Code, w.Body.String())
	}
	var resp struct {
		Events []timeline.Event `json:"events"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Events) != 2 || resp.Events[1].Kind != timeline.EventBeat {
		t.Errorf("events = %+v", resp.Events)
	}
}

func TestStreamJobProgress(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/api/v1/progress/stream/j1", nil).WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		f.router.ServeHTTP(w, req)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for f.broadcaster.ClientCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("stream never subscribed")
		}
		time.Sleep(5 * time.Millisecond)
	}
	f.broadcaster.Broadcast(services.ProgressUpdate{JobID: "other", Progress: 10})
	f.broadcaster.Broadcast(services.ProgressUpdate{JobID: "j1", Progress: 55, CurrentStep: models.StepRender})
	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	body := w.Body.String()
	if w.Header().Get("Content-Type") != "text/event-stream" {
		t.Errorf("content type = %q", w.Header().Get("Content-Type"))
	}
	if !strings.Contains(body, `"message":"connected"`) || !strings.Contains(body, `"progress":55`) {
		t.Errorf("stream body = %s", body)
	}
	if strings.Contains(body, `"job_id":"other"`) {
		t.Errorf("stream leaked another job's update: %s", body)
	}
	if f.broadcaster.ClientCount() != 0 {
		t.Error("stream did not unsubscribe")
	}
}
