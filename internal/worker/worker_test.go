package worker

import (
	"context"
	"encoding/binary"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/PG-9-9/Musical-Video-Generator/config"
	"github.com/PG-9-9/Musical-Video-Generator/internal/database"
	"github.com/PG-9-9/Musical-Video-Generator/internal/models"
	"github.com/PG-9-9/Musical-Video-Generator/internal/services"
	"github.com/PG-9-9/Musical-Video-Generator/pkg/audio"
	"github.com/PG-9-9/Musical-Video-Generator/pkg/timeline"
)

const testRate = 22050

const timelineJSON = `{
  "duration_sec": 3,
  "segments": [
    {"start_sec": 0, "end_sec": 1, "emotion": "calm", "intensity": 0.3, "lines": ["first light"]},
    {"start_sec": 1, "end_sec": 2, "emotion": "hopeful", "intensity": 0.5},
    {"start_sec": 2, "end_sec": 3, "emotion": "energetic", "intensity": 0.8, "lines": "go now"}
  ]
}`

func writeClickWAV(t *testing.T, path string, seconds float64) {
	t.Helper()
	n := int(seconds * testRate)
	pcm := make([]int16, n)
	for start := 0; start < n; start += testRate / 2 {
		for i := 0; i < 400 && start+i < n; i++ {
			v := 0.8 * math.Exp(-float64(i)/80) * math.Sin(2*math.Pi*1000*float64(i)/testRate)
			pcm[start+i] = int16(v * 32767)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	le := binary.LittleEndian
	dataSize := uint32(len(pcm) * 2)
	f.WriteString("RIFF")
	binary.Write(f, le, 36+dataSize)
	f.WriteString("WAVEfmt ")
	binary.Write(f, le, uint32(16))
	binary.Write(f, le, uint16(1))
	binary.Write(f, le, uint16(1))
	binary.Write(f, le, uint32(testRate))
	binary.Write(f, le, uint32(testRate*2))
	binary.Write(f, le, uint16(2))
	binary.Write(f, le, uint16(16))
	f.WriteString("data")
	binary.Write(f, le, dataSize)
	if err := binary.Write(f, le, pcm); err != nil {
		t.Fatal(err)
	}
}

func testConfig(dir string) *config.Config {
	return &config.Config{
		Environment: "test",
		StoragePath: dir,
		JobsPath:    filepath.Join(dir, "jobs"),
		Render: config.RenderConfig{
			FPS: 4, Width: 32, Height: 18, CrossfadeSec: 0.25,
			StylePreset: "synthwave", Workers: 2, Subtitles: true, Metadata: true,
		},
		Analysis: config.AnalysisConfig{HopLength: 512, FrameLength: 1024},
	}
}

type workerFixture struct {
	dir    string
	repo   *database.JobRepository
	worker *Worker
	pb     *services.ProgressBroadcaster
}

func newWorkerFixture(t *testing.T) *workerFixture {
	t.Helper()
	dir := t.TempDir()
	db, err := database.Open(filepath.Join(dir, "jobs.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	repo := database.NewJobRepository(db)
	pb := services.NewProgressBroadcaster()
	return &workerFixture{dir: dir, repo: repo, pb: pb, worker: NewWorker(repo, pb, testConfig(dir), time.Hour)}
}

func (f *workerFixture) queue(t *testing.T, timelineBody string) *models.Job {
	t.Helper()
	audioPath := filepath.Join(f.dir, "song.wav")
	writeClickWAV(t, audioPath, 3)
	tlPath := filepath.Join(f.dir, "timeline.json")
	if err := os.WriteFile(tlPath, []byte(timelineBody), 0644); err != nil {
		t.Fatal(err)
	}
	job := &models.Job{AudioPath: audioPath, TimelinePath: tlPath}
	if err := f.repo.Create(job); err != nil {
		t.Fatal(err)
	}
	return job
}

func TestWorkerProcessesJob(t *testing.T) {
	f := newWorkerFixture(t)
	job := f.queue(t, timelineJSON)
	updates := f.pb.Subscribe()

	if !f.worker.processNext() {
		t.Fatal("worker did not pick up the job")
	}

	got, err := f.repo.GetByID(job.ID)
	if err != nil || got == nil {
		t.Fatalf("GetByID = %+v, %v", got, err)
	}
	if got.Status != models.StatusCompleted {
		t.Fatalf("status = %s (%s)", got.Status, got.ErrorMessage)
	}
	if got.FrameCount != 12 || got.Progress != 100 || got.Tier == "" {
		t.Errorf("job = %+v", got)
	}

	for _, name := range []string{BeatAnalysisFile, EventsFile, TimelineFile, StyleFile} {
		if _, err := os.Stat(filepath.Join(got.OutputDir, name)); err != nil {
			t.Errorf("missing %s: %v", name, err)
		}
	}
	frames, err := os.ReadDir(filepath.Join(got.OutputDir, FramesDir))
	if err != nil || len(frames) != 12 {
		t.Errorf("frames dir has %d entries (%v), want 12", len(frames), err)
	}

	est, err := audio.LoadEstimate(filepath.Join(got.OutputDir, BeatAnalysisFile))
	if err != nil {
		t.Fatal(err)
	}
	if len(est.PerSegmentEnergy) != 3 {
		t.Errorf("per-segment energy = %v, want 3 values", est.PerSegmentEnergy)
	}

	if _, err := os.Stat(filepath.Join(f.dir, "logs", job.ID, "log.txt")); err != nil {
		t.Errorf("render log missing: %v", err)
	}
	if len(updates) == 0 {
		t.Error("no progress broadcast")
	}
	if f.worker.processNext() {
		t.Error("queue should be empty")
	}
}

func TestWorkerFailsInvalidTimeline(t *testing.T) {
	f := newWorkerFixture(t)
	job := f.queue(t, `{"duration_sec": 3, "segments": [{"start_sec": 0, "end_sec": 3, "emotion": "calm"}]}`)

	f.worker.processNext()

	got, _ := f.repo.GetByID(job.ID)
	if got.Status != models.StatusFailed || got.ErrorMessage == "" || got.RetryCount != 1 {
		t.Errorf("job = %+v", got)
	}
	if _, err := os.Stat(filepath.Join(f.dir, "jobs", job.ID)); !os.IsNotExist(err) {
		t.Errorf("failed job left output behind: %v", err)
	}
}

func TestRunPipelineDecodeError(t *testing.T) {
	dir := t.TempDir()
	_, err := RunPipeline(context.Background(), testConfig(dir), PipelineInput{
		AudioPath:    filepath.Join(dir, "missing.wav"),
		TimelinePath: filepath.Join(dir, "missing.json"),
		OutputDir:    filepath.Join(dir, "out"),
	}, nil, Hooks{})
	if !errors.Is(err, audio.ErrDecode) {
		t.Errorf("err = %v, want ErrDecode", err)
	}
}

func TestRunPipelineTimelineError(t *testing.T) {
	dir := t.TempDir()
	audioPath := filepath.Join(dir, "song.wav")
	writeClickWAV(t, audioPath, 1)
	tlPath := filepath.Join(dir, "timeline.json")
	os.WriteFile(tlPath, []byte(`{"duration_sec": 3, "segments": [
		{"start_sec": 0, "end_sec": 1, "emotion": "calm"},
		{"start_sec": 1.5, "end_sec": 2, "emotion": "calm"},
		{"start_sec": 2, "end_sec": 3, "emotion": "calm"}]}`), 0644)

	var steps []string
	_, err := RunPipeline(context.Background(), testConfig(dir), PipelineInput{
		AudioPath: audioPath, TimelinePath: tlPath, OutputDir: filepath.Join(dir, "out"),
	}, nil, Hooks{Step: func(step string, _ int, _ string) { steps = append(steps, step) }})

	var terr *timeline.TimelineError
	if !errors.As(err, &terr) || terr.Index != 1 {
		t.Fatalf("err = %v, want timeline error at segment 1", err)
	}
	if len(steps) != 2 || steps[1] != models.StepTimeline {
		t.Errorf("steps = %v", steps)
	}
}

func TestNewRendererPresetOverride(t *testing.T) {
	cfg := testConfig(t.TempDir())
	if vr := NewRenderer(cfg, ""); vr.StylePreset != "synthwave" || vr.Workers != 2 {
		t.Errorf("renderer = %+v", vr)
	}
	if vr := NewRenderer(cfg, "cinematic"); vr.StylePreset != "cinematic" {
		t.Errorf("preset = %s", vr.StylePreset)
	}
}

func TestRunPipelineWriteFailureLeavesNoOutput(t *testing.T) {
	dir := t.TempDir()
	audioPath := filepath.Join(dir, "song.wav")
	writeClickWAV(t, audioPath, 3)
	tlPath := filepath.Join(dir, "timeline.json")
	os.WriteFile(tlPath, []byte(timelineJSON), 0644)

	outDir := filepath.Join(dir, "jobs", "out")
	if err := os.MkdirAll(outDir, 0755); err != nil {
		t.Fatal(err)
	}
	os.WriteFile(filepath.Join(outDir, "previous.txt"), []byte("keep"), 0644)

	// block events.json in the staged output once frames are rendered
	hooks := Hooks{Step: func(step string, _ int, _ string) {
		if step != models.StepWrite {
			return
		}
		staged, _ := filepath.Glob(filepath.Join(dir, "jobs", ".out-staging-*"))
		for _, s := range staged {
			os.MkdirAll(filepath.Join(s, EventsFile), 0755)
		}
	}}

	_, err := RunPipeline(context.Background(), testConfig(dir), PipelineInput{
		AudioPath: audioPath, TimelinePath: tlPath, OutputDir: outDir,
	}, nil, hooks)
	if err == nil {
		t.Fatal("expected the events write to fail")
	}

	entries, err := os.ReadDir(outDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "previous.txt" {
		t.Errorf("output dir holds %v, want only the previous run's file", entries)
	}
	siblings, _ := os.ReadDir(filepath.Join(dir, "jobs"))
	if len(siblings) != 1 {
		t.Errorf("jobs dir holds %d entries, want staging removed", len(siblings))
	}
}

func TestRunPipelineReplacesPreviousOutput(t *testing.T) {
	dir := t.TempDir()
	audioPath := filepath.Join(dir, "song.wav")
	writeClickWAV(t, audioPath, 3)
	tlPath := filepath.Join(dir, "timeline.json")
	os.WriteFile(tlPath, []byte(timelineJSON), 0644)
	outDir := filepath.Join(dir, "out")
	os.MkdirAll(outDir, 0755)
	os.WriteFile(filepath.Join(outDir, "previous.txt"), []byte("stale"), 0644)

	res, err := RunPipeline(context.Background(), testConfig(dir), PipelineInput{
		AudioPath: audioPath, TimelinePath: tlPath, OutputDir: outDir,
	}, nil, Hooks{})
	if err != nil {
		t.Fatal(err)
	}
	if res.Frames != 12 {
		t.Errorf("frames = %d, want 12", res.Frames)
	}
	if _, err := os.Stat(filepath.Join(outDir, "previous.txt")); !os.IsNotExist(err) {
		t.Error("stale file from the previous run survived")
	}
	for _, name := range []string{BeatAnalysisFile, EventsFile, TimelineFile, StyleFile, FramesDir} {
		if _, err := os.Stat(filepath.Join(outDir, name)); err != nil {
			t.Errorf("missing %s: %v", name, err)
		}
	}
}

func TestProcessRecoversPanicWithoutRenderLog(t *testing.T) {
	dir := t.TempDir()
	// a file where the log directory belongs keeps the render log from opening
	if err := os.WriteFile(filepath.Join(dir, "logs"), nil, 0644); err != nil {
		t.Fatal(err)
	}

	// no repository: the first progress report dereferences nil
	p := NewProcessor(nil, nil, testConfig(dir))
	err := p.Process(context.Background(), &models.Job{ID: "job-1"})
	if err == nil || !strings.Contains(err.Error(), "panicked") {
		t.Errorf("err = %v, want a recovered panic", err)
	}
}
