package worker

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"
	"github.com/sirupsen/logrus"

	"github.com/PG-9-9/Musical-Video-Generator/config"
	"github.com/PG-9-9/Musical-Video-Generator/internal/models"
	"github.com/PG-9-9/Musical-Video-Generator/pkg/audio"
	"github.com/PG-9-9/Musical-Video-Generator/pkg/timeline"
	"github.com/PG-9-9/Musical-Video-Generator/pkg/video"
)

// Output file names inside a job directory
const (
	BeatAnalysisFile = "beat_analysis.json"
	EventsFile       = "events.json"
	TimelineFile     = "timeline.json"
	StyleFile        = "style_timeline.json"
	FramesDir        = "frames"
)

// PipelineInput names the files for one render
type PipelineInput struct {
	AudioPath    string
	TimelinePath string
	OutputDir    string
	StylePreset  string
}

// PipelineResult is what a successful run produced
type PipelineResult struct {
	Estimate *audio.TempoEstimate
	Timeline *timeline.Timeline
	Events   []timeline.Event
	Frames   int
}

// Hooks receive progress from RunPipeline. Any of them may be nil.
type Hooks struct {
	Step  func(step string, progress int, message string)
	Frame func(done, total int)
}

func (h Hooks) step(step string, progress int, message string) {
	if h.Step != nil {
		h.Step(step, progress, message)
	}
}

// RunPipeline decodes the audio, loads the timeline, analyzes the signal,
// renders frames and writes the analysis artifacts. Input failures abort
// before anything is written. Frames and artifacts are staged next to
// OutputDir and moved into place together, so a failed run leaves any
// previous output untouched and no new files behind.
func RunPipeline(ctx context.Context, cfg *config.Config, in PipelineInput, log logrus.FieldLogger, hooks Hooks) (*PipelineResult, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}

	hooks.step(models.StepDecode, 5, "Decoding audio")
	buf, err := audio.DecodeWAV(in.AudioPath)
	if err != nil {
		return nil, err
	}
	log.WithFields(logrus.Fields{
		"samples":     len(buf.Samples),
		"sample_rate": buf.SampleRate,
	}).Info("Audio decoded")

	hooks.step(models.StepTimeline, 10, "Loading timeline")
	tl, err := timeline.LoadFile(in.TimelinePath, timeline.BuildOptions{VerifyEmotions: cfg.Analysis.VerifyEmotions})
	if err != nil {
		return nil, err
	}
	log.WithField("segments", len(tl.Segments)).Info("Timeline loaded")

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	hooks.step(models.StepAnalyze, 20, "Analyzing tempo and energy")
	opts := audio.DefaultOptions()
	opts.HopLength = cfg.Analysis.HopLength
	opts.FrameLength = cfg.Analysis.FrameLength
	opts.Segments = tl.Spans()
	opts.Logger = log
	est, err := audio.Analyze(buf, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to analyze audio: %w", err)
	}
	tl = tl.WithEnergy(est.PerSegmentEnergy)
	log.WithField("tier", est.Tier).Info(est.Summary())

	hooks.step(models.StepStyle, 35, "Building style timeline")
	vr := NewRenderer(cfg, in.StylePreset)
	vr.Logger = log

	renderOpts := &video.VideoRenderOptions{
		Timeline: tl,
		Estimate: est,
		Progress: hooks.Frame,
	}
	if cfg.Render.Subtitles {
		renderOpts.Subtitles = video.DefaultSubtitleStyle()
	}
	if cfg.Render.Metadata {
		renderOpts.Metadata = video.DefaultMetadataOverlay()
	}

	hooks.step(models.StepRender, 40, "Rendering frames")
	staging, err := newStagingDir(in.OutputDir)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			if rmErr := os.RemoveAll(staging); rmErr != nil {
				log.WithError(rmErr).Warn("Failed to remove staging directory")
			}
		}
	}()

	res, err := vr.RenderVideo(ctx, renderOpts, video.NewPNGSink(filepath.Join(staging, FramesDir)))
	if err != nil {
		return nil, err
	}
	log.WithField("frames", res.Frames).Info("Frames rendered")

	hooks.step(models.StepWrite, 95, "Writing analysis files")
	events := timeline.BuildEvents(tl, est.BeatTimes)
	style := timeline.BuildStyleTimeline(tl, vr.FPS, res.Duration)
	if err := writeArtifacts(staging, est, tl, events, style); err != nil {
		return nil, err
	}
	if err := video.ReplaceDir(staging, in.OutputDir); err != nil {
		return nil, fmt.Errorf("failed to move job output into place: %w", err)
	}
	committed = true
	log.WithField("dir", in.OutputDir).Info("✓ Job outputs written")

	return &PipelineResult{Estimate: est, Timeline: tl, Events: events, Frames: res.Frames}, nil
}

// NewRenderer builds a renderer from the render config. A non-empty preset
// overrides the configured one.
func NewRenderer(cfg *config.Config, preset string) *video.VideoRenderer {
	vr := video.NewVideoRenderer()
	vr.Width = cfg.Render.Width
	vr.Height = cfg.Render.Height
	vr.FPS = cfg.Render.FPS
	vr.CrossfadeSec = cfg.Render.CrossfadeSec
	vr.StylePreset = cfg.Render.StylePreset
	if cfg.Render.Workers > 0 {
		vr.Workers = cfg.Render.Workers
	}
	if preset != "" {
		vr.StylePreset = preset
	}
	return vr
}

func newStagingDir(outputDir string) (string, error) {
	parent := filepath.Dir(filepath.Clean(outputDir))
	if err := os.MkdirAll(parent, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	staging, err := os.MkdirTemp(parent, "."+filepath.Base(outputDir)+"-staging-")
	if err != nil {
		return "", fmt.Errorf("failed to create staging directory: %w", err)
	}
	return staging, nil
}

func writeArtifacts(dir string, est *audio.TempoEstimate, tl *timeline.Timeline, events []timeline.Event, style []timeline.StyleFrame) error {
	if err := est.WriteJSON(filepath.Join(dir, BeatAnalysisFile)); err != nil {
		return err
	}
	if err := timeline.WriteEvents(filepath.Join(dir, EventsFile), events); err != nil {
		return err
	}
	if err := tl.WriteJSON(filepath.Join(dir, TimelineFile)); err != nil {
		return err
	}
	data, err := json.MarshalIndent(style, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal style timeline: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, StyleFile), data, 0644); err != nil {
		return fmt.Errorf("failed to write style timeline: %w", err)
	}
	return nil
}
