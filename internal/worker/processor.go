package worker

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/PG-9-9/Musical-Video-Generator/config"
	"github.com/PG-9-9/Musical-Video-Generator/internal/database"
	"github.com/PG-9-9/Musical-Video-Generator/internal/models"
	"github.com/PG-9-9/Musical-Video-Generator/internal/services"
	"github.com/PG-9-9/Musical-Video-Generator/internal/utils"
	"github.com/PG-9-9/Musical-Video-Generator/pkg/logger"
)

// Processor runs the render pipeline for one job
type Processor struct {
	jobRepo     *database.JobRepository
	broadcaster *services.ProgressBroadcaster
	config      *config.Config

	mu sync.Mutex
}

// NewProcessor creates a new processor
func NewProcessor(
	jobRepo *database.JobRepository,
	broadcaster *services.ProgressBroadcaster,
	cfg *config.Config,
) *Processor {
	return &Processor{
		jobRepo:     jobRepo,
		broadcaster: broadcaster,
		config:      cfg,
	}
}

// OutputDir is where a job's artifacts are written
func (p *Processor) OutputDir(job *models.Job) string {
	return utils.JobDir(p.config.StoragePath, job.ID)
}

// Process executes the full pipeline and records the results on job
func (p *Processor) Process(ctx context.Context, job *models.Job) (err error) {
	entry := logrus.WithField("job_id", job.ID)

	renderLog, logErr := logger.NewRenderLogger(p.config.StoragePath, job.ID)
	if logErr != nil {
		entry.WithError(logErr).Warn("Failed to create render logger")
	}

	defer func() {
		if r := recover(); r != nil {
			entry.Errorf("Pipeline panicked: %v", r)
			if renderLog != nil {
				renderLog.Error("Pipeline panicked: %v", r)
				renderLog.Close(false, fmt.Sprintf("Panic: %v", r))
			}
			err = fmt.Errorf("pipeline panicked: %v", r)
		}
	}()

	var pipeLog logrus.FieldLogger = entry
	if renderLog != nil {
		pipeLog = renderLog.Logger()
		renderLog.Info("Starting render pipeline")
		renderLog.Property("audio_path", job.AudioPath)
		renderLog.Property("timeline_path", job.TimelinePath)
		renderLog.Property("style_preset", job.StylePreset)
	}

	lastReported := -1
	hooks := Hooks{
		Step: func(step string, progress int, message string) {
			if renderLog != nil {
				renderLog.Phase(step, message)
			}
			p.report(job, step, progress, message)
		},
		Frame: func(done, total int) {
			// render spans 40..95 percent
			pct := 40 + done*55/max(1, total)
			p.mu.Lock()
			changed := pct > lastReported
			if changed {
				lastReported = pct
			}
			p.mu.Unlock()
			if changed {
				p.report(job, models.StepRender, pct, fmt.Sprintf("Rendered %d/%d frames", done, total))
			}
		},
	}

	outDir := p.OutputDir(job)
	res, err := RunPipeline(ctx, p.config, PipelineInput{
		AudioPath:    job.AudioPath,
		TimelinePath: job.TimelinePath,
		OutputDir:    outDir,
		StylePreset:  job.StylePreset,
	}, pipeLog, hooks)
	if err != nil {
		if renderLog != nil {
			renderLog.Error("Pipeline failed: %v", err)
			renderLog.Close(false, err.Error())
		}
		return fmt.Errorf("render pipeline failed: %w", err)
	}

	job.OutputDir = outDir
	job.FrameCount = res.Frames
	job.BPM = res.Estimate.BPM
	job.Tier = string(res.Estimate.Tier)

	if renderLog != nil {
		renderLog.Property("frames", res.Frames)
		renderLog.Property("bpm", res.Estimate.BPM)
		renderLog.Success("Render pipeline completed successfully")
		renderLog.Close(true, "All phases completed without errors")
	}
	return nil
}

// report persists and broadcasts progress. Frame callbacks arrive from
// render workers concurrently.
func (p *Processor) report(job *models.Job, step string, progress int, message string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	job.CurrentStep = step
	job.Progress = progress
	if err := p.jobRepo.UpdateProgress(job.ID, step, progress); err != nil {
		logrus.WithError(err).WithField("job_id", job.ID).Warn("Failed to record progress")
	}
	p.broadcaster.BroadcastFromJob(job, message)
}
