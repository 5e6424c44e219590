package worker

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/PG-9-9/Musical-Video-Generator/config"
	"github.com/PG-9-9/Musical-Video-Generator/internal/database"
	"github.com/PG-9-9/Musical-Video-Generator/internal/models"
	"github.com/PG-9-9/Musical-Video-Generator/internal/services"
)

// Worker processes queued jobs one at a time
type Worker struct {
	jobRepo      *database.JobRepository
	broadcaster  *services.ProgressBroadcaster
	processor    *Processor
	pollInterval time.Duration
	ctx          context.Context
	cancel       context.CancelFunc
}

// NewWorker creates a new job worker
func NewWorker(
	jobRepo *database.JobRepository,
	broadcaster *services.ProgressBroadcaster,
	cfg *config.Config,
	pollInterval time.Duration,
) *Worker {
	ctx, cancel := context.WithCancel(context.Background())

	return &Worker{
		jobRepo:      jobRepo,
		broadcaster:  broadcaster,
		processor:    NewProcessor(jobRepo, broadcaster, cfg),
		pollInterval: pollInterval,
		ctx:          ctx,
		cancel:       cancel,
	}
}

// Start begins processing jobs until Stop is called
func (w *Worker) Start() {
	logrus.WithField("poll_interval", w.pollInterval).Info("Job worker started")

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	// Process immediately on start
	w.processNext()

	for {
		select {
		case <-w.ctx.Done():
			logrus.Info("Job worker stopped")
			return
		case <-ticker.C:
			w.processNext()
		}
	}
}

// Stop gracefully stops the worker and cancels a running render
func (w *Worker) Stop() {
	logrus.Info("Stopping job worker...")
	w.cancel()
}

// processNext processes the next pending job. It reports whether a job was
// picked up.
func (w *Worker) processNext() bool {
	job, err := w.jobRepo.GetNextPending()
	if err != nil {
		logrus.WithError(err).Error("Error getting next pending job")
		return false
	}
	if job == nil {
		return false
	}

	entry := logrus.WithField("job_id", job.ID)
	entry.Info("Processing job")

	now := time.Now()
	job.Status = models.StatusProcessing
	job.StartedAt = &now
	job.Progress = 0
	job.CurrentStep = "starting"
	job.ErrorMessage = ""
	if err := w.jobRepo.Update(job); err != nil {
		entry.WithError(err).Error("Error updating job")
		return false
	}
	w.broadcaster.BroadcastFromJob(job, "Processing started")

	if err := w.processor.Process(w.ctx, job); err != nil {
		entry.WithError(err).Error("Error processing job")
		w.failJob(job, err.Error())
		return true
	}

	completed := time.Now()
	job.Status = models.StatusCompleted
	job.CompletedAt = &completed
	job.Progress = 100
	job.CurrentStep = "completed"
	if err := w.jobRepo.Update(job); err != nil {
		entry.WithError(err).Error("Error updating completed job")
		return true
	}

	w.broadcaster.BroadcastFromJob(job, "Processing completed successfully")
	entry.WithField("frames", job.FrameCount).Info("Job completed successfully")
	return true
}

// failJob marks a job as failed
func (w *Worker) failJob(job *models.Job, errorMsg string) {
	job.Status = models.StatusFailed
	job.ErrorMessage = errorMsg
	job.RetryCount++
	completed := time.Now()
	job.CompletedAt = &completed

	if err := w.jobRepo.Update(job); err != nil {
		logrus.WithError(err).WithField("job_id", job.ID).Error("Error updating failed job")
		return
	}

	w.broadcaster.BroadcastFromJob(job, "Processing failed")
	logrus.WithField("job_id", job.ID).Warnf("Job failed: %s", errorMsg)
}
