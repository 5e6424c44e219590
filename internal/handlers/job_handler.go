package handlers

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"

	"github.com/PG-9-9/Musical-Video-Generator/internal/database"
	"github.com/PG-9-9/Musical-Video-Generator/internal/models"
	"github.com/PG-9-9/Musical-Video-Generator/internal/services"
	"github.com/PG-9-9/Musical-Video-Generator/pkg/timeline"
)

// JobHandler handles job-related requests
type JobHandler struct {
	repo        *database.JobRepository
	broadcaster *services.ProgressBroadcaster
}

// NewJobHandler creates a new job handler
func NewJobHandler(repo *database.JobRepository, broadcaster *services.ProgressBroadcaster) *JobHandler {
	return &JobHandler{
		repo:        repo,
		broadcaster: broadcaster,
	}
}

// GetAll returns all jobs
func (h *JobHandler) GetAll(c *gin.Context) {
	jobs, err := h.repo.GetAll()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"jobs": jobs})
}

// GetByID returns a job by ID
func (h *JobHandler) GetByID(c *gin.Context) {
	job, err := h.repo.GetByID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if job == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Job not found"})
		return
	}

	c.JSON(http.StatusOK, job)
}

// Create queues a new render job. The input files must exist.
func (h *JobHandler) Create(c *gin.Context) {
	var req models.CreateJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	for _, p := range []string{req.AudioPath, req.TimelinePath} {
		if _, err := os.Stat(p); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "File not found: " + p})
			return
		}
	}

	job := &models.Job{
		AudioPath:    req.AudioPath,
		TimelinePath: req.TimelinePath,
		StylePreset:  req.StylePreset,
		Priority:     req.Priority,
		Status:       models.StatusQueued,
	}
	if err := h.repo.Create(job); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	h.broadcaster.BroadcastFromJob(job, "Job queued")
	c.JSON(http.StatusCreated, job)
}

// GetEvents returns the timeline events written by a completed job
func (h *JobHandler) GetEvents(c *gin.Context) {
	job, err := h.repo.GetByID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if job == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Job not found"})
		return
	}
	if job.Status != models.StatusCompleted || job.OutputDir == "" {
		c.JSON(http.StatusConflict, gin.H{"error": "Job has not completed", "status": job.Status})
		return
	}

	data, err := os.ReadFile(filepath.Join(job.OutputDir, "events.json"))
	if errors.Is(err, os.ErrNotExist) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Events not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	var doc struct {
		Events []timeline.Event `json:"events"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to parse events: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"job_id": job.ID, "events": doc.Events})
}

// Stats returns job counts by status
func (h *JobHandler) Stats(c *gin.Context) {
	counts, err := h.repo.CountByStatus()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"counts": counts})
}
