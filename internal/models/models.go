package models

import "time"

// Job status values
const (
	StatusQueued     = "queued"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
	StatusRetrying   = "retrying"
)

// Pipeline steps reported in Job.CurrentStep
const (
	StepDecode   = "decode"
	StepAnalyze  = "analyze"
	StepTimeline = "timeline"
	StepStyle    = "style"
	StepRender   = "render"
	StepWrite    = "write"
)

// Job is one audio + timeline render request
type Job struct {
	ID           string `json:"id" db:"id"`
	AudioPath    string `json:"audio_path" db:"audio_path"`
	TimelinePath string `json:"timeline_path" db:"timeline_path"`
	StylePreset  string `json:"style_preset" db:"style_preset"`
	Priority     int    `json:"priority" db:"priority"`

	Status       string `json:"status" db:"status"`
	CurrentStep  string `json:"current_step" db:"current_step"`
	Progress     int    `json:"progress" db:"progress"`
	ErrorMessage string `json:"error_message" db:"error_message"`
	RetryCount   int    `json:"retry_count" db:"retry_count"`

	// Results
	OutputDir  string  `json:"output_dir" db:"output_dir"`
	FrameCount int     `json:"frame_count" db:"frame_count"`
	BPM        float64 `json:"bpm" db:"bpm"`
	Tier       string  `json:"tier" db:"tier"`

	QueuedAt    time.Time  `json:"queued_at" db:"queued_at"`
	StartedAt   *time.Time `json:"started_at" db:"started_at"`
	CompletedAt *time.Time `json:"completed_at" db:"completed_at"`
}

// CreateJobRequest is the body of POST /api/v1/jobs
type CreateJobRequest struct {
	AudioPath    string `json:"audio_path" binding:"required"`
	TimelinePath string `json:"timeline_path" binding:"required"`
	StylePreset  string `json:"style_preset"`
	Priority     int    `json:"priority" binding:"gte=0,lte=10"`
}
