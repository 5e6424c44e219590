package database

import (
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/PG-9-9/Musical-Video-Generator/internal/models"
)

// JobRepository handles job database operations
type JobRepository struct {
	db *sql.DB
}

// NewJobRepository creates a new job repository
func NewJobRepository(db *sql.DB) *JobRepository {
	return &JobRepository{db: db}
}

const jobColumns = `id, audio_path, timeline_path,
	COALESCE(style_preset, '') as style_preset,
	priority, status,
	COALESCE(current_step, '') as current_step,
	COALESCE(progress, 0) as progress,
	COALESCE(error_message, '') as error_message,
	COALESCE(retry_count, 0) as retry_count,
	COALESCE(output_dir, '') as output_dir,
	COALESCE(frame_count, 0) as frame_count,
	COALESCE(bpm, 0) as bpm,
	COALESCE(tier, '') as tier,
	queued_at, started_at, completed_at`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanJob(s scanner) (*models.Job, error) {
	var job models.Job
	err := s.Scan(
		&job.ID, &job.AudioPath, &job.TimelinePath, &job.StylePreset,
		&job.Priority, &job.Status,
		&job.CurrentStep, &job.Progress, &job.ErrorMessage, &job.RetryCount,
		&job.OutputDir, &job.FrameCount, &job.BPM, &job.Tier,
		&job.QueuedAt, &job.StartedAt, &job.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// GetAll returns all jobs, highest priority first
func (r *JobRepository) GetAll() ([]models.Job, error) {
	rows, err := r.db.Query(`SELECT ` + jobColumns + ` FROM jobs ORDER BY priority DESC, queued_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	jobs := []models.Job{}
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

// GetByID returns a job by ID, or nil when it does not exist
func (r *JobRepository) GetByID(id string) (*models.Job, error) {
	job, err := scanJob(r.db.QueryRow(`SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return job, err
}

// Create inserts a queued job and assigns its ID
func (r *JobRepository) Create(job *models.Job) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.Status == "" {
		job.Status = models.StatusQueued
	}
	if job.QueuedAt.IsZero() {
		job.QueuedAt = time.Now().UTC()
	}

	query := `INSERT INTO jobs (id, audio_path, timeline_path, style_preset, priority, status, queued_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.Exec(query,
		job.ID, job.AudioPath, job.TimelinePath, job.StylePreset,
		job.Priority, job.Status, job.QueuedAt,
	)
	return err
}

// Update updates an existing job
func (r *JobRepository) Update(job *models.Job) error {
	query := `UPDATE jobs SET status=?, priority=?,
		current_step=?, progress=?, error_message=?, retry_count=?,
		output_dir=?, frame_count=?, bpm=?, tier=?,
		started_at=?, completed_at=?
		WHERE id=?`

	_, err := r.db.Exec(query,
		job.Status, job.Priority,
		job.CurrentStep, job.Progress, job.ErrorMessage, job.RetryCount,
		job.OutputDir, job.FrameCount, job.BPM, job.Tier,
		job.StartedAt, job.CompletedAt,
		job.ID,
	)
	return err
}

// UpdateProgress records the current step and percentage
func (r *JobRepository) UpdateProgress(id, step string, progress int) error {
	_, err := r.db.Exec(`UPDATE jobs SET current_step=?, progress=? WHERE id=?`, step, progress, id)
	return err
}

// Delete removes a job
func (r *JobRepository) Delete(id string) error {
	_, err := r.db.Exec("DELETE FROM jobs WHERE id=?", id)
	return err
}

// GetNextPending returns the next queued or retrying job, or nil when
// there is none
func (r *JobRepository) GetNextPending() (*models.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs
		WHERE status IN (?, ?)
		ORDER BY priority DESC, queued_at ASC
		LIMIT 1`

	job, err := scanJob(r.db.QueryRow(query, models.StatusQueued, models.StatusRetrying))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return job, err
}

// CountByStatus returns the number of jobs in each status
func (r *JobRepository) CountByStatus() (map[string]int, error) {
	rows, err := r.db.Query(`SELECT status, COUNT(*) FROM jobs GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := map[string]int{}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}
