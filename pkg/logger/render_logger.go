package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// RenderLogger writes a verbose per-job log file. Entries go through a
// dedicated logrus logger so they carry the job id and elapsed time.
type RenderLogger struct {
	jobID     string
	logPath   string
	file      *os.File
	log       *logrus.Logger
	mu        sync.Mutex
	startTime time.Time
}

// NewRenderLogger creates storage/logs/<jobID>/log.txt, replacing any
// previous log for the same job.
func NewRenderLogger(storagePath, jobID string) (*RenderLogger, error) {
	logDir := filepath.Join(storagePath, "logs", jobID)
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	logPath := filepath.Join(logDir, "log.txt")
	file, err := os.Create(logPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create log file: %w", err)
	}

	rl := newRenderLogger(jobID, file)
	rl.logPath = logPath
	rl.file = file
	return rl, nil
}

func newRenderLogger(jobID string, w io.Writer) *RenderLogger {
	l := logrus.New()
	l.SetOutput(w)
	l.SetLevel(logrus.DebugLevel)
	l.SetFormatter(&logrus.TextFormatter{
		DisableColors:    true,
		DisableTimestamp: true,
		DisableQuote:     true,
	})

	rl := &RenderLogger{jobID: jobID, log: l, startTime: time.Now()}
	rl.writeRaw(fmt.Sprintf(`================================================================================
MUSICAL VIDEO GENERATOR - RENDER LOG
Job ID: %s
Started: %s
================================================================================

`, jobID, rl.startTime.Format("2006-01-02 15:04:05 MST")))
	return rl
}

func (rl *RenderLogger) writeRaw(s string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	io.WriteString(rl.log.Out, s)
	if rl.file != nil {
		rl.file.Sync()
	}
}

func (rl *RenderLogger) entry() *logrus.Entry {
	return rl.log.WithFields(logrus.Fields{
		"job":     rl.jobID,
		"elapsed": time.Since(rl.startTime).Round(time.Millisecond).String(),
	})
}

// Phase logs the start of a processing phase
func (rl *RenderLogger) Phase(name string, description string) {
	e := rl.entry().WithField("phase", name)
	if description != "" {
		e = e.WithField("description", description)
	}
	e.Info("========== PHASE ==========")
}

// Info logs an informational message
func (rl *RenderLogger) Info(format string, args ...interface{}) {
	rl.entry().Infof(format, args...)
}

// Debug logs a debug message with verbose details
func (rl *RenderLogger) Debug(format string, args ...interface{}) {
	rl.entry().Debugf(format, args...)
}

// Property logs a key-value property
func (rl *RenderLogger) Property(key string, value interface{}) {
	rl.entry().WithField(key, value).Debug("property")
}

// Error logs an error message
func (rl *RenderLogger) Error(format string, args ...interface{}) {
	rl.entry().Errorf(format, args...)
}

// Success logs a success message
func (rl *RenderLogger) Success(format string, args ...interface{}) {
	rl.entry().WithField("result", "success").Infof(format, args...)
}

// Logger exposes the file logger for packages that take a logrus.FieldLogger.
func (rl *RenderLogger) Logger() logrus.FieldLogger {
	return rl.log.WithField("job", rl.jobID)
}

// Close writes the footer and closes the log file
func (rl *RenderLogger) Close(success bool, finalMessage string) error {
	elapsed := time.Since(rl.startTime).Round(time.Millisecond)

	status := "COMPLETED SUCCESSFULLY"
	if !success {
		status = "FAILED"
	}

	rl.writeRaw(fmt.Sprintf(`
================================================================================
RENDER %s
Duration: %s
Completed: %s
%s
================================================================================
`, status, elapsed, time.Now().Format("2006-01-02 15:04:05 MST"), finalMessage))

	if rl.file == nil {
		return nil
	}
	return rl.file.Close()
}

// GetLogPath returns the path to the log file
func (rl *RenderLogger) GetLogPath() string {
	return rl.logPath
}
