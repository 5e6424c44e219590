package handlers

import (
	"io"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/PG-9-9/Musical-Video-Generator/internal/services"
)

// ProgressHandler handles progress streaming
type ProgressHandler struct {
	broadcaster *services.ProgressBroadcaster
	keepalive   time.Duration
}

// NewProgressHandler creates a new progress handler
func NewProgressHandler(broadcaster *services.ProgressBroadcaster) *ProgressHandler {
	return &ProgressHandler{
		broadcaster: broadcaster,
		keepalive:   30 * time.Second,
	}
}

// StreamProgress streams progress updates for all jobs via Server-Sent Events
func (h *ProgressHandler) StreamProgress(c *gin.Context) {
	h.stream(c, "")
}

// StreamJobProgress streams progress for a single job
func (h *ProgressHandler) StreamJobProgress(c *gin.Context) {
	h.stream(c, c.Param("id"))
}

func (h *ProgressHandler) stream(c *gin.Context, jobID string) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("Access-Control-Allow-Origin", "*")

	clientChan := h.broadcaster.Subscribe()
	defer h.broadcaster.Unsubscribe(clientChan)

	clientGone := c.Request.Context().Done()

	c.Writer.Write([]byte(services.FormatSSE(services.ProgressUpdate{
		JobID:     jobID,
		Message:   "connected",
		Timestamp: time.Now(),
	})))
	c.Writer.Flush()

	ticker := time.NewTicker(h.keepalive)
	defer ticker.Stop()

	for {
		select {
		case <-clientGone:
			logrus.WithField("job_id", jobID).Debug("Client disconnected from progress stream")
			return
		case update, ok := <-clientChan:
			if !ok {
				return
			}
			if jobID != "" && update.JobID != jobID {
				continue
			}
			data := services.FormatSSE(update)
			if data == "" {
				continue
			}
			if _, err := c.Writer.Write([]byte(data)); err != nil {
				if err != io.EOF {
					logrus.WithError(err).Warn("Error writing SSE data")
				}
				return
			}
			c.Writer.Flush()
		case <-ticker.C:
			c.Writer.Write([]byte(": keepalive\n\n"))
			c.Writer.Flush()
		}
	}
}

// GetStats returns broadcaster statistics
func (h *ProgressHandler) GetStats(c *gin.Context) {
	c.JSON(200, gin.H{
		"connected_clients": h.broadcaster.ClientCount(),
		"timestamp":         time.Now(),
	})
}
