package services

import (
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/sirupsen/logrus"

	"github.com/PG-9-9/Musical-Video-Generator/internal/models"
)

// ProgressUpdate represents a progress update event
type ProgressUpdate struct {
	JobID        string    `json:"job_id"`
	Status       string    `json:"status"`
	CurrentStep  string    `json:"current_step"`
	Progress     int       `json:"progress"`
	Message      string    `json:"message"`
	ErrorMessage string    `json:"error_message,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// ProgressBroadcaster manages SSE connections for live progress updates
type ProgressBroadcaster struct {
	clients map[chan ProgressUpdate]bool
	mutex   sync.RWMutex
}

// NewProgressBroadcaster creates a new progress broadcaster
func NewProgressBroadcaster() *ProgressBroadcaster {
	return &ProgressBroadcaster{
		clients: make(map[chan ProgressUpdate]bool),
	}
}

// Subscribe adds a new client to receive progress updates
func (pb *ProgressBroadcaster) Subscribe() chan ProgressUpdate {
	pb.mutex.Lock()
	defer pb.mutex.Unlock()

	client := make(chan ProgressUpdate, 10)
	pb.clients[client] = true
	logrus.WithField("clients", len(pb.clients)).Debug("Client subscribed to progress updates")
	return client
}

// Unsubscribe removes a client from receiving updates
func (pb *ProgressBroadcaster) Unsubscribe(client chan ProgressUpdate) {
	pb.mutex.Lock()
	defer pb.mutex.Unlock()

	if _, ok := pb.clients[client]; ok {
		delete(pb.clients, client)
		close(client)
		logrus.WithField("clients", len(pb.clients)).Debug("Client unsubscribed from progress updates")
	}
}

// Broadcast sends a progress update to all connected clients. Slow clients
// with a full buffer miss the update.
func (pb *ProgressBroadcaster) Broadcast(update ProgressUpdate) {
	pb.mutex.RLock()
	defer pb.mutex.RUnlock()

	update.Timestamp = time.Now()
	for client := range pb.clients {
		select {
		case client <- update:
		default:
			logrus.WithField("job_id", update.JobID).Warn("Client buffer full, skipping update")
		}
	}

	logrus.WithFields(logrus.Fields{
		"job_id":   update.JobID,
		"step":     update.CurrentStep,
		"progress": update.Progress,
	}).Debug("Progress update broadcast")
}

// BroadcastFromJob converts a job to a progress update and broadcasts it
func (pb *ProgressBroadcaster) BroadcastFromJob(job *models.Job, message string) {
	pb.Broadcast(ProgressUpdate{
		JobID:        job.ID,
		Status:       job.Status,
		CurrentStep:  job.CurrentStep,
		Progress:     job.Progress,
		Message:      message,
		ErrorMessage: job.ErrorMessage,
	})
}

// ClientCount returns the number of connected clients
func (pb *ProgressBroadcaster) ClientCount() int {
	pb.mutex.RLock()
	defer pb.mutex.RUnlock()
	return len(pb.clients)
}

// FormatSSE formats a progress update as Server-Sent Event
func FormatSSE(update ProgressUpdate) string {
	data, err := json.Marshal(update)
	if err != nil {
		logrus.WithError(err).Error("Error marshaling SSE data")
		return ""
	}
	return "data: " + string(data) + "\n\n"
}
