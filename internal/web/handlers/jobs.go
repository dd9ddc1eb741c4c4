package handlers

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lKakarot/phone-cleaner/internal/constants"
	"github.com/lKakarot/phone-cleaner/internal/media"
)

// JobStatus represents the status of an async scan job.
type JobStatus string

// JobStatus constants define the lifecycle states of an async job.
const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// ScanJob represents an async duplicate/similarity scan over a directory.
type ScanJob struct {
	EventBroadcaster

	ID          string         `json:"id"`
	Directory   string         `json:"directory"`
	Mode        string         `json:"mode"` // flat, dated, dual, exact, perceptual
	Status      JobStatus      `json:"status"`
	Progress    float64        `json:"progress"`
	ItemCount   int            `json:"item_count"`
	Error       string         `json:"error,omitempty"`
	StartedAt   time.Time      `json:"started_at"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
	Result      *ScanJobResult `json:"result,omitempty"`
}

// ScanJobResult represents the outcome of a finished scan.
type ScanJobResult struct {
	Groups      []GroupView `json:"groups"`
	Reclaimable int64       `json:"reclaimable_bytes"`
}

// GroupView is the wire representation of one duplicate/similarity group.
type GroupView struct {
	Members     []MemberView `json:"members"`
	Reclaimable int64        `json:"reclaimable_bytes"`
}

// MemberView is the wire representation of one group member.
type MemberView struct {
	ID      string    `json:"id"`
	Size    int64     `json:"size"`
	TakenAt time.Time `json:"taken_at,omitempty"`
}

// NewScanResult converts groups to their wire representation.
func NewScanResult(groups []media.Group) *ScanJobResult {
	result := &ScanJobResult{Groups: []GroupView{}}
	for _, g := range groups {
		view := GroupView{Reclaimable: g.Reclaimable()}
		for _, it := range g.Items {
			view.Members = append(view.Members, MemberView{ID: it.ID, Size: it.Size, TakenAt: it.TakenAt})
		}
		result.Groups = append(result.Groups, view)
		result.Reclaimable += view.Reclaimable
	}
	return result
}

// GetStatus returns the current job status (implements SSEJob).
func (j *ScanJob) GetStatus() JobStatus {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status
}

// SetStatus updates the job status.
func (j *ScanJob) SetStatus(status JobStatus) {
	j.mu.Lock()
	j.Status = status
	if status == JobStatusCompleted || status == JobStatusFailed || status == JobStatusCancelled {
		now := time.Now()
		j.CompletedAt = &now
	}
	j.mu.Unlock()
}

// Snapshot returns a copy safe for JSON encoding while the job is running.
func (j *ScanJob) Snapshot() ScanJob {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return ScanJob{
		ID:          j.ID,
		Directory:   j.Directory,
		Mode:        j.Mode,
		Status:      j.Status,
		Progress:    j.Progress,
		ItemCount:   j.ItemCount,
		Error:       j.Error,
		StartedAt:   j.StartedAt,
		CompletedAt: j.CompletedAt,
		Result:      j.Result,
	}
}

// Fail marks the job failed and broadcasts the error.
func (j *ScanJob) Fail(err error) {
	j.mu.Lock()
	j.Error = err.Error()
	j.mu.Unlock()
	j.SetStatus(JobStatusFailed)
	j.SendEvent(JobEvent{Type: "failed", Message: err.Error()})
}

// Complete records the result and broadcasts completion.
func (j *ScanJob) Complete(itemCount int, result *ScanJobResult) {
	j.mu.Lock()
	j.ItemCount = itemCount
	j.Result = result
	j.Progress = 1
	j.mu.Unlock()
	j.SetStatus(JobStatusCompleted)
	j.SendEvent(JobEvent{Type: "completed", Data: result})
}

// SetProgress records scan progress and broadcasts it.
func (j *ScanJob) SetProgress(p float64) {
	j.mu.Lock()
	j.Progress = p
	j.mu.Unlock()
	j.SendEvent(JobEvent{Type: "progress", Data: p})
}

// Cancel cancels the scan job.
func (j *ScanJob) Cancel() {
	j.EventBroadcaster.Cancel()
	j.SetStatus(JobStatusCancelled)
}

// JobEvent represents an event from a job.
type JobEvent struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// EventBroadcaster provides listener management and event broadcasting for async jobs.
// Embed this in job structs to get AddListener, RemoveListener, and SendEvent methods.
type EventBroadcaster struct {
	cancel    context.CancelFunc
	listeners []chan JobEvent
	mu        sync.RWMutex
}

// BindContext derives a cancellable context for the job's work.
func (b *EventBroadcaster) BindContext(parent context.Context) context.Context {
	ctx, cancel := context.WithCancel(parent)
	b.mu.Lock()
	b.cancel = cancel
	b.mu.Unlock()
	return ctx
}

// AddListener adds an event listener.
func (b *EventBroadcaster) AddListener() chan JobEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan JobEvent, constants.EventChannelBuffer)
	b.listeners = append(b.listeners, ch)
	return ch
}

// RemoveListener removes an event listener.
func (b *EventBroadcaster) RemoveListener(ch chan JobEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, listener := range b.listeners {
		if listener == ch {
			b.listeners = append(b.listeners[:i], b.listeners[i+1:]...)
			close(ch)
			return
		}
	}
}

// SendEvent sends an event to all listeners.
func (b *EventBroadcaster) SendEvent(event JobEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, listener := range b.listeners {
		select {
		case listener <- event:
		default:
			// Listener buffer full, skip.
		}
	}
}

// Cancel cancels the job via context and sends a cancelled event.
func (b *EventBroadcaster) Cancel() {
	b.mu.RLock()
	cancel := b.cancel
	b.mu.RUnlock()
	if cancel != nil {
		cancel()
	}
	b.SendEvent(JobEvent{Type: "cancelled", Message: "Job cancelled by user"})
}

// SSEJob is the interface required by streamSSEEvents to stream job events via SSE.
type SSEJob interface {
	AddListener() chan JobEvent
	RemoveListener(ch chan JobEvent)
	GetStatus() JobStatus
}

// JobManager manages async scan jobs.
type JobManager struct {
	jobs map[string]*ScanJob
	mu   sync.RWMutex
}

// NewJobManager creates a new job manager.
func NewJobManager() *JobManager {
	return &JobManager{
		jobs: make(map[string]*ScanJob),
	}
}

// CreateJob creates a new scan job.
func (m *JobManager) CreateJob(directory, mode string) *ScanJob {
	job := &ScanJob{
		ID:        uuid.NewString(),
		Directory: directory,
		Mode:      mode,
		Status:    JobStatusPending,
		StartedAt: time.Now(),
	}

	m.mu.Lock()
	m.jobs[job.ID] = job
	m.mu.Unlock()

	return job
}

// GetJob retrieves a job by ID.
func (m *JobManager) GetJob(id string) *ScanJob {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.jobs[id]
}

// DeleteJob removes a job.
func (m *JobManager) DeleteJob(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.jobs, id)
}

// ListJobs returns all jobs.
func (m *JobManager) ListJobs() []*ScanJob {
	m.mu.RLock()
	defer m.mu.RUnlock()
	jobs := make([]*ScanJob, 0, len(m.jobs))
	for _, job := range m.jobs {
		jobs = append(jobs, job)
	}
	return jobs
}
