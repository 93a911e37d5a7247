package handler

import (
	"sync"
	"time"

	"github.com/codechat-ai/codechat/internal/domain"
)

// IngestStatus represents the current state of a repository load job.
type IngestStatus struct {
	ID          string                 `json:"id"`
	SessionID   string                 `json:"session_id"`
	URL         string                 `json:"url"`
	Status      string                 `json:"status"` // running, complete, error
	Stage       string                 `json:"stage"`  // fetching, chunking, embedding, indexing
	Done        int                    `json:"done"`
	Total       int                    `json:"total"`
	Error       string                 `json:"error,omitempty"`
	Repository  *domain.RepositoryInfo `json:"repository,omitempty"`
	StartedAt   time.Time              `json:"started_at"`
	CompletedAt time.Time              `json:"completed_at,omitempty"`
}

// IngestTracker manages repository load jobs in memory.
type IngestTracker struct {
	mu   sync.RWMutex
	jobs map[string]*IngestStatus
	subs map[string][]chan IngestStatus // subscribers per job
}

// NewIngestTracker creates a new load-job tracker.
func NewIngestTracker() *IngestTracker {
	return &IngestTracker{
		jobs: make(map[string]*IngestStatus),
		subs: make(map[string][]chan IngestStatus),
	}
}

// Create registers a new running job.
func (t *IngestTracker) Create(id, sessionID, url string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.jobs[id] = &IngestStatus{
		ID:        id,
		SessionID: sessionID,
		URL:       url,
		Status:    "running",
		Stage:     "fetching",
		StartedAt: time.Now(),
	}
}

// Progress records stage progress and notifies subscribers.
func (t *IngestTracker) Progress(id, stage string, done, total int) {
	t.update(id, func(job *IngestStatus) {
		job.Stage = stage
		job.Done = done
		job.Total = total
	})
}

// Complete marks a job finished and attaches the loaded repository info.
func (t *IngestTracker) Complete(id string, repo *domain.RepositoryInfo) {
	t.update(id, func(job *IngestStatus) {
		job.Status = "complete"
		job.Repository = repo
		job.CompletedAt = time.Now()
	})
}

// Fail marks a job failed.
func (t *IngestTracker) Fail(id string, err error) {
	t.update(id, func(job *IngestStatus) {
		job.Status = "error"
		job.Error = err.Error()
		job.CompletedAt = time.Now()
	})
}

func (t *IngestTracker) update(id string, apply func(*IngestStatus)) {
	t.mu.Lock()
	defer t.mu.Unlock()

	job, ok := t.jobs[id]
	if !ok {
		return
	}
	apply(job)
	snapshot := *job

	// Notify under the lock so Unsubscribe cannot close a channel
	// mid-send. A full subscriber sheds its oldest buffered update to
	// make room: the latest status supersedes stale progress, and the
	// terminal complete/error event must always reach the stream.
	for _, ch := range t.subs[id] {
		select {
		case ch <- snapshot:
			continue
		default:
		}
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snapshot:
		default:
		}
	}
}

// Get returns a job's status.
func (t *IngestTracker) Get(id string) (*IngestStatus, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	job, ok := t.jobs[id]
	if !ok {
		return nil, false
	}
	snapshot := *job
	return &snapshot, true
}

// Subscribe returns a channel that receives job updates.
func (t *IngestTracker) Subscribe(id string) chan IngestStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	ch := make(chan IngestStatus, 10)
	t.subs[id] = append(t.subs[id], ch)
	return ch
}

// Unsubscribe removes a channel from subscribers.
func (t *IngestTracker) Unsubscribe(id string, ch chan IngestStatus) {
	t.mu.Lock()
	defer t.mu.Unlock()
	subs := t.subs[id]
	for i, s := range subs {
		if s == ch {
			t.subs[id] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	close(ch)
}
