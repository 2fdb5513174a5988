package web

import (
	"context"
	"crypto/rand"
	"fmt"
	"sort"
	"sync"
	"time"

	"coverfetch/internal/albumcover"
)

// JobStatus represents the current status of a job
type JobStatus string

const (
	StatusPending   JobStatus = "pending"
	StatusRunning   JobStatus = "running"
	StatusCompleted JobStatus = "completed"
	StatusFailed    JobStatus = "failed"
	StatusCancelled JobStatus = "cancelled"
)

// Done reports whether the status is terminal.
func (s JobStatus) Done() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// Job is one cover search submitted through the API.
type Job struct {
	ID         string
	Artist     string
	Album      string
	SearchOnly bool
	Status     JobStatus
	Results    []albumcover.SearchResult
	Cover      *albumcover.Cover
	CoverData  []byte
	Stats      albumcover.Statistics
	Error      string

	CreatedAt   time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
	Cancel      context.CancelFunc
}

// JobManager keeps jobs in memory and fans updates out to subscribers.
// Getters return copies.
type JobManager struct {
	jobs      map[string]*Job
	mu        sync.RWMutex
	listeners map[string][]chan Job
	totals    albumcover.Statistics
	now       func() time.Time
}

const (
	jobRetention    = 1 * time.Hour
	cleanupInterval = 10 * time.Minute
)

// NewJobManager creates a new job manager
func NewJobManager() *JobManager {
	return &JobManager{
		jobs:      make(map[string]*Job),
		listeners: make(map[string][]chan Job),
		now:       time.Now,
	}
}

// StartCleanup starts a background goroutine that removes old finished jobs.
// Stops when ctx is cancelled.
func (jm *JobManager) StartCleanup(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(cleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				jm.cleanup()
			}
		}
	}()
}

func (jm *JobManager) cleanup() {
	jm.mu.Lock()
	defer jm.mu.Unlock()

	cutoff := jm.now().Add(-jobRetention)
	for id, job := range jm.jobs {
		if job.CompletedAt != nil && job.CompletedAt.Before(cutoff) {
			delete(jm.jobs, id)
			for _, ch := range jm.listeners[id] {
				close(ch)
			}
			delete(jm.listeners, id)
		}
	}
}

// CreateJob registers a pending job. cancel stops the job's search and may
// be nil.
func (jm *JobManager) CreateJob(artist, album string, searchOnly bool, cancel context.CancelFunc) Job {
	jm.mu.Lock()
	defer jm.mu.Unlock()

	job := &Job{
		ID:         generateJobID(),
		Artist:     artist,
		Album:      album,
		SearchOnly: searchOnly,
		Status:     StatusPending,
		CreatedAt:  jm.now(),
		Cancel:     cancel,
	}

	jm.jobs[job.ID] = job
	return *job
}

// GetJob retrieves a job by ID
func (jm *JobManager) GetJob(id string) (Job, error) {
	jm.mu.RLock()
	defer jm.mu.RUnlock()

	job, ok := jm.jobs[id]
	if !ok {
		return Job{}, fmt.Errorf("job not found: %s", id)
	}
	return *job, nil
}

// ListJobs returns all jobs, oldest first.
func (jm *JobManager) ListJobs() []Job {
	jm.mu.RLock()
	defer jm.mu.RUnlock()

	jobs := make([]Job, 0, len(jm.jobs))
	for _, job := range jm.jobs {
		jobs = append(jobs, *job)
	}
	sort.Slice(jobs, func(i, j int) bool {
		if !jobs[i].CreatedAt.Equal(jobs[j].CreatedAt) {
			return jobs[i].CreatedAt.Before(jobs[j].CreatedAt)
		}
		return jobs[i].ID < jobs[j].ID
	})
	return jobs
}

// Totals returns the statistics summed over every finished job, including
// purged ones.
func (jm *JobManager) Totals() albumcover.Statistics {
	jm.mu.RLock()
	defer jm.mu.RUnlock()

	var st albumcover.Statistics
	st.Add(jm.totals)
	return st
}

// UpdateJob applies fn to a job. Updates to a finished job are ignored so a
// late result cannot overwrite a cancellation.
func (jm *JobManager) UpdateJob(id string, fn func(*Job)) error {
	jm.mu.Lock()
	defer jm.mu.Unlock()

	job, ok := jm.jobs[id]
	if !ok {
		return fmt.Errorf("job not found: %s", id)
	}
	if job.Status.Done() {
		return nil
	}

	oldStatus := job.Status
	fn(job)

	if oldStatus != job.Status {
		switch job.Status {
		case StatusRunning:
			if job.StartedAt == nil {
				now := jm.now()
				job.StartedAt = &now
			}
		case StatusCompleted, StatusFailed, StatusCancelled:
			if job.CompletedAt == nil {
				now := jm.now()
				job.CompletedAt = &now
			}
			jm.totals.Add(job.Stats)
		}
	}

	jm.notifyListeners(id, *job)
	return nil
}

// Subscribe subscribes to job updates
func (jm *JobManager) Subscribe(jobID string) <-chan Job {
	jm.mu.Lock()
	defer jm.mu.Unlock()

	ch := make(chan Job, 10)
	jm.listeners[jobID] = append(jm.listeners[jobID], ch)
	return ch
}

// Unsubscribe removes a listener
func (jm *JobManager) Unsubscribe(jobID string, ch <-chan Job) {
	jm.mu.Lock()
	defer jm.mu.Unlock()

	listeners := jm.listeners[jobID]
	for i, listener := range listeners {
		if listener == ch {
			jm.listeners[jobID] = append(listeners[:i], listeners[i+1:]...)
			close(listener)
			break
		}
	}
}

// notifyListeners sends updates to all listeners. Slow listeners miss updates.
func (jm *JobManager) notifyListeners(jobID string, job Job) {
	for _, ch := range jm.listeners[jobID] {
		select {
		case ch <- job:
		default:
		}
	}
}

func generateJobID() string {
	b := make([]byte, 8)
	rand.Read(b)
	return fmt.Sprintf("job_%x", b)
}
