package models

import (
	"bytes"
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Job status values.
const (
	JobRunning   = "running"
	JobCompleted = "completed"
	JobFailed    = "failed"
	JobCancelled = "cancelled"
)

// BundleSummary describes what an extraction job produced.
type BundleSummary struct {
	Folder    string       `json:"folder"`
	Files     []string     `json:"files"`
	Resources map[Kind]int `json:"resources"` // resource count per kind
	Flags     []Flag       `json:"flags,omitempty"`
	Master    string       `json:"master,omitempty"`
}

// Job represents an async extraction started through the HTTP API.
type Job struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"` // "extract"
	Service    string         `json:"service"`
	Status     string         `json:"status"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt *time.Time     `json:"finished_at,omitempty"`
	Error      string         `json:"error,omitempty"`
	Output     []string       `json:"output"`
	Result     *BundleSummary `json:"result,omitempty"`
	mu         sync.Mutex
	partial    bytes.Buffer
	cancel     context.CancelFunc
}

// AppendLog adds a log line to the job output.
func (j *Job) AppendLog(line string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Output = append(j.Output, line)
}

// Write implements io.Writer so a log handler can target the job directly.
// Input is split on newlines; an unterminated tail is kept until the next write.
func (j *Job) Write(p []byte) (int, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.partial.Write(p)
	for {
		line, err := j.partial.ReadString('\n')
		if err != nil {
			// no newline yet: put the fragment back
			j.partial.Reset()
			j.partial.WriteString(line)
			break
		}
		j.Output = append(j.Output, strings.TrimRight(line, "\r\n"))
	}
	return len(p), nil
}

// LogsSince returns log lines starting from the given index.
func (j *Job) LogsSince(offset int) []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	if offset >= len(j.Output) {
		return nil
	}
	lines := make([]string, len(j.Output)-offset)
	copy(lines, j.Output[offset:])
	return lines
}

// State returns the current status under lock.
func (j *Job) State() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.Status
}

// Done reports whether the job reached a terminal status.
func (j *Job) Done() bool {
	return j.State() != JobRunning
}

// SetCancel registers the function that aborts the job's work.
func (j *Job) SetCancel(cancel context.CancelFunc) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.cancel = cancel
}

// Cancel aborts a running job.
func (j *Job) Cancel() {
	j.mu.Lock()
	cancel := j.cancel
	if j.Status == JobRunning {
		j.Status = JobCancelled
		now := time.Now()
		j.FinishedAt = &now
	}
	j.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Complete marks the job as completed with its result.
func (j *Job) Complete(result *BundleSummary) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.Status != JobRunning {
		return
	}
	j.Status = JobCompleted
	j.Result = result
	now := time.Now()
	j.FinishedAt = &now
}

// Fail marks the job as failed with an error message.
func (j *Job) Fail(err string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.Status != JobRunning {
		return
	}
	j.Status = JobFailed
	j.Error = err
	now := time.Now()
	j.FinishedAt = &now
}

// JobStore is an in-memory thread-safe store for jobs.
type JobStore struct {
	mu   sync.RWMutex
	jobs map[string]*Job
}

// NewJobStore creates an empty job store.
func NewJobStore() *JobStore {
	return &JobStore{jobs: make(map[string]*Job)}
}

// Create adds a new job, assigning it a UUID.
func (s *JobStore) Create(jobType, service string) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	j := &Job{
		ID:        uuid.New().String(),
		Type:      jobType,
		Service:   service,
		Status:    JobRunning,
		StartedAt: time.Now(),
		Output:    []string{},
	}
	s.jobs[j.ID] = j
	return j
}

// Get returns a job by ID.
func (s *JobStore) Get(id string) *Job {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.jobs[id]
}

// List returns all jobs, most recent first.
func (s *JobStore) List() []*Job {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		result = append(result, j)
	}
	sort.Slice(result, func(a, b int) bool {
		return result[a].StartedAt.After(result[b].StartedAt)
	})
	return result
}
