package service

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/Safi-ullah-majid/Molecular-Complex-Analysis/config"
	"github.com/Safi-ullah-majid/Molecular-Complex-Analysis/model"
)

// JobLedger is the in-memory record of analysis jobs. Each job has a
// single writer (the pipeline goroutine bound to it) and any number of
// concurrent readers (status polls); the ledger serializes access with
// a RWMutex. Terminal states are immutable and progress never moves
// backwards.
type JobLedger struct {
	jobs    map[string]*model.AnalysisJob
	mu      sync.RWMutex
	maxJobs int // Maximum jobs to keep, 0 = unlimited
}

// NewJobLedger creates a ledger bound by the configured job cap.
func NewJobLedger(cfg *config.StoreConfig) *JobLedger {
	maxJobs := cfg.MaxJobs
	if maxJobs < 0 {
		maxJobs = 0
	}
	slog.Info("job ledger initialized", "max_jobs", maxJobs)
	return &JobLedger{
		jobs:    make(map[string]*model.AnalysisJob),
		maxJobs: maxJobs,
	}
}

// Save inserts or replaces a job record.
func (l *JobLedger) Save(job *model.AnalysisJob) {
	l.mu.Lock()
	defer l.mu.Unlock()

	job.UpdatedAt = time.Now()
	l.jobs[job.ID] = job

	l.cleanupIfNeeded()
}

// Get returns a copy of the job, or nil when unknown. Copying keeps
// readers isolated from the writer goroutine.
func (l *JobLedger) Get(id string) *model.AnalysisJob {
	l.mu.RLock()
	defer l.mu.RUnlock()

	j, ok := l.jobs[id]
	if !ok {
		return nil
	}
	cp := *j
	return &cp
}

// GetByTenant returns copies of all jobs owned by the tenant, newest
// first.
func (l *JobLedger) GetByTenant(tenant string) []*model.AnalysisJob {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var result []*model.AnalysisJob
	for _, j := range l.jobs {
		if j.Tenant == tenant {
			cp := *j
			result = append(result, &cp)
		}
	}
	sort.Slice(result, func(i, k int) bool {
		return result[i].CreatedAt.After(result[k].CreatedAt)
	})
	return result
}

// MarkProcessing moves a pending job into the processing state.
func (l *JobLedger) MarkProcessing(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if j, ok := l.jobs[id]; ok && !j.Terminal() {
		j.Status = model.StatusProcessing
		j.UpdatedAt = time.Now()
	}
}

// UpdateProgress advances progress and message for a running job.
// Updates against terminal jobs are ignored and progress is clamped so
// it never decreases.
func (l *JobLedger) UpdateProgress(id string, progress int, message string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	j, ok := l.jobs[id]
	if !ok || j.Terminal() {
		return
	}
	if progress > j.Progress {
		j.Progress = progress
	}
	j.Message = message
	j.UpdatedAt = time.Now()
}

// MarkCompleted records a successful terminal state with its result
// bundle. A no-op when the job is already terminal.
func (l *JobLedger) MarkCompleted(id string, result any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	j, ok := l.jobs[id]
	if !ok || j.Terminal() {
		return
	}
	j.Status = model.StatusCompleted
	j.Progress = 100
	j.Message = "Complete!"
	j.Result = result
	j.UpdatedAt = time.Now()
}

// MarkFailed records a failed terminal state. A no-op when the job is
// already terminal.
func (l *JobLedger) MarkFailed(id string, errMsg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	j, ok := l.jobs[id]
	if !ok || j.Terminal() {
		return
	}
	j.Status = model.StatusFailed
	j.ErrorMsg = errMsg
	j.Message = "Failed: " + errMsg
	j.UpdatedAt = time.Now()
}

// Delete removes a job record.
func (l *JobLedger) Delete(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.jobs, id)
}

// Count returns the number of jobs in the ledger.
func (l *JobLedger) Count() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.jobs)
}

// ActiveCount returns the number of jobs currently processing.
func (l *JobLedger) ActiveCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	n := 0
	for _, j := range l.jobs {
		if j.Status == model.StatusProcessing {
			n++
		}
	}
	return n
}

// cleanupIfNeeded removes oldest jobs if the ledger exceeds maxJobs.
// Terminal jobs are evicted before active ones: a job that is still
// processing has a goroutine writing progress into it, and must not
// disappear under that goroutine just because it is old.
// Must be called with lock held.
func (l *JobLedger) cleanupIfNeeded() {
	if l.maxJobs <= 0 {
		return // Unlimited
	}
	if len(l.jobs) <= l.maxJobs {
		return
	}

	var terminal, active []*model.AnalysisJob
	for _, j := range l.jobs {
		if j.Terminal() {
			terminal = append(terminal, j)
		} else {
			active = append(active, j)
		}
	}
	oldestFirst := func(jobs []*model.AnalysisJob) {
		sort.Slice(jobs, func(i, k int) bool {
			return jobs[i].CreatedAt.Before(jobs[k].CreatedAt)
		})
	}
	oldestFirst(terminal)
	oldestFirst(active)

	candidates := append(terminal, active...)
	removeCount := len(candidates) - l.maxJobs
	for i := 0; i < removeCount; i++ {
		slog.Info("auto-cleaning old job",
			"job_id", candidates[i].ID,
			"status", candidates[i].Status,
			"created_at", candidates[i].CreatedAt,
		)
		delete(l.jobs, candidates[i].ID)
	}
}
