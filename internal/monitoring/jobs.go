package monitoring

import (
	"sort"
	"sync"
	"time"

	"github.com/charlesng35/snippets/pkg/metrics"
)

// JobSummary describes the recent history of one background job.
type JobSummary struct {
	Job                 string        `json:"job"`
	TotalRuns           uint64        `json:"total_runs"`
	Failures            uint64        `json:"failures"`
	ConsecutiveFailures uint64        `json:"consecutive_failures"`
	LastRunAt           time.Time     `json:"last_run_at"`
	LastDuration        time.Duration `json:"last_duration"`
	LastError           string        `json:"last_error,omitempty"`
}

// JobTracker records maintenance job outcomes for the health probes.
type JobTracker struct {
	mu   sync.RWMutex
	jobs map[string]*JobSummary
	now  func() time.Time
}

// NewJobTracker constructs an empty tracker.
func NewJobTracker() *JobTracker {
	return &JobTracker{jobs: make(map[string]*JobSummary), now: time.Now}
}

// Register makes a job visible before its first run.
func (t *JobTracker) Register(job string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.jobs[job]; !ok {
		t.jobs[job] = &JobSummary{Job: job}
	}
}

// Record stores the outcome of a job run.
func (t *JobTracker) Record(job string, err error, duration time.Duration) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	metrics.MaintenanceRuns.WithLabelValues(job, result).Inc()

	t.mu.Lock()
	defer t.mu.Unlock()

	summary, ok := t.jobs[job]
	if !ok {
		summary = &JobSummary{Job: job}
		t.jobs[job] = summary
	}
	summary.TotalRuns++
	summary.LastRunAt = t.now()
	summary.LastDuration = duration
	if err != nil {
		summary.Failures++
		summary.ConsecutiveFailures++
		summary.LastError = err.Error()
		return
	}
	summary.ConsecutiveFailures = 0
	summary.LastError = ""
}

// Jobs returns a sorted snapshot of every known job.
func (t *JobTracker) Jobs() []JobSummary {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]JobSummary, 0, len(t.jobs))
	for _, summary := range t.jobs {
		out = append(out, *summary)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Job < out[j].Job })
	return out
}
