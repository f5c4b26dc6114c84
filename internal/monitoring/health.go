// Package monitoring evaluates liveness and readiness probes and tracks the
// outcome of background maintenance jobs.
package monitoring

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
)

type ProbeStatus string

const (
	StatusUp       ProbeStatus = "up"
	StatusDown     ProbeStatus = "down"
	StatusDegraded ProbeStatus = "degraded"
)

const defaultCheckTimeout = 5 * time.Second

// ProbeResult is the outcome of one dependency check.
type ProbeResult struct {
	Component string        `json:"component"`
	Status    ProbeStatus   `json:"status"`
	Details   string        `json:"details,omitempty"`
	Duration  time.Duration `json:"duration"`
}

// HealthReport aggregates probe results. Status is the worst component
// status; Success is true only when every component is up.
type HealthReport struct {
	Success   bool          `json:"success"`
	Status    ProbeStatus   `json:"status"`
	Version   string        `json:"version,omitempty"`
	Uptime    string        `json:"uptime,omitempty"`
	CheckedAt time.Time     `json:"checked_at"`
	Checks    []ProbeResult `json:"checks"`
}

// Check is a named dependency probe.
type Check struct {
	Name string
	Run  func(ctx context.Context) ProbeResult
}

// NewCheck builds a Check. A nil fn always reports down.
func NewCheck(name string, fn func(ctx context.Context) ProbeResult) Check {
	if fn == nil {
		fn = func(context.Context) ProbeResult {
			return ProbeResult{Status: StatusDown, Details: "probe not implemented"}
		}
	}
	return Check{Name: name, Run: fn}
}

// HealthOption configures a HealthManager.
type HealthOption func(*HealthManager)

// WithVersion stamps reports with the running plugin version.
func WithVersion(version string) HealthOption {
	return func(m *HealthManager) { m.version = version }
}

// WithCheckTimeout bounds how long a single probe may run before it is
// reported degraded.
func WithCheckTimeout(d time.Duration) HealthOption {
	return func(m *HealthManager) {
		if d > 0 {
			m.timeout = d
		}
	}
}

// WithClock overrides the clock used for uptime and timestamps.
func WithClock(now func() time.Time) HealthOption {
	return func(m *HealthManager) {
		if now != nil {
			m.now = now
		}
	}
}

// HealthManager coordinates liveness and readiness probes.
type HealthManager struct {
	livenessChecks  []Check
	readinessChecks []Check
	version         string
	timeout         time.Duration
	now             func() time.Time
	started         time.Time
}

func NewHealthManager(opts ...HealthOption) *HealthManager {
	m := &HealthManager{timeout: defaultCheckTimeout, now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	m.started = m.now()
	return m
}

func (m *HealthManager) RegisterLiveness(check Check) {
	if check.Name == "" {
		return
	}
	m.livenessChecks = append(m.livenessChecks, check)
}

func (m *HealthManager) RegisterReadiness(check Check) {
	if check.Name == "" {
		return
	}
	m.readinessChecks = append(m.readinessChecks, check)
}

func (m *HealthManager) EvaluateLiveness(ctx context.Context) HealthReport {
	return m.evaluate(ctx, m.livenessChecks)
}

func (m *HealthManager) EvaluateReadiness(ctx context.Context) HealthReport {
	return m.evaluate(ctx, m.readinessChecks)
}

func (m *HealthManager) evaluate(ctx context.Context, checks []Check) HealthReport {
	if ctx == nil {
		ctx = context.Background()
	}
	results := make([]ProbeResult, len(checks))

	var group errgroup.Group
	for i, check := range checks {
		group.Go(func() error {
			results[i] = m.runCheck(ctx, check)
			return nil
		})
	}
	_ = group.Wait()

	report := summarise(results)
	report.Version = m.version
	now := m.now()
	report.CheckedAt = now.UTC()
	report.Uptime = now.Sub(m.started).Truncate(time.Second).String()
	return report
}

// runCheck executes check under the manager timeout. A probe that ignores its
// context is abandoned once the deadline passes.
func (m *HealthManager) runCheck(ctx context.Context, check Check) ProbeResult {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	start := time.Now()
	done := make(chan ProbeResult, 1)
	go func() {
		done <- safeRun(ctx, check)
	}()

	var result ProbeResult
	select {
	case result = <-done:
	case <-ctx.Done():
		result = ProbeResult{
			Status:  StatusDegraded,
			Details: fmt.Sprintf("timed out after %s", m.timeout),
		}
	}

	if result.Status == "" {
		result.Status = StatusDown
	}
	if result.Duration == 0 {
		result.Duration = time.Since(start)
	}
	result.Component = check.Name
	return result
}

func safeRun(ctx context.Context, check Check) (result ProbeResult) {
	defer func() {
		if rec := recover(); rec != nil {
			details := "panic recovered"
			switch v := rec.(type) {
			case string:
				details = v
			case error:
				details = v.Error()
			}
			result = ProbeResult{Status: StatusDown, Details: details}
		}
	}()
	return check.Run(ctx)
}

// MergeReports combines liveness and readiness results into one payload.
func MergeReports(live, ready HealthReport) HealthReport {
	checks := append([]ProbeResult(nil), live.Checks...)
	checks = append(checks, ready.Checks...)

	merged := summarise(checks)
	merged.Version = ready.Version
	merged.Uptime = ready.Uptime
	merged.CheckedAt = ready.CheckedAt
	if merged.CheckedAt.Before(live.CheckedAt) {
		merged.CheckedAt = live.CheckedAt
	}
	return merged
}

func summarise(checks []ProbeResult) HealthReport {
	if checks == nil {
		checks = []ProbeResult{}
	}
	report := HealthReport{Success: true, Status: StatusUp, Checks: checks}
	for _, r := range checks {
		switch r.Status {
		case StatusDown:
			report.Status = StatusDown
			report.Success = false
		case StatusDegraded:
			if report.Status != StatusDown {
				report.Status = StatusDegraded
			}
			report.Success = false
		}
	}
	return report
}

// ResultFromError maps err onto a probe result. Deadlines and cancellations
// count as degraded, anything else as down.
func ResultFromError(component string, err error, duration time.Duration) ProbeResult {
	if duration < 0 {
		duration = 0
	}
	if err == nil {
		return ProbeResult{Component: component, Status: StatusUp, Duration: duration}
	}

	status := StatusDown
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		status = StatusDegraded
	}
	return ProbeResult{
		Component: component,
		Status:    status,
		Details:   err.Error(),
		Duration:  duration,
	}
}
