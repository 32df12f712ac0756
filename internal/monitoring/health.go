package monitoring

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Status is the outcome of a probe or a whole report.
type Status string

const (
	StatusUp       Status = "up"
	StatusDown     Status = "down"
	StatusDegraded Status = "degraded"
)

// Result is a single probe outcome.
type Result struct {
	Component string        `json:"component"`
	Status    Status        `json:"status"`
	Details   string        `json:"details,omitempty"`
	Duration  time.Duration `json:"duration"`
}

// Report aggregates probe results. The report status is the worst probe status.
type Report struct {
	Success bool     `json:"success"`
	Status  Status   `json:"status"`
	Checks  []Result `json:"checks"`
}

// Probe checks one dependency.
type Probe struct {
	Name string
	Run  func(ctx context.Context) Result
}

// Health holds the liveness and readiness probes served on the health endpoints.
type Health struct {
	liveness  []Probe
	readiness []Probe
}

// NewHealth constructs an empty Health.
func NewHealth() *Health {
	return &Health{}
}

// AddLiveness registers a liveness probe. Probes without a name or function are ignored.
func (h *Health) AddLiveness(p Probe) {
	if p.Name == "" || p.Run == nil {
		return
	}
	h.liveness = append(h.liveness, p)
}

// AddReadiness registers a readiness probe. Probes without a name or function are ignored.
func (h *Health) AddReadiness(p Probe) {
	if p.Name == "" || p.Run == nil {
		return
	}
	h.readiness = append(h.readiness, p)
}

// Live runs the liveness probes.
func (h *Health) Live(ctx context.Context) Report {
	return evaluate(ctx, h.liveness)
}

// Ready runs the readiness probes.
func (h *Health) Ready(ctx context.Context) Report {
	return evaluate(ctx, h.readiness)
}

func evaluate(ctx context.Context, probes []Probe) Report {
	report := Report{Success: true, Status: StatusUp, Checks: make([]Result, 0, len(probes))}
	for _, probe := range probes {
		result := run(ctx, probe)
		report.Checks = append(report.Checks, result)
		report.Status = worst(report.Status, result.Status)
	}
	report.Success = report.Status == StatusUp
	return report
}

func run(ctx context.Context, probe Probe) (result Result) {
	if ctx == nil {
		ctx = context.Background()
	}
	start := time.Now()

	defer func() {
		if rec := recover(); rec != nil {
			result = Result{Status: StatusDown, Details: fmt.Sprint(rec)}
		}
		if result.Status == "" {
			result.Status = StatusDown
		}
		if result.Duration == 0 {
			result.Duration = time.Since(start)
		}
		result.Component = probe.Name
	}()

	return probe.Run(ctx)
}

func worst(a, b Status) Status {
	switch {
	case a == StatusDown || b == StatusDown:
		return StatusDown
	case a == StatusDegraded || b == StatusDegraded:
		return StatusDegraded
	default:
		return StatusUp
	}
}

// ResultFromError maps err onto a Result. Timeouts and cancellations degrade
// rather than fail the component.
func ResultFromError(component string, err error, duration time.Duration) Result {
	if duration < 0 {
		duration = 0
	}
	if err == nil {
		return Result{Component: component, Status: StatusUp, Duration: duration}
	}

	status := StatusDown
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		status = StatusDegraded
	}
	return Result{Component: component, Status: status, Details: err.Error(), Duration: duration}
}
