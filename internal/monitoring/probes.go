package monitoring

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"gorm.io/gorm"
)

const (
	defaultDatabaseTimeout = 2 * time.Second
	defaultJobMaxAge       = 48 * time.Hour
)

// DatabaseProbe pings the database behind db.
func DatabaseProbe(db *gorm.DB, timeout time.Duration) Probe {
	if timeout <= 0 {
		timeout = defaultDatabaseTimeout
	}
	return Probe{Name: "database", Run: func(ctx context.Context) Result {
		start := time.Now()
		if db == nil {
			return Result{Status: StatusDown, Details: "database not configured"}
		}

		sqlDB, err := db.DB()
		if err != nil {
			return ResultFromError("database", err, time.Since(start))
		}

		pingCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return ResultFromError("database", sqlDB.PingContext(pingCtx), time.Since(start))
	}}
}

// StreamCounter reports how many clients listen on a realtime stream.
type StreamCounter interface {
	Subscribers(stream string) int
}

// RealtimeProbe reports subscriber counts for streams. A missing hub degrades the probe.
func RealtimeProbe(hub StreamCounter, streams ...string) Probe {
	return Probe{Name: "realtime", Run: func(context.Context) Result {
		if hub == nil {
			return Result{Status: StatusDegraded, Details: "realtime hub unavailable"}
		}
		parts := make([]string, 0, len(streams))
		for _, stream := range streams {
			parts = append(parts, fmt.Sprintf("%s=%d", stream, hub.Subscribers(stream)))
		}
		return Result{Status: StatusUp, Details: strings.Join(parts, " ")}
	}}
}

// JobState describes the last outcome of a background job.
type JobState struct {
	Name                string    `json:"name"`
	Runs                int       `json:"runs"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	LastRunAt           time.Time `json:"last_run_at"`
	LastError           string    `json:"last_error,omitempty"`
}

// JobReporter exposes background job state.
type JobReporter interface {
	Jobs() []JobState
}

// JobsProbe fails when a job keeps failing and degrades when a job has not run
// within maxAge. Jobs that never ran are reported but do not affect the status.
func JobsProbe(reporter JobReporter, maxAge time.Duration, now func() time.Time) Probe {
	if maxAge <= 0 {
		maxAge = defaultJobMaxAge
	}
	if now == nil {
		now = time.Now
	}
	return Probe{Name: "maintenance", Run: func(context.Context) Result {
		if reporter == nil {
			return Result{Status: StatusUp, Details: "maintenance disabled"}
		}

		jobs := reporter.Jobs()
		sort.Slice(jobs, func(i, j int) bool { return jobs[i].Name < jobs[j].Name })

		status := StatusUp
		var notes []string
		for _, job := range jobs {
			switch {
			case job.Runs == 0:
				notes = append(notes, job.Name+": pending first run")
			case job.ConsecutiveFailures > 0:
				status = worst(status, StatusDown)
				notes = append(notes, fmt.Sprintf("%s: %d consecutive failures", job.Name, job.ConsecutiveFailures))
			case now().Sub(job.LastRunAt) > maxAge:
				status = worst(status, StatusDegraded)
				notes = append(notes, job.Name+": stale since "+job.LastRunAt.UTC().Format(time.RFC3339))
			}
		}
		return Result{Status: status, Details: strings.Join(notes, "; ")}
	}}
}
