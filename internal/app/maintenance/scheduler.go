package maintenance

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/charlesng35/fratpos/internal/auditctx"
	"github.com/charlesng35/fratpos/internal/monitoring"
	"github.com/charlesng35/fratpos/pkg/logger"
)

const (
	defaultAuditRetentionDays = 90
	defaultObligationSpec     = "@daily"
	defaultAuditSpec          = "@daily"

	jobObligations = "recurring_obligations"
	jobAudit       = "audit_retention"
)

// ObligationApplier charges recurring user obligations that are due at now.
type ObligationApplier interface {
	ApplyRecurring(ctx context.Context, now time.Time) (int, error)
}

// AuditPruner deletes audit entries older than the retention window.
type AuditPruner interface {
	CleanupOlderThan(ctx context.Context, days int) (int64, error)
}

// Scheduler runs background jobs: charging recurring obligations and pruning
// stale audit logs.
type Scheduler struct {
	obligations ObligationApplier
	audit       AuditPruner
	cron        *cron.Cron
	now         func() time.Time
	log         *zap.Logger
	retention   int

	obligationSchedule string
	auditSchedule      string

	mu   sync.Mutex
	jobs map[string]*monitoring.JobState
}

// Option customises the Scheduler.
type Option func(*Scheduler)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(s *Scheduler) {
		if c != nil {
			s.cron = c
		}
	}
}

// WithNow overrides the clock passed to the obligation job.
func WithNow(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// WithAuditRetentionDays adjusts how long audit logs are retained before cleanup.
func WithAuditRetentionDays(days int) Option {
	return func(s *Scheduler) {
		if days > 0 {
			s.retention = days
		}
	}
}

// WithObligationSchedule overrides the cron expression for recurring obligations.
func WithObligationSchedule(expr string) Option {
	return func(s *Scheduler) {
		if expr != "" {
			s.obligationSchedule = expr
		}
	}
}

// WithAuditSchedule overrides the cron expression for audit retention enforcement.
func WithAuditSchedule(expr string) Option {
	return func(s *Scheduler) {
		if expr != "" {
			s.auditSchedule = expr
		}
	}
}

// NewScheduler constructs a Scheduler. A nil dependency skips its job.
func NewScheduler(obligations ObligationApplier, audit AuditPruner, opts ...Option) *Scheduler {
	s := &Scheduler{
		obligations:        obligations,
		audit:              audit,
		now:                time.Now,
		retention:          defaultAuditRetentionDays,
		obligationSchedule: defaultObligationSpec,
		auditSchedule:      defaultAuditSpec,
		log:                logger.WithModule("maintenance"),
		jobs:               make(map[string]*monitoring.JobState),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.cron == nil {
		s.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}

	return s
}

func (s *Scheduler) enabled() bool {
	return s.obligations != nil || s.audit != nil
}

// Start registers the jobs with cron and launches it when at least one job is configured.
func (s *Scheduler) Start() error {
	if !s.enabled() {
		return nil
	}

	if s.obligations != nil {
		if _, err := s.cron.AddFunc(s.obligationSchedule, func() {
			if err := s.applyObligations(jobContext()); err != nil {
				s.log.Warn("recurring obligations failed", zap.Error(err))
			}
		}); err != nil {
			return err
		}
	}

	if s.audit != nil {
		if _, err := s.cron.AddFunc(s.auditSchedule, func() {
			if err := s.pruneAudit(jobContext()); err != nil {
				s.log.Warn("audit cleanup failed", zap.Error(err))
			}
		}); err != nil {
			return err
		}
	}

	s.cron.Start()
	return nil
}

// Stop halts the underlying scheduler. The returned context is done once running jobs finish.
func (s *Scheduler) Stop() context.Context {
	if s.cron == nil {
		return context.Background()
	}
	return s.cron.Stop()
}

// RunOnce executes every configured job sequentially and joins their errors.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, ok := auditctx.FromContext(ctx); !ok {
		ctx = auditctx.WithActor(ctx, auditctx.System)
	}

	var errs error

	if s.obligations != nil {
		errs = multierr.Append(errs, s.applyObligations(ctx))
	}

	if s.audit != nil {
		errs = multierr.Append(errs, s.pruneAudit(ctx))
	}

	return errs
}

// Jobs reports the state of every job that has been configured.
func (s *Scheduler) Jobs() []monitoring.JobState {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]monitoring.JobState, 0, 2)
	for _, name := range s.configuredJobs() {
		state := monitoring.JobState{Name: name}
		if recorded, ok := s.jobs[name]; ok {
			state = *recorded
		}
		out = append(out, state)
	}
	return out
}

func (s *Scheduler) configuredJobs() []string {
	var names []string
	if s.obligations != nil {
		names = append(names, jobObligations)
	}
	if s.audit != nil {
		names = append(names, jobAudit)
	}
	return names
}

func (s *Scheduler) record(name string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.jobs[name]
	if !ok {
		state = &monitoring.JobState{Name: name}
		s.jobs[name] = state
	}
	state.Runs++
	state.LastRunAt = s.now()
	if err != nil {
		state.ConsecutiveFailures++
		state.LastError = err.Error()
		return
	}
	state.ConsecutiveFailures = 0
	state.LastError = ""
}

// jobContext attributes audit entries written by scheduled runs to the system actor.
func jobContext() context.Context {
	return auditctx.WithActor(context.Background(), auditctx.System)
}

func (s *Scheduler) applyObligations(ctx context.Context) error {
	applied, err := s.obligations.ApplyRecurring(ctx, s.now())
	s.record(jobObligations, err)
	if err != nil {
		return err
	}
	if applied > 0 {
		s.log.Info("charged recurring obligations", zap.Int("count", applied))
	}
	return nil
}

func (s *Scheduler) pruneAudit(ctx context.Context) error {
	removed, err := s.audit.CleanupOlderThan(ctx, s.retention)
	s.record(jobAudit, err)
	if err != nil {
		return err
	}
	if removed > 0 {
		s.log.Info("pruned audit logs", zap.Int64("count", removed), zap.Int("retention_days", s.retention))
	}
	return nil
}
