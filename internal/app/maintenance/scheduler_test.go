package maintenance

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	testutil "github.com/charlesng35/fratpos/internal/database/testutil"
	"github.com/charlesng35/fratpos/internal/models"
	"github.com/charlesng35/fratpos/internal/services"
)

type fakeApplier struct {
	mu    sync.Mutex
	calls []time.Time
	err   error
}

func (f *fakeApplier) ApplyRecurring(_ context.Context, now time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, now)
	return len(f.calls), f.err
}

type fakePruner struct {
	days []int
	err  error
}

func (f *fakePruner) CleanupOlderThan(_ context.Context, days int) (int64, error) {
	f.days = append(f.days, days)
	return 0, f.err
}

func TestSchedulerRunOnceRunsEveryJob(t *testing.T) {
	now := time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC)
	applier := &fakeApplier{}
	pruner := &fakePruner{}

	s := NewScheduler(applier, pruner, WithNow(func() time.Time { return now }), WithAuditRetentionDays(30))
	require.NoError(t, s.RunOnce(context.Background()))

	require.Equal(t, []time.Time{now}, applier.calls)
	require.Equal(t, []int{30}, pruner.days)
}

func TestSchedulerRunOnceJoinsErrors(t *testing.T) {
	errApply := errors.New("apply failed")
	errPrune := errors.New("prune failed")

	s := NewScheduler(&fakeApplier{err: errApply}, &fakePruner{err: errPrune})
	err := s.RunOnce(context.Background())
	require.Error(t, err)
	require.ErrorIs(t, err, errApply)
	require.ErrorIs(t, err, errPrune)
	require.Len(t, multierr.Errors(err), 2)
}

func TestSchedulerDefaultRetention(t *testing.T) {
	pruner := &fakePruner{}
	s := NewScheduler(nil, pruner, WithAuditRetentionDays(0))
	require.NoError(t, s.RunOnce(context.Background()))
	require.Equal(t, []int{defaultAuditRetentionDays}, pruner.days)
}

func TestSchedulerStartRegistersJobs(t *testing.T) {
	c := cron.New(cron.WithLogger(cron.DiscardLogger))
	s := NewScheduler(&fakeApplier{}, &fakePruner{}, WithCron(c), WithObligationSchedule("@hourly"), WithAuditSchedule("@weekly"))

	require.NoError(t, s.Start())
	t.Cleanup(func() { <-s.Stop().Done() })

	require.Len(t, c.Entries(), 2)
}

func TestSchedulerStartWithoutJobs(t *testing.T) {
	c := cron.New(cron.WithLogger(cron.DiscardLogger))
	s := NewScheduler(nil, nil, WithCron(c))

	require.NoError(t, s.Start())
	require.Empty(t, c.Entries())
}

func TestSchedulerRejectsBadSpec(t *testing.T) {
	s := NewScheduler(&fakeApplier{}, nil, WithObligationSchedule("not a schedule"))
	require.Error(t, s.Start())
}

func TestSchedulerChargesRecurringObligations(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	ctx := context.Background()

	audit, err := services.NewAuditService(db)
	require.NoError(t, err)
	users, err := services.NewUserService(db, audit)
	require.NoError(t, err)
	obligations, err := services.NewObligationService(db, audit)
	require.NoError(t, err)

	user, err := users.Create(ctx, services.CreateUserInput{Email: "dues@example.com", Password: "secret1", Balance: 20})
	require.NoError(t, err)

	fee := models.Obligation{Name: "Monthly dues", Amount: 5}
	require.NoError(t, db.Create(&fee).Error)

	_, err = obligations.AssignRecurring(ctx, user.ID, fee.ID, services.AssignObligationInput{DayOfMonth: 1})
	require.NoError(t, err)

	now := time.Date(2024, 4, 2, 9, 0, 0, 0, time.UTC)
	s := NewScheduler(obligations, audit, WithNow(func() time.Time { return now }))

	require.NoError(t, s.RunOnce(ctx))
	require.NoError(t, s.RunOnce(ctx))

	var reloaded models.User
	require.NoError(t, db.First(&reloaded, "id = ?", user.ID).Error)
	require.InDelta(t, 15.0, reloaded.Balance, 0.001)
}

func TestSchedulerTracksJobState(t *testing.T) {
	now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	pruner := &fakePruner{err: errors.New("locked")}
	s := NewScheduler(&fakeApplier{}, pruner, WithNow(func() time.Time { return now }))

	jobs := s.Jobs()
	require.Len(t, jobs, 2)
	for _, job := range jobs {
		require.Zero(t, job.Runs)
	}

	require.Error(t, s.RunOnce(context.Background()))
	require.Error(t, s.RunOnce(context.Background()))

	states := map[string]int{}
	for _, job := range s.Jobs() {
		require.Equal(t, 2, job.Runs)
		require.Equal(t, now, job.LastRunAt)
		states[job.Name] = job.ConsecutiveFailures
	}
	require.Equal(t, map[string]int{jobObligations: 0, jobAudit: 2}, states)

	pruner.err = nil
	require.NoError(t, s.RunOnce(context.Background()))
	for _, job := range s.Jobs() {
		require.Zero(t, job.ConsecutiveFailures)
		require.Empty(t, job.LastError)
	}
}
