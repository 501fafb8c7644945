package scheduler

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"ajo/config"
	"ajo/internal/database"
	"ajo/internal/domain"
	"ajo/internal/models"
	"ajo/internal/repository"
	"ajo/internal/service"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type escalation struct {
	groupID  uint
	attempts int
	cause    error
}

// fakeRunner fails a group with the queued errors, in order, then succeeds.
type fakeRunner struct {
	mu          sync.Mutex
	errs        map[uint][]error
	always      map[uint]error
	calls       map[uint]int
	escalations []escalation
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{errs: map[uint][]error{}, always: map[uint]error{}, calls: map[uint]int{}}
}

func (r *fakeRunner) ProcessPayout(ctx context.Context, groupID uint) (*service.PayoutResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls[groupID]++
	if err := r.always[groupID]; err != nil {
		return nil, err
	}
	if q := r.errs[groupID]; len(q) > 0 {
		r.errs[groupID] = q[1:]
		return nil, q[0]
	}
	return &service.PayoutResult{GroupID: groupID, Slot: 1, Amount: 500000, Reference: "AP-test"}, nil
}

func (r *fakeRunner) RecordEscalation(ctx context.Context, groupID uint, attempts int, cause error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.escalations = append(r.escalations, escalation{groupID, attempts, cause})
	return nil
}

func (r *fakeRunner) callCount(groupID uint) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[groupID]
}

type fakeAlerter struct {
	mu     sync.Mutex
	admins []string
	ops    []string
}

func (a *fakeAlerter) NotifyAdmins(notifType, title, body string, data map[string]interface{}) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.admins = append(a.admins, title)
	return nil
}

func (a *fakeAlerter) AlertOps(ctx context.Context, message string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.ops = append(a.ops, message)
	return nil
}

func (a *fakeAlerter) titles(title string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := 0
	for _, t := range a.admins {
		if t == title {
			n++
		}
	}
	return n
}

type harness struct {
	sched   *Scheduler
	repos   *repository.Repositories
	runner  *fakeRunner
	alerts  *fakeAlerter
	clock   *clock
	metrics *Metrics
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db, err := database.NewTestDB(strings.ReplaceAll(t.Name(), "/", "_"))
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	h := &harness{
		repos:   repository.New(db),
		runner:  newFakeRunner(),
		alerts:  &fakeAlerter{},
		clock:   &clock{t: time.Date(2026, 3, 11, 15, 0, 0, 0, time.UTC)},
		metrics: NewMetrics(prometheus.NewRegistry()),
	}
	h.sched = New(h.repos, h.runner, h.alerts, config.SchedulerConfig{
		RunHour:     16,
		Timezone:    "UTC",
		MaxRetries:  3,
		RetryDelay:  30 * time.Minute,
		Concurrency: 2,
	}, h.metrics, zerolog.Nop())
	h.sched.SetClock(h.clock.now)
	return h
}

// group inserts a weekly group whose first payout falls daysUntilDue days from the clock.
func (h *harness) group(t *testing.T, status string, daysUntilDue int) *models.AjoGroup {
	t.Helper()
	g := &models.AjoGroup{
		Title:              "Test Ajo",
		ContributionAmount: 100000,
		Frequency:          domain.FrequencyWeekly,
		Slots:              5,
		StartDate:          h.clock.now().AddDate(0, 0, daysUntilDue-7),
		CurrentSlot:        1,
		Rotation:           1,
		Status:             status,
		CreatorID:          1,
	}
	require.NoError(t, h.repos.Ajo.Create(g))
	return g
}

func TestRunDailyPaysDueGroups(t *testing.T) {
	h := newHarness(t)
	due := h.group(t, domain.GroupStatusActive, 0)
	notDue := h.group(t, domain.GroupStatusActive, 4)
	h.group(t, domain.GroupStatusPending, 0)

	report, err := h.sched.RunDaily(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, report.Candidates)
	require.Equal(t, 1, report.Due)
	require.Equal(t, []uint{due.ID}, report.Succeeded)
	require.Empty(t, report.Failed)
	require.Zero(t, h.runner.callCount(notDue.ID))
	require.Equal(t, 1, h.alerts.titles("Payout Processed"))

	logs, err := h.repos.CronLogs.List(domain.JobDailyPayout, 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	require.Equal(t, domain.CronCompleted, logs[0].Status)
	require.NotNil(t, logs[0].FinishedAt)
	require.Contains(t, logs[0].Metadata, "pid")

	require.Equal(t, 1.0, testutil.ToFloat64(h.metrics.Runs.WithLabelValues(domain.JobDailyPayout, domain.CronCompleted)))
	require.Equal(t, 1.0, testutil.ToFloat64(h.metrics.Payouts.WithLabelValues("success")))
}

func TestRetryThenEscalate(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	g := h.group(t, domain.GroupStatusActive, 0)
	h.runner.always[g.ID] = service.ErrPayoutFailed.Wrap(errors.New("ledger timeout"))

	report, err := h.sched.RunDaily(ctx)
	require.NoError(t, err)
	require.Contains(t, report.Failed, g.ID)

	st, err := h.sched.Status(ctx)
	require.NoError(t, err)
	require.Len(t, st.ActiveRetries, 1)
	require.Equal(t, h.clock.now().Add(30*time.Minute), st.ActiveRetries[0].NextAt)

	// not due yet
	h.sched.RunRetries(ctx)
	require.Equal(t, 1, h.runner.callCount(g.ID))

	for i := 0; i < 3; i++ {
		h.clock.advance(30 * time.Minute)
		h.sched.RunRetries(ctx)
	}
	require.Equal(t, 4, h.runner.callCount(g.ID))
	require.Len(t, h.runner.escalations, 1)
	require.Equal(t, 4, h.runner.escalations[0].attempts)
	require.ErrorIs(t, h.runner.escalations[0].cause, service.ErrPayoutFailed)
	require.Equal(t, 1, h.alerts.titles("Payout Failure"))
	require.Len(t, h.alerts.ops, 1)

	st, err = h.sched.Status(ctx)
	require.NoError(t, err)
	require.Empty(t, st.ActiveRetries)

	// nothing left to retry
	h.clock.advance(time.Hour)
	h.sched.RunRetries(ctx)
	require.Equal(t, 4, h.runner.callCount(g.ID))

	logs, err := h.repos.CronLogs.List(domain.JobPayoutRetry, 10)
	require.NoError(t, err)
	require.Len(t, logs, 3)
	require.Equal(t, 3.0, testutil.ToFloat64(h.metrics.Retries))
	require.Equal(t, 1.0, testutil.ToFloat64(h.metrics.Escalations))
}

func TestRetrySucceedsOnSecondAttempt(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	g := h.group(t, domain.GroupStatusActive, 0)
	h.runner.errs[g.ID] = []error{service.ErrPayoutFailed}

	_, err := h.sched.RunDaily(ctx)
	require.NoError(t, err)
	h.clock.advance(30 * time.Minute)
	h.sched.RunRetries(ctx)

	require.Equal(t, 2, h.runner.callCount(g.ID))
	require.Empty(t, h.runner.escalations)
	require.False(t, h.sched.hasRetry(g.ID))
	require.Equal(t, 1, h.alerts.titles("Payout Processed"))
}

func TestRetrySupersededWhenGroupMoved(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	g := h.group(t, domain.GroupStatusActive, 0)
	h.runner.errs[g.ID] = []error{service.ErrPayoutFailed}

	_, err := h.sched.RunDaily(ctx)
	require.NoError(t, err)
	require.True(t, h.sched.hasRetry(g.ID))

	// an admin forced the payout through in the meantime
	require.NoError(t, h.repos.Ajo.Rotate(g.ID, 2, 1, domain.GroupStatusActive))
	h.clock.advance(30 * time.Minute)
	h.sched.RunRetries(ctx)

	require.Equal(t, 1, h.runner.callCount(g.ID))
	require.False(t, h.sched.hasRetry(g.ID))
}

func TestDataIntegrityEscalatesImmediately(t *testing.T) {
	h := newHarness(t)
	g := h.group(t, domain.GroupStatusActive, 0)
	h.runner.always[g.ID] = service.ErrNoRecipientForSlot

	_, err := h.sched.RunDaily(context.Background())
	require.NoError(t, err)
	require.False(t, h.sched.hasRetry(g.ID))
	require.Len(t, h.runner.escalations, 1)
	require.Equal(t, 1, h.runner.escalations[0].attempts)
	require.Len(t, h.alerts.ops, 1)
}

func TestInactiveGroupIsNotRetried(t *testing.T) {
	h := newHarness(t)
	g := h.group(t, domain.GroupStatusActive, 0)
	h.runner.always[g.ID] = service.ErrGroupNotActive

	_, err := h.sched.RunDaily(context.Background())
	require.NoError(t, err)
	require.False(t, h.sched.hasRetry(g.ID))
	require.Empty(t, h.runner.escalations)
}

func TestRunDailyDefersQueuedGroup(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	g := h.group(t, domain.GroupStatusActive, 0)
	h.runner.errs[g.ID] = []error{service.ErrPayoutFailed}

	_, err := h.sched.RunDaily(ctx)
	require.NoError(t, err)

	report, err := h.sched.RunDaily(ctx)
	require.NoError(t, err)
	require.Equal(t, []uint{g.ID}, report.Deferred)
	require.Equal(t, 1, h.runner.callCount(g.ID))
}

func TestRunGroupClearsRetry(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	g := h.group(t, domain.GroupStatusActive, 0)
	h.runner.errs[g.ID] = []error{service.ErrPayoutFailed}

	_, err := h.sched.RunDaily(ctx)
	require.NoError(t, err)
	require.True(t, h.sched.hasRetry(g.ID))

	res, err := h.sched.RunGroup(ctx, g.ID)
	require.NoError(t, err)
	require.Equal(t, g.ID, res.GroupID)
	require.False(t, h.sched.hasRetry(g.ID))
	require.Zero(t, testutil.ToFloat64(h.metrics.PendingRetry))
}

func TestStatusFallsBackToCronLog(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.group(t, domain.GroupStatusActive, 0)
	_, err := h.sched.RunDaily(ctx)
	require.NoError(t, err)

	fresh := New(h.repos, h.runner, h.alerts, config.SchedulerConfig{RunHour: 16, Timezone: "UTC"}, nil, zerolog.Nop())
	fresh.SetClock(h.clock.now)
	st, err := fresh.Status(ctx)
	require.NoError(t, err)
	require.False(t, st.Running)
	require.NotNil(t, st.LastRun)
	require.Equal(t, domain.CronCompleted, st.LastStatus)
	require.Equal(t, time.Date(2026, 3, 11, 16, 0, 0, 0, time.UTC), st.NextRun)
}

func TestNextDaily(t *testing.T) {
	h := newHarness(t)
	before := time.Date(2026, 3, 11, 15, 59, 0, 0, time.UTC)
	require.Equal(t, time.Date(2026, 3, 11, 16, 0, 0, 0, time.UTC), h.sched.nextDaily(before))
	at := time.Date(2026, 3, 11, 16, 0, 0, 0, time.UTC)
	require.Equal(t, time.Date(2026, 3, 12, 16, 0, 0, 0, time.UTC), h.sched.nextDaily(at))
}

func TestStartStop(t *testing.T) {
	h := newHarness(t)
	h.sched.Start()

	st, err := h.sched.Status(context.Background())
	require.NoError(t, err)
	require.True(t, st.Running)

	require.NoError(t, h.sched.Stop())
	st, err = h.sched.Status(context.Background())
	require.NoError(t, err)
	require.False(t, st.Running)
	require.Zero(t, h.runner.callCount(1))
}
