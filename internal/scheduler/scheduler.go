// Package scheduler drives daily Ajo payouts: a single timer loop that runs
// due groups once a day and retries failed groups on a fixed delay before
// escalating to operations.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"ajo/config"
	"ajo/internal/domain"
	"ajo/internal/models"
	"ajo/internal/repository"
	"ajo/internal/service"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"gopkg.in/tomb.v2"
	"gorm.io/gorm"
)

// PayoutRunner executes one group payout and records escalations.
type PayoutRunner interface {
	ProcessPayout(ctx context.Context, groupID uint) (*service.PayoutResult, error)
	RecordEscalation(ctx context.Context, groupID uint, attempts int, cause error) error
}

// Alerter reaches platform admins and the operations contact.
type Alerter interface {
	NotifyAdmins(notifType, title, body string, data map[string]interface{}) error
	AlertOps(ctx context.Context, message string) error
}

// RetryInfo is a group waiting for another payout attempt.
type RetryInfo struct {
	GroupID   uint      `json:"group_id"`
	Title     string    `json:"title"`
	Rotation  int       `json:"rotation"`
	Slot      int       `json:"slot"`
	Attempts  int       `json:"attempts"`
	NextAt    time.Time `json:"next_at"`
	LastError string    `json:"last_error"`
}

// Status is a snapshot for the admin status endpoint and CLI.
type Status struct {
	Running       bool        `json:"running"`
	LastRun       *time.Time  `json:"last_run"`
	LastStatus    string      `json:"last_status,omitempty"`
	NextRun       time.Time   `json:"next_run"`
	ActiveRetries []RetryInfo `json:"active_retries"`
}

// RunReport summarises one daily run.
type RunReport struct {
	Candidates int             `json:"candidates"`
	Due        int             `json:"due"`
	Succeeded  []uint          `json:"succeeded"`
	Failed     map[uint]string `json:"failed"`
	Deferred   []uint          `json:"deferred"`
}

type Scheduler struct {
	repos   *repository.Repositories
	payouts PayoutRunner
	alerts  Alerter
	cfg     config.SchedulerConfig
	loc     *time.Location
	metrics *Metrics
	log     zerolog.Logger
	now     func() time.Time

	mu      sync.Mutex
	retries map[uint]*RetryInfo
	lastRun time.Time
	nextRun time.Time
	running bool

	t tomb.Tomb
}

func New(repos *repository.Repositories, payouts PayoutRunner, alerts Alerter, cfg config.SchedulerConfig, metrics *Metrics, log zerolog.Logger) *Scheduler {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 30 * time.Minute
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &Scheduler{
		repos:   repos,
		payouts: payouts,
		alerts:  alerts,
		cfg:     cfg,
		loc:     cfg.Location(),
		metrics: metrics,
		log:     log.With().Str("component", "scheduler").Logger(),
		now:     time.Now,
		retries: make(map[uint]*RetryInfo),
	}
}

// SetClock replaces the time source. Call before Start.
func (s *Scheduler) SetClock(now func() time.Time) { s.now = now }

// Start launches the timer loop.
func (s *Scheduler) Start() {
	s.mu.Lock()
	s.running = true
	s.nextRun = s.nextDaily(s.now())
	next := s.nextRun
	s.mu.Unlock()
	s.log.Info().Time("next_run", next).Msg("payout scheduler started")
	s.t.Go(s.loop)
}

// Stop ends the loop and waits for an in-flight run to return.
func (s *Scheduler) Stop() error {
	s.t.Kill(nil)
	err := s.t.Wait()
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
	s.log.Info().Msg("payout scheduler stopped")
	return err
}

func (s *Scheduler) loop() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.t.Go(func() error {
		<-s.t.Dying()
		cancel()
		return nil
	})

	for {
		now := s.now()
		wake := s.wakeAt()
		timer := time.NewTimer(wake.Sub(now))
		select {
		case <-s.t.Dying():
			timer.Stop()
			return nil
		case <-timer.C:
		}

		now = s.now()
		s.mu.Lock()
		daily := !now.Before(s.nextRun)
		s.mu.Unlock()
		if daily {
			if _, err := s.RunDaily(ctx); err != nil {
				s.log.Error().Err(err).Msg("daily payout run failed")
			}
		}
		s.RunRetries(ctx)
	}
}

// wakeAt is the earlier of the next daily run and the next due retry.
func (s *Scheduler) wakeAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	wake := s.nextRun
	for _, r := range s.retries {
		if r.NextAt.Before(wake) {
			wake = r.NextAt
		}
	}
	return wake
}

func (s *Scheduler) nextDaily(now time.Time) time.Time {
	local := now.In(s.loc)
	at := time.Date(local.Year(), local.Month(), local.Day(), s.cfg.RunHour, s.cfg.RunMinute, 0, 0, s.loc)
	if !at.After(local) {
		at = at.AddDate(0, 0, 1)
	}
	return at
}

// RunDaily pays out every active group whose due date is today. One group's
// failure never stops the others; failed groups are queued for retry.
func (s *Scheduler) RunDaily(ctx context.Context) (*RunReport, error) {
	start := s.now()
	entry := s.startLog(domain.JobDailyPayout, start)
	report := &RunReport{Failed: map[uint]string{}}

	s.mu.Lock()
	s.lastRun = start
	s.nextRun = s.nextDaily(start)
	s.mu.Unlock()

	groups, err := s.repos.WithContext(ctx).Ajo.ListPayoutCandidates(start)
	if err != nil {
		s.finishLog(entry, start, err, nil)
		s.metrics.Runs.WithLabelValues(domain.JobDailyPayout, domain.CronFailed).Inc()
		return nil, err
	}
	report.Candidates = len(groups)

	var mu sync.Mutex
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(s.cfg.Concurrency)
	for i := range groups {
		g := groups[i]
		if !service.IsPayoutDay(&g, start, s.loc) {
			continue
		}
		report.Due++
		if s.hasRetry(g.ID) {
			report.Deferred = append(report.Deferred, g.ID)
			continue
		}
		eg.Go(func() error {
			err := s.attempt(egCtx, &g, 1)
			if err != nil {
				s.afterFailure(egCtx, &g, err)
			}
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.Failed[g.ID] = err.Error()
			} else {
				report.Succeeded = append(report.Succeeded, g.ID)
			}
			return nil
		})
	}
	_ = eg.Wait()
	sort.Slice(report.Succeeded, func(i, j int) bool { return report.Succeeded[i] < report.Succeeded[j] })

	s.finishLog(entry, start, nil, map[string]interface{}{
		"candidates": report.Candidates,
		"due":        report.Due,
		"succeeded":  report.Succeeded,
		"failed":     report.Failed,
		"deferred":   report.Deferred,
	})
	s.metrics.Runs.WithLabelValues(domain.JobDailyPayout, domain.CronCompleted).Inc()
	s.metrics.RunDuration.Observe(s.now().Sub(start).Seconds())
	s.log.Info().Int("due", report.Due).Int("succeeded", len(report.Succeeded)).Int("failed", len(report.Failed)).Msg("daily payout run finished")
	return report, nil
}

// RunRetries attempts every queued group whose delay has elapsed.
func (s *Scheduler) RunRetries(ctx context.Context) {
	now := s.now()
	s.mu.Lock()
	var due []RetryInfo
	for _, r := range s.retries {
		if !r.NextAt.After(now) {
			due = append(due, *r)
		}
	}
	s.mu.Unlock()
	if len(due) == 0 {
		return
	}
	sort.Slice(due, func(i, j int) bool { return due[i].GroupID < due[j].GroupID })

	entry := s.startLog(domain.JobPayoutRetry, now)
	outcomes := map[string]interface{}{}
	for _, r := range due {
		outcomes[fmt.Sprint(r.GroupID)] = s.retry(ctx, r)
	}
	s.finishLog(entry, now, nil, map[string]interface{}{"groups": outcomes})
	s.metrics.Runs.WithLabelValues(domain.JobPayoutRetry, domain.CronCompleted).Inc()
}

func (s *Scheduler) retry(ctx context.Context, r RetryInfo) string {
	attempt := r.Attempts + 2
	log := s.log.With().Uint("group_id", r.GroupID).Int("attempt", attempt).Logger()
	g, err := s.repos.WithContext(ctx).Ajo.GetByID(r.GroupID)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		s.clearRetry(r.GroupID)
		return "group_missing"
	case err != nil:
		s.reschedule(r.GroupID, err)
		return "lookup_failed"
	case !g.IsActive() || g.Rotation != r.Rotation || g.CurrentSlot != r.Slot:
		// Paid out by another path since the failure.
		log.Info().Msg("retry no longer needed")
		s.clearRetry(r.GroupID)
		return "superseded"
	}

	s.metrics.Retries.Inc()
	if err := s.attempt(ctx, g, attempt); err != nil {
		s.afterFailure(ctx, g, err)
		return "failed"
	}
	return "succeeded"
}

// RunGroup pays out one group now, outside the daily schedule. A success clears any pending retry.
func (s *Scheduler) RunGroup(ctx context.Context, groupID uint) (*service.PayoutResult, error) {
	started := time.Now()
	res, err := s.payouts.ProcessPayout(ctx, groupID)
	s.metrics.PayoutLatency.Observe(time.Since(started).Seconds())
	if err != nil {
		s.metrics.Payouts.WithLabelValues(resultLabel(err)).Inc()
		return nil, err
	}
	s.metrics.Payouts.WithLabelValues("success").Inc()
	s.clearRetry(groupID)
	return res, nil
}

func (s *Scheduler) attempt(ctx context.Context, g *models.AjoGroup, attempt int) error {
	log := s.log.With().Uint("group_id", g.ID).Int("attempt", attempt).Logger()
	res, err := s.RunGroup(ctx, g.ID)
	if err != nil {
		log.Warn().Err(err).Str("kind", string(service.KindOf(err))).Msg("payout attempt failed")
		return err
	}
	log.Info().Uint("user_id", res.RecipientID).Int64("amount", res.Amount).Str("reference", res.Reference).Msg("payout attempt succeeded")
	if err := s.alerts.NotifyAdmins(domain.NotifySystem, "Payout Processed",
		fmt.Sprintf("Ajo %s payout of %s to slot %d completed successfully.", g.Title, service.FormatNaira(res.Amount), res.Slot),
		map[string]interface{}{"ajo_id": g.ID, "reference": res.Reference, "amount": res.Amount}); err != nil {
		log.Warn().Err(err).Msg("admin notification not delivered")
	}
	return nil
}

// afterFailure decides between another attempt and escalation.
func (s *Scheduler) afterFailure(ctx context.Context, g *models.AjoGroup, err error) {
	switch {
	case errors.Is(err, service.ErrGroupNotActive), errors.Is(err, service.ErrGroupNotFound):
		s.clearRetry(g.ID)
		return
	case service.KindOf(err) == service.KindDataIntegrity:
		s.clearRetry(g.ID)
		s.escalate(g, 1, err)
		return
	}

	s.mu.Lock()
	r, ok := s.retries[g.ID]
	if !ok {
		r = &RetryInfo{GroupID: g.ID, Title: g.Title, Rotation: g.Rotation, Slot: g.CurrentSlot}
		s.retries[g.ID] = r
	} else {
		r.Attempts++
	}
	exhausted := r.Attempts >= s.cfg.MaxRetries
	attempts := r.Attempts + 1
	if exhausted {
		delete(s.retries, g.ID)
	} else {
		r.LastError = err.Error()
		r.NextAt = s.now().Add(s.cfg.RetryDelay)
	}
	pending := len(s.retries)
	s.mu.Unlock()
	s.metrics.PendingRetry.Set(float64(pending))

	if exhausted {
		s.escalate(g, attempts, err)
		return
	}
	s.log.Info().Uint("group_id", g.ID).Int("attempt", attempts).Dur("delay", s.cfg.RetryDelay).Msg("payout retry queued")
}

func (s *Scheduler) reschedule(groupID uint, err error) {
	s.mu.Lock()
	if r, ok := s.retries[groupID]; ok {
		r.LastError = err.Error()
		r.NextAt = s.now().Add(s.cfg.RetryDelay)
	}
	s.mu.Unlock()
}

// escalate is the terminal step for a group: admins and operations are told and
// a fraud case is opened. The group itself is left untouched.
func (s *Scheduler) escalate(g *models.AjoGroup, attempts int, cause error) {
	s.metrics.Escalations.Inc()
	log := s.log.With().Uint("group_id", g.ID).Int("attempt", attempts).Bool("escalated", true).Logger()
	log.Error().Err(cause).Msg("payout escalated")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.alerts.NotifyAdmins(domain.NotifySystem, "Payout Failure",
		fmt.Sprintf("Ajo %s payout failed after %d attempts: %v", g.Title, attempts, cause),
		map[string]interface{}{"ajo_id": g.ID, "severity": domain.SeverityCritical, "attempts": attempts}); err != nil {
		log.Error().Err(err).Msg("admin escalation not delivered")
	}
	if err := s.alerts.AlertOps(ctx, fmt.Sprintf("CRITICAL: Ajo %d payout failed. Manual intervention required.", g.ID)); err != nil {
		log.Error().Err(err).Msg("ops alert not delivered")
	}
	if err := s.payouts.RecordEscalation(ctx, g.ID, attempts, cause); err != nil {
		log.Error().Err(err).Msg("record escalation")
	}
}

func (s *Scheduler) hasRetry(groupID uint) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.retries[groupID]
	return ok
}

func (s *Scheduler) clearRetry(groupID uint) {
	s.mu.Lock()
	delete(s.retries, groupID)
	pending := len(s.retries)
	s.mu.Unlock()
	s.metrics.PendingRetry.Set(float64(pending))
}

// Status reports the loop state. Without an in-process run it falls back to the audit log.
func (s *Scheduler) Status(ctx context.Context) (*Status, error) {
	s.mu.Lock()
	st := &Status{Running: s.running, NextRun: s.nextRun}
	if !s.lastRun.IsZero() {
		last := s.lastRun
		st.LastRun = &last
	}
	for _, r := range s.retries {
		st.ActiveRetries = append(st.ActiveRetries, *r)
	}
	s.mu.Unlock()
	sort.Slice(st.ActiveRetries, func(i, j int) bool { return st.ActiveRetries[i].GroupID < st.ActiveRetries[j].GroupID })

	if st.NextRun.IsZero() {
		st.NextRun = s.nextDaily(s.now())
	}
	latest, err := s.repos.WithContext(ctx).CronLogs.Latest(domain.JobDailyPayout)
	if err != nil {
		return nil, err
	}
	if latest != nil {
		st.LastStatus = latest.Status
		if st.LastRun == nil {
			st.LastRun = &latest.StartedAt
		}
	}
	return st, nil
}

func (s *Scheduler) startLog(job string, start time.Time) *models.CronLog {
	entry := &models.CronLog{
		JobName:   job,
		Status:    domain.CronStarted,
		StartedAt: start,
		Metadata:  map[string]interface{}{"pid": os.Getpid()},
	}
	if err := s.repos.CronLogs.Create(entry); err != nil {
		s.log.Warn().Err(err).Str("job", job).Msg("cron log not written")
		return nil
	}
	return entry
}

func (s *Scheduler) finishLog(entry *models.CronLog, start time.Time, runErr error, meta map[string]interface{}) {
	if entry == nil {
		return
	}
	end := s.now()
	entry.FinishedAt = &end
	entry.ExecutionTimeMs = end.Sub(start).Milliseconds()
	entry.Status = domain.CronCompleted
	for k, v := range meta {
		entry.Metadata[k] = v
	}
	if runErr != nil {
		entry.Status = domain.CronFailed
		entry.Error = runErr.Error()
		entry.Metadata["error"] = runErr.Error()
	}
	if err := s.repos.CronLogs.Update(entry); err != nil {
		s.log.Warn().Err(err).Str("job", entry.JobName).Msg("cron log not updated")
	}
}

func resultLabel(err error) string {
	if errors.Is(err, service.ErrPayoutInProgress) {
		return "in_progress"
	}
	return string(service.KindOf(err))
}
