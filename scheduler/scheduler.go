// Package scheduler runs the report pipeline: fetch metrics, read the
// publish ledger, build the KPI report, persist the snapshot, render and
// deliver it. Cron triggers fire every Monday (weekly) and on the 1st of
// each month (monthly), both at 09:00; the same runs are exposed for manual
// triggering over HTTP.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/newscardbot/fb-kpi-tracker/kpi"
	"github.com/newscardbot/fb-kpi-tracker/models"
	"github.com/newscardbot/fb-kpi-tracker/period"
	"github.com/newscardbot/fb-kpi-tracker/report"
)

const (
	weeklySpec  = "0 9 * * 1"
	monthlySpec = "0 9 1 * *"

	commentFetchLimit = 20
)

// Fetcher supplies the Graph API metrics. Satisfied by api.FacebookAPI.
type Fetcher interface {
	FetchPeriodMetrics(ctx context.Context, since, until string) models.PeriodMetrics
	FetchPostComments(ctx context.Context, postID string, limit int) []models.Comment
}

// LedgerReader supplies the publish ledger. Satisfied by activity.Ledger.
type LedgerReader interface {
	PublishedSince(since time.Time) ([]models.ActivityEntry, error)
}

// ReportStore persists period snapshots. Satisfied by cache.Store.
type ReportStore interface {
	SavePeriod(key string, report models.Report) error
	LoadPreviousPeriod(key string) (models.Report, bool)
	CleanupExpiredPeriods() int
}

// Notifier delivers rendered report text. Satisfied by notify.Telegram.
type Notifier interface {
	SendReport(ctx context.Context, text string) error
}

// Scheduler wires the pipeline collaborators together and holds the latest
// detail documents for the dashboard endpoints.
type Scheduler struct {
	fetcher  Fetcher
	ledger   LedgerReader
	store    ReportStore
	notifier Notifier
	builder  *kpi.Builder
	cron     *cron.Cron
	loc      *time.Location
	log      *logrus.Logger

	mutex         sync.RWMutex
	latestWeekly  *report.WeeklyDetail
	latestMonthly *report.MonthlyDetail

	// test seam
	now func() time.Time
}

// New creates a scheduler. loc controls when the cron triggers fire.
func New(fetcher Fetcher, ledger LedgerReader, store ReportStore, notifier Notifier,
	builder *kpi.Builder, loc *time.Location, log *logrus.Logger) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}

	return &Scheduler{
		fetcher:  fetcher,
		ledger:   ledger,
		store:    store,
		notifier: notifier,
		builder:  builder,
		cron:     cron.New(cron.WithLocation(loc)),
		loc:      loc,
		log:      log,
		now:      time.Now,
	}
}

// Start registers the cron entries and begins running them.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(weeklySpec, func() {
		if _, err := s.RunWeekly(context.Background()); err != nil {
			s.log.WithError(err).Error("Scheduled weekly report failed")
		}
	}); err != nil {
		return err
	}

	if _, err := s.cron.AddFunc(monthlySpec, func() {
		if _, err := s.RunMonthly(context.Background()); err != nil {
			s.log.WithError(err).Error("Scheduled monthly report failed")
		}
	}); err != nil {
		return err
	}

	s.cron.Start()
	s.log.WithFields(logrus.Fields{
		"weekly":   weeklySpec,
		"monthly":  monthlySpec,
		"timezone": s.loc.String(),
	}).Info("Report scheduler started")
	return nil
}

// Stop halts the cron entries and waits for any running job to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info("Report scheduler stopped")
}

// RunWeekly builds, persists and delivers the weekly report for the last
// 7 days. Delivery failure does not fail the run: the snapshot is already
// durable and the detail document is still published to the dashboard slot.
func (s *Scheduler) RunWeekly(ctx context.Context) (report.WeeklyDetail, error) {
	now := s.now().In(s.loc)
	since, until := period.WeeklyRange(now)
	key := period.KeyFor(now, period.Weekly)

	s.log.WithFields(logrus.Fields{
		"since":      since,
		"until":      until,
		"period_key": key,
	}).Info("Running weekly report")

	built, err := s.buildReport(ctx, since, until, period.Weekly, now.AddDate(0, 0, -7))
	if err != nil {
		return report.WeeklyDetail{}, err
	}

	if err := s.store.SavePeriod(key, built); err != nil {
		return report.WeeklyDetail{}, err
	}

	detail := report.BuildWeeklyDetail(built)
	s.mutex.Lock()
	s.latestWeekly = &detail
	s.mutex.Unlock()

	if err := s.notifier.SendReport(ctx, report.WeeklyManagementText(built)); err != nil {
		s.log.WithError(err).Error("Failed to deliver weekly report")
	}

	s.store.CleanupExpiredPeriods()

	return detail, nil
}

// RunMonthly builds, persists and delivers the monthly report for the last
// 30 days, with the previous month's snapshot for MoM comparison.
func (s *Scheduler) RunMonthly(ctx context.Context) (report.MonthlyDetail, error) {
	now := s.now().In(s.loc)
	since, until := period.MonthlyRange(now)
	key := period.KeyFor(now, period.Monthly)

	s.log.WithFields(logrus.Fields{
		"since":      since,
		"until":      until,
		"period_key": key,
	}).Info("Running monthly report")

	built, err := s.buildReport(ctx, since, until, period.Monthly, now.AddDate(0, 0, -30))
	if err != nil {
		return report.MonthlyDetail{}, err
	}

	if err := s.store.SavePeriod(key, built); err != nil {
		return report.MonthlyDetail{}, err
	}

	var previous *models.Report
	if prev, ok := s.store.LoadPreviousPeriod(key); ok {
		previous = &prev
	}

	detail := report.BuildMonthlyDetail(built, previous)
	s.mutex.Lock()
	s.latestMonthly = &detail
	s.mutex.Unlock()

	if err := s.notifier.SendReport(ctx, report.MonthlyStrategyText(built, previous)); err != nil {
		s.log.WithError(err).Error("Failed to deliver monthly report")
	}

	return detail, nil
}

func (s *Scheduler) buildReport(ctx context.Context, since, until, periodType string, ledgerCutoff time.Time) (models.Report, error) {
	metrics := s.fetcher.FetchPeriodMetrics(ctx, since, until)

	entries, err := s.ledger.PublishedSince(ledgerCutoff)
	if err != nil {
		// the feed alone still yields a valid report
		s.log.WithError(err).Warn("Failed to read activity ledger, building from feed only")
		entries = nil
	}

	comments := make(map[string][]models.Comment, len(metrics.Posts))
	for _, p := range metrics.Posts {
		if p.ID == "" {
			continue
		}
		if fetched := s.fetcher.FetchPostComments(ctx, p.ID, commentFetchLimit); len(fetched) > 0 {
			comments[p.ID] = fetched
		}
	}

	return s.builder.Build(metrics, entries, comments, periodType), nil
}

// LatestWeekly returns the most recent weekly detail document, if any run
// has completed since startup.
func (s *Scheduler) LatestWeekly() (report.WeeklyDetail, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	if s.latestWeekly == nil {
		return report.WeeklyDetail{}, false
	}
	return *s.latestWeekly, true
}

// LatestMonthly returns the most recent monthly detail document.
func (s *Scheduler) LatestMonthly() (report.MonthlyDetail, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	if s.latestMonthly == nil {
		return report.MonthlyDetail{}, false
	}
	return *s.latestMonthly, true
}
