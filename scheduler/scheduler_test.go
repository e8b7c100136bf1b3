package scheduler

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newscardbot/fb-kpi-tracker/classify"
	"github.com/newscardbot/fb-kpi-tracker/kpi"
	"github.com/newscardbot/fb-kpi-tracker/models"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

type fakeFetcher struct {
	metrics  models.PeriodMetrics
	comments map[string][]models.Comment
}

func (f *fakeFetcher) FetchPeriodMetrics(_ context.Context, since, until string) models.PeriodMetrics {
	m := f.metrics
	m.Since = since
	m.Until = until
	return m
}

func (f *fakeFetcher) FetchPostComments(_ context.Context, postID string, _ int) []models.Comment {
	return f.comments[postID]
}

type fakeLedger struct {
	entries []models.ActivityEntry
	err     error
}

func (l *fakeLedger) PublishedSince(time.Time) ([]models.ActivityEntry, error) {
	return l.entries, l.err
}

type fakeStore struct {
	saved    map[string]models.Report
	previous *models.Report
	saveErr  error
	cleanups int
}

func newFakeStore() *fakeStore {
	return &fakeStore{saved: map[string]models.Report{}}
}

func (s *fakeStore) SavePeriod(key string, r models.Report) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.saved[key] = r
	return nil
}

func (s *fakeStore) LoadPreviousPeriod(string) (models.Report, bool) {
	if s.previous == nil {
		return models.Report{}, false
	}
	return *s.previous, true
}

func (s *fakeStore) CleanupExpiredPeriods() int {
	s.cleanups++
	return 0
}

type fakeNotifier struct {
	texts []string
	err   error
}

func (n *fakeNotifier) SendReport(_ context.Context, text string) error {
	if n.err != nil {
		return n.err
	}
	n.texts = append(n.texts, text)
	return nil
}

func testBuilder(t *testing.T) *kpi.Builder {
	t.Helper()
	log := testLogger()
	missing := filepath.Join(t.TempDir(), "nope.yaml")
	return kpi.NewBuilder(classify.LoadTopics(missing, log), classify.LoadWords(missing, log), log)
}

func testScheduler(t *testing.T, fetcher *fakeFetcher, ledger *fakeLedger,
	store *fakeStore, notifier *fakeNotifier) *Scheduler {
	t.Helper()
	s := New(fetcher, ledger, store, notifier, testBuilder(t), time.UTC, testLogger())
	s.now = func() time.Time {
		return time.Date(2026, 2, 9, 9, 0, 0, 0, time.UTC) // Monday, ISO week 7
	}
	return s
}

func sampleMetrics() models.PeriodMetrics {
	return models.PeriodMetrics{
		Reach: models.PageReach{Reach: 5000, Impressions: 9000},
		Posts: []models.FeedPost{
			{ID: "p1", Message: "first post", CreatedTime: "2026-02-03T10:00:00+0000", Type: "photo", Shares: 2},
			{ID: "p2", Message: "second post", CreatedTime: "2026-02-04T12:00:00+0000", Type: "video"},
		},
	}
}

func TestRunWeekly(t *testing.T) {
	fetcher := &fakeFetcher{metrics: sampleMetrics()}
	ledger := &fakeLedger{entries: []models.ActivityEntry{
		{FacebookPostID: "p1", Source: "rss", Likes: 10, Comments: 2, PostReach: 400},
	}}
	store := newFakeStore()
	notifier := &fakeNotifier{}

	s := testScheduler(t, fetcher, ledger, store, notifier)

	detail, err := s.RunWeekly(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "weekly_detail", detail.ReportType)
	assert.Equal(t, "2026-02-02", detail.Period.Since)
	assert.Equal(t, "2026-02-09", detail.Period.Until)
	assert.Equal(t, 2, detail.Distribution.TotalPosts)

	saved, ok := store.saved["2026-W07"]
	require.True(t, ok)
	assert.Equal(t, "weekly", saved.Period.Type)

	require.Len(t, notifier.texts, 1)
	assert.True(t, strings.HasPrefix(notifier.texts[0], "📊 Weekly summary"))
	assert.Equal(t, 1, store.cleanups)
}

func TestRunWeeklyCommentsReachSentiment(t *testing.T) {
	fetcher := &fakeFetcher{
		metrics: sampleMetrics(),
		comments: map[string][]models.Comment{
			"p1": {{Message: "some comment"}},
		},
	}
	s := testScheduler(t, fetcher, &fakeLedger{}, newFakeStore(), &fakeNotifier{})

	detail, err := s.RunWeekly(context.Background())
	require.NoError(t, err)
	assert.True(t, detail.Trust.Sentiment.Available)
	assert.Equal(t, 1, detail.Trust.Sentiment.Total)
}

// a broken ledger degrades to feed-only, it never aborts the run
func TestRunWeeklyLedgerError(t *testing.T) {
	fetcher := &fakeFetcher{metrics: sampleMetrics()}
	ledger := &fakeLedger{err: errors.New("db locked")}
	s := testScheduler(t, fetcher, ledger, newFakeStore(), &fakeNotifier{})

	detail, err := s.RunWeekly(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, detail.Distribution.TotalPosts)
}

func TestRunWeeklySaveErrorAborts(t *testing.T) {
	store := newFakeStore()
	store.saveErr = errors.New("disk full")
	notifier := &fakeNotifier{}
	s := testScheduler(t, &fakeFetcher{metrics: sampleMetrics()}, &fakeLedger{}, store, notifier)

	_, err := s.RunWeekly(context.Background())
	require.Error(t, err)
	assert.Empty(t, notifier.texts)
}

// delivery failure is logged, not fatal: the snapshot is already durable
func TestRunWeeklyNotifyErrorTolerated(t *testing.T) {
	store := newFakeStore()
	notifier := &fakeNotifier{err: errors.New("telegram down")}
	s := testScheduler(t, &fakeFetcher{metrics: sampleMetrics()}, &fakeLedger{}, store, notifier)

	_, err := s.RunWeekly(context.Background())
	require.NoError(t, err)
	assert.Len(t, store.saved, 1)
}

func TestRunMonthly(t *testing.T) {
	store := newFakeStore()
	store.previous = &models.Report{
		Distribution: models.Distribution{TotalReach: 2500},
		Engagement:   models.Engagement{EngagementRate: 1.0},
	}
	notifier := &fakeNotifier{}
	s := testScheduler(t, &fakeFetcher{metrics: sampleMetrics()}, &fakeLedger{}, store, notifier)

	detail, err := s.RunMonthly(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "monthly_detail", detail.ReportType)
	assert.True(t, detail.MoM.Available)
	assert.Equal(t, 100.0, detail.MoM.ReachChange) // 5000 vs 2500

	_, ok := store.saved["2026-02"]
	assert.True(t, ok)

	require.Len(t, notifier.texts, 1)
	assert.Contains(t, notifier.texts[0], "Monthly strategic summary")
	assert.Contains(t, notifier.texts[0], "+100.0%")
}

func TestRunMonthlyFirstMonth(t *testing.T) {
	notifier := &fakeNotifier{}
	s := testScheduler(t, &fakeFetcher{metrics: sampleMetrics()}, &fakeLedger{}, newFakeStore(), notifier)

	detail, err := s.RunMonthly(context.Background())
	require.NoError(t, err)
	assert.False(t, detail.MoM.Available)
	require.Len(t, notifier.texts, 1)
	assert.Contains(t, notifier.texts[0], "No previous month data")
}

func TestLatestSlots(t *testing.T) {
	s := testScheduler(t, &fakeFetcher{metrics: sampleMetrics()}, &fakeLedger{}, newFakeStore(), &fakeNotifier{})

	_, ok := s.LatestWeekly()
	assert.False(t, ok)
	_, ok = s.LatestMonthly()
	assert.False(t, ok)

	_, err := s.RunWeekly(context.Background())
	require.NoError(t, err)
	weekly, ok := s.LatestWeekly()
	require.True(t, ok)
	assert.Equal(t, "weekly_detail", weekly.ReportType)

	_, err = s.RunMonthly(context.Background())
	require.NoError(t, err)
	monthly, ok := s.LatestMonthly()
	require.True(t, ok)
	assert.Equal(t, "monthly_detail", monthly.ReportType)
}
