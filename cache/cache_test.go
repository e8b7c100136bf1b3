package cache

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newscardbot/fb-kpi-tracker/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	store, err := NewStore(filepath.Join(t.TempDir(), "analytics.db"), log)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func sampleReport(reach int) models.Report {
	return models.Report{
		Period:       models.Period{Since: "2026-02-02", Until: "2026-02-09", Type: "weekly"},
		Distribution: models.Distribution{TotalReach: reach, TotalPosts: 5},
		ComputedAt:   time.Date(2026, 2, 9, 9, 0, 0, 0, time.UTC),
	}
}

func TestSaveAndLoadPeriod(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.SavePeriod("2026-W06", sampleReport(1200)))

	loaded, ok := store.LoadPeriod("2026-W06")
	assert.True(t, ok)
	assert.Equal(t, 1200, loaded.Distribution.TotalReach)
	assert.Equal(t, "weekly", loaded.Period.Type)
}

func TestLoadPeriodAbsent(t *testing.T) {
	store := newTestStore(t)

	_, ok := store.LoadPeriod("2026-W01")
	assert.False(t, ok)
}

func TestSavePeriodOverwrites(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.SavePeriod("2026-W06", sampleReport(100)))
	require.NoError(t, store.SavePeriod("2026-W06", sampleReport(999)))

	loaded, ok := store.LoadPeriod("2026-W06")
	assert.True(t, ok)
	assert.Equal(t, 999, loaded.Distribution.TotalReach)
}

func TestLoadPreviousPeriod(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.SavePeriod("2026-W05", sampleReport(500)))

	prev, ok := store.LoadPreviousPeriod("2026-W06")
	assert.True(t, ok)
	assert.Equal(t, 500, prev.Distribution.TotalReach)

	// year boundary: previous of W01 is last year's W52
	require.NoError(t, store.SavePeriod("2025-W52", sampleReport(52)))
	prev, ok = store.LoadPreviousPeriod("2026-W01")
	assert.True(t, ok)
	assert.Equal(t, 52, prev.Distribution.TotalReach)

	_, ok = store.LoadPreviousPeriod("2026-W03")
	assert.False(t, ok)

	_, ok = store.LoadPreviousPeriod("garbage-key")
	assert.False(t, ok)
}

func TestRawCacheTTL(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.SaveRaw("page_reach_2026-02-02_2026-02-09", []byte(`{"reach":10}`), 60))

	payload, ok := store.LoadRaw("page_reach_2026-02-02_2026-02-09")
	assert.True(t, ok)
	assert.JSONEq(t, `{"reach":10}`, string(payload))

	_, ok = store.LoadRaw("unknown_endpoint")
	assert.False(t, ok)
}

func TestRawCacheExpired(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.SaveRaw("stale_endpoint", []byte(`{}`), 30))

	// backdate the entry past its TTL
	staleTime := time.Now().UTC().Add(-31 * time.Minute).Format(time.RFC3339)
	_, err := store.db.Exec("UPDATE api_cache SET cached_at = ? WHERE endpoint = ?", staleTime, "stale_endpoint")
	require.NoError(t, err)

	_, ok := store.LoadRaw("stale_endpoint")
	assert.False(t, ok)
}

func TestCleanupExpiredPeriods(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.SavePeriod("2025-W30", sampleReport(1)))
	require.NoError(t, store.SavePeriod("2026-W06", sampleReport(2)))

	// backdate one snapshot beyond the 180-day horizon
	old := time.Now().UTC().AddDate(0, 0, -181).Format(time.RFC3339)
	_, err := store.db.Exec("UPDATE period_reports SET fetched_at = ? WHERE period_key = ?", old, "2025-W30")
	require.NoError(t, err)

	removed := store.CleanupExpiredPeriods()
	assert.Equal(t, 1, removed)

	_, ok := store.LoadPeriod("2025-W30")
	assert.False(t, ok)

	_, ok = store.LoadPeriod("2026-W06")
	assert.True(t, ok)
}

func TestConcurrentSaves(t *testing.T) {
	store := newTestStore(t)

	done := make(chan struct{})
	for i := 0; i < 4; i++ {
		go func(n int) {
			defer func() { done <- struct{}{} }()
			for j := 0; j < 10; j++ {
				_ = store.SavePeriod("2026-W06", sampleReport(n*100+j))
				store.LoadPeriod("2026-W06")
			}
		}(i)
	}
	for i := 0; i < 4; i++ {
		<-done
	}

	_, ok := store.LoadPeriod("2026-W06")
	assert.True(t, ok)
}
