// Package cache is the durable metrics store: period-keyed KPI report
// snapshots (kept for 180 days) and short-TTL raw API response snapshots.
// All mutations serialize behind a single lock; reads degrade to "absent"
// on any failure so a missing or corrupt store never blocks report builds.
package cache

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"

	"github.com/newscardbot/fb-kpi-tracker/models"
	"github.com/newscardbot/fb-kpi-tracker/period"
)

const retentionDays = 180 // 6 months

// Store provides methods for saving and loading analytics snapshots
type Store struct {
	db    *sql.DB
	mutex sync.RWMutex
	log   *logrus.Logger
}

// NewStore opens (or creates) the SQLite-backed store at dbPath
func NewStore(dbPath string, log *logrus.Logger) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping cache database: %w", err)
	}

	store := &Store{
		db:  db,
		log: log,
	}

	if err := store.initTables(); err != nil {
		return nil, fmt.Errorf("failed to initialize cache tables: %w", err)
	}

	return store, nil
}

// Close closes the underlying database
func (s *Store) Close() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.db.Close()
}

// initTables creates the necessary tables if they don't exist
func (s *Store) initTables() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	query := `
	CREATE TABLE IF NOT EXISTS period_reports (
		period_key TEXT PRIMARY KEY,
		fetched_at TEXT NOT NULL,
		payload TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS api_cache (
		endpoint TEXT PRIMARY KEY,
		cached_at TEXT NOT NULL,
		ttl_minutes INTEGER NOT NULL,
		payload TEXT NOT NULL
	);
	`

	_, err := s.db.Exec(query)
	return err
}

// SavePeriod persists a report snapshot under its period key. The write is
// synchronous: once this returns nil the snapshot is durable.
func (s *Store) SavePeriod(key string, report models.Report) error {
	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal report for %s: %w", key, err)
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	query := `
	INSERT OR REPLACE INTO period_reports (period_key, fetched_at, payload)
	VALUES (?, ?, ?)
	`

	if _, err := s.db.Exec(query, key, time.Now().UTC().Format(time.RFC3339), string(payload)); err != nil {
		return fmt.Errorf("failed to save period %s: %w", key, err)
	}

	return nil
}

// LoadPeriod returns the snapshot for a period key, or false if absent.
// Read failures are logged and reported as absent: the caller treats
// "no cache" as "build fresh".
func (s *Store) LoadPeriod(key string) (models.Report, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	var payload string
	err := s.db.QueryRow("SELECT payload FROM period_reports WHERE period_key = ?", key).Scan(&payload)
	if err == sql.ErrNoRows {
		return models.Report{}, false
	}
	if err != nil {
		s.log.WithError(err).WithField("period_key", key).Error("Failed to load period snapshot")
		return models.Report{}, false
	}

	var report models.Report
	if err := json.Unmarshal([]byte(payload), &report); err != nil {
		s.log.WithError(err).WithField("period_key", key).Error("Corrupt period snapshot, treating as absent")
		return models.Report{}, false
	}

	return report, true
}

// LoadPreviousPeriod returns the snapshot for the period immediately before
// the given key (for WoW/MoM comparison), or false if absent.
func (s *Store) LoadPreviousPeriod(key string) (models.Report, bool) {
	prevKey := period.Decrement(key)
	if prevKey == "" {
		return models.Report{}, false
	}
	return s.LoadPeriod(prevKey)
}

// SaveRaw caches a raw API response payload under an endpoint key with a TTL.
func (s *Store) SaveRaw(endpoint string, payload []byte, ttlMinutes int) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	query := `
	INSERT OR REPLACE INTO api_cache (endpoint, cached_at, ttl_minutes, payload)
	VALUES (?, ?, ?, ?)
	`

	if _, err := s.db.Exec(query, endpoint, time.Now().UTC().Format(time.RFC3339), ttlMinutes, string(payload)); err != nil {
		return fmt.Errorf("failed to cache response for %s: %w", endpoint, err)
	}

	return nil
}

// LoadRaw returns a cached API payload if it is still within its TTL.
// Expired entries are reported absent but not removed here.
func (s *Store) LoadRaw(endpoint string) ([]byte, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	var cachedAt string
	var ttlMinutes int
	var payload string
	err := s.db.QueryRow(
		"SELECT cached_at, ttl_minutes, payload FROM api_cache WHERE endpoint = ?",
		endpoint,
	).Scan(&cachedAt, &ttlMinutes, &payload)
	if err == sql.ErrNoRows {
		return nil, false
	}
	if err != nil {
		s.log.WithError(err).WithField("endpoint", endpoint).Error("Failed to load cached response")
		return nil, false
	}

	cachedTime, err := time.Parse(time.RFC3339, cachedAt)
	if err != nil {
		s.log.WithError(err).WithField("endpoint", endpoint).Warn("Bad cached_at timestamp, treating entry as expired")
		return nil, false
	}

	if time.Since(cachedTime) >= time.Duration(ttlMinutes)*time.Minute {
		return nil, false
	}

	return []byte(payload), true
}

// CleanupExpiredPeriods removes period snapshots older than the retention
// horizon. Returns the number of deleted entries.
func (s *Store) CleanupExpiredPeriods() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays).Format(time.RFC3339)

	result, err := s.db.Exec("DELETE FROM period_reports WHERE fetched_at < ?", cutoff)
	if err != nil {
		s.log.WithError(err).Error("Failed to clean up old period snapshots")
		return 0
	}

	removed, _ := result.RowsAffected()
	if removed > 0 {
		s.log.WithField("removed", removed).Info("Cleaned up old cache entries")
	}

	return int(removed)
}
