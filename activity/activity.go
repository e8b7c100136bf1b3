// Package activity is the local publish ledger: one row per card published
// to Facebook, updated afterwards with the engagement numbers the bot
// collects. The KPI builder reads it to enrich the page feed, whose posts
// carry no engagement data of their own.
package activity

import (
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"

	"github.com/newscardbot/fb-kpi-tracker/models"
)

// Ledger provides methods for recording and reading publish events
type Ledger struct {
	db    *sql.DB
	mutex sync.RWMutex
	log   *logrus.Logger
}

// NewLedger opens (or creates) the SQLite-backed ledger at dbPath
func NewLedger(dbPath string, log *logrus.Logger) (*Ledger, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open activity database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping activity database: %w", err)
	}

	ledger := &Ledger{
		db:  db,
		log: log,
	}

	if err := ledger.initTables(); err != nil {
		return nil, fmt.Errorf("failed to initialize activity tables: %w", err)
	}

	return ledger, nil
}

// Close closes the database connection
func (l *Ledger) Close() error {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	return l.db.Close()
}

func (l *Ledger) initTables() error {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	query := `
	CREATE TABLE IF NOT EXISTS activity_log (
		id TEXT PRIMARY KEY,
		timestamp TEXT NOT NULL,
		published_at TEXT,
		source TEXT NOT NULL,
		title TEXT NOT NULL,
		caption TEXT,
		status TEXT NOT NULL,
		facebook_post_id TEXT,
		likes INTEGER NOT NULL DEFAULT 0,
		comments INTEGER NOT NULL DEFAULT 0,
		shares INTEGER NOT NULL DEFAULT 0,
		reactions_love INTEGER NOT NULL DEFAULT 0,
		reactions_haha INTEGER NOT NULL DEFAULT 0,
		reactions_wow INTEGER NOT NULL DEFAULT 0,
		reactions_sad INTEGER NOT NULL DEFAULT 0,
		reactions_angry INTEGER NOT NULL DEFAULT 0,
		post_reach INTEGER NOT NULL DEFAULT 0,
		clicks INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_activity_fb_post ON activity_log(facebook_post_id);
	CREATE INDEX IF NOT EXISTS idx_activity_timestamp ON activity_log(timestamp);
	`

	_, err := l.db.Exec(query)
	return err
}

// LogPublish records a new publish event and returns its ledger id.
// facebookPostID may be empty for entries still awaiting approval.
func (l *Ledger) LogPublish(source, title, caption, status, facebookPostID string) (string, error) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	id := newID()
	now := time.Now().UTC().Format(time.RFC3339)
	publishedAt := ""
	if facebookPostID != "" {
		publishedAt = now
	}

	query := `
	INSERT INTO activity_log (id, timestamp, published_at, source, title, caption, status, facebook_post_id)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	if _, err := l.db.Exec(query, id, now, publishedAt, source, title, caption, status, facebookPostID); err != nil {
		return "", fmt.Errorf("failed to log publish event: %w", err)
	}

	l.log.WithFields(logrus.Fields{
		"source": source,
		"status": status,
	}).Debug("Activity entry recorded")

	return id, nil
}

// UpdateEngagement stores the collected engagement numbers for a published
// post, keyed by its Facebook post id.
func (l *Ledger) UpdateEngagement(facebookPostID string, likes, comments, shares int,
	reactions models.Reactions, reach, clicks int) error {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	query := `
	UPDATE activity_log SET
		likes = ?, comments = ?, shares = ?,
		reactions_love = ?, reactions_haha = ?, reactions_wow = ?,
		reactions_sad = ?, reactions_angry = ?,
		post_reach = ?, clicks = ?
	WHERE facebook_post_id = ?
	`

	result, err := l.db.Exec(query, likes, comments, shares,
		reactions.Love, reactions.Haha, reactions.Wow, reactions.Sad, reactions.Angry,
		reach, clicks, facebookPostID)
	if err != nil {
		return fmt.Errorf("failed to update engagement for %s: %w", facebookPostID, err)
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("no ledger entry for post %s", facebookPostID)
	}

	return nil
}

// PublishedSince returns the published entries (those with a Facebook post
// id) recorded at or after the given time, oldest first.
func (l *Ledger) PublishedSince(since time.Time) ([]models.ActivityEntry, error) {
	l.mutex.RLock()
	defer l.mutex.RUnlock()

	query := `
	SELECT id, timestamp, published_at, source, title, caption, status, facebook_post_id,
		likes, comments, shares,
		reactions_love, reactions_haha, reactions_wow, reactions_sad, reactions_angry,
		post_reach, clicks
	FROM activity_log
	WHERE facebook_post_id != '' AND timestamp >= ?
	ORDER BY timestamp ASC
	`

	rows, err := l.db.Query(query, since.UTC().Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("failed to query activity entries: %w", err)
	}
	defer rows.Close()

	entries := make([]models.ActivityEntry, 0)
	for rows.Next() {
		var entry models.ActivityEntry
		var timestamp string

		err := rows.Scan(
			&entry.ID, &timestamp, &entry.PublishedAt, &entry.Source, &entry.Title,
			&entry.Caption, &entry.Status, &entry.FacebookPostID,
			&entry.Likes, &entry.Comments, &entry.Shares,
			&entry.Reactions.Love, &entry.Reactions.Haha, &entry.Reactions.Wow,
			&entry.Reactions.Sad, &entry.Reactions.Angry,
			&entry.PostReach, &entry.Clicks,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan activity entry: %w", err)
		}

		entry.Timestamp, _ = time.Parse(time.RFC3339, timestamp)
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return entries, nil
}

func newID() string {
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(buf)
}
