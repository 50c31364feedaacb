// Package store keeps a SQLite snapshot of the last fetched history for offline viewing.
package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/verte-zerg/tuimeta/internal/model"

	_ "modernc.org/sqlite" // SQLite driver.
)

// Store wraps SQLite access for history snapshots.
type Store struct {
	db *sql.DB
}

// HistorySnapshot is a cached list for one filter.
type HistorySnapshot struct {
	Filter    model.FilterCriteria
	Items     []model.HistoryItem
	FetchedAt time.Time
}

// StatisticsSnapshot is the cached aggregate.
type StatisticsSnapshot struct {
	Statistics model.Statistics
	FetchedAt  time.Time
}

// Open opens or creates the SQLite database and applies migrations.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		if cerr := db.Close(); cerr != nil {
			// Best-effort close on migration failure.
			_ = cerr
		}
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS history_snapshots (
			filter_key TEXT PRIMARY KEY,
			language TEXT NOT NULL,
			label TEXT NOT NULL,
			fetched_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS history_items (
			filter_key TEXT NOT NULL,
			position INTEGER NOT NULL,
			id TEXT NOT NULL,
			text TEXT NOT NULL,
			language TEXT NOT NULL,
			label TEXT NOT NULL,
			confidence REAL NOT NULL,
			translation TEXT NOT NULL,
			explanation TEXT NOT NULL,
			timestamp TEXT NOT NULL,
			PRIMARY KEY (filter_key, position)
		);`,
		`CREATE TABLE IF NOT EXISTS statistics_snapshot (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			total_predictions INTEGER NOT NULL,
			metaphor_count INTEGER NOT NULL,
			normal_count INTEGER NOT NULL,
			fetched_at TEXT NOT NULL
		);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// SaveHistory replaces the snapshot for filter with items, preserving their order.
func (s *Store) SaveHistory(ctx context.Context, filter model.FilterCriteria, items []model.HistoryItem, fetchedAt time.Time) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			if rerr := tx.Rollback(); rerr != nil {
				// Best-effort rollback.
				_ = rerr
			}
		}
	}()

	key := filter.Key()
	if _, err = tx.ExecContext(ctx, `DELETE FROM history_items WHERE filter_key = ?`, key); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx,
		`INSERT INTO history_snapshots (filter_key, language, label, fetched_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(filter_key) DO UPDATE SET fetched_at = excluded.fetched_at`,
		key, filter.Language, string(filter.Label), fetchedAt.UTC().Format(time.RFC3339Nano)); err != nil {
		return err
	}

	if len(items) > 0 {
		stmt, perr := tx.PrepareContext(ctx,
			`INSERT INTO history_items (filter_key, position, id, text, language, label, confidence, translation, explanation, timestamp)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if perr != nil {
			err = perr
			return err
		}
		defer func() {
			if cerr := stmt.Close(); cerr != nil {
				// Best-effort statement close.
				_ = cerr
			}
		}()
		for i, item := range items {
			ts := ""
			if !item.Timestamp.IsZero() {
				ts = item.Timestamp.UTC().Format(time.RFC3339Nano)
			}
			if _, err = stmt.ExecContext(ctx, key, i, item.ID, item.Text, item.Language, string(item.Label),
				item.Confidence, item.Translation, item.Explanation, ts); err != nil {
				return err
			}
		}
	}

	err = tx.Commit()
	return err
}

// LoadHistory returns the snapshot for filter. ok is false when none was saved.
func (s *Store) LoadHistory(ctx context.Context, filter model.FilterCriteria) (snap HistorySnapshot, ok bool, err error) {
	key := filter.Key()
	var fetchedAt string
	row := s.db.QueryRowContext(ctx, `SELECT fetched_at FROM history_snapshots WHERE filter_key = ?`, key)
	if err := row.Scan(&fetchedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return HistorySnapshot{}, false, nil
		}
		return HistorySnapshot{}, false, err
	}
	parsed, err := time.Parse(time.RFC3339Nano, fetchedAt)
	if err != nil {
		return HistorySnapshot{}, false, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, text, language, label, confidence, translation, explanation, timestamp
		 FROM history_items
		 WHERE filter_key = ?
		 ORDER BY position ASC`, key)
	if err != nil {
		return HistorySnapshot{}, false, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	items := []model.HistoryItem{}
	for rows.Next() {
		var item model.HistoryItem
		var label, ts string
		if err := rows.Scan(&item.ID, &item.Text, &item.Language, &label, &item.Confidence, &item.Translation, &item.Explanation, &ts); err != nil {
			return HistorySnapshot{}, false, err
		}
		item.Label = model.Label(label)
		if ts != "" {
			t, err := time.Parse(time.RFC3339Nano, ts)
			if err != nil {
				return HistorySnapshot{}, false, err
			}
			item.Timestamp = model.Timestamp{Time: t}
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return HistorySnapshot{}, false, err
	}
	return HistorySnapshot{Filter: filter, Items: items, FetchedAt: parsed}, true, nil
}

// SaveStatistics replaces the cached statistics.
func (s *Store) SaveStatistics(ctx context.Context, stats model.Statistics, fetchedAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO statistics_snapshot (id, total_predictions, metaphor_count, normal_count, fetched_at)
		 VALUES (1, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			total_predictions = excluded.total_predictions,
			metaphor_count = excluded.metaphor_count,
			normal_count = excluded.normal_count,
			fetched_at = excluded.fetched_at`,
		stats.TotalPredictions, stats.MetaphorCount, stats.NormalCount, fetchedAt.UTC().Format(time.RFC3339Nano))
	return err
}

// LoadStatistics returns the cached statistics. ok is false when none was saved.
func (s *Store) LoadStatistics(ctx context.Context) (snap StatisticsSnapshot, ok bool, err error) {
	var fetchedAt string
	row := s.db.QueryRowContext(ctx,
		`SELECT total_predictions, metaphor_count, normal_count, fetched_at FROM statistics_snapshot WHERE id = 1`)
	if err := row.Scan(&snap.Statistics.TotalPredictions, &snap.Statistics.MetaphorCount, &snap.Statistics.NormalCount, &fetchedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return StatisticsSnapshot{}, false, nil
		}
		return StatisticsSnapshot{}, false, err
	}
	parsed, err := time.Parse(time.RFC3339Nano, fetchedAt)
	if err != nil {
		return StatisticsSnapshot{}, false, err
	}
	snap.FetchedAt = parsed
	return snap, true, nil
}

// Clear drops every snapshot.
func (s *Store) Clear(ctx context.Context) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			if rerr := tx.Rollback(); rerr != nil {
				// Best-effort rollback.
				_ = rerr
			}
		}
	}()
	for _, stmt := range []string{
		`DELETE FROM history_items`,
		`DELETE FROM history_snapshots`,
		`DELETE FROM statistics_snapshot`,
	} {
		if _, err = tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	err = tx.Commit()
	return err
}
