// Package storage provides the durable store for normalized records and
// price alerts, backed by SQLite. The rest of the system treats it as an
// opaque persistence collaborator: upserts replace rows wholesale (matching
// the record immutability rule), reads tolerate concurrent writers, and the
// alert trigger transition is a single compare-and-set statement.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/feed-pulse/internal/models"
)

// Storage wraps the SQLite handle.
type Storage struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS records (
	id           TEXT PRIMARY KEY,
	source       TEXT NOT NULL,
	title        TEXT NOT NULL,
	summary      TEXT NOT NULL DEFAULT '',
	content      TEXT NOT NULL DEFAULT '',
	category     TEXT NOT NULL,
	importance   TEXT NOT NULL,
	publish_time INTEGER NOT NULL,
	tags         TEXT NOT NULL DEFAULT '[]',
	url          TEXT NOT NULL DEFAULT '',
	is_hot       INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_records_publish_time ON records(publish_time DESC);
CREATE INDEX IF NOT EXISTS idx_records_category ON records(category);

CREATE TABLE IF NOT EXISTS alerts (
	id           TEXT PRIMARY KEY,
	user_id      TEXT NOT NULL,
	symbol       TEXT NOT NULL,
	exchange     TEXT NOT NULL DEFAULT '',
	target_price REAL NOT NULL,
	condition    TEXT NOT NULL,
	is_active    INTEGER NOT NULL DEFAULT 1,
	is_triggered INTEGER NOT NULL DEFAULT 0,
	created_at   INTEGER NOT NULL,
	triggered_at INTEGER
);
CREATE INDEX IF NOT EXISTS idx_alerts_pending ON alerts(is_active, is_triggered);
`

// Open opens (creating if needed) the database at path. An empty path uses
// an OS-appropriate tmp location.
func Open(path string) (*Storage, error) {
	if path == "" {
		path = filepath.Join(os.TempDir(), "feedpulse", "feedpulse.db")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite serializes writers; a single connection avoids SQLITE_BUSY
	// churn between the evaluator loop and aggregation requests.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return &Storage{db: db}, nil
}

// Close releases the database handle.
func (s *Storage) Close() error {
	return s.db.Close()
}

// UpsertRecords replaces each record's row wholesale, keyed by its
// namespaced ID. Runs in one transaction so a batch is all-or-nothing.
func (s *Storage) UpsertRecords(ctx context.Context, records []models.Record) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO records (id, source, title, summary, content, category, importance, publish_time, tags, url, is_hot)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			source = excluded.source, title = excluded.title, summary = excluded.summary,
			content = excluded.content, category = excluded.category, importance = excluded.importance,
			publish_time = excluded.publish_time, tags = excluded.tags, url = excluded.url,
			is_hot = excluded.is_hot`)
	if err != nil {
		return fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		tags, err := json.Marshal(r.Tags)
		if err != nil {
			return fmt.Errorf("failed to marshal tags for %s: %w", r.ID, err)
		}
		if _, err := stmt.ExecContext(ctx,
			r.ID, string(r.Source), r.Title, r.Summary, r.Content,
			string(r.Category), string(r.Importance), r.PublishTime.UnixMilli(),
			string(tags), r.URL, boolToInt(r.IsHot),
		); err != nil {
			return fmt.Errorf("failed to upsert record %s: %w", r.ID, err)
		}
	}
	return tx.Commit()
}

// RecordQuery narrows FindRecords. Zero fields apply no constraint.
type RecordQuery struct {
	Sources    []models.Source
	Categories []models.Category
	From       time.Time // Half-open [From, To)
	To         time.Time
	Limit      int
}

// FindRecords returns persisted records matching the query, newest first.
func (s *Storage) FindRecords(ctx context.Context, q RecordQuery) ([]models.Record, error) {
	var where []string
	var args []any

	if len(q.Sources) > 0 {
		where = append(where, "source IN ("+placeholders(len(q.Sources))+")")
		for _, src := range q.Sources {
			args = append(args, string(src))
		}
	}
	if len(q.Categories) > 0 {
		where = append(where, "category IN ("+placeholders(len(q.Categories))+")")
		for _, c := range q.Categories {
			args = append(args, string(c))
		}
	}
	if !q.From.IsZero() {
		where = append(where, "publish_time >= ?")
		args = append(args, q.From.UnixMilli())
	}
	if !q.To.IsZero() {
		where = append(where, "publish_time < ?")
		args = append(args, q.To.UnixMilli())
	}

	query := "SELECT id, source, title, summary, content, category, importance, publish_time, tags, url, is_hot FROM records"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY publish_time DESC"
	if q.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, q.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	var records []models.Record
	for rows.Next() {
		var r models.Record
		var source, category, importance, tags string
		var publishMillis int64
		var isHot int
		if err := rows.Scan(&r.ID, &source, &r.Title, &r.Summary, &r.Content,
			&category, &importance, &publishMillis, &tags, &r.URL, &isHot); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		r.Source = models.Source(source)
		r.Category = models.Category(category)
		r.Importance = models.Importance(importance)
		r.PublishTime = time.UnixMilli(publishMillis)
		r.IsHot = isHot != 0
		if err := json.Unmarshal([]byte(tags), &r.Tags); err != nil {
			return nil, fmt.Errorf("failed to unmarshal tags for %s: %w", r.ID, err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// DeleteRecord removes one record by ID.
func (s *Storage) DeleteRecord(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM records WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete record %s: %w", id, err)
	}
	return nil
}

// CountByCategory returns record counts grouped by category.
func (s *Storage) CountByCategory(ctx context.Context) (map[models.Category]int, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT category, COUNT(*) FROM records GROUP BY category")
	if err != nil {
		return nil, fmt.Errorf("failed to count by category: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.Category]int)
	for rows.Next() {
		var category string
		var n int
		if err := rows.Scan(&category, &n); err != nil {
			return nil, fmt.Errorf("failed to scan category count: %w", err)
		}
		counts[models.Category(category)] = n
	}
	return counts, rows.Err()
}

// UpsertAlert inserts or replaces an alert row.
func (s *Storage) UpsertAlert(ctx context.Context, a *models.PriceAlert) error {
	if err := a.Validate(); err != nil {
		return fmt.Errorf("invalid alert: %w", err)
	}

	var triggeredAt any
	if a.TriggeredAt != nil {
		triggeredAt = a.TriggeredAt.UnixMilli()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO alerts (id, user_id, symbol, exchange, target_price, condition, is_active, is_triggered, created_at, triggered_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			user_id = excluded.user_id, symbol = excluded.symbol, exchange = excluded.exchange,
			target_price = excluded.target_price, condition = excluded.condition,
			is_active = excluded.is_active, is_triggered = excluded.is_triggered,
			created_at = excluded.created_at, triggered_at = excluded.triggered_at`,
		a.ID, a.UserID, a.Symbol, a.Exchange, a.TargetPrice, string(a.Condition),
		boolToInt(a.IsActive), boolToInt(a.IsTriggered), a.CreatedAt.UnixMilli(), triggeredAt)
	if err != nil {
		return fmt.Errorf("failed to upsert alert %s: %w", a.ID, err)
	}
	return nil
}

// ActiveAlerts returns all alerts that are active and not yet triggered.
func (s *Storage) ActiveAlerts(ctx context.Context) ([]models.PriceAlert, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, symbol, exchange, target_price, condition, is_active, is_triggered, created_at, triggered_at
		FROM alerts WHERE is_active = 1 AND is_triggered = 0 ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to query active alerts: %w", err)
	}
	defer rows.Close()

	var alerts []models.PriceAlert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

// GetAlert returns one alert by ID, or sql.ErrNoRows.
func (s *Storage) GetAlert(ctx context.Context, id string) (*models.PriceAlert, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, symbol, exchange, target_price, condition, is_active, is_triggered, created_at, triggered_at
		FROM alerts WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query alert %s: %w", id, err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, sql.ErrNoRows
	}
	a, err := scanAlert(rows)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// MarkTriggered flips an alert to triggered if and only if it has not
// already fired. The WHERE clause is the monotonic guard: two overlapping
// evaluation ticks racing on the same alert see exactly one row update.
func (s *Storage) MarkTriggered(ctx context.Context, id string, at time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		"UPDATE alerts SET is_triggered = 1, triggered_at = ? WHERE id = ? AND is_triggered = 0",
		at.UnixMilli(), id)
	if err != nil {
		return false, fmt.Errorf("failed to mark alert %s triggered: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n == 1, nil
}

// DeleteAlert removes one alert by ID.
func (s *Storage) DeleteAlert(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM alerts WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete alert %s: %w", id, err)
	}
	return nil
}

func scanAlert(rows *sql.Rows) (models.PriceAlert, error) {
	var a models.PriceAlert
	var condition string
	var isActive, isTriggered int
	var createdMillis int64
	var triggeredMillis sql.NullInt64
	if err := rows.Scan(&a.ID, &a.UserID, &a.Symbol, &a.Exchange, &a.TargetPrice,
		&condition, &isActive, &isTriggered, &createdMillis, &triggeredMillis); err != nil {
		return models.PriceAlert{}, fmt.Errorf("failed to scan alert: %w", err)
	}
	a.Condition = models.Condition(condition)
	a.IsActive = isActive != 0
	a.IsTriggered = isTriggered != 0
	a.CreatedAt = time.UnixMilli(createdMillis)
	if triggeredMillis.Valid {
		t := time.UnixMilli(triggeredMillis.Int64)
		a.TriggeredAt = &t
	}
	return a, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
