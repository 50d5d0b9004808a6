// Package client is the device side of the bounty system: the durable
// offline submission queue, its HTTP deliverer, the connectivity
// watcher that triggers drains, and the device location service.
package client

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"log"
	"time"

	"cleanup-bounty-system/client/migrations"

	"github.com/pressly/goose/v3"
)

// QueuePersistError wraps a local storage write failure. It is fatal to
// that submission attempt and surfaces to the user immediately.
type QueuePersistError struct {
	Err error
}

func (e *QueuePersistError) Error() string {
	return fmt.Sprintf("failed to persist queued submission: %v", e.Err)
}

func (e *QueuePersistError) Unwrap() error { return e.Err }

// Item is one queued submission: an encoded photo plus the capture
// metadata the server needs to re-enter the validation path.
type Item struct {
	ID            int64
	Fingerprint   string
	Filename      string
	Payload       string // base64-encoded photo bytes
	Role          string
	CaptureSource string
	PlaceCity     string
	PlaceRegion   string
	SnapshotLat   *float64
	SnapshotLon   *float64
	CapturedAt    time.Time
	EnqueuedAt    time.Time
	Attempts      int
}

// Fingerprint derives the content identifier for a payload. Identical
// photo bytes always map to the same fingerprint, which is what makes
// redelivery safe.
func Fingerprint(payload string) string {
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}

// Deliverer ships a whole drained batch to the server in one call.
type Deliverer interface {
	Deliver(ctx context.Context, items []Item) error
}

// Queue is the durable client-side submission queue. All state lives in
// the SQLite file handed to Open; every mutation is an explicit call.
type Queue struct {
	db *sql.DB
}

// NewQueue wraps an already-migrated database (used by tests).
func NewQueue(db *sql.DB) *Queue {
	return &Queue{db: db}
}

// Open opens (creating if needed) the queue database at dsn and runs
// pending migrations.
func Open(ctx context.Context, dsn string) (*Queue, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := RunMigrations(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return &Queue{db: db}, nil
}

func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return err
	}
	return goose.UpContext(ctx, db, ".")
}

func (q *Queue) Close() error { return q.db.Close() }

// Enqueue appends a submission to the queue. Re-enqueueing identical
// content is a no-op thanks to the fingerprint's uniqueness.
func (q *Queue) Enqueue(ctx context.Context, item Item) error {
	if item.Fingerprint == "" {
		item.Fingerprint = Fingerprint(item.Payload)
	}
	if item.Role == "" {
		item.Role = "report"
	}
	if item.CaptureSource == "" {
		item.CaptureSource = "device-camera"
	}
	if item.CapturedAt.IsZero() {
		item.CapturedAt = time.Now()
	}

	query := `INSERT INTO queue_items
			(fingerprint, filename, payload, role, capture_source, place_city, place_region,
			 snapshot_latitude, snapshot_longitude, captured_at, enqueued_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(fingerprint) DO NOTHING`
	_, err := q.db.ExecContext(ctx, query,
		item.Fingerprint, item.Filename, item.Payload, item.Role, item.CaptureSource,
		item.PlaceCity, item.PlaceRegion, item.SnapshotLat, item.SnapshotLon,
		item.CapturedAt.UTC().Format(time.RFC3339Nano),
		time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return &QueuePersistError{Err: err}
	}
	return nil
}

// Items returns the full queue in enqueue order.
func (q *Queue) Items(ctx context.Context) ([]Item, error) {
	query := `SELECT id, fingerprint, filename, payload, role, capture_source,
			place_city, place_region, snapshot_latitude, snapshot_longitude,
			captured_at, enqueued_at, attempts
		FROM queue_items ORDER BY id ASC`
	rows, err := q.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var it Item
		var capturedAt, enqueuedAt string
		if err := rows.Scan(&it.ID, &it.Fingerprint, &it.Filename, &it.Payload,
			&it.Role, &it.CaptureSource, &it.PlaceCity, &it.PlaceRegion,
			&it.SnapshotLat, &it.SnapshotLon, &capturedAt, &enqueuedAt, &it.Attempts); err != nil {
			return nil, err
		}
		it.CapturedAt, _ = time.Parse(time.RFC3339Nano, capturedAt)
		it.EnqueuedAt, _ = time.Parse(time.RFC3339Nano, enqueuedAt)
		items = append(items, it)
	}
	return items, rows.Err()
}

func (q *Queue) Len(ctx context.Context) (int, error) {
	var n int
	err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM queue_items`).Scan(&n)
	return n, err
}

// Drain ships the entire queued batch through the deliverer. On success
// the delivered rows are removed in full; on delivery failure every row
// stays, attempt counts go up, and the next trigger retries — delivery
// failures are never fatal to the caller. Only storage errors propagate.
func (q *Queue) Drain(ctx context.Context, deliver Deliverer) error {
	items, err := q.Items(ctx)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}

	maxID := items[len(items)-1].ID
	if err := deliver.Deliver(ctx, items); err != nil {
		log.Printf("⚠️ Drain failed, keeping %d queued item(s): %v", len(items), err)
		if _, uerr := q.db.ExecContext(ctx,
			`UPDATE queue_items SET attempts = attempts + 1 WHERE id <= ?`, maxID); uerr != nil {
			return uerr
		}
		return nil
	}

	// Only rows that were part of this batch; anything enqueued during
	// delivery survives for the next drain.
	if _, err := q.db.ExecContext(ctx, `DELETE FROM queue_items WHERE id <= ?`, maxID); err != nil {
		return err
	}
	log.Printf("✅ Drained %d queued submission(s)", len(items))
	return nil
}
