package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"pwa-notify-go/internal/models"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var localSchemaSQL string

// localSchemaVersion tracks the device database layout. Opening a database
// persisted at a lower version applies the missing DDL exactly once; tables
// and indexes that already exist are left untouched.
const localSchemaVersion = 2

// LocalStore is the durable device-side database backing the offline queue,
// the API response cache, and the subscription registry. It survives
// restarts and offline periods; a failure to open it is fatal to the caller.
type LocalStore struct {
	db *sql.DB
}

func OpenLocalStore(path string) (*LocalStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open local database: %w", err)
	}

	// sqlite allows a single writer; funnel everything through one
	// connection so interleaved writes never hit SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping local database: %w", err)
	}

	s := &LocalStore{db: db}
	if err := s.migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate local database: %w", err)
	}
	return s, nil
}

func (s *LocalStore) migrate(ctx context.Context) error {
	var version int
	if err := s.db.QueryRowContext(ctx, `PRAGMA user_version`).Scan(&version); err != nil {
		return err
	}
	if version >= localSchemaVersion {
		return nil
	}

	if _, err := s.db.ExecContext(ctx, localSchemaSQL); err != nil {
		return err
	}

	// v2 added a per-record attempt counter to pending_requests.
	if _, err := s.db.ExecContext(ctx,
		`ALTER TABLE pending_requests ADD COLUMN attempts INTEGER NOT NULL DEFAULT 0`,
	); err != nil && !strings.Contains(err.Error(), "duplicate column") {
		return fmt.Errorf("migration failed: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, fmt.Sprintf(`PRAGMA user_version = %d`, localSchemaVersion)); err != nil {
		return err
	}
	return nil
}

func (s *LocalStore) Close() error {
	return s.db.Close()
}

// Pending request methods

func (s *LocalStore) AddPending(ctx context.Context, req models.PendingRequest) (int64, error) {
	headers := req.Headers
	if headers == nil {
		headers = map[string]string{}
	}
	headersJSON, err := json.Marshal(headers)
	if err != nil {
		return 0, err
	}

	createdAt := req.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO pending_requests (url, method, headers, body, endpoint, request_id, attempts, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		req.URL, req.Method, string(headersJSON), req.Body, req.Endpoint, req.RequestID, req.Attempts,
		createdAt.UnixMilli(),
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// ListPending returns every queued request, oldest first. The auto-assigned
// key gives insertion order for free, which is the replay order.
func (s *LocalStore) ListPending(ctx context.Context) ([]models.PendingRequest, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, url, method, headers, body, endpoint, request_id, attempts, created_at
		 FROM pending_requests ORDER BY id ASC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pending []models.PendingRequest
	for rows.Next() {
		var req models.PendingRequest
		var headersJSON string
		var createdAt int64
		if err := rows.Scan(&req.ID, &req.URL, &req.Method, &headersJSON, &req.Body,
			&req.Endpoint, &req.RequestID, &req.Attempts, &createdAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(headersJSON), &req.Headers); err != nil {
			req.Headers = map[string]string{}
		}
		req.CreatedAt = time.UnixMilli(createdAt).UTC()
		pending = append(pending, req)
	}
	return pending, rows.Err()
}

func (s *LocalStore) CountPending(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM pending_requests`).Scan(&n)
	return n, err
}

// DeletePending removes a queued request. Deleting a key that is already
// gone succeeds silently.
func (s *LocalStore) DeletePending(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM pending_requests WHERE id = ?`, id)
	return err
}

func (s *LocalStore) SetPendingAttempts(ctx context.Context, id int64, attempts int) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE pending_requests SET attempts = ? WHERE id = ?`, attempts, id)
	return err
}

// API cache methods

func (s *LocalStore) PutCache(ctx context.Context, entry models.ApiCacheEntry) error {
	fetchedAt := entry.FetchedAt
	if fetchedAt.IsZero() {
		fetchedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO api_cache (url, data, endpoint, fetched_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(url) DO UPDATE SET data = excluded.data, endpoint = excluded.endpoint, fetched_at = excluded.fetched_at`,
		entry.URL, entry.Data, entry.Endpoint, fetchedAt.UnixMilli(),
	)
	return err
}

// GetCache returns the entry for a URL regardless of age; the caller decides
// freshness. The second result is false when no entry exists.
func (s *LocalStore) GetCache(ctx context.Context, url string) (models.ApiCacheEntry, bool, error) {
	var entry models.ApiCacheEntry
	var fetchedAt int64
	err := s.db.QueryRowContext(ctx,
		`SELECT url, data, endpoint, fetched_at FROM api_cache WHERE url = ?`, url,
	).Scan(&entry.URL, &entry.Data, &entry.Endpoint, &fetchedAt)
	if err == sql.ErrNoRows {
		return models.ApiCacheEntry{}, false, nil
	}
	if err != nil {
		return models.ApiCacheEntry{}, false, err
	}
	entry.FetchedAt = time.UnixMilli(fetchedAt).UTC()
	return entry, true, nil
}

// Subscription methods

func (s *LocalStore) SaveSubscription(ctx context.Context, rec *models.SubscriptionRecord) (int64, error) {
	configJSON, err := json.Marshal(rec.Config)
	if err != nil {
		return 0, err
	}

	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now

	var active any
	if rec.Active != nil {
		if *rec.Active {
			active = 1
		} else {
			active = 0
		}
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO subscriptions (type, endpoint, p256dh, auth, config, active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.Type, rec.Endpoint, rec.P256dh, rec.Auth, string(configJSON), active,
		rec.CreatedAt.UnixMilli(), rec.UpdatedAt.UnixMilli(),
	)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	rec.ID = id
	return id, nil
}

// Subscriptions lists stored subscriptions, optionally filtered by type.
// With activeOnly set, records whose active flag is NULL count as active;
// only an explicit 0 excludes a record.
func (s *LocalStore) Subscriptions(ctx context.Context, typ string, activeOnly bool) ([]models.SubscriptionRecord, error) {
	query := `SELECT id, type, endpoint, p256dh, auth, config, active, created_at, updated_at FROM subscriptions`
	var where []string
	var args []any
	if typ != "" {
		where = append(where, `type = ?`)
		args = append(args, typ)
	}
	if activeOnly {
		where = append(where, `(active IS NULL OR active != 0)`)
	}
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, ` AND `)
	}
	query += ` ORDER BY id ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []models.SubscriptionRecord
	for rows.Next() {
		var rec models.SubscriptionRecord
		var configJSON string
		var active sql.NullInt64
		var createdAt, updatedAt int64
		if err := rows.Scan(&rec.ID, &rec.Type, &rec.Endpoint, &rec.P256dh, &rec.Auth,
			&configJSON, &active, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(configJSON), &rec.Config); err != nil {
			rec.Config = models.NotificationConfig{}
		}
		if active.Valid {
			v := active.Int64 != 0
			rec.Active = &v
		}
		rec.CreatedAt = time.UnixMilli(createdAt).UTC()
		rec.UpdatedAt = time.UnixMilli(updatedAt).UTC()
		subs = append(subs, rec)
	}
	return subs, rows.Err()
}

// DeactivateSubscription flips a record to inactive. The record itself is
// never deleted so subscription history survives unsubscribes.
func (s *LocalStore) DeactivateSubscription(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE subscriptions SET active = 0, updated_at = ? WHERE id = ?`,
		time.Now().UTC().UnixMilli(), id)
	return err
}
