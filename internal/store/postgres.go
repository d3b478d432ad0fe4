package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"

	"pwa-notify-go/internal/models"

	_ "github.com/lib/pq"
)

//go:embed postgres_schema.sql
var postgresSchemaSQL string

// PostgresSubscriptions is the durable server registry, selected when
// DATABASE_URL is set.
type PostgresSubscriptions struct {
	db *sql.DB
}

func NewPostgresSubscriptions(databaseURL string) (*PostgresSubscriptions, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresSubscriptions{db: db}, nil
}

// RunMigrations creates tables if they don't exist and applies schema updates
func (s *PostgresSubscriptions) RunMigrations(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, postgresSchemaSQL); err != nil {
		return err
	}

	// Apply migrations for existing tables
	migrations := []string{
		`ALTER TABLE push_subscriptions ADD COLUMN IF NOT EXISTS config JSONB NOT NULL DEFAULT '{}';`,
		`ALTER TABLE push_subscriptions ADD COLUMN IF NOT EXISTS active BOOLEAN NOT NULL DEFAULT TRUE;`,
	}

	for _, migration := range migrations {
		if _, err := s.db.ExecContext(ctx, migration); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	return nil
}

func (s *PostgresSubscriptions) Close() error {
	return s.db.Close()
}

func (s *PostgresSubscriptions) SaveSubscription(ctx context.Context, sub models.ServerSubscription) (models.ServerSubscription, error) {
	configJSON, err := json.Marshal(sub.Config)
	if err != nil {
		return models.ServerSubscription{}, err
	}

	var saved models.ServerSubscription
	var savedConfig []byte
	err = s.db.QueryRowContext(ctx,
		`INSERT INTO push_subscriptions (user_id, type, endpoint, p256dh, auth, config, active, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, TRUE, NOW(), NOW())
		 ON CONFLICT (endpoint, type) DO UPDATE
		   SET p256dh = EXCLUDED.p256dh,
		       auth = EXCLUDED.auth,
		       config = EXCLUDED.config,
		       user_id = CASE WHEN EXCLUDED.user_id = '' THEN push_subscriptions.user_id ELSE EXCLUDED.user_id END,
		       active = TRUE,
		       updated_at = NOW()
		 RETURNING id, user_id, type, endpoint, p256dh, auth, config, active, created_at, updated_at`,
		sub.UserID, sub.Type, sub.Endpoint, sub.P256dh, sub.Auth, configJSON,
	).Scan(&saved.ID, &saved.UserID, &saved.Type, &saved.Endpoint, &saved.P256dh, &saved.Auth,
		&savedConfig, &saved.Active, &saved.CreatedAt, &saved.UpdatedAt)
	if err != nil {
		return models.ServerSubscription{}, err
	}

	if err := json.Unmarshal(savedConfig, &saved.Config); err != nil {
		saved.Config = models.NotificationConfig{}
	}
	return saved, nil
}

func (s *PostgresSubscriptions) Subscriptions(ctx context.Context, userID, typ string, activeOnly bool) ([]models.ServerSubscription, error) {
	query := `SELECT id, user_id, type, endpoint, p256dh, auth, config, active, created_at, updated_at
	          FROM push_subscriptions
	          WHERE ($1 = '' OR user_id = $1)
	            AND ($2 = '' OR type = $2)
	            AND (NOT $3 OR active)
	          ORDER BY id ASC`

	rows, err := s.db.QueryContext(ctx, query, userID, typ, activeOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []models.ServerSubscription
	for rows.Next() {
		var sub models.ServerSubscription
		var configJSON []byte
		if err := rows.Scan(&sub.ID, &sub.UserID, &sub.Type, &sub.Endpoint, &sub.P256dh, &sub.Auth,
			&configJSON, &sub.Active, &sub.CreatedAt, &sub.UpdatedAt); err != nil {
			continue
		}
		if err := json.Unmarshal(configJSON, &sub.Config); err != nil {
			sub.Config = models.NotificationConfig{}
		}
		subs = append(subs, sub)
	}

	return subs, nil
}

func (s *PostgresSubscriptions) DeactivateSubscription(ctx context.Context, endpoint, typ string) (int, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE push_subscriptions SET active = FALSE, updated_at = NOW()
		 WHERE endpoint = $1 AND ($2 = '' OR type = $2) AND active`,
		endpoint, typ,
	)
	if err != nil {
		return 0, err
	}

	rows, _ := result.RowsAffected()
	return int(rows), nil
}

func (s *PostgresSubscriptions) DeleteSubscription(ctx context.Context, endpoint string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM push_subscriptions WHERE endpoint = $1`, endpoint)
	return err
}

func (s *PostgresSubscriptions) CountActive(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM push_subscriptions WHERE active`).Scan(&n)
	return n, err
}
