package campaign

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// PostgresStore persists campaigns in Postgres, one row per campaign keyed
// by tenant and id with the campaign body as JSONB. It implements the same
// whole-list read/write contract as the file store.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// Schema is the DDL the store expects. Applied by deployment tooling, not
// by the store itself.
const Schema = `
CREATE TABLE IF NOT EXISTS campaigns (
	tenant     TEXT NOT NULL,
	id         TEXT NOT NULL,
	data       JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (tenant, id)
);
`

// NewPostgresStore creates a PostgresStore and verifies connectivity.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("campaign store: parse database URL: %w", err)
	}
	config.MaxConnLifetime = 1 * time.Hour
	config.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("campaign store: create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("campaign store: ping database: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() { s.pool.Close() }

// ListShops returns every tenant that owns at least one campaign.
func (s *PostgresStore) ListShops() ([]string, error) {
	rows, err := s.pool.Query(context.Background(),
		`SELECT DISTINCT tenant FROM campaigns ORDER BY tenant`)
	if err != nil {
		return nil, fmt.Errorf("campaign store: list tenants: %w", err)
	}
	defer rows.Close()

	var shops []string
	for rows.Next() {
		var tenant string
		if err := rows.Scan(&tenant); err != nil {
			return nil, fmt.Errorf("campaign store: scan tenant: %w", err)
		}
		shops = append(shops, tenant)
	}
	return shops, rows.Err()
}

// ReadCampaigns loads a tenant's campaigns. Rows with malformed JSON are
// skipped rather than failing the read.
func (s *PostgresStore) ReadCampaigns(tenant string) ([]Campaign, error) {
	rows, err := s.pool.Query(context.Background(),
		`SELECT data FROM campaigns WHERE tenant = $1 ORDER BY id`, tenant)
	if err != nil {
		return nil, fmt.Errorf("campaign store: read %s: %w", tenant, err)
	}
	defer rows.Close()

	var campaigns []Campaign
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("campaign store: scan campaign: %w", err)
		}
		var c Campaign
		if err := json.Unmarshal(data, &c); err != nil {
			log.Warn().Err(err).Str("tenant", tenant).Msg("malformed campaign row, skipping")
			continue
		}
		campaigns = append(campaigns, c)
	}
	return campaigns, rows.Err()
}

// WriteCampaigns replaces a tenant's campaign set in one transaction.
func (s *PostgresStore) WriteCampaigns(tenant string, campaigns []Campaign) error {
	ctx := context.Background()
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("campaign store: begin write: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM campaigns WHERE tenant = $1`, tenant); err != nil {
		return fmt.Errorf("campaign store: clear %s: %w", tenant, err)
	}

	for _, c := range campaigns {
		data, err := json.Marshal(c)
		if err != nil {
			return fmt.Errorf("campaign store: marshal campaign %s: %w", c.ID, err)
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO campaigns (tenant, id, data, updated_at) VALUES ($1, $2, $3, now())`,
			tenant, c.ID, data); err != nil {
			return fmt.Errorf("campaign store: insert campaign %s: %w", c.ID, err)
		}
	}
	return tx.Commit(ctx)
}
