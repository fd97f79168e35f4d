package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// NewPool opens and pings a connection pool.
func NewPool(ctx context.Context, databaseURL string, maxConns, minConns int32) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	if minConns > 0 {
		cfg.MinConns = minConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}

// notifyChannel carries the id of every written patient row.
const notifyChannel = "patients_changed"

const schemaSQL = `
CREATE TABLE IF NOT EXISTS patients (
	id           TEXT PRIMARY KEY,
	body         JSONB NOT NULL,
	last_updated BIGINT NOT NULL
);

CREATE INDEX IF NOT EXISTS patients_last_updated_idx ON patients (last_updated DESC);

CREATE OR REPLACE FUNCTION notify_patients_changed() RETURNS trigger AS $$
BEGIN
	PERFORM pg_notify('` + notifyChannel + `', COALESCE(NEW.id, OLD.id));
	RETURN NULL;
END;
$$ LANGUAGE plpgsql;

DROP TRIGGER IF EXISTS patients_changed ON patients;
CREATE TRIGGER patients_changed
	AFTER INSERT OR UPDATE OR DELETE ON patients
	FOR EACH ROW EXECUTE FUNCTION notify_patients_changed();
`

// EnsureSchema creates the patients table and its change trigger.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure patients schema: %w", err)
	}
	return nil
}
