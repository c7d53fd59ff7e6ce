package staffdir

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresDirectory reads provisioned staff accounts from the
// registered_users table.
type PostgresDirectory struct {
	pool *pgxpool.Pool
}

func NewPostgresDirectory(ctx context.Context, dsn string) (*PostgresDirectory, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to staff directory database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging staff directory database: %w", err)
	}
	return &PostgresDirectory{pool: pool}, nil
}

const createTableSQL = `
CREATE TABLE IF NOT EXISTS registered_users (
	digital_id TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	role       TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'active'
)`

func (d *PostgresDirectory) EnsureSchema(ctx context.Context) error {
	if _, err := d.pool.Exec(ctx, createTableSQL); err != nil {
		return fmt.Errorf("creating registered_users table: %w", err)
	}
	return nil
}

func (d *PostgresDirectory) FindByExternalID(ctx context.Context, externalID string) (*Entry, error) {
	row := d.pool.QueryRow(ctx,
		`SELECT digital_id, name, role, status FROM registered_users WHERE digital_id = $1`,
		externalID,
	)

	entry := new(Entry)
	if err := row.Scan(&entry.ExternalID, &entry.Name, &entry.Role, &entry.Status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying staff directory: %w", err)
	}
	return entry, nil
}

func (d *PostgresDirectory) Save(ctx context.Context, entry *Entry) error {
	_, err := d.pool.Exec(ctx,
		`INSERT INTO registered_users (digital_id, name, role, status)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (digital_id) DO UPDATE SET name = $2, role = $3, status = $4`,
		entry.ExternalID, entry.Name, entry.Role, entry.Status,
	)
	if err != nil {
		return fmt.Errorf("saving staff directory entry: %w", err)
	}
	return nil
}

func (d *PostgresDirectory) Close() {
	d.pool.Close()
}
