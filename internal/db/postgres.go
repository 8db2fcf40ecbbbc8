package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/KOFI-GYIMAH/stl-devs-web/internal/models"
	"github.com/KOFI-GYIMAH/stl-devs-web/pkg/errors"
	"github.com/KOFI-GYIMAH/stl-devs-web/pkg/logger"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
)

type PostgresDB struct {
	db *sql.DB
}

func NewPostgresDB(url string) (*PostgresDB, error) {
	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, errors.New(
			"DB_CONNECTION_ERROR",
			"Failed to open database connection",
			"Could not initialize database connection",
			err,
			errors.LevelError,
		)
	}

	// * Configure connection pool
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(5 * time.Minute)

	// * Verify connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errors.New(
			"DB_CONNECTION_ERROR",
			"Failed to verify database connection",
			"Database ping failed",
			err,
			errors.LevelError,
		)
	}

	logger.Info("connected to snapshot database")
	return &PostgresDB{db: db}, nil
}

func (p *PostgresDB) Migrate(source string) error {
	driver, err := postgres.WithInstance(p.db, &postgres.Config{})
	if err != nil {
		return errors.New(
			"DB_MIGRATION_ERROR",
			"Failed to create migration driver",
			"Could not initialize migration driver instance",
			err,
			errors.LevelError,
		)
	}

	m, err := migrate.NewWithDatabaseInstance(source, "postgres", driver)
	if err != nil {
		return errors.New(
			"DB_MIGRATION_ERROR",
			"Failed to create migration instance",
			fmt.Sprintf("Could not load migrations from %s", source),
			err,
			errors.LevelError,
		)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return errors.New(
			"DB_MIGRATION_ERROR",
			"Failed to run migrations",
			"Migration up operation failed",
			err,
			errors.LevelError,
		)
	}

	return nil
}

func (p *PostgresDB) Close() error {
	if err := p.db.Close(); err != nil {
		return errors.New(
			"DB_CONNECTION_ERROR",
			"Failed to close database connection",
			"Error while closing database connection",
			err,
			errors.LevelWarning,
		)
	}
	return nil
}

func (p *PostgresDB) WithTransaction(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.New(
			"DB_TRANSACTION_ERROR",
			"Failed to begin transaction",
			"Could not start database transaction",
			err,
			errors.LevelError,
		)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.New(
				"DB_TRANSACTION_ERROR",
				"Transaction failed and rollback encountered error",
				"Transaction error with additional rollback failure",
				fmt.Errorf("transaction error: %v, rollback error: %w", err, rbErr),
				errors.LevelError,
			)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return errors.New(
			"DB_TRANSACTION_ERROR",
			"Failed to commit transaction",
			"Error while committing transaction",
			err,
			errors.LevelError,
		)
	}

	return nil
}

const upsertSnapshotQuery = `
	INSERT INTO resource_snapshots (resource, cache_key, body, fetched_at)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (resource, cache_key) DO UPDATE SET
		body = EXCLUDED.body,
		fetched_at = EXCLUDED.fetched_at
`

// * execer is satisfied by both *sql.DB and *sql.Tx
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func upsertSnapshot(ctx context.Context, ex execer, snap *models.Snapshot) error {
	if snap.FetchedAt.IsZero() {
		snap.FetchedAt = time.Now().UTC()
	}

	_, err := ex.ExecContext(ctx, upsertSnapshotQuery,
		snap.Resource, snap.Key, []byte(snap.Body), snap.FetchedAt,
	)
	if err != nil {
		return errors.New(
			"DB_SNAPSHOT_ERROR",
			"Failed to save snapshot",
			fmt.Sprintf("Could not save snapshot %s %s", snap.Resource, snap.Key),
			err,
			errors.LevelError,
		)
	}
	return nil
}

func (p *PostgresDB) UpsertSnapshot(ctx context.Context, snap *models.Snapshot) error {
	return upsertSnapshot(ctx, p.db, snap)
}

// * Transaction versions of methods for use with WithTransaction
func (p *PostgresDB) UpsertSnapshotTx(ctx context.Context, tx *sql.Tx, snap *models.Snapshot) error {
	return upsertSnapshot(ctx, tx, snap)
}

func (p *PostgresDB) GetSnapshot(ctx context.Context, resource, key string) (*models.Snapshot, error) {
	query := `
		SELECT resource, cache_key, body, fetched_at
		FROM resource_snapshots
		WHERE resource = $1 AND cache_key = $2
	`

	var snap models.Snapshot
	var body []byte
	err := p.db.QueryRowContext(ctx, query, resource, key).Scan(
		&snap.Resource, &snap.Key, &body, &snap.FetchedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.New(
				"SNAPSHOT_NOT_FOUND",
				"Snapshot not found",
				fmt.Sprintf("No snapshot for %s %s", resource, key),
				err,
				errors.LevelInfo,
			)
		}
		return nil, errors.New(
			"DB_SNAPSHOT_ERROR",
			"Failed to fetch snapshot",
			fmt.Sprintf("Could not fetch snapshot %s %s", resource, key),
			err,
			errors.LevelError,
		)
	}

	snap.Body = body
	return &snap, nil
}

func (p *PostgresDB) ListSnapshotKeys(ctx context.Context, resource string) ([]string, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT cache_key FROM resource_snapshots
		WHERE resource = $1
		ORDER BY cache_key
	`, resource)
	if err != nil {
		return nil, errors.New(
			"DB_SNAPSHOT_ERROR",
			"Failed to list snapshots",
			fmt.Sprintf("Could not list snapshots of %s", resource),
			err,
			errors.LevelError,
		)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, errors.New(
				"DB_SNAPSHOT_ERROR",
				"Failed to scan snapshot key",
				"Error while scanning snapshot row",
				err,
				errors.LevelError,
			)
		}
		keys = append(keys, key)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.New(
			"DB_SNAPSHOT_ERROR",
			"Failed to process snapshots",
			"Error while processing snapshot rows",
			err,
			errors.LevelError,
		)
	}

	return keys, nil
}

func (p *PostgresDB) DeleteSnapshotsBefore(ctx context.Context, before time.Time) (int64, error) {
	res, err := p.db.ExecContext(ctx, `DELETE FROM resource_snapshots WHERE fetched_at < $1`, before)
	if err != nil {
		return 0, errors.New(
			"DB_SNAPSHOT_ERROR",
			"Failed to purge snapshots",
			fmt.Sprintf("Could not delete snapshots older than %s", before.Format(time.RFC3339)),
			err,
			errors.LevelError,
		)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.New(
			"DB_SNAPSHOT_ERROR",
			"Failed to count purged snapshots",
			"The driver could not report the number of deleted rows",
			err,
			errors.LevelError,
		)
	}
	return n, nil
}
