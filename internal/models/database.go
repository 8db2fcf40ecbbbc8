package models

import (
	"context"
	"database/sql"
	"time"
)

// * This interface defines all db operations needed by the application
type Database interface {
	// * Snapshot operations
	UpsertSnapshot(ctx context.Context, snap *Snapshot) error
	GetSnapshot(ctx context.Context, resource, key string) (*Snapshot, error)
	ListSnapshotKeys(ctx context.Context, resource string) ([]string, error)
	DeleteSnapshotsBefore(ctx context.Context, before time.Time) (int64, error)

	// * Transaction support
	WithTransaction(ctx context.Context, fn func(tx *sql.Tx) error) error
	UpsertSnapshotTx(ctx context.Context, tx *sql.Tx, snap *Snapshot) error
}
