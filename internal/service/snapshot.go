package service

import (
	"context"
	"time"

	"github.com/KOFI-GYIMAH/stl-devs-web/internal/models"
)

// * SnapshotCache stores resource bodies in the snapshot table under one resource name
type SnapshotCache struct {
	db       models.Database
	resource string
}

func NewSnapshotCache(db models.Database, resource string) *SnapshotCache {
	return &SnapshotCache{db: db, resource: resource}
}

func (c *SnapshotCache) Load(ctx context.Context, key string) ([]byte, time.Time, error) {
	snap, err := c.db.GetSnapshot(ctx, c.resource, key)
	if err != nil {
		return nil, time.Time{}, err
	}
	return snap.Body, snap.FetchedAt, nil
}

func (c *SnapshotCache) Store(ctx context.Context, key string, body []byte) error {
	return c.db.UpsertSnapshot(ctx, &models.Snapshot{
		Resource:  c.resource,
		Key:       key,
		Body:      body,
		FetchedAt: time.Now().UTC(),
	})
}
