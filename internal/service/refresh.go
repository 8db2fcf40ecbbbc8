package service

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/KOFI-GYIMAH/stl-devs-web/internal/models"
	"github.com/KOFI-GYIMAH/stl-devs-web/internal/resource"
	"github.com/KOFI-GYIMAH/stl-devs-web/pkg/errors"
	"github.com/KOFI-GYIMAH/stl-devs-web/pkg/logger"
)

// * Fetcher is the synchronous side of a resource
type Fetcher interface {
	Fetch(ctx context.Context, action string, params resource.Params) (string, []byte, error)
}

// * RefreshService re-reads the backend and rewrites the snapshots views fall back to
type RefreshService struct {
	users     Fetcher
	db        models.Database
	resource  string
	retention time.Duration
}

func NewRefreshService(users Fetcher, db models.Database, resourceName string, retention time.Duration) *RefreshService {
	return &RefreshService{
		users:     users,
		db:        db,
		resource:  resourceName,
		retention: retention,
	}
}

// * Refresh refreshes one user when id is set, everything otherwise
func (s *RefreshService) Refresh(ctx context.Context, id string) error {
	if id == "" {
		return s.RefreshAll(ctx)
	}
	return s.RefreshUser(ctx, id)
}

func (s *RefreshService) RefreshUser(ctx context.Context, id string) error {
	key, body, err := s.users.Fetch(ctx, resource.ActionGet, resource.Params{"id": id})
	if err != nil {
		return fmt.Errorf("failed to fetch user %s: %w", id, err)
	}

	if err := s.db.UpsertSnapshot(ctx, s.snapshot(key, body)); err != nil {
		return fmt.Errorf("failed to save user %s: %w", id, err)
	}

	logger.Info("Refreshed snapshot %s", key)
	return nil
}

func (s *RefreshService) RefreshAll(ctx context.Context) error {
	logger.Info("Refreshing snapshots...")

	listKey, listBody, err := s.users.Fetch(ctx, resource.ActionQuery, nil)
	if err != nil {
		return fmt.Errorf("failed to list users: %w", err)
	}

	users, err := models.DecodeEntities(listBody)
	if err != nil {
		return errors.New(
			"RESOURCE_DECODE_ERROR",
			"Failed to parse user list",
			fmt.Sprintf("The body of %s is not a JSON array", listKey),
			err,
			errors.LevelError,
		)
	}

	seen := map[string]bool{}
	var ids []string
	for _, user := range users {
		if id := user.ID(); id != "" && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	// * Users missing from the list stay fresh until the backend stops serving them
	for _, id := range s.snapshottedIDs(ctx, listKey) {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}

	snaps := []*models.Snapshot{s.snapshot(listKey, listBody)}
	for _, id := range ids {
		key, body, err := s.users.Fetch(ctx, resource.ActionGet, resource.Params{"id": id})
		if err != nil {
			// * One missing user should not cost the whole refresh
			logger.Warn("skipping user %s: %v", id, err)
			continue
		}
		snaps = append(snaps, s.snapshot(key, body))
	}

	err = s.db.WithTransaction(ctx, func(tx *sql.Tx) error {
		for _, snap := range snaps {
			if err := s.db.UpsertSnapshotTx(ctx, tx, snap); err != nil {
				return fmt.Errorf("failed to save snapshot: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	logger.Info("Saved %d snapshots for %d users", len(snaps), len(ids))
	return s.purge(ctx)
}

// * snapshottedIDs recovers the user ids of stored detail snapshots, keyed listKey/<id>
func (s *RefreshService) snapshottedIDs(ctx context.Context, listKey string) []string {
	keys, err := s.db.ListSnapshotKeys(ctx, s.resource)
	if err != nil {
		logger.Warn("could not list stored snapshots: %v", err)
		return nil
	}

	var ids []string
	for _, key := range keys {
		rest, ok := strings.CutPrefix(key, listKey+"/")
		if !ok || rest == "" || strings.ContainsAny(rest, "/?") {
			continue
		}
		id, err := url.PathUnescape(rest)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

func (s *RefreshService) purge(ctx context.Context) error {
	if s.retention <= 0 {
		return nil
	}

	n, err := s.db.DeleteSnapshotsBefore(ctx, time.Now().Add(-s.retention))
	if err != nil {
		return fmt.Errorf("failed to purge snapshots: %w", err)
	}
	if n > 0 {
		logger.Info("Purged %d expired snapshots", n)
	}
	return nil
}

func (s *RefreshService) snapshot(key string, body []byte) *models.Snapshot {
	return &models.Snapshot{
		Resource:  s.resource,
		Key:       key,
		Body:      body,
		FetchedAt: time.Now().UTC(),
	}
}
