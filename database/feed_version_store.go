// database/feed_version_store.go
package database

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	"divvymon/models"
)

// FeedVersionStore tracks upstream dataset freshness: the "Updated" stamp the
// portal page last showed, when we last checked, and when we last completed a
// full sync. One row per source name, upserted in place.
type FeedVersionStore struct {
	db *sql.DB
}

func NewFeedVersionStore(db *sql.DB) *FeedVersionStore {
	return &FeedVersionStore{db: db}
}

func (s *FeedVersionStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS feed_versions (
			id              INT AUTO_INCREMENT PRIMARY KEY,
			source_name     VARCHAR(64) NOT NULL UNIQUE,
			portal_url      VARCHAR(512) NOT NULL,
			portal_updated  DATETIME NULL,
			last_checked_at DATETIME NULL,
			last_synced_at  DATETIME NULL,
			created_at      DATETIME NOT NULL DEFAULT NOW(),
			updated_at      DATETIME NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return &StoreError{Op: "ensure feed_versions schema", Err: err}
	}
	return nil
}

// Record inserts or updates the freshness row for v.SourceName.
func (s *FeedVersionStore) Record(ctx context.Context, v models.FeedVersion) error {
	var portalUpdated, lastChecked, lastSynced sql.NullTime
	if v.PortalUpdated != nil {
		portalUpdated = sql.NullTime{Time: *v.PortalUpdated, Valid: true}
	}
	if v.LastCheckedAt != nil {
		lastChecked = sql.NullTime{Time: *v.LastCheckedAt, Valid: true}
	}
	if v.LastSyncedAt != nil {
		lastSynced = sql.NullTime{Time: *v.LastSyncedAt, Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO feed_versions (
			source_name, portal_url, portal_updated, last_checked_at, last_synced_at, updated_at
		) VALUES (?, ?, ?, ?, ?, NOW())
		ON DUPLICATE KEY UPDATE
			portal_url = VALUES(portal_url),
			portal_updated = COALESCE(VALUES(portal_updated), portal_updated),
			last_checked_at = COALESCE(VALUES(last_checked_at), last_checked_at),
			last_synced_at = COALESCE(VALUES(last_synced_at), last_synced_at),
			updated_at = NOW()
	`, v.SourceName, v.PortalURL, portalUpdated, lastChecked, lastSynced)
	if err != nil {
		log.Printf("ERROR Database: Failed to record feed version for '%s': %v", v.SourceName, err)
		return &StoreError{Op: fmt.Sprintf("record feed version %s", v.SourceName), Err: err}
	}
	return nil
}

// Get returns the freshness row for a source, or (nil, nil) when none exists.
func (s *FeedVersionStore) Get(ctx context.Context, sourceName string) (*models.FeedVersion, error) {
	var v models.FeedVersion
	var portalUpdated, lastChecked, lastSynced sql.NullTime

	err := s.db.QueryRowContext(ctx, `
		SELECT id, source_name, portal_url, portal_updated, last_checked_at,
		       last_synced_at, created_at, updated_at
		FROM feed_versions
		WHERE source_name = ?
	`, sourceName).Scan(
		&v.ID, &v.SourceName, &v.PortalURL, &portalUpdated, &lastChecked,
		&lastSynced, &v.CreatedAt, &v.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, &StoreError{Op: fmt.Sprintf("get feed version %s", sourceName), Err: err}
	}

	if portalUpdated.Valid {
		v.PortalUpdated = &portalUpdated.Time
	}
	if lastChecked.Valid {
		v.LastCheckedAt = &lastChecked.Time
	}
	if lastSynced.Valid {
		v.LastSyncedAt = &lastSynced.Time
	}
	return &v, nil
}
