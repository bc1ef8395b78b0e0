// models/meta.go
package models

import "time"

// FeedVersion tracks the freshness of the upstream station dataset: when the
// portal page last reported an update, when we last checked it, and when we
// last completed a full sync. One row per source name.
type FeedVersion struct {
	ID            int        `db:"id"`
	SourceName    string     `db:"source_name"` // e.g. "DIVVY_STATIONS"
	PortalURL     string     `db:"portal_url"`
	PortalUpdated *time.Time `db:"portal_updated"` // "Updated" stamp scraped from the portal page
	LastCheckedAt *time.Time `db:"last_checked_at"`
	LastSyncedAt  *time.Time `db:"last_synced_at"`
	CreatedAt     time.Time  `db:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at"`
}
