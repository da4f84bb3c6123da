package models

import "time"

// SeenListing marks an identifier that has already been through the
// pipeline. Created once, never updated, never deleted.
type SeenListing struct {
	URL         string    `json:"url" db:"url"`
	FirstSeenAt time.Time `json:"first_seen_at" db:"first_seen_at"`
}
