package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/zaneriley/Home-Hunter/models"
)

// SeenStore is the durable set of listing identifiers the pipeline has
// already processed. Implementations must survive restarts and make
// MarkSeen idempotent.
type SeenStore interface {
	Contains(ctx context.Context, url string) (bool, error)
	MarkSeen(ctx context.Context, url string, at time.Time) error
	CountSeen(ctx context.Context) (int, error)
	RecentSeen(ctx context.Context, limit int) ([]models.SeenListing, error)
	Close() error
}

// PersistenceError marks a seen-store failure. The daemon treats it as
// fatal: continuing with an unreadable or unwritable seen set would
// re-notify every listing on the page.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
