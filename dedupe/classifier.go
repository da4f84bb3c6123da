package dedupe

import (
	"context"

	"github.com/zaneriley/Home-Hunter/models"
	"github.com/zaneriley/Home-Hunter/storage"
)

type Status int

const (
	StatusSeen Status = iota
	StatusNew
)

func (s Status) String() string {
	if s == StatusNew {
		return "new"
	}
	return "seen"
}

// Classifier decides whether a listing is new relative to the seen set.
// It only reads; marking is the orchestrator's job.
type Classifier struct {
	store storage.SeenStore
}

func NewClassifier(store storage.SeenStore) *Classifier {
	return &Classifier{store: store}
}

func (c *Classifier) Classify(ctx context.Context, l models.Listing) (Status, error) {
	seen, err := c.store.Contains(ctx, l.URL)
	if err != nil {
		return StatusSeen, err
	}
	if seen {
		return StatusSeen, nil
	}
	return StatusNew, nil
}
