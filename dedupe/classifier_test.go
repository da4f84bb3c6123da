package dedupe

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/zaneriley/Home-Hunter/models"
)

type stubStore struct {
	seen  map[string]bool
	err   error
	marks int
}

func (s *stubStore) Contains(ctx context.Context, url string) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	return s.seen[url], nil
}

func (s *stubStore) MarkSeen(ctx context.Context, url string, at time.Time) error {
	s.seen[url] = true
	s.marks++
	return nil
}

func (s *stubStore) CountSeen(ctx context.Context) (int, error) {
	return len(s.seen), nil
}

func (s *stubStore) RecentSeen(ctx context.Context, limit int) ([]models.SeenListing, error) {
	return nil, nil
}

func (s *stubStore) Close() error { return nil }

func TestClassifyNew(t *testing.T) {
	store := &stubStore{seen: map[string]bool{}}
	c := NewClassifier(store)

	status, err := c.Classify(context.Background(), models.Listing{URL: "https://suumo.jp/nc_1/"})
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if status != StatusNew {
		t.Fatalf("expected StatusNew, got %v", status)
	}
}

func TestClassifySeen(t *testing.T) {
	store := &stubStore{seen: map[string]bool{"https://suumo.jp/nc_1/": true}}
	c := NewClassifier(store)

	status, err := c.Classify(context.Background(), models.Listing{URL: "https://suumo.jp/nc_1/"})
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if status != StatusSeen {
		t.Fatalf("expected StatusSeen, got %v", status)
	}
}

func TestClassifyDoesNotMark(t *testing.T) {
	store := &stubStore{seen: map[string]bool{}}
	c := NewClassifier(store)

	if _, err := c.Classify(context.Background(), models.Listing{URL: "https://suumo.jp/nc_1/"}); err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if store.marks != 0 {
		t.Fatalf("classification must not mutate the store, saw %d marks", store.marks)
	}
}

func TestClassifyPropagatesStoreError(t *testing.T) {
	wantErr := errors.New("disk gone")
	store := &stubStore{seen: map[string]bool{}, err: wantErr}
	c := NewClassifier(store)

	status, err := c.Classify(context.Background(), models.Listing{URL: "https://suumo.jp/nc_1/"})
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected store error, got %v", err)
	}
	if status != StatusSeen {
		t.Fatalf("error path must not report NEW, got %v", status)
	}
}
