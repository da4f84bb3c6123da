package hunter

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestStaticFetcherReturnsDocument(t *testing.T) {
	page := loadFixture(t, "suumo_listings.html")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ua := r.Header.Get("User-Agent"); ua == "" {
			t.Error("expected a browser User-Agent header")
		}
		w.Write(page)
	}))
	defer server.Close()

	site := suumoSite()
	site.Handler = "static"
	site.TargetURL = server.URL

	fetcher := NewStaticFetcher(site, server.Client())
	doc, err := fetcher.Fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if doc.Site != "suumo" {
		t.Fatalf("expected site suumo, got %s", doc.Site)
	}
	if doc.URL != server.URL {
		t.Fatalf("expected URL %s, got %s", server.URL, doc.URL)
	}
	if doc.HTML != string(page) {
		t.Fatal("fetched HTML does not match served page")
	}
	if doc.FetchedAt.IsZero() {
		t.Fatal("expected FetchedAt to be set")
	}
}

func TestStaticFetcherErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	site := suumoSite()
	site.Handler = "static"
	site.TargetURL = server.URL

	fetcher := NewStaticFetcher(site, server.Client())
	_, err := fetcher.Fetch(context.Background())

	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("expected FetchError, got %T: %v", err, err)
	}
	if fetchErr.Stage != "navigate" {
		t.Fatalf("expected navigate stage, got %s", fetchErr.Stage)
	}
	if fetchErr.Site != "suumo" {
		t.Fatalf("expected site suumo, got %s", fetchErr.Site)
	}
}
