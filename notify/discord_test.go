package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/zaneriley/Home-Hunter/config"
	"github.com/zaneriley/Home-Hunter/models"
)

func testListing() models.Listing {
	return models.Listing{
		URL:      "https://suumo.jp/ms/chuko/tokyo/sc_minato/nc_12345/",
		Price:    "5980万円",
		Size:     "65.4m²",
		Address:  "東京都港区",
		Access:   "山手線「品川」徒歩5分",
		ImageURL: "https://img01.suumo.jp/front/gazo/12345.jpg",
		Site:     "suumo",
	}
}

func newTestNotifier(t *testing.T, serverURL string, client *http.Client, roleID string) *Notifier {
	t.Helper()
	return NewNotifier(client, config.NotifyConfig{
		Enabled:     true,
		WebhookURL:  serverURL,
		RoleID:      roleID,
		MaxAttempts: 3,
		BackoffBase: 5 * time.Millisecond,
	}, "SUUMO")
}

func TestNotifyDeliversEmbed(t *testing.T) {
	var captured []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("expected application/json, got %q", ct)
		}
		captured, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	n := newTestNotifier(t, server.URL, server.Client(), "")
	listing := testListing()
	if err := n.Notify(context.Background(), listing); err != nil {
		t.Fatalf("expected delivery to succeed, got %v", err)
	}

	var payload map[string]interface{}
	if err := json.Unmarshal(captured, &payload); err != nil {
		t.Fatalf("failed to decode payload: %v", err)
	}
	if content, ok := payload["content"]; !ok || content != nil {
		t.Errorf("expected content to be null, got %v", content)
	}

	embeds, ok := payload["embeds"].([]interface{})
	if !ok || len(embeds) != 1 {
		t.Fatalf("expected exactly one embed, got %v", payload["embeds"])
	}
	e := embeds[0].(map[string]interface{})
	if e["title"] != listing.Price {
		t.Errorf("expected title %q, got %v", listing.Price, e["title"])
	}
	if e["description"] != listing.Size {
		t.Errorf("expected description %q, got %v", listing.Size, e["description"])
	}
	if e["url"] != listing.URL {
		t.Errorf("expected url %q, got %v", listing.URL, e["url"])
	}
	if e["color"] != float64(4937567) {
		t.Errorf("expected color 4937567, got %v", e["color"])
	}

	fields, ok := e["fields"].([]interface{})
	if !ok || len(fields) != 2 {
		t.Fatalf("expected two fields, got %v", e["fields"])
	}
	address := fields[0].(map[string]interface{})
	if address["name"] != "Address" || address["value"] != listing.Address || address["inline"] != true {
		t.Errorf("unexpected address field: %v", address)
	}
	access := fields[1].(map[string]interface{})
	if access["name"] != "Access" || access["value"] != listing.Access {
		t.Errorf("unexpected access field: %v", access)
	}

	author, ok := e["author"].(map[string]interface{})
	if !ok || author["name"] != "SUUMO" {
		t.Errorf("expected author SUUMO, got %v", e["author"])
	}
	image, ok := e["image"].(map[string]interface{})
	if !ok || image["url"] != listing.ImageURL {
		t.Errorf("expected image %q, got %v", listing.ImageURL, e["image"])
	}
}

func TestNotifyMentionsRole(t *testing.T) {
	var captured []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	n := newTestNotifier(t, server.URL, server.Client(), "998877")
	if err := n.Notify(context.Background(), testListing()); err != nil {
		t.Fatalf("expected delivery to succeed, got %v", err)
	}

	var payload map[string]interface{}
	if err := json.Unmarshal(captured, &payload); err != nil {
		t.Fatalf("failed to decode payload: %v", err)
	}
	if payload["content"] != "<@&998877>" {
		t.Errorf("expected role mention, got %v", payload["content"])
	}
}

func TestNotifyOmitsAbsentFields(t *testing.T) {
	var captured []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	n := newTestNotifier(t, server.URL, server.Client(), "")
	bare := models.Listing{URL: "https://suumo.jp/ms/chuko/tokyo/sc_ota/nc_777/", Site: "suumo"}
	if err := n.Notify(context.Background(), bare); err != nil {
		t.Fatalf("expected delivery to succeed, got %v", err)
	}

	var payload map[string]interface{}
	if err := json.Unmarshal(captured, &payload); err != nil {
		t.Fatalf("failed to decode payload: %v", err)
	}
	e := payload["embeds"].([]interface{})[0].(map[string]interface{})
	if e["title"] != "New listing" {
		t.Errorf("expected fallback title, got %v", e["title"])
	}
	if _, ok := e["fields"]; ok {
		t.Errorf("expected no fields for a bare listing, got %v", e["fields"])
	}
	if _, ok := e["image"]; ok {
		t.Errorf("expected no image for a bare listing, got %v", e["image"])
	}
	if _, ok := e["description"]; ok {
		t.Errorf("expected no description for a bare listing, got %v", e["description"])
	}
}

func TestNotifyRetriesAfterRateLimit(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"retry_after": 0.2}`))
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	n := newTestNotifier(t, server.URL, server.Client(), "")
	start := time.Now()
	if err := n.Notify(context.Background(), testListing()); err != nil {
		t.Fatalf("expected delivery to succeed after retry, got %v", err)
	}
	elapsed := time.Since(start)

	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Errorf("expected 2 attempts, got %d", got)
	}
	if elapsed < 200*time.Millisecond {
		t.Errorf("expected to honor the 200ms wait hint, finished in %s", elapsed)
	}
}

func TestNotifyHonorsRetryAfterHeader(t *testing.T) {
	header := http.Header{}
	header.Set("Retry-After", "7")
	if got := parseRetryAfter(header, nil); got != 7*time.Second {
		t.Errorf("expected 7s from seconds header, got %s", got)
	}

	header = http.Header{}
	header.Set("Retry-After", time.Now().Add(30*time.Second).UTC().Format(http.TimeFormat))
	got := parseRetryAfter(header, nil)
	if got < 25*time.Second || got > 30*time.Second {
		t.Errorf("expected roughly 30s from date header, got %s", got)
	}

	if got := parseRetryAfter(http.Header{}, []byte(`{"retry_after": 1.5}`)); got != 1500*time.Millisecond {
		t.Errorf("expected 1.5s from body hint, got %s", got)
	}
	if got := parseRetryAfter(http.Header{}, []byte("not json")); got != 0 {
		t.Errorf("expected no hint from garbage body, got %s", got)
	}
}

func TestNotifyPermanentRejection(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"message": "Invalid Webhook Token"}`))
	}))
	defer server.Close()

	n := newTestNotifier(t, server.URL, server.Client(), "")
	err := n.Notify(context.Background(), testListing())

	var notifyErr *NotifyError
	if !errors.As(err, &notifyErr) {
		t.Fatalf("expected NotifyError, got %v", err)
	}
	if !notifyErr.Permanent {
		t.Errorf("expected a permanent rejection, got %+v", notifyErr)
	}
	if notifyErr.StatusCode != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", notifyErr.StatusCode)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("expected no retries on 400, got %d attempts", got)
	}
}

func TestNotifyExhaustsRetries(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	n := newTestNotifier(t, server.URL, server.Client(), "")
	err := n.Notify(context.Background(), testListing())

	var notifyErr *NotifyError
	if !errors.As(err, &notifyErr) {
		t.Fatalf("expected NotifyError, got %v", err)
	}
	if notifyErr.Permanent {
		t.Errorf("expected a retryable failure, got %+v", notifyErr)
	}
	if notifyErr.Attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", notifyErr.Attempts)
	}
	if notifyErr.StatusCode != http.StatusInternalServerError {
		t.Errorf("expected status 500, got %d", notifyErr.StatusCode)
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Errorf("expected 3 requests, got %d", got)
	}
}

func TestNotifyDisabledSkipsDelivery(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	n := NewNotifier(server.Client(), config.NotifyConfig{
		Enabled:    false,
		WebhookURL: server.URL,
	}, "SUUMO")
	if err := n.Notify(context.Background(), testListing()); err != nil {
		t.Fatalf("expected disabled notifier to succeed silently, got %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 0 {
		t.Errorf("expected no webhook calls while disabled, got %d", got)
	}
}

func TestValidateProbesWebhook(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("expected GET probe, got %s", r.Method)
		}
		w.Write([]byte(`{"name": "home-hunter"}`))
	}))
	defer server.Close()

	n := newTestNotifier(t, server.URL, server.Client(), "")
	if err := n.Validate(context.Background()); err != nil {
		t.Errorf("expected probe to succeed, got %v", err)
	}
}

func TestValidateReportsDeadWebhook(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	n := newTestNotifier(t, server.URL, server.Client(), "")
	if err := n.Validate(context.Background()); err == nil {
		t.Error("expected an error for a missing webhook")
	}
}
