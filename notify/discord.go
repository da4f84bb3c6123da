package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/zaneriley/Home-Hunter/config"
	"github.com/zaneriley/Home-Hunter/models"
)

const (
	embedColor    = 4937567
	authorIconURL = "https://cdn3.emoji.gg/emojis/9666-link.png"
)

// NotifyError reports a delivery that will not happen: a permanent
// rejection or an exhausted retry budget. The listing stays marked seen
// either way.
type NotifyError struct {
	StatusCode int
	Attempts   int
	Permanent  bool
	Err        error
}

func (e *NotifyError) Error() string {
	if e.Permanent {
		return fmt.Sprintf("notify rejected after %d attempt(s): %v", e.Attempts, e.Err)
	}
	return fmt.Sprintf("notify failed after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *NotifyError) Unwrap() error { return e.Err }

type webhookPayload struct {
	Content *string `json:"content"`
	Embeds  []embed `json:"embeds"`
}

type embed struct {
	Title       string       `json:"title,omitempty"`
	Description string       `json:"description,omitempty"`
	URL         string       `json:"url,omitempty"`
	Color       int          `json:"color"`
	Fields      []embedField `json:"fields,omitempty"`
	Author      *embedAuthor `json:"author,omitempty"`
	Image       *embedImage  `json:"image,omitempty"`
}

type embedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type embedAuthor struct {
	Name    string `json:"name"`
	URL     string `json:"url,omitempty"`
	IconURL string `json:"icon_url,omitempty"`
}

type embedImage struct {
	URL string `json:"url"`
}

// Notifier delivers one Discord embed per new listing.
type Notifier struct {
	client      *http.Client
	webhookURL  string
	roleID      string
	siteName    string
	enabled     bool
	maxAttempts int
	backoffBase time.Duration
}

func NewNotifier(client *http.Client, cfg config.NotifyConfig, siteName string) *Notifier {
	maxAttempts := cfg.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 3
	}
	backoffBase := cfg.BackoffBase
	if backoffBase <= 0 {
		backoffBase = 2 * time.Second
	}

	return &Notifier{
		client:      client,
		webhookURL:  cfg.WebhookURL,
		roleID:      cfg.RoleID,
		siteName:    siteName,
		enabled:     cfg.Enabled,
		maxAttempts: maxAttempts,
		backoffBase: backoffBase,
	}
}

func (n *Notifier) buildPayload(l models.Listing) webhookPayload {
	e := embed{
		Title:       l.Price,
		Description: l.Size,
		URL:         l.URL,
		Color:       embedColor,
		Author: &embedAuthor{
			Name:    n.siteName,
			URL:     l.URL,
			IconURL: authorIconURL,
		},
	}
	if e.Title == "" {
		e.Title = "New listing"
	}
	if l.Address != "" {
		e.Fields = append(e.Fields, embedField{Name: "Address", Value: l.Address, Inline: true})
	}
	if l.Access != "" {
		e.Fields = append(e.Fields, embedField{Name: "Access", Value: l.Access, Inline: true})
	}
	if l.ImageURL != "" {
		e.Image = &embedImage{URL: l.ImageURL}
	}

	p := webhookPayload{Embeds: []embed{e}}
	if n.roleID != "" {
		mention := fmt.Sprintf("<@&%s>", n.roleID)
		p.Content = &mention
	}
	return p
}

// Notify posts the listing to the webhook. Transient failures (network
// errors, 5xx, 429) are retried with doubling backoff; a 429 wait hint
// sets the floor for the next delay. Other 4xx responses fail
// immediately.
func (n *Notifier) Notify(ctx context.Context, l models.Listing) error {
	if !n.enabled {
		log.Printf("Notifications disabled, would have announced %s", l.URL)
		return nil
	}

	payload, err := json.Marshal(n.buildPayload(l))
	if err != nil {
		return &NotifyError{Permanent: true, Err: fmt.Errorf("marshal payload: %w", err)}
	}

	var (
		lastStatus int
		lastErr    error
		delay      time.Duration
	)

	for attempt := 1; attempt <= n.maxAttempts; attempt++ {
		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return &NotifyError{StatusCode: lastStatus, Attempts: attempt - 1, Err: ctx.Err()}
			}
		}

		result, err := n.post(ctx, payload)
		switch {
		case err != nil:
			lastStatus = 0
			lastErr = err
		case result.status >= 200 && result.status < 300:
			if attempt > 1 {
				log.Printf("Notification for %s delivered on attempt %d", l.URL, attempt)
			}
			return nil
		case result.status == http.StatusTooManyRequests:
			lastStatus = result.status
			lastErr = fmt.Errorf("rate limited (429)")
		case result.status >= 500:
			lastStatus = result.status
			lastErr = fmt.Errorf("server error %d: %s", result.status, bodySnippet(result.body))
		default:
			return &NotifyError{
				StatusCode: result.status,
				Attempts:   attempt,
				Permanent:  true,
				Err:        fmt.Errorf("rejected with status %d: %s", result.status, bodySnippet(result.body)),
			}
		}

		delay = n.backoffBase * time.Duration(1<<uint(attempt-1))
		if result != nil && result.status == http.StatusTooManyRequests {
			if hint := parseRetryAfter(result.header, result.body); hint > delay {
				delay = hint
			}
		}
		if attempt < n.maxAttempts {
			log.Printf("Notify attempt %d/%d for %s failed (%v), retrying in %s",
				attempt, n.maxAttempts, l.URL, lastErr, delay)
		}
	}

	return &NotifyError{StatusCode: lastStatus, Attempts: n.maxAttempts, Err: lastErr}
}

// Validate probes the webhook with a GET; Discord answers with webhook
// metadata when the URL is live. Callers warn on failure rather than
// aborting, the endpoint may come up later.
func (n *Notifier) Validate(ctx context.Context) error {
	if !n.enabled {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.webhookURL, nil)
	if err != nil {
		return fmt.Errorf("build probe request: %w", err)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("probe webhook: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook probe returned status %d", resp.StatusCode)
	}
	return nil
}

type deliveryResult struct {
	status int
	header http.Header
	body   []byte
}

func (n *Notifier) post(ctx context.Context, payload []byte) (*deliveryResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	return &deliveryResult{
		status: resp.StatusCode,
		header: resp.Header,
		body:   body,
	}, nil
}

// parseRetryAfter reads the 429 wait hint: the Retry-After header as
// seconds or an HTTP date, falling back to the retry_after field Discord
// puts in the JSON body.
func parseRetryAfter(header http.Header, body []byte) time.Duration {
	if v := header.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
			return time.Duration(secs) * time.Second
		}
		if when, err := http.ParseTime(v); err == nil {
			if d := time.Until(when); d > 0 {
				return d
			}
		}
	}

	var hint struct {
		RetryAfter float64 `json:"retry_after"`
	}
	if err := json.Unmarshal(body, &hint); err == nil && hint.RetryAfter > 0 {
		return time.Duration(hint.RetryAfter * float64(time.Second))
	}
	return 0
}

func bodySnippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}
