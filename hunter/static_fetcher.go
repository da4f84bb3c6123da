package hunter

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/zaneriley/Home-Hunter/config"
	"github.com/zaneriley/Home-Hunter/models"
)

// StaticFetcher does a plain GET, for sites that render the result list
// server-side.
type StaticFetcher struct {
	site   *config.SiteConfig
	client *http.Client
}

func NewStaticFetcher(site *config.SiteConfig, client *http.Client) *StaticFetcher {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &StaticFetcher{site: site, client: client}
}

func (f *StaticFetcher) ID() string {
	return f.site.ID
}

func (f *StaticFetcher) Fetch(ctx context.Context) (*models.PageDocument, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.site.TargetURL, nil)
	if err != nil {
		return nil, &FetchError{Site: f.site.ID, URL: f.site.TargetURL, Stage: "navigate", Err: err}
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")
	req.Header.Set("Accept-Language", "ja,en;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &FetchError{Site: f.site.ID, URL: f.site.TargetURL, Stage: "navigate", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, &FetchError{
			Site:  f.site.ID,
			URL:   f.site.TargetURL,
			Stage: "navigate",
			Err:   fmt.Errorf("unexpected status %d", resp.StatusCode),
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{Site: f.site.ID, URL: f.site.TargetURL, Stage: "extract", Err: err}
	}

	return &models.PageDocument{
		Site:      f.site.ID,
		URL:       f.site.TargetURL,
		HTML:      string(body),
		FetchedAt: time.Now().UTC(),
	}, nil
}

func (f *StaticFetcher) Close() error {
	return nil
}
