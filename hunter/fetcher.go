package hunter

import (
	"context"
	"net/http"

	"github.com/zaneriley/Home-Hunter/config"
	"github.com/zaneriley/Home-Hunter/models"
)

// Fetcher obtains the raw search page for one site.
type Fetcher interface {
	ID() string
	Fetch(ctx context.Context) (*models.PageDocument, error)
	Close() error
}

func NewFetcher(site *config.SiteConfig, browser config.BrowserConfig, client *http.Client) Fetcher {
	switch site.Handler {
	case "static":
		return NewStaticFetcher(site, client)
	case "browser":
		return NewBrowserFetcher(site, browser)
	default:
		return NewBrowserFetcher(site, browser)
	}
}
