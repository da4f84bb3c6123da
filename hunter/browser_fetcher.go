package hunter

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/zaneriley/Home-Hunter/config"
	"github.com/zaneriley/Home-Hunter/models"
)

const settlePollMS = 500

// BrowserFetcher drives a real Chromium session. SUUMO renders its
// result list client-side, so a plain GET never sees the listings.
type BrowserFetcher struct {
	site    *config.SiteConfig
	browser config.BrowserConfig

	mu          sync.Mutex
	pw          *playwright.Playwright
	context     playwright.BrowserContext
	initialized bool
}

func NewBrowserFetcher(site *config.SiteConfig, browser config.BrowserConfig) *BrowserFetcher {
	return &BrowserFetcher{site: site, browser: browser}
}

func (f *BrowserFetcher) ID() string {
	return f.site.ID
}

func (f *BrowserFetcher) Fetch(ctx context.Context) (*models.PageDocument, error) {
	if err := f.ensureBrowser(); err != nil {
		return nil, &FetchError{Site: f.site.ID, URL: f.site.TargetURL, Stage: "launch", Err: err}
	}

	page, err := f.context.NewPage()
	if err != nil {
		// A context that cannot open a page means the driver is gone.
		// Drop the session so the next cycle relaunches from scratch.
		f.Close()
		return nil, &FetchError{Site: f.site.ID, URL: f.site.TargetURL, Stage: "launch", Err: err}
	}
	defer page.Close()

	log.Printf("Navigating to: %s", f.site.TargetURL)
	_, err = page.Goto(f.site.TargetURL, playwright.PageGotoOptions{
		Timeout:   playwright.Float(60000),
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	})
	if err != nil {
		return nil, &FetchError{Site: f.site.ID, URL: f.site.TargetURL, Stage: "navigate", Err: err}
	}
	if err := ctx.Err(); err != nil {
		return nil, &FetchError{Site: f.site.ID, URL: f.site.TargetURL, Stage: "navigate", Err: err}
	}

	f.runSetupClicks(page)
	f.waitForListings(ctx, page)

	html, err := page.Content()
	if err != nil {
		return nil, &FetchError{Site: f.site.ID, URL: f.site.TargetURL, Stage: "extract", Err: err}
	}

	doc := &models.PageDocument{
		Site:      f.site.ID,
		URL:       f.site.TargetURL,
		HTML:      html,
		FetchedAt: time.Now().UTC(),
	}

	if f.browser.DebugCapture {
		shot, err := page.Screenshot(playwright.PageScreenshotOptions{
			FullPage: playwright.Bool(true),
		})
		if err != nil {
			log.Printf("Screenshot failed: %v", err)
		} else {
			doc.Screenshot = shot
		}
	}

	return doc, nil
}

// runSetupClicks walks the configured selectors, clicking whichever are
// visible. SUUMO needs the map zoomed out and the list view selected
// before every listing renders; a missing button just means the page
// already looks right.
func (f *BrowserFetcher) runSetupClicks(page playwright.Page) {
	for _, selector := range f.site.SetupClicks {
		btn := page.Locator(selector).First()
		if visible, _ := btn.IsVisible(); !visible {
			log.Printf("Setup element not visible, skipping: %s", selector)
			continue
		}
		if err := btn.Click(); err != nil {
			log.Printf("Setup click failed for %s: %v", selector, err)
			continue
		}
		log.Printf("Clicked setup element: %s", selector)
		f.humanDelay(page)
	}
}

// waitForListings polls until at least one listing container renders or
// the configured timeout passes. Timing out is not fatal: the content
// goes to the parser either way, which decides whether the page is
// recognizable.
func (f *BrowserFetcher) waitForListings(ctx context.Context, page playwright.Page) {
	timeout := time.Duration(f.site.DynamicTimeoutMS) * time.Millisecond
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	deadline := time.Now().Add(timeout)

	for time.Now().Before(deadline) {
		if ctx.Err() != nil {
			return
		}
		count, err := page.Locator(f.site.ListingSelector).Count()
		if err == nil && count > 0 {
			log.Printf("Listings rendered: %d containers", count)
			return
		}
		page.WaitForTimeout(settlePollMS)
	}
	log.Printf("Timeout waiting for %s, parsing whatever rendered", f.site.ListingSelector)
}

func (f *BrowserFetcher) ensureBrowser() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.initialized {
		return nil
	}

	var err error
	f.pw, err = playwright.Run()
	if err != nil {
		return fmt.Errorf("failed to start playwright: %w", err)
	}

	cwd, _ := os.Getwd()
	userDataDir := filepath.Join(cwd, "browser_data")
	f.context, err = f.pw.Chromium.LaunchPersistentContext(userDataDir, playwright.BrowserTypeLaunchPersistentContextOptions{
		Headless: playwright.Bool(f.browser.Headless),
		Args: []string{
			"--disable-blink-features=AutomationControlled",
			"--disable-dev-shm-usage",
			"--no-sandbox",
		},
	})
	if err != nil {
		f.pw.Stop()
		f.pw = nil
		return fmt.Errorf("failed to launch browser: %w", err)
	}

	f.initialized = true
	return nil
}

func (f *BrowserFetcher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.context != nil {
		f.context.Close()
		f.context = nil
	}
	if f.pw != nil {
		f.pw.Stop()
		f.pw = nil
	}
	f.initialized = false
	return nil
}

func (f *BrowserFetcher) humanDelay(page playwright.Page) {
	base := f.browser.DelayMS
	if base <= 0 {
		base = 500
	}
	page.WaitForTimeout(float64(base + rand.Intn(base)))
}
