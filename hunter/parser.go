package hunter

import (
	"fmt"
	"log"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/zaneriley/Home-Hunter/config"
	"github.com/zaneriley/Home-Hunter/identity"
	"github.com/zaneriley/Home-Hunter/models"
)

// ParseReport summarizes one extraction pass.
type ParseReport struct {
	Containers int
	Parsed     int
	Anomalies  int
}

// ListingParser turns a fetched page into listings using the site's
// configured selectors. Parsing is pure: the same document always yields
// the same listings in the same order.
type ListingParser struct {
	site *config.SiteConfig
}

func NewListingParser(site *config.SiteConfig) *ListingParser {
	return &ListingParser{site: site}
}

// Parse extracts every listing the page carries, in document order.
// Listings missing optional fields still come through; only a listing
// without a usable detail link is dropped, counted as an anomaly. A page
// with no containers at all is unrecognizable and fails outright.
func (p *ListingParser) Parse(doc *models.PageDocument) ([]models.Listing, *ParseReport, error) {
	root, err := goquery.NewDocumentFromReader(strings.NewReader(doc.HTML))
	if err != nil {
		return nil, nil, &ParseError{Site: p.site.ID, Reason: "unreadable html", Err: err}
	}

	containers := root.Find(p.site.ListingSelector)
	report := &ParseReport{Containers: containers.Length()}
	if report.Containers == 0 {
		return nil, report, &ParseError{
			Site:   p.site.ID,
			Reason: fmt.Sprintf("no listing containers matched %q", p.site.ListingSelector),
		}
	}

	listings := make([]models.Listing, 0, report.Containers)
	containers.Each(func(_ int, sel *goquery.Selection) {
		listing, ok := p.parseContainer(sel, doc)
		if !ok {
			report.Anomalies++
			return
		}
		listings = append(listings, listing)
	})
	report.Parsed = len(listings)

	return listings, report, nil
}

func (p *ListingParser) parseContainer(sel *goquery.Selection, doc *models.PageDocument) (models.Listing, bool) {
	fields := p.site.Fields

	base := doc.URL
	if base == "" {
		base = p.site.BaseURL
	}

	href, _ := sel.Find(fields.URL).First().Attr("href")
	canonical, err := identity.Canonicalize(base, href)
	if err != nil {
		log.Printf("Listing without a usable detail link, skipping: %v", err)
		return models.Listing{}, false
	}

	listing := models.Listing{
		URL:       canonical,
		Price:     p.text(sel, fields.Price),
		Size:      p.text(sel, fields.Size),
		Address:   p.text(sel, fields.Address),
		Access:    p.text(sel, fields.Access),
		Site:      p.site.ID,
		FetchedAt: doc.FetchedAt,
	}

	if fields.Image != "" {
		if src, ok := sel.Find(fields.Image).First().Attr("src"); ok {
			if abs, err := identity.Absolute(base, src); err == nil {
				listing.ImageURL = abs
			}
		}
	}

	return listing, true
}

// text returns the collapsed text of the first match, empty when the
// selector is unset or matches nothing.
func (p *ListingParser) text(sel *goquery.Selection, selector string) string {
	if selector == "" {
		return ""
	}
	return collapseWhitespace(sel.Find(selector).First().Text())
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
