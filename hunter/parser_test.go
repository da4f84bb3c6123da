package hunter

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/zaneriley/Home-Hunter/config"
	"github.com/zaneriley/Home-Hunter/models"
)

func loadFixture(t *testing.T, name string) []byte {
	t.Helper()
	path := filepath.Join("testdata", name)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read fixture %s: %v", name, err)
	}
	return data
}

func suumoSite() *config.SiteConfig {
	return &config.SiteConfig{
		ID:              "suumo",
		Name:            "SUUMO",
		Handler:         "browser",
		BaseURL:         "https://suumo.jp",
		TargetURL:       "https://suumo.jp/jj/bukken/ichiran/JJ012FC001/?ar=030&bs=011&ta=13&pc=30",
		ListingSelector: "ul.listView.bukkenList.solid > li",
		Fields: config.FieldSelectors{
			Price:   ".price",
			Size:    ".exclusive",
			Address: ".address",
			Access:  ".ensen",
			URL:     ".innerInfo a",
			Image:   ".imgWrap img",
		},
	}
}

func fixtureDoc(t *testing.T, name string) *models.PageDocument {
	t.Helper()
	return &models.PageDocument{
		Site:      "suumo",
		URL:       "https://suumo.jp/jj/bukken/ichiran/JJ012FC001/?ar=030&bs=011&ta=13&pc=30",
		HTML:      string(loadFixture(t, name)),
		FetchedAt: time.Date(2026, 8, 1, 9, 30, 0, 0, time.UTC),
	}
}

func TestParseListings_Basic(t *testing.T) {
	parser := NewListingParser(suumoSite())
	doc := fixtureDoc(t, "suumo_listings.html")

	listings, report, err := parser.Parse(doc)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if report.Containers != 3 || report.Parsed != 3 || report.Anomalies != 0 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if len(listings) != 3 {
		t.Fatalf("expected 3 listings, got %d", len(listings))
	}

	first := listings[0]
	if first.URL != "https://suumo.jp/ms/chuko/tokyo/sc_minato/nc_10001/" {
		t.Fatalf("expected tracking params stripped, got %s", first.URL)
	}
	if first.Price != "5,980万円" {
		t.Fatalf("expected collapsed price, got %q", first.Price)
	}
	if first.Size != "65.43m2" {
		t.Fatalf("expected size 65.43m2, got %q", first.Size)
	}
	if first.Address != "東京都港区白金台３" {
		t.Fatalf("unexpected address %q", first.Address)
	}
	if first.Access != "東京メトロ南北線「白金台」徒歩5分" {
		t.Fatalf("unexpected access %q", first.Access)
	}
	if first.ImageURL != "https://img01.suumo.jp/front/gazo/bukken/990/nc_10001.jpg" {
		t.Fatalf("unexpected image %s", first.ImageURL)
	}
	if first.Site != "suumo" {
		t.Fatalf("expected site suumo, got %s", first.Site)
	}
	if !first.FetchedAt.Equal(doc.FetchedAt) {
		t.Fatalf("expected FetchedAt %v, got %v", doc.FetchedAt, first.FetchedAt)
	}

	second := listings[1]
	if second.URL != "https://suumo.jp/ms/chuko/tokyo/sc_shibuya/nc_10002/" {
		t.Fatalf("expected fragment stripped, got %s", second.URL)
	}
	if second.ImageURL != "https://img02.suumo.jp/front/gazo/bukken/990/nc_10002.jpg" {
		t.Fatalf("expected protocol-relative image resolved, got %s", second.ImageURL)
	}

	third := listings[2]
	if third.URL != "https://suumo.jp/ms/chuko/tokyo/sc_meguro/nc_10003/" {
		t.Fatalf("expected relative href resolved, got %s", third.URL)
	}
	if third.Price != "4,480万円" {
		t.Fatalf("unexpected price %q", third.Price)
	}
}

func TestParseListings_Deterministic(t *testing.T) {
	parser := NewListingParser(suumoSite())
	doc := fixtureDoc(t, "suumo_listings.html")

	listings1, report1, err := parser.Parse(doc)
	if err != nil {
		t.Fatalf("first parse failed: %v", err)
	}
	listings2, report2, err := parser.Parse(doc)
	if err != nil {
		t.Fatalf("second parse failed: %v", err)
	}

	if !reflect.DeepEqual(listings1, listings2) {
		t.Fatalf("parses disagree:\n%+v\n%+v", listings1, listings2)
	}
	if !reflect.DeepEqual(report1, report2) {
		t.Fatalf("reports disagree: %+v vs %+v", report1, report2)
	}
}

func TestParseListings_PartialFields(t *testing.T) {
	parser := NewListingParser(suumoSite())
	doc := fixtureDoc(t, "suumo_partial.html")

	listings, report, err := parser.Parse(doc)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if report.Containers != 4 {
		t.Fatalf("expected 4 containers, got %d", report.Containers)
	}
	if report.Parsed != 3 {
		t.Fatalf("expected 3 parsed, got %d", report.Parsed)
	}
	if report.Anomalies != 1 {
		t.Fatalf("expected 1 anomaly for the listing without a link, got %d", report.Anomalies)
	}

	noPrice := listings[1]
	if noPrice.URL != "https://suumo.jp/ms/chuko/tokyo/sc_shinagawa/nc_20002/" {
		t.Fatalf("unexpected URL %s", noPrice.URL)
	}
	if noPrice.Price != "" {
		t.Fatalf("expected empty price, got %q", noPrice.Price)
	}
	if noPrice.ImageURL != "" {
		t.Fatalf("expected empty image, got %q", noPrice.ImageURL)
	}
	if noPrice.Size != "60.55m2" {
		t.Fatalf("expected size to survive, got %q", noPrice.Size)
	}
	if noPrice.Address == "" || noPrice.Access == "" {
		t.Fatalf("expected address and access to survive, got %q / %q", noPrice.Address, noPrice.Access)
	}

	bare := listings[2]
	if bare.Price != "9,800万円" {
		t.Fatalf("unexpected price %q", bare.Price)
	}
	if bare.Address != "" || bare.Access != "" || bare.Size != "" {
		t.Fatalf("expected missing fields to stay empty, got %+v", bare)
	}
}

func TestParseListings_UnrecognizablePage(t *testing.T) {
	parser := NewListingParser(suumoSite())
	doc := fixtureDoc(t, "suumo_empty.html")

	listings, report, err := parser.Parse(doc)
	if err == nil {
		t.Fatal("expected an error for a page without listings")
	}
	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("expected ParseError, got %T: %v", err, err)
	}
	if parseErr.Site != "suumo" {
		t.Fatalf("expected site suumo, got %s", parseErr.Site)
	}
	if len(listings) != 0 {
		t.Fatalf("expected no listings, got %d", len(listings))
	}
	if report.Containers != 0 {
		t.Fatalf("expected 0 containers, got %d", report.Containers)
	}
}
