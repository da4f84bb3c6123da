package models

import "time"

// Listing is a single unit advertisement extracted from the search page.
// URL is the canonical listing link and the sole deduplication key; every
// other field is optional and empty when the page did not provide it.
type Listing struct {
	URL       string    `json:"url" db:"url"`
	Price     string    `json:"price" db:"price"`
	Size      string    `json:"size" db:"size"`
	Address   string    `json:"address" db:"address"`
	Access    string    `json:"access" db:"access"`
	ImageURL  string    `json:"image_url" db:"image_url"`
	Site      string    `json:"site" db:"site"`
	FetchedAt time.Time `json:"fetched_at" db:"fetched_at"`
}

// PageDocument is the rendered output of one fetch. Screenshot is only
// populated when debug capture is enabled.
type PageDocument struct {
	Site       string
	URL        string
	HTML       string
	Screenshot []byte
	FetchedAt  time.Time
}
