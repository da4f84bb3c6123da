package hunter

import "fmt"

// FetchError covers any failure to obtain page content, from browser
// launch through navigation to extraction. Always recoverable; the next
// cycle retries from scratch.
type FetchError struct {
	Site  string
	URL   string
	Stage string
	Err   error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s (%s): %s: %v", e.Site, e.URL, e.Stage, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ParseError means the page did not look like a listing page at all.
// Individual malformed listings never raise it; only a page with zero
// recognizable containers does.
type ParseError struct {
	Site   string
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse %s: %s: %v", e.Site, e.Reason, e.Err)
	}
	return fmt.Sprintf("parse %s: %s", e.Site, e.Reason)
}

func (e *ParseError) Unwrap() error { return e.Err }
