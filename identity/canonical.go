package identity

import (
	"fmt"
	"net/url"
	"strings"
)

var trackingParams = map[string]bool{
	"utm_source":   true,
	"utm_medium":   true,
	"utm_campaign": true,
	"utm_term":     true,
	"utm_content":  true,
	"fbclid":       true,
	"gclid":        true,
	"yclid":        true,
}

// Canonicalize resolves href against base and normalizes the result into
// the stable identifier used for deduplication: absolute URL, lowercased
// host, no fragment, tracking parameters dropped.
func Canonicalize(base, href string) (string, error) {
	href = strings.TrimSpace(href)
	if href == "" {
		return "", fmt.Errorf("empty href")
	}

	ref, err := url.Parse(href)
	if err != nil {
		return "", fmt.Errorf("parse href %q: %w", href, err)
	}

	resolved := ref
	if !ref.IsAbs() {
		if base == "" {
			return "", fmt.Errorf("relative href %q without base", href)
		}
		b, err := url.Parse(base)
		if err != nil {
			return "", fmt.Errorf("parse base %q: %w", base, err)
		}
		resolved = b.ResolveReference(ref)
	}

	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return "", fmt.Errorf("unsupported scheme %q", resolved.Scheme)
	}
	if resolved.Host == "" {
		return "", fmt.Errorf("no host in %q", href)
	}

	resolved.Host = strings.ToLower(resolved.Host)
	resolved.Fragment = ""

	if resolved.RawQuery != "" {
		q := resolved.Query()
		for key := range q {
			if trackingParams[strings.ToLower(key)] {
				q.Del(key)
			}
		}
		resolved.RawQuery = q.Encode()
	}

	return resolved.String(), nil
}

// Absolute resolves ref against base without further normalization, for
// asset URLs that are displayed rather than compared.
func Absolute(base, ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", fmt.Errorf("empty ref")
	}

	u, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("parse ref %q: %w", ref, err)
	}
	if u.IsAbs() {
		return u.String(), nil
	}

	b, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse base %q: %w", base, err)
	}
	return b.ResolveReference(u).String(), nil
}
