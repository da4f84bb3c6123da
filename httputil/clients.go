package httputil

import (
	"crypto/tls"
	"net/http"
	"net/url"
	"time"
)

type Clients struct {
	Scraping *http.Client // optionally proxied, for the target site
	Webhook  *http.Client // direct, for notification delivery
}

func NewClients(proxyURL string) *Clients {
	scraping := &http.Client{Timeout: 30 * time.Second}

	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			scraping.Transport = &http.Transport{
				Proxy:             http.ProxyURL(u),
				ForceAttemptHTTP2: false,
				TLSNextProto:      make(map[string]func(string, *tls.Conn) http.RoundTripper),
			}
		}
	}

	return &Clients{
		Scraping: scraping,
		Webhook:  &http.Client{Timeout: 15 * time.Second},
	}
}
