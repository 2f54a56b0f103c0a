package mirror

import (
	"context"
	"net/http"
	"time"
)

const (
	DefaultProbeURL     = "https://firebase.google.com"
	DefaultProbeTimeout = 3 * time.Second
)

// HTTPProbe treats any non-5xx answer from the probe URL as reachable.
type HTTPProbe struct {
	url    string
	client *http.Client
}

func NewHTTPProbe(url string, timeout time.Duration) *HTTPProbe {
	if url == "" {
		url = DefaultProbeURL
	}
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	return &HTTPProbe{url: url, client: &http.Client{Timeout: timeout}}
}

func (p *HTTPProbe) Reachable(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.url, nil)
	if err != nil {
		return false
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return false
	}
	_ = resp.Body.Close()
	return resp.StatusCode < http.StatusInternalServerError
}
