package launcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-cleanhttp"

	"panelctl/pkg/logging"
)

// HTTPProbe checks whether the worker answers HTTP requests.
type HTTPProbe struct {
	client *http.Client
	url    string
}

// NewHTTPProbe creates a probe for url with the given per-request timeout.
func NewHTTPProbe(url string, timeout time.Duration) *HTTPProbe {
	client := cleanhttp.DefaultClient()
	client.Timeout = timeout
	return &HTTPProbe{client: client, url: url}
}

// URL returns the probed address.
func (p *HTTPProbe) URL() string {
	return p.url
}

// Check performs one GET and returns the status code.
func (p *HTTPProbe) Check(ctx context.Context) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return 0, err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	return resp.StatusCode, nil
}

// Alive reports whether status means the worker is listening and responding.
func Alive(status int) bool {
	return status >= 200 && status < 500
}

// pollProbe checks every interval until the probe succeeds or the race resolves.
func pollProbe(race *readinessRace, probe *HTTPProbe, interval time.Duration) {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-race.done():
			return
		case <-ticker.C:
		}

		status, err := probe.Check(race.context())
		if err != nil {
			logging.Debug("Probe", "%s not reachable yet: %v", probe.url, err)
			continue
		}
		if Alive(status) {
			race.offer(ReadinessSignal{Kind: SignalHTTPProbe, Text: fmt.Sprintf("HTTP %d from %s", status, probe.url)})
			return
		}
		logging.Debug("Probe", "%s answered %d", probe.url, status)
	}
}
