package cli

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"panelctl/internal/launcher"
	"panelctl/pkg/logging"
)

const (
	defaultStatusRetries = 3
	defaultStatusTimeout = 3 * time.Second
)

// BackendStatus is the result of probing a running backend.
type BackendStatus struct {
	URL        string        `json:"url" yaml:"url"`
	Alive      bool          `json:"alive" yaml:"alive"`
	StatusCode int           `json:"statusCode,omitempty" yaml:"statusCode,omitempty"`
	Latency    time.Duration `json:"latency" yaml:"latency"`
	Error      string        `json:"error,omitempty" yaml:"error,omitempty"`
}

// StatusClient probes the backend's HTTP endpoint with retries.
type StatusClient struct {
	url    string
	client *retryablehttp.Client
}

// NewStatusClient creates a client for url. A negative retry count or a
// non-positive timeout picks the default.
func NewStatusClient(url string, retries int, timeout time.Duration) *StatusClient {
	if retries < 0 {
		retries = defaultStatusRetries
	}
	if timeout <= 0 {
		timeout = defaultStatusTimeout
	}

	c := retryablehttp.NewClient()
	c.RetryMax = retries
	c.RetryWaitMin = 100 * time.Millisecond
	c.RetryWaitMax = time.Second
	c.HTTPClient.Timeout = timeout
	c.Logger = retryLogger{}
	// Hand back the last response instead of a bare "giving up" error
	c.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return &StatusClient{url: url, client: c}
}

// URL returns the probed address.
func (c *StatusClient) URL() string {
	return c.url
}

// Check probes the backend once, retrying connection errors and 5xx answers.
// Any 2xx-4xx answer means the backend is listening.
func (c *StatusClient) Check(ctx context.Context) BackendStatus {
	status := BackendStatus{URL: c.url}
	started := time.Now()

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		status.Error = fmt.Sprintf("invalid status URL: %v", err)
		return status
	}

	resp, err := c.client.Do(req)
	status.Latency = time.Since(started)
	if resp != nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		status.StatusCode = resp.StatusCode
		status.Alive = launcher.Alive(resp.StatusCode)
	}
	if err != nil && !status.Alive {
		status.Error = err.Error()
	}
	if status.Error == "" && !status.Alive {
		status.Error = fmt.Sprintf("unexpected HTTP status %d", status.StatusCode)
	}
	return status
}

// retryLogger routes retryablehttp's leveled logs into pkg/logging.
type retryLogger struct{}

func (retryLogger) Error(msg string, keysAndValues ...interface{}) {
	logging.Warn("Status", "%s %v", msg, keysAndValues)
}

func (retryLogger) Info(msg string, keysAndValues ...interface{}) {
	logging.Debug("Status", "%s %v", msg, keysAndValues)
}

func (retryLogger) Debug(msg string, keysAndValues ...interface{}) {
	logging.Debug("Status", "%s %v", msg, keysAndValues)
}

func (retryLogger) Warn(msg string, keysAndValues ...interface{}) {
	logging.Debug("Status", "%s %v", msg, keysAndValues)
}

var _ retryablehttp.LeveledLogger = retryLogger{}
