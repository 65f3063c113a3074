// Package analyzer is the HTTP client for the external qualitative analyzer.
// The analyzer is a black box to the core: the gatekeeper decides whether to
// call it, and a failed call never invalidates the gatekeeper's verdicts.
package analyzer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/vigorish/oddscore/pkg/models"
)

// Client posts forwarded candidates for qualitative analysis.
type Client struct {
	url        string
	httpClient *http.Client
}

// New creates a client with its own timeout, independent of cycle deadlines.
func New(url string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		url: url,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Analyze submits one candidate. The response body is opaque to the core and
// is discarded; only transport success matters here.
func (c *Client) Analyze(ctx context.Context, candidate models.Candidate) error {
	payload, err := json.Marshal(candidate)
	if err != nil {
		return fmt.Errorf("failed to marshal candidate: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewBuffer(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call analyzer: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("analyzer returned status %d", resp.StatusCode)
	}

	return nil
}
