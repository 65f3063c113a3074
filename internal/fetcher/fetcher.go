// Package fetcher pulls raw payloads from each configured provider with an
// independent timeout per provider. A slow or failed provider degrades only
// its own contribution to the cycle.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/vigorish/oddscore/pkg/models"
)

// Provider describes one upstream odds source.
type Provider struct {
	Name    string
	Adapter string
	URL     string
	Timeout time.Duration
}

// Result carries one provider's payload or its failure.
type Result struct {
	Provider Provider
	Payload  []byte
	Err      error
}

// Fetcher fans out HTTP fetches across providers.
type Fetcher struct {
	providers  []Provider
	httpClient *http.Client
	userAgent  string
}

// New creates a fetcher. Per-request deadlines come from each provider's
// configured timeout; the client timeout is only a backstop.
func New(providers []Provider) *Fetcher {
	return &Fetcher{
		providers: providers,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		userAgent: "oddscore/1.0",
	}
}

// FetchAll fetches every provider concurrently and returns one result per
// provider, in configuration order.
func (f *Fetcher) FetchAll(ctx context.Context) []Result {
	results := make([]Result, len(f.providers))

	var wg sync.WaitGroup
	for i, p := range f.providers {
		wg.Add(1)
		go func(i int, p Provider) {
			defer wg.Done()
			payload, err := f.fetchOne(ctx, p)
			results[i] = Result{Provider: p, Payload: payload, Err: err}
		}(i, p)
	}
	wg.Wait()

	return results
}

func (f *Fetcher) fetchOne(ctx context.Context, p Provider) ([]byte, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(fetchCtx, http.MethodGet, p.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request for %s: %w", p.Name, err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(fetchCtx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %s", models.ErrProviderTimeout, p.Name)
		}
		return nil, fmt.Errorf("%w: %s: %v", models.ErrProviderUnavailable, p.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s returned status %d", models.ErrProviderUnavailable, p.Name, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: reading body: %v", models.ErrProviderUnavailable, p.Name, err)
	}

	return body, nil
}
