// Package source provides the snapshot data sources consumed by the
// pipeline: the market-order snapshot and the weekly historical
// statistics, fetched over HTTP or read from local files.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// ErrNotFound reports that the remote resource does not exist. It is
// returned without retrying so callers can fall back to an older resource.
var ErrNotFound = errors.New("source: resource not found")

// Fetcher downloads snapshot files, retrying transient failures with
// exponential backoff and rate-limiting outgoing requests.
type Fetcher struct {
	logger     zerolog.Logger
	client     *http.Client
	limiter    *rate.Limiter
	maxRetries uint64
}

// NewFetcher creates a Fetcher. rps bounds outgoing requests per second;
// maxRetries bounds additional attempts after the first.
func NewFetcher(logger zerolog.Logger, timeout time.Duration, maxRetries int, rps float64) *Fetcher {
	return &Fetcher{
		logger:     logger,
		client:     &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
		maxRetries: uint64(maxRetries),
	}
}

// Get downloads the resource at url. HTTP 404 maps to ErrNotFound and is
// not retried; other HTTP and transport failures are retried up to the
// configured limit.
func (f *Fetcher) Get(ctx context.Context, url string) ([]byte, error) {
	var body []byte

	operation := func() error {
		if err := f.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(err)
		}

		start := time.Now()
		resp, err := f.client.Do(req)
		if err != nil {
			f.logger.Warn().Str("url", url).Err(err).Msg("download attempt failed")
			return err
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusOK:
		case resp.StatusCode == http.StatusNotFound:
			return backoff.Permanent(fmt.Errorf("%w: %s", ErrNotFound, url))
		case resp.StatusCode >= 500:
			f.logger.Warn().Str("url", url).Int("status", resp.StatusCode).Msg("server error, will retry")
			return fmt.Errorf("GET %s: HTTP %d", url, resp.StatusCode)
		default:
			return backoff.Permanent(fmt.Errorf("GET %s: HTTP %d", url, resp.StatusCode))
		}

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read body of %s: %w", url, err)
		}

		f.logger.Info().
			Str("url", url).
			Int("bytes", len(body)).
			Dur("duration", time.Since(start)).
			Msg("download complete")
		return nil
	}

	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), f.maxRetries), ctx)
	if err := backoff.Retry(operation, b); err != nil {
		return nil, err
	}
	return body, nil
}
