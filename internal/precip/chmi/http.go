package chmi

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/sony/gobreaker"
)

// BackoffConfig controls retry backoff for CHMI page downloads.
type BackoffConfig struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// HTTPClientConfig bundles the HTTP client and resilience settings.
type HTTPClientConfig struct {
	Client  *http.Client
	Backoff BackoffConfig
}

var (
	errRateLimited      = errors.New("rate limited by chmi")
	errServerError      = errors.New("chmi server error")
	errUnexpectedStatus = errors.New("unexpected status")
	errBadPage          = errors.New("malformed precipitation page")
	errCircuitOpen      = errors.New("circuit breaker open")
	errNoHTTPClient     = errors.New("http client not configured")
	errInvalidConfig    = errors.New("invalid backoff configuration")
)

// fetchDocument downloads one CHMI precipitation page and parses it into a
// goquery document. Transient failures (transport errors, 429, 5xx) are
// retried with exponential backoff behind the circuit breaker; any other
// non-200 status and unparseable HTML abort immediately, since the page is
// a plain GET that either serves the table or never will.
func fetchDocument(ctx context.Context, cfg HTTPClientConfig, cb *gobreaker.CircuitBreaker, pageURL string) (*goquery.Document, error) {
	if cfg.Client == nil {
		return nil, errNoHTTPClient
	}
	if cfg.Backoff.MaxRetries < 0 || cfg.Backoff.InitialInterval <= 0 {
		return nil, errInvalidConfig
	}

	for attempt := 0; ; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		result, err := cb.Execute(func() (interface{}, error) {
			return downloadPage(ctx, cfg.Client, pageURL)
		})
		if err == nil {
			return result.(*goquery.Document), nil
		}

		// An open circuit propagates immediately; waiting out the backoff
		// would not close it any sooner.
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %v", errCircuitOpen, err)
		}
		if !retryable(err) || attempt >= cfg.Backoff.MaxRetries {
			return nil, err
		}

		delay := cfg.Backoff.InitialInterval * time.Duration(math.Pow(2, float64(attempt)))
		if cfg.Backoff.MaxInterval > 0 && delay > cfg.Backoff.MaxInterval {
			delay = cfg.Backoff.MaxInterval
		}
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

// downloadPage performs a single GET and decodes the body. It runs inside
// the circuit breaker, so classified failures trip it.
func downloadPage(ctx context.Context, client *http.Client, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, errRateLimited
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: %d", errServerError, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w: %d fetching %s", errUnexpectedStatus, resp.StatusCode, pageURL)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errBadPage, err)
	}
	return doc, nil
}

// retryable reports whether another attempt can help. Unexpected status
// codes and broken HTML are deterministic; everything else is assumed
// transient.
func retryable(err error) bool {
	return !errors.Is(err, errUnexpectedStatus) && !errors.Is(err, errBadPage)
}
