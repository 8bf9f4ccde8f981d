// Package chmi implements the precip.Source interface against the public
// precipitation pages of the Czech Hydrometeorological Institute.
package chmi

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/sony/gobreaker"

	"github.com/jskoda/precip-dashboard/internal/precip"
)

// DefaultBaseURL is the CHMI page listing hourly precipitation per station
// for a recent day. The page is paginated via the startpage parameter.
const DefaultBaseURL = "https://hydro.chmi.cz/hppsoldv/hpps_act_rain.php"

// DefaultPageDelay spaces out subpage downloads so the scrape stays polite.
const DefaultPageDelay = 500 * time.Millisecond

// Client downloads and parses daily precipitation tables from CHMI.
type Client struct {
	baseURL   string
	pageDelay time.Duration
	httpCfg   HTTPClientConfig
	circuit   *gobreaker.CircuitBreaker
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the CHMI endpoint, mainly for tests.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithPageDelay overrides the delay between subpage downloads.
func WithPageDelay(d time.Duration) Option {
	return func(c *Client) { c.pageDelay = d }
}

// WithBackoff overrides the retry backoff settings.
func WithBackoff(b BackoffConfig) Option {
	return func(c *Client) { c.httpCfg.Backoff = b }
}

// NewClient creates a CHMI client using the given HTTP client.
func NewClient(client *http.Client, opts ...Option) *Client {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "chmi",
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
	})

	c := &Client{
		baseURL:   DefaultBaseURL,
		pageDelay: DefaultPageDelay,
		httpCfg: HTTPClientConfig{
			Client: client,
			Backoff: BackoffConfig{
				MaxRetries:      3,
				InitialInterval: 500 * time.Millisecond,
				MaxInterval:     5 * time.Second,
			},
		},
		circuit: cb,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchDay downloads every subpage for the day at the given offset and
// returns the parsed readings. Implements precip.Source.
func (c *Client) FetchDay(ctx context.Context, dayOffset int) (precip.DayReadings, error) {
	if dayOffset < 0 || dayOffset > precip.MaxDayOffset {
		return precip.DayReadings{}, fmt.Errorf("day offset %d outside supported range [0, %d]", dayOffset, precip.MaxDayOffset)
	}

	doc, err := c.fetchPage(ctx, dayOffset, 1)
	if err != nil {
		return precip.DayReadings{}, err
	}

	pages, date, err := parseMeta(doc)
	if err != nil {
		return precip.DayReadings{}, err
	}

	day := precip.DayReadings{Date: date}

	readings, err := parseTable(doc, date)
	if err != nil {
		return precip.DayReadings{}, err
	}
	day.Readings = readings

	for page := 2; page <= pages; page++ {
		if err := c.wait(ctx); err != nil {
			return precip.DayReadings{}, err
		}

		doc, err := c.fetchPage(ctx, dayOffset, page)
		if err != nil {
			return precip.DayReadings{}, fmt.Errorf("page %d/%d: %w", page, pages, err)
		}
		readings, err := parseTable(doc, date)
		if err != nil {
			return precip.DayReadings{}, fmt.Errorf("page %d/%d: %w", page, pages, err)
		}
		day.Readings = append(day.Readings, readings...)
	}

	return day, nil
}

func (c *Client) fetchPage(ctx context.Context, dayOffset, page int) (*goquery.Document, error) {
	values := url.Values{}
	values.Set("day_offset", strconv.Itoa(dayOffset))
	values.Set("startpage", strconv.Itoa(page))

	return fetchDocument(ctx, c.httpCfg, c.circuit, c.baseURL+"?"+values.Encode())
}

func (c *Client) wait(ctx context.Context) error {
	if c.pageDelay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(c.pageDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
