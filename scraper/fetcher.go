package scraper

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/aluiziolira/go-scrape-images/config"
	"github.com/gocolly/colly/v2"
)

// Fetcher retrieves the raw markup of a single page. It makes exactly one attempt.
type Fetcher interface {
	Fetch(ctx context.Context, pageURL string) (string, error)
}

// CollyFetcher fetches pages through a shared colly collector.
type CollyFetcher struct {
	collector *colly.Collector
}

// NewCollyFetcher builds a fetcher configured from cfg.
func NewCollyFetcher(cfg *config.Config) (*CollyFetcher, error) {
	parsed, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("base url must include a host")
	}

	collector := colly.NewCollector(
		colly.AllowedDomains(parsed.Hostname()),
		colly.UserAgent(cfg.UserAgent),
	)
	collector.AllowURLRevisit = true
	collector.IgnoreRobotsTxt = true

	// Zero leaves the http.Client without a deadline.
	collector.SetRequestTimeout(cfg.Timeout)
	collector.WithTransport(&http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: cfg.BatchSize,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	})

	if err := collector.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: cfg.BatchSize,
	}); err != nil {
		return nil, fmt.Errorf("configure limits: %w", err)
	}

	return &CollyFetcher{collector: collector}, nil
}

// Fetch issues one GET for pageURL. Any 2xx response is a success; transport
// errors and every other status are returned as classified errors.
func (f *CollyFetcher) Fetch(ctx context.Context, pageURL string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	// A clone shares the transport but keeps callbacks private to this call.
	c := f.collector.Clone()
	// colly fails 203-299 on its own; every response goes to OnResponse instead.
	c.ParseHTTPErrorResponse = true

	var (
		body       string
		statusCode int
		fetchErr   error
	)
	c.OnResponse(func(r *colly.Response) {
		statusCode = r.StatusCode
		body = string(r.Body)
	})
	c.OnError(func(r *colly.Response, err error) {
		if r != nil {
			statusCode = r.StatusCode
		}
		fetchErr = err
	})

	if err := c.Visit(pageURL); err != nil {
		if fetchErr == nil {
			fetchErr = err
		}
	}
	if fetchErr != nil {
		return "", classifyError(fetchErr, statusCode)
	}
	if statusCode < 200 || statusCode >= 300 {
		return "", classifyError(nil, statusCode)
	}
	return body, nil
}
