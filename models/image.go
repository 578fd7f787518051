// Package models defines data structures for the scraper.
package models

import (
	"errors"
	"strings"
	"time"
)

const (
	// ItemsPerPage is the number of results the gallery renders per search page.
	ItemsPerPage = 60
	// DefaultBatchSize is how many pages are fetched concurrently per group.
	DefaultBatchSize = 25
)

// ScrapeRequest describes one scrape run. It is not modified once the run starts.
type ScrapeRequest struct {
	TargetItems int
	Query       string
	BatchSize   int
}

// NewScrapeRequest builds a request with the default batch size.
func NewScrapeRequest(targetItems int, query string) ScrapeRequest {
	return ScrapeRequest{
		TargetItems: targetItems,
		Query:       query,
		BatchSize:   DefaultBatchSize,
	}
}

// Validate rejects requests that must not reach the network.
func (r ScrapeRequest) Validate() error {
	if r.TargetItems <= 0 {
		return errors.New("target item count must be positive")
	}
	if strings.TrimSpace(r.Query) == "" {
		return errors.New("query cannot be empty")
	}
	if r.BatchSize <= 0 {
		return errors.New("batch size must be positive")
	}
	return nil
}

// PageTask is a single search page to fetch. Pages are 1-based.
type PageTask struct {
	Page int
}

// PageResult holds the links extracted from one page, in document order.
// Err records the fetch failure that left URLs empty, if any.
type PageResult struct {
	Page int
	URLs []string
	Err  error
}

// ScrapeOutcome holds the overall result of a scrape run.
type ScrapeOutcome struct {
	RunID        string
	ItemsWritten int
	PagesPlanned int
	PagesFetched int
	PagesFailed  int
	FailedPages  []int
	ErrorsByType map[string]int
	StartTime    time.Time
	EndTime      time.Time
}

// Elapsed returns the wall-clock duration of the run.
func (o *ScrapeOutcome) Elapsed() time.Duration {
	if o.EndTime.IsZero() {
		return time.Since(o.StartTime)
	}
	return o.EndTime.Sub(o.StartTime)
}
