package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/aluiziolira/go-scrape-images/config"
	"github.com/aluiziolira/go-scrape-images/models"
	"github.com/aluiziolira/go-scrape-images/parser"
	"github.com/aluiziolira/go-scrape-images/pipeline"
	"github.com/google/uuid"
)

// Scraper fetches search pages in fixed-size concurrent groups and delivers
// their links to storage in page order.
type Scraper struct {
	baseURL string
	fetcher Fetcher
	Metrics *Metrics
}

// NewScraper builds a scraper backed by a colly fetcher configured from cfg.
func NewScraper(cfg *config.Config) (*Scraper, error) {
	fetcher, err := NewCollyFetcher(cfg)
	if err != nil {
		return nil, err
	}
	return NewScraperWithFetcher(cfg.BaseURL, fetcher), nil
}

// NewScraperWithFetcher builds a scraper around an existing Fetcher.
func NewScraperWithFetcher(baseURL string, fetcher Fetcher) *Scraper {
	return &Scraper{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		fetcher: fetcher,
		Metrics: NewMetrics(),
	}
}

// MaxPages returns how many pages are needed for targetItems, assuming full pages.
func MaxPages(targetItems int) int {
	if targetItems <= 0 {
		return 0
	}
	pages := targetItems / models.ItemsPerPage
	if targetItems%models.ItemsPerPage != 0 {
		pages++
	}
	return pages
}

// GenerateTasks returns one task per page, pages 1..maxPages in order.
func GenerateTasks(maxPages int) []models.PageTask {
	tasks := make([]models.PageTask, 0, maxPages)
	for page := 1; page <= maxPages; page++ {
		tasks = append(tasks, models.PageTask{Page: page})
	}
	return tasks
}

// ChunkTasks splits tasks into consecutive groups of at most size tasks.
func ChunkTasks(tasks []models.PageTask, size int) [][]models.PageTask {
	if size <= 0 {
		size = models.DefaultBatchSize
	}
	groups := make([][]models.PageTask, 0, (len(tasks)+size-1)/size)
	for start := 0; start < len(tasks); start += size {
		end := min(start+size, len(tasks))
		groups = append(groups, tasks[start:end])
	}
	return groups
}

// PageURL builds the search URL for one page: {base}/search/{query}/{page}.
func PageURL(baseURL, query string, page int) string {
	return fmt.Sprintf("%s/search/%s/%d", strings.TrimSuffix(baseURL, "/"), url.PathEscape(query), page)
}

// Run scrapes until req.TargetItems URLs were written or the planned pages are exhausted.
// Page fetch failures only shrink the result; a storage failure aborts the run and is
// returned together with the partial outcome.
func (s *Scraper) Run(ctx context.Context, req models.ScrapeRequest, w pipeline.Writer) (*models.ScrapeOutcome, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	req.Query = parser.NormalizeQuery(req.Query)
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}

	maxPages := MaxPages(req.TargetItems)
	outcome := &models.ScrapeOutcome{
		RunID:        uuid.NewString(),
		PagesPlanned: maxPages,
		ErrorsByType: make(map[string]int),
		StartTime:    time.Now(),
	}
	logger := slog.With(slog.String("run_id", outcome.RunID))
	logger.Info("scrape started",
		slog.String("query", req.Query),
		slog.Int("target_items", req.TargetItems),
		slog.Int("pages", maxPages),
		slog.Int("batch_size", req.BatchSize),
	)

	p := pipeline.NewPipeline(w, req.TargetItems)
	s.Metrics.SetTarget(req.TargetItems)
	defer func() {
		outcome.ItemsWritten = p.Written()
		outcome.EndTime = time.Now()
	}()

	for i, group := range ChunkTasks(GenerateTasks(maxPages), req.BatchSize) {
		if err := ctx.Err(); err != nil {
			return outcome, fmt.Errorf("scrape interrupted before group %d: %w", i+1, err)
		}

		groupStart := time.Now()
		results := s.runGroup(ctx, req.Query, group)
		s.Metrics.ObserveGroup(time.Since(groupStart))

		for _, result := range results {
			if result.Err != nil {
				outcome.PagesFailed++
				outcome.FailedPages = append(outcome.FailedPages, result.Page)
				outcome.ErrorsByType[errorTypeLabel(result.Err)]++
			} else {
				outcome.PagesFetched++
			}
			if p.Done() {
				continue
			}

			written, err := p.Process(result.URLs)
			if err != nil {
				logger.Error("storage write failed", slog.Int("page", result.Page), slog.Any("error", err))
				return outcome, err
			}
			s.Metrics.AddItems(written)
		}

		logger.Debug("group complete",
			slog.Int("group", i+1),
			slog.Int("first_page", group[0].Page),
			slog.Int("last_page", group[len(group)-1].Page),
			slog.Int("written", p.Written()),
		)
		if p.Done() {
			break
		}
	}

	logger.Info("scrape finished",
		slog.Int("items_written", p.Written()),
		slog.Int("pages_fetched", outcome.PagesFetched),
		slog.Int("pages_failed", outcome.PagesFailed),
	)
	return outcome, nil
}

// runGroup fetches every task of group concurrently and returns the results in
// task order once all of them have completed.
func (s *Scraper) runGroup(ctx context.Context, query string, group []models.PageTask) []models.PageResult {
	results := make([]models.PageResult, len(group))

	var wg sync.WaitGroup
	for i, task := range group {
		wg.Add(1)
		go func(i int, task models.PageTask) {
			defer wg.Done()
			results[i] = s.scrapePage(ctx, query, task)
		}(i, task)
	}
	wg.Wait()

	return results
}

func (s *Scraper) scrapePage(ctx context.Context, query string, task models.PageTask) models.PageResult {
	pageURL := PageURL(s.baseURL, query, task.Page)

	s.Metrics.IncRequest("started")
	start := time.Now()
	markup, err := s.fetcher.Fetch(ctx, pageURL)
	s.Metrics.ObserveDuration(time.Since(start))

	if err != nil {
		category := errorTypeLabel(err)
		s.Metrics.IncRequest("failed")
		s.Metrics.IncError(category)
		slog.Warn("page fetch failed",
			slog.Int("page", task.Page),
			slog.String("url", pageURL),
			slog.String("category", category),
			slog.Any("error", err),
		)
		return models.PageResult{Page: task.Page, URLs: []string{}, Err: err}
	}

	s.Metrics.IncRequest("completed")
	urls := parser.ExtractLinks(s.baseURL, markup)
	s.Metrics.ObservePageLinks(len(urls))
	slog.Debug("page scraped", slog.Int("page", task.Page), slog.Int("links", len(urls)))
	return models.PageResult{Page: task.Page, URLs: urls}
}
