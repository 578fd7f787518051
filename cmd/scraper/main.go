package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/aluiziolira/go-scrape-images/config"
	"github.com/aluiziolira/go-scrape-images/models"
	"github.com/aluiziolira/go-scrape-images/pipeline"
	"github.com/aluiziolira/go-scrape-images/scraper"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	configPath := configFlag(os.Args[1:])

	defaultCfg := config.DefaultConfig()
	if configPath != "" {
		loaded, err := config.LoadFile(configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "load config: %v\n", err)
			os.Exit(1)
		}
		defaultCfg = loaded
	}
	if err := applyEnv(defaultCfg); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	fs := flag.NewFlagSet("scraper", flag.ExitOnError)
	fs.String("config", configPath, "Optional YAML config file")
	items := fs.Int("items", defaultCfg.TargetItems, "Number of image links to save")
	query := fs.String("query", defaultCfg.Query, "Search query")
	batchSize := fs.Int("batch", defaultCfg.BatchSize, "Pages fetched concurrently per group")
	storage := fs.String("storage", defaultCfg.Storage, "Storage backend: sqlite, file or both")
	dbPath := fs.String("db", defaultCfg.DBPath, "SQLite database path")
	outputDir := fs.String("output-dir", defaultCfg.OutputDir, "Directory for file storage")
	baseURL := fs.String("base-url", defaultCfg.BaseURL, "Gallery base URL")
	timeoutMs := fs.Int("timeout", int(defaultCfg.Timeout/time.Millisecond), "Per-request timeout in milliseconds (0 disables)")
	interactive := fs.Bool("interactive", false, "Prompt for item count and query")
	verbose := fs.Bool("v", defaultCfg.Verbose, "Enable verbose logging")
	metricsAddr := fs.String("metrics-addr", defaultCfg.MetricsAddr, "Prometheus metrics listen address (e.g. :9090)")
	fs.Parse(os.Args[1:])

	logger, level := newLogger(*verbose)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level.Level())

	cfg := *defaultCfg
	cfg.TargetItems = *items
	cfg.Query = *query
	cfg.BatchSize = *batchSize
	cfg.Storage = strings.ToLower(*storage)
	cfg.DBPath = *dbPath
	cfg.OutputDir = *outputDir
	cfg.BaseURL = *baseURL
	cfg.Timeout = time.Duration(*timeoutMs) * time.Millisecond
	cfg.Verbose = *verbose
	cfg.MetricsAddr = *metricsAddr

	if *interactive {
		if err := promptRequest(os.Stdin, os.Stdout, &cfg); err != nil {
			slog.Error("reading input", slog.Any("error", err))
			os.Exit(1)
		}
	}

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}

	if err := run(&cfg); err != nil {
		slog.Error("scraping failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	start := time.Now()

	s, err := scraper.NewScraper(cfg)
	if err != nil {
		return fmt.Errorf("initialising scraper: %w", err)
	}

	sink, err := createSink(cfg, pipeline.StorageName(time.Now))
	if err != nil {
		return fmt.Errorf("creating writer: %w", err)
	}
	defer func() {
		if err := sink.Close(); err != nil {
			slog.Error("close writer", slog.Any("error", err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.MetricsAddr != "" {
		metricsServer := &http.Server{
			Addr:    cfg.MetricsAddr,
			Handler: promhttp.HandlerFor(s.Metrics.Registry, promhttp.HandlerOpts{}),
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server failed", slog.Any("error", err))
			}
		}()
		slog.Info("metrics server enabled", slog.String("addr", cfg.MetricsAddr))
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				slog.Error("metrics server shutdown failed", slog.Any("error", err))
			}
		}()
	}

	fmt.Printf("Running scraper on %d items. Query: %s\n", cfg.TargetItems, cfg.Query)

	req := models.ScrapeRequest{
		TargetItems: cfg.TargetItems,
		Query:       cfg.Query,
		BatchSize:   cfg.BatchSize,
	}
	outcome, err := s.Run(ctx, req, sink)
	if err != nil {
		if outcome != nil {
			slog.Error("partial run",
				slog.Int("items_written", outcome.ItemsWritten),
				slog.String("location", sink.Location()),
			)
		}
		return err
	}

	printSummary(outcome, time.Since(start), cfg.Storage, sink.Location())
	return nil
}

func createSink(cfg *config.Config, name string) (pipeline.Sink, error) {
	switch cfg.Storage {
	case config.StorageSQLite:
		return pipeline.NewSQLiteWriter(cfg.DBPath, name)
	case config.StorageFile:
		return pipeline.NewFileWriter(cfg.OutputDir, name)
	case config.StorageBoth:
		table, err := pipeline.NewSQLiteWriter(cfg.DBPath, name)
		if err != nil {
			return nil, err
		}
		file, err := pipeline.NewFileWriter(cfg.OutputDir, name)
		if err != nil {
			table.Close()
			return nil, err
		}
		return pipeline.NewDualWriter(table, file)
	default:
		return nil, fmt.Errorf("unsupported storage: %s", cfg.Storage)
	}
}

// configFlag finds the -config value before the full flag set is built, since
// the file supplies the defaults of every other flag.
func configFlag(args []string) string {
	for i, arg := range args {
		if arg == "--" {
			break
		}
		name, value, hasValue := strings.Cut(strings.TrimLeft(arg, "-"), "=")
		if !strings.HasPrefix(arg, "-") || name != "config" {
			continue
		}
		if hasValue {
			return value
		}
		if i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

func applyEnv(cfg *config.Config) error {
	if value, ok, err := config.EnvInt("SCRAPER_ITEMS"); err != nil {
		return fmt.Errorf("invalid SCRAPER_ITEMS: %w", err)
	} else if ok {
		cfg.TargetItems = value
	}
	if value, ok, err := config.EnvInt("SCRAPER_BATCH"); err != nil {
		return fmt.Errorf("invalid SCRAPER_BATCH: %w", err)
	} else if ok {
		cfg.BatchSize = value
	}
	if value, ok := config.EnvString("SCRAPER_QUERY"); ok {
		cfg.Query = value
	}
	if value, ok := config.EnvString("SCRAPER_STORAGE"); ok {
		cfg.Storage = value
	}
	if value, ok := config.EnvString("SCRAPER_DB"); ok {
		cfg.DBPath = value
	}
	if value, ok := config.EnvString("SCRAPER_METRICS_ADDR"); ok {
		cfg.MetricsAddr = value
	}
	return nil
}

// promptRequest asks whether to keep the configured defaults and otherwise
// reads the item count and query from in.
func promptRequest(in io.Reader, out io.Writer, cfg *config.Config) error {
	reader := bufio.NewReader(in)
	ask := func(prompt string) (string, error) {
		fmt.Fprint(out, prompt)
		line, err := reader.ReadString('\n')
		if err != nil && !(errors.Is(err, io.EOF) && line != "") {
			return "", err
		}
		return strings.TrimSpace(line), nil
	}

	answer, err := ask("Do you want to use default values? (y/n): ")
	if err != nil {
		return err
	}
	if strings.EqualFold(answer, "y") {
		return nil
	}

	countText, err := ask("Enter the number of images: ")
	if err != nil {
		return err
	}
	count, err := strconv.Atoi(countText)
	if err != nil {
		return fmt.Errorf("invalid number of images %q: %w", countText, err)
	}

	query, err := ask("Enter the query: ")
	if err != nil {
		return err
	}

	cfg.TargetItems = count
	cfg.Query = query
	return nil
}

func printSummary(outcome *models.ScrapeOutcome, duration time.Duration, storage, location string) {
	separator := "--------------------------------------------------"
	fmt.Println("\n" + separator)

	kind := "table"
	switch storage {
	case config.StorageFile:
		kind = "file"
	case config.StorageBoth:
		kind = "table and file"
	}
	fmt.Printf("Successfully scraped and saved %d images into the '%s' %s. Time elapsed: %.2fs\n",
		outcome.ItemsWritten, location, kind, duration.Seconds())

	fmt.Printf("  Run ID:        %s\n", outcome.RunID)
	fmt.Printf("  Pages planned: %d\n", outcome.PagesPlanned)
	fmt.Printf("  Pages fetched: %d\n", outcome.PagesFetched)
	fmt.Printf("  Pages failed:  %d\n", outcome.PagesFailed)
	if len(outcome.FailedPages) > 0 {
		fmt.Printf("  Failed pages:  %v\n", outcome.FailedPages)
	}
	if len(outcome.ErrorsByType) > 0 {
		fmt.Printf("  Error types:   %v\n", outcome.ErrorsByType)
	}
	fmt.Println(separator)
}

func newLogger(verbose bool) (*slog.Logger, *slog.LevelVar) {
	level := &slog.LevelVar{}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if isTerminal(os.Stdout) {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler), level
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
