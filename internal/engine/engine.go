// Package engine orchestrates a scraping run: it schedules URL tasks under a
// bounded concurrency gate, spreads requests over a round-robin client pool,
// collects validated records into a shared buffer, and hands the buffer to
// deduplication and storage at the end.
package engine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pricecrawl/pricecrawl/internal/config"
	"github.com/pricecrawl/pricecrawl/internal/dedupe"
	"github.com/pricecrawl/pricecrawl/internal/httpclient"
	"github.com/pricecrawl/pricecrawl/internal/parser"
	"github.com/pricecrawl/pricecrawl/internal/proxy"
	"github.com/pricecrawl/pricecrawl/internal/record"
	"github.com/pricecrawl/pricecrawl/internal/storage"
	"github.com/pricecrawl/pricecrawl/internal/telemetry"
)

// batchThreshold is the input size above which ScrapeURLs switches to
// batched processing.
const batchThreshold = 50

// Fetcher is the slice of the HTTP client the engine needs. Satisfied by
// *httpclient.Client.
type Fetcher interface {
	Get(ctx context.Context, rawURL string, opts ...httpclient.RequestOption) (string, error)
	Close()
}

// Engine drives one scraping run. Construct with New, call Open before
// ScrapeURLs, and Close when done. Safe for concurrent use between Open and
// Close.
type Engine struct {
	cfg     config.Config
	proxies *proxy.Manager
	parser  parser.Parser
	store   storage.Storage
	logger  *zap.Logger

	newClient func() Fetcher

	clientMu sync.Mutex
	clients  []Fetcher
	cursor   int

	visitedMu sync.Mutex
	visited   map[string]struct{}

	resultsMu sync.Mutex
	results   []record.Record

	gate chan struct{}

	failedURLs atomic.Int64
	runID      string
	startedAt  time.Time
	opened     bool
}

// Option customizes engine construction.
type Option func(*Engine)

// WithClientFactory overrides how pool clients are built; used by tests to
// inject fakes.
func WithClientFactory(factory func() Fetcher) Option {
	return func(e *Engine) { e.newClient = factory }
}

// New assembles an engine around its collaborators. The client pool is not
// created until Open.
func New(cfg config.Config, proxies *proxy.Manager, p parser.Parser, store storage.Storage, logger *zap.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}

	e := &Engine{
		cfg:     cfg,
		proxies: proxies,
		parser:  p,
		store:   store,
		logger:  logger,
		visited: make(map[string]struct{}),
		gate:    make(chan struct{}, cfg.Concurrency),
	}
	e.newClient = func() Fetcher {
		return httpclient.New(e.cfg, e.proxies, e.logger)
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Open initializes the client pool and stamps the run. Calling Open twice is
// an error.
func (e *Engine) Open(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	e.clientMu.Lock()
	defer e.clientMu.Unlock()
	if e.opened {
		return fmt.Errorf("engine already open")
	}

	telemetry.Init()
	e.runID = uuid.NewString()
	e.startedAt = time.Now()
	e.clients = make([]Fetcher, 0, e.cfg.SessionsCount)
	for i := 0; i < e.cfg.SessionsCount; i++ {
		e.clients = append(e.clients, e.newClient())
	}
	e.opened = true

	e.logger.Info("engine opened",
		zap.String("run_id", e.runID),
		zap.String("shop", e.parser.Name()),
		zap.Int("sessions", len(e.clients)),
		zap.Int("concurrency", e.cfg.Concurrency),
	)
	return nil
}

// Close tears down the client pool and the storage handle, then logs the run
// summary. Always safe to defer after a successful Open.
func (e *Engine) Close() error {
	e.clientMu.Lock()
	clients := e.clients
	e.clients = nil
	opened := e.opened
	e.opened = false
	e.clientMu.Unlock()

	for _, client := range clients {
		client.Close()
	}

	var err error
	if e.store != nil {
		err = e.store.Close()
	}

	if opened {
		e.logger.Info("engine closed",
			zap.String("run_id", e.runID),
			zap.Int("items", len(e.Results())),
			zap.Int64("failed_urls", e.failedURLs.Load()),
			zap.Duration("elapsed", time.Since(e.startedAt)),
		)
	}
	return err
}

// ScrapeURLs processes all URLs concurrently under the configured gate.
// Large inputs are split into batches with an inter-batch pause to limit
// memory and burst load.
func (e *Engine) ScrapeURLs(ctx context.Context, urls []string) error {
	e.logger.Info("starting scrape",
		zap.String("run_id", e.runID),
		zap.Int("urls", len(urls)),
		zap.Int("concurrency", e.cfg.Concurrency),
	)

	if len(urls) > batchThreshold {
		return e.scrapeBatched(ctx, urls)
	}
	e.runBatch(ctx, urls)

	e.logger.Info("finished scrape",
		zap.String("run_id", e.runID),
		zap.Int("items", len(e.Results())),
		zap.Int64("failed_urls", e.failedURLs.Load()),
	)
	return ctx.Err()
}

func (e *Engine) scrapeBatched(ctx context.Context, urls []string) error {
	size := e.cfg.Batch.Size
	total := (len(urls) + size - 1) / size

	for i := 0; i < len(urls); i += size {
		end := i + size
		if end > len(urls) {
			end = len(urls)
		}
		batch := urls[i:end]
		e.logger.Info("processing batch",
			zap.Int("batch", i/size+1),
			zap.Int("batches", total),
			zap.Int("urls", len(batch)),
		)
		e.runBatch(ctx, batch)

		if end < len(urls) {
			if err := sleepCtx(ctx, e.cfg.Batch.BatchDelay()); err != nil {
				return err
			}
		}
	}

	e.logger.Info("finished scrape",
		zap.String("run_id", e.runID),
		zap.Int("items", len(e.Results())),
		zap.Int64("failed_urls", e.failedURLs.Load()),
	)
	return ctx.Err()
}

// runBatch dispatches one slice of URLs and waits for every branch,
// including recursive link discovery, to settle.
func (e *Engine) runBatch(ctx context.Context, urls []string) {
	var wg sync.WaitGroup
	for _, rawURL := range urls {
		wg.Add(1)
		go func(rawURL string) {
			defer wg.Done()

			if ctx.Err() != nil {
				return
			}
			select {
			case e.gate <- struct{}{}:
			case <-ctx.Done():
				return
			}
			defer func() { <-e.gate }()

			telemetry.IncActiveFetches()
			defer telemetry.DecActiveFetches()

			e.ProcessURL(ctx, rawURL)
		}(rawURL)
	}
	wg.Wait()
}

// ProcessURL handles one URL branch: skip if already visited, fetch, parse,
// collect items, then follow discovered links. A failure terminates only this
// branch; it is logged and counted, never propagated.
func (e *Engine) ProcessURL(ctx context.Context, rawURL string) {
	if !e.markVisited(rawURL) {
		e.logger.Debug("skipping already processed url", zap.String("url", rawURL))
		return
	}

	e.logger.Info("processing url", zap.String("url", rawURL))

	client, err := e.nextClient()
	if err != nil {
		e.logger.Error("no client available", zap.String("url", rawURL), zap.Error(err))
		e.failedURLs.Add(1)
		telemetry.ObserveURLFailed()
		return
	}

	content, err := client.Get(ctx, rawURL)
	if err != nil {
		e.logger.Error("failed to fetch url", zap.String("url", rawURL), zap.Error(err))
		e.failedURLs.Add(1)
		telemetry.ObserveURLFailed()
		return
	}

	items, err := e.parser.ParsePage(content, rawURL)
	if err != nil {
		e.logger.Error("failed to parse page", zap.String("url", rawURL), zap.Error(err))
		e.failedURLs.Add(1)
		telemetry.ObserveURLFailed()
		return
	}
	e.processItems(items)

	e.followLinks(ctx, content, rawURL)
}

// followLinks recurses into links discovered on the page when the parser
// supports discovery. Recursion runs within the caller's gate slot and is
// bounded by the visited set.
func (e *Engine) followLinks(ctx context.Context, content, pageURL string) {
	discoverer, ok := e.parser.(parser.LinkDiscoverer)
	if !ok {
		return
	}

	links, err := discoverer.DiscoverLinks(content, pageURL)
	if err != nil {
		e.logger.Warn("failed to discover links", zap.String("url", pageURL), zap.Error(err))
		return
	}
	for _, link := range links {
		if ctx.Err() != nil {
			return
		}
		e.ProcessURL(ctx, link)
	}
}

// processItems validates extracted items in parallel and appends survivors to
// the result buffer. Invalid items are dropped with a warning.
func (e *Engine) processItems(items []record.Record) {
	if len(items) == 0 {
		return
	}

	valid := make([]*record.Record, len(items))
	var wg sync.WaitGroup
	for i := range items {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if err := items[i].Validate(); err != nil {
				e.logger.Warn("dropping invalid item",
					zap.String("url", items[i].URL),
					zap.String("name", items[i].Name),
					zap.Error(err),
				)
				telemetry.ObserveItemDropped("validation")
				return
			}
			valid[i] = &items[i]
		}(i)
	}
	wg.Wait()

	e.resultsMu.Lock()
	added := 0
	for _, item := range valid {
		if item == nil {
			continue
		}
		e.results = append(e.results, *item)
		added++
	}
	e.resultsMu.Unlock()

	if added > 0 {
		for i := 0; i < added; i++ {
			telemetry.ObserveItemScraped()
		}
		e.logger.Info("added items to results", zap.Int("count", added))
	}
}

// SaveResults deduplicates the full result buffer and persists it. Calling it
// again later in the run recomputes over the whole buffer, so repeated saves
// stay consistent.
func (e *Engine) SaveResults(ctx context.Context, destination string) error {
	items := e.Results()
	if len(items) == 0 {
		e.logger.Warn("no results to save", zap.String("run_id", e.runID))
		return nil
	}

	unique, stats := dedupe.Dedupe(items, e.cfg.Dedup.PrimaryKeys)
	stats.Log(e.logger)

	if err := e.store.Save(ctx, unique, destination); err != nil {
		return fmt.Errorf("save results to %s: %w", destination, err)
	}
	e.logger.Info("saved results",
		zap.String("run_id", e.runID),
		zap.Int("items", len(unique)),
		zap.String("destination", destination),
	)
	return nil
}

// Results returns a copy of the current result buffer.
func (e *Engine) Results() []record.Record {
	e.resultsMu.Lock()
	defer e.resultsMu.Unlock()
	out := make([]record.Record, len(e.results))
	copy(out, e.results)
	return out
}

// FailedURLs reports how many URL branches were abandoned so far.
func (e *Engine) FailedURLs() int {
	return int(e.failedURLs.Load())
}

// RunID returns the identifier stamped at Open.
func (e *Engine) RunID() string {
	return e.runID
}

// markVisited records the URL, reporting whether this call was the first to
// see it. Marking happens before fetching so concurrent branches cannot
// double-dispatch.
func (e *Engine) markVisited(rawURL string) bool {
	key := normalizeURL(rawURL)
	e.visitedMu.Lock()
	defer e.visitedMu.Unlock()
	if _, seen := e.visited[key]; seen {
		return false
	}
	e.visited[key] = struct{}{}
	return true
}

// nextClient returns the next pool client under the round-robin cursor.
func (e *Engine) nextClient() (Fetcher, error) {
	e.clientMu.Lock()
	defer e.clientMu.Unlock()
	if len(e.clients) == 0 {
		return nil, fmt.Errorf("engine not open")
	}
	client := e.clients[e.cursor%len(e.clients)]
	e.cursor++
	return client, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
