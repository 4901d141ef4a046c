package scraper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"gouden-gids-crawler/config"
	"gouden-gids-crawler/export"
	"gouden-gids-crawler/fetcher"
	"gouden-gids-crawler/metrics"
	"gouden-gids-crawler/models"
	"gouden-gids-crawler/notify"
	"gouden-gids-crawler/parser"

	"github.com/gocolly/colly/v2"
	"github.com/gocolly/colly/v2/storage"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/net/html"
)

const (
	ctxKind = "kind"
	ctxURL  = "url"
)

// ExporterFactory opens the destination for one run. The returned link,
// if any, points at the results and ends up in the run summary.
type ExporterFactory func(ctx context.Context, run models.CrawlRun) (export.Exporter, string, error)

// Linker is implemented by exporters whose result link is only known once
// the run has been written, e.g. a sheet created on the first record
type Linker interface {
	Link() string
}

// RunStore records crawl runs; *db.DB satisfies it
type RunStore interface {
	CreateRun(ctx context.Context, run models.CrawlRun) error
	FinishRun(ctx context.Context, run models.CrawlRun) error
}

// Crawler runs a Spider on a colly collector and feeds the records to an
// exporter
type Crawler struct {
	cfg         config.CrawlerConfig
	newExporter ExporterFactory
	logger      *zap.Logger

	storage  storage.Storage
	renderer fetcher.Renderer
	runs     RunStore
	notifier notify.Notifier
	metrics  *metrics.Metrics
}

// Option configures optional Crawler collaborators
type Option func(*Crawler)

// WithStorage shares visited state through s instead of process memory
func WithStorage(s storage.Storage) Option {
	return func(c *Crawler) { c.storage = s }
}

// WithRenderer renders business pages in a browser before extraction
func WithRenderer(r fetcher.Renderer) Option {
	return func(c *Crawler) { c.renderer = r }
}

// WithRunStore records every run in rs
func WithRunStore(rs RunStore) Option {
	return func(c *Crawler) { c.runs = rs }
}

// WithNotifier sends a summary through n when a run ends
func WithNotifier(n notify.Notifier) Option {
	return func(c *Crawler) { c.notifier = n }
}

// WithMetrics updates m while crawling
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Crawler) { c.metrics = m }
}

// NewCrawler creates a Crawler
func NewCrawler(cfg config.CrawlerConfig, newExporter ExporterFactory, logger *zap.Logger, opts ...Option) *Crawler {
	c := &Crawler{
		cfg:         cfg,
		newExporter: newExporter,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// runState collects the outcome of a run from concurrent callbacks
type runState struct {
	mu      sync.Mutex
	run     models.CrawlRun
	fatal   error
	lastErr error
	// business URLs already requested in this run
	claimed map[string]bool
}

// claim reports whether url was not yet requested in this run and marks it
func (s *runState) claim(url string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.claimed[url] {
		return false
	}
	s.claimed[url] = true
	return true
}

func (s *runState) addError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.run.Errors++
	s.lastErr = err
}

func (s *runState) setFatal(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fatal == nil {
		s.fatal = err
	}
}

// Crawl scrapes every business of category and returns the run summary.
// A missing page count on the category index fails the run.
func (c *Crawler) Crawl(ctx context.Context, category string) (models.CrawlRun, error) {
	state := &runState{run: models.CrawlRun{
		ID:        uuid.NewString(),
		Category:  category,
		Status:    models.RunStatusRunning,
		StartedAt: time.Now().UTC(),
	}, claimed: map[string]bool{}}
	logger := c.logger.With(zap.String("run_id", state.run.ID), zap.String("category", category))

	if c.runs != nil {
		if err := c.runs.CreateRun(ctx, state.run); err != nil {
			return state.run, err
		}
	}

	exporter, link, err := c.newExporter(ctx, state.run)
	if err != nil {
		return c.finish(ctx, logger, state, "", fmt.Errorf("failed to open exporter: %w", err))
	}

	collector, err := fetcher.NewCollector(ctx, c.cfg, c.storage)
	if err != nil {
		exporter.Close()
		return c.finish(ctx, logger, state, link, err)
	}

	spider := NewSpider(c.cfg, category, c.logger.With(zap.String("run_id", state.run.ID)))

	// Index and result pages are fetched again on every run, so they never
	// enter the visited storage; only business pages are deduplicated there.
	listings := collector.Clone()
	listings.AllowURLRevisit = true

	enqueue := func(req Request) error {
		target := collector
		if req.Kind == KindBusiness {
			if !state.claim(req.URL) {
				return nil
			}
		} else {
			target = listings
		}

		rctx := colly.NewContext()
		rctx.Put(ctxKind, string(req.Kind))
		rctx.Put(ctxURL, req.URL)
		err := target.Request("GET", req.URL, nil, rctx, nil)
		if err != nil {
			// already visited or filtered by domain
			logger.Debug("request skipped", zap.String("url", req.URL), zap.Error(err))
		}
		return err
	}

	onResponse := func(r *colly.Response) {
		kind := Kind(r.Ctx.Get(ctxKind))
		pageURL := r.Ctx.Get(ctxURL)
		c.metrics.IncPages(string(kind))
		logger.Debug("fetched page", zap.String("kind", string(kind)), zap.String("url", pageURL), zap.Int("status", r.StatusCode))

		doc, err := c.document(ctx, kind, pageURL, r.Body)
		if err != nil {
			c.metrics.IncErrors("parse")
			state.addError(err)
			logger.Warn("failed to parse page", zap.String("url", pageURL), zap.Error(err))
			if kind == KindIndex {
				state.setFatal(err)
			}
			return
		}

		switch kind {
		case KindIndex:
			requests, maxPage, err := spider.Parse(doc)
			if err != nil {
				c.metrics.IncErrors("pagination")
				state.setFatal(fmt.Errorf("category %s: %w", category, err))
				logger.Error("failed to read page count", zap.String("url", pageURL), zap.Error(err))
				return
			}
			state.mu.Lock()
			state.run.MaxPage = maxPage
			state.mu.Unlock()
			for _, req := range requests {
				_ = enqueue(req)
			}

		case KindPage:
			state.mu.Lock()
			state.run.Pages++
			state.mu.Unlock()
			requests := spider.ParsePage(doc)
			logger.Debug("found businesses", zap.String("url", pageURL), zap.Int("count", len(requests)))
			for _, req := range requests {
				_ = enqueue(req)
			}

		case KindBusiness:
			record := spider.ParseBusinessPage(pageURL, doc)
			if err := exporter.Export(ctx, record); err != nil {
				c.metrics.IncErrors("export")
				state.addError(err)
				logger.Warn("failed to export record", zap.String("url", pageURL), zap.Error(err))
				return
			}
			c.metrics.IncRecords(category)
			state.mu.Lock()
			state.run.Records++
			state.mu.Unlock()
		}
	}

	onError := func(r *colly.Response, err error) {
		kind := Kind(r.Ctx.Get(ctxKind))
		pageURL := r.Ctx.Get(ctxURL)
		c.metrics.IncErrors("fetch")
		state.addError(err)
		logger.Warn("failed to fetch page",
			zap.String("kind", string(kind)), zap.String("url", pageURL), zap.Int("status", r.StatusCode), zap.Error(err))
		if kind == KindIndex {
			state.setFatal(fmt.Errorf("failed to fetch category index %s: %w", pageURL, err))
		}
	}

	for _, col := range []*colly.Collector{listings, collector} {
		col.OnResponse(onResponse)
		col.OnError(onError)
	}

	logger.Info("starting crawl", zap.String("start_url", spider.StartURL()))
	if err := enqueue(Request{URL: spider.StartURL(), Kind: KindIndex}); err != nil {
		state.setFatal(fmt.Errorf("failed to request category index: %w", err))
	}
	// business requests are only enqueued from listing callbacks
	listings.Wait()
	collector.Wait()

	if err := exporter.Close(); err != nil {
		c.metrics.IncErrors("export")
		state.addError(err)
		logger.Warn("failed to close exporter", zap.Error(err))
	}
	if l, ok := exporter.(Linker); ok {
		if s := l.Link(); s != "" {
			link = s
		}
	}

	state.mu.Lock()
	fatal := state.fatal
	state.mu.Unlock()
	if fatal == nil && ctx.Err() != nil {
		fatal = ctx.Err()
	}
	return c.finish(ctx, logger, state, link, fatal)
}

// document parses a fetched page. Business pages go through the renderer
// when one is configured.
func (c *Crawler) document(ctx context.Context, kind Kind, pageURL string, body []byte) (*html.Node, error) {
	if kind == KindBusiness && c.renderer != nil {
		rendered, err := c.renderer.Render(ctx, pageURL)
		if err != nil {
			return nil, fmt.Errorf("failed to render %s: %w", pageURL, err)
		}
		return parser.LoadDocument(strings.NewReader(rendered))
	}
	return parser.LoadDocument(bytes.NewReader(body))
}

// finish stamps the final status, stores and reports the run
func (c *Crawler) finish(ctx context.Context, logger *zap.Logger, state *runState, link string, fatal error) (models.CrawlRun, error) {
	state.mu.Lock()
	run := state.run
	lastErr := state.lastErr
	state.mu.Unlock()

	run.FinishedAt = time.Now().UTC()
	run.Status = models.RunStatusDone
	if fatal != nil {
		run.Status = models.RunStatusFailed
		run.LastError = fatal.Error()
	} else if lastErr != nil {
		run.LastError = lastErr.Error()
	}

	c.metrics.ObserveRun(run.Category, run.Status, run.Duration())

	// the run is recorded even when ctx was cancelled
	bg := context.WithoutCancel(ctx)
	if c.runs != nil {
		if err := c.runs.FinishRun(bg, run); err != nil {
			logger.Warn("failed to store run", zap.Error(err))
		}
	}
	if c.notifier != nil {
		if err := c.notifier.NotifyRun(run, link); err != nil {
			logger.Warn("failed to send run summary", zap.Error(err))
		}
	}

	logger.Info("crawl finished",
		zap.String("status", run.Status),
		zap.Int("max_page", run.MaxPage),
		zap.Int("pages", run.Pages),
		zap.Int("records", run.Records),
		zap.Int("errors", run.Errors),
		zap.Duration("duration", run.Duration()))

	if fatal != nil {
		if errors.Is(fatal, context.Canceled) {
			return run, fatal
		}
		return run, fmt.Errorf("crawl %s failed: %w", run.ID, fatal)
	}
	return run, nil
}
