package scheduler

import (
	"context"
	"time"

	"gouden-gids-crawler/models"

	"go.uber.org/zap"
)

// Crawler crawls one category; *scraper.Crawler satisfies it
type Crawler interface {
	Crawl(ctx context.Context, category string) (models.CrawlRun, error)
}

// Scheduler recrawls a fixed list of categories every interval
type Scheduler struct {
	crawler    Crawler
	categories []string
	interval   time.Duration
	logger     *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewScheduler creates a scheduler bound to parent
func NewScheduler(parent context.Context, crawler Crawler, categories []string, interval time.Duration, logger *zap.Logger) *Scheduler {
	ctx, cancel := context.WithCancel(parent)

	return &Scheduler{
		crawler:    crawler,
		categories: categories,
		interval:   interval,
		logger:     logger,
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
}

// Start starts the scheduler in a goroutine
func (s *Scheduler) Start() {
	go s.run()
}

// Stop stops the scheduler and waits for the running crawl to wind down
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.done
}

// Wait blocks until the scheduler has stopped
func (s *Scheduler) Wait() {
	<-s.done
}

// run is the main scheduler loop. The first round starts immediately.
func (s *Scheduler) run() {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("scheduler started", zap.Strings("categories", s.categories), zap.Duration("interval", s.interval))
	s.crawlAll()

	for {
		select {
		case <-s.ctx.Done():
			s.logger.Info("scheduler stopped")
			return
		case <-ticker.C:
			s.crawlAll()
		}
	}
}

// crawlAll crawls the categories one after another. A failed category is
// logged and the next one still runs.
func (s *Scheduler) crawlAll() {
	for _, category := range s.categories {
		if s.ctx.Err() != nil {
			return
		}

		run, err := s.crawler.Crawl(s.ctx, category)
		if err != nil {
			s.logger.Error("scheduled crawl failed",
				zap.String("category", category), zap.String("run_id", run.ID), zap.Error(err))
			continue
		}
		s.logger.Info("scheduled crawl done",
			zap.String("category", category), zap.String("run_id", run.ID), zap.Int("records", run.Records))
	}
}
