package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gouden-gids-crawler/config"
	"gouden-gids-crawler/db"
	"gouden-gids-crawler/export"
	"gouden-gids-crawler/fetcher"
	"gouden-gids-crawler/metrics"
	"gouden-gids-crawler/models"
	"gouden-gids-crawler/notify"
	"gouden-gids-crawler/scraper"
	"gouden-gids-crawler/sheets"

	"go.uber.org/zap"
)

// app owns the collaborators built from the configuration
type app struct {
	crawler  *scraper.Crawler
	logger   *zap.Logger
	store    *fetcher.RedisStorage
	database *db.DB
	closers  []func() error
}

// newApp wires every optional backend the configuration enables
func newApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*app, error) {
	a := &app{logger: logger}

	m := metrics.New()
	opts := []scraper.Option{scraper.WithMetrics(m)}

	if cfg.Metrics.Addr != "" {
		go func() {
			if err := m.Serve(ctx, cfg.Metrics.Addr, logger); err != nil {
				logger.Error("metrics server stopped", zap.Error(err))
			}
		}()
	}

	if cfg.Redis.Addr != "" {
		store := fetcher.DialRedisStorage(cfg.Redis.Addr, cfg.Redis.Prefix, cfg.Redis.VisitedTTL)
		opts = append(opts, scraper.WithStorage(store))
		a.store = store
		a.closers = append(a.closers, store.Close)
		logger.Info("sharing visited urls through redis", zap.String("addr", cfg.Redis.Addr))
	}

	if cfg.Crawler.RenderDynamic {
		renderer, err := fetcher.NewRodRenderer(logger, cfg.Crawler.RequestTimeout)
		if err != nil {
			a.Close()
			return nil, err
		}
		opts = append(opts, scraper.WithRenderer(renderer))
		a.closers = append(a.closers, renderer.Close)
	}

	var database *db.DB
	if cfg.Database.URL != "" {
		var err error
		database, err = db.NewDB(ctx, cfg.Database.URL, logger)
		if err != nil {
			a.Close()
			return nil, err
		}
		opts = append(opts, scraper.WithRunStore(database))
		a.database = database
		a.closers = append(a.closers, database.Close)
	}

	if cfg.Telegram.Token != "" && cfg.Telegram.ChatID != 0 {
		notifier, err := notify.NewTelegramNotifier(cfg.Telegram.Token, cfg.Telegram.ChatID, logger)
		if err != nil {
			a.Close()
			return nil, err
		}
		opts = append(opts, scraper.WithNotifier(notifier))
	}

	factory, err := newExporterFactory(ctx, cfg, database, logger)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.crawler = scraper.NewCrawler(cfg.Crawler, factory, logger, opts...)
	return a, nil
}

// forgetVisited drops the shared visited markers so the next crawl fetches
// every business page again. Without redis there is nothing to forget.
func (a *app) forgetVisited(ctx context.Context) error {
	if a.store == nil {
		return nil
	}
	if err := a.store.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear visited urls: %w", err)
	}
	a.logger.Info("cleared visited urls")
	return nil
}

// logStoredRun reports what Postgres holds after a run
func (a *app) logStoredRun(ctx context.Context, run models.CrawlRun) {
	if a.database == nil {
		return
	}
	stored, err := a.database.GetRun(ctx, run.ID)
	if err != nil {
		a.logger.Warn("failed to load stored run", zap.Error(err))
		return
	}
	if stored == nil {
		a.logger.Warn("run not found in database", zap.String("run_id", run.ID))
		return
	}
	total, err := a.database.CountBusinesses(ctx, run.Category)
	if err != nil {
		a.logger.Warn("failed to count businesses", zap.Error(err))
		return
	}
	a.logger.Info("stored run",
		zap.String("run_id", stored.ID),
		zap.String("status", stored.Status),
		zap.Int("records", stored.Records),
		zap.Int("businesses_in_category", total))
}

// Close releases the backends in reverse order
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("failed to close backend", zap.Error(err))
		}
	}
	a.closers = nil
}

// newExporterFactory opens the configured destination once per run
func newExporterFactory(ctx context.Context, cfg *config.Config, database *db.DB, logger *zap.Logger) (scraper.ExporterFactory, error) {
	switch cfg.Output.Format {
	case config.FormatPostgres:
		if database == nil {
			return nil, fmt.Errorf("output format postgres requires database.url")
		}
		return func(_ context.Context, run models.CrawlRun) (export.Exporter, string, error) {
			return export.NewPostgresExporter(database, run.ID), "", nil
		}, nil

	case config.FormatSheets:
		writer, err := sheets.NewWriter(ctx, sheets.ExtractSpreadsheetID(cfg.Sheets.SpreadsheetID), cfg.Sheets.Credentials, logger)
		if err != nil {
			return nil, err
		}
		return func(_ context.Context, run models.CrawlRun) (export.Exporter, string, error) {
			e := export.NewSheetsExporter(writer, sheetName(run), 0)
			return &linkedSheet{SheetsExporter: e, writer: writer}, "", nil
		}, nil

	default:
		format, path := cfg.Output.Format, cfg.Output.Path
		return func(_ context.Context, run models.CrawlRun) (export.Exporter, string, error) {
			target := expandOutputPath(path, run)
			e, err := export.OpenFile(format, target)
			if err != nil {
				return nil, "", err
			}
			return e, target, nil
		}, nil
	}
}

// linkedSheet resolves the sheet link once the sheet exists
type linkedSheet struct {
	*export.SheetsExporter
	writer *sheets.Writer
}

func (l *linkedSheet) Link() string {
	id := l.SheetID()
	if id == 0 {
		return ""
	}
	return l.writer.SheetURL(id)
}

// sheetName names a run's sheet after its category, start time and run id
func sheetName(run models.CrawlRun) string {
	short := run.ID
	if len(short) > 8 {
		short = short[:8]
	}
	return fmt.Sprintf("%s %s %s", run.Category, run.StartedAt.Format("2006-01-02 15.04"), short)
}

// expandOutputPath fills {category}, {run_id} and {date} so scheduled runs
// do not overwrite each other
func expandOutputPath(path string, run models.CrawlRun) string {
	if path == "" || path == "-" {
		return path
	}
	started := run.StartedAt
	if started.IsZero() {
		started = time.Now().UTC()
	}
	return strings.NewReplacer(
		"{category}", run.Category,
		"{run_id}", run.ID,
		"{date}", started.Format("20060102"),
	).Replace(path)
}
