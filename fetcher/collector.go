package fetcher

import (
	"context"
	"fmt"

	"gouden-gids-crawler/config"

	"github.com/gocolly/colly/v2"
	"github.com/gocolly/colly/v2/storage"
)

// NewCollector builds an async colly collector from the crawler settings.
// Cancelling ctx stops requests that have not been sent yet. store may be
// nil, in which case colly keeps visited URLs in memory.
func NewCollector(ctx context.Context, cfg config.CrawlerConfig, store storage.Storage) (*colly.Collector, error) {
	opts := []colly.CollectorOption{
		colly.UserAgent(cfg.UserAgent),
		colly.Async(true),
		colly.StdlibContext(ctx),
	}
	if len(cfg.AllowedDomains) > 0 {
		opts = append(opts, colly.AllowedDomains(cfg.AllowedDomains...))
	}
	if !cfg.RespectRobots {
		opts = append(opts, colly.IgnoreRobotsTxt())
	}

	c := colly.NewCollector(opts...)

	parallelism := cfg.Parallelism
	if parallelism < 1 {
		parallelism = 1
	}
	if err := c.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: parallelism,
		Delay:       cfg.Delay,
		RandomDelay: cfg.RandomDelay,
	}); err != nil {
		return nil, fmt.Errorf("failed to set limit rule: %w", err)
	}

	if cfg.RequestTimeout > 0 {
		c.SetRequestTimeout(cfg.RequestTimeout)
	}

	if store != nil {
		if err := c.SetStorage(store); err != nil {
			return nil, fmt.Errorf("failed to set collector storage: %w", err)
		}
	}

	return c, nil
}
