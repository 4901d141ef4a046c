package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"gouden-gids-crawler/config"
	"gouden-gids-crawler/logger"
	"gouden-gids-crawler/scheduler"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "ggcrawl",
		Short: "Crawl law firm listings from goudengids.nl",
		Long: `ggcrawl walks the result pages of a Gouden Gids category, visits every
business page and exports the extracted records as JSON lines, JSON, CSV,
YAML, Postgres rows or a Google sheet.`,
		Version:      version,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file (default ./config.yaml)")

	root.AddCommand(newCrawlCmd(&configPath), newScheduleCmd(&configPath))
	return root
}

// crawlFlags override the loaded configuration when set
type crawlFlags struct {
	category string
	maxPages int
	output   string
	format   string
	render   bool
	fresh    bool
}

func (f *crawlFlags) apply(cmd *cobra.Command, cfg *config.Config) error {
	if cmd.Flags().Changed("category") {
		cfg.Crawler.Category = f.category
	}
	if cmd.Flags().Changed("max-pages") {
		cfg.Crawler.MaxPages = f.maxPages
	}
	if cmd.Flags().Changed("output") {
		cfg.Output.Path = f.output
	}
	if cmd.Flags().Changed("format") {
		cfg.Output.Format = f.format
	}
	if cmd.Flags().Changed("render") {
		cfg.Crawler.RenderDynamic = f.render
	}
	return cfg.Validate()
}

func newCrawlCmd(configPath *string) *cobra.Command {
	flags := &crawlFlags{}

	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Crawl one category and export its businesses",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := setup(*configPath)
			if err != nil {
				return err
			}
			defer log.Sync()

			if err := flags.apply(cmd, cfg); err != nil {
				return fmt.Errorf("invalid flags: %w", err)
			}

			a, err := newApp(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer a.Close()

			if flags.fresh {
				if err := a.forgetVisited(cmd.Context()); err != nil {
					return err
				}
			}

			run, err := a.crawler.Crawl(cmd.Context(), cfg.Crawler.Category)
			if err != nil {
				return err
			}
			a.logStoredRun(cmd.Context(), run)
			log.Info("done", zap.String("run_id", run.ID), zap.Int("records", run.Records), zap.Int("errors", run.Errors))
			return nil
		},
	}

	cmd.Flags().StringVar(&flags.category, "category", "", "category slug, e.g. advocaten")
	cmd.Flags().IntVar(&flags.maxPages, "max-pages", 0, "maximum number of result pages, 0 for all")
	cmd.Flags().StringVarP(&flags.output, "output", "o", "", "output file, - for stdout")
	cmd.Flags().StringVarP(&flags.format, "format", "f", "", fmt.Sprintf("output format %v", config.Formats))
	cmd.Flags().BoolVar(&flags.render, "render", false, "render business pages in a headless browser")
	cmd.Flags().BoolVar(&flags.fresh, "fresh", false, "forget business pages visited by earlier runs (redis only)")
	return cmd
}

func newScheduleCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "schedule",
		Short: "Recrawl the configured categories on an interval",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := setup(*configPath)
			if err != nil {
				return err
			}
			defer log.Sync()

			if cfg.Schedule.Interval <= 0 {
				return fmt.Errorf("schedule.interval must be positive, got %s", cfg.Schedule.Interval)
			}

			a, err := newApp(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer a.Close()

			s := scheduler.NewScheduler(cmd.Context(), a.crawler, cfg.CategoriesToCrawl(), cfg.Schedule.Interval, log)
			s.Start()
			s.Wait()
			return nil
		},
	}
}

func setup(configPath string) (*config.Config, *zap.Logger, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, nil, err
	}
	log, err := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}
