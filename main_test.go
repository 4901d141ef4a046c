package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"gouden-gids-crawler/config"
	"gouden-gids-crawler/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func testRun() models.CrawlRun {
	return models.CrawlRun{
		ID:        "0b6c1f9e-4a55-4d7e-9a51-2f3f2c7a9d10",
		Category:  "advocaten",
		StartedAt: time.Date(2024, 3, 5, 14, 30, 0, 0, time.UTC),
	}
}

func TestExpandOutputPath(t *testing.T) {
	run := testRun()
	assert.Equal(t, "out/advocaten-20240305.jsonl", expandOutputPath("out/{category}-{date}.jsonl", run))
	assert.Equal(t, "out/"+run.ID+".csv", expandOutputPath("out/{run_id}.csv", run))
	assert.Equal(t, "-", expandOutputPath("-", run))
	assert.Equal(t, "", expandOutputPath("", run))
}

func TestSheetName(t *testing.T) {
	assert.Equal(t, "advocaten 2024-03-05 14.30 0b6c1f9e", sheetName(testRun()))
}

func TestExporterFactory_File(t *testing.T) {
	cfg := config.GetDefaultConfig()
	cfg.Output.Format = config.FormatJSONL
	cfg.Output.Path = filepath.Join(t.TempDir(), "{category}.jsonl")

	factory, err := newExporterFactory(context.Background(), cfg, nil, zaptest.NewLogger(t))
	require.NoError(t, err)

	run := testRun()
	e, link, err := factory(context.Background(), run)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(filepath.Dir(cfg.Output.Path), "advocaten.jsonl"), link)

	record := models.NewBusinessRecord()
	record.Name = "Hendriks Advocatuur"
	require.NoError(t, e.Export(context.Background(), record))
	require.NoError(t, e.Close())

	b, err := os.ReadFile(link)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"name":"Hendriks Advocatuur"`)
}

func TestExporterFactory_PostgresNeedsDatabase(t *testing.T) {
	cfg := config.GetDefaultConfig()
	cfg.Output.Format = config.FormatPostgres

	_, err := newExporterFactory(context.Background(), cfg, nil, zaptest.NewLogger(t))
	assert.Error(t, err)
}

func TestCrawlFlags_Apply(t *testing.T) {
	cmd := newCrawlCmd(new(string))
	require.NoError(t, cmd.Flags().Parse([]string{"--category", "notarissen", "--max-pages", "3", "-f", "csv"}))

	cfg := config.GetDefaultConfig()
	flags := &crawlFlags{category: "notarissen", maxPages: 3, format: "csv"}
	require.NoError(t, flags.apply(cmd, cfg))

	assert.Equal(t, "notarissen", cfg.Crawler.Category)
	assert.Equal(t, 3, cfg.Crawler.MaxPages)
	assert.Equal(t, config.FormatCSV, cfg.Output.Format)
	// untouched flags keep the configured value
	assert.Equal(t, "", cfg.Output.Path)
	assert.False(t, cfg.Crawler.RenderDynamic)
}

func TestCrawlFlags_ApplyRejectsUnknownFormat(t *testing.T) {
	cmd := newCrawlCmd(new(string))
	require.NoError(t, cmd.Flags().Parse([]string{"-f", "xml"}))

	flags := &crawlFlags{format: "xml"}
	assert.Error(t, flags.apply(cmd, config.GetDefaultConfig()))
}
