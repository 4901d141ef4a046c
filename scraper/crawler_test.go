package scraper

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"gouden-gids-crawler/config"
	"gouden-gids-crawler/export"
	"gouden-gids-crawler/fetcher"
	"gouden-gids-crawler/metrics"
	"gouden-gids-crawler/models"
	"gouden-gids-crawler/parser"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// fakeSite serves the parser fixtures under goudengids.nl-shaped paths
type fakeSite struct {
	t         *testing.T
	pageHits  int32
	indexHits int32
}

func (s *fakeSite) fixture(name string) []byte {
	b, err := os.ReadFile(filepath.Join("..", "parser", "testdata", name))
	require.NoError(s.t, err)
	return b
}

func (s *fakeSite) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	switch {
	case path == "/nl/bedrijven/missing/":
		http.NotFound(w, r)
	case path == "/nl/bedrijven/broken/":
		atomic.AddInt32(&s.indexHits, 1)
		_, _ = w.Write(s.fixture("empty_detail.html"))
	case strings.HasPrefix(path, "/nl/bedrijven/"):
		atomic.AddInt32(&s.indexHits, 1)
		_, _ = w.Write(s.fixture("category_index.html"))
	case strings.HasPrefix(path, "/nl/zoeken/"):
		atomic.AddInt32(&s.pageHits, 1)
		_, _ = w.Write(s.fixture("category_index.html"))
	case strings.Contains(path, "L119193538"):
		_, _ = w.Write(s.fixture("baker_and_mckenzie.html"))
	case strings.Contains(path, "L145578951"):
		_, _ = w.Write(s.fixture("hendriks.html"))
	case strings.HasPrefix(path, "/nl/bedrijf/"):
		_, _ = w.Write(s.fixture("empty_detail.html"))
	default:
		http.NotFound(w, r)
	}
}

type memExporter struct {
	mu      sync.Mutex
	records map[string]models.BusinessRecord
	exports int
	closed  bool
}

func (e *memExporter) Export(_ context.Context, r models.BusinessRecord) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.records[r.URL] = r
	e.exports++
	return nil
}

func (e *memExporter) Close() error {
	e.closed = true
	return nil
}

type fakeRuns struct {
	mu       sync.Mutex
	created  []models.CrawlRun
	finished []models.CrawlRun
}

func (f *fakeRuns) CreateRun(_ context.Context, run models.CrawlRun) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, run)
	return nil
}

func (f *fakeRuns) FinishRun(_ context.Context, run models.CrawlRun) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finished = append(f.finished, run)
	return nil
}

type fakeNotifier struct {
	runs  []models.CrawlRun
	links []string
}

func (n *fakeNotifier) NotifyRun(run models.CrawlRun, link string) error {
	n.runs = append(n.runs, run)
	n.links = append(n.links, link)
	return nil
}

type fakeRenderer struct {
	html  string
	calls int32
}

func (r *fakeRenderer) Render(_ context.Context, _ string) (string, error) {
	atomic.AddInt32(&r.calls, 1)
	return r.html, nil
}

func (r *fakeRenderer) Close() error { return nil }

func newTestSite(t *testing.T) (*fakeSite, config.CrawlerConfig) {
	t.Helper()
	site := &fakeSite{t: t}
	srv := httptest.NewServer(site)
	t.Cleanup(srv.Close)

	cfg := config.GetDefaultConfig().Crawler
	cfg.BaseURL = srv.URL
	cfg.StartURL = srv.URL + "/nl/bedrijven/{category}/"
	cfg.PageURL = srv.URL + "/nl/zoeken/{category}/{page}/"
	cfg.MaxPages = 2
	cfg.AllowedDomains = nil
	cfg.Delay = 0
	cfg.RandomDelay = 0
	cfg.Parallelism = 4
	cfg.RespectRobots = false
	cfg.RequestTimeout = 5 * time.Second
	return site, cfg
}

func memFactory(e *memExporter) ExporterFactory {
	return func(_ context.Context, _ models.CrawlRun) (export.Exporter, string, error) {
		return e, "mem://results", nil
	}
}

func TestCrawler_Crawl(t *testing.T) {
	site, cfg := newTestSite(t)
	exp := &memExporter{records: map[string]models.BusinessRecord{}}
	runs := &fakeRuns{}
	notifier := &fakeNotifier{}
	m := metrics.New()

	c := NewCrawler(cfg, memFactory(exp), zaptest.NewLogger(t),
		WithRunStore(runs), WithNotifier(notifier), WithMetrics(m))

	run, err := c.Crawl(context.Background(), "advocaten")
	require.NoError(t, err)

	assert.Equal(t, models.RunStatusDone, run.Status)
	assert.Equal(t, 2, run.MaxPage)
	assert.Equal(t, 2, run.Pages)
	assert.Equal(t, 3, run.Records)
	assert.Equal(t, 0, run.Errors)
	assert.Equal(t, int32(2), atomic.LoadInt32(&site.pageHits))

	// both results pages link the same three businesses; each is exported once
	assert.Equal(t, 3, exp.exports)
	assert.True(t, exp.closed)
	baker := exp.records[cfg.BaseURL+"/nl/bedrijf/Amsterdam/L119193538/Baker+%26+McKenzie+Amsterdam+NV/"]
	assert.Equal(t, "Baker & McKenzie Amsterdam NV", baker.Name)
	assert.Equal(t, "advocaten", baker.Category)
	assert.Equal(t, cfg.BaseURL+"/img/logos/L119193538.png", baker.Logo)

	require.Len(t, runs.created, 1)
	require.Len(t, runs.finished, 1)
	assert.Equal(t, run.ID, runs.created[0].ID)
	assert.Equal(t, models.RunStatusDone, runs.finished[0].Status)

	require.Len(t, notifier.runs, 1)
	assert.Equal(t, "mem://results", notifier.links[0])

	assert.Equal(t, 1.0, testutil.ToFloat64(m.PagesTotal.WithLabelValues("index")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.PagesTotal.WithLabelValues("page")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.PagesTotal.WithLabelValues("business")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.RecordsTotal.WithLabelValues("advocaten")))
}

func TestCrawler_MissingPageCountFailsCategory(t *testing.T) {
	site, cfg := newTestSite(t)
	exp := &memExporter{records: map[string]models.BusinessRecord{}}
	runs := &fakeRuns{}

	c := NewCrawler(cfg, memFactory(exp), zaptest.NewLogger(t), WithRunStore(runs))

	run, err := c.Crawl(context.Background(), "broken")
	assert.ErrorIs(t, err, parser.ErrMaxPageNotFound)
	assert.Equal(t, models.RunStatusFailed, run.Status)
	assert.Contains(t, run.LastError, "max page node not found")
	assert.Equal(t, int32(0), atomic.LoadInt32(&site.pageHits))
	assert.Zero(t, exp.exports)
	require.Len(t, runs.finished, 1)
	assert.Equal(t, models.RunStatusFailed, runs.finished[0].Status)
}

func TestCrawler_IndexNotFound(t *testing.T) {
	_, cfg := newTestSite(t)
	exp := &memExporter{records: map[string]models.BusinessRecord{}}

	run, err := NewCrawler(cfg, memFactory(exp), zaptest.NewLogger(t)).Crawl(context.Background(), "missing")
	assert.Error(t, err)
	assert.Equal(t, models.RunStatusFailed, run.Status)
	assert.Equal(t, 1, run.Errors)
}

func TestCrawler_Renderer(t *testing.T) {
	_, cfg := newTestSite(t)
	cfg.MaxPages = 1
	exp := &memExporter{records: map[string]models.BusinessRecord{}}
	b, err := os.ReadFile(filepath.Join("..", "parser", "testdata", "baker_and_mckenzie.html"))
	require.NoError(t, err)
	renderer := &fakeRenderer{html: string(b)}

	run, err := NewCrawler(cfg, memFactory(exp), zaptest.NewLogger(t), WithRenderer(renderer)).
		Crawl(context.Background(), "advocaten")
	require.NoError(t, err)

	assert.Equal(t, 3, run.Records)
	assert.Equal(t, int32(3), atomic.LoadInt32(&renderer.calls))
	for _, r := range exp.records {
		assert.Equal(t, "Baker & McKenzie Amsterdam NV", r.Name)
		assert.Equal(t, models.Sections{"KvK-nummer": {"34254455"}, "Rechtsvorm": {"Naamloze Vennootschap"}}, r.EconomicData)
	}
}

func TestCrawler_ExporterFactoryError(t *testing.T) {
	_, cfg := newTestSite(t)
	failing := func(context.Context, models.CrawlRun) (export.Exporter, string, error) {
		return nil, "", errors.New("disk full")
	}

	run, err := NewCrawler(cfg, failing, zaptest.NewLogger(t)).Crawl(context.Background(), "advocaten")
	assert.ErrorContains(t, err, "disk full")
	assert.Equal(t, models.RunStatusFailed, run.Status)
}

func TestCrawler_Cancelled(t *testing.T) {
	_, cfg := newTestSite(t)
	exp := &memExporter{records: map[string]models.BusinessRecord{}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	run, err := NewCrawler(cfg, memFactory(exp), zaptest.NewLogger(t)).Crawl(ctx, "advocaten")
	assert.Error(t, err)
	assert.Equal(t, models.RunStatusFailed, run.Status)
	assert.Zero(t, exp.exports)
}

type linkedExporter struct {
	*memExporter
}

func (linkedExporter) Link() string { return "mem://sheet/7" }

func TestCrawler_ExporterLinkWinsAfterClose(t *testing.T) {
	_, cfg := newTestSite(t)
	exp := linkedExporter{&memExporter{records: map[string]models.BusinessRecord{}}}
	notifier := &fakeNotifier{}
	factory := func(_ context.Context, _ models.CrawlRun) (export.Exporter, string, error) {
		return exp, "mem://results", nil
	}

	c := NewCrawler(cfg, factory, zaptest.NewLogger(t), WithNotifier(notifier))
	_, err := c.Crawl(context.Background(), "advocaten")
	require.NoError(t, err)

	require.Len(t, notifier.links, 1)
	assert.Equal(t, "mem://sheet/7", notifier.links[0])
}

func TestCrawler_RedisStorageAcrossRuns(t *testing.T) {
	site, cfg := newTestSite(t)
	mr := miniredis.RunT(t)
	store := fetcher.DialRedisStorage(mr.Addr(), "ggcrawl", 12*time.Hour)
	t.Cleanup(func() { _ = store.Close() })

	crawl := func() (models.CrawlRun, *memExporter) {
		t.Helper()
		exp := &memExporter{records: map[string]models.BusinessRecord{}}
		c := NewCrawler(cfg, memFactory(exp), zaptest.NewLogger(t), WithStorage(store))
		run, err := c.Crawl(context.Background(), "advocaten")
		require.NoError(t, err)
		return run, exp
	}

	// both results pages link the same three businesses; each is exported once
	first, exp := crawl()
	assert.Equal(t, models.RunStatusDone, first.Status)
	assert.Equal(t, 3, first.Records)
	assert.Equal(t, 3, exp.exports)

	// index and result pages are fetched again, known businesses are skipped
	second, exp := crawl()
	assert.Equal(t, models.RunStatusDone, second.Status)
	assert.Equal(t, 2, second.MaxPage)
	assert.Equal(t, 2, second.Pages)
	assert.Equal(t, 0, second.Records)
	assert.Equal(t, 0, exp.exports)
	assert.Equal(t, int32(4), atomic.LoadInt32(&site.pageHits))

	// once the markers expire every business is exported again
	mr.FastForward(13 * time.Hour)
	third, exp := crawl()
	assert.Equal(t, 3, third.Records)
	assert.Equal(t, 3, exp.exports)
}
