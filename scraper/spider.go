package scraper

import (
	"net/url"
	"strconv"
	"strings"

	"gouden-gids-crawler/config"
	"gouden-gids-crawler/models"
	"gouden-gids-crawler/parser"

	"go.uber.org/zap"
	"golang.org/x/net/html"
)

// Kind tells the crawler which extractor a fetched page goes to
type Kind string

const (
	KindIndex    Kind = "index"
	KindPage     Kind = "page"
	KindBusiness Kind = "business"
)

// Request is a page the spider wants fetched next
type Request struct {
	URL  string
	Kind Kind
}

// Spider holds the per-category crawl logic: paginate the category index,
// collect detail links from every results page, extract each business
type Spider struct {
	cfg      config.CrawlerConfig
	category string
	listing  *parser.ListingParser
	detail   *parser.DetailParser
	logger   *zap.Logger
}

// NewSpider creates a spider for one category
func NewSpider(cfg config.CrawlerConfig, category string, logger *zap.Logger) *Spider {
	return &Spider{
		cfg:      cfg,
		category: category,
		listing:  parser.NewListingParser(),
		detail:   parser.NewDetailParser(cfg.BaseURL),
		logger:   logger.With(zap.String("category", category)),
	}
}

// StartURL is the category index page the crawl begins with
func (s *Spider) StartURL() string {
	return strings.ReplaceAll(s.cfg.StartURL, "{category}", url.PathEscape(s.category))
}

// PageURL is the results page number page of the category
func (s *Spider) PageURL(page int) string {
	u := strings.ReplaceAll(s.cfg.PageURL, "{category}", url.PathEscape(s.category))
	return strings.ReplaceAll(u, "{page}", strconv.Itoa(page))
}

// Parse reads the page count of the category index and returns one request
// per results page, 1 through the count (capped by MaxPages when set).
// It also returns the resolved page count.
func (s *Spider) Parse(doc *html.Node) ([]Request, int, error) {
	maxPage, err := s.listing.ParseMaxPage(doc)
	if err != nil {
		return nil, 0, err
	}
	if s.cfg.MaxPages > 0 && s.cfg.MaxPages < maxPage {
		maxPage = s.cfg.MaxPages
	}

	requests := make([]Request, 0, maxPage)
	for page := 1; page <= maxPage; page++ {
		requests = append(requests, Request{URL: s.PageURL(page), Kind: KindPage})
	}
	s.logger.Info("paginating category", zap.Int("max_page", maxPage))
	return requests, maxPage, nil
}

// ParsePage returns one request per business linked from a results page.
// Links are not deduplicated here.
func (s *Spider) ParsePage(doc *html.Node) []Request {
	links := s.listing.ParseListingURLs(doc)
	requests := make([]Request, 0, len(links))
	for _, link := range links {
		requests = append(requests, Request{URL: s.absolute(link), Kind: KindBusiness})
	}
	return requests
}

// ParseBusinessPage extracts the record of a business detail page
func (s *Spider) ParseBusinessPage(pageURL string, doc *html.Node) models.BusinessRecord {
	record := s.detail.ParseBusinessPage(doc)
	record.URL = pageURL
	record.Category = s.category
	return record
}

// absolute prefixes site-relative links with the base URL
func (s *Spider) absolute(link string) string {
	if strings.HasPrefix(link, "http://") || strings.HasPrefix(link, "https://") {
		return link
	}
	return s.cfg.BaseURL + link
}
