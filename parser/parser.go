package parser

import (
	"errors"
	"fmt"
	"strconv"

	"golang.org/x/net/html"
)

// ErrMaxPageNotFound is returned when the page-count node of a category
// index page is missing or not a number
var ErrMaxPageNotFound = errors.New("max page node not found")

// ListingParser extracts pagination and result links from search pages
type ListingParser struct{}

// NewListingParser creates a new ListingParser instance
func NewListingParser() *ListingParser {
	return &ListingParser{}
}

// ParseMaxPage reads the total number of result pages of a category
func (p *ListingParser) ParseMaxPage(doc *html.Node) (int, error) {
	raw := textOf(doc, MaxPageXPath)
	if raw == "" {
		return 0, ErrMaxPageNotFound
	}
	maxPage, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a number", ErrMaxPageNotFound, raw)
	}
	return maxPage, nil
}

// ParseListingURLs returns the detail-page links of a results page in
// document order, exactly as they appear in the markup
func (p *ListingParser) ParseListingURLs(doc *html.Node) []string {
	return textsOf(doc, ListingXPath)
}
