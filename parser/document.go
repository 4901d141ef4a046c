package parser

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"unicode"

	"github.com/antchfx/htmlquery"
	"github.com/antchfx/xpath"
	"golang.org/x/net/html"
)

// LoadDocument parses an HTML page into a tree the extractors can query
func LoadDocument(r io.Reader) (*html.Node, error) {
	doc, err := htmlquery.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return doc, nil
}

var compiled sync.Map

// compile returns a cached compiled XPath expression
func compile(expr string) (*xpath.Expr, error) {
	if e, ok := compiled.Load(expr); ok {
		return e.(*xpath.Expr), nil
	}
	e, err := xpath.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid xpath %q: %w", expr, err)
	}
	compiled.Store(expr, e)
	return e, nil
}

// evaluate runs expr with top as the context (and root) node
func evaluate(top *html.Node, expr string) (interface{}, error) {
	e, err := compile(expr)
	if err != nil {
		return nil, err
	}
	return e.Evaluate(htmlquery.CreateXPathNavigator(top)), nil
}

// stringValue converts an XPath result to its string value; node sets
// yield the value of their first node
func stringValue(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case *xpath.NodeIterator:
		if t.MoveNext() {
			return t.Current().Value()
		}
	}
	return ""
}

// textOf returns the whitespace-normalized string value of expr under top,
// or "" when nothing matches
func textOf(top *html.Node, expr string) string {
	v, err := evaluate(top, expr)
	if err != nil {
		return ""
	}
	return normalizeWhitespace(stringValue(v))
}

// textsOf returns the normalized text of every node expr selects under top.
// Entries that normalize to "" are dropped.
func textsOf(top *html.Node, expr string) []string {
	texts := []string{}
	e, err := compile(expr)
	if err != nil {
		return texts
	}
	for _, n := range htmlquery.QuerySelectorAll(top, e) {
		if text := normalizeWhitespace(htmlquery.InnerText(n)); text != "" {
			texts = append(texts, text)
		}
	}
	return texts
}

// nodesOf returns the nodes expr selects under top
func nodesOf(top *html.Node, expr string) []*html.Node {
	e, err := compile(expr)
	if err != nil {
		return nil
	}
	return htmlquery.QuerySelectorAll(top, e)
}

// normalizeWhitespace replaces unicode whitespace (including non-breaking
// spaces) with single spaces and trims the ends
func normalizeWhitespace(text string) string {
	normalized := strings.Builder{}
	for _, r := range text {
		if unicode.IsSpace(r) {
			normalized.WriteRune(' ')
		} else {
			normalized.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(normalized.String()), " ")
}
