package fetcher

import "context"

// Renderer returns the HTML of a page after its client side scripts ran
type Renderer interface {
	// Render loads url and returns the rendered document
	Render(ctx context.Context, url string) (string, error)
	Close() error
}
