// Package browser wraps headless-browser rendering behind a narrow contract.
package browser

import (
	"context"
	"errors"
	"time"
)

// ErrNavigation indicates a browser-layer failure: timeout, network error,
// or bot block. Callers skip the page and continue.
var ErrNavigation = errors.New("navigation failed")

// Renderer is the rendering capability consumed by the orchestrator.
type Renderer interface {
	// Render navigates to url, waits for dynamic content to settle, and
	// returns the final HTML.
	Render(ctx context.Context, url string) (string, error)
	// RenderListing is Render plus scroll-driven expansion: it keeps
	// scrolling until no new content loads or the configured bound is hit.
	RenderListing(ctx context.Context, url string) (string, error)
	// Close tears the browser down on every exit path.
	Close(ctx context.Context) error
}

// Config controls browser behavior.
type Config struct {
	Headless  bool
	UserAgent string
	// NavTimeout bounds a single navigation.
	NavTimeout time.Duration
	// NavDelay is the enforced pause between consecutive navigations.
	// Rate limiting lives here because only the session knows navigation
	// timing.
	NavDelay time.Duration
	// MaxScrollRounds bounds listing expansion.
	MaxScrollRounds int
	// ScrollSettle is how long to let lazy content load after each scroll.
	ScrollSettle time.Duration
}

// Defaults returns the production configuration.
func Defaults() Config {
	return Config{
		Headless:        true,
		UserAgent:       "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		NavTimeout:      30 * time.Second,
		NavDelay:        1500 * time.Millisecond,
		MaxScrollRounds: 50,
		ScrollSettle:    750 * time.Millisecond,
	}
}
