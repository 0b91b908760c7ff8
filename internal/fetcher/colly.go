package fetcher

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"
)

// Getter is the byte-fetch capability consumed by the downloader.
type Getter interface {
	Get(ctx context.Context, url string) ([]byte, error)
}

// CollyConfig controls the underlying collector.
type CollyConfig struct {
	UserAgent string
	Timeout   time.Duration
	// Transport overrides the HTTP transport, mainly for tests.
	Transport http.RoundTripper
}

// CollyGetter fetches raw bytes using a Colly collector. The base collector
// is cloned per request so hooks never leak between concurrent fetches.
type CollyGetter struct {
	cfg  CollyConfig
	base *colly.Collector
}

// NewCollyGetter builds a Getter backed by Colly.
func NewCollyGetter(cfg CollyConfig) *CollyGetter {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	c := colly.NewCollector(colly.Async(false))
	c.IgnoreRobotsTxt = true
	if cfg.Transport != nil {
		c.WithTransport(cfg.Transport)
	}
	return &CollyGetter{cfg: cfg, base: c}
}

// Get executes a single GET and returns the response body. Non-2xx
// responses surface as *StatusError so the retry policy can classify them.
func (g *CollyGetter) Get(ctx context.Context, url string) ([]byte, error) {
	collector := g.base.Clone()
	if g.cfg.UserAgent != "" {
		collector.UserAgent = g.cfg.UserAgent
	}
	collector.SetRequestTimeout(g.cfg.Timeout)

	var (
		body     []byte
		fetchErr error
	)
	collector.OnResponse(func(r *colly.Response) {
		body = append([]byte(nil), r.Body...)
	})
	collector.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode > 0 {
			fetchErr = &StatusError{Code: r.StatusCode, URL: url}
			return
		}
		fetchErr = err
	})

	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("fetch %s: %w", url, ctx.Err())
	case visitErr := <-done:
		if fetchErr != nil {
			return nil, fmt.Errorf("fetch %s: %w", url, fetchErr)
		}
		if visitErr != nil {
			return nil, fmt.Errorf("fetch %s: %w", url, visitErr)
		}
	}
	return body, nil
}
