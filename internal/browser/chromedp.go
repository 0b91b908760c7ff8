package browser

import (
	"context"
	"fmt"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ChromedpSession renders pages with headless Chrome via chromedp. A single
// browser process serves the whole run; each navigation gets its own tab
// context. Navigations are sequential and paced by an internal limiter.
type ChromedpSession struct {
	allocatorCancel context.CancelFunc
	browserCtx      context.Context
	browserCancel   context.CancelFunc
	limiter         *rate.Limiter
	cfg             Config
	logger          *zap.Logger
}

// NewChromedpSession launches the browser. A launch failure is fatal to the
// run; there is no degraded mode without a renderer.
func NewChromedpSession(cfg Config, logger *zap.Logger) (*ChromedpSession, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.NavTimeout <= 0 {
		cfg.NavTimeout = Defaults().NavTimeout
	}
	if cfg.MaxScrollRounds <= 0 {
		cfg.MaxScrollRounds = Defaults().MaxScrollRounds
	}
	if cfg.ScrollSettle <= 0 {
		cfg.ScrollSettle = Defaults().ScrollSettle
	}

	opts := chromedp.DefaultExecAllocatorOptions[:]
	opts = append(opts,
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.UserAgent(cfg.UserAgent),
	)
	allocatorCtx, allocatorCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocatorCtx)
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocatorCancel()
		return nil, fmt.Errorf("chromedp warmup: %w", err)
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.NavDelay > 0 {
		limiter = rate.NewLimiter(rate.Every(cfg.NavDelay), 1)
	}

	logger.Info("browser started", zap.Bool("headless", cfg.Headless))
	return &ChromedpSession{
		allocatorCancel: allocatorCancel,
		browserCtx:      browserCtx,
		browserCancel:   browserCancel,
		limiter:         limiter,
		cfg:             cfg,
		logger:          logger,
	}, nil
}

// Close tears down the browser and allocator contexts.
func (s *ChromedpSession) Close(_ context.Context) error {
	if s == nil {
		return nil
	}
	s.browserCancel()
	s.allocatorCancel()
	s.logger.Info("browser closed")
	return nil
}

// Render navigates to url and returns the settled DOM as HTML.
func (s *ChromedpSession) Render(ctx context.Context, url string) (string, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("%w: navigation delay: %v", ErrNavigation, err)
	}

	taskCtx, cancel := s.newTab(ctx)
	defer cancel()

	var html string
	tasks := chromedp.Tasks{
		network.Enable(),
		emulation.SetUserAgentOverride(s.cfg.UserAgent),
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		// Galleries hydrate after the body is ready; give scripts a beat
		// before snapshotting.
		chromedp.Sleep(s.cfg.ScrollSettle),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	}
	if err := chromedp.Run(taskCtx, tasks); err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrNavigation, url, err)
	}
	return html, nil
}

// RenderListing navigates to a listing url and scrolls until the page stops
// growing or MaxScrollRounds is reached, then returns the expanded HTML.
func (s *ChromedpSession) RenderListing(ctx context.Context, url string) (string, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("%w: navigation delay: %v", ErrNavigation, err)
	}

	taskCtx, cancel := s.newTab(ctx)
	defer cancel()

	tasks := chromedp.Tasks{
		network.Enable(),
		emulation.SetUserAgentOverride(s.cfg.UserAgent),
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	}
	if err := chromedp.Run(taskCtx, tasks); err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrNavigation, url, err)
	}

	prevHeight := int64(-1)
	for round := 0; round < s.cfg.MaxScrollRounds; round++ {
		var height int64
		scroll := chromedp.Tasks{
			chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight)`, nil),
			chromedp.Sleep(s.cfg.ScrollSettle),
			chromedp.Evaluate(`document.body.scrollHeight`, &height),
		}
		if err := chromedp.Run(taskCtx, scroll); err != nil {
			return "", fmt.Errorf("%w: scroll %s: %v", ErrNavigation, url, err)
		}
		if height == prevHeight {
			break
		}
		prevHeight = height
	}

	var html string
	if err := chromedp.Run(taskCtx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("%w: snapshot %s: %v", ErrNavigation, url, err)
	}
	s.logger.Debug("listing fully expanded", zap.String("url", url), zap.Int64("height", prevHeight))
	return html, nil
}

// newTab opens a fresh tab bounded by the navigation timeout and linked to
// the caller's context for cancellation.
func (s *ChromedpSession) newTab(ctx context.Context) (context.Context, context.CancelFunc) {
	tabCtx, cancelTab := chromedp.NewContext(s.browserCtx)
	taskCtx, cancelTask := context.WithTimeout(tabCtx, s.cfg.NavTimeout)

	stop := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			cancelTask()
		case <-stop:
		}
	}()

	return taskCtx, func() {
		close(stop)
		cancelTask()
		cancelTab()
	}
}
