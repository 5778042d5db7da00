package fetch

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

// RendererConfig controls the behavior of the headless renderer.
type RendererConfig struct {
	MaxParallel       int
	UserAgent         string
	NavigationTimeout time.Duration
}

// Renderer implements Fetcher using chromedp and headless Chrome. One
// browser is started lazily on the first Fetch and kept until Close; each
// Fetch opens a tab in that browser so cookies persist across requests,
// which the judiciary search interface requires.
type Renderer struct {
	cfg           RendererConfig
	limiter       chan struct{}
	allocator     context.Context
	allocCancel   context.CancelFunc
	browser       context.Context
	browserCancel context.CancelFunc
	startOnce     sync.Once
	startErr      error
}

// NewRenderer creates a headless fetcher backed by chromedp.
func NewRenderer(cfg RendererConfig) (*Renderer, error) {
	if cfg.MaxParallel < 0 {
		return nil, fmt.Errorf("max parallel must be >= 0")
	}
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = 60 * time.Second
	}
	var limiter chan struct{}
	if cfg.MaxParallel > 0 {
		limiter = make(chan struct{}, cfg.MaxParallel)
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	return &Renderer{
		cfg:           cfg,
		limiter:       limiter,
		allocator:     allocCtx,
		allocCancel:   allocCancel,
		browser:       browserCtx,
		browserCancel: browserCancel,
	}, nil
}

// Close shuts down the browser and its allocator.
func (r *Renderer) Close() {
	r.browserCancel()
	r.allocCancel()
}

// start launches the shared browser. Tab contexts derived before the parent
// context has run would each own a browser of their own, losing the cookie
// jar between fetches.
func (r *Renderer) start() error {
	r.startOnce.Do(func() {
		r.startErr = chromedp.Run(r.browser)
	})
	return r.startErr
}

// Fetch navigates with a headless browser and returns the rendered DOM.
func (r *Renderer) Fetch(ctx context.Context, request Request) (Response, error) {
	if err := r.acquire(ctx); err != nil {
		return Response{}, err
	}
	defer r.release()

	if err := r.start(); err != nil {
		return Response{}, fmt.Errorf("start browser: %w", err)
	}

	taskCtx, taskCancel := chromedp.NewContext(r.browser)
	defer taskCancel()

	taskCtx, cancel := context.WithTimeout(taskCtx, r.cfg.NavigationTimeout)
	defer cancel()

	// Close the tab when the caller's context is canceled; chromedp
	// contexts descend from the shared browser, not from ctx.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			taskCancel()
		case <-done:
		}
	}()

	meta := newResponseMeta()
	chromedp.ListenTarget(taskCtx, meta.captureEvent)

	start := time.Now()
	html, err := r.runHeadless(taskCtx, request)
	if err != nil {
		if ctx.Err() != nil {
			return Response{}, fmt.Errorf("render canceled: %w", ctx.Err())
		}
		return Response{}, err
	}

	status, finalURL := meta.snapshot()
	if finalURL == "" {
		finalURL = request.URL
	}
	if status == 0 {
		status = http.StatusOK
	}

	return Response{
		URL:        finalURL,
		StatusCode: status,
		Body:       []byte(html),
		Duration:   time.Since(start),
	}, nil
}

func (r *Renderer) runHeadless(ctx context.Context, request Request) (string, error) {
	var html string
	actions := []chromedp.Action{
		r.networkSetupAction(),
		chromedp.Navigate(request.URL),
		chromedp.WaitReady("body", chromedp.ByQuery),
	}
	if request.WaitSelector != "" {
		actions = append(actions, chromedp.WaitVisible(request.WaitSelector, chromedp.ByQuery))
	} else {
		actions = append(actions, chromedp.Sleep(500*time.Millisecond))
	}
	actions = append(actions, chromedp.OuterHTML("html", &html, chromedp.ByQuery))

	if err := chromedp.Run(ctx, actions...); err != nil {
		return "", fmt.Errorf("chromedp run: %w", err)
	}
	return html, nil
}

func (r *Renderer) networkSetupAction() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable network domain: %w", err)
		}
		if r.cfg.UserAgent != "" {
			if err := emulation.SetUserAgentOverride(r.cfg.UserAgent).Do(ctx); err != nil {
				return fmt.Errorf("set user-agent: %w", err)
			}
		}
		return nil
	})
}

func (r *Renderer) acquire(ctx context.Context) error {
	if r.limiter == nil {
		return nil
	}
	select {
	case r.limiter <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("renderer slot wait canceled: %w", ctx.Err())
	}
}

func (r *Renderer) release() {
	if r.limiter == nil {
		return
	}
	select {
	case <-r.limiter:
	default:
	}
}

// responseMeta captures the document response status from CDP network events.
type responseMeta struct {
	mu     sync.RWMutex
	status int
	url    string
}

func newResponseMeta() *responseMeta {
	return &responseMeta{}
}

func (m *responseMeta) captureEvent(ev any) {
	resp, ok := ev.(*network.EventResponseReceived)
	if !ok || resp.Type != network.ResourceTypeDocument || resp.Response == nil {
		return
	}
	m.mu.Lock()
	m.status = int(resp.Response.Status)
	m.url = resp.Response.URL
	m.mu.Unlock()
}

func (m *responseMeta) snapshot() (int, string) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status, m.url
}
