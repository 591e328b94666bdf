package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/nuan-odoo/wrapperAI/internal/domain"
)

// ChromedpLauncher starts Chrome through the DevTools protocol.
type ChromedpLauncher struct {
	opts Options
}

func (l *ChromedpLauncher) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.NoSandbox,
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("headless", l.opts.Headless),
		chromedp.WindowSize(1366, 768),
	)
	if l.opts.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(l.opts.ExecPath))
	}
	if l.opts.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(l.opts.UserAgent))
	}
	return opts
}

// Launch starts a fresh Chrome process and opens one tab. The browser outlives
// ctx; ctx only bounds the startup handshake.
func (l *ChromedpLauncher) Launch(ctx context.Context) (Page, error) {
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), l.allocatorOptions()...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(format string, args ...any) {
			slog.Debug("chromedp: " + fmt.Sprintf(format, args...))
		}),
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- chromedp.Run(browserCtx)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			browserCancel()
			allocCancel()
			return nil, fmt.Errorf("start chrome: %w", err)
		}
	case <-ctx.Done():
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("start chrome: %w", ctx.Err())
	}

	return &chromedpPage{
		ctx:           browserCtx,
		cancel:        browserCancel,
		allocCancel:   allocCancel,
		actionTimeout: l.opts.actionTimeout(),
	}, nil
}

type chromedpPage struct {
	ctx           context.Context
	cancel        context.CancelFunc
	allocCancel   context.CancelFunc
	actionTimeout time.Duration

	closeOnce sync.Once
	closeErr  error
}

// run executes actions on the tab, bounded by both the tab lifetime and ctx.
func (p *chromedpPage) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(p.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(runCtx, actions...); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	return nil
}

func (p *chromedpPage) SetCookies(ctx context.Context, cookies []domain.Cookie) error {
	setCtx, cancel := context.WithTimeout(ctx, p.actionTimeout)
	defer cancel()
	params := toCookieParams(cookies)
	return p.run(setCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		return network.SetCookies(params).Do(ctx)
	}))
}

// Navigate waits for the load event, at most actionTimeout.
func (p *chromedpPage) Navigate(ctx context.Context, url string) error {
	navCtx, cancel := context.WithTimeout(ctx, p.actionTimeout)
	defer cancel()
	if err := p.run(navCtx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigate to %s: %w", url, err)
	}
	return nil
}

func (p *chromedpPage) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := p.run(waitCtx, chromedp.WaitVisible(selector, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("wait for %s: %w", selector, err)
	}
	return nil
}

func (p *chromedpPage) Click(ctx context.Context, selector string) error {
	clickCtx, cancel := context.WithTimeout(ctx, p.actionTimeout)
	defer cancel()
	if err := p.run(clickCtx, chromedp.Click(selector, chromedp.ByQuery, chromedp.NodeVisible)); err != nil {
		return fmt.Errorf("click %s: %w", selector, err)
	}
	return nil
}

func (p *chromedpPage) Fill(ctx context.Context, selector, text string) error {
	fillCtx, cancel := context.WithTimeout(ctx, p.actionTimeout)
	defer cancel()

	var found bool
	err := p.run(fillCtx,
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.Evaluate(selectContentScript(selector), &found),
		chromedp.ActionFunc(func(ctx context.Context) error {
			if !found {
				return ErrNoElement
			}
			return input.InsertText(text).Do(ctx)
		}),
	)
	if err != nil {
		return fmt.Errorf("fill %s: %w", selector, err)
	}
	return nil
}

func (p *chromedpPage) Count(ctx context.Context, selector string) (int, error) {
	var n int
	if err := p.run(ctx, chromedp.Evaluate(countScript(selector), &n)); err != nil {
		return 0, fmt.Errorf("count %s: %w", selector, err)
	}
	return n, nil
}

func (p *chromedpPage) LastText(ctx context.Context, selector string) (string, error) {
	return p.lastElement(ctx, selector, "innerText")
}

func (p *chromedpPage) LastHTML(ctx context.Context, selector string) (string, error) {
	return p.lastElement(ctx, selector, "innerHTML")
}

func (p *chromedpPage) lastElement(ctx context.Context, selector, prop string) (string, error) {
	var res lastElementResult
	if err := p.run(ctx, chromedp.Evaluate(lastElementScript(selector, prop), &res)); err != nil {
		return "", fmt.Errorf("read %s: %w", selector, err)
	}
	if !res.Found {
		return "", fmt.Errorf("read %s: %w", selector, ErrNoElement)
	}
	return res.Value, nil
}

// Close shuts Chrome down gracefully and releases the allocator.
func (p *chromedpPage) Close() error {
	p.closeOnce.Do(func() {
		err := chromedp.Cancel(p.ctx)
		p.cancel()
		p.allocCancel()
		if err != nil && !errors.Is(err, context.Canceled) {
			p.closeErr = fmt.Errorf("close chrome: %w", err)
		}
	})
	return p.closeErr
}

func toCookieParams(cookies []domain.Cookie) []*network.CookieParam {
	params := make([]*network.CookieParam, 0, len(cookies))
	for _, c := range cookies {
		param := &network.CookieParam{
			Name:     c.Name,
			Value:    c.Value,
			URL:      c.URL,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HTTPOnly: c.HTTPOnly,
			SameSite: network.CookieSameSite(c.SameSite),
		}
		if c.Expires > 0 {
			sec, frac := math.Modf(c.Expires)
			expires := cdp.TimeSinceEpoch(time.Unix(int64(sec), int64(frac*1e9)))
			param.Expires = &expires
		}
		params = append(params, param)
	}
	return params
}
