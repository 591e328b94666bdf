// Package browser provides the automation capability consumed by the session:
// one isolated browser instance with one page, driven by CSS selectors.
//
// Two drivers are available, chromedp (default) and playwright-go. Both
// implement Launcher and Page.
package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nuan-odoo/wrapperAI/internal/domain"
)

// ErrNoElement is returned when a selector matches no element.
var ErrNoElement = errors.New("no element matches selector")

// Supported engine names.
const (
	EngineChromedp   = "chromedp"
	EnginePlaywright = "playwright"
)

// DefaultActionTimeout bounds a single driver action such as a navigation or
// a click.
const DefaultActionTimeout = 30 * time.Second

// Page is a single browser page owned by the session controller.
type Page interface {
	// SetCookies injects cookies into the browser context.
	SetCookies(ctx context.Context, cookies []domain.Cookie) error
	// Navigate loads url in the page.
	Navigate(ctx context.Context, url string) error
	// WaitVisible blocks until selector is visible or timeout elapses.
	WaitVisible(ctx context.Context, selector string, timeout time.Duration) error
	// Click clicks the first element matching selector.
	Click(ctx context.Context, selector string) error
	// Fill replaces the content of the first element matching selector.
	Fill(ctx context.Context, selector, text string) error
	// Count returns the number of elements matching selector.
	Count(ctx context.Context, selector string) (int, error)
	// LastText returns the rendered text of the last element matching selector.
	LastText(ctx context.Context, selector string) (string, error)
	// LastHTML returns the inner HTML of the last element matching selector.
	LastHTML(ctx context.Context, selector string) (string, error)
	// Close tears down the page, the browser and the engine handle.
	Close() error
}

// Launcher starts an isolated browser and returns its page.
type Launcher interface {
	Launch(ctx context.Context) (Page, error)
}

// Options configures a launcher.
type Options struct {
	Headless      bool
	ExecPath      string
	UserAgent     string
	ActionTimeout time.Duration
	// InstallDriver downloads the playwright driver and browsers before launch.
	InstallDriver bool
}

func (o Options) actionTimeout() time.Duration {
	if o.ActionTimeout <= 0 {
		return DefaultActionTimeout
	}
	return o.ActionTimeout
}

// sandboxArgs are required when Chrome runs as root inside a container.
var sandboxArgs = []string{"--no-sandbox", "--disable-setuid-sandbox"}

// NewLauncher returns the launcher for the named engine.
func NewLauncher(engine string, opts Options) (Launcher, error) {
	switch engine {
	case "", EngineChromedp:
		return &ChromedpLauncher{opts: opts}, nil
	case EnginePlaywright:
		return &PlaywrightLauncher{opts: opts}, nil
	default:
		return nil, fmt.Errorf("unknown browser engine %q", engine)
	}
}
