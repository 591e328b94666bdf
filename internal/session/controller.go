// Package session owns the single automated browser session of the process:
// the Controller drives its lifecycle and the Engine serializes message
// exchanges over its page.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/nuan-odoo/wrapperAI/internal/browser"
	"github.com/nuan-odoo/wrapperAI/internal/domain"
	"github.com/nuan-odoo/wrapperAI/internal/metrics"
)

// Default setup timeouts.
const (
	DefaultAuthTimeout      = 20 * time.Second
	DefaultLoginStepTimeout = 5 * time.Second
)

// Credentials carries the authentication material for Start. Only the part
// matching the target's auth mode is used.
type Credentials struct {
	Cookies  []domain.RawCookie
	Email    string
	Password string
}

// ControllerConfig tunes the setup flow.
type ControllerConfig struct {
	// AuthTimeout bounds the wait for the input box after navigation.
	AuthTimeout time.Duration
	// LoginStepTimeout bounds each wait inside the login form.
	LoginStepTimeout time.Duration
	// URLOverrides replaces the profile URL of the given targets.
	URLOverrides map[string]string
}

// Status is a snapshot of the session state.
type Status struct {
	Readiness  domain.Readiness
	Target     string
	ReadySince time.Time
}

// Configured reports whether the session is ready for exchanges.
func (s Status) Configured() bool {
	return s.Readiness == domain.ReadinessReady
}

// Controller owns the browser and page handles. Handles never leave the
// session package.
type Controller struct {
	launcher browser.Launcher
	cfg      ControllerConfig

	mu         sync.Mutex
	state      domain.Readiness
	target     string
	profile    domain.Profile
	page       browser.Page
	readySince time.Time
}

// NewController creates a controller in the not-started state.
func NewController(launcher browser.Launcher, cfg ControllerConfig) *Controller {
	if cfg.AuthTimeout <= 0 {
		cfg.AuthTimeout = DefaultAuthTimeout
	}
	if cfg.LoginStepTimeout <= 0 {
		cfg.LoginStepTimeout = DefaultLoginStepTimeout
	}
	return &Controller{
		launcher: launcher,
		cfg:      cfg,
		state:    domain.ReadinessNotStarted,
	}
}

// Start launches the browser, authenticates against target and waits for the
// chat input to appear. It may succeed only once per controller.
func (c *Controller) Start(ctx context.Context, target string, creds Credentials) (err error) {
	profile, ok := domain.LookupProfile(target)
	if !ok {
		// Arbitrary client input must not become a label value.
		metrics.ObserveSetup("unknown", metrics.OutcomeError)
		return fmt.Errorf("%w: %w %q, choose from: %s", ErrSetup, ErrUnknownTarget, target, strings.Join(domain.ProfileIDs(), ", "))
	}
	profile = profile.WithURL(c.cfg.URLOverrides[target])

	if err := c.begin(target); err != nil {
		metrics.ObserveSetup(target, metrics.OutcomeError)
		return err
	}
	defer func() {
		if err != nil {
			metrics.ObserveSetup(target, metrics.OutcomeError)
		} else {
			metrics.ObserveSetup(target, metrics.OutcomeOK)
		}
	}()

	cookies, err := checkCredentials(profile, creds)
	if err != nil {
		c.abort()
		return err
	}

	slog.Info("Starting browser session", "target", target, "auth", profile.Auth, "url", profile.URL)
	page, err := c.authenticate(ctx, profile, cookies, creds)
	if err != nil {
		c.abort()
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != domain.ReadinessAuthenticating {
		// Stop ran while we were authenticating.
		if closeErr := page.Close(); closeErr != nil {
			slog.Warn("Failed to close browser after interrupted setup", "error", closeErr)
		}
		return fmt.Errorf("%w: session stopped during setup", ErrSetup)
	}
	c.page = page
	c.profile = profile
	c.state = domain.ReadinessReady
	c.readySince = time.Now()
	metrics.SetSessionReady(true)
	slog.Info("Browser session ready", "target", target)
	return nil
}

// begin moves the controller from not-started to authenticating.
func (c *Controller) begin(target string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.state {
	case domain.ReadinessNotStarted:
		c.state = domain.ReadinessAuthenticating
		c.target = target
		return nil
	case domain.ReadinessStopped:
		return fmt.Errorf("%w: session has been stopped", ErrSetup)
	default:
		return fmt.Errorf("%w: %w, restart the service to reconfigure", ErrSetup, ErrAlreadyConfigured)
	}
}

// abort returns a failed setup to the not-started state.
func (c *Controller) abort() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == domain.ReadinessAuthenticating {
		c.state = domain.ReadinessNotStarted
		c.target = ""
	}
}

func checkCredentials(profile domain.Profile, creds Credentials) ([]domain.Cookie, error) {
	switch profile.Auth {
	case domain.AuthCookie:
		if len(creds.Cookies) == 0 {
			return nil, fmt.Errorf("%w: %w: target %q requires cookies", ErrSetup, ErrCredentials, profile.ID)
		}
		cookies, err := domain.DecodeCookies(creds.Cookies)
		if err != nil {
			return nil, fmt.Errorf("%w: %w: %w", ErrSetup, ErrCredentials, err)
		}
		return cookies, nil
	case domain.AuthPassword:
		if creds.Email == "" || creds.Password == "" {
			return nil, fmt.Errorf("%w: %w: target %q requires email and password", ErrSetup, ErrCredentials, profile.ID)
		}
		if profile.Login == nil {
			return nil, fmt.Errorf("%w: target %q has no login selectors", ErrSetup, profile.ID)
		}
	}
	return nil, nil
}

func (c *Controller) authenticate(ctx context.Context, profile domain.Profile, cookies []domain.Cookie, creds Credentials) (browser.Page, error) {
	page, err := c.launcher.Launch(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: launch browser: %w", ErrSetup, err)
	}

	fail := func(step string, err error) (browser.Page, error) {
		if closeErr := page.Close(); closeErr != nil {
			slog.Warn("Failed to close browser after setup error", "error", closeErr)
		}
		return nil, fmt.Errorf("%w: %s: %w", ErrSetup, step, err)
	}

	if profile.Auth == domain.AuthCookie {
		if err := page.SetCookies(ctx, cookies); err != nil {
			return fail("inject cookies", err)
		}
		slog.Info("Injected cookies", "target", profile.ID, "count", len(cookies))
	}

	if err := page.Navigate(ctx, profile.URL); err != nil {
		return fail("navigate", err)
	}

	if profile.Auth == domain.AuthPassword {
		if err := c.login(ctx, page, *profile.Login, creds); err != nil {
			slog.Info("Login form not completed, assuming already authenticated", "target", profile.ID, "error", err)
		}
	}

	if err := page.WaitVisible(ctx, profile.Selectors.InputBox, c.cfg.AuthTimeout); err != nil {
		return fail("authentication not confirmed", err)
	}
	return page, nil
}

// login walks the two-step email/password form.
func (c *Controller) login(ctx context.Context, page browser.Page, login domain.LoginSelectors, creds Credentials) error {
	if err := page.WaitVisible(ctx, login.EmailField, c.cfg.LoginStepTimeout); err != nil {
		return err
	}
	if err := page.Fill(ctx, login.EmailField, creds.Email); err != nil {
		return err
	}
	if err := page.Click(ctx, login.SubmitButton); err != nil {
		return err
	}
	if err := page.WaitVisible(ctx, login.PasswordField, c.cfg.LoginStepTimeout); err != nil {
		return err
	}
	if err := page.Fill(ctx, login.PasswordField, creds.Password); err != nil {
		return err
	}
	return page.Click(ctx, login.SubmitButton)
}

// Stop tears the browser down. It is safe to call more than once; after Stop
// the controller cannot be started again.
func (c *Controller) Stop() error {
	c.mu.Lock()
	page := c.page
	target := c.target
	c.page = nil
	c.state = domain.ReadinessStopped
	c.mu.Unlock()

	metrics.SetSessionReady(false)
	if page == nil {
		return nil
	}
	slog.Info("Stopping browser session", "target", target)
	if err := page.Close(); err != nil {
		return fmt.Errorf("stop session: %w", err)
	}
	return nil
}

// Status returns a snapshot of the session state.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Status{
		Readiness:  c.state,
		Target:     c.target,
		ReadySince: c.readySince,
	}
}

// active returns the page and profile of a ready session.
func (c *Controller) active() (browser.Page, domain.Profile, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != domain.ReadinessReady || c.page == nil {
		return nil, domain.Profile{}, fmt.Errorf("%w: complete setup first", ErrNotReady)
	}
	return c.page, c.profile, nil
}

// ready reports whether the session is still usable mid-exchange.
func (c *Controller) ready() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == domain.ReadinessReady
}
