package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jaytaylor/html2text"
	"golang.org/x/sync/semaphore"

	"github.com/nuan-odoo/wrapperAI/internal/browser"
	"github.com/nuan-odoo/wrapperAI/internal/domain"
	"github.com/nuan-odoo/wrapperAI/internal/metrics"
)

// DefaultPollInterval is the delay between two reads of the response.
const DefaultPollInterval = time.Second

// Response extraction formats.
const (
	FormatText      = "text"
	FormatHTML2Text = "html2text"
)

// EngineConfig tunes the stabilization loop.
type EngineConfig struct {
	PollInterval       time.Duration
	StabilityThreshold int
	// MaxExchangeDuration bounds one exchange once the gate is held.
	// Zero waits for the response indefinitely.
	MaxExchangeDuration time.Duration
	// ResponseFormat selects innerText ("text") or innerHTML converted to
	// plain text ("html2text").
	ResponseFormat string
}

// ExchangeRecorder persists finished exchanges.
type ExchangeRecorder interface {
	SaveExchange(ctx context.Context, ex *domain.Exchange) error
}

// Progress describes one poll tick of an exchange.
type Progress struct {
	Tick   int    `json:"tick"`
	Text   string `json:"text"`
	Stable int    `json:"stable"`
}

// SendOptions holds the per-call settings of Send.
type SendOptions struct {
	// Observer is called after every successful read of the response.
	Observer func(Progress)
}

// SendOption customizes a single Send call.
type SendOption func(*SendOptions)

// WithObserver registers fn to be called after every successful read.
func WithObserver(fn func(Progress)) SendOption {
	return func(o *SendOptions) {
		o.Observer = fn
	}
}

// ApplySendOptions folds opts into a SendOptions value.
func ApplySendOptions(opts ...SendOption) SendOptions {
	var so SendOptions
	for _, opt := range opts {
		opt(&so)
	}
	return so
}

// Engine sends messages through the controller's page, one at a time.
type Engine struct {
	ctrl     *Controller
	cfg      EngineConfig
	gate     *semaphore.Weighted
	recorder ExchangeRecorder
}

// NewEngine creates an engine over ctrl. recorder may be nil.
func NewEngine(ctrl *Controller, cfg EngineConfig, recorder ExchangeRecorder) *Engine {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.StabilityThreshold <= 0 {
		cfg.StabilityThreshold = DefaultStabilityThreshold
	}
	if cfg.ResponseFormat == "" {
		cfg.ResponseFormat = FormatText
	}
	return &Engine{
		ctrl:     ctrl,
		cfg:      cfg,
		gate:     semaphore.NewWeighted(1),
		recorder: recorder,
	}
}

// Send types message into the chat, submits it and returns the settled
// response. Concurrent calls run strictly one after another in the order they
// reach the gate.
func (e *Engine) Send(ctx context.Context, message string, opts ...SendOption) (*domain.Exchange, error) {
	if err := ValidateMessage(message); err != nil {
		return nil, err
	}
	if _, _, err := e.ctrl.active(); err != nil {
		return nil, err
	}
	so := ApplySendOptions(opts...)

	metrics.GateWaiting(1)
	err := e.gate.Acquire(ctx, 1)
	metrics.GateWaiting(-1)
	if err != nil {
		return nil, fmt.Errorf("%w: waiting for session: %w", ErrAutomation, err)
	}
	defer e.gate.Release(1)

	page, profile, err := e.ctrl.active()
	if err != nil {
		return nil, err
	}

	ex := &domain.Exchange{
		ID:        uuid.NewString(),
		Target:    profile.ID,
		Message:   message,
		StartedAt: time.Now(),
	}
	log := slog.With("exchange_id", ex.ID, "target", profile.ID)
	log.Info("Exchange started", "message_length", len(message))

	runCtx := ctx
	if e.cfg.MaxExchangeDuration > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, e.cfg.MaxExchangeDuration)
		defer cancel()
	}

	ex.Response, ex.Ticks, err = e.exchange(runCtx, log, page, profile.Selectors, message, so.Observer)
	ex.Duration = time.Since(ex.StartedAt)
	if err != nil {
		ex.Error = err.Error()
	}
	e.finish(ctx, log, ex, err)
	if err != nil {
		return nil, err
	}
	return ex, nil
}

func (e *Engine) exchange(ctx context.Context, log *slog.Logger, page browser.Page, sel domain.Selectors, message string, observe func(Progress)) (string, int, error) {
	if err := page.Click(ctx, sel.InputBox); err != nil {
		return "", 0, fmt.Errorf("%w: focus input: %w", ErrAutomation, err)
	}
	if err := page.Fill(ctx, sel.InputBox, message); err != nil {
		return "", 0, fmt.Errorf("%w: type message: %w", ErrAutomation, err)
	}
	if err := page.Click(ctx, sel.SendButton); err != nil {
		return "", 0, fmt.Errorf("%w: send message: %w", ErrAutomation, err)
	}

	tracker := NewTracker(e.cfg.StabilityThreshold)
	ticker := time.NewTicker(e.cfg.PollInterval)
	defer ticker.Stop()

	tick := 0
	for !tracker.Settled() {
		select {
		case <-ctx.Done():
			return tracker.Text(), tick, fmt.Errorf("%w: waiting for response: %w", ErrAutomation, ctx.Err())
		case <-ticker.C:
		}
		tick++

		if !e.ctrl.ready() {
			return tracker.Text(), tick, fmt.Errorf("%w: session stopped during exchange", ErrNotReady)
		}

		text, ok := e.read(ctx, log, page, sel.Response)
		if !ok {
			continue
		}
		tracker.Observe(text)
		if observe != nil {
			observe(Progress{Tick: tick, Text: text, Stable: tracker.Count()})
		}
	}
	return tracker.Text(), tick, nil
}

// read returns the text of the newest response element. Any failure means
// "nothing to compare this tick".
func (e *Engine) read(ctx context.Context, log *slog.Logger, page browser.Page, selector string) (string, bool) {
	n, err := page.Count(ctx, selector)
	if err != nil {
		log.Debug("Response count failed, retrying next tick", "error", err)
		return "", false
	}
	if n == 0 {
		return "", false
	}

	if e.cfg.ResponseFormat == FormatHTML2Text {
		html, err := page.LastHTML(ctx, selector)
		if err != nil {
			log.Debug("Response read failed, retrying next tick", "error", err)
			return "", false
		}
		text, err := html2text.FromString(html, html2text.Options{PrettyTables: true})
		if err != nil {
			log.Debug("Response conversion failed, retrying next tick", "error", err)
			return "", false
		}
		return text, true
	}

	text, err := page.LastText(ctx, selector)
	if err != nil {
		log.Debug("Response read failed, retrying next tick", "error", err)
		return "", false
	}
	return text, true
}

func (e *Engine) finish(ctx context.Context, log *slog.Logger, ex *domain.Exchange, err error) {
	outcome := metrics.OutcomeOK
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		outcome = metrics.OutcomeTimeout
	case errors.Is(err, ErrNotReady):
		outcome = metrics.OutcomeNotReady
	case err != nil:
		outcome = metrics.OutcomeError
	}
	metrics.ObserveExchange(ex.Target, outcome, ex.Duration, ex.Ticks)

	if err != nil {
		log.Error("Exchange failed", "error", err, "ticks", ex.Ticks, "duration", ex.Duration)
	} else {
		log.Info("Exchange completed", "ticks", ex.Ticks, "duration", ex.Duration, "response_length", len(ex.Response))
	}

	if e.recorder == nil {
		return
	}
	if recErr := e.recorder.SaveExchange(context.WithoutCancel(ctx), ex); recErr != nil {
		log.Warn("Failed to record exchange", "error", recErr)
	}
}
