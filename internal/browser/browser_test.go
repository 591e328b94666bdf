package browser

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/chromedp/cdproto/network"

	"github.com/nuan-odoo/wrapperAI/internal/domain"
)

func TestNewLauncher(t *testing.T) {
	tests := []struct {
		engine  string
		wantErr bool
	}{
		{"", false},
		{EngineChromedp, false},
		{EnginePlaywright, false},
		{"selenium", true},
	}
	for _, tt := range tests {
		l, err := NewLauncher(tt.engine, Options{Headless: true})
		if (err != nil) != tt.wantErr {
			t.Errorf("NewLauncher(%q) error = %v, wantErr %v", tt.engine, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && l == nil {
			t.Errorf("NewLauncher(%q) returned nil launcher", tt.engine)
		}
	}
}

func TestActionTimeoutDefault(t *testing.T) {
	if got := (Options{}).actionTimeout(); got != DefaultActionTimeout {
		t.Errorf("expected default action timeout, got %v", got)
	}
	if got := (Options{ActionTimeout: time.Second}).actionTimeout(); got != time.Second {
		t.Errorf("expected configured timeout, got %v", got)
	}
}

func TestTimeoutFor(t *testing.T) {
	t.Run("no deadline", func(t *testing.T) {
		got, err := timeoutFor(context.Background(), time.Second)
		if err != nil || got != time.Second {
			t.Errorf("timeoutFor = %v, %v; want 1s", got, err)
		}
	})

	t.Run("deadline sooner than limit", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
		defer cancel()
		got, err := timeoutFor(ctx, time.Minute)
		if err != nil || got <= 0 || got > 200*time.Millisecond {
			t.Errorf("timeoutFor = %v, %v; want at most 200ms", got, err)
		}
	})

	t.Run("nearly expired deadline", func(t *testing.T) {
		ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(300*time.Microsecond))
		defer cancel()
		got, err := timeoutFor(ctx, time.Minute)
		if err == nil && got < time.Millisecond {
			t.Errorf("timeoutFor = %v, want at least 1ms", got)
		}
		if err != nil && !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("unexpected error %v", err)
		}
	})

	t.Run("expired deadline", func(t *testing.T) {
		ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
		defer cancel()
		if _, err := timeoutFor(ctx, time.Minute); !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("expected DeadlineExceeded, got %v", err)
		}
	})

	t.Run("tiny limit", func(t *testing.T) {
		got, err := timeoutFor(context.Background(), time.Microsecond)
		if err != nil || got != time.Millisecond {
			t.Errorf("timeoutFor = %v, %v; want 1ms", got, err)
		}
	})
}

func TestScriptsQuoteSelectors(t *testing.T) {
	sel := `button[aria-label="Send message"]`
	for name, script := range map[string]string{
		"count":  countScript(sel),
		"last":   lastElementScript(sel, "innerText"),
		"select": selectContentScript(sel),
	} {
		if !strings.Contains(script, `"button[aria-label=\"Send message\"]"`) {
			t.Errorf("%s script does not contain quoted selector:\n%s", name, script)
		}
	}
}

func TestToCookieParams(t *testing.T) {
	params := toCookieParams([]domain.Cookie{
		{Name: "a", Value: "1", Domain: ".claude.ai", Path: "/", SameSite: "None", Secure: true, Expires: 1893456000.5},
		{Name: "b", Value: "2", URL: "https://claude.ai"},
	})
	if len(params) != 2 {
		t.Fatalf("expected 2 params, got %d", len(params))
	}
	if params[0].SameSite != network.CookieSameSiteNone {
		t.Errorf("expected SameSite None, got %q", params[0].SameSite)
	}
	if params[0].Expires == nil {
		t.Fatal("expected expires to be set")
	}
	if got := params[0].Expires.Time().Unix(); got != 1893456000 {
		t.Errorf("unexpected expiry %d", got)
	}
	if params[1].Expires != nil {
		t.Error("session cookie must not carry an expiry")
	}
	if params[1].URL != "https://claude.ai" {
		t.Errorf("unexpected url %q", params[1].URL)
	}
}

func TestToOptionalCookies(t *testing.T) {
	cookies := toOptionalCookies([]domain.Cookie{
		{Name: "a", Value: "1", Domain: ".claude.ai", SameSite: "Lax"},
		{Name: "b", Value: "2", URL: "https://chatgpt.com"},
	})
	if cookies[0].Domain == nil || *cookies[0].Domain != ".claude.ai" {
		t.Errorf("expected domain to be set")
	}
	if cookies[0].Path == nil || *cookies[0].Path != "/" {
		t.Errorf("expected default path /")
	}
	if cookies[0].SameSite == nil || string(*cookies[0].SameSite) != "Lax" {
		t.Errorf("expected SameSite Lax")
	}
	if cookies[1].URL == nil || cookies[1].Domain != nil {
		t.Errorf("url cookie must not carry a domain")
	}
	if cookies[1].SameSite != nil {
		t.Errorf("empty SameSite must stay unset")
	}
}
