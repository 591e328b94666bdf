package config

import (
	"os"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"PORT", "DB_PATH", "ALLOWED_ORIGINS", "CHAT_RATE_LIMIT", "HISTORY_ENABLED",
		"HISTORY_RETENTION", "BROWSER_ENGINE", "BROWSER_HEADLESS", "POLL_INTERVAL",
		"STABILITY_THRESHOLD", "AUTH_TIMEOUT", "LOGIN_STEP_TIMEOUT",
		"MAX_EXCHANGE_DURATION", "RESPONSE_FORMAT", "CHATBOT_TARGET", "CHATBOT_URL",
	} {
		t.Setenv(key, "") // restores the original value after the test
		if err := os.Unsetenv(key); err != nil {
			t.Fatalf("unset %s: %v", key, err)
		}
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Port != "8000" || cfg.Session.PollInterval != time.Second || cfg.Session.StabilityThreshold != 3 {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if cfg.Session.MaxExchangeDuration != 0 {
		t.Errorf("MaxExchangeDuration = %v, want unbounded", cfg.Session.MaxExchangeDuration)
	}
	if !cfg.History.Enabled || cfg.History.Retention != 7*24*time.Hour {
		t.Errorf("History = %+v", cfg.History)
	}
	if cfg.Browser.Engine != "chromedp" || !cfg.Browser.Headless {
		t.Errorf("Browser = %+v", cfg.Browser)
	}
	if len(cfg.AllowedOrigins) != 1 || cfg.AllowedOrigins[0] != "*" {
		t.Errorf("AllowedOrigins = %q", cfg.AllowedOrigins)
	}
	if cfg.Bootstrap.Enabled() {
		t.Error("bootstrap should be disabled without CHATBOT_TARGET")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("ALLOWED_ORIGINS", "http://a.test, http://b.test,")
	t.Setenv("BROWSER_ENGINE", "Playwright")
	t.Setenv("BROWSER_HEADLESS", "off")
	t.Setenv("POLL_INTERVAL", "250ms")
	t.Setenv("AUTH_TIMEOUT", "30")
	t.Setenv("MAX_EXCHANGE_DURATION", "2m")
	t.Setenv("RESPONSE_FORMAT", "html2text")
	t.Setenv("CHAT_RATE_LIMIT", "12")
	t.Setenv("CHATBOT_TARGET", " ChatGPT ")
	t.Setenv("CHATBOT_URL", "https://chat.example.test")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Port != "9000" {
		t.Errorf("Port = %q", cfg.Port)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "http://b.test" {
		t.Errorf("AllowedOrigins = %q", cfg.AllowedOrigins)
	}
	if cfg.Browser.Engine != "playwright" || cfg.Browser.Headless {
		t.Errorf("Browser = %+v", cfg.Browser)
	}
	if cfg.Session.PollInterval != 250*time.Millisecond {
		t.Errorf("PollInterval = %v", cfg.Session.PollInterval)
	}
	if cfg.Session.AuthTimeout != 30*time.Second {
		t.Errorf("AuthTimeout = %v", cfg.Session.AuthTimeout)
	}
	if cfg.Session.MaxExchangeDuration != 2*time.Minute {
		t.Errorf("MaxExchangeDuration = %v", cfg.Session.MaxExchangeDuration)
	}
	if cfg.ChatRateLimit != 12 || cfg.Session.ResponseFormat != "html2text" {
		t.Errorf("unexpected config %+v", cfg)
	}
	if !cfg.Bootstrap.Enabled() || cfg.Bootstrap.Target != "chatgpt" {
		t.Errorf("Bootstrap = %+v", cfg.Bootstrap)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Port:           "8000",
			DBPath:         "db",
			AllowedOrigins: []string{"*"},
			Browser:        BrowserConfig{Engine: "chromedp"},
			Session: SessionConfig{
				PollInterval:       time.Second,
				StabilityThreshold: 3,
				AuthTimeout:        time.Second,
				LoginStepTimeout:   time.Second,
				ResponseFormat:     "text",
			},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"empty port", func(c *Config) { c.Port = "" }, "PORT"},
		{"unknown engine", func(c *Config) { c.Browser.Engine = "selenium" }, "BROWSER_ENGINE"},
		{"zero poll", func(c *Config) { c.Session.PollInterval = 0 }, "POLL_INTERVAL"},
		{"zero threshold", func(c *Config) { c.Session.StabilityThreshold = 0 }, "STABILITY_THRESHOLD"},
		{"negative max duration", func(c *Config) { c.Session.MaxExchangeDuration = -time.Second }, "MAX_EXCHANGE_DURATION"},
		{"bad format", func(c *Config) { c.Session.ResponseFormat = "markdown" }, "RESPONSE_FORMAT"},
		{"negative rate", func(c *Config) { c.ChatRateLimit = -1 }, "CHAT_RATE_LIMIT"},
		{"url without target", func(c *Config) { c.Bootstrap.URL = "https://x.test" }, "CHATBOT_TARGET"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error = %v, want mention of %s", err, tt.wantErr)
			}
		})
	}
}

func TestGetEnvDuration(t *testing.T) {
	tests := []struct {
		value string
		want  time.Duration
	}{
		{"1500ms", 1500 * time.Millisecond},
		{"2", 2 * time.Second},
		{"0.5", 500 * time.Millisecond},
		{"garbage", time.Minute},
	}
	for _, tt := range tests {
		t.Setenv("TEST_DURATION", tt.value)
		if got := getEnvDuration("TEST_DURATION", time.Minute); got != tt.want {
			t.Errorf("getEnvDuration(%q) = %v, want %v", tt.value, got, tt.want)
		}
	}
}
