// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Port           string
	DBPath         string
	AllowedOrigins []string
	ChatRateLimit  int // exchanges per minute per client on /chat and /ws/chat, 0 disables limiting
	History        HistoryConfig
	Browser        BrowserConfig
	Session        SessionConfig
	Bootstrap      BootstrapConfig
}

// HistoryConfig controls exchange recording.
type HistoryConfig struct {
	Enabled   bool
	Retention time.Duration // 0 keeps exchanges forever
}

// BrowserConfig selects and tunes the automation engine.
type BrowserConfig struct {
	Engine    string // "chromedp" or "playwright"
	Headless  bool
	ExecPath  string
	UserAgent string
	Install   bool // download the playwright driver and browser on start
}

// SessionConfig tunes setup and the stabilization loop.
type SessionConfig struct {
	PollInterval        time.Duration
	StabilityThreshold  int
	AuthTimeout         time.Duration
	LoginStepTimeout    time.Duration
	MaxExchangeDuration time.Duration
	ResponseFormat      string // "text" or "html2text"
}

// BootstrapConfig describes a target to set up at boot, without a call to
// POST /setup.
type BootstrapConfig struct {
	Target      string
	URL         string
	Email       string
	Password    string
	CookiesFile string
}

// Enabled reports whether a target should be set up at boot.
func (b BootstrapConfig) Enabled() bool {
	return b.Target != ""
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:           getEnv("PORT", "8000"),
		DBPath:         getEnv("DB_PATH", "./data/wrapperai.db"),
		AllowedOrigins: getEnvList("ALLOWED_ORIGINS", []string{"*"}),
		ChatRateLimit:  getEnvInt("CHAT_RATE_LIMIT", 0),
		History: HistoryConfig{
			Enabled:   getEnvBool("HISTORY_ENABLED", true),
			Retention: getEnvDuration("HISTORY_RETENTION", 7*24*time.Hour),
		},
		Browser: BrowserConfig{
			Engine:    strings.ToLower(getEnv("BROWSER_ENGINE", "chromedp")),
			Headless:  getEnvBool("BROWSER_HEADLESS", true),
			ExecPath:  getEnv("BROWSER_EXEC_PATH", ""),
			UserAgent: getEnv("BROWSER_USER_AGENT", ""),
			Install:   getEnvBool("BROWSER_INSTALL", false),
		},
		Session: SessionConfig{
			PollInterval:        getEnvDuration("POLL_INTERVAL", time.Second),
			StabilityThreshold:  getEnvInt("STABILITY_THRESHOLD", 3),
			AuthTimeout:         getEnvDuration("AUTH_TIMEOUT", 20*time.Second),
			LoginStepTimeout:    getEnvDuration("LOGIN_STEP_TIMEOUT", 5*time.Second),
			MaxExchangeDuration: getEnvDuration("MAX_EXCHANGE_DURATION", 0),
			ResponseFormat:      strings.ToLower(getEnv("RESPONSE_FORMAT", "text")),
		},
		Bootstrap: BootstrapConfig{
			Target:      strings.ToLower(strings.TrimSpace(getEnv("CHATBOT_TARGET", ""))),
			URL:         getEnv("CHATBOT_URL", ""),
			Email:       getEnv("CHATBOT_EMAIL", ""),
			Password:    getEnv("CHATBOT_PASSWORD", ""),
			CookiesFile: getEnv("CHATBOT_COOKIES_FILE", ""),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if len(c.AllowedOrigins) == 0 {
		return fmt.Errorf("ALLOWED_ORIGINS cannot be empty")
	}
	if c.ChatRateLimit < 0 {
		return fmt.Errorf("CHAT_RATE_LIMIT must be >= 0")
	}
	if c.History.Retention < 0 {
		return fmt.Errorf("HISTORY_RETENTION must be >= 0")
	}
	switch c.Browser.Engine {
	case "chromedp", "playwright":
	default:
		return fmt.Errorf("BROWSER_ENGINE must be chromedp or playwright, got %q", c.Browser.Engine)
	}
	if c.Session.PollInterval <= 0 {
		return fmt.Errorf("POLL_INTERVAL must be > 0")
	}
	if c.Session.StabilityThreshold <= 0 {
		return fmt.Errorf("STABILITY_THRESHOLD must be > 0")
	}
	if c.Session.AuthTimeout <= 0 {
		return fmt.Errorf("AUTH_TIMEOUT must be > 0")
	}
	if c.Session.LoginStepTimeout <= 0 {
		return fmt.Errorf("LOGIN_STEP_TIMEOUT must be > 0")
	}
	if c.Session.MaxExchangeDuration < 0 {
		return fmt.Errorf("MAX_EXCHANGE_DURATION must be >= 0")
	}
	switch c.Session.ResponseFormat {
	case "text", "html2text":
	default:
		return fmt.Errorf("RESPONSE_FORMAT must be text or html2text, got %q", c.Session.ResponseFormat)
	}
	if !c.Bootstrap.Enabled() && c.Bootstrap.URL != "" {
		return fmt.Errorf("CHATBOT_URL requires CHATBOT_TARGET")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

// getEnvDuration accepts Go durations ("1500ms") and bare seconds ("2").
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	value = strings.TrimSpace(value)
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.ParseFloat(value, 64); err == nil {
		return time.Duration(secs * float64(time.Second))
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// IsContainer returns true if running inside a Docker container.
func IsContainer() bool {
	if os.Getenv("CONTAINER") == "true" {
		return true
	}
	// Check for .dockerenv file
	if _, err := os.Stat("/.dockerenv"); err == nil {
		return true
	}
	return false
}
