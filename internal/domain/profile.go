// Package domain contains core domain types for the WrapperAI service.
package domain

import (
	"sort"
)

// AuthMode selects how a session authenticates against a chat provider.
type AuthMode string

const (
	// AuthCookie injects exported browser cookies before navigation.
	AuthCookie AuthMode = "cookie"
	// AuthPassword fills the provider's email/password login form.
	AuthPassword AuthMode = "password"
	// AuthNone assumes the page is usable without logging in.
	AuthNone AuthMode = "none"
)

// Selectors holds the CSS selectors for the three chat roles.
type Selectors struct {
	InputBox   string `json:"input_box"`
	SendButton string `json:"send_button"`
	Response   string `json:"response"`
}

// LoginSelectors holds the CSS selectors of a provider's login form.
type LoginSelectors struct {
	EmailField    string `json:"email_field"`
	PasswordField string `json:"password_field"`
	SubmitButton  string `json:"submit_button"`
}

// Profile describes one supported chat provider.
type Profile struct {
	ID        string          `json:"id"`
	URL       string          `json:"url"`
	Auth      AuthMode        `json:"auth"`
	Selectors Selectors       `json:"selectors"`
	Login     *LoginSelectors `json:"login,omitempty"`
}

// WithURL returns a copy of the profile pointing at url.
// An empty url leaves the profile unchanged.
func (p Profile) WithURL(url string) Profile {
	if url != "" {
		p.URL = url
	}
	return p
}

var defaultLogin = LoginSelectors{
	EmailField:    `input[type="email"]`,
	PasswordField: `input[type="password"]`,
	SubmitButton:  `button[type="submit"]`,
}

var profiles = map[string]Profile{
	"claude": {
		ID:   "claude",
		URL:  "https://claude.ai/new",
		Auth: AuthCookie,
		Selectors: Selectors{
			InputBox:   `div[contenteditable="true"]`,
			SendButton: `button[aria-label="Send message"]`,
			Response:   `div[data-testid="assistant-message"]`,
		},
	},
	"chatgpt": {
		ID:   "chatgpt",
		URL:  "https://chatgpt.com",
		Auth: AuthPassword,
		Selectors: Selectors{
			InputBox:   `div#prompt-textarea`,
			SendButton: `button[data-testid="send-button"]`,
			Response:   `div[data-message-author-role="assistant"]`,
		},
		Login: &defaultLogin,
	},
	"gemini": {
		ID:   "gemini",
		URL:  "https://gemini.google.com",
		Auth: AuthPassword,
		Selectors: Selectors{
			InputBox:   `div.ql-editor`,
			SendButton: `button.send-button`,
			Response:   `message-content.model-response-text`,
		},
		Login: &defaultLogin,
	},
}

// LookupProfile returns the built-in profile registered under id.
func LookupProfile(id string) (Profile, bool) {
	p, ok := profiles[id]
	if !ok {
		return Profile{}, false
	}
	if p.Login != nil {
		login := *p.Login
		p.Login = &login
	}
	return p, true
}

// ProfileIDs returns the registered target identifiers in sorted order.
func ProfileIDs() []string {
	ids := make([]string, 0, len(profiles))
	for id := range profiles {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Profiles returns every built-in profile sorted by ID.
func Profiles() []Profile {
	ids := ProfileIDs()
	out := make([]Profile, 0, len(ids))
	for _, id := range ids {
		p, _ := LookupProfile(id)
		out = append(out, p)
	}
	return out
}
