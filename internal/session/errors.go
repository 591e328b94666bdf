package session

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrSetup wraps every failure of Controller.Start.
	ErrSetup = errors.New("setup failed")
	// ErrUnknownTarget is returned for a target with no registered profile.
	ErrUnknownTarget = errors.New("unknown target")
	// ErrAlreadyConfigured is returned when Start is called more than once.
	ErrAlreadyConfigured = errors.New("session already configured")
	// ErrCredentials is returned when credentials do not fit the auth mode.
	ErrCredentials = errors.New("credentials do not match auth mode")
	// ErrNotReady is returned by Send before a successful Start.
	ErrNotReady = errors.New("session not ready")
	// ErrInvalidInput is returned for blank messages.
	ErrInvalidInput = errors.New("invalid input")
	// ErrAutomation wraps failures of the browser during an exchange.
	ErrAutomation = errors.New("browser automation error")
)

// IsClientSetupError reports whether err was caused by the setup request
// itself rather than by the browser.
func IsClientSetupError(err error) bool {
	return errors.Is(err, ErrUnknownTarget) ||
		errors.Is(err, ErrAlreadyConfigured) ||
		errors.Is(err, ErrCredentials)
}

// ValidateMessage rejects messages that are empty after trimming whitespace.
func ValidateMessage(message string) error {
	if strings.TrimSpace(message) == "" {
		return fmt.Errorf("%w: message cannot be empty", ErrInvalidInput)
	}
	return nil
}
