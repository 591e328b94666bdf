package domain

import (
	"time"
)

// Exchange is a single message/response pair sent through the active session.
type Exchange struct {
	ID        string        `json:"id"`
	Target    string        `json:"bot"`
	Message   string        `json:"message"`
	Response  string        `json:"response"`
	Ticks     int           `json:"ticks"`
	Error     string        `json:"error,omitempty"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration_ns"`
}

// Failed reports whether the exchange ended with an error.
func (e *Exchange) Failed() bool {
	return e.Error != ""
}
