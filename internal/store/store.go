// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"github.com/nuan-odoo/wrapperAI/internal/domain"
)

// DefaultListLimit is used by ListExchanges when no positive limit is given.
const DefaultListLimit = 50

// MaxListLimit caps the number of exchanges returned by ListExchanges.
const MaxListLimit = 500

// Repository defines the interface for persisting exchange history.
type Repository interface {
	// SaveExchange records a finished exchange, successful or not.
	SaveExchange(ctx context.Context, ex *domain.Exchange) error

	// ListExchanges returns the most recent exchanges, newest first.
	ListExchanges(ctx context.Context, limit int) ([]*domain.Exchange, error)

	// DeleteExchangesBefore removes exchanges started before cutoff and
	// returns how many were deleted.
	DeleteExchangesBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// Ping verifies database connectivity and returns an error if the database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
