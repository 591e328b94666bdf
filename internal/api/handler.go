// Package api provides HTTP handlers for the WrapperAI API.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nuan-odoo/wrapperAI/internal/domain"
	"github.com/nuan-odoo/wrapperAI/internal/middleware"
	"github.com/nuan-odoo/wrapperAI/internal/session"
)

// maxBodyBytes bounds request bodies; cookie exports are the largest payload.
const maxBodyBytes = 1 << 20

// SessionController is the lifecycle side of the browser session.
type SessionController interface {
	Start(ctx context.Context, target string, creds session.Credentials) error
	Status() session.Status
}

// MessageSender runs exchanges through the ready session.
type MessageSender interface {
	Send(ctx context.Context, message string, opts ...session.SendOption) (*domain.Exchange, error)
}

// HistoryReader lists recorded exchanges.
type HistoryReader interface {
	ListExchanges(ctx context.Context, limit int) ([]*domain.Exchange, error)
}

// Handler serves the setup, chat, health and history endpoints.
type Handler struct {
	ctrl           SessionController
	sender         MessageSender
	history        HistoryReader
	allowedOrigins []string
	limiter        *middleware.RateLimiter
}

// NewHandler creates a new Handler. history may be nil when recording is
// disabled.
func NewHandler(ctrl SessionController, sender MessageSender, history HistoryReader, allowedOrigins []string) *Handler {
	return &Handler{
		ctrl:           ctrl,
		sender:         sender,
		history:        history,
		allowedOrigins: allowedOrigins,
	}
}

// WithChatLimiter throttles exchanges per client: each POST /chat request and
// each message frame on /ws/chat takes one token. A nil limiter disables
// limiting.
func (h *Handler) WithChatLimiter(l *middleware.RateLimiter) *Handler {
	h.limiter = l
	return h
}

// RegisterRoutes registers all API routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/setup", h.Setup)
	if h.limiter != nil {
		r.With(h.limiter.Handler).Post("/chat", h.Chat)
	} else {
		r.Post("/chat", h.Chat)
	}
	r.Get("/ws/chat", h.ChatSocket)
	r.Get("/health", h.Health)

	r.Route("/api", func(r chi.Router) {
		r.Get("/targets", h.Targets)
		r.Get("/history", h.History)
	})
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}
