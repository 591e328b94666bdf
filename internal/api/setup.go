package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/nuan-odoo/wrapperAI/internal/domain"
	"github.com/nuan-odoo/wrapperAI/internal/session"
)

type setupRequest struct {
	Target   string             `json:"target"`
	Cookies  []domain.RawCookie `json:"cookies,omitempty"`
	Email    string             `json:"email,omitempty"`
	Password string             `json:"password,omitempty"`
}

// Setup launches the browser session for the requested target.
func (h *Handler) Setup(w http.ResponseWriter, r *http.Request) {
	var req setupRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	// Setup keeps running if the client goes away; the session outlives the request.
	ctx := context.WithoutCancel(r.Context())
	err := h.ctrl.Start(ctx, req.Target, session.Credentials{
		Cookies:  req.Cookies,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		if session.IsClientSetupError(err) {
			slog.Warn("Setup rejected", "target", req.Target, "error", err)
			Error(w, http.StatusBadRequest, err.Error())
			return
		}
		slog.Error("Setup failed", "target", req.Target, "error", err)
		Error(w, http.StatusInternalServerError, err.Error())
		return
	}

	JSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"bot":    req.Target,
	})
}
