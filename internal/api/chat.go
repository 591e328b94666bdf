package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/nuan-odoo/wrapperAI/internal/session"
)

const notConfiguredMessage = "Not configured yet. Complete setup first."

type chatRequest struct {
	Message string `json:"message"`
}

type chatResponse struct {
	Message  string `json:"message"`
	Response string `json:"response"`
	Bot      string `json:"bot"`
}

// Chat sends a message to the active chatbot and returns its response.
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	if !h.ctrl.Status().Configured() {
		Error(w, http.StatusServiceUnavailable, notConfiguredMessage)
		return
	}

	var req chatRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := session.ValidateMessage(req.Message); err != nil {
		Error(w, http.StatusBadRequest, "Message cannot be empty.")
		return
	}

	// An exchange abandoned halfway would leave the page mid-response for the
	// next caller, so it runs to completion even if the client disconnects.
	ex, err := h.sender.Send(context.WithoutCancel(r.Context()), req.Message)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, session.ErrNotReady):
			status = http.StatusServiceUnavailable
		case errors.Is(err, session.ErrInvalidInput):
			status = http.StatusBadRequest
		}
		Error(w, status, err.Error())
		return
	}

	JSON(w, http.StatusOK, chatResponse{
		Message:  req.Message,
		Response: ex.Response,
		Bot:      ex.Target,
	})
}
