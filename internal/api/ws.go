package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/coder/websocket"

	"github.com/nuan-odoo/wrapperAI/internal/middleware"
	"github.com/nuan-odoo/wrapperAI/internal/session"
)

const wsWriteTimeout = 10 * time.Second

const rateLimitedMessage = "rate limit exceeded"

// wsRequest is a client frame on /ws/chat.
type wsRequest struct {
	Type    string `json:"type,omitempty"`
	Message string `json:"message"`
}

type wsProgressFrame struct {
	Type string `json:"type"`
	session.Progress
}

type wsResponseFrame struct {
	Type string `json:"type"`
	chatResponse
	Ticks int `json:"ticks"`
}

type wsErrorFrame struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// ChatSocket upgrades to a WebSocket and runs one exchange per client frame,
// streaming progress frames while the response settles.
func (h *Handler) ChatSocket(w http.ResponseWriter, r *http.Request) {
	slog.Info("WebSocket connection request", "ip", r.RemoteAddr)

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: originPatterns(h.allowedOrigins),
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "session ended"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr)
		}
	}()

	ctx := r.Context()
	key := middleware.ClientKey(r)
	for {
		_, data, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				slog.Debug("WebSocket closed by client")
			} else {
				slog.Debug("WebSocket read error", "error", err)
			}
			return
		}

		var req wsRequest
		if err := json.Unmarshal(data, &req); err != nil {
			h.writeJSON(ctx, ws, wsErrorFrame{Type: "error", Error: "invalid frame"})
			continue
		}
		if req.Type == "ping" {
			h.writeJSON(ctx, ws, map[string]string{"type": "pong"})
			continue
		}
		if h.limiter != nil && !h.limiter.Allow(key) {
			h.writeJSON(ctx, ws, wsErrorFrame{Type: "error", Error: rateLimitedMessage})
			continue
		}
		h.serveExchange(ctx, ws, req.Message)
	}
}

func (h *Handler) serveExchange(ctx context.Context, ws *websocket.Conn, message string) {
	if !h.ctrl.Status().Configured() {
		h.writeJSON(ctx, ws, wsErrorFrame{Type: "error", Error: notConfiguredMessage})
		return
	}
	if err := session.ValidateMessage(message); err != nil {
		h.writeJSON(ctx, ws, wsErrorFrame{Type: "error", Error: "Message cannot be empty."})
		return
	}

	observer := session.WithObserver(func(p session.Progress) {
		h.writeJSON(ctx, ws, wsProgressFrame{Type: "progress", Progress: p})
	})
	ex, err := h.sender.Send(context.WithoutCancel(ctx), message, observer)
	if err != nil {
		h.writeJSON(ctx, ws, wsErrorFrame{Type: "error", Error: err.Error()})
		return
	}
	h.writeJSON(ctx, ws, wsResponseFrame{
		Type:         "response",
		chatResponse: chatResponse{Message: message, Response: ex.Response, Bot: ex.Target},
		Ticks:        ex.Ticks,
	})
}

// writeJSON sends v as a text frame. Failures only mean the client left.
func (h *Handler) writeJSON(ctx context.Context, ws *websocket.Conn, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("Failed to encode websocket frame", "error", err)
		return
	}
	if ctx.Err() != nil {
		return
	}
	writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	if err := ws.Write(writeCtx, websocket.MessageText, data); err != nil {
		slog.Debug("WebSocket write error", "error", err)
	}
}

// originPatterns turns configured CORS origins into websocket host patterns.
func originPatterns(allowed []string) []string {
	var patterns []string
	for _, o := range allowed {
		if o == "*" {
			return []string{"*"}
		}
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			patterns = append(patterns, u.Host)
		}
	}
	return patterns
}
