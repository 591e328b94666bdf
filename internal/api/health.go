package api

import (
	"net/http"
	"time"

	"github.com/nuan-odoo/wrapperAI/internal/domain"
)

type healthResponse struct {
	Status     string     `json:"status"`
	Configured bool       `json:"configured"`
	ActiveBot  *string    `json:"active_bot"`
	State      string     `json:"state"`
	ReadySince *time.Time `json:"ready_since,omitempty"`
}

// Health reports whether the session is ready and which target it drives.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	st := h.ctrl.Status()
	resp := healthResponse{
		Status:     "ok",
		Configured: st.Configured(),
		State:      string(st.Readiness),
	}
	if st.Configured() {
		target := st.Target
		resp.ActiveBot = &target
		if !st.ReadySince.IsZero() {
			since := st.ReadySince.UTC()
			resp.ReadySince = &since
		}
	}
	JSON(w, http.StatusOK, resp)
}

type targetResponse struct {
	ID   string          `json:"id"`
	URL  string          `json:"url"`
	Auth domain.AuthMode `json:"auth"`
}

// Targets lists the built-in chatbot profiles for the setup form.
func (h *Handler) Targets(w http.ResponseWriter, r *http.Request) {
	profiles := domain.Profiles()
	out := make([]targetResponse, 0, len(profiles))
	for _, p := range profiles {
		out = append(out, targetResponse{ID: p.ID, URL: p.URL, Auth: p.Auth})
	}
	JSON(w, http.StatusOK, map[string]interface{}{"targets": out})
}
