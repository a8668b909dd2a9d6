package handlers

import (
	"net/http"

	"github.com/pointme/pointme/libs/auth"
	"github.com/pointme/pointme/libs/httpx"
)

// AdminSettings reads (GET) or partially updates (PUT) the platform
// settings. Keys absent from the PUT body keep their current value.
func (h *Handler) AdminSettings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	switch r.Method {
	case http.MethodGet:
		httpx.WriteJSON(w, http.StatusOK, h.settings(ctx))
	case http.MethodPut:
		if h.SettingsStore == nil {
			httpx.WriteError(w, http.StatusServiceUnavailable, "settings store not configured", "settings_disabled", nil)
			return
		}
		current, err := h.SettingsStore.Current(ctx)
		if err != nil {
			h.writeError(w, r, "update settings", err)
			return
		}
		next := current
		if err := httpx.DecodeJSON(r, &next); err != nil {
			badJSON(w)
			return
		}
		p, _ := auth.PrincipalFromContext(ctx)
		saved, err := h.SettingsStore.Update(ctx, next, p.UserID)
		if err != nil {
			h.writeError(w, r, "update settings", err)
			return
		}
		h.Logger.Info("platform settings updated", "updated_by", p.UserID)
		httpx.WriteJSON(w, http.StatusOK, saved)
	default:
		methodNotAllowed(w)
	}
}
