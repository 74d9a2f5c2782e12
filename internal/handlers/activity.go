package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// ListActivity returns the organization's activity feed, newest first.
func (h *Handler) ListActivity(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	orgID := chi.URLParam(r, "orgID")

	if err := h.authz.RequireMembership(r.Context(), uid, orgID); err != nil {
		httpError(w, err)
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, _ = strconv.Atoi(raw)
	}

	events, err := h.storage.ListActivityEvents(r.Context(), orgID, limit)
	if err != nil {
		httpError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, events)
}
