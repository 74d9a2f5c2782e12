package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"trackhub-backend/internal/authz"
	"trackhub-backend/internal/models"
)

func (h *Handler) ListIntegrations(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	orgID := chi.URLParam(r, "orgID")

	if err := h.authz.RequireMembership(r.Context(), uid, orgID); err != nil {
		httpError(w, err)
		return
	}

	integrationList, err := h.storage.ListIntegrations(r.Context(), orgID)
	if err != nil {
		httpError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, integrationList)
}

// SyncIntegration asks a connected agent to re-sync over the RPC
// channel and relays the result.
func (h *Handler) SyncIntegration(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	orgID := chi.URLParam(r, "orgID")
	integrationID := chi.URLParam(r, "integrationID")

	if err := h.authz.RequirePermission(r.Context(), uid, orgID, authz.CapManageIntegrations); err != nil {
		httpError(w, err)
		return
	}

	integration, err := h.storage.GetIntegration(r.Context(), integrationID)
	if err != nil {
		httpError(w, err)
		return
	}
	if integration == nil || integration.OrgID != orgID {
		respondError(w, http.StatusNotFound, "not found")
		return
	}

	timeoutMS := 0
	if raw := r.URL.Query().Get("timeout_ms"); raw != "" {
		timeoutMS, _ = strconv.Atoi(raw)
	}

	resp, err := h.rpc.Sync(integrationID, timeoutMS)
	if err != nil {
		httpError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

func (h *Handler) ListEnrollmentTokens(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	orgID := chi.URLParam(r, "orgID")

	if err := h.authz.RequirePermission(r.Context(), uid, orgID, authz.CapManageIntegrations); err != nil {
		httpError(w, err)
		return
	}

	tokens, err := h.storage.ListEnrollmentTokens(r.Context(), orgID)
	if err != nil {
		httpError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, tokens)
}

// CreateEnrollmentToken mints an enrollment token. The plaintext token
// is returned exactly once; only its bcrypt hash is stored.
func (h *Handler) CreateEnrollmentToken(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	orgID := chi.URLParam(r, "orgID")

	var input models.CreateEnrollmentTokenInput
	if !decodeValid(w, r, &input) {
		return
	}

	if err := h.authz.RequirePermission(r.Context(), uid, orgID, authz.CapManageIntegrations); err != nil {
		httpError(w, err)
		return
	}

	if _, err := h.storage.GetOrganizationProject(r.Context(), orgID, input.ProjectID); err != nil {
		httpError(w, err)
		return
	}

	resp, err := h.storage.CreateEnrollmentToken(r.Context(), orgID, uid, input)
	if err != nil {
		httpError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, resp)
}

func (h *Handler) RevokeEnrollmentToken(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	orgID := chi.URLParam(r, "orgID")
	tokenID := chi.URLParam(r, "tokenID")

	if err := h.authz.RequirePermission(r.Context(), uid, orgID, authz.CapManageIntegrations); err != nil {
		httpError(w, err)
		return
	}

	if err := h.storage.RevokeEnrollmentToken(r.Context(), orgID, tokenID); err != nil {
		httpError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "token revoked"})
}
