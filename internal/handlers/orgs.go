package handlers

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"trackhub-backend/internal/authz"
	"trackhub-backend/internal/models"
)

// ListOrganizations godoc
// @Summary List organizations the caller belongs to
// @Tags organizations
// @Produce json
// @Success 200 {array} models.Organization
// @Security BearerAuth
// @Router /v1/organizations [get]
func (h *Handler) ListOrganizations(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}

	orgs, err := h.storage.ListUserOrganizations(r.Context(), uid)
	if err != nil {
		httpError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, orgs)
}

// CreateOrganization godoc
// @Summary Create an organization
// @Tags organizations
// @Accept json
// @Produce json
// @Param request body models.CreateOrganizationInput true "Organization"
// @Success 201 {object} models.Organization
// @Security BearerAuth
// @Router /v1/organizations [post]
func (h *Handler) CreateOrganization(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}

	var input models.CreateOrganizationInput
	if !decodeValid(w, r, &input) {
		return
	}

	org, err := h.storage.CreateOrganization(r.Context(), uid, input)
	if err != nil {
		httpError(w, err)
		return
	}

	// The owner also gets an explicit ADMIN member row so listings show
	// them; authorization never depends on it.
	if _, err := h.storage.AddOrganizationMember(r.Context(), org.ID, uid, models.RoleAdmin); err != nil {
		log.Printf("WARN Owner member row error for org %s: %v", org.ID, err)
	}

	respondJSON(w, http.StatusCreated, org)
}

func (h *Handler) GetOrganization(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	orgID := chi.URLParam(r, "orgID")

	if err := h.authz.RequireMembership(r.Context(), uid, orgID); err != nil {
		httpError(w, err)
		return
	}

	org, err := h.storage.GetOrganization(r.Context(), orgID)
	if err != nil {
		httpError(w, err)
		return
	}
	if org == nil {
		respondError(w, http.StatusNotFound, "not found")
		return
	}
	respondJSON(w, http.StatusOK, org)
}

func (h *Handler) UpdateOrganization(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	orgID := chi.URLParam(r, "orgID")

	var input models.UpdateOrganizationInput
	if !decodeValid(w, r, &input) {
		return
	}

	if err := h.authz.RequirePermission(r.Context(), uid, orgID, authz.CapChangeRoles); err != nil {
		httpError(w, err)
		return
	}

	org, err := h.storage.UpdateOrganization(r.Context(), orgID, input.Name)
	if err != nil {
		httpError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, org)
}

// DeleteOrganization is owner-only; there is no capability that grants
// it to an ADMIN.
func (h *Handler) DeleteOrganization(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	orgID := chi.URLParam(r, "orgID")

	org, err := h.storage.GetOrganization(r.Context(), orgID)
	if err != nil {
		httpError(w, err)
		return
	}
	if org == nil {
		respondError(w, http.StatusNotFound, "not found")
		return
	}
	if org.OwnerID != uid {
		respondError(w, http.StatusForbidden, "access denied")
		return
	}

	if err := h.storage.DeleteOrganization(r.Context(), orgID); err != nil {
		httpError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "organization deleted"})
}
