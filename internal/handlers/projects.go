package handlers

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"trackhub-backend/internal/authz"
	"trackhub-backend/internal/models"
)

func (h *Handler) ListProjects(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	orgID := chi.URLParam(r, "orgID")

	if err := h.authz.RequireMembership(r.Context(), uid, orgID); err != nil {
		httpError(w, err)
		return
	}

	projects, err := h.storage.ListProjects(r.Context(), orgID)
	if err != nil {
		httpError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, projects)
}

func (h *Handler) CreateProject(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	orgID := chi.URLParam(r, "orgID")

	var input models.CreateProjectInput
	if !decodeValid(w, r, &input) {
		return
	}

	if err := h.authz.RequirePermission(r.Context(), uid, orgID, authz.CapChangeRoles); err != nil {
		httpError(w, err)
		return
	}

	project, err := h.storage.CreateProject(r.Context(), orgID, input)
	if err != nil {
		httpError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, project)
}

func (h *Handler) GetProject(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	orgID := chi.URLParam(r, "orgID")
	projectID := chi.URLParam(r, "projectID")

	if err := h.authz.RequireMembership(r.Context(), uid, orgID); err != nil {
		httpError(w, err)
		return
	}

	project, err := h.storage.GetOrganizationProject(r.Context(), orgID, projectID)
	if err != nil {
		httpError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, project)
}

// GetProjectMeta serves the navigation summary through the read-through
// cache. Staleness is bounded by the cache TTL; never consulted for
// authorization.
func (h *Handler) GetProjectMeta(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	orgID := chi.URLParam(r, "orgID")
	projectID := chi.URLParam(r, "projectID")

	if err := h.authz.RequireMembership(r.Context(), uid, orgID); err != nil {
		httpError(w, err)
		return
	}

	if meta, err := h.cache.GetProjectMeta(orgID, projectID); err == nil && meta != nil {
		respondJSON(w, http.StatusOK, meta)
		return
	}

	meta, err := h.storage.GetProjectMeta(r.Context(), orgID, projectID)
	if err != nil {
		httpError(w, err)
		return
	}

	if err := h.cache.SetProjectMeta(meta); err != nil {
		log.Printf("WARN Project meta cache set error: %v", err)
	}

	respondJSON(w, http.StatusOK, meta)
}

func (h *Handler) UpdateProject(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	orgID := chi.URLParam(r, "orgID")
	projectID := chi.URLParam(r, "projectID")

	var input models.UpdateProjectInput
	if !decodeValid(w, r, &input) {
		return
	}

	if err := h.authz.RequirePermission(r.Context(), uid, orgID, authz.CapChangeRoles); err != nil {
		httpError(w, err)
		return
	}

	project, err := h.storage.UpdateProject(r.Context(), orgID, projectID, input)
	if err != nil {
		httpError(w, err)
		return
	}

	h.invalidateProjectMeta(orgID, projectID)

	respondJSON(w, http.StatusOK, project)
}

func (h *Handler) DeleteProject(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	orgID := chi.URLParam(r, "orgID")
	projectID := chi.URLParam(r, "projectID")

	if err := h.authz.RequirePermission(r.Context(), uid, orgID, authz.CapRemoveMembers); err != nil {
		httpError(w, err)
		return
	}

	if err := h.storage.DeleteProject(r.Context(), orgID, projectID); err != nil {
		httpError(w, err)
		return
	}

	h.invalidateProjectMeta(orgID, projectID)

	respondJSON(w, http.StatusOK, map[string]string{"message": "project deleted"})
}

// TransferProjectLead reassigns leadership. Current lead or an org
// admin/owner may transfer; the new lead must be an org member.
func (h *Handler) TransferProjectLead(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	orgID := chi.URLParam(r, "orgID")
	projectID := chi.URLParam(r, "projectID")

	var input models.TransferLeadInput
	if !decodeValid(w, r, &input) {
		return
	}

	if _, err := h.storage.GetOrganizationProject(r.Context(), orgID, projectID); err != nil {
		httpError(w, err)
		return
	}

	if !h.authz.IsProjectLead(r.Context(), uid, projectID) {
		if err := h.authz.RequirePermission(r.Context(), uid, orgID, authz.CapChangeRoles); err != nil {
			httpError(w, err)
			return
		}
	}

	if err := h.authz.RequireMembership(r.Context(), input.LeadID, orgID); err != nil {
		respondError(w, http.StatusBadRequest, "new lead must be an organization member")
		return
	}

	project, err := h.storage.SetProjectLead(r.Context(), orgID, projectID, input.LeadID)
	if err != nil {
		httpError(w, err)
		return
	}

	h.invalidateProjectMeta(orgID, projectID)

	respondJSON(w, http.StatusOK, project)
}

func (h *Handler) ListProjectMembers(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	orgID := chi.URLParam(r, "orgID")
	projectID := chi.URLParam(r, "projectID")

	if err := h.authz.RequireMembership(r.Context(), uid, orgID); err != nil {
		httpError(w, err)
		return
	}
	if _, err := h.storage.GetOrganizationProject(r.Context(), orgID, projectID); err != nil {
		httpError(w, err)
		return
	}

	members, err := h.storage.ListProjectMembers(r.Context(), projectID)
	if err != nil {
		httpError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, members)
}

func (h *Handler) AddProjectMember(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	orgID := chi.URLParam(r, "orgID")
	projectID := chi.URLParam(r, "projectID")

	var input models.AddProjectMemberInput
	if !decodeValid(w, r, &input) {
		return
	}

	if _, err := h.storage.GetOrganizationProject(r.Context(), orgID, projectID); err != nil {
		httpError(w, err)
		return
	}

	if !h.authz.IsProjectLead(r.Context(), uid, projectID) {
		if err := h.authz.RequirePermission(r.Context(), uid, orgID, authz.CapChangeRoles); err != nil {
			httpError(w, err)
			return
		}
	}

	if err := h.authz.RequireMembership(r.Context(), input.UserID, orgID); err != nil {
		respondError(w, http.StatusBadRequest, "user must be an organization member")
		return
	}

	member, err := h.storage.AddProjectMember(r.Context(), projectID, input.UserID)
	if err != nil {
		httpError(w, err)
		return
	}

	h.invalidateProjectMeta(orgID, projectID)

	respondJSON(w, http.StatusCreated, member)
}

// RemoveProjectMember requires org membership plus project leadership;
// an org ADMIN who is not the lead is not authorized. The lead cannot be
// removed without transferring leadership first.
func (h *Handler) RemoveProjectMember(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	orgID := chi.URLParam(r, "orgID")
	projectID := chi.URLParam(r, "projectID")
	memberID := chi.URLParam(r, "memberID")

	if err := h.authz.RequireMembership(r.Context(), uid, orgID); err != nil {
		httpError(w, err)
		return
	}

	project, err := h.storage.GetOrganizationProject(r.Context(), orgID, projectID)
	if err != nil {
		httpError(w, err)
		return
	}

	member, err := h.storage.GetProjectMember(r.Context(), projectID, memberID)
	if err != nil {
		httpError(w, err)
		return
	}

	if !h.authz.IsProjectLead(r.Context(), uid, projectID) {
		respondError(w, http.StatusForbidden, "access denied")
		return
	}

	if err := h.authz.EnsureProjectMemberRemovable(project, member.UserID); err != nil {
		httpError(w, err)
		return
	}

	if err := h.storage.DeleteProjectMember(r.Context(), projectID, memberID); err != nil {
		httpError(w, err)
		return
	}

	h.invalidateProjectMeta(orgID, projectID)

	respondJSON(w, http.StatusOK, map[string]string{"message": "project member removed"})
}

func (h *Handler) invalidateProjectMeta(orgID, projectID string) {
	if err := h.cache.InvalidateProjectMeta(orgID, projectID); err != nil {
		log.Printf("WARN Project meta invalidate error: %v", err)
	}
}
