package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"trackhub-backend/internal/models"
)

// requireProjectAccess is the shared floor for project-scoped reads and
// writes: org membership plus a parent-consistent project row.
func (h *Handler) requireProjectAccess(w http.ResponseWriter, r *http.Request) (uid, orgID, projectID string, ok bool) {
	uid, ok = userID(w, r)
	if !ok {
		return "", "", "", false
	}
	orgID = chi.URLParam(r, "orgID")
	projectID = chi.URLParam(r, "projectID")

	if err := h.authz.RequireMembership(r.Context(), uid, orgID); err != nil {
		httpError(w, err)
		return "", "", "", false
	}
	if _, err := h.storage.GetOrganizationProject(r.Context(), orgID, projectID); err != nil {
		httpError(w, err)
		return "", "", "", false
	}
	return uid, orgID, projectID, true
}

func (h *Handler) ListSprints(w http.ResponseWriter, r *http.Request) {
	_, _, projectID, ok := h.requireProjectAccess(w, r)
	if !ok {
		return
	}

	sprints, err := h.storage.ListSprints(r.Context(), projectID)
	if err != nil {
		httpError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, sprints)
}

func (h *Handler) CreateSprint(w http.ResponseWriter, r *http.Request) {
	uid, orgID, projectID, ok := h.requireProjectAccess(w, r)
	if !ok {
		return
	}

	var input models.CreateSprintInput
	if !decodeValid(w, r, &input) {
		return
	}

	sprint, err := h.storage.CreateSprint(r.Context(), projectID, input)
	if err != nil {
		httpError(w, err)
		return
	}

	h.invalidateProjectMeta(orgID, projectID)
	h.events.Publish(orgID, uid, models.ActivitySprintCreated, sprint.ID, "sprint "+sprint.Name+" created", &projectID)

	respondJSON(w, http.StatusCreated, sprint)
}

func (h *Handler) GetSprint(w http.ResponseWriter, r *http.Request) {
	_, _, projectID, ok := h.requireProjectAccess(w, r)
	if !ok {
		return
	}
	sprintID := chi.URLParam(r, "sprintID")

	sprint, err := h.storage.GetSprint(r.Context(), projectID, sprintID)
	if err != nil {
		httpError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, sprint)
}

func (h *Handler) UpdateSprint(w http.ResponseWriter, r *http.Request) {
	uid, orgID, projectID, ok := h.requireProjectAccess(w, r)
	if !ok {
		return
	}
	sprintID := chi.URLParam(r, "sprintID")

	var input models.UpdateSprintInput
	if !decodeValid(w, r, &input) {
		return
	}

	sprint, err := h.storage.UpdateSprint(r.Context(), projectID, sprintID, input)
	if err != nil {
		httpError(w, err)
		return
	}

	if input.Closed != nil && *input.Closed {
		h.events.Publish(orgID, uid, models.ActivitySprintClosed, sprint.ID, "sprint "+sprint.Name+" closed", &projectID)
	}

	respondJSON(w, http.StatusOK, sprint)
}

func (h *Handler) DeleteSprint(w http.ResponseWriter, r *http.Request) {
	_, orgID, projectID, ok := h.requireProjectAccess(w, r)
	if !ok {
		return
	}
	sprintID := chi.URLParam(r, "sprintID")

	if err := h.storage.DeleteSprint(r.Context(), projectID, sprintID); err != nil {
		httpError(w, err)
		return
	}

	h.invalidateProjectMeta(orgID, projectID)

	respondJSON(w, http.StatusOK, map[string]string{"message": "sprint deleted"})
}
