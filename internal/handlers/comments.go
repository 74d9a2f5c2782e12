package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"trackhub-backend/internal/authz"
	"trackhub-backend/internal/models"
)

func (h *Handler) ListComments(w http.ResponseWriter, r *http.Request) {
	_, _, projectID, ok := h.requireProjectAccess(w, r)
	if !ok {
		return
	}
	ticketID := chi.URLParam(r, "ticketID")

	if _, err := h.storage.GetTicket(r.Context(), projectID, ticketID); err != nil {
		httpError(w, err)
		return
	}

	comments, err := h.storage.ListComments(r.Context(), ticketID)
	if err != nil {
		httpError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, comments)
}

func (h *Handler) CreateComment(w http.ResponseWriter, r *http.Request) {
	uid, orgID, projectID, ok := h.requireProjectAccess(w, r)
	if !ok {
		return
	}
	ticketID := chi.URLParam(r, "ticketID")

	var input models.CreateCommentInput
	if !decodeValid(w, r, &input) {
		return
	}

	ticket, err := h.storage.GetTicket(r.Context(), projectID, ticketID)
	if err != nil {
		httpError(w, err)
		return
	}

	comment, err := h.storage.CreateComment(r.Context(), ticketID, uid, input.Body)
	if err != nil {
		httpError(w, err)
		return
	}

	h.events.Publish(orgID, uid, models.ActivityCommentCreated, comment.ID, "comment on "+ticket.Key, &projectID)

	respondJSON(w, http.StatusCreated, comment)
}

// DeleteComment allows the author to delete their own comment; anyone
// else needs canRemoveMembers (admin or owner).
func (h *Handler) DeleteComment(w http.ResponseWriter, r *http.Request) {
	uid, orgID, projectID, ok := h.requireProjectAccess(w, r)
	if !ok {
		return
	}
	ticketID := chi.URLParam(r, "ticketID")
	commentID := chi.URLParam(r, "commentID")

	if _, err := h.storage.GetTicket(r.Context(), projectID, ticketID); err != nil {
		httpError(w, err)
		return
	}

	comment, err := h.storage.GetComment(r.Context(), ticketID, commentID)
	if err != nil {
		httpError(w, err)
		return
	}

	if comment.AuthorID != uid {
		if err := h.authz.RequirePermission(r.Context(), uid, orgID, authz.CapRemoveMembers); err != nil {
			httpError(w, err)
			return
		}
	}

	if err := h.storage.DeleteComment(r.Context(), ticketID, commentID); err != nil {
		httpError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "comment deleted"})
}

func (h *Handler) ListLabels(w http.ResponseWriter, r *http.Request) {
	_, _, projectID, ok := h.requireProjectAccess(w, r)
	if !ok {
		return
	}

	labels, err := h.storage.ListLabels(r.Context(), projectID)
	if err != nil {
		httpError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, labels)
}

func (h *Handler) CreateLabel(w http.ResponseWriter, r *http.Request) {
	_, _, projectID, ok := h.requireProjectAccess(w, r)
	if !ok {
		return
	}

	var input models.CreateLabelInput
	if !decodeValid(w, r, &input) {
		return
	}

	label, err := h.storage.CreateLabel(r.Context(), projectID, input)
	if err != nil {
		httpError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, label)
}

func (h *Handler) DeleteLabel(w http.ResponseWriter, r *http.Request) {
	_, _, projectID, ok := h.requireProjectAccess(w, r)
	if !ok {
		return
	}
	labelID := chi.URLParam(r, "labelID")

	if err := h.storage.DeleteLabel(r.Context(), projectID, labelID); err != nil {
		httpError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "label deleted"})
}
