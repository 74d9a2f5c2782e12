package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"trackhub-backend/internal/models"
)

func (h *Handler) ListTickets(w http.ResponseWriter, r *http.Request) {
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

	sprintID := r.URL.Query().Get("sprint_id")
	status := r.URL.Query().Get("status")
	if status != "" && !models.ValidTicketStatus(status) {
		respondError(w, http.StatusBadRequest, "invalid status filter")
		return
	}

	tickets, err := h.storage.ListTickets(r.Context(), projectID, sprintID, status)
	if err != nil {
		httpError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, tickets)
}

func (h *Handler) CreateTicket(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	orgID := chi.URLParam(r, "orgID")
	projectID := chi.URLParam(r, "projectID")

	var input models.CreateTicketInput
	if !decodeValid(w, r, &input) {
		return
	}

	if err := h.authz.RequireMembership(r.Context(), uid, orgID); err != nil {
		httpError(w, err)
		return
	}
	if _, err := h.storage.GetOrganizationProject(r.Context(), orgID, projectID); err != nil {
		httpError(w, err)
		return
	}

	ticket, err := h.storage.CreateTicket(r.Context(), orgID, projectID, uid, input)
	if err != nil {
		httpError(w, err)
		return
	}

	h.invalidateProjectMeta(orgID, projectID)
	h.events.Publish(orgID, uid, models.ActivityTicketCreated, ticket.ID, ticket.Key+" "+ticket.Title, &projectID)

	respondJSON(w, http.StatusCreated, ticket)
}

func (h *Handler) GetTicket(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	orgID := chi.URLParam(r, "orgID")
	projectID := chi.URLParam(r, "projectID")
	ticketID := chi.URLParam(r, "ticketID")

	if err := h.authz.RequireMembership(r.Context(), uid, orgID); err != nil {
		httpError(w, err)
		return
	}
	if _, err := h.storage.GetOrganizationProject(r.Context(), orgID, projectID); err != nil {
		httpError(w, err)
		return
	}

	ticket, err := h.storage.GetTicket(r.Context(), projectID, ticketID)
	if err != nil {
		httpError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, ticket)
}

func (h *Handler) UpdateTicket(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	orgID := chi.URLParam(r, "orgID")
	projectID := chi.URLParam(r, "projectID")
	ticketID := chi.URLParam(r, "ticketID")

	var input models.UpdateTicketInput
	if !decodeValid(w, r, &input) {
		return
	}

	if err := h.authz.RequireMembership(r.Context(), uid, orgID); err != nil {
		httpError(w, err)
		return
	}
	if _, err := h.storage.GetOrganizationProject(r.Context(), orgID, projectID); err != nil {
		httpError(w, err)
		return
	}

	ticket, err := h.storage.UpdateTicket(r.Context(), projectID, ticketID, input)
	if err != nil {
		httpError(w, err)
		return
	}

	h.events.Publish(orgID, uid, models.ActivityTicketUpdated, ticket.ID, ticket.Key+" updated", &projectID)

	respondJSON(w, http.StatusOK, ticket)
}

func (h *Handler) DeleteTicket(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	orgID := chi.URLParam(r, "orgID")
	projectID := chi.URLParam(r, "projectID")
	ticketID := chi.URLParam(r, "ticketID")

	if err := h.authz.RequireMembership(r.Context(), uid, orgID); err != nil {
		httpError(w, err)
		return
	}
	if _, err := h.storage.GetOrganizationProject(r.Context(), orgID, projectID); err != nil {
		httpError(w, err)
		return
	}

	if err := h.storage.DeleteTicket(r.Context(), projectID, ticketID); err != nil {
		httpError(w, err)
		return
	}

	h.invalidateProjectMeta(orgID, projectID)
	h.events.Publish(orgID, uid, models.ActivityTicketDeleted, ticketID, "ticket deleted", &projectID)

	respondJSON(w, http.StatusOK, map[string]string{"message": "ticket deleted"})
}

// ReorderTickets persists a board column's new top-to-bottom order as
// synthetic sort_key timestamps.
func (h *Handler) ReorderTickets(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	orgID := chi.URLParam(r, "orgID")
	projectID := chi.URLParam(r, "projectID")

	var input models.ReorderTicketsInput
	if !decodeValid(w, r, &input) {
		return
	}

	if err := h.authz.RequireMembership(r.Context(), uid, orgID); err != nil {
		httpError(w, err)
		return
	}
	if _, err := h.storage.GetOrganizationProject(r.Context(), orgID, projectID); err != nil {
		httpError(w, err)
		return
	}

	if err := h.storage.ReorderTickets(r.Context(), projectID, input.Status, input.TicketIDs); err != nil {
		httpError(w, err)
		return
	}

	h.events.Publish(orgID, uid, models.ActivityTicketReordered, projectID, input.Status+" column reordered", &projectID)

	respondJSON(w, http.StatusOK, map[string]string{"message": "tickets reordered"})
}

// TriageTicket asks the triage model for a priority and label
// suggestion. Advisory only; nothing is written.
func (h *Handler) TriageTicket(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	orgID := chi.URLParam(r, "orgID")
	projectID := chi.URLParam(r, "projectID")
	ticketID := chi.URLParam(r, "ticketID")

	if err := h.authz.RequireMembership(r.Context(), uid, orgID); err != nil {
		httpError(w, err)
		return
	}
	if _, err := h.storage.GetOrganizationProject(r.Context(), orgID, projectID); err != nil {
		httpError(w, err)
		return
	}

	ticket, err := h.storage.GetTicket(r.Context(), projectID, ticketID)
	if err != nil {
		httpError(w, err)
		return
	}

	suggestion, err := h.triageClient.TriageTicket(ticket)
	if err != nil {
		httpError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, suggestion)
}
