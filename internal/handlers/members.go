package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"trackhub-backend/internal/authz"
	"trackhub-backend/internal/models"
)

// memberStore is the slice of storage the member endpoints touch.
// Narrow so the guard ordering on these endpoints stays testable with
// fakes.
type memberStore interface {
	GetOrganization(ctx context.Context, orgID string) (*models.Organization, error)
	GetOrganizationMember(ctx context.Context, orgID, memberID string) (*models.OrganizationMember, error)
	ListOrganizationMembers(ctx context.Context, orgID string) ([]models.OrganizationMember, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	AddOrganizationMember(ctx context.Context, orgID, userID string, role models.OrgRole) (*models.OrganizationMember, error)
	UpdateOrganizationMemberRole(ctx context.Context, orgID, memberID string, role models.OrgRole) (*models.OrganizationMember, error)
	DeleteOrganizationMember(ctx context.Context, orgID, memberID string) error
}

func (h *Handler) ListMembers(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	orgID := chi.URLParam(r, "orgID")

	if err := h.authz.RequireMembership(r.Context(), uid, orgID); err != nil {
		httpError(w, err)
		return
	}

	members, err := h.members.ListOrganizationMembers(r.Context(), orgID)
	if err != nil {
		httpError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, members)
}

// AddMember invites a user by email. Direct add: the user must already
// have an account.
func (h *Handler) AddMember(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	orgID := chi.URLParam(r, "orgID")

	var input models.AddMemberInput
	if !decodeValid(w, r, &input) {
		return
	}

	if err := h.authz.RequirePermission(r.Context(), uid, orgID, authz.CapChangeRoles); err != nil {
		httpError(w, err)
		return
	}

	user, err := h.members.GetUserByEmail(r.Context(), input.Email)
	if err != nil {
		httpError(w, err)
		return
	}
	if user == nil {
		respondError(w, http.StatusNotFound, "no account with that email")
		return
	}

	member, err := h.members.AddOrganizationMember(r.Context(), orgID, user.ID, models.OrgRole(input.Role))
	if err != nil {
		httpError(w, err)
		return
	}

	h.events.Publish(orgID, uid, models.ActivityMemberAdded, member.ID, user.Email+" joined", nil)

	respondJSON(w, http.StatusCreated, member)
}

// UpdateMemberRole changes a member's stored role. Gate order: resolve
// the member row scoped to the organization (404 on mismatch), check
// canChangeRoles, then reject owner targets.
func (h *Handler) UpdateMemberRole(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	orgID := chi.URLParam(r, "orgID")
	memberID := chi.URLParam(r, "memberID")

	var input models.UpdateMemberRoleInput
	if !decodeValid(w, r, &input) {
		return
	}

	member, err := h.members.GetOrganizationMember(r.Context(), orgID, memberID)
	if err != nil {
		httpError(w, err)
		return
	}

	if err := h.authz.RequirePermission(r.Context(), uid, orgID, authz.CapChangeRoles); err != nil {
		httpError(w, err)
		return
	}

	org, err := h.members.GetOrganization(r.Context(), orgID)
	if err != nil {
		httpError(w, err)
		return
	}
	if org == nil {
		respondError(w, http.StatusNotFound, "not found")
		return
	}
	if err := h.authz.EnsureMemberMutable(org, member.UserID); err != nil {
		httpError(w, err)
		return
	}

	updated, err := h.members.UpdateOrganizationMemberRole(r.Context(), orgID, memberID, models.OrgRole(input.Role))
	if err != nil {
		httpError(w, err)
		return
	}

	h.events.Publish(orgID, uid, models.ActivityMemberUpdated, updated.ID, "role changed to "+input.Role, nil)

	respondJSON(w, http.StatusOK, updated)
}

// RemoveMember deletes a membership row. Self-removal skips the
// canRemoveMembers gate but still cannot touch the owner.
func (h *Handler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	orgID := chi.URLParam(r, "orgID")
	memberID := chi.URLParam(r, "memberID")

	member, err := h.members.GetOrganizationMember(r.Context(), orgID, memberID)
	if err != nil {
		httpError(w, err)
		return
	}

	if member.UserID != uid {
		if err := h.authz.RequirePermission(r.Context(), uid, orgID, authz.CapRemoveMembers); err != nil {
			httpError(w, err)
			return
		}
	}

	org, err := h.members.GetOrganization(r.Context(), orgID)
	if err != nil {
		httpError(w, err)
		return
	}
	if org == nil {
		respondError(w, http.StatusNotFound, "not found")
		return
	}
	if err := h.authz.EnsureMemberMutable(org, member.UserID); err != nil {
		httpError(w, err)
		return
	}

	if err := h.members.DeleteOrganizationMember(r.Context(), orgID, memberID); err != nil {
		httpError(w, err)
		return
	}

	h.events.Publish(orgID, uid, models.ActivityMemberRemoved, memberID, member.UserEmail+" removed", nil)

	respondJSON(w, http.StatusOK, map[string]string{"message": "member removed"})
}
