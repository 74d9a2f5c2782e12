package authz

import (
	"context"
	"errors"

	"trackhub-backend/internal/models"
)

var (
	// ErrAccessDenied means the caller is authenticated but lacks the
	// required role or membership.
	ErrAccessDenied = errors.New("access denied")
	// ErrInvalidOperation means the request is semantically disallowed
	// even for an authorized caller, e.g. removing the organization
	// owner or the project lead.
	ErrInvalidOperation = errors.New("invalid operation")
)

// Capability is a named permission checked against an organization.
type Capability string

const (
	CapChangeRoles        Capability = "canChangeRoles"
	CapRemoveMembers      Capability = "canRemoveMembers"
	CapManageIntegrations Capability = "canManageIntegrations"
)

var knownCapabilities = map[Capability]struct{}{
	CapChangeRoles:        {},
	CapRemoveMembers:      {},
	CapManageIntegrations: {},
}

// MembershipStore is the read side the evaluator consults. Lookups are
// always fresh; authorization decisions are never served from a cache.
type MembershipStore interface {
	GetOrganization(ctx context.Context, orgID string) (*models.Organization, error)
	// GetOrganizationMemberRole returns the stored role for (userID,
	// orgID), or ("", nil) when no membership row exists.
	GetOrganizationMemberRole(ctx context.Context, orgID, userID string) (models.OrgRole, error)
	GetProject(ctx context.Context, projectID string) (*models.Project, error)
}

// Evaluator decides whether a user may perform a capability against an
// organization or project. It is read-only and carries no state beyond
// the store handle.
type Evaluator struct {
	store MembershipStore
}

func NewEvaluator(store MembershipStore) *Evaluator {
	return &Evaluator{store: store}
}

// IsOwner reports whether userID owns the organization. A missing
// organization is treated as "not owner"; callers validate existence
// separately.
func (e *Evaluator) IsOwner(ctx context.Context, userID, orgID string) bool {
	org, err := e.store.GetOrganization(ctx, orgID)
	if err != nil || org == nil {
		return false
	}
	return org.OwnerID == userID
}

// RequireMembership is the floor check for all organization-scoped
// access: a membership row must exist, or the caller must be the owner.
func (e *Evaluator) RequireMembership(ctx context.Context, userID, orgID string) error {
	if e.IsOwner(ctx, userID, orgID) {
		return nil
	}
	role, err := e.store.GetOrganizationMemberRole(ctx, orgID, userID)
	if err != nil {
		return err
	}
	if role == "" {
		return ErrAccessDenied
	}
	return nil
}

// RequirePermission checks a capability. The owner implicitly holds
// every capability regardless of the stored role row, including when the
// row is absent or stale. Otherwise only a stored ADMIN role passes;
// MEMBER fails every capability in the current set. Unknown capability
// names are denied outright.
func (e *Evaluator) RequirePermission(ctx context.Context, userID, orgID string, capability Capability) error {
	if _, ok := knownCapabilities[capability]; !ok {
		return ErrAccessDenied
	}
	if e.IsOwner(ctx, userID, orgID) {
		return nil
	}
	role, err := e.store.GetOrganizationMemberRole(ctx, orgID, userID)
	if err != nil {
		return err
	}
	if role != models.RoleAdmin {
		return ErrAccessDenied
	}
	return nil
}

// IsProjectLead reports whether userID is the lead of the project. The
// lead gate is independent of organization role: an org ADMIN who is not
// the lead is not authorized by this check.
func (e *Evaluator) IsProjectLead(ctx context.Context, userID, projectID string) bool {
	project, err := e.store.GetProject(ctx, projectID)
	if err != nil || project == nil || project.LeadID == nil {
		return false
	}
	return *project.LeadID == userID
}

// EnsureMemberMutable rejects mutations that target the organization
// owner's membership. Owner status is immutable through the membership
// pathway, even for the owner themself.
func (e *Evaluator) EnsureMemberMutable(org *models.Organization, targetUserID string) error {
	if org.OwnerID == targetUserID {
		return ErrInvalidOperation
	}
	return nil
}

// EnsureProjectMemberRemovable rejects removal of the project lead.
// Leadership has to be transferred before the lead's membership row can
// be deleted.
func (e *Evaluator) EnsureProjectMemberRemovable(project *models.Project, targetUserID string) error {
	if project.LeadID != nil && *project.LeadID == targetUserID {
		return ErrInvalidOperation
	}
	return nil
}
