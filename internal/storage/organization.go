package storage

import (
	"context"
	"database/sql"
	"strings"

	"trackhub-backend/internal/models"
)

func (s *Storage) CreateOrganization(ctx context.Context, ownerID string, input models.CreateOrganizationInput) (*models.Organization, error) {
	query := `
		INSERT INTO organizations (name, slug, ticket_prefix, owner_id)
		VALUES ($1, $2, $3, $4)
		RETURNING id, name, slug, ticket_prefix, owner_id, created_at
	`

	var org models.Organization
	err := s.db.QueryRowContext(ctx, query, input.Name, input.Slug, input.TicketPrefix, ownerID).Scan(
		&org.ID,
		&org.Name,
		&org.Slug,
		&org.TicketPrefix,
		&org.OwnerID,
		&org.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			if strings.Contains(err.Error(), "ticket_prefix") {
				return nil, ErrPrefixTaken
			}
			return nil, ErrSlugTaken
		}
		return nil, err
	}

	return &org, nil
}

func (s *Storage) GetOrganization(ctx context.Context, id string) (*models.Organization, error) {
	query := `
		SELECT id, name, slug, ticket_prefix, owner_id, created_at
		FROM organizations
		WHERE id = $1
	`

	var org models.Organization
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&org.ID,
		&org.Name,
		&org.Slug,
		&org.TicketPrefix,
		&org.OwnerID,
		&org.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &org, nil
}

func (s *Storage) UpdateOrganization(ctx context.Context, id, name string) (*models.Organization, error) {
	query := `
		UPDATE organizations
		SET name = $1
		WHERE id = $2
		RETURNING id, name, slug, ticket_prefix, owner_id, created_at
	`

	var org models.Organization
	err := s.db.QueryRowContext(ctx, query, name, id).Scan(
		&org.ID,
		&org.Name,
		&org.Slug,
		&org.TicketPrefix,
		&org.OwnerID,
		&org.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrOrgNotFound
	}
	if err != nil {
		return nil, err
	}

	return &org, nil
}

func (s *Storage) DeleteOrganization(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM organizations WHERE id = $1`, id)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrOrgNotFound
	}
	return nil
}

func (s *Storage) ListUserOrganizations(ctx context.Context, userID string) ([]models.Organization, error) {
	query := `
		SELECT DISTINCT o.id, o.name, o.slug, o.ticket_prefix, o.owner_id, o.created_at
		FROM organizations o
		LEFT JOIN organization_members m ON m.org_id = o.id
		WHERE o.owner_id = $1 OR m.user_id = $1
		ORDER BY o.created_at
	`

	orgs := make([]models.Organization, 0)
	if err := s.db.SelectContext(ctx, &orgs, query, userID); err != nil {
		return nil, err
	}
	return orgs, nil
}

// GetOrganizationMemberRole returns the stored role, or "" when the user
// has no membership row. A missing row is not an error: ownership is
// checked separately by the evaluator.
func (s *Storage) GetOrganizationMemberRole(ctx context.Context, orgID, userID string) (models.OrgRole, error) {
	query := `
		SELECT role
		FROM organization_members
		WHERE org_id = $1 AND user_id = $2
	`

	var role models.OrgRole
	err := s.db.QueryRowContext(ctx, query, orgID, userID).Scan(&role)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return role, nil
}

// GetOrganizationMember resolves a membership row by id scoped to its
// organization. The org_id predicate is what prevents cross-tenant
// reference confusion: a valid member id under the wrong organization is
// a not-found, never a hit.
func (s *Storage) GetOrganizationMember(ctx context.Context, orgID, memberID string) (*models.OrganizationMember, error) {
	query := `
		SELECT m.id, m.org_id, m.user_id, m.role, m.created_at, u.email AS user_email, u.name AS user_name
		FROM organization_members m
		JOIN users u ON u.id = m.user_id
		WHERE m.id = $1 AND m.org_id = $2
	`

	var member models.OrganizationMember
	err := s.db.QueryRowContext(ctx, query, memberID, orgID).Scan(
		&member.ID,
		&member.OrgID,
		&member.UserID,
		&member.Role,
		&member.CreatedAt,
		&member.UserEmail,
		&member.UserName,
	)
	if err == sql.ErrNoRows {
		return nil, ErrMemberNotFound
	}
	if err != nil {
		return nil, err
	}

	return &member, nil
}

func (s *Storage) ListOrganizationMembers(ctx context.Context, orgID string) ([]models.OrganizationMember, error) {
	query := `
		SELECT m.id, m.org_id, m.user_id, m.role, m.created_at, u.email AS user_email, u.name AS user_name
		FROM organization_members m
		JOIN users u ON u.id = m.user_id
		WHERE m.org_id = $1
		ORDER BY m.created_at
	`

	members := make([]models.OrganizationMember, 0)
	if err := s.db.SelectContext(ctx, &members, query, orgID); err != nil {
		return nil, err
	}
	return members, nil
}

func (s *Storage) AddOrganizationMember(ctx context.Context, orgID, userID string, role models.OrgRole) (*models.OrganizationMember, error) {
	query := `
		INSERT INTO organization_members (org_id, user_id, role)
		VALUES ($1, $2, $3)
		RETURNING id, org_id, user_id, role, created_at
	`

	var member models.OrganizationMember
	err := s.db.QueryRowContext(ctx, query, orgID, userID, role).Scan(
		&member.ID,
		&member.OrgID,
		&member.UserID,
		&member.Role,
		&member.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrAlreadyMember
		}
		return nil, err
	}

	return &member, nil
}

func (s *Storage) UpdateOrganizationMemberRole(ctx context.Context, orgID, memberID string, role models.OrgRole) (*models.OrganizationMember, error) {
	query := `
		UPDATE organization_members
		SET role = $1
		WHERE id = $2 AND org_id = $3
		RETURNING id, org_id, user_id, role, created_at
	`

	var member models.OrganizationMember
	err := s.db.QueryRowContext(ctx, query, role, memberID, orgID).Scan(
		&member.ID,
		&member.OrgID,
		&member.UserID,
		&member.Role,
		&member.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrMemberNotFound
	}
	if err != nil {
		return nil, err
	}

	return &member, nil
}

func (s *Storage) DeleteOrganizationMember(ctx context.Context, orgID, memberID string) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM organization_members
		WHERE id = $1 AND org_id = $2
	`, memberID, orgID)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrMemberNotFound
	}
	return nil
}
