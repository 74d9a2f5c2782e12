package storage

import (
	"context"
	"database/sql"

	"trackhub-backend/internal/models"
)

func (s *Storage) CreateProject(ctx context.Context, orgID string, input models.CreateProjectInput) (*models.Project, error) {
	query := `
		INSERT INTO projects (org_id, name, description, lead_id)
		VALUES ($1, $2, $3, $4)
		RETURNING id, org_id, name, description, lead_id, created_at, updated_at
	`

	var project models.Project
	err := s.db.QueryRowContext(ctx, query, orgID, input.Name, input.Description, input.LeadID).Scan(
		&project.ID,
		&project.OrgID,
		&project.Name,
		&project.Description,
		&project.LeadID,
		&project.CreatedAt,
		&project.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &project, nil
}

// GetProject looks a project up by id alone; used by the authz evaluator
// for the lead check. Returns (nil, nil) when absent.
func (s *Storage) GetProject(ctx context.Context, id string) (*models.Project, error) {
	query := `
		SELECT id, org_id, name, description, lead_id, created_at, updated_at
		FROM projects
		WHERE id = $1
	`

	var project models.Project
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&project.ID,
		&project.OrgID,
		&project.Name,
		&project.Description,
		&project.LeadID,
		&project.CreatedAt,
		&project.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &project, nil
}

// GetOrganizationProject resolves a project scoped to its organization;
// a project id under the wrong organization is a not-found.
func (s *Storage) GetOrganizationProject(ctx context.Context, orgID, projectID string) (*models.Project, error) {
	query := `
		SELECT id, org_id, name, description, lead_id, created_at, updated_at
		FROM projects
		WHERE id = $1 AND org_id = $2
	`

	var project models.Project
	err := s.db.QueryRowContext(ctx, query, projectID, orgID).Scan(
		&project.ID,
		&project.OrgID,
		&project.Name,
		&project.Description,
		&project.LeadID,
		&project.CreatedAt,
		&project.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrProjectNotFound
	}
	if err != nil {
		return nil, err
	}

	return &project, nil
}

func (s *Storage) ListProjects(ctx context.Context, orgID string) ([]models.Project, error) {
	query := `
		SELECT id, org_id, name, description, lead_id, created_at, updated_at
		FROM projects
		WHERE org_id = $1
		ORDER BY created_at
	`

	projects := make([]models.Project, 0)
	if err := s.db.SelectContext(ctx, &projects, query, orgID); err != nil {
		return nil, err
	}
	return projects, nil
}

func (s *Storage) UpdateProject(ctx context.Context, orgID, projectID string, input models.UpdateProjectInput) (*models.Project, error) {
	query := `
		UPDATE projects
		SET name = COALESCE(NULLIF($1, ''), name),
			description = COALESCE(NULLIF($2, ''), description),
			updated_at = NOW()
		WHERE id = $3 AND org_id = $4
		RETURNING id, org_id, name, description, lead_id, created_at, updated_at
	`

	var project models.Project
	err := s.db.QueryRowContext(ctx, query, input.Name, input.Description, projectID, orgID).Scan(
		&project.ID,
		&project.OrgID,
		&project.Name,
		&project.Description,
		&project.LeadID,
		&project.CreatedAt,
		&project.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrProjectNotFound
	}
	if err != nil {
		return nil, err
	}

	return &project, nil
}

func (s *Storage) SetProjectLead(ctx context.Context, orgID, projectID, leadID string) (*models.Project, error) {
	query := `
		UPDATE projects
		SET lead_id = $1, updated_at = NOW()
		WHERE id = $2 AND org_id = $3
		RETURNING id, org_id, name, description, lead_id, created_at, updated_at
	`

	var project models.Project
	err := s.db.QueryRowContext(ctx, query, leadID, projectID, orgID).Scan(
		&project.ID,
		&project.OrgID,
		&project.Name,
		&project.Description,
		&project.LeadID,
		&project.CreatedAt,
		&project.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrProjectNotFound
	}
	if err != nil {
		return nil, err
	}

	return &project, nil
}

func (s *Storage) DeleteProject(ctx context.Context, orgID, projectID string) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM projects
		WHERE id = $1 AND org_id = $2
	`, projectID, orgID)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrProjectNotFound
	}
	return nil
}

// GetProjectMeta assembles the navigation summary that feeds the
// read-through cache.
func (s *Storage) GetProjectMeta(ctx context.Context, orgID, projectID string) (*models.ProjectMeta, error) {
	project, err := s.GetOrganizationProject(ctx, orgID, projectID)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT
			(SELECT COUNT(*) FROM tickets WHERE project_id = $1) AS ticket_count,
			(SELECT COUNT(*) FROM sprints WHERE project_id = $1) AS sprint_count,
			(SELECT COUNT(*) FROM project_members WHERE project_id = $1) AS member_count
	`

	meta := models.ProjectMeta{
		ID:          project.ID,
		OrgID:       project.OrgID,
		Name:        project.Name,
		Description: project.Description,
		LeadID:      project.LeadID,
		UpdatedAt:   project.UpdatedAt.UnixMilli(),
	}
	if err := s.db.QueryRowContext(ctx, query, projectID).Scan(
		&meta.TicketCount,
		&meta.SprintCount,
		&meta.MemberCount,
	); err != nil {
		return nil, err
	}

	return &meta, nil
}

func (s *Storage) ListProjectMembers(ctx context.Context, projectID string) ([]models.ProjectMember, error) {
	query := `
		SELECT m.id, m.project_id, m.user_id, m.created_at, u.email AS user_email, u.name AS user_name
		FROM project_members m
		JOIN users u ON u.id = m.user_id
		WHERE m.project_id = $1
		ORDER BY m.created_at
	`

	members := make([]models.ProjectMember, 0)
	if err := s.db.SelectContext(ctx, &members, query, projectID); err != nil {
		return nil, err
	}
	return members, nil
}

func (s *Storage) GetProjectMember(ctx context.Context, projectID, memberID string) (*models.ProjectMember, error) {
	query := `
		SELECT id, project_id, user_id, created_at
		FROM project_members
		WHERE id = $1 AND project_id = $2
	`

	var member models.ProjectMember
	err := s.db.QueryRowContext(ctx, query, memberID, projectID).Scan(
		&member.ID,
		&member.ProjectID,
		&member.UserID,
		&member.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrProjectMemberNotFound
	}
	if err != nil {
		return nil, err
	}

	return &member, nil
}

func (s *Storage) AddProjectMember(ctx context.Context, projectID, userID string) (*models.ProjectMember, error) {
	query := `
		INSERT INTO project_members (project_id, user_id)
		VALUES ($1, $2)
		RETURNING id, project_id, user_id, created_at
	`

	var member models.ProjectMember
	err := s.db.QueryRowContext(ctx, query, projectID, userID).Scan(
		&member.ID,
		&member.ProjectID,
		&member.UserID,
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

func (s *Storage) DeleteProjectMember(ctx context.Context, projectID, memberID string) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM project_members
		WHERE id = $1 AND project_id = $2
	`, memberID, projectID)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrProjectMemberNotFound
	}
	return nil
}
