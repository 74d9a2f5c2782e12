package storage

import (
	"context"
	"database/sql"

	"trackhub-backend/internal/models"
)

func (s *Storage) CreateSprint(ctx context.Context, projectID string, input models.CreateSprintInput) (*models.Sprint, error) {
	query := `
		INSERT INTO sprints (project_id, name, goal, starts_at, ends_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, project_id, name, goal, starts_at, ends_at, closed, created_at
	`

	var sprint models.Sprint
	err := s.db.QueryRowContext(ctx, query, projectID, input.Name, input.Goal, input.StartsAt, input.EndsAt).Scan(
		&sprint.ID,
		&sprint.ProjectID,
		&sprint.Name,
		&sprint.Goal,
		&sprint.StartsAt,
		&sprint.EndsAt,
		&sprint.Closed,
		&sprint.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &sprint, nil
}

func (s *Storage) GetSprint(ctx context.Context, projectID, sprintID string) (*models.Sprint, error) {
	query := `
		SELECT id, project_id, name, goal, starts_at, ends_at, closed, created_at
		FROM sprints
		WHERE id = $1 AND project_id = $2
	`

	var sprint models.Sprint
	err := s.db.QueryRowContext(ctx, query, sprintID, projectID).Scan(
		&sprint.ID,
		&sprint.ProjectID,
		&sprint.Name,
		&sprint.Goal,
		&sprint.StartsAt,
		&sprint.EndsAt,
		&sprint.Closed,
		&sprint.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrSprintNotFound
	}
	if err != nil {
		return nil, err
	}

	return &sprint, nil
}

func (s *Storage) ListSprints(ctx context.Context, projectID string) ([]models.Sprint, error) {
	query := `
		SELECT id, project_id, name, goal, starts_at, ends_at, closed, created_at
		FROM sprints
		WHERE project_id = $1
		ORDER BY created_at
	`

	sprints := make([]models.Sprint, 0)
	if err := s.db.SelectContext(ctx, &sprints, query, projectID); err != nil {
		return nil, err
	}
	return sprints, nil
}

func (s *Storage) UpdateSprint(ctx context.Context, projectID, sprintID string, input models.UpdateSprintInput) (*models.Sprint, error) {
	query := `
		UPDATE sprints
		SET name = COALESCE($1, name),
			goal = COALESCE($2, goal),
			starts_at = CASE WHEN $3 THEN $4 ELSE starts_at END,
			ends_at = CASE WHEN $5 THEN $6 ELSE ends_at END,
			closed = COALESCE($7, closed)
		WHERE id = $8 AND project_id = $9
		RETURNING id, project_id, name, goal, starts_at, ends_at, closed, created_at
	`

	var sprint models.Sprint
	err := s.db.QueryRowContext(ctx, query,
		input.Name,
		input.Goal,
		input.StartsAt != nil,
		input.StartsAt,
		input.EndsAt != nil,
		input.EndsAt,
		input.Closed,
		sprintID,
		projectID,
	).Scan(
		&sprint.ID,
		&sprint.ProjectID,
		&sprint.Name,
		&sprint.Goal,
		&sprint.StartsAt,
		&sprint.EndsAt,
		&sprint.Closed,
		&sprint.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrSprintNotFound
	}
	if err != nil {
		return nil, err
	}

	return &sprint, nil
}

func (s *Storage) DeleteSprint(ctx context.Context, projectID, sprintID string) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM sprints
		WHERE id = $1 AND project_id = $2
	`, sprintID, projectID)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrSprintNotFound
	}
	return nil
}
