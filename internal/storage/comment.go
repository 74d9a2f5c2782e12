package storage

import (
	"context"
	"database/sql"

	"trackhub-backend/internal/models"
)

func (s *Storage) CreateComment(ctx context.Context, ticketID, authorID, body string) (*models.Comment, error) {
	query := `
		WITH inserted AS (
			INSERT INTO comments (ticket_id, author_id, body)
			VALUES ($1, $2, $3)
			RETURNING *
		)
		SELECT c.id, c.ticket_id, c.author_id, c.body, c.created_at, u.name AS author_name
		FROM inserted c
		JOIN users u ON u.id = c.author_id
	`

	var comment models.Comment
	err := s.db.QueryRowContext(ctx, query, ticketID, authorID, body).Scan(
		&comment.ID,
		&comment.TicketID,
		&comment.AuthorID,
		&comment.Body,
		&comment.CreatedAt,
		&comment.AuthorName,
	)
	if err != nil {
		return nil, err
	}

	return &comment, nil
}

func (s *Storage) GetComment(ctx context.Context, ticketID, commentID string) (*models.Comment, error) {
	query := `
		SELECT id, ticket_id, author_id, body, created_at
		FROM comments
		WHERE id = $1 AND ticket_id = $2
	`

	var comment models.Comment
	err := s.db.QueryRowContext(ctx, query, commentID, ticketID).Scan(
		&comment.ID,
		&comment.TicketID,
		&comment.AuthorID,
		&comment.Body,
		&comment.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrCommentNotFound
	}
	if err != nil {
		return nil, err
	}

	return &comment, nil
}

func (s *Storage) ListComments(ctx context.Context, ticketID string) ([]models.Comment, error) {
	query := `
		SELECT c.id, c.ticket_id, c.author_id, c.body, c.created_at, u.name AS author_name
		FROM comments c
		JOIN users u ON u.id = c.author_id
		WHERE c.ticket_id = $1
		ORDER BY c.created_at
	`

	comments := make([]models.Comment, 0)
	if err := s.db.SelectContext(ctx, &comments, query, ticketID); err != nil {
		return nil, err
	}
	return comments, nil
}

func (s *Storage) DeleteComment(ctx context.Context, ticketID, commentID string) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM comments
		WHERE id = $1 AND ticket_id = $2
	`, commentID, ticketID)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrCommentNotFound
	}
	return nil
}

func (s *Storage) CreateLabel(ctx context.Context, projectID string, input models.CreateLabelInput) (*models.Label, error) {
	color := input.Color
	if color == "" {
		color = "#6b7280"
	}

	query := `
		INSERT INTO labels (project_id, name, color)
		VALUES ($1, $2, $3)
		RETURNING id, project_id, name, color, created_at
	`

	var label models.Label
	err := s.db.QueryRowContext(ctx, query, projectID, input.Name, color).Scan(
		&label.ID,
		&label.ProjectID,
		&label.Name,
		&label.Color,
		&label.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &label, nil
}

func (s *Storage) ListLabels(ctx context.Context, projectID string) ([]models.Label, error) {
	query := `
		SELECT id, project_id, name, color, created_at
		FROM labels
		WHERE project_id = $1
		ORDER BY name
	`

	labels := make([]models.Label, 0)
	if err := s.db.SelectContext(ctx, &labels, query, projectID); err != nil {
		return nil, err
	}
	return labels, nil
}

func (s *Storage) DeleteLabel(ctx context.Context, projectID, labelID string) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM labels
		WHERE id = $1 AND project_id = $2
	`, labelID, projectID)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrLabelNotFound
	}
	return nil
}
