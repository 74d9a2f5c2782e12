package storage

import (
	"context"

	"trackhub-backend/internal/models"
)

func (s *Storage) CreateActivityEvent(ctx context.Context, event *models.ActivityEvent) error {
	query := `
		INSERT INTO activity_events (org_id, project_id, actor_id, kind, entity_id, summary, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`
	return s.db.QueryRowContext(ctx, query,
		event.OrgID,
		event.ProjectID,
		nullIfEmpty(event.ActorID),
		event.Kind,
		event.EntityID,
		event.Summary,
		event.CreatedAt,
	).Scan(&event.ID)
}

func (s *Storage) ListActivityEvents(ctx context.Context, orgID string, limit int) ([]models.ActivityEvent, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	query := `
		SELECT id, org_id, project_id, COALESCE(actor_id, '') AS actor_id, kind, entity_id, summary, created_at
		FROM activity_events
		WHERE org_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	events := make([]models.ActivityEvent, 0)
	if err := s.db.SelectContext(ctx, &events, query, orgID, limit); err != nil {
		return nil, err
	}
	return events, nil
}
