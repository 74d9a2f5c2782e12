package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"trackhub-backend/internal/models"
)

// reporter_id is NULL for automated tickets created from integration
// alerts; it surfaces as "" on the model.
const ticketColumns = `
	t.id, t.project_id, t.sprint_id, t.number, t.title, t.description,
	t.status, t.priority, COALESCE(t.reporter_id::text, '') AS reporter_id,
	t.assignee_id, t.sort_key, t.created_at, t.updated_at, o.ticket_prefix
`

func scanTicket(row interface {
	Scan(dest ...interface{}) error
}) (*models.Ticket, error) {
	var t models.Ticket
	var prefix string
	err := row.Scan(
		&t.ID,
		&t.ProjectID,
		&t.SprintID,
		&t.Number,
		&t.Title,
		&t.Description,
		&t.Status,
		&t.Priority,
		&t.ReporterID,
		&t.AssigneeID,
		&t.SortKey,
		&t.CreatedAt,
		&t.UpdatedAt,
		&prefix,
	)
	if err != nil {
		return nil, err
	}
	t.Key = fmt.Sprintf("%s-%d", prefix, t.Number)
	return &t, nil
}

func (s *Storage) CreateTicket(ctx context.Context, orgID, projectID, reporterID string, input models.CreateTicketInput) (*models.Ticket, error) {
	status := input.Status
	if status == "" {
		status = models.TicketStatusBacklog
	}
	priority := input.Priority
	if priority == "" {
		priority = models.TicketPriorityMedium
	}

	// Ticket numbers come from a per-organization counter so keys stay
	// stable across projects sharing the prefix.
	var number int
	err := s.db.QueryRowContext(ctx, `
		UPDATE organizations
		SET next_ticket_number = next_ticket_number + 1
		WHERE id = $1
		RETURNING next_ticket_number
	`, orgID).Scan(&number)
	if err == sql.ErrNoRows {
		return nil, ErrOrgNotFound
	}
	if err != nil {
		return nil, err
	}

	query := `
		WITH inserted AS (
			INSERT INTO tickets (project_id, sprint_id, number, title, description,
				status, priority, reporter_id, assignee_id, sort_key)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
			RETURNING *
		)
		SELECT ` + ticketColumns + `
		FROM inserted t
		JOIN projects p ON p.id = t.project_id
		JOIN organizations o ON o.id = p.org_id
	`

	ticket, err := scanTicket(s.db.QueryRowContext(ctx, query,
		projectID,
		input.SprintID,
		number,
		input.Title,
		input.Description,
		status,
		priority,
		nullIfEmpty(reporterID),
		input.AssigneeID,
	))
	if err != nil {
		return nil, err
	}

	if len(input.LabelIDs) > 0 {
		if err := s.SetTicketLabels(ctx, ticket.ID, input.LabelIDs); err != nil {
			return nil, err
		}
		ticket.LabelIDs = input.LabelIDs
	}

	return ticket, nil
}

func (s *Storage) GetTicket(ctx context.Context, projectID, ticketID string) (*models.Ticket, error) {
	query := `
		SELECT ` + ticketColumns + `
		FROM tickets t
		JOIN projects p ON p.id = t.project_id
		JOIN organizations o ON o.id = p.org_id
		WHERE t.id = $1 AND t.project_id = $2
	`

	ticket, err := scanTicket(s.db.QueryRowContext(ctx, query, ticketID, projectID))
	if err == sql.ErrNoRows {
		return nil, ErrTicketNotFound
	}
	if err != nil {
		return nil, err
	}

	labels, err := s.getTicketLabelIDs(ctx, ticket.ID)
	if err != nil {
		return nil, err
	}
	ticket.LabelIDs = labels

	return ticket, nil
}

func (s *Storage) ListTickets(ctx context.Context, projectID string, sprintID, status string) ([]models.Ticket, error) {
	query := `
		SELECT ` + ticketColumns + `
		FROM tickets t
		JOIN projects p ON p.id = t.project_id
		JOIN organizations o ON o.id = p.org_id
		WHERE t.project_id = $1
			AND ($2 = '' OR t.sprint_id::text = $2)
			AND ($3 = '' OR t.status = $3)
		ORDER BY t.sort_key DESC
	`

	rows, err := s.db.QueryContext(ctx, query, projectID, sprintID, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tickets := make([]models.Ticket, 0)
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		tickets = append(tickets, *ticket)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return tickets, nil
}

func (s *Storage) UpdateTicket(ctx context.Context, projectID, ticketID string, input models.UpdateTicketInput) (*models.Ticket, error) {
	query := `
		WITH updated AS (
			UPDATE tickets
			SET title = COALESCE($1, title),
				description = COALESCE($2, description),
				status = COALESCE($3, status),
				priority = COALESCE($4, priority),
				sprint_id = CASE WHEN $5 THEN $6 ELSE sprint_id END,
				assignee_id = CASE WHEN $7 THEN $8 ELSE assignee_id END,
				updated_at = NOW()
			WHERE id = $9 AND project_id = $10
			RETURNING *
		)
		SELECT ` + ticketColumns + `
		FROM updated t
		JOIN projects p ON p.id = t.project_id
		JOIN organizations o ON o.id = p.org_id
	`

	ticket, err := scanTicket(s.db.QueryRowContext(ctx, query,
		input.Title,
		input.Description,
		input.Status,
		input.Priority,
		input.SprintID != nil,
		input.SprintID,
		input.AssigneeID != nil,
		input.AssigneeID,
		ticketID,
		projectID,
	))
	if err == sql.ErrNoRows {
		return nil, ErrTicketNotFound
	}
	if err != nil {
		return nil, err
	}

	if input.LabelIDs != nil {
		if err := s.SetTicketLabels(ctx, ticket.ID, input.LabelIDs); err != nil {
			return nil, err
		}
	}
	labels, err := s.getTicketLabelIDs(ctx, ticket.ID)
	if err != nil {
		return nil, err
	}
	ticket.LabelIDs = labels

	return ticket, nil
}

func (s *Storage) DeleteTicket(ctx context.Context, projectID, ticketID string) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM tickets
		WHERE id = $1 AND project_id = $2
	`, ticketID, projectID)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrTicketNotFound
	}
	return nil
}

// ReorderTickets persists a board column order as synthetic sort_key
// timestamps: the first ticket gets the newest timestamp and each
// following one is a millisecond older. Listing by sort_key DESC then
// yields the requested order.
// The whole column moves in one transaction: a ticket missing from the
// column (moved or deleted concurrently) aborts the reorder without
// leaving it half-applied.
func (s *Storage) ReorderTickets(ctx context.Context, projectID, status string, ticketIDs []string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	base := time.Now()
	for i, ticketID := range ticketIDs {
		sortKey := base.Add(-time.Duration(i) * time.Millisecond)
		result, err := tx.ExecContext(ctx, `
			UPDATE tickets
			SET sort_key = $1, updated_at = NOW()
			WHERE id = $2 AND project_id = $3 AND status = $4
		`, sortKey, ticketID, projectID, status)
		if err != nil {
			return err
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if rows == 0 {
			return ErrTicketNotFound
		}
	}
	return tx.Commit()
}

func (s *Storage) SetTicketLabels(ctx context.Context, ticketID string, labelIDs []string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM ticket_labels WHERE ticket_id = $1`, ticketID); err != nil {
		return err
	}
	if len(labelIDs) == 0 {
		return nil
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ticket_labels (ticket_id, label_id)
		SELECT $1, unnest($2::uuid[])
	`, ticketID, pq.Array(labelIDs))
	return err
}

func (s *Storage) getTicketLabelIDs(ctx context.Context, ticketID string) ([]string, error) {
	labelIDs := make([]string, 0)
	err := s.db.SelectContext(ctx, &labelIDs, `
		SELECT label_id FROM ticket_labels WHERE ticket_id = $1 ORDER BY label_id
	`, ticketID)
	if err != nil {
		return nil, err
	}
	return labelIDs, nil
}
