package models

import "time"

const (
	TicketStatusBacklog    = "backlog"
	TicketStatusTodo       = "todo"
	TicketStatusInProgress = "in_progress"
	TicketStatusDone       = "done"

	TicketPriorityLow    = "low"
	TicketPriorityMedium = "medium"
	TicketPriorityHigh   = "high"
	TicketPriorityUrgent = "urgent"
)

func ValidTicketStatus(s string) bool {
	switch s {
	case TicketStatusBacklog, TicketStatusTodo, TicketStatusInProgress, TicketStatusDone:
		return true
	}
	return false
}

func ValidTicketPriority(s string) bool {
	switch s {
	case TicketPriorityLow, TicketPriorityMedium, TicketPriorityHigh, TicketPriorityUrgent:
		return true
	}
	return false
}

type Ticket struct {
	ID          string    `db:"id" json:"id"`
	ProjectID   string    `db:"project_id" json:"project_id"`
	SprintID    *string   `db:"sprint_id" json:"sprint_id,omitempty"`
	Number      int       `db:"number" json:"number"`
	Key         string    `db:"-" json:"key"`
	Title       string    `db:"title" json:"title"`
	Description string    `db:"description" json:"description"`
	Status      string    `db:"status" json:"status"`
	Priority    string    `db:"priority" json:"priority"`
	ReporterID  string    `db:"reporter_id" json:"reporter_id"`
	AssigneeID  *string   `db:"assignee_id" json:"assignee_id,omitempty"`
	SortKey     time.Time `db:"sort_key" json:"sort_key"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
	LabelIDs    []string  `db:"-" json:"label_ids,omitempty"`
}

type CreateTicketInput struct {
	Title       string   `json:"title" validate:"required,min=1,max=500"`
	Description string   `json:"description" validate:"max=10000"`
	Status      string   `json:"status" validate:"omitempty,oneof=backlog todo in_progress done"`
	Priority    string   `json:"priority" validate:"omitempty,oneof=low medium high urgent"`
	SprintID    *string  `json:"sprint_id"`
	AssigneeID  *string  `json:"assignee_id"`
	LabelIDs    []string `json:"label_ids"`
}

type UpdateTicketInput struct {
	Title       *string  `json:"title" validate:"omitempty,min=1,max=500"`
	Description *string  `json:"description" validate:"omitempty,max=10000"`
	Status      *string  `json:"status" validate:"omitempty,oneof=backlog todo in_progress done"`
	Priority    *string  `json:"priority" validate:"omitempty,oneof=low medium high urgent"`
	SprintID    *string  `json:"sprint_id"`
	AssigneeID  *string  `json:"assignee_id"`
	LabelIDs    []string `json:"label_ids"`
}

// ReorderTicketsInput carries the desired top-to-bottom order of tickets
// within one board column. Ordering is persisted as synthetic sort_key
// timestamps, not an index column.
type ReorderTicketsInput struct {
	Status    string   `json:"status" validate:"required,oneof=backlog todo in_progress done"`
	TicketIDs []string `json:"ticket_ids" validate:"required,min=1"`
}

type Sprint struct {
	ID        string     `db:"id" json:"id"`
	ProjectID string     `db:"project_id" json:"project_id"`
	Name      string     `db:"name" json:"name"`
	Goal      string     `db:"goal" json:"goal"`
	StartsAt  *time.Time `db:"starts_at" json:"starts_at,omitempty"`
	EndsAt    *time.Time `db:"ends_at" json:"ends_at,omitempty"`
	Closed    bool       `db:"closed" json:"closed"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
}

type CreateSprintInput struct {
	Name     string     `json:"name" validate:"required,min=1,max=255"`
	Goal     string     `json:"goal" validate:"max=2000"`
	StartsAt *time.Time `json:"starts_at"`
	EndsAt   *time.Time `json:"ends_at"`
}

type UpdateSprintInput struct {
	Name     *string    `json:"name" validate:"omitempty,min=1,max=255"`
	Goal     *string    `json:"goal" validate:"omitempty,max=2000"`
	StartsAt *time.Time `json:"starts_at"`
	EndsAt   *time.Time `json:"ends_at"`
	Closed   *bool      `json:"closed"`
}

type Comment struct {
	ID        string    `db:"id" json:"id"`
	TicketID  string    `db:"ticket_id" json:"ticket_id"`
	AuthorID  string    `db:"author_id" json:"author_id"`
	Body      string    `db:"body" json:"body"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`

	AuthorName string `db:"author_name" json:"author_name,omitempty"`
}

type CreateCommentInput struct {
	Body string `json:"body" validate:"required,min=1,max=10000"`
}

type Label struct {
	ID        string    `db:"id" json:"id"`
	ProjectID string    `db:"project_id" json:"project_id"`
	Name      string    `db:"name" json:"name"`
	Color     string    `db:"color" json:"color"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

type CreateLabelInput struct {
	Name  string `json:"name" validate:"required,min=1,max=64"`
	Color string `json:"color" validate:"omitempty,hexcolor"`
}
