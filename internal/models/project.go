package models

import "time"

type Project struct {
	ID          string    `db:"id" json:"id"`
	OrgID       string    `db:"org_id" json:"org_id"`
	Name        string    `db:"name" json:"name"`
	Description string    `db:"description" json:"description"`
	LeadID      *string   `db:"lead_id" json:"lead_id,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

type ProjectMember struct {
	ID        string    `db:"id" json:"id"`
	ProjectID string    `db:"project_id" json:"project_id"`
	UserID    string    `db:"user_id" json:"user_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`

	UserEmail string `db:"user_email" json:"user_email,omitempty"`
	UserName  string `db:"user_name" json:"user_name,omitempty"`
}

type CreateProjectInput struct {
	Name        string  `json:"name" validate:"required,min=2,max=255"`
	Description string  `json:"description" validate:"max=2000"`
	LeadID      *string `json:"lead_id"`
}

type UpdateProjectInput struct {
	Name        string `json:"name" validate:"omitempty,min=2,max=255"`
	Description string `json:"description" validate:"max=2000"`
}

type AddProjectMemberInput struct {
	UserID string `json:"user_id" validate:"required"`
}

type TransferLeadInput struct {
	LeadID string `json:"lead_id" validate:"required"`
}

// ProjectMeta is the navigation summary served from the read-through
// cache. Stale for at most the cache TTL; never used for authorization.
type ProjectMeta struct {
	ID          string  `msgpack:"id" json:"id"`
	OrgID       string  `msgpack:"org_id" json:"org_id"`
	Name        string  `msgpack:"name" json:"name"`
	Description string  `msgpack:"description" json:"description"`
	LeadID      *string `msgpack:"lead_id" json:"lead_id,omitempty"`
	TicketCount int     `msgpack:"ticket_count" json:"ticket_count"`
	SprintCount int     `msgpack:"sprint_count" json:"sprint_count"`
	MemberCount int     `msgpack:"member_count" json:"member_count"`
	UpdatedAt   int64   `msgpack:"updated_at" json:"updated_at"`
}
