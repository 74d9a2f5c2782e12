package models

import "time"

// Activity event kinds published by the API and persisted by the
// activity consumer.
const (
	ActivityTicketCreated   = "ticket.created"
	ActivityTicketUpdated   = "ticket.updated"
	ActivityTicketDeleted   = "ticket.deleted"
	ActivityTicketReordered = "ticket.reordered"
	ActivityCommentCreated  = "comment.created"
	ActivityMemberAdded     = "member.added"
	ActivityMemberUpdated   = "member.updated"
	ActivityMemberRemoved   = "member.removed"
	ActivitySprintCreated   = "sprint.created"
	ActivitySprintClosed    = "sprint.closed"
)

type ActivityEvent struct {
	ID        string    `db:"id" json:"id"`
	OrgID     string    `db:"org_id" json:"org_id"`
	ProjectID *string   `db:"project_id" json:"project_id,omitempty"`
	ActorID   string    `db:"actor_id" json:"actor_id"`
	Kind      string    `db:"kind" json:"kind"`
	EntityID  string    `db:"entity_id" json:"entity_id"`
	Summary   string    `db:"summary" json:"summary"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
