package models

import "time"

// OrgRole is the stored role of an organization member. The organization
// owner is not required to have a member row; ownership always implies at
// least ADMIN.
type OrgRole string

const (
	RoleAdmin  OrgRole = "ADMIN"
	RoleMember OrgRole = "MEMBER"
)

type Organization struct {
	ID           string    `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	Slug         string    `db:"slug" json:"slug"`
	TicketPrefix string    `db:"ticket_prefix" json:"ticket_prefix"`
	OwnerID      string    `db:"owner_id" json:"owner_id"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

type OrganizationMember struct {
	ID        string    `db:"id" json:"id"`
	OrgID     string    `db:"org_id" json:"org_id"`
	UserID    string    `db:"user_id" json:"user_id"`
	Role      OrgRole   `db:"role" json:"role"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`

	// Joined from users for list responses.
	UserEmail string `db:"user_email" json:"user_email,omitempty"`
	UserName  string `db:"user_name" json:"user_name,omitempty"`
}

type CreateOrganizationInput struct {
	Name         string `json:"name" validate:"required,min=2,max=255"`
	Slug         string `json:"slug" validate:"required,min=2,max=63,slug"`
	TicketPrefix string `json:"ticket_prefix" validate:"required,min=2,max=8,uppercase"`
}

type UpdateOrganizationInput struct {
	Name string `json:"name" validate:"omitempty,min=2,max=255"`
}

type AddMemberInput struct {
	Email string `json:"email" validate:"required,email"`
	Role  string `json:"role" validate:"required,oneof=ADMIN MEMBER"`
}

type UpdateMemberRoleInput struct {
	Role string `json:"role" validate:"required,oneof=ADMIN MEMBER"`
}
