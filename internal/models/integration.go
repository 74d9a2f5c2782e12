package models

import "time"

// Integration is an external agent (CI runner, monitoring bridge) that
// publishes alerts into an organization over NATS.
type Integration struct {
	ID         string     `db:"id" json:"id"`
	OrgID      string     `db:"org_id" json:"org_id"`
	ProjectID  string     `db:"project_id" json:"project_id"`
	Name       string     `db:"name" json:"name"`
	Hostname   string     `db:"hostname" json:"hostname"`
	Status     string     `db:"status" json:"status"`
	LastSeenAt *time.Time `db:"last_seen_at" json:"last_seen_at,omitempty"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
}

// EnrollmentToken grants an integration agent the right to enroll into an
// organization. Only the bcrypt hash is stored; the prefix is kept for
// indexed lookup.
type EnrollmentToken struct {
	ID           string     `db:"id" json:"id"`
	OrgID        string     `db:"org_id" json:"org_id"`
	ProjectID    string     `db:"project_id" json:"project_id"`
	TokenPrefix  string     `db:"token_prefix" json:"token_prefix"`
	Description  string     `db:"description" json:"description"`
	AllowedCIDRs []string   `db:"-" json:"allowed_cidrs,omitempty"`
	ExpiresAt    *time.Time `db:"expires_at" json:"expires_at,omitempty"`
	MaxUses      *int       `db:"max_uses" json:"max_uses,omitempty"`
	UseCount     int        `db:"use_count" json:"use_count"`
	CreatedBy    string     `db:"created_by" json:"created_by"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	LastUsedAt   *time.Time `db:"last_used_at" json:"last_used_at,omitempty"`
	RevokedAt    *time.Time `db:"revoked_at" json:"revoked_at,omitempty"`
}

type CreateEnrollmentTokenInput struct {
	ProjectID    string     `json:"project_id" validate:"required"`
	Description  string     `json:"description" validate:"max=255"`
	AllowedCIDRs []string   `json:"allowed_cidrs" validate:"dive,cidr"`
	ExpiresAt    *time.Time `json:"expires_at"`
	MaxUses      *int       `json:"max_uses" validate:"omitempty,min=1"`
}

type CreateEnrollmentTokenResponse struct {
	EnrollmentToken
	Token string `json:"token"`
}

// POST /v1/integrations/enroll request. An agent that brings its own
// NKey proves possession by signing nonce + timestamp (Unix ms); an
// agent without one omits public_key and receives a server-generated
// keypair instead.
type EnrollIntegrationRequest struct {
	IntegrationID string `json:"integration_id" validate:"required,len=12,hexadecimal,lowercase"`
	PublicKey     string `json:"public_key" validate:"omitempty,startswith=U"`
	Name          string `json:"name" validate:"required,max=255"`
	Hostname      string `json:"hostname" validate:"required,max=255"`
	Nonce         string `json:"nonce" validate:"omitempty"`
	Timestamp     int64  `json:"timestamp" validate:"omitempty"`
	Signature     string `json:"signature" validate:"omitempty"`
}

// NKeySeed and CredsFile are only set for server-generated keypairs;
// they are returned once and never stored.
type EnrollIntegrationResponse struct {
	IntegrationID string   `json:"integration_id"`
	OrgID         string   `json:"org_id"`
	ProjectID     string   `json:"project_id"`
	JWT           string   `json:"jwt"`
	NKeySeed      string   `json:"nkey_seed,omitempty"`
	CredsFile     string   `json:"creds_file,omitempty"`
	NATSURLs      []string `json:"nats_urls"`
	ExpiresAt     string   `json:"expires_at"`
}
