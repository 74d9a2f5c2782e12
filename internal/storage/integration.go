package storage

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net"
	"time"

	"golang.org/x/crypto/bcrypt"

	"trackhub-backend/internal/models"
)

var (
	ErrTokenNotFound          = errors.New("enrollment token not found")
	ErrTokenRevoked           = errors.New("enrollment token revoked")
	ErrTokenExpired           = errors.New("enrollment token expired")
	ErrTokenUsageLimitReached = errors.New("enrollment token usage limit reached")
	ErrTokenIPNotAllowed      = errors.New("enrollment token ip not allowed")
	ErrIntegrationNotFound    = errors.New("integration not found")
)

const (
	TokenPrefix       = "thb_et_"
	TokenLength       = 32
	tokenPrefixLength = 12
)

type enrollmentTokenRow struct {
	ID               string
	OrgID            string
	ProjectID        string
	TokenPrefix      string
	TokenHash        string
	Description      sql.NullString
	AllowedCIDRsJSON []byte
	ExpiresAt        *time.Time
	MaxUses          sql.NullInt64
	UseCount         int
	CreatedBy        sql.NullString
	CreatedAt        time.Time
	LastUsedAt       *time.Time
	RevokedAt        *time.Time
}

func (s *Storage) CreateEnrollmentToken(ctx context.Context, orgID, userID string, input models.CreateEnrollmentTokenInput) (*models.CreateEnrollmentTokenResponse, error) {
	token, prefix, hash, err := GenerateEnrollmentToken()
	if err != nil {
		return nil, err
	}

	var allowedCIDRsJSON *string
	if len(input.AllowedCIDRs) > 0 {
		data, err := json.Marshal(input.AllowedCIDRs)
		if err != nil {
			return nil, err
		}
		value := string(data)
		allowedCIDRsJSON = &value
	}

	query := `
		INSERT INTO enrollment_tokens (
			org_id, project_id, token_hash, token_prefix, description, allowed_cidrs,
			expires_at, max_uses, use_count, created_by, created_at, last_used_at, revoked_at
		)
		VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7, $8, 0, $9, NOW(), NULL, NULL)
		RETURNING id, org_id, project_id, token_prefix, description, allowed_cidrs,
			expires_at, max_uses, use_count, created_by, created_at, last_used_at, revoked_at
	`

	row := enrollmentTokenRow{}
	err = s.db.QueryRowContext(ctx, query,
		orgID,
		input.ProjectID,
		hash,
		prefix,
		nullIfEmpty(input.Description),
		allowedCIDRsJSON,
		input.ExpiresAt,
		input.MaxUses,
		nullIfEmpty(userID),
	).Scan(
		&row.ID,
		&row.OrgID,
		&row.ProjectID,
		&row.TokenPrefix,
		&row.Description,
		&row.AllowedCIDRsJSON,
		&row.ExpiresAt,
		&row.MaxUses,
		&row.UseCount,
		&row.CreatedBy,
		&row.CreatedAt,
		&row.LastUsedAt,
		&row.RevokedAt,
	)
	if err != nil {
		return nil, err
	}

	et, err := mapEnrollmentTokenRow(row)
	if err != nil {
		return nil, err
	}

	return &models.CreateEnrollmentTokenResponse{
		EnrollmentToken: et,
		Token:           token,
	}, nil
}

func (s *Storage) ListEnrollmentTokens(ctx context.Context, orgID string) ([]models.EnrollmentToken, error) {
	query := `
		SELECT id, org_id, project_id, token_prefix, description, allowed_cidrs,
			expires_at, max_uses, use_count, created_by, created_at, last_used_at, revoked_at
		FROM enrollment_tokens
		WHERE org_id = $1
		ORDER BY created_at DESC
	`

	rows, err := s.db.QueryContext(ctx, query, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]models.EnrollmentToken, 0)
	for rows.Next() {
		var row enrollmentTokenRow
		if err := rows.Scan(
			&row.ID,
			&row.OrgID,
			&row.ProjectID,
			&row.TokenPrefix,
			&row.Description,
			&row.AllowedCIDRsJSON,
			&row.ExpiresAt,
			&row.MaxUses,
			&row.UseCount,
			&row.CreatedBy,
			&row.CreatedAt,
			&row.LastUsedAt,
			&row.RevokedAt,
		); err != nil {
			return nil, err
		}

		et, err := mapEnrollmentTokenRow(row)
		if err != nil {
			return nil, err
		}
		result = append(result, et)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (s *Storage) GetEnrollmentToken(ctx context.Context, orgID, tokenID string) (*models.EnrollmentToken, error) {
	query := `
		SELECT id, org_id, project_id, token_prefix, description, allowed_cidrs,
			expires_at, max_uses, use_count, created_by, created_at, last_used_at, revoked_at
		FROM enrollment_tokens
		WHERE id = $1 AND org_id = $2
	`

	var row enrollmentTokenRow
	if err := s.db.QueryRowContext(ctx, query, tokenID, orgID).Scan(
		&row.ID,
		&row.OrgID,
		&row.ProjectID,
		&row.TokenPrefix,
		&row.Description,
		&row.AllowedCIDRsJSON,
		&row.ExpiresAt,
		&row.MaxUses,
		&row.UseCount,
		&row.CreatedBy,
		&row.CreatedAt,
		&row.LastUsedAt,
		&row.RevokedAt,
	); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrTokenNotFound
		}
		return nil, err
	}

	et, err := mapEnrollmentTokenRow(row)
	if err != nil {
		return nil, err
	}
	return &et, nil
}

// ValidateEnrollmentToken checks a presented token against the stored
// hashes sharing its prefix, then applies revocation, expiry, usage and
// CIDR constraints.
func (s *Storage) ValidateEnrollmentToken(ctx context.Context, token string, remoteIP string) (*models.EnrollmentToken, error) {
	if len(token) < tokenPrefixLength {
		return nil, ErrTokenNotFound
	}

	prefix := token[:tokenPrefixLength]
	query := `
		SELECT id, org_id, project_id, token_prefix, token_hash, description, allowed_cidrs,
			expires_at, max_uses, use_count, created_by, created_at, last_used_at, revoked_at
		FROM enrollment_tokens
		WHERE token_prefix = $1
	`

	rows, err := s.db.QueryContext(ctx, query, prefix)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var row enrollmentTokenRow
		if err := rows.Scan(
			&row.ID,
			&row.OrgID,
			&row.ProjectID,
			&row.TokenPrefix,
			&row.TokenHash,
			&row.Description,
			&row.AllowedCIDRsJSON,
			&row.ExpiresAt,
			&row.MaxUses,
			&row.UseCount,
			&row.CreatedBy,
			&row.CreatedAt,
			&row.LastUsedAt,
			&row.RevokedAt,
		); err != nil {
			return nil, err
		}

		if !ValidateTokenHash(token, row.TokenHash) {
			continue
		}

		if row.RevokedAt != nil {
			return nil, ErrTokenRevoked
		}
		if row.ExpiresAt != nil && row.ExpiresAt.Before(time.Now()) {
			return nil, ErrTokenExpired
		}
		if row.MaxUses.Valid && row.UseCount >= int(row.MaxUses.Int64) {
			return nil, ErrTokenUsageLimitReached
		}

		allowedCIDRs, err := decodeStringArray(row.AllowedCIDRsJSON)
		if err != nil {
			return nil, err
		}
		if len(allowedCIDRs) > 0 && !ipAllowed(remoteIP, allowedCIDRs) {
			return nil, ErrTokenIPNotAllowed
		}

		et, err := mapEnrollmentTokenRow(row)
		if err != nil {
			return nil, err
		}
		return &et, nil
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return nil, ErrTokenNotFound
}

func (s *Storage) IncrementEnrollmentTokenUsage(ctx context.Context, tokenID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE enrollment_tokens
		SET use_count = use_count + 1, last_used_at = NOW()
		WHERE id = $1
	`, tokenID)
	return err
}

func (s *Storage) RevokeEnrollmentToken(ctx context.Context, orgID, tokenID string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE enrollment_tokens
		SET revoked_at = NOW()
		WHERE id = $1 AND org_id = $2 AND revoked_at IS NULL
	`, tokenID, orgID)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrTokenNotFound
	}
	return nil
}

func (s *Storage) UpsertIntegration(ctx context.Context, integration *models.Integration) error {
	query := `
		INSERT INTO integrations (id, org_id, project_id, name, hostname, status, last_seen_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id)
		DO UPDATE SET hostname = EXCLUDED.hostname, status = EXCLUDED.status, last_seen_at = EXCLUDED.last_seen_at
	`
	_, err := s.db.ExecContext(ctx, query,
		integration.ID,
		integration.OrgID,
		integration.ProjectID,
		integration.Name,
		integration.Hostname,
		integration.Status,
		integration.LastSeenAt,
	)
	return err
}

func (s *Storage) GetIntegration(ctx context.Context, id string) (*models.Integration, error) {
	query := `
		SELECT id, org_id, project_id, name, hostname, status, last_seen_at, created_at
		FROM integrations
		WHERE id = $1
	`

	var integration models.Integration
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&integration.ID,
		&integration.OrgID,
		&integration.ProjectID,
		&integration.Name,
		&integration.Hostname,
		&integration.Status,
		&integration.LastSeenAt,
		&integration.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &integration, nil
}

func (s *Storage) ListIntegrations(ctx context.Context, orgID string) ([]models.Integration, error) {
	query := `
		SELECT id, org_id, project_id, name, hostname, status, last_seen_at, created_at
		FROM integrations
		WHERE org_id = $1
		ORDER BY created_at
	`

	integrations := make([]models.Integration, 0)
	if err := s.db.SelectContext(ctx, &integrations, query, orgID); err != nil {
		return nil, err
	}
	return integrations, nil
}

func (s *Storage) ListIntegrationIDs(ctx context.Context) ([]string, error) {
	ids := make([]string, 0)
	if err := s.db.SelectContext(ctx, &ids, `SELECT id FROM integrations WHERE status = 'online'`); err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *Storage) MarkIntegrationOffline(ctx context.Context, id string, lastSeenAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE integrations
		SET status = 'offline', last_seen_at = $1
		WHERE id = $2
	`, lastSeenAt, id)
	return err
}

func (s *Storage) MarkStaleIntegrationsOffline(ctx context.Context, maxAge time.Duration) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE integrations
		SET status = 'offline'
		WHERE status = 'online' AND last_seen_at < $1
	`, time.Now().Add(-maxAge))
	return err
}

func GenerateEnrollmentToken() (token string, prefix string, hash string, err error) {
	bytes := make([]byte, TokenLength)
	if _, err = rand.Read(bytes); err != nil {
		return "", "", "", err
	}

	token = TokenPrefix + hex.EncodeToString(bytes)
	prefix = token[:tokenPrefixLength]

	hashBytes, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return "", "", "", err
	}

	return token, prefix, string(hashBytes), nil
}

func ValidateTokenHash(token, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(token)) == nil
}

func mapEnrollmentTokenRow(row enrollmentTokenRow) (models.EnrollmentToken, error) {
	allowedCIDRs, err := decodeStringArray(row.AllowedCIDRsJSON)
	if err != nil {
		return models.EnrollmentToken{}, err
	}

	var maxUses *int
	if row.MaxUses.Valid {
		value := int(row.MaxUses.Int64)
		maxUses = &value
	}

	et := models.EnrollmentToken{
		ID:           row.ID,
		OrgID:        row.OrgID,
		ProjectID:    row.ProjectID,
		TokenPrefix:  row.TokenPrefix,
		Description:  row.Description.String,
		AllowedCIDRs: allowedCIDRs,
		ExpiresAt:    row.ExpiresAt,
		MaxUses:      maxUses,
		UseCount:     row.UseCount,
		CreatedBy:    row.CreatedBy.String,
		CreatedAt:    row.CreatedAt,
		LastUsedAt:   row.LastUsedAt,
		RevokedAt:    row.RevokedAt,
	}

	return et, nil
}

func decodeStringArray(data []byte) ([]string, error) {
	if len(data) == 0 {
		return []string{}, nil
	}

	var out []string
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}

	return out, nil
}

func ipAllowed(remoteIP string, cidrs []string) bool {
	ip := net.ParseIP(remoteIP)
	if ip == nil {
		return false
	}

	for _, cidr := range cidrs {
		_, network, err := net.ParseCIDR(cidr)
		if err != nil {
			continue
		}
		if network.Contains(ip) {
			return true
		}
	}

	return false
}
