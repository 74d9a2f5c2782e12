package integrations

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"trackhub-backend/internal/models"
	"trackhub-backend/internal/storage"
)

type EnrollmentConfig struct {
	NATSURLs []string
}

// enrollmentStore is the slice of storage enrollment touches.
type enrollmentStore interface {
	ValidateEnrollmentToken(ctx context.Context, token, remoteIP string) (*models.EnrollmentToken, error)
	GetIntegration(ctx context.Context, id string) (*models.Integration, error)
	UpsertIntegration(ctx context.Context, integration *models.Integration) error
	IncrementEnrollmentTokenUsage(ctx context.Context, tokenID string) error
}

type EnrollmentHandler struct {
	store  enrollmentStore
	issuer *JWTIssuer
	config EnrollmentConfig
}

func NewEnrollmentHandler(store enrollmentStore, issuer *JWTIssuer, cfg EnrollmentConfig) *EnrollmentHandler {
	return &EnrollmentHandler{store: store, issuer: issuer, config: cfg}
}

// EnrollIntegration godoc
// @Summary Enroll an integration agent
// @Description Exchanges an enrollment token for scoped NATS credentials; agents may bring their own NKey with a proof of possession or receive a server-generated keypair
// @Tags integrations
// @Accept json
// @Produce json
// @Param X-Enrollment-Token header string true "Enrollment token"
// @Param request body models.EnrollIntegrationRequest true "Enrollment request"
// @Success 201 {object} models.EnrollIntegrationResponse
// @Failure 400 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Router /v1/integrations/enroll [post]
func (h *EnrollmentHandler) EnrollIntegration(w http.ResponseWriter, r *http.Request) {
	if h.issuer == nil {
		respondError(w, http.StatusInternalServerError, "NATS JWT issuer not configured")
		return
	}

	var req models.EnrollIntegrationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request")
		return
	}
	req.IntegrationID = strings.TrimSpace(req.IntegrationID)
	req.PublicKey = strings.TrimSpace(req.PublicKey)
	req.Name = strings.TrimSpace(req.Name)
	req.Hostname = strings.TrimSpace(req.Hostname)
	req.Nonce = strings.TrimSpace(req.Nonce)
	req.Signature = strings.TrimSpace(req.Signature)

	enrollToken := strings.TrimSpace(r.Header.Get("X-Enrollment-Token"))
	if enrollToken == "" {
		enrollToken = strings.TrimSpace(r.URL.Query().Get("token"))
	}
	if enrollToken == "" {
		respondError(w, http.StatusUnauthorized, "missing enrollment token")
		return
	}

	if req.IntegrationID == "" || req.Name == "" || req.Hostname == "" {
		respondError(w, http.StatusBadRequest, "missing required fields")
		return
	}
	if len(req.IntegrationID) != 12 {
		respondError(w, http.StatusBadRequest, "invalid integration_id")
		return
	}

	// Agents bringing their own NKey must prove possession. Agents
	// without one get a server-generated keypair below.
	if req.PublicKey != "" {
		if req.Nonce == "" || req.Timestamp == 0 || req.Signature == "" {
			respondError(w, http.StatusBadRequest, "missing signature fields")
			return
		}
		if !VerifyNKeySignature(req.PublicKey, req.Nonce, req.Timestamp, req.Signature) {
			respondError(w, http.StatusUnauthorized, "invalid signature")
			return
		}
		if !isTimestampFresh(req.Timestamp, 5*time.Minute) {
			respondError(w, http.StatusUnauthorized, "timestamp expired")
			return
		}
	}

	remoteIP := getClientIP(r)
	token, err := h.store.ValidateEnrollmentToken(r.Context(), enrollToken, remoteIP)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrTokenNotFound):
			respondError(w, http.StatusUnauthorized, "invalid token")
		case errors.Is(err, storage.ErrTokenRevoked):
			respondError(w, http.StatusUnauthorized, "token revoked")
		case errors.Is(err, storage.ErrTokenExpired):
			respondError(w, http.StatusUnauthorized, "token expired")
		case errors.Is(err, storage.ErrTokenUsageLimitReached):
			respondError(w, http.StatusUnauthorized, "token usage limit reached")
		case errors.Is(err, storage.ErrTokenIPNotAllowed):
			respondError(w, http.StatusUnauthorized, "token ip not allowed")
		default:
			respondError(w, http.StatusInternalServerError, "token validation failed")
		}
		return
	}

	existing, err := h.store.GetIntegration(r.Context(), req.IntegrationID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "database error")
		return
	}
	if existing != nil && existing.OrgID != "" && existing.OrgID != token.OrgID {
		respondError(w, http.StatusForbidden, "integration belongs to different organization")
		return
	}

	now := time.Now()
	integration := &models.Integration{
		ID:         req.IntegrationID,
		OrgID:      token.OrgID,
		ProjectID:  token.ProjectID,
		Name:       req.Name,
		Hostname:   req.Hostname,
		Status:     "enrolled",
		LastSeenAt: &now,
	}
	if err := h.store.UpsertIntegration(r.Context(), integration); err != nil {
		respondError(w, http.StatusInternalServerError, "enrollment failed")
		return
	}

	if err := h.store.IncrementEnrollmentTokenUsage(r.Context(), token.ID); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to update token usage")
		return
	}

	publicKey := req.PublicKey
	var seed string
	if publicKey == "" {
		seed, publicKey, err = GenerateUserKeyPair()
		if err != nil {
			respondError(w, http.StatusInternalServerError, "failed to generate keypair")
			return
		}
	}

	jwtToken, expiresAt, err := h.issuer.IssueIntegrationJWT(req.IntegrationID, publicKey, 365*24*time.Hour)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to issue JWT")
		return
	}

	resp := models.EnrollIntegrationResponse{
		IntegrationID: integration.ID,
		OrgID:         integration.OrgID,
		ProjectID:     integration.ProjectID,
		JWT:           jwtToken,
		NATSURLs:      h.config.NATSURLs,
		ExpiresAt:     expiresAt.Format(time.RFC3339),
	}
	if seed != "" {
		resp.NKeySeed = seed
		resp.CredsFile = BuildCredsFile(jwtToken, seed)
	}

	respondJSON(w, http.StatusCreated, resp)
}

func isTimestampFresh(timestampMs int64, maxSkew time.Duration) bool {
	stamp := time.UnixMilli(timestampMs)
	return time.Since(stamp) <= maxSkew && time.Until(stamp) <= maxSkew
}

func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[0])
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	host, _, _ := net.SplitHostPort(r.RemoteAddr)
	return host
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]any{"error": message})
}
