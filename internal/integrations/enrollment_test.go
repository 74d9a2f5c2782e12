package integrations

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/nats-io/nkeys"

	"trackhub-backend/internal/models"
	"trackhub-backend/internal/storage"
)

type fakeEnrollmentStore struct {
	token        *models.EnrollmentToken
	tokenErr     error
	integrations map[string]*models.Integration
	upserted     *models.Integration
	usageCount   int
}

func (f *fakeEnrollmentStore) ValidateEnrollmentToken(ctx context.Context, token, remoteIP string) (*models.EnrollmentToken, error) {
	if f.tokenErr != nil {
		return nil, f.tokenErr
	}
	return f.token, nil
}

func (f *fakeEnrollmentStore) GetIntegration(ctx context.Context, id string) (*models.Integration, error) {
	return f.integrations[id], nil
}

func (f *fakeEnrollmentStore) UpsertIntegration(ctx context.Context, integration *models.Integration) error {
	f.upserted = integration
	return nil
}

func (f *fakeEnrollmentStore) IncrementEnrollmentTokenUsage(ctx context.Context, tokenID string) error {
	f.usageCount++
	return nil
}

func newEnrollmentHandler(t *testing.T, store *fakeEnrollmentStore) *EnrollmentHandler {
	t.Helper()
	return NewEnrollmentHandler(store, newTestIssuer(t), EnrollmentConfig{
		NATSURLs: []string{"nats://localhost:4222"},
	})
}

func enrollRequest(t *testing.T, body models.EnrollIntegrationRequest, token string) *http.Request {
	t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/v1/integrations/enroll", bytes.NewReader(payload))
	if token != "" {
		req.Header.Set("X-Enrollment-Token", token)
	}
	return req
}

func validToken() *models.EnrollmentToken {
	return &models.EnrollmentToken{ID: "tok-1", OrgID: "org-1", ProjectID: "proj-1"}
}

func TestEnrollIntegrationServerGeneratedKeypair(t *testing.T) {
	store := &fakeEnrollmentStore{token: validToken(), integrations: map[string]*models.Integration{}}
	h := newEnrollmentHandler(t, store)

	req := enrollRequest(t, models.EnrollIntegrationRequest{
		IntegrationID: "abc123def456",
		Name:          "ci-bridge",
		Hostname:      "runner-1",
	}, "thb_et_sometoken")
	rec := httptest.NewRecorder()

	h.EnrollIntegration(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body)
	}

	var resp models.EnrollIntegrationResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	if resp.NKeySeed == "" {
		t.Fatal("expected a server-generated nkey seed")
	}
	kp, err := nkeys.FromSeed([]byte(resp.NKeySeed))
	if err != nil {
		t.Fatalf("seed unusable: %v", err)
	}
	pub, err := kp.PublicKey()
	if err != nil {
		t.Fatalf("public key: %v", err)
	}
	if !nkeys.IsValidPublicUserKey(pub) {
		t.Errorf("generated key %q is not a user key", pub)
	}

	if !strings.Contains(resp.CredsFile, resp.JWT) {
		t.Error("creds file does not embed the issued JWT")
	}
	if !strings.Contains(resp.CredsFile, resp.NKeySeed) {
		t.Error("creds file does not embed the nkey seed")
	}

	if store.upserted == nil || store.upserted.OrgID != "org-1" || store.upserted.Status != "enrolled" {
		t.Errorf("unexpected upserted integration: %+v", store.upserted)
	}
	if store.usageCount != 1 {
		t.Errorf("token usage increments = %d, want 1", store.usageCount)
	}
}

func TestEnrollIntegrationAgentSuppliedKey(t *testing.T) {
	store := &fakeEnrollmentStore{token: validToken(), integrations: map[string]*models.Integration{}}
	h := newEnrollmentHandler(t, store)

	agentKey, err := nkeys.CreateUser()
	if err != nil {
		t.Fatalf("create user key: %v", err)
	}
	pub, _ := agentKey.PublicKey()

	nonce := "nonce-1"
	ts := time.Now().UnixMilli()
	sig, err := agentKey.Sign([]byte(fmt.Sprintf("%s:%d", nonce, ts)))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	req := enrollRequest(t, models.EnrollIntegrationRequest{
		IntegrationID: "abc123def456",
		PublicKey:     pub,
		Name:          "ci-bridge",
		Hostname:      "runner-1",
		Nonce:         nonce,
		Timestamp:     ts,
		Signature:     base64.StdEncoding.EncodeToString(sig),
	}, "thb_et_sometoken")
	rec := httptest.NewRecorder()

	h.EnrollIntegration(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body)
	}

	var resp models.EnrollIntegrationResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.JWT == "" {
		t.Error("expected an issued JWT")
	}
	if resp.NKeySeed != "" || resp.CredsFile != "" {
		t.Error("agent-supplied key must not get a server seed or creds file")
	}
}

func TestEnrollIntegrationAgentKeyRequiresProof(t *testing.T) {
	store := &fakeEnrollmentStore{token: validToken(), integrations: map[string]*models.Integration{}}
	h := newEnrollmentHandler(t, store)

	agentKey, _ := nkeys.CreateUser()
	pub, _ := agentKey.PublicKey()

	req := enrollRequest(t, models.EnrollIntegrationRequest{
		IntegrationID: "abc123def456",
		PublicKey:     pub,
		Name:          "ci-bridge",
		Hostname:      "runner-1",
	}, "thb_et_sometoken")
	rec := httptest.NewRecorder()

	h.EnrollIntegration(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestEnrollIntegrationRejectsBadToken(t *testing.T) {
	store := &fakeEnrollmentStore{tokenErr: storage.ErrTokenRevoked}
	h := newEnrollmentHandler(t, store)

	req := enrollRequest(t, models.EnrollIntegrationRequest{
		IntegrationID: "abc123def456",
		Name:          "ci-bridge",
		Hostname:      "runner-1",
	}, "thb_et_revoked")
	rec := httptest.NewRecorder()

	h.EnrollIntegration(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestEnrollIntegrationCrossOrgRejected(t *testing.T) {
	store := &fakeEnrollmentStore{
		token: validToken(),
		integrations: map[string]*models.Integration{
			"abc123def456": {ID: "abc123def456", OrgID: "other-org"},
		},
	}
	h := newEnrollmentHandler(t, store)

	req := enrollRequest(t, models.EnrollIntegrationRequest{
		IntegrationID: "abc123def456",
		Name:          "ci-bridge",
		Hostname:      "runner-1",
	}, "thb_et_sometoken")
	rec := httptest.NewRecorder()

	h.EnrollIntegration(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
}
