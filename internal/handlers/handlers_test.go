package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"trackhub-backend/internal/authz"
	"trackhub-backend/internal/models"
	"trackhub-backend/internal/rpc"
	"trackhub-backend/internal/storage"
)

func TestHTTPErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"access denied", authz.ErrAccessDenied, http.StatusForbidden},
		{"invalid operation", authz.ErrInvalidOperation, http.StatusBadRequest},
		{"org not found", storage.ErrOrgNotFound, http.StatusNotFound},
		{"member not found", storage.ErrMemberNotFound, http.StatusNotFound},
		{"project not found", storage.ErrProjectNotFound, http.StatusNotFound},
		{"ticket not found", storage.ErrTicketNotFound, http.StatusNotFound},
		{"slug taken", storage.ErrSlugTaken, http.StatusConflict},
		{"already member", storage.ErrAlreadyMember, http.StatusConflict},
		{"agent offline", rpc.ErrAgentOffline, http.StatusNotFound},
		{"rpc timeout", rpc.ErrTimeout, http.StatusGatewayTimeout},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			httpError(rec, tt.err)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestHTTPErrorWrappedSentinel(t *testing.T) {
	rec := httptest.NewRecorder()
	httpError(rec, errors.Join(errors.New("context"), authz.ErrAccessDenied))
	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403 for wrapped sentinel", rec.Code)
	}
}

func TestDecodeValidRoleInput(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPut, "/", strings.NewReader(`{"role":"ADMIN"}`))
		rec := httptest.NewRecorder()

		var input models.UpdateMemberRoleInput
		if !decodeValid(rec, req, &input) {
			t.Fatalf("decodeValid failed: %s", rec.Body.String())
		}
		if input.Role != "ADMIN" {
			t.Errorf("role = %q, want ADMIN", input.Role)
		}
	})

	t.Run("unrecognized role", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPut, "/", strings.NewReader(`{"role":"OWNER"}`))
		rec := httptest.NewRecorder()

		var input models.UpdateMemberRoleInput
		if decodeValid(rec, req, &input) {
			t.Fatal("expected validation failure for role OWNER")
		}
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", rec.Code)
		}

		var body struct {
			Error   string            `json:"error"`
			Details map[string]string `json:"details"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("unmarshal response: %v", err)
		}
		if _, ok := body.Details["Role"]; !ok {
			t.Errorf("expected per-field detail for Role, got %v", body.Details)
		}
	})

	t.Run("missing role", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPut, "/", strings.NewReader(`{}`))
		rec := httptest.NewRecorder()

		var input models.UpdateMemberRoleInput
		if decodeValid(rec, req, &input) {
			t.Fatal("expected validation failure for empty body")
		}
	})

	t.Run("malformed json", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPut, "/", strings.NewReader(`{`))
		rec := httptest.NewRecorder()

		var input models.UpdateMemberRoleInput
		if decodeValid(rec, req, &input) {
			t.Fatal("expected failure for malformed body")
		}
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})
}

func TestDecodeValidSlug(t *testing.T) {
	tests := []struct {
		slug string
		ok   bool
	}{
		{"acme", true},
		{"acme-inc", true},
		{"a2", true},
		{"Acme", false},
		{"-acme", false},
		{"acme-", false},
		{"ac me", false},
	}

	for _, tt := range tests {
		t.Run(tt.slug, func(t *testing.T) {
			body := `{"name":"Acme","slug":"` + tt.slug + `","ticket_prefix":"ACM"}`
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
			rec := httptest.NewRecorder()

			var input models.CreateOrganizationInput
			got := decodeValid(rec, req, &input)
			if got != tt.ok {
				t.Errorf("decodeValid(%q) = %v, want %v (%s)", tt.slug, got, tt.ok, rec.Body.String())
			}
		})
	}
}

func TestUserIDRequiresContext(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()

	if _, ok := userID(rec, req); ok {
		t.Fatal("expected failure without authenticated context")
	}
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}
