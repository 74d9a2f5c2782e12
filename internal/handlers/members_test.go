package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"trackhub-backend/internal/auth"
	"trackhub-backend/internal/authz"
	"trackhub-backend/internal/models"
	"trackhub-backend/internal/storage"
)

// fakeMemberStore backs both the member endpoints and the permission
// evaluator.
type fakeMemberStore struct {
	org     *models.Organization
	members map[string]*models.OrganizationMember // by member id
	deleted []string
	updated []string
}

func (f *fakeMemberStore) GetOrganization(ctx context.Context, orgID string) (*models.Organization, error) {
	if f.org == nil || f.org.ID != orgID {
		return nil, nil
	}
	return f.org, nil
}

func (f *fakeMemberStore) GetOrganizationMemberRole(ctx context.Context, orgID, userID string) (models.OrgRole, error) {
	for _, m := range f.members {
		if m.OrgID == orgID && m.UserID == userID {
			return m.Role, nil
		}
	}
	return "", nil
}

func (f *fakeMemberStore) GetProject(ctx context.Context, projectID string) (*models.Project, error) {
	return nil, nil
}

func (f *fakeMemberStore) GetOrganizationMember(ctx context.Context, orgID, memberID string) (*models.OrganizationMember, error) {
	m, ok := f.members[memberID]
	if !ok || m.OrgID != orgID {
		return nil, storage.ErrMemberNotFound
	}
	return m, nil
}

func (f *fakeMemberStore) ListOrganizationMembers(ctx context.Context, orgID string) ([]models.OrganizationMember, error) {
	out := make([]models.OrganizationMember, 0, len(f.members))
	for _, m := range f.members {
		if m.OrgID == orgID {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (f *fakeMemberStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return nil, nil
}

func (f *fakeMemberStore) AddOrganizationMember(ctx context.Context, orgID, userID string, role models.OrgRole) (*models.OrganizationMember, error) {
	return &models.OrganizationMember{ID: "new-member", OrgID: orgID, UserID: userID, Role: role}, nil
}

func (f *fakeMemberStore) UpdateOrganizationMemberRole(ctx context.Context, orgID, memberID string, role models.OrgRole) (*models.OrganizationMember, error) {
	f.updated = append(f.updated, memberID)
	m := *f.members[memberID]
	m.Role = role
	return &m, nil
}

func (f *fakeMemberStore) DeleteOrganizationMember(ctx context.Context, orgID, memberID string) error {
	f.deleted = append(f.deleted, memberID)
	return nil
}

type recordingPublisher struct {
	kinds []string
}

func (p *recordingPublisher) Publish(orgID, actorID, kind, entityID, summary string, projectID *string) {
	p.kinds = append(p.kinds, kind)
}

// newMemberFixture seeds an organization with an owner member row, an
// admin, and two plain members.
func newMemberFixture() *fakeMemberStore {
	return &fakeMemberStore{
		org: &models.Organization{ID: "org-1", OwnerID: "owner-1"},
		members: map[string]*models.OrganizationMember{
			"mem-owner": {ID: "mem-owner", OrgID: "org-1", UserID: "owner-1", Role: models.RoleAdmin},
			"mem-admin": {ID: "mem-admin", OrgID: "org-1", UserID: "admin-1", Role: models.RoleAdmin},
			"mem-1":     {ID: "mem-1", OrgID: "org-1", UserID: "user-1", Role: models.RoleMember},
			"mem-2":     {ID: "mem-2", OrgID: "org-1", UserID: "user-2", Role: models.RoleMember},
		},
	}
}

func newMemberHandler(store *fakeMemberStore) (*Handler, *recordingPublisher) {
	publisher := &recordingPublisher{}
	h := &Handler{
		members: store,
		authz:   authz.NewEvaluator(store),
		events:  publisher,
	}
	return h, publisher
}

func serveMembers(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Put("/v1/organizations/{orgID}/members/{memberID}", h.UpdateMemberRole)
	r.Delete("/v1/organizations/{orgID}/members/{memberID}", h.RemoveMember)
	return r
}

func doMemberRequest(h *Handler, method, path, body, userID string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req = req.WithContext(auth.WithUserID(req.Context(), userID))
	rec := httptest.NewRecorder()
	serveMembers(h).ServeHTTP(rec, req)
	return rec
}

func TestRemoveMemberSelfRemovalSkipsCapability(t *testing.T) {
	store := newMemberFixture()
	h, publisher := newMemberHandler(store)

	// user-1 is a plain MEMBER and holds no canRemoveMembers grant,
	// but may always leave the organization.
	rec := doMemberRequest(h, http.MethodDelete, "/v1/organizations/org-1/members/mem-1", "", "user-1")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body)
	}
	if len(store.deleted) != 1 || store.deleted[0] != "mem-1" {
		t.Errorf("deleted = %v, want [mem-1]", store.deleted)
	}
	if len(publisher.kinds) != 1 || publisher.kinds[0] != models.ActivityMemberRemoved {
		t.Errorf("published = %v, want [%s]", publisher.kinds, models.ActivityMemberRemoved)
	}
}

func TestRemoveMemberOtherTargetRequiresCapability(t *testing.T) {
	store := newMemberFixture()
	h, _ := newMemberHandler(store)

	rec := doMemberRequest(h, http.MethodDelete, "/v1/organizations/org-1/members/mem-2", "", "user-1")

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403: %s", rec.Code, rec.Body)
	}
	if len(store.deleted) != 0 {
		t.Errorf("deleted = %v, want none", store.deleted)
	}
}

func TestMemberEndpointsMissingMemberBeforeCapability(t *testing.T) {
	// A caller without the capability probing a nonexistent member must
	// see 404, not 403: the row is resolved before any permission check.
	store := newMemberFixture()
	h, _ := newMemberHandler(store)

	t.Run("update", func(t *testing.T) {
		rec := doMemberRequest(h, http.MethodPut,
			"/v1/organizations/org-1/members/mem-ghost", `{"role":"ADMIN"}`, "user-1")
		if rec.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404: %s", rec.Code, rec.Body)
		}
	})

	t.Run("remove", func(t *testing.T) {
		rec := doMemberRequest(h, http.MethodDelete,
			"/v1/organizations/org-1/members/mem-ghost", "", "user-1")
		if rec.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404: %s", rec.Code, rec.Body)
		}
	})
}

func TestUpdateMemberRoleOwnerTargetRejected(t *testing.T) {
	store := newMemberFixture()
	h, _ := newMemberHandler(store)

	rec := doMemberRequest(h, http.MethodPut,
		"/v1/organizations/org-1/members/mem-owner", `{"role":"MEMBER"}`, "admin-1")

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400: %s", rec.Code, rec.Body)
	}
	if len(store.updated) != 0 {
		t.Errorf("updated = %v, want none", store.updated)
	}
}

func TestRemoveMemberOwnerTargetRejected(t *testing.T) {
	store := newMemberFixture()
	h, _ := newMemberHandler(store)

	// Even the owner cannot remove their own membership row.
	for _, caller := range []string{"admin-1", "owner-1"} {
		rec := doMemberRequest(h, http.MethodDelete,
			"/v1/organizations/org-1/members/mem-owner", "", caller)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("caller %s: status = %d, want 400: %s", caller, rec.Code, rec.Body)
		}
	}
	if len(store.deleted) != 0 {
		t.Errorf("deleted = %v, want none", store.deleted)
	}
}

func TestUpdateMemberRoleAdminAllowed(t *testing.T) {
	store := newMemberFixture()
	h, publisher := newMemberHandler(store)

	rec := doMemberRequest(h, http.MethodPut,
		"/v1/organizations/org-1/members/mem-1", `{"role":"ADMIN"}`, "admin-1")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body)
	}
	if len(store.updated) != 1 || store.updated[0] != "mem-1" {
		t.Errorf("updated = %v, want [mem-1]", store.updated)
	}
	if len(publisher.kinds) != 1 || publisher.kinds[0] != models.ActivityMemberUpdated {
		t.Errorf("published = %v, want [%s]", publisher.kinds, models.ActivityMemberUpdated)
	}
}
