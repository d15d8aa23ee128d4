package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"backend/internal/model"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var errDirectoryDown = errors.New("directory unavailable")

// stubUserRepo serves a fixed set of users keyed by id. With failAfter set,
// the first failAfter lookups succeed and later ones fail, simulating a
// directory outage mid-request (after the auth lookup, before a guard's
// fresh read).
type stubUserRepo struct {
	users     map[uuid.UUID]*model.AuthorizedUser
	failAfter int
	lookups   int
}

func (s *stubUserRepo) FindByDocID(_ context.Context, id uuid.UUID) (*model.AuthorizedUser, error) {
	s.lookups++
	if s.failAfter > 0 && s.lookups > s.failAfter {
		return nil, errDirectoryDown
	}
	user, ok := s.users[id]
	if !ok {
		return nil, errDirectoryDown
	}
	copied := *user
	return &copied, nil
}

func (s *stubUserRepo) Create(context.Context, *model.AuthorizedUser) error { return nil }
func (s *stubUserRepo) Update(context.Context, *model.AuthorizedUser) error { return nil }
func (s *stubUserRepo) Delete(context.Context, uuid.UUID) error             { return nil }
func (s *stubUserRepo) DeleteMany(context.Context, []uuid.UUID) error       { return nil }
func (s *stubUserRepo) FindByUID(context.Context, string) (*model.AuthorizedUser, error) {
	return nil, errDirectoryDown
}
func (s *stubUserRepo) FindByEmail(context.Context, string) (*model.AuthorizedUser, error) {
	return nil, errDirectoryDown
}
func (s *stubUserRepo) List(context.Context, int, int) ([]model.AuthorizedUser, int64, error) {
	return nil, 0, nil
}
func (s *stubUserRepo) ListAll(context.Context) ([]model.AuthorizedUser, error) { return nil, nil }
func (s *stubUserRepo) ListByModule(context.Context, string) ([]model.AuthorizedUser, error) {
	return nil, nil
}
func (s *stubUserRepo) CountByRole(context.Context, string) (int64, error)     { return 0, nil }
func (s *stubUserRepo) CountActiveAdmins(context.Context) (int64, error)       { return 0, nil }
func (s *stubUserRepo) StampLastLogin(context.Context, uuid.UUID, time.Time) error {
	return nil
}

const testSecret = "test-secret"

func signToken(t *testing.T, id uuid.UUID) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": id.String(),
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func newTestRouter(guard *Guard, handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	chain := append([]gin.HandlerFunc{guard.RequireAuth()}, handlers...)
	chain = append(chain, func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/protected", chain...)
	return router
}

func perform(router *gin.Engine, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRequireAuthRejectsMissingToken(t *testing.T) {
	guard := NewGuard(&stubUserRepo{}, []byte(testSecret))
	router := newTestRouter(guard)

	w := perform(router, "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
	if got := w.Header().Get("X-Return-To"); got != "/protected" {
		t.Errorf("expected attempted path echoed, got %q", got)
	}
}

func TestRequireAuthRejectsBadToken(t *testing.T) {
	guard := NewGuard(&stubUserRepo{}, []byte(testSecret))
	router := newTestRouter(guard)

	w := perform(router, "not-a-jwt")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestRequireAuthRejectsUnprovisionedAndInactive(t *testing.T) {
	inactiveID := uuid.New()
	repo := &stubUserRepo{users: map[uuid.UUID]*model.AuthorizedUser{
		inactiveID: {ID: inactiveID, Role: model.RoleUser, IsActive: false},
	}}
	guard := NewGuard(repo, []byte(testSecret))
	router := newTestRouter(guard)

	if w := perform(router, signToken(t, uuid.New())); w.Code != http.StatusForbidden {
		t.Errorf("unprovisioned account: expected 403, got %d", w.Code)
	}
	if w := perform(router, signToken(t, inactiveID)); w.Code != http.StatusForbidden {
		t.Errorf("deactivated account: expected 403, got %d", w.Code)
	}
}

func TestRequireRoleFailClosedWithoutSession(t *testing.T) {
	gin.SetMode(gin.TestMode)
	guard := NewGuard(&stubUserRepo{}, []byte(testSecret))

	// RequireRole mounted without RequireAuth in front must still deny.
	router := gin.New()
	router.GET("/bare", guard.RequireRole(model.RoleAdmin), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/bare", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 without a session, got %d", w.Code)
	}
}

func TestRequirePermissionChecksSession(t *testing.T) {
	id := uuid.New()
	repo := &stubUserRepo{users: map[uuid.UUID]*model.AuthorizedUser{
		id: {ID: id, Role: model.RoleUser, Permissions: []string{model.PermRead}, IsActive: true},
	}}
	guard := NewGuard(repo, []byte(testSecret))

	allowed := newTestRouter(guard, guard.RequirePermission(model.PermRead))
	if w := perform(allowed, signToken(t, id)); w.Code != http.StatusOK {
		t.Errorf("granted permission: expected 200, got %d", w.Code)
	}

	denied := newTestRouter(guard, guard.RequirePermission(model.PermManageUsers))
	if w := perform(denied, signToken(t, id)); w.Code != http.StatusForbidden {
		t.Errorf("missing permission: expected 403, got %d", w.Code)
	}
}

func TestRequireModuleAdminShortCircuit(t *testing.T) {
	id := uuid.New()
	repo := &stubUserRepo{users: map[uuid.UUID]*model.AuthorizedUser{
		id: {ID: id, Role: model.RoleAdmin, IsActive: true},
	}}
	guard := NewGuard(repo, []byte(testSecret))
	router := newTestRouter(guard, guard.RequireModule("treasury"))

	token := signToken(t, id)
	w := perform(router, token)
	if w.Code != http.StatusOK {
		t.Fatalf("admin should pass any module gate, got %d", w.Code)
	}
	// The session role decides; the module gate never touches the directory.
	if repo.lookups != 1 {
		t.Errorf("expected a single auth lookup, got %d", repo.lookups)
	}
}

func TestRequireModuleReadsFreshAssignment(t *testing.T) {
	id := uuid.New()
	user := &model.AuthorizedUser{
		ID:       id,
		Role:     model.RoleUser,
		Modules:  []string{"clients"},
		IsActive: true,
	}
	repo := &stubUserRepo{users: map[uuid.UUID]*model.AuthorizedUser{id: user}}
	guard := NewGuard(repo, []byte(testSecret))
	router := newTestRouter(guard, guard.RequireModule("clients"))
	token := signToken(t, id)

	if w := perform(router, token); w.Code != http.StatusOK {
		t.Fatalf("assigned module: expected 200, got %d", w.Code)
	}

	// Revoking the assignment takes effect on the very next request.
	user.Modules = []string{"workers"}
	if w := perform(router, token); w.Code != http.StatusForbidden {
		t.Fatalf("revoked module: expected 403, got %d", w.Code)
	}
}

func TestRequireModuleDeniesOnDirectoryFailure(t *testing.T) {
	id := uuid.New()
	repo := &stubUserRepo{users: map[uuid.UUID]*model.AuthorizedUser{
		id: {ID: id, Role: model.RoleUser, Modules: []string{"clients"}, IsActive: true},
	}}
	guard := NewGuard(repo, []byte(testSecret))
	router := newTestRouter(guard, guard.RequireModule("clients"))
	token := signToken(t, id)

	if w := perform(router, token); w.Code != http.StatusOK {
		t.Fatalf("precondition: expected 200, got %d", w.Code)
	}

	// Next request: auth lookup succeeds, the guard's fresh read fails.
	repo.failAfter = repo.lookups + 1
	if w := perform(router, token); w.Code != http.StatusForbidden {
		t.Fatalf("directory failure must deny, got %d", w.Code)
	}
}
