package middleware

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Jiwaru/pss-uas-lms-backend/internal/auth"
	"github.com/Jiwaru/pss-uas-lms-backend/internal/users"
	"github.com/Jiwaru/pss-uas-lms-backend/pkg"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	m.Run()
	goleak.VerifyTestMain(m)
}

func setupAuthTestRouter(t *testing.T) (*mux.Router, *auth.TokenService, users.Repo) {
	t.Helper()

	repo := users.NewMockRepo()
	tokenService := auth.NewTokenService([]byte("middleware-test-secret"), repo)

	r := mux.NewRouter()
	r.HandleFunc("/courses", func(w http.ResponseWriter, req *http.Request) {
		principal := PrincipalFromContext(req.Context())
		require.NotNil(t, principal)
		pkg.WriteTextResponseOK(w, principal.Username)
	}).Methods("GET", "OPTIONS")
	r.HandleFunc("/auth/login", func(w http.ResponseWriter, _ *http.Request) {
		pkg.WriteTextResponseOK(w, "login open")
	}).Methods("POST")

	authMiddleware := NewAuthMiddlewareHandler(tokenService)
	r.Use(authMiddleware.AuthCheck())

	return r, tokenService, repo
}

func TestAuthCheck_ValidToken(t *testing.T) {
	router, tokenService, repo := setupAuthTestRouter(t)

	user, err := repo.Create(context.Background(), &users.User{
		Username: "pak.dosen", PasswordHash: "x", Role: users.RoleDosen, CreatedAt: time.Now(),
	})
	require.NoError(t, err)

	token, err := tokenService.Issue(user.ID)
	require.NoError(t, err)

	req := httptest.NewRequest("GET", "/courses", nil)
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", token))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "pak.dosen", rr.Body.String())
}

func TestAuthCheck_Unauthenticated(t *testing.T) {
	router, tokenService, repo := setupAuthTestRouter(t)

	// no token at all
	req := httptest.NewRequest("GET", "/courses", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	// malformed header scheme
	req = httptest.NewRequest("GET", "/courses", nil)
	req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	// garbage token
	req = httptest.NewRequest("GET", "/courses", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	// token for a user deleted after issuance
	user, err := repo.Create(context.Background(), &users.User{
		Username: "gone", PasswordHash: "x", Role: users.RoleAdmin, CreatedAt: time.Now(),
	})
	require.NoError(t, err)
	token, err := tokenService.Issue(user.ID)
	require.NoError(t, err)
	require.NoError(t, repo.Delete(context.Background(), user.ID))

	req = httptest.NewRequest("GET", "/courses", nil)
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", token))
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestAuthCheck_AllowedPathsAndOptions(t *testing.T) {
	router, _, _ := setupAuthTestRouter(t)

	// login is reachable without a token
	req := httptest.NewRequest("POST", "/auth/login", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "login open", rr.Body.String())

	// OPTIONS preflight short-circuits
	req = httptest.NewRequest("OPTIONS", "/courses", nil)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
}
