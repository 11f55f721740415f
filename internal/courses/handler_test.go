package courses

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Jiwaru/pss-uas-lms-backend/internal/middleware"
	"github.com/Jiwaru/pss-uas-lms-backend/internal/telemetry/metrics"
	"github.com/Jiwaru/pss-uas-lms-backend/internal/users"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	m.Run()
	goleak.VerifyTestMain(m,
		// INFO: https://github.com/go-redis/redis/issues/1029
		goleak.IgnoreTopFunction(
			"github.com/go-redis/redis/v8/internal/pool.(*ConnPool).reaper",
		),
	)
}

type handlerTestSetup struct {
	repo    *mockRepo
	cache   *TestCache
	handler *Handler
	router  *mux.Router
}

func setupCoursesHandlerForTests(t *testing.T) *handlerTestSetup {
	t.Helper()

	repo := NewMockRepo()
	cache := NewTestCache()
	handler := NewHandler(
		repo,
		NewListCache(cache, repo, DefaultListTTL),
		metrics.NewTestManager(),
	)

	router := mux.NewRouter()
	handler.SetupRoutes(router)

	return &handlerTestSetup{
		repo:    repo,
		cache:   cache,
		handler: handler,
		router:  router,
	}
}

func requestWithPrincipal(t *testing.T, method, target string, body []byte, principal *users.User) *http.Request {
	t.Helper()

	var req *http.Request
	var err error
	if body != nil {
		req, err = http.NewRequest(method, target, bytes.NewReader(body))
	} else {
		req, err = http.NewRequest(method, target, nil)
	}
	require.NoError(t, err)

	if principal != nil {
		req = req.WithContext(middleware.ContextWithPrincipal(context.Background(), principal))
	}
	return req
}

func TestCoursesHandler_CreateThenListSeesNewCourse(t *testing.T) {
	setup := setupCoursesHandlerForTests(t)
	dosen := &users.User{ID: 1, Username: "pak.dosen", Role: users.RoleDosen}

	// warm the cache with the empty-free state
	now := time.Now()
	_, err := setup.repo.Create(context.Background(), &Course{
		Title: "Basis Data", InstructorID: 1, InstructorName: "pak.dosen",
		CreatedAt: now, UpdatedAt: now,
	})
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	setup.router.ServeHTTP(rr, requestWithPrincipal(t, "GET", "/courses", nil, dosen))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, 1, setup.cache.SetCalls)

	// create through the handler
	createBody, err := json.Marshal(map[string]string{
		"title":       "Pemrograman Lanjut",
		"description": gofakeit.Sentence(8),
	})
	require.NoError(t, err)

	rr = httptest.NewRecorder()
	setup.router.ServeHTTP(rr, requestWithPrincipal(t, "POST", "/courses", createBody, dosen))
	require.Equal(t, http.StatusOK, rr.Code)

	var created Course
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &created))
	assert.Equal(t, "Pemrograman Lanjut", created.Title)
	assert.Equal(t, "pak.dosen", created.InstructorName)
	assert.NotZero(t, created.ID)

	// the stale cached listing was dropped, the new course shows up
	assert.Equal(t, 1, setup.cache.DelCalls)

	rr = httptest.NewRecorder()
	setup.router.ServeHTTP(rr, requestWithPrincipal(t, "GET", "/courses", nil, dosen))
	require.Equal(t, http.StatusOK, rr.Code)

	var listed []Course
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &listed))
	require.Len(t, listed, 2)
	assert.Equal(t, "Pemrograman Lanjut", listed[1].Title)
}

func TestCoursesHandler_DeleteThenListDropsCourse(t *testing.T) {
	setup := setupCoursesHandlerForTests(t)
	admin := &users.User{ID: 1, Username: "admin", Role: users.RoleAdmin}

	now := time.Now()
	course, err := setup.repo.Create(context.Background(), &Course{
		Title: "Jaringan Komputer", InstructorID: 1, InstructorName: "admin",
		CreatedAt: now, UpdatedAt: now,
	})
	require.NoError(t, err)

	// populate the cache
	rr := httptest.NewRecorder()
	setup.router.ServeHTTP(rr, requestWithPrincipal(t, "GET", "/courses", nil, admin))
	require.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	setup.router.ServeHTTP(rr, requestWithPrincipal(
		t, "DELETE", fmt.Sprintf("/courses/%d", course.ID), nil, admin,
	))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"success":true}`, rr.Body.String())

	rr = httptest.NewRecorder()
	setup.router.ServeHTTP(rr, requestWithPrincipal(t, "GET", "/courses", nil, admin))
	require.Equal(t, http.StatusOK, rr.Code)

	var listed []Course
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &listed))
	assert.Empty(t, listed)
}

func TestCoursesHandler_DeleteUnknownCourse(t *testing.T) {
	setup := setupCoursesHandlerForTests(t)
	admin := &users.User{ID: 1, Username: "admin", Role: users.RoleAdmin}

	rr := httptest.NewRecorder()
	setup.router.ServeHTTP(rr, requestWithPrincipal(t, "DELETE", "/courses/42", nil, admin))
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = httptest.NewRecorder()
	setup.router.ServeHTTP(rr, requestWithPrincipal(t, "DELETE", "/courses/garbage", nil, admin))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestCoursesHandler_MahasiswaForbidden(t *testing.T) {
	setup := setupCoursesHandlerForTests(t)
	mahasiswa := &users.User{ID: 7, Username: "budi", Role: users.RoleMahasiswa}

	createBody, err := json.Marshal(map[string]string{"title": "Etika Profesi", "description": "x"})
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	setup.router.ServeHTTP(rr, requestWithPrincipal(t, "POST", "/courses", createBody, mahasiswa))
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Empty(t, setup.repo.Courses)

	rr = httptest.NewRecorder()
	setup.router.ServeHTTP(rr, requestWithPrincipal(t, "DELETE", "/courses/1", nil, mahasiswa))
	assert.Equal(t, http.StatusForbidden, rr.Code)

	// reading the catalog stays open to Mahasiswa
	rr = httptest.NewRecorder()
	setup.router.ServeHTTP(rr, requestWithPrincipal(t, "GET", "/courses", nil, mahasiswa))
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestCoursesHandler_NoPrincipal(t *testing.T) {
	setup := setupCoursesHandlerForTests(t)

	createBody, err := json.Marshal(map[string]string{"title": "Etika Profesi", "description": "x"})
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	setup.router.ServeHTTP(rr, requestWithPrincipal(t, "POST", "/courses", createBody, nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = httptest.NewRecorder()
	setup.router.ServeHTTP(rr, requestWithPrincipal(t, "DELETE", "/courses/1", nil, nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestCoursesHandler_CreateValidation(t *testing.T) {
	setup := setupCoursesHandlerForTests(t)
	dosen := &users.User{ID: 1, Username: "pak.dosen", Role: users.RoleDosen}

	rr := httptest.NewRecorder()
	setup.router.ServeHTTP(rr, requestWithPrincipal(t, "POST", "/courses", []byte("{not json"), dosen))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	emptyTitle, err := json.Marshal(map[string]string{"title": "", "description": "x"})
	require.NoError(t, err)
	rr = httptest.NewRecorder()
	setup.router.ServeHTTP(rr, requestWithPrincipal(t, "POST", "/courses", emptyTitle, dosen))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
