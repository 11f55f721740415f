package courses

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/Jiwaru/pss-uas-lms-backend/internal/auth"
	"github.com/Jiwaru/pss-uas-lms-backend/internal/middleware"
	"github.com/Jiwaru/pss-uas-lms-backend/internal/telemetry/metrics"
	"github.com/Jiwaru/pss-uas-lms-backend/internal/telemetry/tracing"
	"github.com/Jiwaru/pss-uas-lms-backend/pkg"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/codes"
)

type Handler struct {
	repo      Repo
	listCache *ListCache
	metrics   *metrics.Manager
}

func NewHandler(repo Repo, listCache *ListCache, metricsManager *metrics.Manager) *Handler {
	return &Handler{
		repo:      repo,
		listCache: listCache,
		metrics:   metricsManager,
	}
}

func (handler *Handler) SetupRoutes(mainRouter *mux.Router) {
	mainRouter.HandleFunc("/courses", handler.HandleCreate).Methods("POST", "OPTIONS").Name("new-course")
	mainRouter.HandleFunc("/courses", handler.HandleList).Methods("GET", "OPTIONS").Name("list-courses")
	mainRouter.HandleFunc("/courses/{id}", handler.HandleDelete).Methods("DELETE", "OPTIONS").Name("delete-course")
}

func (handler *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "coursesHandler.create")
	defer span.End()

	if r.Method == http.MethodOptions {
		w.Header().Add("Allow", "POST, OPTIONS")
		w.WriteHeader(http.StatusOK)
		return
	}

	principal := middleware.PrincipalFromContext(ctx)
	if principal == nil {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		span.SetStatus(codes.Error, "no-principal")
		return
	}

	if err := auth.AssertPrivileged(principal); err != nil {
		log.Tracef("create course, forbidden for [%s]", principal.Username)
		http.Error(w, "forbidden", http.StatusForbidden)
		span.SetStatus(codes.Error, "forbidden")
		return
	}

	type createCourseRequest struct {
		Title       string `json:"title"`
		Description string `json:"description"`
	}
	var createReq createCourseRequest
	if err := json.NewDecoder(r.Body).Decode(&createReq); err != nil {
		log.Errorf("create course, unmarshal json params: %s", err)
		http.Error(w, "invalid course data", http.StatusBadRequest)
		return
	}
	if createReq.Title == "" {
		http.Error(w, "error, title empty", http.StatusBadRequest)
		return
	}

	now := time.Now()
	course := &Course{
		Title:          createReq.Title,
		Description:    createReq.Description,
		InstructorID:   principal.ID,
		InstructorName: principal.Username,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	createdCourse, err := handler.repo.Create(ctx, course)
	if err != nil {
		log.Errorf("failed to create course [%s]: %s", course.Title, err)
		http.Error(w, "error, failed to create course", http.StatusInternalServerError)
		span.SetStatus(codes.Error, "create-failed")
		return
	}

	// drop the cached listing only now that the insert is committed
	if err := handler.listCache.Invalidate(ctx); err != nil {
		log.Errorf("invalidate course list cache after create: %s", err)
	}

	handler.metrics.CounterCoursesCreated.Inc()
	span.SetStatus(codes.Ok, "ok")

	log.Printf("new course created: [%s] by [%s]: %d", createdCourse.Title, principal.Username, createdCourse.ID)

	courseJson, err := json.Marshal(createdCourse)
	if err != nil {
		log.Errorf("marshal created course: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, courseJson)
}

func (handler *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "coursesHandler.list")
	defer span.End()

	courses, fromCache, err := handler.listCache.List(ctx)
	if err != nil {
		log.Errorf("list courses error: %s", err)
		http.Error(w, "failed to get courses", http.StatusInternalServerError)
		span.SetStatus(codes.Error, "list-failed")
		return
	}

	if fromCache {
		handler.metrics.CounterCourseListCacheHit.Inc()
	} else {
		handler.metrics.CounterCourseListCacheMiss.Inc()
	}

	if len(courses) == 0 {
		courses = []Course{}
	}

	coursesJson, err := json.Marshal(courses)
	if err != nil {
		log.Errorf("marshal courses error: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	span.SetStatus(codes.Ok, "ok")
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, coursesJson)
}

func (handler *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "coursesHandler.delete")
	defer span.End()

	if r.Method == http.MethodOptions {
		w.Header().Add("Allow", "DELETE, OPTIONS")
		w.WriteHeader(http.StatusOK)
		return
	}

	principal := middleware.PrincipalFromContext(ctx)
	if principal == nil {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		span.SetStatus(codes.Error, "no-principal")
		return
	}

	if err := auth.AssertPrivileged(principal); err != nil {
		log.Tracef("delete course, forbidden for [%s]", principal.Username)
		http.Error(w, "forbidden", http.StatusForbidden)
		span.SetStatus(codes.Error, "forbidden")
		return
	}

	vars := mux.Vars(r)
	idStr := vars["id"]
	if idStr == "" {
		http.Error(w, "error, id empty", http.StatusBadRequest)
		return
	}
	id, err := strconv.Atoi(idStr)
	if err != nil {
		http.Error(w, "error, id invalid", http.StatusBadRequest)
		return
	}

	if err := handler.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrCourseNotFound) {
			http.Error(w, "course not found", http.StatusNotFound)
			span.SetStatus(codes.Error, "not-found")
			return
		}
		log.Errorf("failed to delete course %d: %s", id, err)
		http.Error(w, "error, failed to delete course", http.StatusInternalServerError)
		span.SetStatus(codes.Error, "delete-failed")
		return
	}

	// same ordering as create: mutation first, then cache drop
	if err := handler.listCache.Invalidate(ctx); err != nil {
		log.Errorf("invalidate course list cache after delete: %s", err)
	}

	handler.metrics.CounterCoursesDeleted.Inc()
	span.SetStatus(codes.Ok, "ok")

	log.Printf("course deleted: %d by [%s]", id, principal.Username)
	pkg.WriteJSONResponseOK(w, `{"success":true}`)
}
