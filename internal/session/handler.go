package session

import (
	"fmt"
	"net/http"
	"time"

	"github.com/Jiwaru/pss-uas-lms-backend/pkg"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

const (
	sessionCookieName = "lms_session"
	sessionKeyPrefix  = "lms-session||"
	sessionTTL        = 24 * time.Hour
)

// Handler demonstrates the redis backed visit counter. The session
// store itself is just redis, keyed by a cookie-held session id.
type Handler struct {
	redisClient *redis.Client
	// ability to inject session id generation (for unit testing)
	NewSessionID func() string
}

func NewHandler(redisClient *redis.Client) *Handler {
	return &Handler{
		redisClient:  redisClient,
		NewSessionID: uuid.NewString,
	}
}

func (handler *Handler) SetupRoutes(mainRouter *mux.Router) {
	mainRouter.HandleFunc("/test-session", handler.HandleVisitCount).Methods("GET", "OPTIONS").Name("test-session")
}

func (handler *Handler) HandleVisitCount(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.Header().Add("Allow", "GET, OPTIONS")
		w.WriteHeader(http.StatusOK)
		return
	}

	var sessionID string
	if cookie, err := r.Cookie(sessionCookieName); err == nil && cookie.Value != "" {
		sessionID = cookie.Value
	} else {
		sessionID = handler.NewSessionID()
		http.SetCookie(w, &http.Cookie{
			Name:     sessionCookieName,
			Value:    sessionID,
			Path:     "/",
			HttpOnly: true,
		})
	}

	sessionKey := sessionKeyPrefix + sessionID
	visitCount, err := handler.redisClient.Incr(r.Context(), sessionKey).Result()
	if err != nil {
		log.Errorf("session visit count, incr %s: %s", sessionKey, err)
		http.Error(w, "session error", http.StatusInternalServerError)
		return
	}

	// keep the counter alive for another day on every visit
	if err := handler.redisClient.Expire(r.Context(), sessionKey, sessionTTL).Err(); err != nil {
		log.Errorf("session visit count, expire %s: %s", sessionKey, err)
	}

	pkg.WriteJSONResponseOK(w, fmt.Sprintf(
		`{"message":"session counter is working via redis","visit_count":%d,"session_key":"%s"}`,
		visitCount, sessionID,
	))
}
