package users

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/Jiwaru/pss-uas-lms-backend/internal/ratelimit"
	"github.com/Jiwaru/pss-uas-lms-backend/internal/telemetry/metrics"
	"github.com/Jiwaru/pss-uas-lms-backend/internal/telemetry/tracing"
	"github.com/Jiwaru/pss-uas-lms-backend/pkg"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/codes"
)

// TokenIssuer hands out a signed bearer token for a user id
type TokenIssuer interface {
	Issue(userID int) (string, error)
}

type Handler struct {
	repo        Repo
	tokenIssuer TokenIssuer
	limiter     *ratelimit.Limiter
	metrics     *metrics.Manager
	loginLimit  int
	loginWindow time.Duration
	tokenTTL    time.Duration
}

type NewHandlerParams struct {
	Repo        Repo
	TokenIssuer TokenIssuer
	Limiter     *ratelimit.Limiter
	Metrics     *metrics.Manager
	LoginLimit  int
	LoginWindow time.Duration
	TokenTTL    time.Duration
}

func NewHandler(params NewHandlerParams) *Handler {
	return &Handler{
		repo:        params.Repo,
		tokenIssuer: params.TokenIssuer,
		limiter:     params.Limiter,
		metrics:     params.Metrics,
		loginLimit:  params.LoginLimit,
		loginWindow: params.LoginWindow,
		tokenTTL:    params.TokenTTL,
	}
}

// SetupRoutes registers the auth endpoints. The register endpoint gets
// an extra burst limit wrapped around it by the caller.
func (handler *Handler) SetupRoutes(
	mainRouter *mux.Router,
	registerLimit func(next http.Handler) http.Handler,
) {
	authSubrouter := mainRouter.PathPrefix("/auth").Subrouter()
	authSubrouter.
		Handle("/register", registerLimit(http.HandlerFunc(handler.HandleRegister))).
		Methods("POST", "OPTIONS").Name("register")
	authSubrouter.
		HandleFunc("/login", handler.HandleLogin).
		Methods("POST", "OPTIONS").Name("login")
}

func (handler *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	_, span := tracing.GlobalTracer.Start(r.Context(), "usersHandler.register")
	defer span.End()

	if r.Method == http.MethodOptions {
		w.Header().Add("Allow", "POST, OPTIONS")
		w.WriteHeader(http.StatusOK)
		return
	}

	type registerRequest struct {
		Username string `json:"username"`
		Password string `json:"password"`
		Email    string `json:"email"`
		Role     int8   `json:"role"`
	}

	var registerReq registerRequest
	if err := json.NewDecoder(r.Body).Decode(&registerReq); err != nil {
		log.Errorf("register, unmarshal json params: %s", err)
		http.Error(w, "invalid registration data", http.StatusBadRequest)
		return
	}

	if registerReq.Username == "" {
		http.Error(w, "error, username empty", http.StatusBadRequest)
		return
	}
	if registerReq.Password == "" {
		http.Error(w, "error, password empty", http.StatusBadRequest)
		return
	}
	role := Role(registerReq.Role)
	if !role.Valid() {
		http.Error(w, "error, unknown role", http.StatusBadRequest)
		return
	}

	passwordHash, err := pkg.HashPassword(registerReq.Password)
	if err != nil {
		log.Errorf("register, hash password: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	user, err := handler.repo.Create(r.Context(), &User{
		Username:     registerReq.Username,
		PasswordHash: passwordHash,
		Email:        registerReq.Email,
		Role:         role,
		CreatedAt:    time.Now(),
	})
	if err != nil {
		if pkg.IsUniqueViolationError(err) {
			http.Error(w, "error, username taken", http.StatusConflict)
			span.SetStatus(codes.Error, "username-taken")
			return
		}
		log.Errorf("register, create user [%s]: %s", registerReq.Username, err)
		http.Error(w, "error, failed to register", http.StatusInternalServerError)
		span.SetStatus(codes.Error, "create-failed")
		return
	}

	handler.metrics.CounterRegisteredUsers.Inc()
	span.SetStatus(codes.Ok, "ok")
	log.Printf("new user registered: [%s] role [%s]: %d", user.Username, user.Role, user.ID)

	resp, err := json.Marshal(struct {
		ID       int    `json:"id"`
		Username string `json:"username"`
		Role     string `json:"role"`
	}{
		ID:       user.ID,
		Username: user.Username,
		Role:     user.Role.String(),
	})
	if err != nil {
		log.Errorf("register, marshal response: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, resp)
}

func (handler *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	_, span := tracing.GlobalTracer.Start(r.Context(), "usersHandler.login")
	defer span.End()

	if r.Method == http.MethodOptions {
		w.Header().Add("Allow", "POST, OPTIONS")
		w.WriteHeader(http.StatusOK)
		return
	}

	type loginRequest struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}

	var loginReq loginRequest
	if err := json.NewDecoder(r.Body).Decode(&loginReq); err != nil {
		log.Errorf("login, unmarshal json params: %s", err)
		http.Error(w, "login failed", http.StatusBadRequest)
		return
	}

	if loginReq.Username == "" {
		http.Error(w, "error, username empty", http.StatusBadRequest)
		return
	}
	if loginReq.Password == "" {
		http.Error(w, "error, password empty", http.StatusBadRequest)
		return
	}

	handler.metrics.CounterLoginAttempts.Inc()

	clientIP, err := pkg.ReadUserIP(r)
	if err != nil {
		log.Errorf("login, read client address: %s", err)
		clientIP = r.RemoteAddr
	}

	// rate limiting happens before the credential lookup
	if err := handler.limiter.Check(clientIP, handler.loginLimit, handler.loginWindow); err != nil {
		log.Tracef("[rate limited] login attempt from %s", clientIP)
		handler.metrics.CounterRateLimitedLogins.Inc()
		http.Error(w, "too many login attempts, try again in a minute", http.StatusTooManyRequests)
		span.SetStatus(codes.Error, "rate-limited")
		return
	}

	user, err := handler.repo.GetByUsername(r.Context(), loginReq.Username)
	if err != nil {
		if !errors.Is(err, ErrUserNotFound) {
			log.Errorf("login, get user [%s]: %s", loginReq.Username, err)
		}
		// unknown user and wrong password are indistinguishable
		log.Tracef("[username] failed login attempt for user: %s", loginReq.Username)
		http.Error(w, "error, wrong credentials", http.StatusUnauthorized)
		span.SetStatus(codes.Error, "wrong-credentials")
		return
	}

	if !pkg.CheckPasswordHash(loginReq.Password, user.PasswordHash) {
		log.Tracef("[password] failed login attempt for user: %s", loginReq.Username)
		http.Error(w, "error, wrong credentials", http.StatusUnauthorized)
		span.SetStatus(codes.Error, "wrong-credentials")
		return
	}

	token, err := handler.tokenIssuer.Issue(user.ID)
	if err != nil {
		log.Errorf("login failed, generate token error: %s", err)
		http.Error(w, "generate token error", http.StatusInternalServerError)
		span.SetStatus(codes.Error, "issue-token-failed")
		return
	}

	span.SetStatus(codes.Ok, "ok")
	log.Tracef("new login success: %s", user.Username)

	resp, err := json.Marshal(struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
		ExpiresIn   int    `json:"expires_in"`
	}{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresIn:   int(handler.tokenTTL.Seconds()),
	})
	if err != nil {
		log.Errorf("login, marshal response: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, resp)
}
