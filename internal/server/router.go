package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/lib64hardcoded/lib64hardcoded.github.io-sub000/internal/auth"
	"github.com/lib64hardcoded/lib64hardcoded.github.io-sub000/internal/hook"
	"github.com/lib64hardcoded/lib64hardcoded.github.io-sub000/internal/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const sessionContextKey = "dashboard_session"

var (
	errMissingHook       = errors.New("hook dependency required")
	errMissingSessions   = errors.New("session validator dependency required")
	errMissingIssuer     = errors.New("session issuer dependency required")
	errMissingDispatcher = errors.New("realtime dispatcher dependency required")
)

type SessionValidator interface {
	ValidateRequest(r *http.Request) (auth.SessionClaims, error)
	CookieName() string
}

type SessionIssuer interface {
	IssueSession(user models.User) (string, time.Time, error)
}

type Dependencies struct {
	Hook       *hook.Hook
	Sessions   SessionValidator
	Issuer     SessionIssuer
	Dispatcher *RealtimeDispatcher
	Logger     *zap.Logger
	// Registry backs the /metrics endpoint and the request counter; nil uses a private one.
	Registry          *prometheus.Registry
	AllowedOrigins    []string
	HeartbeatInterval time.Duration
}

// NewHTTPHandler builds the dashboard API. Every /api route except the guest bootstrap needs a
// session; management routes additionally need the staff grade.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Hook == nil {
		return nil, errMissingHook
	}
	if deps.Sessions == nil {
		return nil, errMissingSessions
	}
	if deps.Issuer == nil {
		return nil, errMissingIssuer
	}
	if deps.Dispatcher == nil {
		return nil, errMissingDispatcher
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	registry := deps.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	heartbeat := deps.HeartbeatInterval
	if heartbeat <= 0 {
		heartbeat = defaultHeartbeatInterval
	}

	handler := &httpHandler{
		hook:       deps.Hook,
		sessions:   deps.Sessions,
		issuer:     deps.Issuer,
		dispatcher: deps.Dispatcher,
		logger:     logger,
		heartbeat:  heartbeat,
	}
	requests := newRequestCounter(registry)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware(deps.AllowedOrigins))
	router.Use(requests.observe)

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	api := router.Group("/api")
	api.POST("/session/guest", handler.handleGuestSession)

	protected := api.Group("/")
	protected.Use(handler.authorizeRequest)
	handler.registerUserRoutes(protected)
	handler.registerContentRoutes(protected)
	handler.registerSupportRoutes(protected)

	return router, nil
}

// staffGrade is the tier allowed to manage users and content.
const staffGrade = models.GradeSupport

type httpHandler struct {
	hook       *hook.Hook
	sessions   SessionValidator
	issuer     SessionIssuer
	dispatcher *RealtimeDispatcher
	logger     *zap.Logger
	heartbeat  time.Duration
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodPatch,
			http.MethodDelete,
			http.MethodOptions,
		},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(origins) == 0 {
		cfg.AllowOriginFunc = func(string) bool { return true }
	} else {
		cfg.AllowOrigins = origins
	}
	return cors.New(cfg)
}

type requestCounter struct {
	requests *prometheus.CounterVec
}

func newRequestCounter(registerer prometheus.Registerer) *requestCounter {
	return &requestCounter{
		requests: promauto.With(registerer).NewCounterVec(prometheus.CounterOpts{
			Namespace: "dashboard",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
	}
}

func (r *requestCounter) observe(c *gin.Context) {
	c.Next()
	route := c.FullPath()
	if route == "" {
		route = "unmatched"
	}
	r.requests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
}

// authorizeRequest validates the session and refreshes the caller's grade from the user record,
// so grade changes and blocks apply before the token expires.
func (h *httpHandler) authorizeRequest(c *gin.Context) {
	claims, err := h.sessions.ValidateRequest(c.Request)
	if err != nil {
		if errors.Is(err, auth.ErrExpiredSessionToken) || errors.Is(err, auth.ErrMissingSessionToken) {
			h.logger.Info("session validation failed", zap.Error(err))
		} else {
			h.logger.Warn("session validation failed", zap.Error(err))
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	if user, _, found := h.hook.Users.Get(c.Request.Context(), claims.UserID); found {
		if h.hook.Users.IsBlocked(user) {
			h.logger.Info("blocked user rejected", zap.String("user_id", user.ID))
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "user_blocked", "blocked_until": user.BlockedUntil})
			return
		}
		if user.Grade.Valid() {
			claims.Grade = user.Grade
		}
		claims.UserName = user.Name
	}
	c.Set(sessionContextKey, claims)
	c.Next()
}

func requireGrade(required models.Grade) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !sessionClaims(c).Grade.Meets(required) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden", "required_grade": required})
			return
		}
		c.Next()
	}
}

func sessionClaims(c *gin.Context) auth.SessionClaims {
	value, _ := c.Get(sessionContextKey)
	claims, _ := value.(auth.SessionClaims)
	return claims
}

func isStaff(c *gin.Context) bool {
	return sessionClaims(c).Grade.Meets(staffGrade)
}

func respond(c *gin.Context, status int, data any, source hook.Source) {
	c.JSON(status, gin.H{"data": data, "source": source})
}

// respondError maps hook failures onto HTTP statuses. The board message is user facing.
func (h *httpHandler) respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, hook.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, hook.ErrInvalidInput), errors.Is(err, hook.ErrInvalidID), errors.Is(err, models.ErrInvalidGrade):
		status = http.StatusBadRequest
	}

	body := gin.H{"error": "internal_error"}
	var serviceErr *hook.ServiceError
	if errors.As(err, &serviceErr) {
		body["error"] = serviceErr.Code()
		if message := h.hook.LastError(); message != "" {
			body["message"] = message
		}
	}
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed", zap.String("route", c.FullPath()), zap.Error(err))
	}
	c.JSON(status, body)
}

func badRequest(c *gin.Context, code string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": code})
}

func notFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
}

func queryLimit(c *gin.Context) int {
	limit, err := strconv.Atoi(c.Query("limit"))
	if err != nil {
		return 0
	}
	return limit
}
