package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/anlik-eleman/backend/internal/auth"
	"github.com/anlik-eleman/backend/internal/metrics"
	"github.com/anlik-eleman/backend/internal/models"
	"github.com/anlik-eleman/backend/internal/users"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const callerContextKey = "anlik_eleman_caller"

var (
	errMissingAccountService = errors.New("account service dependency required")
	errMissingTokenManager   = errors.New("token manager dependency required")
	errMissingDatabase       = errors.New("database dependency required")
	errMissingAnonKey        = errors.New("anon key required")
)

// AccountService is the identity store behind the auth endpoints.
type AccountService interface {
	SignUp(ctx context.Context, email, password string, metadata models.Metadata) (users.Account, error)
	Authenticate(ctx context.Context, email, password string) (users.Account, error)
	Lookup(ctx context.Context, id string) (users.Account, error)
	IssueRefreshToken(ctx context.Context, accountID string) (users.RefreshToken, error)
	RotateRefreshToken(ctx context.Context, token string) (users.Account, users.RefreshToken, error)
	RevokeRefreshTokens(ctx context.Context, accountID string) error
	MinPasswordLength() int
}

// TokenManager issues and validates access tokens.
type TokenManager interface {
	IssueAccessToken(subject, email string) (auth.IssuedToken, error)
	ValidateAccessToken(token string) (auth.AccessClaims, error)
}

// Dependencies wires the platform handler.
type Dependencies struct {
	Accounts    AccountService
	Tokens      TokenManager
	Database    *gorm.DB
	AnonKey     string
	Metrics     metrics.Recorder
	Gatherer    prometheus.Gatherer
	RateLimiter *RateLimiter
	Logger      *zap.Logger
}

// NewHTTPHandler builds the platform router: auth endpoints, the row API, health and metrics.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Accounts == nil {
		return nil, errMissingAccountService
	}
	if deps.Tokens == nil {
		return nil, errMissingTokenManager
	}
	if deps.Database == nil {
		return nil, errMissingDatabase
	}
	if deps.AnonKey == "" {
		return nil, errMissingAnonKey
	}

	validator, err := auth.NewSessionValidator(deps.AnonKey, deps.Tokens)
	if err != nil {
		return nil, err
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	recorder := deps.Metrics
	if recorder == nil {
		recorder = metrics.Noop{}
	}

	tables, err := newTableRegistry(deps.Database)
	if err != nil {
		return nil, err
	}

	handler := &httpHandler{
		accounts:  deps.Accounts,
		tokens:    deps.Tokens,
		validator: validator,
		database:  deps.Database,
		tables:    tables,
		sanitizer: newTextSanitizer(),
		limiter:   deps.RateLimiter,
		metrics:   recorder,
		logger:    logger,
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())
	router.Use(handler.observeLatency)

	router.GET("/healthz", handler.handleHealth)
	if deps.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(metrics.Handler(deps.Gatherer)))
	}

	authRoutes := router.Group("/auth/v1")
	authRoutes.Use(handler.requireAPIKey)
	authRoutes.POST("/signup", handler.rateLimit("signup"), handler.handleSignUp)
	authRoutes.POST("/token", handler.rateLimit("token"), handler.handleToken)
	authRoutes.POST("/logout", handler.handleLogout)
	authRoutes.GET("/user", handler.handleUser)

	rows := router.Group("/rest/v1")
	rows.Use(handler.recordRowRequest, handler.authorizeRequest)
	rows.GET("/:table", handler.handleSelect)
	rows.POST("/:table", handler.handleInsert)
	rows.PATCH("/:table", handler.handleUpdate)
	rows.DELETE("/:table", handler.handleDelete)

	return router, nil
}

func corsMiddleware() gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{"Authorization", "Content-Type", "Accept", "Prefer", "apikey", "X-Client-Info"},
		MaxAge:       12 * time.Hour,
	})
}

type httpHandler struct {
	accounts  AccountService
	tokens    TokenManager
	validator *auth.SessionValidator
	database  *gorm.DB
	tables    tableRegistry
	sanitizer *textSanitizer
	limiter   *RateLimiter
	metrics   metrics.Recorder
	logger    *zap.Logger
}

func (h *httpHandler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *httpHandler) observeLatency(c *gin.Context) {
	started := time.Now()
	c.Next()
	route := c.FullPath()
	if route == "" {
		route = "unmatched"
	}
	h.metrics.RecordRequestLatency(route, time.Since(started))
}

// requireAPIKey guards the auth endpoints, which are called with the anon key as bearer.
func (h *httpHandler) requireAPIKey(c *gin.Context) {
	if err := h.validator.CheckAPIKey(auth.ExtractCredentials(c.Request)); err != nil {
		h.rejectAuthCredentials(c, err)
		return
	}
	c.Next()
}

// authorizeRequest resolves the row API caller. Anonymous callers pass through without claims.
func (h *httpHandler) authorizeRequest(c *gin.Context) {
	claims, err := h.validator.ValidateRequest(c.Request)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrMissingAPIKey), errors.Is(err, auth.ErrInvalidAPIKey):
			writeRowError(c, http.StatusUnauthorized, rowError{Code: codeJWTInvalid, Message: "Invalid API key"})
		case errors.Is(err, auth.ErrExpiredAccessToken):
			h.logger.Info("token validation failed", zap.Error(err))
			writeRowError(c, http.StatusUnauthorized, rowError{Code: codeJWTExpired, Message: "JWT expired"})
		default:
			h.logger.Warn("token validation failed", zap.Error(err))
			writeRowError(c, http.StatusUnauthorized, rowError{Code: codeJWTInvalid, Message: "JWT invalid"})
		}
		return
	}
	if claims != nil {
		c.Set(callerContextKey, *claims)
	}
	c.Next()
}

func (h *httpHandler) rateLimit(endpoint string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if h.limiter == nil || h.limiter.Allow(endpoint+"|"+c.ClientIP()) {
			c.Next()
			return
		}
		h.metrics.RecordRateLimited(endpoint)
		h.logger.Warn("rate limit exceeded",
			zap.String("endpoint", endpoint),
			zap.String("client_ip", c.ClientIP()))
		c.Header("Retry-After", h.limiter.RetryAfter())
		writeAuthError(c, http.StatusTooManyRequests, "over_request_rate_limit", "Too many requests")
	}
}

func (h *httpHandler) recordRowRequest(c *gin.Context) {
	c.Next()
	h.metrics.RecordRowRequest(h.tables.label(c.Param("table")), c.Request.Method, c.Writer.Status())
}

func callerFromContext(c *gin.Context) (auth.AccessClaims, bool) {
	value, exists := c.Get(callerContextKey)
	if !exists {
		return auth.AccessClaims{}, false
	}
	claims, ok := value.(auth.AccessClaims)
	return claims, ok
}
