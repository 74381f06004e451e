package server

import (
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"

	"dsr-backend/internal/files"
	"dsr-backend/internal/services/health"
	"dsr-backend/internal/shared/config"
	"dsr-backend/internal/shared/metrics"
	"dsr-backend/internal/shared/server/middleware"
	"dsr-backend/internal/shared/server/respond"
	"dsr-backend/internal/shared/telemetry"
	"dsr-backend/internal/users"
)

const (
	rateGroupUpload = "UPLOAD"
	rateGroupAuth   = "AUTH"
)

// RouterDeps are the handlers and stores the router wires together.
type RouterDeps struct {
	Config       config.Config
	SessionStore sessions.Store
	FilesHandler *files.Handler
	UsersHandler *users.Handler
	Health       *health.Service
	RateLimiter  *middleware.RateLimiter
	// ActiveUser re-checks the account behind each authenticated request.
	ActiveUser middleware.ActiveUserFunc
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	if deps.Config.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	// ClientIP keys the rate limiter, so forwarding headers are honoured only
	// from the configured proxies. An empty list trusts none.
	if err := r.SetTrustedProxies(deps.Config.TrustedProxies); err != nil {
		telemetry.Error("router.trusted_proxies", map[string]any{"error": err})
		_ = r.SetTrustedProxies(nil)
	}
	// Uploads are streamed to disk past this size instead of held in memory.
	r.MaxMultipartMemory = 8 << 20

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		metrics.Middleware(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
	)
	r.Use(middleware.Session(deps.SessionStore)...)
	r.Use(middleware.RateLimit(middleware.RateLimitConfig{
		Limiter:  deps.RateLimiter,
		GroupFor: rateGroupFor,
		Rules: map[string]middleware.RateLimitRule{
			rateGroupUpload: {Rate: deps.Config.UploadRateRPS, Burst: deps.Config.UploadRateBurst},
			rateGroupAuth:   {Rate: deps.Config.AuthRateRPS, Burst: deps.Config.AuthRateBurst},
		},
	}))

	r.GET("/metrics", metrics.Handler())

	api := r.Group("/api")
	api.GET("/health", func(c *gin.Context) {
		if deps.Health == nil {
			respond.OK(c, gin.H{"ok": true})
			return
		}
		status, ok := deps.Health.Status(c.Request.Context())
		code := http.StatusOK
		if !ok {
			code = http.StatusServiceUnavailable
		}
		respond.JSON(c, code, status)
	})

	deps.UsersHandler.RegisterRoutes(api)
	deps.FilesHandler.RegisterPublicRoutes(api)

	authed := api.Group("")
	authed.Use(middleware.RequireSession(deps.ActiveUser))
	deps.FilesHandler.RegisterRoutes(authed)

	r.NoRoute(func(c *gin.Context) {
		respond.Error(c, http.StatusNotFound, respond.CodeNotFound, "route not found", nil)
	})

	return r
}

// rateGroupFor limits only writes and logins; retrieval is left to caches.
func rateGroupFor(c *gin.Context) string {
	switch c.FullPath() {
	case "/api/upload":
		return rateGroupUpload
	case "/api/auth/login":
		return rateGroupAuth
	default:
		return "NONE"
	}
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
