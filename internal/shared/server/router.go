package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"media-analyzer/internal/analyses"
	"media-analyzer/internal/services/health"
	"media-analyzer/internal/shared/config"
	"media-analyzer/internal/shared/metrics"
	"media-analyzer/internal/shared/server/middleware"
	"media-analyzer/internal/shared/server/respond"
)

// RouterDeps are the handlers the router exposes.
type RouterDeps struct {
	Config   config.Config
	Analyses *analyses.Handler
	Health   *health.Service
	Limiter  *middleware.RateLimiter
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	if deps.Config.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.MaxMultipartMemory = 32 << 20

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
		middleware.RateLimit(middleware.RateLimitConfig{
			DefaultGroup: groupUnlimited,
			GroupFor:     routeGroup,
			Limiter:      deps.Limiter,
			Rules:        rateLimitRules(deps.Config),
		}),
	)

	r.GET("/health", func(c *gin.Context) {
		respond.OK(c, deps.Health.Status())
	})
	r.GET("/models/status", func(c *gin.Context) {
		respond.OK(c, deps.Health.ModelStatus())
	})
	r.GET("/metrics", metrics.Handler())

	if deps.Analyses != nil {
		deps.Analyses.RegisterRoutes(r, middleware.BodyLimit(deps.Config.MaxUploadBytes))
	}

	r.NoRoute(func(c *gin.Context) {
		respond.Error(c, http.StatusNotFound, "not_found", "Endpoint not found", nil)
	})
	return r
}

const (
	groupIntake    = "INTAKE"
	groupPolling   = "POLLING"
	groupUnlimited = "UNLIMITED"

	pollingMultiplier = 10
)

// routeGroup buckets requests by matched route. Health, metrics and unknown
// paths fall into the unlimited group.
func routeGroup(c *gin.Context) string {
	switch c.FullPath() {
	case "/analyze":
		return groupIntake
	case "/analyses", "/analyses/:id":
		return groupPolling
	default:
		return ""
	}
}

// rateLimitRules gives status polling a larger budget than intake so clients
// can poll a job while their submissions are throttled.
func rateLimitRules(cfg config.Config) map[string]middleware.RateLimitRule {
	return map[string]middleware.RateLimitRule{
		groupIntake: {
			Rate:  cfg.IntakeRatePerSecond,
			Burst: cfg.IntakeBurst,
		},
		groupPolling: {
			Rate:  cfg.IntakeRatePerSecond * pollingMultiplier,
			Burst: cfg.IntakeBurst * pollingMultiplier,
		},
	}
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":5001"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
