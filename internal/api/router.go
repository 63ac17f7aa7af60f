package api

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	ginprometheus "github.com/zsais/go-gin-prometheus"
	"go.uber.org/zap"

	"github.com/GIL794/algorand-ai-contract-creator/internal/config"
	"github.com/GIL794/algorand-ai-contract-creator/internal/metrics"
)

// RouterOptions carries what NewRouter needs besides the handler.
type RouterOptions struct {
	Server  config.ServerConfig
	Env     string
	Metrics *metrics.Metrics
	// Redis backs the rate limiter when set.
	Redis *redis.Client
}

// NewRouter builds the gin engine with logging, recovery, CORS, request
// metrics, health and metrics endpoints, and the API routes.
func NewRouter(h *Handler, opts RouterOptions, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	if opts.Env == "development" {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()
	router.RedirectTrailingSlash = true
	router.Use(ZapLogger(logger.Named("http")))
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	if len(opts.Server.AllowedOrigins) > 0 && !(len(opts.Server.AllowedOrigins) == 1 && opts.Server.AllowedOrigins[0] == "*") {
		corsConfig.AllowOrigins = opts.Server.AllowedOrigins
		corsConfig.AllowCredentials = true
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", requestIDHeader}
	corsConfig.ExposeHeaders = []string{requestIDHeader}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// HTTP request series live on the default registry, apart from the
	// pipeline registry served at /metrics.
	p := ginprometheus.NewPrometheus("gin")
	p.MetricsPath = "/metrics/http"
	p.Use(router)

	healthHandler := func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
	router.GET("/health", healthHandler)
	router.HEAD("/health", healthHandler)

	if opts.Metrics != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(opts.Metrics.Registry, promhttp.HandlerOpts{})))
	}

	limit := opts.Server.GenerateRateLimit
	if limit == 0 {
		limit = 10
	}
	h.RegisterRoutes(router,
		JWTAuth(opts.Server.JWTSecret, logger.Named("auth")),
		RateLimit(opts.Redis, limit, logger.Named("ratelimit")),
	)

	return router
}
