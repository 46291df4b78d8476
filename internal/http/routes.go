package http

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	_ "github.com/tazhibayda/identity-service/docs"
)

type RouterConfig struct {
	Dev       bool
	Trace     bool
	Counter   Counter
	RateLimit RateLimitConfig
}

func NewRouter(h *Handler, cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestID())
	if cfg.Trace {
		r.Use(Tracing())
	}
	r.Use(Metrics(), AccessLog(h.Log), SecurityHeaders(cfg.Dev))

	r.GET("/healthz", h.Healthz)
	r.GET("/api/health", h.Healthz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	r.GET("/.well-known/jwks.json", h.JWKS)

	counter := cfg.Counter
	if counter == nil {
		counter = NewMemoryCounter()
	}
	if cfg.RateLimit.Skip == nil {
		cfg.RateLimit.Skip = DefaultRateLimitSkip
	}
	auth := AuthJWT(h.Tokens)

	api := r.Group("/api/auth", RateLimit(counter, cfg.RateLimit, h.Log))
	{
		api.POST("/check", h.Check)
		api.GET("/check", h.Check)
		api.POST("/link", auth, h.Link)
		api.GET("/accounts", auth, h.Accounts)
		api.GET("/me", auth, h.Me)

		api.GET("/providers", h.Providers)
		api.GET("/signin/:provider", h.SignIn)
		api.POST("/signin/email", h.EmailSignIn)
		api.GET("/callback/email", h.EmailCallback)
		api.GET("/callback/:provider", h.Callback)
	}
	return r
}
