package httpapi

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/rlaxogns100-oss/uniroad-agent/internal/httpapi/middleware"
	"github.com/rlaxogns100-oss/uniroad-agent/internal/platform/logger"
)

type RouterConfig struct {
	Handlers        *Handlers
	Auth            *middleware.AuthMiddleware
	AllowedOrigins  string
	Log             *logger.Logger
}

// NewRouter wires the routes from spec §6 "External Interfaces". Chat
// streaming accepts anonymous callers (optional auth, IP-quota fallback);
// session management requires an authenticated principal.
func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware("uniroad-agent"))
	r.Use(middleware.CORS(cfg.AllowedOrigins))
	r.Use(middleware.RequestLogger(cfg.Log))

	api := r.Group("/api")
	{
		api.POST("/chat/stream", cfg.Auth.OptionalAuth(), cfg.Handlers.PostChatStream)

		sessions := api.Group("/sessions", cfg.Auth.RequireAuth())
		sessions.POST("", cfg.Handlers.PostSessions)
		sessions.GET("", cfg.Handlers.GetSessions)
		sessions.GET("/:id/messages", cfg.Handlers.GetSessionMessages)
		sessions.PATCH("/:id", cfg.Handlers.PatchSession)
		sessions.DELETE("/:id", cfg.Handlers.DeleteSession)
	}
	return r
}
