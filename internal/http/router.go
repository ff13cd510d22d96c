package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/Tyagi221B/Backend/internal/config"
	"github.com/Tyagi221B/Backend/internal/http/handler"
	httpmiddleware "github.com/Tyagi221B/Backend/internal/http/middleware"
	"github.com/Tyagi221B/Backend/internal/middleware"
)

// NewRouter wires Gin routes and middleware.
func NewRouter(cfg config.Config, authHandler *handler.AuthHandler, authMiddleware *httpmiddleware.Auth, rateLimiter *middleware.RateLimiter) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(httpmiddleware.RequestLogger(nil))
	if rateLimiter != nil {
		r.Use(rateLimiter.Handler())
	}
	r.Use(middleware.CORS(cfg))
	r.Use(otelgin.Middleware(cfg.ServiceName))

	users := r.Group("/api/v1/users")
	{
		users.POST("/register", authHandler.Register)
		users.POST("/login", authHandler.Login)
		users.POST("/refresh-token", authHandler.Refresh)

		users.POST("/logout", authMiddleware.RequireUser, authHandler.Logout)
		users.GET("/current-user", authMiddleware.RequireUser, authHandler.Me)
		users.POST("/change-password", authMiddleware.RequireUser, authHandler.ChangePassword)
		users.PATCH("/update-account", authMiddleware.RequireUser, authHandler.UpdateAccount)
		users.PATCH("/avatar", authMiddleware.RequireUser, authHandler.UpdateAvatar)
		users.PATCH("/cover-image", authMiddleware.RequireUser, authHandler.UpdateCoverImage)
	}

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	return r
}
