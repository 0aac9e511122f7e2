package http

import (
	"leadmarket_backend/platform/config"
	"leadmarket_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
)

// Module is a bounded context that mounts its own routes. The router stays
// ignorant of individual endpoints; each module owns its URL space.
type Module interface {
	// Name identifies the module in logs.
	Name() string
	// RegisterRoutes mounts the module's routes using the shared groups
	// and middleware in the RouterContext.
	RegisterRoutes(ctx *RouterContext)
}

// RouterContext bundles what modules need at registration time.
type RouterContext struct {
	Engine *gin.Engine
	// V1 is the public /api/v1 group.
	V1 *gin.RouterGroup
	// Protected requires a valid JWT.
	Protected *gin.RouterGroup
	// Admin additionally requires the admin role.
	Admin *gin.RouterGroup
	// Config exposes JWT settings to modules that build their own guards.
	Config config.JWTConfig
	// AuthMiddleware is the JWT guard used by Protected and Admin.
	AuthMiddleware gin.HandlerFunc
	// SubmitRateLimiter throttles lead and purchase submission routes
	// harder than the global limiter.
	SubmitRateLimiter *httpkit.SubmitRateLimiter
}
