// Package http provides HTTP server infrastructure including the Module interface
// that every HTTP-facing module implements for route registration.
package http

import (
	"crm_assistant_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
)

// Module represents a bounded context that can register its HTTP routes.
// Each module implements this interface to encapsulate its own route setup,
// keeping the main router decoupled from specific endpoints.
type Module interface {
	// Name returns the module's identifier for logging purposes.
	Name() string
	// RegisterRoutes mounts the module's routes on the provided router context.
	RegisterRoutes(ctx *RouterContext)
}

// RouterContext provides shared dependencies for module route registration.
type RouterContext struct {
	// Engine is the root Gin engine for modules that mount top-level paths.
	Engine *gin.Engine
	// API is the /api route group.
	API *gin.RouterGroup
	// WebhookRateLimiter throttles inbound webhook deliveries per client IP.
	WebhookRateLimiter *httpkit.IPRateLimiter
}
