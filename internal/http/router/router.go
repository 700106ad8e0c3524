package router

import (
	"context"
	"net/http"
	"time"

	apphttp "crm_assistant_backend/internal/http"
	"crm_assistant_backend/platform/apperr"
	"crm_assistant_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// New builds the gin engine with shared middleware, health and metrics routes,
// then lets every module register its own routes.
func New(app *apphttp.App) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(httpkit.RequestID())
	engine.Use(httpkit.SecurityHeaders())
	engine.Use(httpkit.RequestLogger(app.Logger))

	api := engine.Group("/api")
	api.GET("/health", func(c *gin.Context) {
		if app.Health != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := app.Health.Ping(ctx); err != nil {
				httpkit.HandleError(c, apperr.Unavailable("database unavailable", err).WithOp("health"))
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if app.Stats != nil {
		api.GET("/stats", func(c *gin.Context) {
			httpkit.OK(c, app.Stats())
		})
	}

	if app.Metrics != nil {
		engine.GET("/metrics", gin.WrapH(app.Metrics))
	}

	rc := &apphttp.RouterContext{
		Engine: engine,
		API:    api,
		WebhookRateLimiter: httpkit.NewIPRateLimiter(
			rate.Limit(app.Config.GetWebhookRatePerSecond()),
			app.Config.GetWebhookRateBurst(),
			app.Logger,
		),
	}
	for _, m := range app.Modules {
		m.RegisterRoutes(rc)
		app.Logger.Debug("module routes registered", "module", m.Name())
	}

	return engine
}
