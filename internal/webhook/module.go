// Package webhook provides the WhatsApp inbound transport: the subscription
// handshake and the notification endpoint that feeds the dispatcher.
package webhook

import (
	apphttp "crm_assistant_backend/internal/http"
	"crm_assistant_backend/platform/logger"
	"crm_assistant_backend/platform/validator"
)

// Module is the webhook module implementing http.Module.
type Module struct {
	handler *Handler
}

// NewModule creates the webhook module.
func NewModule(dispatcher Dispatcher, verifyToken, region string, val *validator.Validator, log *logger.Logger) *Module {
	return &Module{handler: NewHandler(dispatcher, verifyToken, region, val, log)}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "webhook"
}

// RegisterRoutes mounts GET and POST /webhook behind the per-IP rate limiter.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.Engine.Group("/webhook")
	if ctx.WebhookRateLimiter != nil {
		group.Use(ctx.WebhookRateLimiter.RateLimit())
	}
	group.GET("", m.handler.HandleVerify)
	group.POST("", m.handler.HandleEvent)
}
