// Package http provides HTTP server infrastructure including module registration.
package http

import (
	"context"
	"net/http"

	"crm_assistant_backend/platform/config"
	"crm_assistant_backend/platform/logger"
)

// HealthChecker exposes minimal functionality for readiness checks.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// App holds the fully initialized application dependencies.
// This is populated by main.go (the composition root) and passed to the router.
type App struct {
	// Config holds the router configuration (HTTP settings only).
	Config config.HTTPConfig
	// Logger is the structured logger.
	Logger *logger.Logger
	// Health is used for readiness checks; nil when no database is configured.
	Health HealthChecker
	// Metrics serves the Prometheus scrape endpoint; nil disables /metrics.
	Metrics http.Handler
	// Stats reports cache and session statistics for /api/stats; may be nil.
	Stats func() any
	// Modules contains all HTTP-facing modules.
	Modules []Module
}
