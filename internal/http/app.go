// Package http wires the marketplace's HTTP surface: module registration,
// route groups, and the assembled application passed to the router.
package http

import (
	"context"

	"leadmarket_backend/internal/events"
	"leadmarket_backend/platform/config"
	"leadmarket_backend/platform/logger"
)

// RouterConfig is the slice of configuration the router needs.
type RouterConfig interface {
	config.HTTPConfig
	config.JWTConfig
}

// HealthChecker answers readiness probes, typically a DB ping.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// App carries the initialized dependencies from the composition root
// (cmd/api) into the router.
type App struct {
	Config RouterConfig
	Logger *logger.Logger
	// Health backs the /health endpoint.
	Health HealthChecker
	// EventBus carries lead and payment lifecycle events between modules.
	EventBus events.Bus
	// Modules are the HTTP-facing bounded contexts, registered in order.
	Modules []Module
}
