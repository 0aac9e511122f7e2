// Package leads provides the lead lifecycle module: buyer submission,
// administrator review and the market listing sellers buy from.
package leads

import (
	"leadmarket_backend/internal/events"
	apphttp "leadmarket_backend/internal/http"
	"leadmarket_backend/internal/leads/handler"
	"leadmarket_backend/internal/leads/repository"
	"leadmarket_backend/internal/leads/service"
	"leadmarket_backend/platform/config"
	"leadmarket_backend/platform/httpkit"
	"leadmarket_backend/platform/logger"
	"leadmarket_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module represents the leads domain module.
type Module struct {
	handler      *handler.Handler
	adminHandler *handler.AdminHandler
	service      *service.Service
}

// NewModule creates a new leads module with all dependencies wired.
func NewModule(pool *pgxpool.Pool, bus events.Bus, cfg config.MarketConfig, val *validator.Validator, log *logger.Logger) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, bus, cfg, log)

	return &Module{
		handler:      handler.New(svc, val),
		adminHandler: handler.NewAdminHandler(svc, val),
		service:      svc,
	}
}

// Name returns the module name for logging.
func (m *Module) Name() string {
	return "leads"
}

// Service returns the service layer for external use.
func (m *Module) Service() *service.Service {
	return m.service
}

// RegisterRoutes registers the module's routes.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	leads := ctx.Protected.Group("/leads")
	m.handler.RegisterSellerRoutes(leads.Group("", httpkit.RequireRole(httpkit.RoleSeller)))

	buyer := leads.Group("", httpkit.RequireRole(httpkit.RoleBuyer))
	m.handler.RegisterBuyerRoutes(buyer, ctx.SubmitRateLimiter.RateLimit())

	admin := ctx.Admin.Group("/leads")
	m.adminHandler.RegisterRoutes(admin)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
