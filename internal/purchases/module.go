// Package purchases provides the purchase module: slot allocation under
// pessimistic reservation and the administrator payment verification gate.
package purchases

import (
	"leadmarket_backend/internal/events"
	apphttp "leadmarket_backend/internal/http"
	"leadmarket_backend/internal/purchases/handler"
	"leadmarket_backend/internal/purchases/repository"
	"leadmarket_backend/internal/purchases/service"
	"leadmarket_backend/platform/httpkit"
	"leadmarket_backend/platform/logger"
	"leadmarket_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module represents the purchases domain module.
type Module struct {
	handler      *handler.Handler
	adminHandler *handler.AdminHandler
	service      *service.Service
}

// NewModule creates a new purchases module with all dependencies wired.
// The chat provisioner and proof storage are injected afterwards by the
// composition root via Service().
func NewModule(pool *pgxpool.Pool, bus events.Bus, val *validator.Validator, log *logger.Logger) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, bus, log)

	return &Module{
		handler:      handler.New(svc, val),
		adminHandler: handler.NewAdminHandler(svc, val),
		service:      svc,
	}
}

// Name returns the module name for logging.
func (m *Module) Name() string {
	return "purchases"
}

// Service returns the service layer for external use.
func (m *Module) Service() *service.Service {
	return m.service
}

// RegisterRoutes registers the module's routes.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	seller := ctx.Protected.Group("", httpkit.RequireRole(httpkit.RoleSeller))
	m.handler.RegisterLeadRoutes(seller.Group("/leads"), ctx.SubmitRateLimiter.RateLimit())
	m.handler.RegisterRoutes(seller.Group("/purchases"))

	admin := ctx.Admin.Group("/payments")
	m.adminHandler.RegisterRoutes(admin)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
