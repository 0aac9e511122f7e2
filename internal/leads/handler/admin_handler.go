package handler

import (
	"net/http"

	"leadmarket_backend/internal/leads/service"
	"leadmarket_backend/internal/leads/transport"
	"leadmarket_backend/platform/httpkit"
	"leadmarket_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AdminHandler handles administrator review of leads.
type AdminHandler struct {
	svc *service.Service
	val *validator.Validator
}

// NewAdminHandler creates a new admin leads handler.
func NewAdminHandler(svc *service.Service, val *validator.Validator) *AdminHandler {
	return &AdminHandler{svc: svc, val: val}
}

// RegisterRoutes registers the admin lead routes.
func (h *AdminHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.GET("/pending", h.ListPending)
	rg.GET("/:id", h.GetByID)
	rg.POST("/:id/approve", h.Approve)
	rg.POST("/:id/reject", h.Reject)
}

// List returns leads, optionally filtered by status.
func (h *AdminHandler) List(c *gin.Context) {
	var req transport.ListLeadsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	result, err := h.svc.List(c.Request.Context(), req)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, result)
}

// ListPending returns leads awaiting review.
func (h *AdminHandler) ListPending(c *gin.Context) {
	page, limit := pageParams(c)
	result, err := h.svc.ListPending(c.Request.Context(), page, limit)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, result)
}

// GetByID returns a single lead with full detail.
func (h *AdminHandler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	result, err := h.svc.GetByID(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, result)
}

// Approve prices a lead and opens it to the market.
func (h *AdminHandler) Approve(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	var req transport.ApproveLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	result, err := h.svc.Approve(c.Request.Context(), id, req)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, result)
}

// Reject declines a pending lead.
func (h *AdminHandler) Reject(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	result, err := h.svc.Reject(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, result)
}
