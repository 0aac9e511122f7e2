package handler

import (
	"net/http"
	"strconv"

	"leadmarket_backend/internal/leads/service"
	"leadmarket_backend/internal/leads/transport"
	"leadmarket_backend/platform/httpkit"
	"leadmarket_backend/platform/validator"

	"github.com/gin-gonic/gin"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

// Handler handles buyer and seller HTTP requests for leads.
type Handler struct {
	svc *service.Service
	val *validator.Validator
}

// New creates a new leads handler.
func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// RegisterBuyerRoutes registers the buyer-facing lead routes.
func (h *Handler) RegisterBuyerRoutes(rg *gin.RouterGroup, submitLimit gin.HandlerFunc) {
	rg.POST("", submitLimit, h.Submit)
	rg.GET("/mine", h.ListMine)
}

// RegisterSellerRoutes registers the seller-facing market listing.
func (h *Handler) RegisterSellerRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.ListMarket)
}

// Submit creates a new lead in pending state for the authenticated buyer.
func (h *Handler) Submit(c *gin.Context) {
	var req transport.SubmitLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	id := httpkit.MustGetIdentity(c)
	if id == nil {
		return
	}

	result, err := h.svc.Submit(c.Request.Context(), id.UserID(), id.Email(), req)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.JSON(c, http.StatusCreated, result)
}

// ListMine returns the authenticated buyer's own leads.
func (h *Handler) ListMine(c *gin.Context) {
	id := httpkit.MustGetIdentity(c)
	if id == nil {
		return
	}

	page, limit := pageParams(c)
	result, err := h.svc.ListMine(c.Request.Context(), id.UserID(), page, limit)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, result)
}

// ListMarket returns approved leads with open slots, without buyer identity.
func (h *Handler) ListMarket(c *gin.Context) {
	page, limit := pageParams(c)
	result, err := h.svc.ListMarket(c.Request.Context(), page, limit)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, result)
}

func pageParams(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	return page, limit
}
