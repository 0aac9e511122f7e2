package handler

import (
	"net/http"

	"leadmarket_backend/internal/purchases/service"
	"leadmarket_backend/internal/purchases/transport"
	"leadmarket_backend/platform/httpkit"
	"leadmarket_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AdminHandler handles administrator payment verification.
type AdminHandler struct {
	svc *service.Service
	val *validator.Validator
}

// NewAdminHandler creates a new admin payments handler.
func NewAdminHandler(svc *service.Service, val *validator.Validator) *AdminHandler {
	return &AdminHandler{svc: svc, val: val}
}

// RegisterRoutes registers the admin payment routes.
func (h *AdminHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/pending", h.ListPending)
	rg.GET("/:id/proof", h.ProofDownload)
	rg.POST("/:id/verify", h.Verify)
	rg.POST("/:id/reject", h.Reject)
}

// ListPending returns payments awaiting verification, oldest first.
func (h *AdminHandler) ListPending(c *gin.Context) {
	page, limit := pageParams(c)
	result, err := h.svc.ListPendingPayments(c.Request.Context(), page, limit)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, result)
}

// ProofDownload returns a presigned URL to view the uploaded payment proof.
func (h *AdminHandler) ProofDownload(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	result, err := h.svc.GetProofDownload(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, result)
}

// Verify confirms a payment, granting the seller the slot.
func (h *AdminHandler) Verify(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	result, err := h.svc.VerifyPayment(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, result)
}

// Reject declines a payment and releases its reservation.
func (h *AdminHandler) Reject(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	var req transport.RejectPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	result, err := h.svc.RejectPayment(c.Request.Context(), id, req.Reason)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, result)
}
