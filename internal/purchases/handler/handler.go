package handler

import (
	"net/http"
	"strconv"

	"leadmarket_backend/internal/purchases/service"
	"leadmarket_backend/internal/purchases/transport"
	"leadmarket_backend/platform/httpkit"
	"leadmarket_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

// Handler handles seller HTTP requests for purchases.
type Handler struct {
	svc *service.Service
	val *validator.Validator
}

// New creates a new purchases handler.
func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// RegisterLeadRoutes registers the purchase submission under /leads/:id.
func (h *Handler) RegisterLeadRoutes(rg *gin.RouterGroup, submitLimit gin.HandlerFunc) {
	rg.POST("/:id/purchases", submitLimit, h.Submit)
}

// RegisterRoutes registers the seller purchase routes.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/mine", h.ListMine)
	rg.POST("/proofs/presign", h.PresignProof)
}

// Submit claims a slot on an approved lead for the authenticated seller.
func (h *Handler) Submit(c *gin.Context) {
	leadID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	var req transport.SubmitPurchaseRequest
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

	result, err := h.svc.SubmitPurchase(c.Request.Context(), leadID, id.UserID(), id.Email(), req)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.JSON(c, http.StatusCreated, result)
}

// ListMine returns the authenticated seller's purchase attempts.
func (h *Handler) ListMine(c *gin.Context) {
	id := httpkit.MustGetIdentity(c)
	if id == nil {
		return
	}

	page, limit := pageParams(c)
	result, err := h.svc.ListMyPurchases(c.Request.Context(), id.UserID(), page, limit)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, result)
}

// PresignProof returns a presigned upload URL for a payment proof.
func (h *Handler) PresignProof(c *gin.Context) {
	var req transport.PresignProofRequest
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

	result, err := h.svc.PresignProofUpload(c.Request.Context(), id.UserID(), req)
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
