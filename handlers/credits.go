package handlers

import (
	"net/http"

	"portal-svc/middleware"
	"portal-svc/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// GetCreditBalance fetches the active customer's balance and replaces
// the store's copy wholesale.
func (h *PortalHandler) GetCreditBalance(c *gin.Context) {
	ctx, span := tracer.Start(c.Request.Context(), "GetCreditBalance")
	defer span.End()

	customerID := h.store.CustomerID()
	balance, err := h.credits.GetTotal(ctx, customerID)
	if err != nil {
		span.RecordError(err)
		h.respondError(c, err)
		return
	}

	h.store.SetCreditBalance(&balance)
	c.JSON(http.StatusOK, balance)
}

// AddCredit tops up the active customer's prepaid credit, then refreshes.
func (h *PortalHandler) AddCredit(c *gin.Context) {
	ctx, span := tracer.Start(c.Request.Context(), "AddCredit")
	defer span.End()

	var req models.AddCreditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.store.SetError("")
	h.store.SetLoading(true)
	defer h.store.SetLoading(false)

	customerID := h.store.CustomerID()
	entry, err := h.credits.AddCredit(ctx, customerID, req.Amount)
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to add credit",
			zap.String("customer_id", customerID),
			zap.Error(err),
		)
		h.store.SetError(err.Error())
		h.respondError(c, err)
		return
	}

	if err := h.syncer.Refresh(ctx); err != nil {
		h.logger.Warn("Refresh after adding credit failed", zap.Error(err))
	}

	h.logger.Info("Credit added",
		zap.String("trace_id", middleware.GetTraceID(ctx)),
		zap.String("customer_id", customerID),
		zap.Float64("amount", req.Amount),
	)
	c.JSON(http.StatusCreated, entry)
}
