package handlers

import (
	"net/http"

	"portal-svc/middleware"
	"portal-svc/models"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// SubmitPayment starts a monitored payment for a pending order. The
// response only acknowledges submission; the outcome arrives through the
// notification sink and the store once the status stream resolves.
func (h *PortalHandler) SubmitPayment(c *gin.Context) {
	ctx, span := tracer.Start(c.Request.Context(), "SubmitPayment")
	defer span.End()

	var req models.PaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.CustomerID == "" {
		req.CustomerID = h.store.CustomerID()
	}

	span.SetAttributes(
		attribute.String("order.id", req.OrderID),
		attribute.Float64("payment.amount", req.Price),
	)

	correlationID, err := h.monitor.Pay(ctx, req)
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Payment submission failed",
			zap.String("order_id", req.OrderID),
			zap.Error(err),
		)
		h.respondError(c, err)
		return
	}

	h.logger.Info("Payment accepted",
		zap.String("trace_id", middleware.GetTraceID(ctx)),
		zap.String("order_id", req.OrderID),
		zap.String("correlation_id", correlationID),
	)
	c.JSON(http.StatusAccepted, gin.H{
		"orderId":       req.OrderID,
		"correlationId": correlationID,
		"status":        models.PaymentStatusPending,
	})
}

// CancelPayment stops monitoring for an order's payment, if a session is
// open. The backend payment itself is not revoked.
func (h *PortalHandler) CancelPayment(c *gin.Context) {
	orderID := c.Param("id")
	if !h.monitor.Cancel(orderID) {
		c.JSON(http.StatusNotFound, gin.H{"error": "No payment in progress for this order"})
		return
	}
	c.Status(http.StatusNoContent)
}

// ListPayments returns monitored payment records plus history derived
// from paid orders, the way the order list is the source of truth for
// settled payments.
func (h *PortalHandler) ListPayments(c *gin.Context) {
	snap := h.store.Snapshot()

	seen := make(map[string]bool, len(snap.Payments))
	payments := make([]models.Payment, 0, len(snap.Payments))
	for _, p := range snap.Payments {
		payments = append(payments, p)
		seen[p.OrderID] = true
	}
	for _, order := range snap.Orders {
		if seen[order.ID] {
			continue
		}
		if order.Status != models.OrderStatusPaid && order.Status != models.OrderStatusApproved {
			continue
		}
		payments = append(payments, models.Payment{
			PaymentID:  "payment-" + order.ID,
			OrderID:    order.ID,
			CustomerID: order.CustomerID,
			Price:      order.TotalAmount,
			Status:     models.PaymentStatusCompleted,
			Message:    "Payment processed successfully",
		})
	}

	c.JSON(http.StatusOK, payments)
}

// GetPaymentStatus looks one payment up on the payment service.
func (h *PortalHandler) GetPaymentStatus(c *gin.Context) {
	ctx, span := tracer.Start(c.Request.Context(), "GetPaymentStatus")
	defer span.End()

	payment, err := h.credits.GetPaymentStatus(ctx, c.Param("id"))
	if err != nil {
		span.RecordError(err)
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, payment)
}
