package handlers

import (
	"net/http"

	"portal-svc/middleware"
	"portal-svc/models"
	"portal-svc/pricing"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// CreateOrder prices and submits a new order, then refreshes the store.
// Unknown voucher codes are rejected here, before the backend is
// contacted: pricing previews are permissive, submission is not.
func (h *PortalHandler) CreateOrder(c *gin.Context) {
	ctx, span := tracer.Start(c.Request.Context(), "CreateOrder")
	defer span.End()

	var req models.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.CustomerID == "" {
		req.CustomerID = h.store.CustomerID()
	}
	if req.RestaurantID == "" {
		req.RestaurantID = models.DefaultRestaurantID
	}

	h.store.SetError("")
	h.store.SetLoading(true)
	defer h.store.SetLoading(false)

	if req.VoucherCode != "" {
		if _, ok := models.LookupVoucher(req.VoucherCode); !ok {
			h.store.SetError("Invalid voucher code")
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid voucher code"})
			return
		}
	}

	total := pricing.ComputeTotal(req.Items, req.VoucherCode)
	span.SetAttributes(
		attribute.String("customer.id", req.CustomerID),
		attribute.Int("order.items", len(req.Items)),
		attribute.Float64("order.total", total),
	)

	order, err := h.orders.Create(ctx, req)
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to create order", zap.Error(err))
		h.store.SetError(err.Error())
		h.respondError(c, err)
		return
	}

	h.store.AddOrder(order)
	if err := h.syncer.Refresh(ctx); err != nil {
		// The order was created; surface the state we have.
		h.logger.Warn("Refresh after order creation failed", zap.Error(err))
	}

	h.logger.Info("Order created",
		zap.String("trace_id", middleware.GetTraceID(ctx)),
		zap.String("order_id", order.ID),
		zap.Float64("total", order.TotalAmount),
	)
	c.JSON(http.StatusCreated, order)
}

// ListOrders serves the store's current order list.
func (h *PortalHandler) ListOrders(c *gin.Context) {
	c.JSON(http.StatusOK, h.store.Snapshot().Orders)
}

// UpdateOrder replaces an order's items and voucher.
func (h *PortalHandler) UpdateOrder(c *gin.Context) {
	ctx, span := tracer.Start(c.Request.Context(), "UpdateOrder")
	defer span.End()

	orderID := c.Param("id")
	var req models.UpdateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.store.SetError("")
	h.store.SetLoading(true)
	defer h.store.SetLoading(false)

	if req.VoucherCode != "" {
		if _, ok := models.LookupVoucher(req.VoucherCode); !ok {
			h.store.SetError("Invalid voucher code")
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid voucher code"})
			return
		}
	}

	order, err := h.orders.Update(ctx, orderID, req)
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to update order", zap.String("order_id", orderID), zap.Error(err))
		h.store.SetError(err.Error())
		h.respondError(c, err)
		return
	}

	h.store.UpdateOrder(order)
	if err := h.syncer.Refresh(ctx); err != nil {
		h.logger.Warn("Refresh after order update failed", zap.Error(err))
	}

	c.JSON(http.StatusOK, order)
}

// RateOrder attaches a rating to an order.
func (h *PortalHandler) RateOrder(c *gin.Context) {
	ctx, span := tracer.Start(c.Request.Context(), "RateOrder")
	defer span.End()

	orderID := c.Param("id")
	var req models.RatingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	span.SetAttributes(attribute.Int("rating.score", req.Score))

	if err := h.orders.AddRating(ctx, orderID, req); err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to add rating", zap.String("order_id", orderID), zap.Error(err))
		h.store.SetError(err.Error())
		h.respondError(c, err)
		return
	}

	if err := h.syncer.Refresh(ctx); err != nil {
		h.logger.Warn("Refresh after rating failed", zap.Error(err))
	}
	c.Status(http.StatusNoContent)
}

// GetStatistics proxies order statistics for a customer and optional
// date range.
func (h *PortalHandler) GetStatistics(c *gin.Context) {
	ctx, span := tracer.Start(c.Request.Context(), "GetStatistics")
	defer span.End()

	customerID := c.Query("customerId")
	if customerID == "" {
		customerID = h.store.CustomerID()
	}

	stats, err := h.orders.Statistics(ctx, customerID, c.Query("startDate"), c.Query("endDate"))
	if err != nil {
		span.RecordError(err)
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
