// Package handlers exposes the portal's operations over HTTP for the UI.
package handlers

import (
	"errors"
	"net/http"

	"portal-svc/clients"
	"portal-svc/datasync"
	"portal-svc/middleware"
	"portal-svc/models"
	"portal-svc/monitor"
	"portal-svc/store"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

type PortalHandler struct {
	store   *store.Store
	syncer  *datasync.Synchronizer
	monitor *monitor.Monitor
	orders  *clients.OrderClient
	credits *clients.CreditClient
	logger  *zap.Logger
}

func NewPortalHandler(
	st *store.Store,
	syncer *datasync.Synchronizer,
	mon *monitor.Monitor,
	orders *clients.OrderClient,
	credits *clients.CreditClient,
	logger *zap.Logger,
) *PortalHandler {
	return &PortalHandler{
		store:   st,
		syncer:  syncer,
		monitor: mon,
		orders:  orders,
		credits: credits,
		logger:  logger,
	}
}

var tracer = otel.Tracer("customer-portal")

// respondError maps the error taxonomy onto HTTP statuses: validation
// failures are the caller's fault, transport problems mean the backend
// is unreachable, and backend failures pass their status through.
func (h *PortalHandler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, monitor.ErrSessionActive):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, monitor.ErrInvalidOrder),
		errors.Is(err, monitor.ErrOrderNotPending),
		errors.Is(err, monitor.ErrAmountMismatch):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		var backendErr *clients.BackendError
		var transportErr *clients.TransportError
		switch {
		case errors.As(err, &backendErr):
			c.JSON(backendErr.StatusCode, gin.H{"error": backendErr.Message})
		case errors.As(err, &transportErr):
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": transportErr.Message})
		default:
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		}
	}
}

// Dashboard returns the whole state snapshot for the UI.
func (h *PortalHandler) Dashboard(c *gin.Context) {
	c.JSON(http.StatusOK, h.store.Snapshot())
}

// ListProducts serves the static product catalog.
func (h *PortalHandler) ListProducts(c *gin.Context) {
	c.JSON(http.StatusOK, models.SampleProducts)
}

// RefreshData re-fetches orders and credit balance into the store.
func (h *PortalHandler) RefreshData(c *gin.Context) {
	ctx, span := tracer.Start(c.Request.Context(), "RefreshDataHandler")
	defer span.End()

	if err := h.syncer.Refresh(ctx); err != nil {
		span.RecordError(err)
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.store.Snapshot())
}

type switchCustomerRequest struct {
	CustomerID string `json:"customerId" binding:"required"`
}

// SwitchCustomer changes the active customer and resynchronizes. The
// store itself never cascades; this handler owns the follow-up fetches.
func (h *PortalHandler) SwitchCustomer(c *gin.Context) {
	ctx, span := tracer.Start(c.Request.Context(), "SwitchCustomer")
	defer span.End()

	var req switchCustomerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.store.SetCustomerID(req.CustomerID)
	h.syncer.FetchCreditOnly(ctx, req.CustomerID)
	if err := h.syncer.Refresh(ctx); err != nil {
		span.RecordError(err)
		h.respondError(c, err)
		return
	}

	h.logger.Info("Active customer switched",
		zap.String("trace_id", middleware.GetTraceID(ctx)),
		zap.String("customer_id", req.CustomerID),
	)
	c.JSON(http.StatusOK, h.store.Snapshot())
}
