// Package datasync orchestrates bulk refresh of orders and credit
// balance from the backend services into the store. It runs on startup,
// after a customer switch, and after any mutating action.
package datasync

import (
	"context"
	"sync"
	"time"

	"portal-svc/clients"
	"portal-svc/middleware"
	"portal-svc/models"
	"portal-svc/store"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

type Synchronizer struct {
	store   *store.Store
	orders  *clients.OrderClient
	credits *clients.CreditClient
	logger  *zap.Logger
}

func New(st *store.Store, orders *clients.OrderClient, credits *clients.CreditClient, logger *zap.Logger) *Synchronizer {
	return &Synchronizer{
		store:   st,
		orders:  orders,
		credits: credits,
		logger:  logger,
	}
}

// Refresh fetches orders and credit balance concurrently and replaces
// both in the store wholesale. A failed credit fetch is non-fatal (the
// account may not have a credit record yet); a failed orders fetch sets
// the store error and leaves prior orders and balance untouched. The
// loading flag is released on every exit path.
//
// Refresh is safe to call re-entrantly: an in-flight refresh is not
// cancelled by a new one, both fetch the same authoritative backend
// state and the store reflects the last write.
func (s *Synchronizer) Refresh(ctx context.Context) error {
	ctx, span := otel.Tracer("customer-portal").Start(ctx, "RefreshData")
	defer span.End()

	s.store.SetError("")
	s.store.SetLoading(true)
	defer s.store.SetLoading(false)

	customerID := s.store.CustomerID()
	span.SetAttributes(attribute.String("customer.id", customerID))

	var (
		wg         sync.WaitGroup
		orders     []models.Order
		ordersErr  error
		balance    models.CreditBalance
		balanceErr error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		orders, ordersErr = s.orders.ListByCustomer(ctx, customerID)
	}()
	go func() {
		defer wg.Done()
		balance, balanceErr = s.credits.GetTotal(ctx, customerID)
	}()
	wg.Wait()

	if ordersErr != nil {
		span.RecordError(ordersErr)
		middleware.RecordDataRefresh("error")
		s.logger.Error("Failed to refresh orders",
			zap.String("trace_id", middleware.GetTraceID(ctx)),
			zap.String("customer_id", customerID),
			zap.Error(ordersErr),
		)
		s.store.SetError(ordersErr.Error())
		return ordersErr
	}

	s.store.SetOrders(orders)
	if balanceErr != nil {
		s.logger.Warn("Failed to fetch credit balance",
			zap.String("customer_id", customerID),
			zap.Error(balanceErr),
		)
		s.store.SetCreditBalance(nil)
	} else {
		s.store.SetCreditBalance(&balance)
	}

	middleware.RecordDataRefresh("success")
	s.logger.Info("Data refreshed",
		zap.String("trace_id", middleware.GetTraceID(ctx)),
		zap.String("customer_id", customerID),
		zap.Int("orders", len(orders)),
	)
	return nil
}

// FetchCreditOnly refreshes just the credit balance, used whenever the
// active customer changes. Failures are logged, never surfaced: showing
// a balance is optional functionality.
func (s *Synchronizer) FetchCreditOnly(ctx context.Context, customerID string) {
	balance, err := s.credits.GetTotal(ctx, customerID)
	if err != nil {
		s.logger.Warn("Failed to fetch total credit",
			zap.String("customer_id", customerID),
			zap.Error(err),
		)
		return
	}

	s.store.SetCreditBalance(&models.CreditBalance{
		CustomerID:  customerID,
		TotalCredit: balance.TotalCredit,
		LastUpdated: time.Now(),
	})
}
