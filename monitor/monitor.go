// Package monitor drives a payment through the server-pushed status
// protocol: precondition checks, submission, a status stream session
// with a hard timeout, and exactly-once terminal resolution into the
// store and the notification sink.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"portal-svc/clients"
	"portal-svc/datasync"
	"portal-svc/middleware"
	"portal-svc/models"
	"portal-svc/notify"
	"portal-svc/store"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Validation failures. These are raised before any backend call and
// surfaced to the caller as well as the store's error field.
var (
	ErrInvalidOrder    = errors.New("Invalid order selected")
	ErrOrderNotPending = errors.New("Order is not awaiting payment")
	ErrAmountMismatch  = errors.New("Payment amount must match order total")
	ErrSessionActive   = errors.New("Payment already in progress for this order")
)

type Monitor struct {
	store   *store.Store
	orders  *clients.OrderClient
	syncer  *datasync.Synchronizer
	sink    notify.Sink
	timeout time.Duration
	logger  *zap.Logger

	mu       sync.Mutex
	sessions map[string]*session
}

// session is the ephemeral monitoring state for one payment attempt.
// Exactly one session exists per order id at a time; terminal entry is
// latched by once, so the stream is closed and the timer stopped exactly
// once no matter which trigger wins.
type session struct {
	orderID       string
	correlationID string
	payment       models.Payment

	stream   *clients.StatusStream
	timer    *time.Timer
	finished bool

	once sync.Once
	done chan struct{}
}

// outcome describes one terminal transition.
type outcome struct {
	metric        string
	success       bool
	headline      string
	description   string
	storeError    string
	paymentStatus models.PaymentStatus
}

func New(st *store.Store, orders *clients.OrderClient, syncer *datasync.Synchronizer, sink notify.Sink, timeout time.Duration, logger *zap.Logger) *Monitor {
	return &Monitor{
		store:    st,
		orders:   orders,
		syncer:   syncer,
		sink:     sink,
		timeout:  timeout,
		logger:   logger,
		sessions: make(map[string]*session),
	}
}

// Pay validates the request against the store snapshot, submits it, and
// starts a monitoring session. The returned correlation id keys the
// notifications for this attempt. The terminal outcome arrives
// asynchronously; Pay only reports submission-time failures.
func (m *Monitor) Pay(ctx context.Context, req models.PaymentRequest) (string, error) {
	ctx, span := otel.Tracer("customer-portal").Start(ctx, "ProcessPayment")
	defer span.End()
	span.SetAttributes(
		attribute.String("order.id", req.OrderID),
		attribute.Float64("payment.amount", req.Price),
	)

	m.store.SetError("")
	m.store.SetLoading(true)
	defer m.store.SetLoading(false)

	if err := m.validate(req); err != nil {
		span.RecordError(err)
		m.store.SetError(err.Error())
		return "", err
	}

	sess, err := m.register(req.OrderID)
	if err != nil {
		span.RecordError(err)
		m.store.SetError(err.Error())
		return "", err
	}

	description := fmt.Sprintf("Order #%s - Amount: $%.2f", shortID(req.OrderID), req.Price)
	m.sink.Create(ctx, sess.correlationID, "Processing payment...", description)

	payment, err := m.orders.SubmitPayment(ctx, req)
	if err != nil {
		span.RecordError(err)
		m.finish(sess, outcome{
			metric:      "failed",
			headline:    "Payment failed",
			description: err.Error(),
			storeError:  err.Error(),
		})
		return sess.correlationID, err
	}

	if payment.PaymentID == "" {
		payment.PaymentID = "payment-" + req.OrderID
	}
	payment.Status = models.PaymentStatusPending
	m.store.AddPayment(payment)

	// The timeout runs from submission, independent of the stream.
	m.mu.Lock()
	sess.payment = payment
	sess.timer = time.AfterFunc(m.timeout, func() {
		m.finish(sess, outcome{
			metric:      "timeout",
			headline:    "Payment processing timeout",
			description: "Payment took too long to process. Please try again.",
			storeError:  "Payment status monitoring timeout",
		})
	})
	m.mu.Unlock()

	// Monitoring outlives this call, so the stream gets its own context;
	// teardown goes through finish.
	stream, err := m.orders.StreamPaymentStatus(context.Background(), req.OrderID)
	if err != nil {
		span.RecordError(err)
		m.finish(sess, outcome{
			metric:      "stream_error",
			headline:    "Payment status error",
			description: err.Error(),
			storeError:  err.Error(),
		})
		return sess.correlationID, err
	}

	m.mu.Lock()
	if sess.finished {
		// A competing trigger already resolved the session.
		m.mu.Unlock()
		stream.Close()
		return sess.correlationID, nil
	}
	sess.stream = stream
	m.mu.Unlock()

	m.sink.Update(ctx, sess.correlationID, "Payment submitted, processing...", "Connecting to payment service...")
	go m.watch(sess)

	m.logger.Info("Payment monitoring started",
		zap.String("trace_id", middleware.GetTraceID(ctx)),
		zap.String("order_id", req.OrderID),
		zap.String("correlation_id", sess.correlationID),
	)
	return sess.correlationID, nil
}

// validate enforces the submission preconditions without contacting the
// backend: owned pending order, exact amount.
func (m *Monitor) validate(req models.PaymentRequest) error {
	snap := m.store.Snapshot()

	var order *models.Order
	for i := range snap.Orders {
		if snap.Orders[i].ID == req.OrderID {
			order = &snap.Orders[i]
			break
		}
	}
	if order == nil || order.CustomerID != snap.CustomerID {
		return ErrInvalidOrder
	}
	if order.Status != models.OrderStatusPending {
		return ErrOrderNotPending
	}
	if req.Price != order.TotalAmount {
		return ErrAmountMismatch
	}
	return nil
}

func (m *Monitor) register(orderID string) (*session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[orderID]; ok {
		return nil, ErrSessionActive
	}
	sess := &session{
		orderID:       orderID,
		correlationID: uuid.NewString(),
		done:          make(chan struct{}),
	}
	m.sessions[orderID] = sess
	return sess, nil
}

// watch consumes the status stream until a terminal event.
func (m *Monitor) watch(sess *session) {
	for event := range sess.stream.Events() {
		switch event.Type {
		case clients.EventProgress:
			msg := event.Message
			if msg == "" {
				msg = "Payment is being processed..."
			}
			m.sink.Update(context.Background(), sess.correlationID, "Processing payment...", msg)

		case clients.EventCompleted:
			m.finish(sess, outcome{
				metric:        "completed",
				success:       true,
				headline:      "Payment completed successfully!",
				description:   fmt.Sprintf("Order #%s - Amount: $%.2f", shortID(sess.orderID), sess.payment.Price),
				paymentStatus: models.PaymentStatusCompleted,
			})
			return

		case clients.EventFailed:
			msg := event.Message
			if msg == "" {
				msg = "Payment processing failed"
			}
			m.finish(sess, outcome{
				metric:        "failed",
				headline:      "Payment failed",
				description:   msg,
				storeError:    msg,
				paymentStatus: models.PaymentStatusFailed,
			})
			return

		case clients.EventStreamError:
			m.finish(sess, outcome{
				metric:      "stream_error",
				headline:    "Payment status error",
				description: event.Message,
				storeError:  event.Message,
			})
			return
		}
	}
}

// finish performs the terminal transition exactly once: stop the timer,
// close the stream, free the session slot, update the store, resolve the
// notification, and on success trigger a full refresh.
func (m *Monitor) finish(sess *session, o outcome) {
	sess.once.Do(func() {
		m.mu.Lock()
		sess.finished = true
		stream, timer, payment := sess.stream, sess.timer, sess.payment
		delete(m.sessions, sess.orderID)
		m.mu.Unlock()

		if timer != nil {
			timer.Stop()
		}
		if stream != nil {
			stream.Close()
		}

		if o.paymentStatus != "" && payment.PaymentID != "" {
			payment.Status = o.paymentStatus
			payment.Message = o.description
			m.store.UpdatePayment(payment)
		}

		ctx := context.Background()
		if o.success {
			m.sink.Resolve(ctx, sess.correlationID, true, o.headline, o.description)
			go func() {
				_ = m.syncer.Refresh(context.Background())
			}()
		} else {
			if o.storeError != "" {
				m.store.SetError(o.storeError)
			}
			m.sink.Resolve(ctx, sess.correlationID, false, o.headline, o.description)
		}

		middleware.RecordPaymentProcessed(o.metric)
		m.logger.Info("Payment session finished",
			zap.String("order_id", sess.orderID),
			zap.String("correlation_id", sess.correlationID),
			zap.String("outcome", o.metric),
		)
		close(sess.done)
	})
}

// Cancel tears down the session for an order, if one is open. Used when
// the caller abandons monitoring; resolves the notification as an error.
func (m *Monitor) Cancel(orderID string) bool {
	m.mu.Lock()
	sess, ok := m.sessions[orderID]
	m.mu.Unlock()
	if !ok {
		return false
	}
	m.finish(sess, outcome{
		metric:      "canceled",
		headline:    "Payment monitoring canceled",
		description: "Monitoring for this payment was stopped before a result arrived",
	})
	return true
}

// Shutdown cancels every open session.
func (m *Monitor) Shutdown() {
	m.mu.Lock()
	orderIDs := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		orderIDs = append(orderIDs, id)
	}
	m.mu.Unlock()
	for _, id := range orderIDs {
		m.Cancel(id)
	}
}

// Active reports whether a monitoring session is open for the order.
func (m *Monitor) Active(orderID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.sessions[orderID]
	return ok
}

func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[len(id)-8:]
}
