package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"portal-svc/clients"
	"portal-svc/datasync"
	"portal-svc/models"
	"portal-svc/monitor"
	"portal-svc/notify"
	"portal-svc/store"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap/zaptest"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// backendConfig scripts the fake order and credit services.
type backendConfig struct {
	createStatus int
	createBody   string
	listStatus   int
	listBody     string
	updateBody   string
	statsBody    string
	creditBody   string
	entryBody    string
}

func (c *backendConfig) applyDefaults() {
	if c.createStatus == 0 {
		c.createStatus = http.StatusOK
	}
	if c.createBody == "" {
		c.createBody = `{"id": "order-9", "customerId": "customer-1", "orderStatus": "PENDING", "price": 11.69}`
	}
	if c.listStatus == 0 {
		c.listStatus = http.StatusOK
	}
	if c.listBody == "" {
		c.listBody = `[]`
	}
	if c.updateBody == "" {
		c.updateBody = `{"id": "order-1", "customerId": "customer-1", "orderStatus": "PENDING", "price": 20}`
	}
	if c.statsBody == "" {
		c.statsBody = `{"customerId": "customer-1", "totalOrders": 3, "totalRevenue": 75.5}`
	}
	if c.creditBody == "" {
		c.creditBody = `{"customerId": "customer-1", "totalCredit": 100}`
	}
	if c.entryBody == "" {
		c.entryBody = `{"customerId": "customer-1", "amount": 50}`
	}
}

type portalFixture struct {
	router      *gin.Engine
	store       *store.Store
	createCalls int64
}

func setupPortalTest(t *testing.T, cfg backendConfig) *portalFixture {
	t.Helper()
	cfg.applyDefaults()

	f := &portalFixture{}

	orderServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/orders":
			atomic.AddInt64(&f.createCalls, 1)
			w.WriteHeader(cfg.createStatus)
			_, _ = w.Write([]byte(cfg.createBody))
		case r.Method == http.MethodGet && r.URL.Path == "/orders":
			w.WriteHeader(cfg.listStatus)
			_, _ = w.Write([]byte(cfg.listBody))
		case r.Method == http.MethodGet && r.URL.Path == "/orders/statistics":
			_, _ = w.Write([]byte(cfg.statsBody))
		case r.Method == http.MethodPost && r.URL.Path == "/orders/payment":
			_, _ = w.Write([]byte(`{"paymentId": "pay-1", "orderId": "order-1", "price": 23.5, "status": "PENDING"}`))
		case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/orders/payment/status/"):
			flusher := w.(http.Flusher)
			w.Header().Set("Content-Type", "text/event-stream")
			w.WriteHeader(http.StatusOK)
			flusher.Flush()
			<-r.Context().Done()
		case r.Method == http.MethodPut && strings.HasPrefix(r.URL.Path, "/orders/"):
			_, _ = w.Write([]byte(cfg.updateBody))
		case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/rating"):
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(orderServer.Close)

	creditServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/credits/total":
			_, _ = w.Write([]byte(cfg.creditBody))
		case r.Method == http.MethodPost && r.URL.Path == "/credits/add":
			_, _ = w.Write([]byte(cfg.entryBody))
		case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/payments/"):
			_, _ = w.Write([]byte(`{"paymentId": "pay-1", "orderId": "order-1", "status": "COMPLETED"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(creditServer.Close)

	logger := zaptest.NewLogger(t)
	f.store = store.New("customer-1")

	orderClient := clients.NewOrderClient(orderServer.URL, 2*time.Second, logger)
	creditClient := clients.NewCreditClient(creditServer.URL, 2*time.Second, logger)
	syncer := datasync.New(f.store, orderClient, creditClient, logger)
	mon := monitor.New(f.store, orderClient, syncer, notify.NewLogSink(logger), time.Minute, logger)
	t.Cleanup(mon.Shutdown)

	handler := NewPortalHandler(f.store, syncer, mon, orderClient, creditClient, logger)

	router := gin.New()
	router.GET("/dashboard", handler.Dashboard)
	router.GET("/products", handler.ListProducts)
	router.POST("/refresh", handler.RefreshData)
	router.PUT("/customer", handler.SwitchCustomer)
	router.POST("/orders", handler.CreateOrder)
	router.GET("/orders", handler.ListOrders)
	router.PUT("/orders/:id", handler.UpdateOrder)
	router.POST("/orders/:id/rating", handler.RateOrder)
	router.GET("/orders/statistics", handler.GetStatistics)
	router.POST("/orders/payment", handler.SubmitPayment)
	router.DELETE("/orders/payment/:id", handler.CancelPayment)
	router.GET("/payments", handler.ListPayments)
	router.GET("/payments/:id", handler.GetPaymentStatus)
	router.GET("/credits/balance", handler.GetCreditBalance)
	router.POST("/credits", handler.AddCredit)
	f.router = router

	return f
}

func (f *portalFixture) request(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("Bad error body %q: %v", w.Body.String(), err)
	}
	return body.Error
}

func TestCreateOrder_Success(t *testing.T) {
	f := setupPortalTest(t, backendConfig{
		listBody: `[{"id": "order-9", "customerId": "customer-1", "orderStatus": "PENDING", "price": 11.69}]`,
	})

	w := f.request(t, http.MethodPost, "/orders", `{
		"items": [{"productId": "p1", "quantity": 1, "price": 12.99}],
		"voucherCode": "SAVE10"
	}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var order models.Order
	if err := json.Unmarshal(w.Body.Bytes(), &order); err != nil {
		t.Fatalf("Bad response body: %v", err)
	}
	if order.ID != "order-9" || order.TotalAmount != 11.69 {
		t.Errorf("Bad order in response: %+v", order)
	}

	snap := f.store.Snapshot()
	if len(snap.Orders) != 1 || snap.Orders[0].ID != "order-9" {
		t.Errorf("Expected the order in the store, got %+v", snap.Orders)
	}
	if snap.Loading {
		t.Error("Loading must be released after creation")
	}
	if snap.Error != "" {
		t.Errorf("Expected no error, got %q", snap.Error)
	}
}

func TestCreateOrder_UnknownVoucherRejectedLocally(t *testing.T) {
	f := setupPortalTest(t, backendConfig{})

	w := f.request(t, http.MethodPost, "/orders", `{
		"items": [{"productId": "p1", "quantity": 1, "price": 12.99}],
		"voucherCode": "NOPE"
	}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d", w.Code)
	}
	if msg := decodeError(t, w); msg != "Invalid voucher code" {
		t.Errorf("Expected voucher error, got %q", msg)
	}
	if n := atomic.LoadInt64(&f.createCalls); n != 0 {
		t.Errorf("Unknown voucher must be rejected before the backend, saw %d calls", n)
	}
	if f.store.Snapshot().Error != "Invalid voucher code" {
		t.Errorf("Expected store error, got %q", f.store.Snapshot().Error)
	}
}

func TestCreateOrder_MissingItemsFailsBinding(t *testing.T) {
	f := setupPortalTest(t, backendConfig{})

	w := f.request(t, http.MethodPost, "/orders", `{"items": []}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d", w.Code)
	}
	if n := atomic.LoadInt64(&f.createCalls); n != 0 {
		t.Errorf("Binding failure must not reach the backend, saw %d calls", n)
	}
}

func TestCreateOrder_BackendStatusPassesThrough(t *testing.T) {
	f := setupPortalTest(t, backendConfig{
		createStatus: http.StatusUnprocessableEntity,
		createBody:   `{}`,
	})

	w := f.request(t, http.MethodPost, "/orders", `{
		"items": [{"productId": "p1", "quantity": 1, "price": 12.99}]
	}`)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("Expected 422, got %d", w.Code)
	}
	if msg := decodeError(t, w); msg != "Validation failed. Please check your input." {
		t.Errorf("Expected mapped validation message, got %q", msg)
	}
	if f.store.Snapshot().Error != "Validation failed. Please check your input." {
		t.Errorf("Expected store error, got %q", f.store.Snapshot().Error)
	}
}

func TestSubmitPayment_UnknownOrderIsBadRequest(t *testing.T) {
	f := setupPortalTest(t, backendConfig{})

	w := f.request(t, http.MethodPost, "/orders/payment", `{"orderId": "ghost", "price": 10}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d: %s", w.Code, w.Body.String())
	}
	if msg := decodeError(t, w); msg != "Invalid order selected" {
		t.Errorf("Expected invalid-order message, got %q", msg)
	}
}

func TestSubmitPayment_AcceptedThenCanceled(t *testing.T) {
	f := setupPortalTest(t, backendConfig{})
	f.store.AddOrder(models.Order{
		ID:          "order-1",
		CustomerID:  "customer-1",
		Status:      models.OrderStatusPending,
		TotalAmount: 23.50,
	})

	w := f.request(t, http.MethodPost, "/orders/payment", `{"orderId": "order-1", "price": 23.5}`)
	if w.Code != http.StatusAccepted {
		t.Fatalf("Expected 202, got %d: %s", w.Code, w.Body.String())
	}

	var body struct {
		OrderID       string `json:"orderId"`
		CorrelationID string `json:"correlationId"`
		Status        string `json:"status"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("Bad response body: %v", err)
	}
	if body.OrderID != "order-1" || body.CorrelationID == "" || body.Status != "PENDING" {
		t.Errorf("Bad acknowledgement: %+v", body)
	}

	if w := f.request(t, http.MethodDelete, "/orders/payment/order-1", ""); w.Code != http.StatusNoContent {
		t.Fatalf("Expected 204 on cancel, got %d", w.Code)
	}
	if w := f.request(t, http.MethodDelete, "/orders/payment/order-1", ""); w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 on second cancel, got %d", w.Code)
	}
}

func TestSubmitPayment_DuplicateIsConflict(t *testing.T) {
	f := setupPortalTest(t, backendConfig{})
	f.store.AddOrder(models.Order{
		ID:          "order-1",
		CustomerID:  "customer-1",
		Status:      models.OrderStatusPending,
		TotalAmount: 23.50,
	})

	if w := f.request(t, http.MethodPost, "/orders/payment", `{"orderId": "order-1", "price": 23.5}`); w.Code != http.StatusAccepted {
		t.Fatalf("Expected 202, got %d", w.Code)
	}

	w := f.request(t, http.MethodPost, "/orders/payment", `{"orderId": "order-1", "price": 23.5}`)
	if w.Code != http.StatusConflict {
		t.Errorf("Expected 409 for duplicate submission, got %d", w.Code)
	}
}

func TestListPayments_DerivesHistoryFromPaidOrders(t *testing.T) {
	f := setupPortalTest(t, backendConfig{})
	f.store.SetOrders([]models.Order{
		{ID: "order-1", CustomerID: "customer-1", Status: models.OrderStatusPaid, TotalAmount: 20},
		{ID: "order-2", CustomerID: "customer-1", Status: models.OrderStatusPending, TotalAmount: 5},
		{ID: "order-3", CustomerID: "customer-1", Status: models.OrderStatusApproved, TotalAmount: 9.5},
	})
	f.store.AddPayment(models.Payment{
		PaymentID: "pay-1", OrderID: "order-3", Status: models.PaymentStatusCompleted, Price: 9.5,
	})

	w := f.request(t, http.MethodGet, "/payments", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	var payments []models.Payment
	if err := json.Unmarshal(w.Body.Bytes(), &payments); err != nil {
		t.Fatalf("Bad response body: %v", err)
	}
	if len(payments) != 2 {
		t.Fatalf("Expected 2 payments, got %+v", payments)
	}

	byOrder := make(map[string]models.Payment, len(payments))
	for _, p := range payments {
		byOrder[p.OrderID] = p
	}
	if byOrder["order-3"].PaymentID != "pay-1" {
		t.Error("Monitored payment must win over the derived record")
	}
	derived, ok := byOrder["order-1"]
	if !ok || derived.PaymentID != "payment-order-1" || derived.Status != models.PaymentStatusCompleted {
		t.Errorf("Expected derived record for the paid order, got %+v", derived)
	}
	if _, ok := byOrder["order-2"]; ok {
		t.Error("Pending orders must not produce payment history")
	}
}

func TestDashboard_ReturnsSnapshot(t *testing.T) {
	f := setupPortalTest(t, backendConfig{})
	f.store.AddOrder(models.Order{ID: "order-1", CustomerID: "customer-1", Status: models.OrderStatusPending})

	w := f.request(t, http.MethodGet, "/dashboard", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	var snap store.Snapshot
	if err := json.Unmarshal(w.Body.Bytes(), &snap); err != nil {
		t.Fatalf("Bad response body: %v", err)
	}
	if snap.CustomerID != "customer-1" || len(snap.Orders) != 1 {
		t.Errorf("Bad snapshot: %+v", snap)
	}
}

func TestListProducts_ServesCatalog(t *testing.T) {
	f := setupPortalTest(t, backendConfig{})

	w := f.request(t, http.MethodGet, "/products", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	var products []models.Product
	if err := json.Unmarshal(w.Body.Bytes(), &products); err != nil {
		t.Fatalf("Bad response body: %v", err)
	}
	if len(products) != len(models.SampleProducts) {
		t.Errorf("Expected %d products, got %d", len(models.SampleProducts), len(products))
	}
}

func TestRefreshData_BackendFailurePassesStatusThrough(t *testing.T) {
	f := setupPortalTest(t, backendConfig{
		listStatus: http.StatusInternalServerError,
		listBody:   `{}`,
	})

	w := f.request(t, http.MethodPost, "/refresh", "")
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("Expected 500, got %d", w.Code)
	}
	if msg := decodeError(t, w); msg != "Server error. Please try again later." {
		t.Errorf("Expected mapped server error, got %q", msg)
	}
}

func TestGetCreditBalance_UpdatesStore(t *testing.T) {
	f := setupPortalTest(t, backendConfig{
		creditBody: `{"customerId": "customer-1", "totalCredit": 77.5}`,
	})

	w := f.request(t, http.MethodGet, "/credits/balance", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	snap := f.store.Snapshot()
	if snap.CreditBalance == nil || snap.CreditBalance.TotalCredit != 77.5 {
		t.Errorf("Expected balance in store, got %+v", snap.CreditBalance)
	}
}

func TestAddCredit_Created(t *testing.T) {
	f := setupPortalTest(t, backendConfig{})

	w := f.request(t, http.MethodPost, "/credits", `{"amount": 50}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
	}
	if f.store.Snapshot().Loading {
		t.Error("Loading must be released after adding credit")
	}
}

func TestSwitchCustomer_ResynchronizesStore(t *testing.T) {
	f := setupPortalTest(t, backendConfig{
		listBody: `[{"id": "order-5", "customerId": "customer-2", "orderStatus": "PAID", "price": 12}]`,
	})

	w := f.request(t, http.MethodPut, "/customer", `{"customerId": "customer-2"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	snap := f.store.Snapshot()
	if snap.CustomerID != "customer-2" {
		t.Errorf("Expected active customer switched, got %q", snap.CustomerID)
	}
	if len(snap.Orders) != 1 || snap.Orders[0].ID != "order-5" {
		t.Errorf("Expected orders resynchronized, got %+v", snap.Orders)
	}
}

func TestRateOrder_NoContent(t *testing.T) {
	f := setupPortalTest(t, backendConfig{})

	w := f.request(t, http.MethodPost, "/orders/order-1/rating", `{"score": 5, "comment": "great"}`)
	if w.Code != http.StatusNoContent {
		t.Fatalf("Expected 204, got %d: %s", w.Code, w.Body.String())
	}
}

func TestRateOrder_ScoreOutOfRangeFailsBinding(t *testing.T) {
	f := setupPortalTest(t, backendConfig{})

	w := f.request(t, http.MethodPost, "/orders/order-1/rating", `{"score": 6}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d", w.Code)
	}
}

func TestGetStatistics_ProxiesBackend(t *testing.T) {
	f := setupPortalTest(t, backendConfig{
		statsBody: fmt.Sprintf(`{"customerId": %q, "totalOrders": 4, "totalRevenue": 101.5}`, "customer-1"),
	})

	w := f.request(t, http.MethodGet, "/orders/statistics", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	var stats models.Statistics
	if err := json.Unmarshal(w.Body.Bytes(), &stats); err != nil {
		t.Fatalf("Bad response body: %v", err)
	}
	if stats.TotalOrders != 4 || stats.TotalRevenue != 101.5 {
		t.Errorf("Bad statistics: %+v", stats)
	}
}

func TestGetPaymentStatus_ProxiesPaymentService(t *testing.T) {
	f := setupPortalTest(t, backendConfig{})

	w := f.request(t, http.MethodGet, "/payments/pay-1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	var payment models.Payment
	if err := json.Unmarshal(w.Body.Bytes(), &payment); err != nil {
		t.Fatalf("Bad response body: %v", err)
	}
	if payment.PaymentID != "pay-1" || payment.Status != models.PaymentStatusCompleted {
		t.Errorf("Bad payment: %+v", payment)
	}
}

func TestUpdateOrder_UnknownVoucherRejectedLocally(t *testing.T) {
	f := setupPortalTest(t, backendConfig{})

	w := f.request(t, http.MethodPut, "/orders/order-1", `{
		"items": [{"productId": "p1", "quantity": 2, "price": 10}],
		"voucherCode": "BOGUS"
	}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d", w.Code)
	}
	if msg := decodeError(t, w); msg != "Invalid voucher code" {
		t.Errorf("Expected voucher error, got %q", msg)
	}
}
