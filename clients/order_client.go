// Package clients holds the HTTP+JSON clients for the two backend
// services, plus the payment status stream. Responses are coerced into
// the domain types and every failure is mapped to a user-facing message.
package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"portal-svc/circuitbreaker"
	"portal-svc/models"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

const contentType = "application/vnd.api.v1+json"

// OrderClient talks to the order service.
type OrderClient struct {
	baseURL        string
	client         *http.Client
	circuitBreaker *circuitbreaker.CircuitBreaker
	logger         *zap.Logger
}

func NewOrderClient(baseURL string, timeout time.Duration, logger *zap.Logger) *OrderClient {
	return &OrderClient{
		baseURL: baseURL,
		client: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		circuitBreaker: circuitbreaker.New(5, 30*time.Second),
		logger:         logger,
	}
}

// orderResponse is the order service's wire shape. Money arrives as
// numeric fields; voucher fields are absent when no voucher was applied.
type orderResponse struct {
	ID           string              `json:"id"`
	CustomerID   string              `json:"customerId"`
	RestaurantID string              `json:"restaurantId"`
	Items        []orderItemResponse `json:"items"`
	VoucherCode  string              `json:"voucherCode"`
	DiscountType string              `json:"discountType"`
	Discount     float64             `json:"discount"`
	OrderStatus  string              `json:"orderStatus"`
	Price        float64             `json:"price"`
	CreatedAt    string              `json:"createdAt"`
	UpdatedAt    string              `json:"updatedAt"`
}

type orderItemResponse struct {
	ProductID string  `json:"productId"`
	Quantity  int     `json:"quantity"`
	Price     float64 `json:"price"`
	SubTotal  float64 `json:"subTotal"`
}

func (r orderResponse) toOrder() models.Order {
	order := models.Order{
		ID:           r.ID,
		CustomerID:   r.CustomerID,
		RestaurantID: r.RestaurantID,
		Items:        make([]models.OrderItem, 0, len(r.Items)),
		Status:       models.OrderStatus(r.OrderStatus),
		TotalAmount:  r.Price,
		CreatedAt:    parseTimestamp(r.CreatedAt),
	}
	for _, item := range r.Items {
		order.Items = append(order.Items, models.OrderItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Price:     item.Price,
			SubTotal:  item.SubTotal,
		})
	}
	if r.VoucherCode != "" {
		discountType := models.DiscountType(r.DiscountType)
		if discountType == "" {
			discountType = models.DiscountTypeAmount
		}
		order.Voucher = &models.Voucher{
			Code:          r.VoucherCode,
			DiscountType:  discountType,
			DiscountValue: r.Discount,
		}
	}
	order.UpdatedAt = parseTimestamp(r.UpdatedAt)
	if order.UpdatedAt.IsZero() {
		order.UpdatedAt = order.CreatedAt
	}
	return order
}

func parseTimestamp(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Create submits a new order.
func (c *OrderClient) Create(ctx context.Context, req models.CreateOrderRequest) (models.Order, error) {
	var resp orderResponse
	if err := c.do(ctx, http.MethodPost, "/orders", req, &resp); err != nil {
		return models.Order{}, err
	}
	return resp.toOrder(), nil
}

// ListByCustomer fetches all orders owned by a customer.
func (c *OrderClient) ListByCustomer(ctx context.Context, customerID string) ([]models.Order, error) {
	path := "/orders?customerId=" + url.QueryEscape(customerID)
	var resp []orderResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	orders := make([]models.Order, 0, len(resp))
	for _, r := range resp {
		orders = append(orders, r.toOrder())
	}
	return orders, nil
}

// Update replaces an order's items and voucher.
func (c *OrderClient) Update(ctx context.Context, orderID string, req models.UpdateOrderRequest) (models.Order, error) {
	var resp orderResponse
	if err := c.do(ctx, http.MethodPut, "/orders/"+url.PathEscape(orderID), req, &resp); err != nil {
		return models.Order{}, err
	}
	return resp.toOrder(), nil
}

// AddRating attaches a score and optional comment to an order.
func (c *OrderClient) AddRating(ctx context.Context, orderID string, req models.RatingRequest) error {
	return c.do(ctx, http.MethodPost, "/orders/"+url.PathEscape(orderID)+"/rating", req, nil)
}

// Statistics fetches order statistics for a customer and optional date
// range.
func (c *OrderClient) Statistics(ctx context.Context, customerID, startDate, endDate string) (models.Statistics, error) {
	params := url.Values{}
	params.Set("customerId", customerID)
	if startDate != "" {
		params.Set("startDate", startDate)
	}
	if endDate != "" {
		params.Set("endDate", endDate)
	}
	var stats models.Statistics
	if err := c.do(ctx, http.MethodGet, "/orders/statistics?"+params.Encode(), nil, &stats); err != nil {
		return models.Statistics{}, err
	}
	return stats, nil
}

// SubmitPayment asks the order service to start processing a payment.
// A nil error only means the request was accepted; the outcome arrives
// on the payment status stream.
func (c *OrderClient) SubmitPayment(ctx context.Context, req models.PaymentRequest) (models.Payment, error) {
	var payment models.Payment
	if err := c.do(ctx, http.MethodPost, "/orders/payment", req, &payment); err != nil {
		return models.Payment{}, err
	}
	if payment.OrderID == "" {
		payment.OrderID = req.OrderID
	}
	if payment.CustomerID == "" {
		payment.CustomerID = req.CustomerID
	}
	if payment.Price == 0 {
		payment.Price = req.Price
	}
	if payment.Status == "" {
		payment.Status = models.PaymentStatusPending
	}
	return payment, nil
}

func (c *OrderClient) do(ctx context.Context, method, path string, body, out any) error {
	return c.circuitBreaker.Execute(ctx, func() error {
		return doJSON(ctx, c.client, c.logger, method, c.baseURL+path, body, out)
	})
}

// doJSON performs one request/response round trip with error mapping.
func doJSON(ctx context.Context, client *http.Client, logger *zap.Logger, method, fullURL string, body, out any) error {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := client.Do(req)
	if err != nil {
		logger.Warn("Backend request failed",
			zap.String("method", method),
			zap.String("url", fullURL),
			zap.Error(err),
		)
		return mapTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return mapStatusError(resp)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &BackendError{StatusCode: resp.StatusCode, Message: "Server error. Please try again later."}
	}
	return nil
}
