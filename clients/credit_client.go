package clients

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"portal-svc/circuitbreaker"
	"portal-svc/models"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

// CreditClient talks to the payment/credit service.
type CreditClient struct {
	baseURL        string
	client         *http.Client
	circuitBreaker *circuitbreaker.CircuitBreaker
	logger         *zap.Logger
}

func NewCreditClient(baseURL string, timeout time.Duration, logger *zap.Logger) *CreditClient {
	return &CreditClient{
		baseURL: baseURL,
		client: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		circuitBreaker: circuitbreaker.New(5, 30*time.Second),
		logger:         logger,
	}
}

// GetTotal fetches a customer's credit balance. The account may not have
// a credit record yet, in which case the backend responds 404.
func (c *CreditClient) GetTotal(ctx context.Context, customerID string) (models.CreditBalance, error) {
	path := "/credits/total?customerId=" + url.QueryEscape(customerID)
	var balance models.CreditBalance
	if err := c.do(ctx, http.MethodGet, path, nil, &balance); err != nil {
		return models.CreditBalance{}, err
	}
	if balance.CustomerID == "" {
		balance.CustomerID = customerID
	}
	return balance, nil
}

// AddCredit adds prepaid credit to a customer account. The backend takes
// the parameters on the query string.
func (c *CreditClient) AddCredit(ctx context.Context, customerID string, amount float64) (models.CreditEntry, error) {
	params := url.Values{}
	params.Set("customerId", customerID)
	params.Set("amount", strconv.FormatFloat(amount, 'f', -1, 64))
	var entry models.CreditEntry
	if err := c.do(ctx, http.MethodPost, "/credits/add?"+params.Encode(), nil, &entry); err != nil {
		return models.CreditEntry{}, err
	}
	return entry, nil
}

// GetPaymentStatus looks up a payment record by id.
func (c *CreditClient) GetPaymentStatus(ctx context.Context, paymentID string) (models.Payment, error) {
	var payment models.Payment
	if err := c.do(ctx, http.MethodGet, "/payments/"+url.PathEscape(paymentID), nil, &payment); err != nil {
		return models.Payment{}, err
	}
	return payment, nil
}

func (c *CreditClient) do(ctx context.Context, method, path string, body, out any) error {
	return c.circuitBreaker.Execute(ctx, func() error {
		return doJSON(ctx, c.client, c.logger, method, c.baseURL+path, body, out)
	})
}
