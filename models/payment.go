package models

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "PENDING"
	PaymentStatusCompleted PaymentStatus = "COMPLETED"
	PaymentStatusFailed    PaymentStatus = "FAILED"
)

type Payment struct {
	PaymentID  string        `json:"paymentId"`
	OrderID    string        `json:"orderId"`
	CustomerID string        `json:"customerId"`
	Price      float64       `json:"price"`
	Status     PaymentStatus `json:"status"`
	Message    string        `json:"message"`
}

type PaymentRequest struct {
	OrderID    string  `json:"orderId" binding:"required"`
	CustomerID string  `json:"customerId"`
	Price      float64 `json:"price" binding:"required,gt=0"`
}
