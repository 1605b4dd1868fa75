package models

import "time"

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusPaid      OrderStatus = "PAID"
	OrderStatusApproved  OrderStatus = "APPROVED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

type DiscountType string

const (
	DiscountTypePercentage DiscountType = "PERCENTAGE"
	DiscountTypeAmount     DiscountType = "AMOUNT"
)

type Voucher struct {
	Code          string       `json:"code"`
	DiscountType  DiscountType `json:"discountType"`
	DiscountValue float64      `json:"discountValue"`
}

type OrderItem struct {
	ProductID string  `json:"productId"`
	Quantity  int     `json:"quantity"`
	Price     float64 `json:"price"`
	SubTotal  float64 `json:"subTotal"`
}

type Order struct {
	ID           string      `json:"id"`
	CustomerID   string      `json:"customerId"`
	RestaurantID string      `json:"restaurantId"`
	Items        []OrderItem `json:"items"`
	Voucher      *Voucher    `json:"voucher,omitempty"`
	Status       OrderStatus `json:"status"`
	TotalAmount  float64     `json:"totalAmount"`
	CreatedAt    time.Time   `json:"createdAt"`
	UpdatedAt    time.Time   `json:"updatedAt"`
}

type CreateOrderItem struct {
	ProductID string  `json:"productId" binding:"required"`
	Quantity  int     `json:"quantity" binding:"required,gt=0"`
	Price     float64 `json:"price" binding:"gte=0"`
}

type CreateOrderRequest struct {
	CustomerID   string            `json:"customerId"`
	RestaurantID string            `json:"restaurantId"`
	Items        []CreateOrderItem `json:"items" binding:"required,min=1,dive"`
	VoucherCode  string            `json:"voucherCode,omitempty"`
}

type UpdateOrderRequest struct {
	Items       []CreateOrderItem `json:"items" binding:"required,min=1,dive"`
	VoucherCode string            `json:"voucherCode,omitempty"`
}

type RatingRequest struct {
	Score   int    `json:"score" binding:"required,min=1,max=5"`
	Comment string `json:"comment,omitempty"`
}

type Statistics struct {
	CustomerID        string              `json:"customerId"`
	TotalOrders       int                 `json:"totalOrders"`
	TotalRevenue      float64             `json:"totalRevenue"`
	AverageOrderValue float64             `json:"averageOrderValue"`
	OrderStatusCounts map[OrderStatus]int `json:"orderStatusCounts"`
	StartDate         string              `json:"startDate"`
	EndDate           string              `json:"endDate"`
}
