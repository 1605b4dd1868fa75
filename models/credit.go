package models

import "time"

type CreditBalance struct {
	CustomerID  string    `json:"customerId"`
	TotalCredit float64   `json:"totalCredit"`
	LastUpdated time.Time `json:"lastUpdated"`
}

type CreditEntry struct {
	ID          string    `json:"id"`
	CustomerID  string    `json:"customerId"`
	Amount      float64   `json:"amount"`
	Type        string    `json:"type"` // ADD or DEDUCT
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
}

type AddCreditRequest struct {
	Amount      float64 `json:"amount" binding:"required,gte=1"`
	Description string  `json:"description,omitempty"`
}
