package models

// Static catalog data. The portal does not own product or voucher
// management; both are supplied as lookup tables.

// Demo identities used when no customer or restaurant is supplied.
const (
	DefaultCustomerID   = "550e8400-e29b-41d4-a716-446655440000"
	DefaultRestaurantID = "660e8400-e29b-41d4-a716-446655440000"
)

type Product struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Category string  `json:"category,omitempty"`
}

var SampleProducts = []Product{
	{ID: "5ab21ca4-c15d-4834-bbe4-20d72134cc4a", Name: "Pizza Margherita", Price: 12.99, Category: "Main"},
	{ID: "7b32e1f5-a6d8-4b9c-9e2f-3a8b1c9d7e0f", Name: "Cheeseburger", Price: 8.99, Category: "Main"},
	{ID: "9c84f3a2-b7e1-4d5a-8f6b-4c9d2e1a5b6c", Name: "Caesar Salad", Price: 6.99, Category: "Salad"},
	{ID: "1d57a4b8-c8f2-4e6b-9a7c-5d8e3f2a1b9c", Name: "Chicken Wings", Price: 9.99, Category: "Appetizer"},
	{ID: "6e79b5c3-d9a3-4f7c-be8d-6e9f4a3b2c1d", Name: "French Fries", Price: 3.99, Category: "Side"},
	{ID: "2f68c6d4-ea8b-4c9d-bf9e-7f0a5c4d3e2f", Name: "Coca Cola", Price: 2.99, Category: "Beverage"},
}

var SampleVouchers = map[string]Voucher{
	"SAVE10": {Code: "SAVE10", DiscountType: DiscountTypePercentage, DiscountValue: 10},
	"SAVE5":  {Code: "SAVE5", DiscountType: DiscountTypeAmount, DiscountValue: 5},
	"SAVE20": {Code: "SAVE20", DiscountType: DiscountTypePercentage, DiscountValue: 20},
}

// LookupVoucher returns the voucher for code, if one exists.
func LookupVoucher(code string) (Voucher, bool) {
	v, ok := SampleVouchers[code]
	return v, ok
}
