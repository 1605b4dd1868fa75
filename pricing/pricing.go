// Package pricing computes order totals, including voucher discounts.
package pricing

import "portal-svc/models"

// ItemsTotal returns the pre-discount sum over line items.
func ItemsTotal(items []models.CreateOrderItem) float64 {
	var total float64
	for _, item := range items {
		total += float64(item.Quantity) * item.Price
	}
	return total
}

// ComputeTotal returns the payable total for the given line items and an
// optional voucher code. Unknown or empty codes leave the total unchanged;
// voucher validity is re-checked at submission time, so an unknown code
// here is a no-op, not an error. The result never goes below zero.
func ComputeTotal(items []models.CreateOrderItem, voucherCode string) float64 {
	total := ItemsTotal(items)

	voucher, ok := models.LookupVoucher(voucherCode)
	if !ok {
		return total
	}

	var discount float64
	switch voucher.DiscountType {
	case models.DiscountTypePercentage:
		discount = total * voucher.DiscountValue / 100
	case models.DiscountTypeAmount:
		discount = voucher.DiscountValue
		if discount > total {
			discount = total
		}
	}

	if total-discount < 0 {
		return 0
	}
	return total - discount
}
