package services

import (
	"github.com/shopspring/decimal"
)

// ListingFee is the standard fee for a non-admin, non-coupon submission.
var ListingFee = decimal.RequireFromString("5.00")

// FeeDecision is the outcome of the payment-gating policy.
type FeeDecision struct {
	Free   bool
	Amount decimal.Decimal
}

// DecideFee applies the payment-gating policy: admins and valid coupons
// list for free, everyone else pays the standard fee. Pure function, no
// side effects.
func DecideFee(isAdmin, couponValid bool) FeeDecision {
	if isAdmin || couponValid {
		return FeeDecision{Free: true, Amount: decimal.Zero}
	}
	return FeeDecision{Free: false, Amount: ListingFee}
}
