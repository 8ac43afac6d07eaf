package services

import "testing"

func TestDecideFee(t *testing.T) {
	tests := []struct {
		name        string
		isAdmin     bool
		couponValid bool
		wantFree    bool
	}{
		{"regular user pays", false, false, false},
		{"coupon bypasses fee", false, true, true},
		{"admin bypasses fee", true, false, true},
		{"admin with coupon still free", true, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fee := DecideFee(tt.isAdmin, tt.couponValid)
			if fee.Free != tt.wantFree {
				t.Errorf("Free = %v, want %v", fee.Free, tt.wantFree)
			}
			if tt.wantFree && !fee.Amount.IsZero() {
				t.Errorf("free path must carry zero amount, got %s", fee.Amount)
			}
			if !tt.wantFree && !fee.Amount.Equal(ListingFee) {
				t.Errorf("paid path must carry the listing fee, got %s", fee.Amount)
			}
		})
	}
}
