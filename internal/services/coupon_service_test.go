package services

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"ce-marketplace/internal/models"
)

func TestRedeemDecrementsRemainingUses(t *testing.T) {
	db := setupTestDB(t)
	svc := NewCouponService(db)

	max := 2
	coupon := models.CouponCode{ID: uuid.New(), Code: "TWOUSES", IsActive: true, MaxUses: &max}
	if err := db.Create(&coupon).Error; err != nil {
		t.Fatalf("failed to create coupon: %v", err)
	}

	if err := svc.Redeem(context.Background(), "TWOUSES"); err != nil {
		t.Fatalf("first redeem failed: %v", err)
	}
	if err := svc.Redeem(context.Background(), "TWOUSES"); err != nil {
		t.Fatalf("second redeem failed: %v", err)
	}

	// Exhausted now.
	if err := svc.Redeem(context.Background(), "TWOUSES"); !errors.Is(err, ErrInvalidCoupon) {
		t.Fatalf("expected ErrInvalidCoupon on exhausted coupon, got %v", err)
	}

	var reloaded models.CouponCode
	db.First(&reloaded, "id = ?", coupon.ID)
	if reloaded.CurrentUses != 2 {
		t.Errorf("expected 2 uses recorded, got %d", reloaded.CurrentUses)
	}
}

func TestRedeemUnlimitedCoupon(t *testing.T) {
	db := setupTestDB(t)
	svc := NewCouponService(db)

	coupon := models.CouponCode{ID: uuid.New(), Code: "UNLIMITED", IsActive: true}
	if err := db.Create(&coupon).Error; err != nil {
		t.Fatalf("failed to create coupon: %v", err)
	}

	for i := 0; i < 10; i++ {
		if err := svc.Redeem(context.Background(), "UNLIMITED"); err != nil {
			t.Fatalf("redeem %d failed: %v", i, err)
		}
	}
}

func TestRedeemInactiveCoupon(t *testing.T) {
	db := setupTestDB(t)
	svc := NewCouponService(db)

	coupon := models.CouponCode{ID: uuid.New(), Code: "RETIRED", IsActive: false}
	if err := db.Create(&coupon).Error; err != nil {
		t.Fatalf("failed to create coupon: %v", err)
	}

	if err := svc.Redeem(context.Background(), "RETIRED"); !errors.Is(err, ErrInvalidCoupon) {
		t.Fatalf("expected ErrInvalidCoupon, got %v", err)
	}
}

func TestRedeemUnknownCoupon(t *testing.T) {
	db := setupTestDB(t)
	svc := NewCouponService(db)

	if err := svc.Redeem(context.Background(), "NOSUCH"); !errors.Is(err, ErrInvalidCoupon) {
		t.Fatalf("expected ErrInvalidCoupon, got %v", err)
	}
}

func TestReleaseRestoresUse(t *testing.T) {
	db := setupTestDB(t)
	svc := NewCouponService(db)

	max := 1
	coupon := models.CouponCode{ID: uuid.New(), Code: "ONEUSE", IsActive: true, MaxUses: &max}
	if err := db.Create(&coupon).Error; err != nil {
		t.Fatalf("failed to create coupon: %v", err)
	}

	if err := svc.Redeem(context.Background(), "ONEUSE"); err != nil {
		t.Fatalf("redeem failed: %v", err)
	}
	if err := svc.Release(context.Background(), "ONEUSE"); err != nil {
		t.Fatalf("release failed: %v", err)
	}
	if err := svc.Redeem(context.Background(), "ONEUSE"); err != nil {
		t.Fatalf("redeem after release failed: %v", err)
	}
}

func TestDeactivateStopsRedemption(t *testing.T) {
	db := setupTestDB(t)
	svc := NewCouponService(db)

	coupon, err := svc.Create(context.Background(), "SUNSET", nil)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if err := svc.Deactivate(context.Background(), coupon.ID); err != nil {
		t.Fatalf("deactivate failed: %v", err)
	}

	if err := svc.Redeem(context.Background(), "SUNSET"); !errors.Is(err, ErrInvalidCoupon) {
		t.Fatalf("expected ErrInvalidCoupon after deactivation, got %v", err)
	}
}

func TestCreateCouponValidation(t *testing.T) {
	db := setupTestDB(t)
	svc := NewCouponService(db)

	if _, err := svc.Create(context.Background(), "  ", nil); err == nil {
		t.Error("expected error for blank code")
	}

	zero := 0
	if _, err := svc.Create(context.Background(), "ZERO", &zero); err == nil {
		t.Error("expected error for zero max uses")
	}
}
