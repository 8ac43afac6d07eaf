package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"ce-marketplace/internal/models"
)

type CouponService struct {
	db *gorm.DB
}

func NewCouponService(db *gorm.DB) *CouponService {
	return &CouponService{db: db}
}

// Redeem consumes one use of the coupon. The remaining-uses check and
// the increment run as a single conditional UPDATE so two concurrent
// redemptions of a nearly exhausted coupon cannot both succeed.
func (s *CouponService) Redeem(ctx context.Context, code string) error {
	result := s.db.WithContext(ctx).Model(&models.CouponCode{}).
		Where("code = ? AND is_active = ? AND (max_uses IS NULL OR current_uses < max_uses)", code, true).
		UpdateColumn("current_uses", gorm.Expr("current_uses + 1"))

	if result.Error != nil {
		return fmt.Errorf("failed to redeem coupon: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrInvalidCoupon
	}

	return nil
}

// Release returns one use to the coupon. Used to compensate a redemption
// when the submission it paid for could not be created.
func (s *CouponService) Release(ctx context.Context, code string) error {
	result := s.db.WithContext(ctx).Model(&models.CouponCode{}).
		Where("code = ? AND current_uses > 0", code).
		UpdateColumn("current_uses", gorm.Expr("current_uses - 1"))

	if result.Error != nil {
		return fmt.Errorf("failed to release coupon: %w", result.Error)
	}

	return nil
}

// Create registers a new coupon code. A nil maxUses means unlimited.
func (s *CouponService) Create(ctx context.Context, code string, maxUses *int) (*models.CouponCode, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, &ValidationError{"code", "code is required"}
	}
	if maxUses != nil && *maxUses < 1 {
		return nil, &ValidationError{"max_uses", "max uses must be at least 1"}
	}

	coupon := models.CouponCode{
		ID:       uuid.New(),
		Code:     code,
		IsActive: true,
		MaxUses:  maxUses,
	}

	if err := s.db.WithContext(ctx).Create(&coupon).Error; err != nil {
		return nil, fmt.Errorf("failed to create coupon: %w", err)
	}

	return &coupon, nil
}

// List returns all coupons, newest first.
func (s *CouponService) List(ctx context.Context) ([]models.CouponCode, error) {
	var coupons []models.CouponCode
	if err := s.db.WithContext(ctx).Order("created_at DESC").Find(&coupons).Error; err != nil {
		return nil, fmt.Errorf("failed to list coupons: %w", err)
	}
	return coupons, nil
}

// Deactivate stops further redemptions of a coupon immediately.
func (s *CouponService) Deactivate(ctx context.Context, id uuid.UUID) error {
	result := s.db.WithContext(ctx).Model(&models.CouponCode{}).
		Where("id = ?", id).
		Update("is_active", false)

	if result.Error != nil {
		return fmt.Errorf("failed to deactivate coupon: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrCouponNotFound
	}

	return nil
}
