package models

import (
	"time"

	"github.com/google/uuid"
)

// CouponCode represents a reusable token that waives the listing fee.
// A nil MaxUses means the code can be redeemed without limit.
type CouponCode struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Code        string    `gorm:"uniqueIndex;not null;size:50" json:"code"`
	IsActive    bool      `gorm:"default:true" json:"is_active"`
	MaxUses     *int      `json:"max_uses,omitempty"`
	CurrentUses int       `gorm:"default:0" json:"current_uses"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName specifies the table name for CouponCode model
func (CouponCode) TableName() string {
	return "coupon_codes"
}
