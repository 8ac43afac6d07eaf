package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SubmissionStatus is the moderation lifecycle state of a submission.
type SubmissionStatus string

const (
	StatusPendingPayment SubmissionStatus = "pending_payment"
	StatusPending        SubmissionStatus = "pending"
	StatusApproved       SubmissionStatus = "approved"
	StatusRejected       SubmissionStatus = "rejected"
)

type statusTransition struct {
	From SubmissionStatus
	To   SubmissionStatus
}

// validTransitions defines all allowed lifecycle transitions.
var validTransitions = map[statusTransition]bool{
	{StatusPendingPayment, StatusPending}: true, // payment confirmed
	{StatusPending, StatusApproved}:       true, // admin approve
	{StatusPending, StatusRejected}:       true, // admin reject
	// Resubmission of a rejected listing re-enters moderation at the
	// same point a fresh submission would.
	{StatusRejected, StatusPending}:        true,
	{StatusRejected, StatusPendingPayment}: true,
}

// CanTransition reports whether moving a submission from one status to
// another is permitted.
func CanTransition(from, to SubmissionStatus) bool {
	return validTransitions[statusTransition{from, to}]
}

// IsValid reports whether the value is one of the known statuses.
func (s SubmissionStatus) IsValid() bool {
	switch s {
	case StatusPendingPayment, StatusPending, StatusApproved, StatusRejected:
		return true
	default:
		return false
	}
}

// Submission represents a proposed CE class awaiting moderation
type Submission struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	SubmittedBy uuid.UUID `gorm:"type:uuid;not null;index" json:"submitted_by"`
	Submitter   *User     `gorm:"foreignKey:SubmittedBy" json:"submitter,omitempty"`

	Title       string `gorm:"size:100;not null" json:"title"`
	Description string `gorm:"size:1000;not null" json:"description"`
	Category    string `gorm:"size:50;not null;index" json:"category"`

	StartDate string  `gorm:"size:10;not null" json:"start_date"` // YYYY-MM-DD
	EndDate   *string `gorm:"size:10" json:"end_date,omitempty"`
	StartTime string  `gorm:"size:5;not null" json:"start_time"` // HH:MM
	EndTime   string  `gorm:"size:5;not null" json:"end_time"`
	Timezone  string  `gorm:"size:50;default:America/Chicago" json:"timezone"`

	AddressLine1 string  `gorm:"size:255;not null" json:"address_line1"`
	AddressLine2 *string `gorm:"size:255" json:"address_line2,omitempty"`
	City         string  `gorm:"size:100;not null" json:"city"`
	State        string  `gorm:"size:2;not null;index" json:"state"`
	ZipCode      string  `gorm:"size:10;not null" json:"zip_code"`

	InstructorName string  `gorm:"size:100;not null" json:"instructor_name"`
	ProviderName   string  `gorm:"size:100;not null" json:"provider_name"`
	ContactEmail   *string `gorm:"size:255" json:"contact_email,omitempty"`
	ContactPhone   *string `gorm:"size:30" json:"contact_phone,omitempty"`

	Price           decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"price"`
	CECredits       *int            `json:"ce_credits,omitempty"`
	RegistrationURL string          `gorm:"size:500;not null" json:"registration_url"`
	ImageURL        string          `gorm:"size:500" json:"image_url"`

	Status          SubmissionStatus `gorm:"size:50;not null;default:pending;index" json:"status"`
	PaymentAmount   decimal.Decimal  `gorm:"type:decimal(10,2);not null" json:"payment_amount"`
	CouponCode      *string          `gorm:"size:50" json:"coupon_code,omitempty"`
	StripePaymentID *string          `gorm:"size:255" json:"stripe_payment_id,omitempty"`

	RejectionReason *string    `gorm:"size:1000" json:"rejection_reason,omitempty"`
	ReviewedBy      *uuid.UUID `gorm:"type:uuid" json:"reviewed_by,omitempty"`
	ReviewedAt      *time.Time `json:"reviewed_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for Submission model
func (Submission) TableName() string {
	return "submissions"
}
