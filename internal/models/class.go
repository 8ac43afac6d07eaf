package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ClassStatus is the visibility state of a published listing.
type ClassStatus string

const (
	ClassStatusApproved ClassStatus = "approved"
)

// Class represents a published, publicly visible CE class listing.
// Created exactly once, as a copy of an approved Submission.
type Class struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`

	Title       string `gorm:"size:100;not null" json:"title"`
	Description string `gorm:"size:1000;not null" json:"description"`
	Category    string `gorm:"size:50;not null;index" json:"category"`

	StartDate string  `gorm:"size:10;not null;index" json:"start_date"`
	EndDate   *string `gorm:"size:10" json:"end_date,omitempty"`
	StartTime string  `gorm:"size:5;not null" json:"start_time"`
	EndTime   string  `gorm:"size:5;not null" json:"end_time"`
	Timezone  string  `gorm:"size:50" json:"timezone"`

	AddressLine1 string   `gorm:"size:255;not null" json:"address_line1"`
	AddressLine2 *string  `gorm:"size:255" json:"address_line2,omitempty"`
	City         string   `gorm:"size:100;not null" json:"city"`
	State        string   `gorm:"size:2;not null;index" json:"state"`
	ZipCode      string   `gorm:"size:10;not null" json:"zip_code"`
	Latitude     *float64 `json:"latitude,omitempty"`
	Longitude    *float64 `json:"longitude,omitempty"`

	InstructorName string  `gorm:"size:100;not null" json:"instructor_name"`
	ProviderName   string  `gorm:"size:100;not null" json:"provider_name"`
	ContactEmail   *string `gorm:"size:255" json:"contact_email,omitempty"`
	ContactPhone   *string `gorm:"size:30" json:"contact_phone,omitempty"`

	Price           decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"price"`
	CECredits       *int            `json:"ce_credits,omitempty"`
	RegistrationURL string          `gorm:"size:500;not null" json:"registration_url"`
	ImageURL        string          `gorm:"size:500" json:"image_url"`

	PostedBy    uuid.UUID   `gorm:"type:uuid;not null;index" json:"posted_by"`
	IsAdminPost bool        `gorm:"default:false" json:"is_admin_post"`
	Status      ClassStatus `gorm:"size:50;not null;default:approved;index" json:"status"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName specifies the table name for Class model
func (Class) TableName() string {
	return "classes"
}
