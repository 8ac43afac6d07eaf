package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"ce-marketplace/internal/models"
)

// ClassFilter narrows the public class catalogue. Zero values mean no
// filtering on that dimension.
type ClassFilter struct {
	Category string
	State    string
	Search   string
	SortBy   string // "date" (default) or "price"
	Limit    int
	Offset   int
}

// ClassService serves the public, approved-only side of the catalogue.
type ClassService struct {
	db *gorm.DB
}

func NewClassService(db *gorm.DB) *ClassService {
	return &ClassService{db: db}
}

// List returns approved classes matching the filter. Soft-deleted rows
// are excluded by gorm. Default order is soonest start date first.
func (s *ClassService) List(ctx context.Context, filter ClassFilter) ([]models.Class, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.Class{}).
		Where("status = ?", models.ClassStatusApproved)

	if filter.Category != "" {
		query = query.Where("category = ?", filter.Category)
	}
	if filter.State != "" {
		query = query.Where("state = ?", strings.ToUpper(filter.State))
	}
	if filter.Search != "" {
		pattern := "%" + strings.ToLower(filter.Search) + "%"
		query = query.Where("LOWER(title) LIKE ? OR LOWER(provider_name) LIKE ? OR LOWER(city) LIKE ?",
			pattern, pattern, pattern)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count classes: %w", err)
	}

	switch filter.SortBy {
	case "price":
		query = query.Order("price ASC")
	default:
		query = query.Order("start_date ASC")
	}

	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	var classes []models.Class
	if err := query.Limit(limit).Offset(filter.Offset).Find(&classes).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list classes: %w", err)
	}

	return classes, total, nil
}

// Get returns a single approved class by id.
func (s *ClassService) Get(ctx context.Context, classID uuid.UUID) (*models.Class, error) {
	var cls models.Class
	if err := s.db.WithContext(ctx).
		Where("id = ? AND status = ?", classID, models.ClassStatusApproved).
		First(&cls).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrClassNotFound
		}
		return nil, fmt.Errorf("failed to load class: %w", err)
	}
	return &cls, nil
}

// Categories returns the known category names for filter dropdowns.
func (s *ClassService) Categories() []string {
	out := make([]string, len(Categories))
	copy(out, Categories)
	return out
}

// Remove soft-deletes a class so it disappears from the public
// catalogue while the row is kept for audit.
func (s *ClassService) Remove(ctx context.Context, classID uuid.UUID) error {
	result := s.db.WithContext(ctx).Delete(&models.Class{}, "id = ?", classID)
	if result.Error != nil {
		return fmt.Errorf("failed to remove class: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrClassNotFound
	}
	return nil
}
