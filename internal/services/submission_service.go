package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"ce-marketplace/internal/geocode"
	"ce-marketplace/internal/models"
	"ce-marketplace/internal/payments"
)

// Fallback listing image when the submitter provides none.
const defaultImageURL = "https://images.unsplash.com/photo-1612349317150-e413f6a5b16d?w=800"

// CheckoutClient creates hosted checkout sessions with the payment
// provider.
type CheckoutClient interface {
	CreateCheckoutSession(ctx context.Context, amountCents int64, description, successURL, cancelURL string, metadata map[string]string) (*payments.CheckoutSession, error)
}

// Mailer notifies submitters of moderation outcomes.
type Mailer interface {
	SendModerationResult(ctx context.Context, to, classTitle string, approved bool, reason string) error
}

// Geocoder resolves venue addresses to coordinates.
type Geocoder interface {
	Locate(ctx context.Context, addr geocode.Address) (float64, float64, error)
}

// SubmissionService is the submission lifecycle engine: it validates
// content, applies the payment-gating policy, and moves submissions
// through the moderation state machine.
type SubmissionService struct {
	db       *gorm.DB
	coupons  *CouponService
	checkout CheckoutClient
	mailer   Mailer
	geocoder Geocoder
	logger   *zap.Logger
	baseURL  string
}

func NewSubmissionService(
	db *gorm.DB,
	coupons *CouponService,
	checkout CheckoutClient,
	mailer Mailer,
	geocoder Geocoder,
	logger *zap.Logger,
	baseURL string,
) *SubmissionService {
	return &SubmissionService{
		db:       db,
		coupons:  coupons,
		checkout: checkout,
		mailer:   mailer,
		geocoder: geocoder,
		logger:   logger,
		baseURL:  baseURL,
	}
}

// Create validates the content, applies the gating policy and creates the
// submission. For the paid path it also creates a checkout session whose
// metadata carries the submission and submitter ids; the returned session
// is nil when no payment is required.
func (s *SubmissionService) Create(ctx context.Context, submitter models.User, in SubmissionInput, couponCode string) (*models.Submission, *payments.CheckoutSession, error) {
	in.Normalize()
	if err := in.Validate(); err != nil {
		return nil, nil, err
	}

	// Admin bypass takes priority over coupons: the code is not consumed.
	couponCode = strings.TrimSpace(couponCode)
	couponRedeemed := false
	if !submitter.IsAdmin && couponCode != "" {
		if err := s.coupons.Redeem(ctx, couponCode); err != nil {
			return nil, nil, err
		}
		couponRedeemed = true
	}

	fee := DecideFee(submitter.IsAdmin, couponRedeemed)

	sub := buildSubmission(submitter.ID, in)
	sub.PaymentAmount = fee.Amount
	if couponRedeemed {
		sub.CouponCode = &couponCode
	}
	if fee.Free {
		sub.Status = models.StatusPending
	} else {
		sub.Status = models.StatusPendingPayment
	}

	if err := s.db.WithContext(ctx).Create(sub).Error; err != nil {
		if couponRedeemed {
			if relErr := s.coupons.Release(ctx, couponCode); relErr != nil {
				s.logger.Warn("failed to release coupon after failed insert",
					zap.String("coupon", couponCode), zap.Error(relErr))
			}
		}
		return nil, nil, fmt.Errorf("failed to create submission: %w", err)
	}

	if fee.Free {
		return sub, nil, nil
	}

	session, err := s.createCheckout(ctx, sub.ID, submitter.ID, sub.Title, fee.Amount)
	if err != nil {
		// Never leave an unpayable draft behind.
		if delErr := s.db.WithContext(ctx).Delete(&models.Submission{}, "id = ?", sub.ID).Error; delErr != nil {
			s.logger.Error("failed to remove submission after checkout failure",
				zap.String("submission_id", sub.ID.String()), zap.Error(delErr))
		}
		return nil, nil, err
	}

	return sub, session, nil
}

// ConfirmPayment applies an already-authenticated payment confirmation.
// Redelivery of a confirmation for a submission that has left
// pending_payment is a no-op, never an error.
func (s *SubmissionService) ConfirmPayment(ctx context.Context, submissionID, paymentRef string) error {
	if submissionID == "" {
		return ErrMissingCorrelationID
	}
	id, err := uuid.Parse(submissionID)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrMissingCorrelationID, submissionID)
	}

	result := s.db.WithContext(ctx).Model(&models.Submission{}).
		Where("id = ? AND status = ?", id, models.StatusPendingPayment).
		Updates(map[string]interface{}{
			"status":            models.StatusPending,
			"stripe_payment_id": paymentRef,
		})

	if result.Error != nil {
		return fmt.Errorf("failed to confirm payment: %w", result.Error)
	}

	if result.RowsAffected == 0 {
		var sub models.Submission
		if err := s.db.WithContext(ctx).First(&sub, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrSubmissionNotFound
			}
			return fmt.Errorf("failed to load submission: %w", err)
		}
		// Already past pending_payment: at-least-once delivery.
		s.logger.Info("duplicate payment confirmation ignored",
			zap.String("submission_id", submissionID),
			zap.String("status", string(sub.Status)))
		return nil
	}

	s.logger.Info("payment confirmed",
		zap.String("submission_id", submissionID),
		zap.String("payment_ref", paymentRef))
	return nil
}

// CancelPendingPayment deletes all of the submitter's submissions still
// awaiting payment. Called from the checkout cancel return path so an
// abandoned draft does not linger in the dashboard.
func (s *SubmissionService) CancelPendingPayment(ctx context.Context, submitterID uuid.UUID) (int64, error) {
	result := s.db.WithContext(ctx).
		Where("submitted_by = ? AND status = ?", submitterID, models.StatusPendingPayment).
		Delete(&models.Submission{})

	if result.Error != nil {
		return 0, fmt.Errorf("failed to cancel pending submissions: %w", result.Error)
	}

	return result.RowsAffected, nil
}

// Approve publishes the submission as a Class and stamps the reviewer.
// The class insert and the status update are one logical unit: if the
// status update loses a race or fails, the freshly created class is
// rolled back so the two facts never diverge.
func (s *SubmissionService) Approve(ctx context.Context, submissionID, reviewerID uuid.UUID) (*models.Class, error) {
	var sub models.Submission
	if err := s.db.WithContext(ctx).First(&sub, "id = ?", submissionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSubmissionNotFound
		}
		return nil, fmt.Errorf("failed to load submission: %w", err)
	}

	if !models.CanTransition(sub.Status, models.StatusApproved) {
		return nil, &AlreadyReviewedError{Status: sub.Status}
	}

	cls := s.classFromSubmission(ctx, &sub)
	if err := s.db.WithContext(ctx).Create(cls).Error; err != nil {
		return nil, fmt.Errorf("failed to create class listing: %w", err)
	}

	now := time.Now()
	result := s.db.WithContext(ctx).Model(&models.Submission{}).
		Where("id = ? AND status = ?", sub.ID, models.StatusPending).
		Updates(map[string]interface{}{
			"status":      models.StatusApproved,
			"reviewed_by": reviewerID,
			"reviewed_at": now,
		})

	if result.Error != nil {
		s.rollbackClass(ctx, cls.ID)
		return nil, fmt.Errorf("%w: %v", ErrPublishFailed, result.Error)
	}
	if result.RowsAffected == 0 {
		// Another reviewer got there first.
		s.rollbackClass(ctx, cls.ID)
		current := sub.Status
		var latest models.Submission
		if err := s.db.WithContext(ctx).First(&latest, "id = ?", sub.ID).Error; err == nil {
			current = latest.Status
		}
		return nil, &AlreadyReviewedError{Status: current}
	}

	s.logger.Info("submission approved",
		zap.String("submission_id", sub.ID.String()),
		zap.String("class_id", cls.ID.String()),
		zap.String("reviewed_by", reviewerID.String()))

	s.notify(ctx, &sub, true, "")
	return cls, nil
}

// Reject stamps the reviewer and an optional reason. No Class row is
// touched.
func (s *SubmissionService) Reject(ctx context.Context, submissionID, reviewerID uuid.UUID, reason *string) error {
	var sub models.Submission
	if err := s.db.WithContext(ctx).First(&sub, "id = ?", submissionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrSubmissionNotFound
		}
		return fmt.Errorf("failed to load submission: %w", err)
	}

	if !models.CanTransition(sub.Status, models.StatusRejected) {
		return &AlreadyReviewedError{Status: sub.Status}
	}

	now := time.Now()
	result := s.db.WithContext(ctx).Model(&models.Submission{}).
		Where("id = ? AND status = ?", sub.ID, models.StatusPending).
		Updates(map[string]interface{}{
			"status":           models.StatusRejected,
			"rejection_reason": reason,
			"reviewed_by":      reviewerID,
			"reviewed_at":      now,
		})

	if result.Error != nil {
		return fmt.Errorf("failed to reject submission: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		current := sub.Status
		var latest models.Submission
		if err := s.db.WithContext(ctx).First(&latest, "id = ?", sub.ID).Error; err == nil {
			current = latest.Status
		}
		return &AlreadyReviewedError{Status: current}
	}

	s.logger.Info("submission rejected",
		zap.String("submission_id", sub.ID.String()),
		zap.String("reviewed_by", reviewerID.String()))

	var reasonText string
	if reason != nil {
		reasonText = *reason
	}
	s.notify(ctx, &sub, false, reasonText)
	return nil
}

// UpdateContent lets the owner edit the class content. Edits are blocked
// while payment is outstanding and never change the moderation status; an
// already published Class is not touched.
func (s *SubmissionService) UpdateContent(ctx context.Context, submissionID, ownerID uuid.UUID, in SubmissionInput) (*models.Submission, error) {
	var sub models.Submission
	if err := s.db.WithContext(ctx).First(&sub, "id = ?", submissionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSubmissionNotFound
		}
		return nil, fmt.Errorf("failed to load submission: %w", err)
	}

	if sub.SubmittedBy != ownerID {
		return nil, ErrNotOwner
	}
	if sub.Status == models.StatusPendingPayment {
		return nil, ErrEditLocked
	}

	in.Normalize()
	if err := in.Validate(); err != nil {
		return nil, err
	}

	if err := s.db.WithContext(ctx).Model(&models.Submission{}).
		Where("id = ?", sub.ID).
		Updates(contentUpdates(in)).Error; err != nil {
		return nil, fmt.Errorf("failed to update submission: %w", err)
	}

	var updated models.Submission
	if err := s.db.WithContext(ctx).First(&updated, "id = ?", sub.ID).Error; err != nil {
		return nil, fmt.Errorf("failed to reload submission: %w", err)
	}
	return &updated, nil
}

// Resubmit re-enters a rejected submission into the state machine exactly
// like a fresh submission: content is re-validated, the fee decision runs
// again, and reviewer fields are cleared. The same row is reused.
func (s *SubmissionService) Resubmit(ctx context.Context, submissionID uuid.UUID, owner models.User, in SubmissionInput, couponCode string) (*models.Submission, *payments.CheckoutSession, error) {
	var sub models.Submission
	if err := s.db.WithContext(ctx).First(&sub, "id = ?", submissionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrSubmissionNotFound
		}
		return nil, nil, fmt.Errorf("failed to load submission: %w", err)
	}

	if sub.SubmittedBy != owner.ID {
		return nil, nil, ErrNotOwner
	}
	if sub.Status != models.StatusRejected {
		return nil, nil, ErrNotRejected
	}

	in.Normalize()
	if err := in.Validate(); err != nil {
		return nil, nil, err
	}

	couponCode = strings.TrimSpace(couponCode)
	couponRedeemed := false
	if !owner.IsAdmin && couponCode != "" {
		if err := s.coupons.Redeem(ctx, couponCode); err != nil {
			return nil, nil, err
		}
		couponRedeemed = true
	}

	fee := DecideFee(owner.IsAdmin, couponRedeemed)
	target := models.StatusPending
	if !fee.Free {
		target = models.StatusPendingPayment
	}
	if !models.CanTransition(sub.Status, target) {
		return nil, nil, ErrNotRejected
	}

	updates := contentUpdates(in)
	updates["status"] = target
	updates["payment_amount"] = fee.Amount
	updates["coupon_code"] = nil
	if couponRedeemed {
		updates["coupon_code"] = couponCode
	}
	updates["stripe_payment_id"] = nil
	updates["rejection_reason"] = nil
	updates["reviewed_by"] = nil
	updates["reviewed_at"] = nil

	result := s.db.WithContext(ctx).Model(&models.Submission{}).
		Where("id = ? AND status = ?", sub.ID, models.StatusRejected).
		Updates(updates)

	if result.Error != nil {
		if couponRedeemed {
			if relErr := s.coupons.Release(ctx, couponCode); relErr != nil {
				s.logger.Warn("failed to release coupon after failed resubmit",
					zap.String("coupon", couponCode), zap.Error(relErr))
			}
		}
		return nil, nil, fmt.Errorf("failed to resubmit submission: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		if couponRedeemed {
			if relErr := s.coupons.Release(ctx, couponCode); relErr != nil {
				s.logger.Warn("failed to release coupon after lost resubmit race",
					zap.String("coupon", couponCode), zap.Error(relErr))
			}
		}
		return nil, nil, ErrNotRejected
	}

	var session *payments.CheckoutSession
	if !fee.Free {
		var err error
		session, err = s.createCheckout(ctx, sub.ID, owner.ID, in.Title, fee.Amount)
		if err != nil {
			// Put the row back into rejected so the owner can retry; the
			// content edits themselves are kept.
			revert := map[string]interface{}{
				"status":            models.StatusRejected,
				"payment_amount":    sub.PaymentAmount,
				"coupon_code":       sub.CouponCode,
				"stripe_payment_id": sub.StripePaymentID,
				"rejection_reason":  sub.RejectionReason,
				"reviewed_by":       sub.ReviewedBy,
				"reviewed_at":       sub.ReviewedAt,
			}
			if revErr := s.db.WithContext(ctx).Model(&models.Submission{}).
				Where("id = ?", sub.ID).Updates(revert).Error; revErr != nil {
				s.logger.Error("failed to revert resubmission after checkout failure",
					zap.String("submission_id", sub.ID.String()), zap.Error(revErr))
			}
			return nil, nil, err
		}
	}

	var updated models.Submission
	if err := s.db.WithContext(ctx).First(&updated, "id = ?", sub.ID).Error; err != nil {
		return nil, nil, fmt.Errorf("failed to reload submission: %w", err)
	}
	return &updated, session, nil
}

// ListByOwner returns the owner's submissions, newest first.
func (s *SubmissionService) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Submission, error) {
	var subs []models.Submission
	if err := s.db.WithContext(ctx).
		Where("submitted_by = ?", ownerID).
		Order("created_at DESC").
		Find(&subs).Error; err != nil {
		return nil, fmt.Errorf("failed to list submissions: %w", err)
	}
	return subs, nil
}

// GetForOwner returns a single submission if it belongs to the owner.
func (s *SubmissionService) GetForOwner(ctx context.Context, submissionID, ownerID uuid.UUID) (*models.Submission, error) {
	var sub models.Submission
	if err := s.db.WithContext(ctx).First(&sub, "id = ?", submissionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSubmissionNotFound
		}
		return nil, fmt.Errorf("failed to load submission: %w", err)
	}
	if sub.SubmittedBy != ownerID {
		return nil, ErrNotOwner
	}
	return &sub, nil
}

// ListByStatus returns submissions for the moderation queue, newest
// first, with the submitter preloaded. A nil status returns everything.
func (s *SubmissionService) ListByStatus(ctx context.Context, status *models.SubmissionStatus, limit, offset int) ([]models.Submission, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.Submission{})
	if status != nil {
		query = query.Where("status = ?", *status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count submissions: %w", err)
	}

	var subs []models.Submission
	if err := query.
		Preload("Submitter").
		Order("created_at DESC").
		Limit(limit).Offset(offset).
		Find(&subs).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list submissions: %w", err)
	}

	return subs, total, nil
}

// GetByID returns a submission with the submitter preloaded (admin view).
func (s *SubmissionService) GetByID(ctx context.Context, submissionID uuid.UUID) (*models.Submission, error) {
	var sub models.Submission
	if err := s.db.WithContext(ctx).Preload("Submitter").First(&sub, "id = ?", submissionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSubmissionNotFound
		}
		return nil, fmt.Errorf("failed to load submission: %w", err)
	}
	return &sub, nil
}

// DeleteStalePendingPayment removes pending_payment submissions created
// before the cutoff. Checkout sessions expire, so these drafts can never
// be paid.
func (s *SubmissionService) DeleteStalePendingPayment(ctx context.Context, cutoff time.Time) (int64, error) {
	result := s.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", models.StatusPendingPayment, cutoff).
		Delete(&models.Submission{})

	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete stale submissions: %w", result.Error)
	}

	return result.RowsAffected, nil
}

func (s *SubmissionService) createCheckout(ctx context.Context, submissionID, userID uuid.UUID, title string, amount decimal.Decimal) (*payments.CheckoutSession, error) {
	desc := title
	if utf8.RuneCountInString(desc) > 50 {
		desc = string([]rune(desc)[:50])
	}

	return s.checkout.CreateCheckoutSession(
		ctx,
		amount.Mul(decimal.NewFromInt(100)).IntPart(),
		"Listing: "+desc,
		s.baseURL+"/submit/success?session_id={CHECKOUT_SESSION_ID}",
		s.baseURL+"/submit?canceled=true",
		map[string]string{
			"submission_id": submissionID.String(),
			"user_id":       userID.String(),
		},
	)
}

func (s *SubmissionService) classFromSubmission(ctx context.Context, sub *models.Submission) *models.Class {
	cls := &models.Class{
		ID:              uuid.New(),
		Title:           sub.Title,
		Description:     sub.Description,
		Category:        sub.Category,
		StartDate:       sub.StartDate,
		EndDate:         sub.EndDate,
		StartTime:       sub.StartTime,
		EndTime:         sub.EndTime,
		Timezone:        sub.Timezone,
		AddressLine1:    sub.AddressLine1,
		AddressLine2:    sub.AddressLine2,
		City:            sub.City,
		State:           sub.State,
		ZipCode:         sub.ZipCode,
		InstructorName:  sub.InstructorName,
		ProviderName:    sub.ProviderName,
		ContactEmail:    sub.ContactEmail,
		ContactPhone:    sub.ContactPhone,
		Price:           sub.Price,
		CECredits:       sub.CECredits,
		RegistrationURL: sub.RegistrationURL,
		ImageURL:        sub.ImageURL,
		PostedBy:        sub.SubmittedBy,
		IsAdminPost:     false,
		Status:          models.ClassStatusApproved,
	}

	if s.geocoder != nil {
		lat, lng, err := s.geocoder.Locate(ctx, geocode.Address{
			Line1:   sub.AddressLine1,
			City:    sub.City,
			State:   sub.State,
			ZipCode: sub.ZipCode,
		})
		if err != nil {
			s.logger.Warn("geocoding failed, publishing without coordinates",
				zap.String("submission_id", sub.ID.String()), zap.Error(err))
		} else {
			cls.Latitude = &lat
			cls.Longitude = &lng
		}
	}

	return cls
}

func (s *SubmissionService) rollbackClass(ctx context.Context, classID uuid.UUID) {
	if err := s.db.WithContext(ctx).Unscoped().Delete(&models.Class{}, "id = ?", classID).Error; err != nil {
		s.logger.Error("failed to roll back class after approval failure",
			zap.String("class_id", classID.String()), zap.Error(err))
	}
}

func (s *SubmissionService) notify(ctx context.Context, sub *models.Submission, approved bool, reason string) {
	if s.mailer == nil || sub.ContactEmail == nil || *sub.ContactEmail == "" {
		return
	}
	if err := s.mailer.SendModerationResult(ctx, *sub.ContactEmail, sub.Title, approved, reason); err != nil {
		s.logger.Warn("moderation email failed",
			zap.String("submission_id", sub.ID.String()), zap.Error(err))
	}
}

func buildSubmission(submitterID uuid.UUID, in SubmissionInput) *models.Submission {
	price, _ := parsePrice(in.Price)

	imageURL := in.ImageURL
	if imageURL == "" {
		imageURL = defaultImageURL
	}
	timezone := in.Timezone
	if timezone == "" {
		timezone = "America/Chicago"
	}

	return &models.Submission{
		ID:              uuid.New(),
		SubmittedBy:     submitterID,
		Title:           in.Title,
		Description:     in.Description,
		Category:        in.Category,
		StartDate:       in.StartDate,
		EndDate:         optString(in.EndDate),
		StartTime:       in.StartTime,
		EndTime:         in.EndTime,
		Timezone:        timezone,
		AddressLine1:    in.AddressLine1,
		AddressLine2:    optString(in.AddressLine2),
		City:            in.City,
		State:           in.State,
		ZipCode:         in.ZipCode,
		InstructorName:  in.InstructorName,
		ProviderName:    in.ProviderName,
		ContactEmail:    optString(in.ContactEmail),
		ContactPhone:    optString(in.ContactPhone),
		Price:           price,
		CECredits:       in.CECredits,
		RegistrationURL: in.RegistrationURL,
		ImageURL:        imageURL,
	}
}

func contentUpdates(in SubmissionInput) map[string]interface{} {
	price, _ := parsePrice(in.Price)

	imageURL := in.ImageURL
	if imageURL == "" {
		imageURL = defaultImageURL
	}
	timezone := in.Timezone
	if timezone == "" {
		timezone = "America/Chicago"
	}

	updates := map[string]interface{}{
		"title":            in.Title,
		"description":      in.Description,
		"category":         in.Category,
		"start_date":       in.StartDate,
		"end_date":         nil,
		"start_time":       in.StartTime,
		"end_time":         in.EndTime,
		"timezone":         timezone,
		"address_line1":    in.AddressLine1,
		"address_line2":    nil,
		"city":             in.City,
		"state":            in.State,
		"zip_code":         in.ZipCode,
		"instructor_name":  in.InstructorName,
		"provider_name":    in.ProviderName,
		"contact_email":    nil,
		"contact_phone":    nil,
		"price":            price,
		"ce_credits":       in.CECredits,
		"registration_url": in.RegistrationURL,
		"image_url":        imageURL,
	}
	if in.EndDate != "" {
		updates["end_date"] = in.EndDate
	}
	if in.AddressLine2 != "" {
		updates["address_line2"] = in.AddressLine2
	}
	if in.ContactEmail != "" {
		updates["contact_email"] = in.ContactEmail
	}
	if in.ContactPhone != "" {
		updates["contact_phone"] = in.ContactPhone
	}

	return updates
}

func optString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
