package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"ce-marketplace/internal/models"
	"ce-marketplace/internal/payments"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to connect database: %v", err)
	}

	err = db.AutoMigrate(
		&models.User{},
		&models.CouponCode{},
		&models.Submission{},
		&models.Class{},
	)
	if err != nil {
		t.Fatalf("failed to migrate database: %v", err)
	}

	// Clean all tables
	db.Exec("DELETE FROM classes")
	db.Exec("DELETE FROM submissions")
	db.Exec("DELETE FROM coupon_codes")
	db.Exec("DELETE FROM users")

	return db
}

type checkoutCall struct {
	amountCents int64
	description string
	metadata    map[string]string
}

type fakeCheckout struct {
	calls []checkoutCall
	fail  bool
}

func (f *fakeCheckout) CreateCheckoutSession(ctx context.Context, amountCents int64, description, successURL, cancelURL string, metadata map[string]string) (*payments.CheckoutSession, error) {
	if f.fail {
		return nil, errors.New("payment provider unavailable")
	}
	f.calls = append(f.calls, checkoutCall{amountCents: amountCents, description: description, metadata: metadata})
	return &payments.CheckoutSession{
		ID:  "cs_test_123",
		URL: "https://checkout.example/cs_test_123",
	}, nil
}

func newTestService(db *gorm.DB, checkout CheckoutClient) *SubmissionService {
	return NewSubmissionService(db, NewCouponService(db), checkout, nil, nil, zap.NewNop(), "http://localhost:3000")
}

func createTestUser(t *testing.T, db *gorm.DB, email string, isAdmin bool) models.User {
	user := models.User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: "x",
		IsAdmin:      isAdmin,
	}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	return user
}

func validInput() SubmissionInput {
	return SubmissionInput{
		Title:           "Modern Implant Placement",
		Description:     "Two day hands-on course covering guided implant placement.",
		Category:        "Implants",
		StartDate:       "2026-10-12",
		EndDate:         "2026-10-13",
		StartTime:       "09:00",
		EndTime:         "17:00",
		AddressLine1:    "200 Congress Ave",
		City:            "Austin",
		State:           "TX",
		ZipCode:         "78701",
		InstructorName:  "Dr. Sarah Lin",
		ProviderName:    "Lone Star Dental Institute",
		Price:           "499.00",
		RegistrationURL: "https://example.com/register",
	}
}

func TestCreateChargesListingFee(t *testing.T) {
	db := setupTestDB(t)
	checkout := &fakeCheckout{}
	svc := newTestService(db, checkout)
	user := createTestUser(t, db, "dentist@example.com", false)

	sub, session, err := svc.Create(context.Background(), user, validInput(), "")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if sub.Status != models.StatusPendingPayment {
		t.Errorf("expected status pending_payment, got %s", sub.Status)
	}
	if session == nil {
		t.Fatal("expected a checkout session for the paid path")
	}
	if len(checkout.calls) != 1 {
		t.Fatalf("expected 1 checkout call, got %d", len(checkout.calls))
	}
	if checkout.calls[0].amountCents != 500 {
		t.Errorf("expected 500 cents, got %d", checkout.calls[0].amountCents)
	}
	if checkout.calls[0].metadata["submission_id"] != sub.ID.String() {
		t.Error("checkout metadata missing submission id")
	}
}

func TestCheckoutDescriptionTruncatesOnRuneBoundary(t *testing.T) {
	db := setupTestDB(t)
	checkout := &fakeCheckout{}
	svc := newTestService(db, checkout)
	user := createTestUser(t, db, "dentist@example.com", false)

	in := validInput()
	in.Title = strings.Repeat("é", 80)

	if _, _, err := svc.Create(context.Background(), user, in, ""); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if len(checkout.calls) != 1 {
		t.Fatalf("expected 1 checkout call, got %d", len(checkout.calls))
	}

	desc := strings.TrimPrefix(checkout.calls[0].description, "Listing: ")
	if !utf8.ValidString(desc) {
		t.Error("checkout description is not valid UTF-8")
	}
	if got := utf8.RuneCountInString(desc); got != 50 {
		t.Errorf("expected description truncated to 50 characters, got %d", got)
	}
}

func TestCreateAdminBypassesFee(t *testing.T) {
	db := setupTestDB(t)
	checkout := &fakeCheckout{}
	svc := newTestService(db, checkout)
	admin := createTestUser(t, db, "admin@example.com", true)

	sub, session, err := svc.Create(context.Background(), admin, validInput(), "")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if sub.Status != models.StatusPending {
		t.Errorf("expected status pending, got %s", sub.Status)
	}
	if session != nil {
		t.Error("admin submissions must not require checkout")
	}
	if !sub.PaymentAmount.IsZero() {
		t.Errorf("expected zero payment amount, got %s", sub.PaymentAmount)
	}
	if len(checkout.calls) != 0 {
		t.Errorf("expected no checkout calls, got %d", len(checkout.calls))
	}
}

func TestCreateWithCouponSkipsPayment(t *testing.T) {
	db := setupTestDB(t)
	checkout := &fakeCheckout{}
	svc := newTestService(db, checkout)
	user := createTestUser(t, db, "dentist@example.com", false)

	max := 5
	coupon := models.CouponCode{ID: uuid.New(), Code: "FREE2026", IsActive: true, MaxUses: &max}
	if err := db.Create(&coupon).Error; err != nil {
		t.Fatalf("failed to create coupon: %v", err)
	}

	sub, session, err := svc.Create(context.Background(), user, validInput(), "FREE2026")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if sub.Status != models.StatusPending {
		t.Errorf("expected status pending, got %s", sub.Status)
	}
	if session != nil {
		t.Error("coupon submissions must not require checkout")
	}
	if sub.CouponCode == nil || *sub.CouponCode != "FREE2026" {
		t.Error("expected coupon code recorded on the submission")
	}

	var reloaded models.CouponCode
	db.First(&reloaded, "id = ?", coupon.ID)
	if reloaded.CurrentUses != 1 {
		t.Errorf("expected coupon use count 1, got %d", reloaded.CurrentUses)
	}
}

func TestCreateRejectsInvalidCoupon(t *testing.T) {
	db := setupTestDB(t)
	svc := newTestService(db, &fakeCheckout{})
	user := createTestUser(t, db, "dentist@example.com", false)

	_, _, err := svc.Create(context.Background(), user, validInput(), "NOPE")
	if !errors.Is(err, ErrInvalidCoupon) {
		t.Fatalf("expected ErrInvalidCoupon, got %v", err)
	}

	var count int64
	db.Model(&models.Submission{}).Count(&count)
	if count != 0 {
		t.Errorf("expected no submissions after invalid coupon, got %d", count)
	}
}

func TestCreateRejectsInvalidContent(t *testing.T) {
	db := setupTestDB(t)
	svc := newTestService(db, &fakeCheckout{})
	user := createTestUser(t, db, "dentist@example.com", false)

	in := validInput()
	in.ZipCode = "7870"

	_, _, err := svc.Create(context.Background(), user, in, "")
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if vErr.Field != "zip_code" {
		t.Errorf("expected zip_code failure, got %s", vErr.Field)
	}
}

func TestCreateRemovesRowWhenCheckoutFails(t *testing.T) {
	db := setupTestDB(t)
	svc := newTestService(db, &fakeCheckout{fail: true})
	user := createTestUser(t, db, "dentist@example.com", false)

	_, _, err := svc.Create(context.Background(), user, validInput(), "")
	if err == nil {
		t.Fatal("expected checkout failure to surface")
	}

	var count int64
	db.Model(&models.Submission{}).Count(&count)
	if count != 0 {
		t.Errorf("expected no orphaned submissions, got %d", count)
	}
}

func TestConfirmPaymentMovesToPending(t *testing.T) {
	db := setupTestDB(t)
	svc := newTestService(db, &fakeCheckout{})
	user := createTestUser(t, db, "dentist@example.com", false)

	sub, _, err := svc.Create(context.Background(), user, validInput(), "")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if err := svc.ConfirmPayment(context.Background(), sub.ID.String(), "pi_123"); err != nil {
		t.Fatalf("ConfirmPayment failed: %v", err)
	}

	var reloaded models.Submission
	db.First(&reloaded, "id = ?", sub.ID)
	if reloaded.Status != models.StatusPending {
		t.Errorf("expected status pending, got %s", reloaded.Status)
	}
	if reloaded.StripePaymentID == nil || *reloaded.StripePaymentID != "pi_123" {
		t.Error("expected payment reference recorded")
	}
}

func TestConfirmPaymentIsIdempotent(t *testing.T) {
	db := setupTestDB(t)
	svc := newTestService(db, &fakeCheckout{})
	user := createTestUser(t, db, "dentist@example.com", false)

	sub, _, _ := svc.Create(context.Background(), user, validInput(), "")

	if err := svc.ConfirmPayment(context.Background(), sub.ID.String(), "pi_123"); err != nil {
		t.Fatalf("first confirmation failed: %v", err)
	}
	if err := svc.ConfirmPayment(context.Background(), sub.ID.String(), "pi_456"); err != nil {
		t.Fatalf("redelivered confirmation must be a no-op, got %v", err)
	}

	var reloaded models.Submission
	db.First(&reloaded, "id = ?", sub.ID)
	if *reloaded.StripePaymentID != "pi_123" {
		t.Errorf("redelivery must not overwrite the payment reference, got %s", *reloaded.StripePaymentID)
	}
}

func TestConfirmPaymentRequiresSubmissionID(t *testing.T) {
	db := setupTestDB(t)
	svc := newTestService(db, &fakeCheckout{})

	if err := svc.ConfirmPayment(context.Background(), "", "pi_123"); !errors.Is(err, ErrMissingCorrelationID) {
		t.Fatalf("expected ErrMissingCorrelationID, got %v", err)
	}
}

func TestApprovePublishesClass(t *testing.T) {
	db := setupTestDB(t)
	svc := newTestService(db, &fakeCheckout{})
	admin := createTestUser(t, db, "admin@example.com", true)
	user := createTestUser(t, db, "dentist@example.com", false)

	sub, _, _ := svc.Create(context.Background(), user, validInput(), "")
	if err := svc.ConfirmPayment(context.Background(), sub.ID.String(), "pi_123"); err != nil {
		t.Fatalf("ConfirmPayment failed: %v", err)
	}

	cls, err := svc.Approve(context.Background(), sub.ID, admin.ID)
	if err != nil {
		t.Fatalf("Approve failed: %v", err)
	}

	if cls.Title != sub.Title || cls.City != sub.City {
		t.Error("class content must mirror the submission")
	}
	if cls.PostedBy != user.ID {
		t.Error("class must credit the submitter")
	}
	if cls.Status != models.ClassStatusApproved {
		t.Errorf("expected approved class, got %s", cls.Status)
	}

	var reloaded models.Submission
	db.First(&reloaded, "id = ?", sub.ID)
	if reloaded.Status != models.StatusApproved {
		t.Errorf("expected submission approved, got %s", reloaded.Status)
	}
	if reloaded.ReviewedBy == nil || *reloaded.ReviewedBy != admin.ID {
		t.Error("expected reviewer stamped")
	}
	if reloaded.ReviewedAt == nil {
		t.Error("expected review time stamped")
	}
}

func TestApproveTwiceCreatesOneClass(t *testing.T) {
	db := setupTestDB(t)
	svc := newTestService(db, &fakeCheckout{})
	admin := createTestUser(t, db, "admin@example.com", true)

	sub, _, _ := svc.Create(context.Background(), admin, validInput(), "")

	if _, err := svc.Approve(context.Background(), sub.ID, admin.ID); err != nil {
		t.Fatalf("first approve failed: %v", err)
	}

	_, err := svc.Approve(context.Background(), sub.ID, admin.ID)
	var reviewed *AlreadyReviewedError
	if !errors.As(err, &reviewed) {
		t.Fatalf("expected AlreadyReviewedError, got %v", err)
	}
	if reviewed.Status != models.StatusApproved {
		t.Errorf("expected reported status approved, got %s", reviewed.Status)
	}

	var count int64
	db.Model(&models.Class{}).Count(&count)
	if count != 1 {
		t.Errorf("expected exactly one class, got %d", count)
	}
}

func TestApproveRequiresPendingStatus(t *testing.T) {
	db := setupTestDB(t)
	svc := newTestService(db, &fakeCheckout{})
	admin := createTestUser(t, db, "admin@example.com", true)
	user := createTestUser(t, db, "dentist@example.com", false)

	// Still awaiting payment.
	sub, _, _ := svc.Create(context.Background(), user, validInput(), "")

	_, err := svc.Approve(context.Background(), sub.ID, admin.ID)
	var reviewed *AlreadyReviewedError
	if !errors.As(err, &reviewed) {
		t.Fatalf("expected AlreadyReviewedError, got %v", err)
	}
	if reviewed.Status != models.StatusPendingPayment {
		t.Errorf("expected reported status pending_payment, got %s", reviewed.Status)
	}
}

func TestRejectStampsReviewerAndReason(t *testing.T) {
	db := setupTestDB(t)
	svc := newTestService(db, &fakeCheckout{})
	admin := createTestUser(t, db, "admin@example.com", true)
	user := createTestUser(t, db, "dentist@example.com", false)

	sub, _, _ := svc.Create(context.Background(), user, validInput(), "")
	svc.ConfirmPayment(context.Background(), sub.ID.String(), "pi_123")

	reason := "Venue address could not be verified"
	if err := svc.Reject(context.Background(), sub.ID, admin.ID, &reason); err != nil {
		t.Fatalf("Reject failed: %v", err)
	}

	var reloaded models.Submission
	db.First(&reloaded, "id = ?", sub.ID)
	if reloaded.Status != models.StatusRejected {
		t.Errorf("expected status rejected, got %s", reloaded.Status)
	}
	if reloaded.RejectionReason == nil || *reloaded.RejectionReason != reason {
		t.Error("expected rejection reason stored")
	}
	if reloaded.ReviewedBy == nil || *reloaded.ReviewedBy != admin.ID {
		t.Error("expected reviewer stamped")
	}

	var count int64
	db.Model(&models.Class{}).Count(&count)
	if count != 0 {
		t.Errorf("rejection must not create a class, got %d", count)
	}
}

func TestRejectWithoutReason(t *testing.T) {
	db := setupTestDB(t)
	svc := newTestService(db, &fakeCheckout{})
	admin := createTestUser(t, db, "admin@example.com", true)

	sub, _, _ := svc.Create(context.Background(), admin, validInput(), "")

	if err := svc.Reject(context.Background(), sub.ID, admin.ID, nil); err != nil {
		t.Fatalf("Reject failed: %v", err)
	}

	var reloaded models.Submission
	db.First(&reloaded, "id = ?", sub.ID)
	if reloaded.RejectionReason != nil {
		t.Error("expected no rejection reason")
	}
}

func TestUpdateContentBlockedWhilePaymentOutstanding(t *testing.T) {
	db := setupTestDB(t)
	svc := newTestService(db, &fakeCheckout{})
	user := createTestUser(t, db, "dentist@example.com", false)

	sub, _, _ := svc.Create(context.Background(), user, validInput(), "")

	in := validInput()
	in.Title = "Renamed Course"
	if _, err := svc.UpdateContent(context.Background(), sub.ID, user.ID, in); !errors.Is(err, ErrEditLocked) {
		t.Fatalf("expected ErrEditLocked, got %v", err)
	}
}

func TestUpdateContentKeepsStatus(t *testing.T) {
	db := setupTestDB(t)
	svc := newTestService(db, &fakeCheckout{})
	user := createTestUser(t, db, "dentist@example.com", false)

	sub, _, _ := svc.Create(context.Background(), user, validInput(), "")
	svc.ConfirmPayment(context.Background(), sub.ID.String(), "pi_123")

	in := validInput()
	in.Title = "Renamed Course"
	updated, err := svc.UpdateContent(context.Background(), sub.ID, user.ID, in)
	if err != nil {
		t.Fatalf("UpdateContent failed: %v", err)
	}

	if updated.Title != "Renamed Course" {
		t.Errorf("expected updated title, got %s", updated.Title)
	}
	if updated.Status != models.StatusPending {
		t.Errorf("edit must not change status, got %s", updated.Status)
	}
}

func TestUpdateContentRejectsOtherUsers(t *testing.T) {
	db := setupTestDB(t)
	svc := newTestService(db, &fakeCheckout{})
	owner := createTestUser(t, db, "owner@example.com", false)
	other := createTestUser(t, db, "other@example.com", false)

	sub, _, _ := svc.Create(context.Background(), owner, validInput(), "")
	svc.ConfirmPayment(context.Background(), sub.ID.String(), "pi_123")

	if _, err := svc.UpdateContent(context.Background(), sub.ID, other.ID, validInput()); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner, got %v", err)
	}
}

func TestResubmitReentersReview(t *testing.T) {
	db := setupTestDB(t)
	checkout := &fakeCheckout{}
	svc := newTestService(db, checkout)
	admin := createTestUser(t, db, "admin@example.com", true)
	user := createTestUser(t, db, "dentist@example.com", false)

	sub, _, _ := svc.Create(context.Background(), user, validInput(), "")
	svc.ConfirmPayment(context.Background(), sub.ID.String(), "pi_123")
	reason := "description too vague"
	svc.Reject(context.Background(), sub.ID, admin.ID, &reason)

	in := validInput()
	in.Description = "Two day hands-on course covering guided implant placement, with live surgery observation."
	updated, session, err := svc.Resubmit(context.Background(), sub.ID, user, in, "")
	if err != nil {
		t.Fatalf("Resubmit failed: %v", err)
	}

	if updated.Status != models.StatusPendingPayment {
		t.Errorf("resubmission without coupon must be fee gated again, got %s", updated.Status)
	}
	if session == nil {
		t.Fatal("expected a new checkout session")
	}
	if updated.RejectionReason != nil || updated.ReviewedBy != nil || updated.ReviewedAt != nil {
		t.Error("resubmission must clear reviewer fields")
	}
	if updated.StripePaymentID != nil {
		t.Error("resubmission must clear the old payment reference")
	}
}

func TestResubmitRequiresRejectedStatus(t *testing.T) {
	db := setupTestDB(t)
	svc := newTestService(db, &fakeCheckout{})
	user := createTestUser(t, db, "dentist@example.com", false)

	sub, _, _ := svc.Create(context.Background(), user, validInput(), "")
	svc.ConfirmPayment(context.Background(), sub.ID.String(), "pi_123")

	if _, _, err := svc.Resubmit(context.Background(), sub.ID, user, validInput(), ""); !errors.Is(err, ErrNotRejected) {
		t.Fatalf("expected ErrNotRejected, got %v", err)
	}
}

func TestCancelPendingPayment(t *testing.T) {
	db := setupTestDB(t)
	svc := newTestService(db, &fakeCheckout{})
	user := createTestUser(t, db, "dentist@example.com", false)

	sub, _, _ := svc.Create(context.Background(), user, validInput(), "")

	removed, err := svc.CancelPendingPayment(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("CancelPendingPayment failed: %v", err)
	}
	if removed != 1 {
		t.Errorf("expected 1 removed, got %d", removed)
	}

	var count int64
	db.Model(&models.Submission{}).Where("id = ?", sub.ID).Count(&count)
	if count != 0 {
		t.Error("expected abandoned draft removed")
	}
}

func TestDeleteStalePendingPayment(t *testing.T) {
	db := setupTestDB(t)
	svc := newTestService(db, &fakeCheckout{})
	user := createTestUser(t, db, "dentist@example.com", false)

	stale, _, _ := svc.Create(context.Background(), user, validInput(), "")
	db.Model(&models.Submission{}).Where("id = ?", stale.ID).
		Update("created_at", time.Now().Add(-48*time.Hour))

	fresh, _, _ := svc.Create(context.Background(), user, validInput(), "")

	removed, err := svc.DeleteStalePendingPayment(context.Background(), time.Now().Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("DeleteStalePendingPayment failed: %v", err)
	}
	if removed != 1 {
		t.Errorf("expected 1 swept, got %d", removed)
	}

	var count int64
	db.Model(&models.Submission{}).Where("id = ?", fresh.ID).Count(&count)
	if count != 1 {
		t.Error("fresh draft must survive the sweep")
	}
}
