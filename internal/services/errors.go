package services

import (
	"errors"
	"fmt"

	"ce-marketplace/internal/models"
)

var (
	// ErrInvalidCoupon means the supplied coupon code does not resolve to
	// an active coupon with remaining uses.
	ErrInvalidCoupon = errors.New("invalid or exhausted coupon code")

	// ErrMissingCorrelationID means a payment confirmation arrived without
	// a submission id in its metadata.
	ErrMissingCorrelationID = errors.New("payment confirmation missing submission id")

	// ErrPublishFailed means the class row was created but the submission
	// could not be marked approved; the class has been rolled back and the
	// operation can be retried.
	ErrPublishFailed = errors.New("failed to finalize approval; class publish rolled back")

	ErrSubmissionNotFound = errors.New("submission not found")
	ErrClassNotFound      = errors.New("class not found")
	ErrCouponNotFound     = errors.New("coupon not found")
	ErrUserNotFound       = errors.New("user not found")
	ErrNotOwner           = errors.New("submission belongs to another user")

	// ErrEmailTaken is returned when registering with an email that
	// already has an account.
	ErrEmailTaken = errors.New("email already registered")

	// ErrInvalidCredentials is returned on a failed login. It does not
	// reveal which part was wrong.
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrEditLocked means the submission is awaiting payment and may be
	// deleted by the cancel path at any moment, so edits are refused.
	ErrEditLocked = errors.New("submission cannot be edited while payment is outstanding")

	// ErrNotRejected means resubmission was requested for a submission
	// that is not in the rejected state.
	ErrNotRejected = errors.New("only rejected submissions can be resubmitted")
)

// AlreadyReviewedError is returned when approve or reject runs against a
// submission that has already left the pending state. It reports the
// status the loser observed.
type AlreadyReviewedError struct {
	Status models.SubmissionStatus
}

func (e *AlreadyReviewedError) Error() string {
	return fmt.Sprintf("submission has already been %s", e.Status)
}

// ValidationError describes a content field that failed validation. No
// persistent mutation happens when one is returned.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}
