package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"ce-marketplace/internal/auth"
	"ce-marketplace/internal/services"
)

type SubmissionHandler struct {
	submissionService *services.SubmissionService
	authService       *services.AuthService
}

func NewSubmissionHandler(submissionService *services.SubmissionService, authService *services.AuthService) *SubmissionHandler {
	return &SubmissionHandler{
		submissionService: submissionService,
		authService:       authService,
	}
}

type createSubmissionRequest struct {
	services.SubmissionInput
	CouponCode string `json:"coupon_code"`
}

// CreateSubmission validates the class content and creates a submission,
// returning a checkout URL when a listing fee is due
// POST /api/submissions
func (h *SubmissionHandler) CreateSubmission(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req createSubmissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.authService.GetUser(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	sub, session, err := h.submissionService.Create(c.Request.Context(), *user, req.SubmissionInput, req.CouponCode)
	if err != nil {
		h.writeSubmissionError(c, err)
		return
	}

	data := gin.H{"submission": sub}
	if session != nil {
		data["checkout_url"] = session.URL
		data["checkout_session_id"] = session.ID
	}

	c.JSON(http.StatusCreated, gin.H{"success": true, "data": data})
}

// ListMySubmissions returns the caller's submissions
// GET /api/submissions
func (h *SubmissionHandler) ListMySubmissions(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	subs, err := h.submissionService.ListByOwner(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list submissions"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": subs})
}

// GetMySubmission returns one of the caller's submissions
// GET /api/submissions/:id
func (h *SubmissionHandler) GetMySubmission(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid submission id"})
		return
	}

	sub, err := h.submissionService.GetForOwner(c.Request.Context(), id, userID)
	if err != nil {
		h.writeSubmissionError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": sub})
}

// UpdateSubmission edits the class content of one of the caller's
// submissions without changing its moderation status
// PUT /api/submissions/:id
func (h *SubmissionHandler) UpdateSubmission(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid submission id"})
		return
	}

	var in services.SubmissionInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sub, err := h.submissionService.UpdateContent(c.Request.Context(), id, userID, in)
	if err != nil {
		h.writeSubmissionError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": sub})
}

// ResubmitSubmission re-enters a rejected submission into review
// POST /api/submissions/:id/resubmit
func (h *SubmissionHandler) ResubmitSubmission(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid submission id"})
		return
	}

	var req createSubmissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.authService.GetUser(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	sub, session, err := h.submissionService.Resubmit(c.Request.Context(), id, *user, req.SubmissionInput, req.CouponCode)
	if err != nil {
		h.writeSubmissionError(c, err)
		return
	}

	data := gin.H{"submission": sub}
	if session != nil {
		data["checkout_url"] = session.URL
		data["checkout_session_id"] = session.ID
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": data})
}

// CancelPendingPayment removes the caller's submissions still awaiting
// payment, for the checkout cancel return path
// POST /api/submissions/cancel-pending
func (h *SubmissionHandler) CancelPendingPayment(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	removed, err := h.submissionService.CancelPendingPayment(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to cancel pending submissions"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": gin.H{"removed": removed}})
}

func (h *SubmissionHandler) writeSubmissionError(c *gin.Context, err error) {
	var vErr *services.ValidationError
	var reviewed *services.AlreadyReviewedError

	switch {
	case errors.As(err, &vErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": vErr.Error(), "field": vErr.Field})
	case errors.As(err, &reviewed):
		c.JSON(http.StatusConflict, gin.H{"error": reviewed.Error()})
	case errors.Is(err, services.ErrInvalidCoupon):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrSubmissionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrNotOwner):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrEditLocked), errors.Is(err, services.ErrNotRejected):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
