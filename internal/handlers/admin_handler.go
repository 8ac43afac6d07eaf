package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"ce-marketplace/internal/auth"
	"ce-marketplace/internal/models"
	"ce-marketplace/internal/services"
)

type AdminHandler struct {
	db                *gorm.DB
	submissionService *services.SubmissionService
	classService      *services.ClassService
	couponService     *services.CouponService
}

func NewAdminHandler(db *gorm.DB, submissionService *services.SubmissionService, classService *services.ClassService, couponService *services.CouponService) *AdminHandler {
	return &AdminHandler{
		db:                db,
		submissionService: submissionService,
		classService:      classService,
		couponService:     couponService,
	}
}

// AdminMiddleware checks if user is admin
func (h *AdminHandler) AdminMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, exists := auth.GetUserID(c)
		if !exists {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			c.Abort()
			return
		}

		var user models.User
		if err := h.db.First(&user, "id = ?", userID).Error; err != nil || !user.IsAdmin {
			c.JSON(http.StatusForbidden, gin.H{"error": "Not an admin"})
			c.Abort()
			return
		}

		c.Next()
	}
}

// GetDashboard returns moderation queue counts
// GET /api/admin/dashboard
func (h *AdminHandler) GetDashboard(c *gin.Context) {
	var pendingCount int64
	var approvedCount int64
	var rejectedCount int64
	var classCount int64
	var userCount int64

	h.db.Model(&models.Submission{}).Where("status = ?", models.StatusPending).Count(&pendingCount)
	h.db.Model(&models.Submission{}).Where("status = ?", models.StatusApproved).Count(&approvedCount)
	h.db.Model(&models.Submission{}).Where("status = ?", models.StatusRejected).Count(&rejectedCount)
	h.db.Model(&models.Class{}).Where("status = ?", models.ClassStatusApproved).Count(&classCount)
	h.db.Model(&models.User{}).Count(&userCount)

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"pending_submissions":  pendingCount,
			"approved_submissions": approvedCount,
			"rejected_submissions": rejectedCount,
			"published_classes":    classCount,
			"total_users":          userCount,
		},
	})
}

// ListSubmissions returns the moderation queue
// GET /api/admin/submissions?status=pending
func (h *AdminHandler) ListSubmissions(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	// The queue shows pending submissions unless another status (or
	// "all") is asked for.
	var status *models.SubmissionStatus
	if raw := c.DefaultQuery("status", "pending"); raw != "all" {
		s := models.SubmissionStatus(raw)
		if !s.IsValid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown status"})
			return
		}
		status = &s
	}

	subs, total, err := h.submissionService.ListByStatus(c.Request.Context(), status, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list submissions"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    subs,
		"total":   total,
		"limit":   limit,
		"offset":  offset,
	})
}

// GetSubmission returns one submission with its submitter
// GET /api/admin/submissions/:id
func (h *AdminHandler) GetSubmission(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid submission id"})
		return
	}

	sub, err := h.submissionService.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, services.ErrSubmissionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load submission"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": sub})
}

// ApproveSubmission publishes a pending submission as a class
// POST /api/admin/submissions/:id/approve
func (h *AdminHandler) ApproveSubmission(c *gin.Context) {
	reviewerID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid submission id"})
		return
	}

	cls, err := h.submissionService.Approve(c.Request.Context(), id, reviewerID)
	if err != nil {
		h.writeModerationError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": cls})
}

type rejectRequest struct {
	Reason *string `json:"reason"`
}

// RejectSubmission rejects a pending submission with an optional reason
// POST /api/admin/submissions/:id/reject
func (h *AdminHandler) RejectSubmission(c *gin.Context) {
	reviewerID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid submission id"})
		return
	}

	// The reason is optional and the body may be empty.
	var req rejectRequest
	_ = c.ShouldBindJSON(&req)

	if err := h.submissionService.Reject(c.Request.Context(), id, reviewerID, req.Reason); err != nil {
		h.writeModerationError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// RemoveClass soft-deletes a published class
// DELETE /api/admin/classes/:id
func (h *AdminHandler) RemoveClass(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid class id"})
		return
	}

	if err := h.classService.Remove(c.Request.Context(), id); err != nil {
		if errors.Is(err, services.ErrClassNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to remove class"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

type createCouponRequest struct {
	Code    string `json:"code" binding:"required"`
	MaxUses *int   `json:"max_uses"`
}

// CreateCoupon creates a fee-bypass coupon code
// POST /api/admin/coupons
func (h *AdminHandler) CreateCoupon(c *gin.Context) {
	var req createCouponRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	coupon, err := h.couponService.Create(c.Request.Context(), req.Code, req.MaxUses)
	if err != nil {
		var vErr *services.ValidationError
		if errors.As(err, &vErr) {
			c.JSON(http.StatusBadRequest, gin.H{"error": vErr.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create coupon"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"success": true, "data": coupon})
}

// ListCoupons returns all coupon codes
// GET /api/admin/coupons
func (h *AdminHandler) ListCoupons(c *gin.Context) {
	coupons, err := h.couponService.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list coupons"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": coupons})
}

// DeactivateCoupon turns off a coupon code
// POST /api/admin/coupons/:id/deactivate
func (h *AdminHandler) DeactivateCoupon(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid coupon id"})
		return
	}

	if err := h.couponService.Deactivate(c.Request.Context(), id); err != nil {
		if errors.Is(err, services.ErrCouponNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to deactivate coupon"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *AdminHandler) writeModerationError(c *gin.Context, err error) {
	var reviewed *services.AlreadyReviewedError

	switch {
	case errors.As(err, &reviewed):
		c.JSON(http.StatusConflict, gin.H{"error": reviewed.Error()})
	case errors.Is(err, services.ErrSubmissionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrPublishFailed):
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
