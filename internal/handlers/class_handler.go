package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"ce-marketplace/internal/services"
)

type ClassHandler struct {
	classService *services.ClassService
}

func NewClassHandler(classService *services.ClassService) *ClassHandler {
	return &ClassHandler{classService: classService}
}

// ListClasses returns approved classes, filtered and paginated
// GET /api/classes
func (h *ClassHandler) ListClasses(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	filter := services.ClassFilter{
		Category: c.Query("category"),
		State:    c.Query("state"),
		Search:   c.Query("search"),
		SortBy:   c.DefaultQuery("sort", "date"),
		Limit:    limit,
		Offset:   offset,
	}

	classes, total, err := h.classService.List(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list classes"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    classes,
		"total":   total,
		"limit":   limit,
		"offset":  offset,
	})
}

// GetClass returns a single approved class
// GET /api/classes/:id
func (h *ClassHandler) GetClass(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid class id"})
		return
	}

	cls, err := h.classService.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, services.ErrClassNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load class"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": cls})
}

// GetCategories returns the known class categories
// GET /api/classes/categories
func (h *ClassHandler) GetCategories(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"success": true, "data": h.classService.Categories()})
}
