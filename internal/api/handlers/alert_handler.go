package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/andresuchdata/shelfwise/internal/api/middleware"
	"github.com/andresuchdata/shelfwise/internal/domain"
	"github.com/andresuchdata/shelfwise/internal/service"
	"github.com/gin-gonic/gin"
)

type AlertHandler struct {
	service *service.AlertService
}

func NewAlertHandler(service *service.AlertService) *AlertHandler {
	return &AlertHandler{service: service}
}

func (h *AlertHandler) parseQuery(c *gin.Context) (domain.AlertQuery, bool) {
	q := domain.AlertQuery{
		Category: strings.TrimSpace(c.Query("category")),
		SortBy:   domain.ParseSortMode(c.DefaultQuery("sort_by", c.Query("sortBy"))),
	}

	if raw := strings.TrimSpace(c.Query("level")); raw != "" && !strings.EqualFold(raw, "all") {
		level, ok := domain.ParseAlertLevel(raw)
		if !ok {
			badRequest(c, "level", "unknown alert level "+strconv.Quote(raw))
			return q, false
		}
		q.Level = level
	}
	return q, true
}

// GetAlerts scans the inventory of the store
func (h *AlertHandler) GetAlerts(c *gin.Context) {
	q, ok := h.parseQuery(c)
	if !ok {
		return
	}

	report, err := h.service.GetAlerts(c.Request.Context(), middleware.StoreID(c), q)
	if err != nil {
		errorResponse(c, "failed to fetch alerts", err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *AlertHandler) GetSettings(c *gin.Context) {
	settings, err := h.service.GetSettings(c.Request.Context(), middleware.StoreID(c))
	if err != nil {
		errorResponse(c, "failed to fetch alert settings", err)
		return
	}
	c.JSON(http.StatusOK, settings)
}

func (h *AlertHandler) UpdateSettings(c *gin.Context) {
	var req domain.Thresholds
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "body", err.Error())
		return
	}

	settings, err := h.service.UpdateSettings(c.Request.Context(), middleware.StoreID(c), req)
	if err != nil {
		errorResponse(c, "failed to update alert settings", err)
		return
	}
	c.JSON(http.StatusOK, settings)
}

// overrideBody decodes a threshold override; a JSON null clears it
func overrideBody(c *gin.Context) (*domain.ThresholdOverride, bool) {
	var req *domain.ThresholdOverride
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "body", err.Error())
		return nil, false
	}
	return req, true
}

func (h *AlertHandler) UpdateCategoryThresholds(c *gin.Context) {
	override, ok := overrideBody(c)
	if !ok {
		return
	}

	category := c.Param("category")
	if err := h.service.UpdateCategoryThresholds(c.Request.Context(), middleware.StoreID(c), category, override); err != nil {
		errorResponse(c, "failed to update category thresholds", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"category": category, "custom_alert_thresholds": override})
}

func (h *AlertHandler) UpdateProductThresholds(c *gin.Context) {
	override, ok := overrideBody(c)
	if !ok {
		return
	}

	productID := c.Param("productId")
	if err := h.service.UpdateProductThresholds(c.Request.Context(), middleware.StoreID(c), productID, override); err != nil {
		errorResponse(c, "failed to update product thresholds", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"product_id": productID, "custom_alert_thresholds": override})
}

func (h *AlertHandler) ListNotifications(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "0"))
	if err != nil || limit < 0 {
		badRequest(c, "limit", "must be a positive integer")
		return
	}

	notes, err := h.service.ListNotifications(c.Request.Context(), middleware.StoreID(c), limit)
	if err != nil {
		errorResponse(c, "failed to fetch notifications", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": notes, "total": len(notes)})
}
