package handlers

import (
	"net/http"
	"strings"

	"github.com/andresuchdata/shelfwise/internal/api/middleware"
	"github.com/andresuchdata/shelfwise/internal/service"
	"github.com/gin-gonic/gin"
)

type PredictionHandler struct {
	service *service.PredictionService
}

func NewPredictionHandler(service *service.PredictionService) *PredictionHandler {
	return &PredictionHandler{service: service}
}

type productIDsRequest struct {
	ProductIDs []string `json:"product_ids"`
}

type saleRequest struct {
	QuantitySold int `json:"quantity_sold"`
}

func (r productIDsRequest) cleaned() []string {
	out := make([]string, 0, len(r.ProductIDs))
	seen := make(map[string]struct{}, len(r.ProductIDs))
	for _, id := range r.ProductIDs {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// GetPredictiveAnalytics returns one product prediction with its sales history
func (h *PredictionHandler) GetPredictiveAnalytics(c *gin.Context) {
	data, err := h.service.GetPredictiveAnalytics(c.Request.Context(), middleware.StoreID(c), c.Param("productId"))
	if err != nil {
		errorResponse(c, "failed to fetch prediction", err)
		return
	}
	c.JSON(http.StatusOK, data)
}

// Recompute runs the full pipeline for one product
func (h *PredictionHandler) Recompute(c *gin.Context) {
	pred, err := h.service.SavePredictionToDatabase(c.Request.Context(), middleware.StoreID(c), c.Param("productId"))
	if err != nil {
		errorResponse(c, "failed to recompute prediction", err)
		return
	}
	c.JSON(http.StatusOK, pred)
}

// RecordSale refreshes a prediction after a sale was written to the ledger
func (h *PredictionHandler) RecordSale(c *gin.Context) {
	var req saleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "body", err.Error())
		return
	}

	pred, err := h.service.UpdatePredictionAfterSale(c.Request.Context(), middleware.StoreID(c), c.Param("productId"), service.SaleUpdate{
		QuantitySold: req.QuantitySold,
	})
	if err != nil {
		errorResponse(c, "failed to update prediction", err)
		return
	}
	c.JSON(http.StatusOK, pred)
}

func (h *PredictionHandler) DeletePrediction(c *gin.Context) {
	if err := h.service.DeletePrediction(c.Request.Context(), middleware.StoreID(c), c.Param("productId")); err != nil {
		errorResponse(c, "failed to delete prediction", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *PredictionHandler) GetAllPredictions(c *gin.Context) {
	preds, err := h.service.GetAllPredictions(c.Request.Context(), middleware.StoreID(c))
	if err != nil {
		errorResponse(c, "failed to fetch predictions", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"predictions": preds, "total": len(preds)})
}

// GetBatchPredictions reads stored predictions for a set of products
func (h *PredictionHandler) GetBatchPredictions(c *gin.Context) {
	var req productIDsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "body", err.Error())
		return
	}

	preds, err := h.service.GetBatchPredictions(c.Request.Context(), middleware.StoreID(c), req.cleaned())
	if err != nil {
		errorResponse(c, "failed to fetch predictions", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"predictions": preds, "total": len(preds)})
}

// BatchRecompute recomputes a set of products; failures are skipped
func (h *PredictionHandler) BatchRecompute(c *gin.Context) {
	var req productIDsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "body", err.Error())
		return
	}
	ids := req.cleaned()
	if len(ids) == 0 {
		badRequest(c, "product_ids", "at least one product id is required")
		return
	}

	preds := h.service.BatchUpdatePredictions(c.Request.Context(), middleware.StoreID(c), ids)
	c.JSON(http.StatusOK, gin.H{
		"predictions": preds,
		"succeeded":   len(preds),
		"failed":      len(ids) - len(preds),
	})
}

func (h *PredictionHandler) InitializeAll(c *gin.Context) {
	res, err := h.service.InitializeAllPredictions(c.Request.Context(), middleware.StoreID(c))
	if err != nil {
		errorResponse(c, "failed to initialize predictions", err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *PredictionHandler) GetQuickInsights(c *gin.Context) {
	data, err := h.service.GetQuickInsights(c.Request.Context(), middleware.StoreID(c))
	if err != nil {
		errorResponse(c, "failed to fetch quick insights", err)
		return
	}
	c.JSON(http.StatusOK, data)
}

func (h *PredictionHandler) GetCategoryInsights(c *gin.Context) {
	data, err := h.service.GetCategoryInsights(c.Request.Context(), middleware.StoreID(c), c.Param("category"))
	if err != nil {
		errorResponse(c, "failed to fetch category insights", err)
		return
	}
	c.JSON(http.StatusOK, data)
}

func (h *PredictionHandler) GetDashboard(c *gin.Context) {
	data, err := h.service.GetDashboard(c.Request.Context(), middleware.StoreID(c))
	if err != nil {
		errorResponse(c, "failed to fetch dashboard", err)
		return
	}
	c.JSON(http.StatusOK, data)
}

func (h *PredictionHandler) FlushCache(c *gin.Context) {
	if err := h.service.FlushCache(c.Request.Context(), middleware.StoreID(c)); err != nil {
		errorResponse(c, "failed to flush cache", err)
		return
	}
	c.Status(http.StatusNoContent)
}
