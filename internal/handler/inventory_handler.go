package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"cyclecount-service/internal/model"
	"cyclecount-service/pkg/database"
	"cyclecount-service/pkg/logger"
)

// ListInventoryLevels handles retrieving inventory levels with optional filtering
func ListInventoryLevels(c echo.Context) error {
	log := logger.FromContext(c)
	log.Info("Listing inventory levels")

	query := database.GetDB().Preload("Product")

	if productID := c.QueryParam("product_id"); productID != "" {
		query = query.Where("product_id = ?", productID)
		log.Info("Filtering levels by product", zap.String("product_id", productID))
	}
	if locationID := c.QueryParam("location_id"); locationID != "" {
		query = query.Where("location_id = ?", locationID)
		log.Info("Filtering levels by location", zap.String("location_id", locationID))
	}

	var levels []model.InventoryLevel
	result := query.Find(&levels)
	if result.Error != nil {
		log.Error("Failed to list inventory levels", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"error": "Failed to retrieve inventory levels",
		})
	}

	log.Info("Inventory levels retrieved successfully", zap.Int("count", len(levels)))
	return c.JSON(http.StatusOK, levels)
}

// ListInventoryAdjustments handles retrieving the adjustment audit trail
func ListInventoryAdjustments(c echo.Context) error {
	log := logger.FromContext(c)
	log.Info("Listing inventory adjustments")

	query := database.GetDB().Order("created_at DESC")

	if countID := c.QueryParam("cycle_count_id"); countID != "" {
		query = query.Where("cycle_count_id = ?", countID)
		log.Info("Filtering adjustments by cycle count", zap.String("cycle_count_id", countID))
	}
	if productID := c.QueryParam("product_id"); productID != "" {
		query = query.Where("product_id = ?", productID)
		log.Info("Filtering adjustments by product", zap.String("product_id", productID))
	}

	var adjustments []model.InventoryAdjustment
	result := query.Find(&adjustments)
	if result.Error != nil {
		log.Error("Failed to list inventory adjustments", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"error": "Failed to retrieve inventory adjustments",
		})
	}

	log.Info("Inventory adjustments retrieved successfully", zap.Int("count", len(adjustments)))
	return c.JSON(http.StatusOK, adjustments)
}
