package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"cyclecount-service/internal/model"
	"cyclecount-service/pkg/database"
	"cyclecount-service/pkg/logger"
)

// ListLocations retrieves all warehouse locations
func ListLocations(c echo.Context) error {
	log := logger.FromContext(c)
	log.Info("Listing locations")

	var locations []model.Location
	result := database.GetDB().Order("name").Find(&locations)
	if result.Error != nil {
		log.Error("Failed to retrieve locations", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"error": "Failed to retrieve locations",
		})
	}

	log.Info("Locations retrieved successfully", zap.Int("count", len(locations)))
	return c.JSON(http.StatusOK, locations)
}

// GetLocation retrieves a specific location by ID
func GetLocation(c echo.Context) error {
	log := logger.FromContext(c)
	id := c.Param("id")
	log.Info("Getting location by ID", zap.String("location_id", id))

	var location model.Location
	result := database.GetDB().First(&location, id)
	if result.Error != nil {
		log.Error("Location not found",
			zap.String("location_id", id),
			zap.Error(result.Error))
		return c.JSON(http.StatusNotFound, echo.Map{
			"error": "Location not found",
		})
	}

	return c.JSON(http.StatusOK, location)
}

// ListSublocations retrieves the sublocations of one location
func ListSublocations(c echo.Context) error {
	log := logger.FromContext(c)
	id := c.Param("id")
	log.Info("Listing sublocations", zap.String("location_id", id))

	var sublocations []model.Sublocation
	result := database.GetDB().Where("location_id = ?", id).Order("name").Find(&sublocations)
	if result.Error != nil {
		log.Error("Failed to retrieve sublocations",
			zap.String("location_id", id),
			zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"error": "Failed to retrieve sublocations",
		})
	}

	log.Info("Sublocations retrieved successfully",
		zap.String("location_id", id),
		zap.Int("count", len(sublocations)))
	return c.JSON(http.StatusOK, sublocations)
}
