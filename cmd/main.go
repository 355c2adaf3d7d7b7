package main

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"cyclecount-service/internal/cyclecount"
	"cyclecount-service/internal/cyclecount/repository"
	"cyclecount-service/internal/handler"
	"cyclecount-service/internal/inventory"
	mid "cyclecount-service/internal/middleware"
	"cyclecount-service/pkg/config"
	"cyclecount-service/pkg/database"
	"cyclecount-service/pkg/jwtutil"
	"cyclecount-service/pkg/logger"
	"cyclecount-service/prometheus"
)

func main() {
	// Load configuration
	appConfig, err := config.Load()
	if err != nil {
		// Can't use structured logger yet since it's not initialized
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	if err := logger.InitLogger(appConfig); err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	log := logger.GetLogger()
	defer log.Sync()

	log.Info("Starting cyclecount-service",
		zap.String("environment", appConfig.Server.Env),
		zap.String("port", appConfig.Server.Port))

	// Initialize JWT utility
	jwtutil.Initialize(&appConfig.JWT)
	log.Info("JWT utility initialized")

	// Initialize Prometheus metrics
	prometheus.InitMetrics(appConfig)
	log.Info("Prometheus metrics initialized",
		zap.String("metrics_prefix", appConfig.Metrics.Prefix))

	// Initialize database
	if err := database.InitDB(appConfig); err != nil {
		log.Fatal("Failed to initialize database", zap.Error(err))
	}
	log.Info("Database connection established")

	// Wire the cycle count lifecycle service
	db := database.GetDB()
	countRepo := repository.NewCountRepository(db)
	inventoryStore := inventory.NewStore(db)
	countService := cyclecount.NewService(countRepo, inventoryStore, log)
	countHandler := handler.NewCycleCountHandler(countService)

	// Initialize Echo instance
	e := echo.New()

	// Middleware
	e.Use(middleware.Recover())
	e.Use(mid.RequestIDMiddleware)
	e.Use(mid.MetricsMiddleware)

	// Routes
	// Metrics endpoint
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Health check endpoint
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	// Cycle count API routes - Apply auth middleware to identify the acting user
	countAPI := e.Group("/api/cycle-counts", mid.AuthMiddleware)
	countAPI.POST("", countHandler.Schedule)
	countAPI.GET("", countHandler.List)
	countAPI.GET("/:id", countHandler.Get)
	countAPI.POST("/:id/start", countHandler.Start)
	countAPI.POST("/:id/complete", countHandler.Complete)
	countAPI.POST("/:id/reject", countHandler.Reject)
	countAPI.POST("/:id/cancel", countHandler.Cancel)
	countAPI.POST("/:id/approve", countHandler.Approve)
	countAPI.GET("/:id/lookup", countHandler.Lookup)
	countAPI.PUT("/items/:id", countHandler.RecordItem)

	// Product catalog API routes
	productAPI := e.Group("/api/products", mid.AuthMiddleware)
	productAPI.GET("", handler.ListProducts)
	productAPI.GET("/:id", handler.GetProduct)
	productAPI.POST("", handler.CreateProduct)
	productAPI.PUT("/:id", handler.UpdateProduct)
	productAPI.DELETE("/:id", handler.DeleteProduct)

	// Location directory API routes
	locationAPI := e.Group("/api/locations", mid.AuthMiddleware)
	locationAPI.GET("", handler.ListLocations)
	locationAPI.GET("/:id", handler.GetLocation)
	locationAPI.GET("/:id/sublocations", handler.ListSublocations)

	// Inventory API routes
	inventoryAPI := e.Group("/api/inventory", mid.AuthMiddleware)
	inventoryAPI.GET("", handler.ListInventoryLevels)
	inventoryAPI.GET("/adjustments", handler.ListInventoryAdjustments)

	// Start server
	port := appConfig.Server.Port
	log.Info("Starting server", zap.String("port", port))
	if err := e.Start(":" + port); err != nil {
		log.Fatal("Server error", zap.Error(err))
	}
}
