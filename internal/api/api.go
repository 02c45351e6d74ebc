// internal/api/api.go
package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/andresuchdata/salescast/backend-go/internal/api/handlers"
	"github.com/andresuchdata/salescast/backend-go/internal/api/middleware"
	"github.com/andresuchdata/salescast/backend-go/internal/service"
)

type Services struct {
	ForecastService *service.ForecastService
	// Drive is nil when no Google credentials are configured.
	Drive          handlers.DriveSource
	MaxUploadBytes int64
}

func NewRouter(services *Services, allowedOrigins []string) *gin.Engine {
	router := gin.New()

	router.Use(middleware.Logger())
	router.Use(middleware.Recovery())
	defaultOrigins := []string{"http://localhost:3000", "http://127.0.0.1:3000"}
	corsConfig := cors.Config{
		AllowOrigins:     defaultOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", middleware.RunIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(allowedOrigins) > 0 {
		normalizedOrigins, allowAll := normalizeAllowedOrigins(allowedOrigins)
		if allowAll {
			corsConfig.AllowOrigins = nil
			corsConfig.AllowOriginFunc = func(origin string) bool { return true }
		} else if len(normalizedOrigins) > 0 {
			corsConfig.AllowOrigins = normalizedOrigins
		}
	}
	router.Use(cors.New(corsConfig))

	router.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, "Sales forecast API is running")
	})
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	if services == nil || services.ForecastService == nil {
		return router
	}

	if services.MaxUploadBytes > 0 {
		router.MaxMultipartMemory = services.MaxUploadBytes
	}

	forecastHandler := handlers.NewForecastHandler(services.ForecastService, services.MaxUploadBytes)
	router.POST("/upload", forecastHandler.Upload)

	apiGroup := router.Group("/api/v1")
	{
		apiGroup.POST("/upload", forecastHandler.Upload)
		apiGroup.GET("/runs", forecastHandler.ListRuns)
		apiGroup.GET("/runs/:id", forecastHandler.GetRun)
		apiGroup.GET("/uploads", forecastHandler.ListUploads)
		apiGroup.POST("/uploads/replay", forecastHandler.Replay)
	}

	if services.Drive != nil {
		driveHandler := handlers.NewDriveHandler(services.Drive, services.ForecastService, services.MaxUploadBytes)
		driveGroup := apiGroup.Group("/drive")
		{
			driveGroup.GET("/files", driveHandler.ListFiles)
			driveGroup.POST("/forecast", driveHandler.Forecast)
		}
	}

	return router
}

func normalizeAllowedOrigins(origins []string) ([]string, bool) {
	var (
		parsed   []string
		allowAll bool
	)
	for _, origin := range origins {
		parts := strings.Split(origin, ",")
		for _, part := range parts {
			trimmed := strings.TrimSpace(part)
			if trimmed == "" {
				continue
			}
			if trimmed == "*" {
				allowAll = true
				continue
			}
			parsed = append(parsed, trimmed)
		}
	}
	return parsed, allowAll
}
