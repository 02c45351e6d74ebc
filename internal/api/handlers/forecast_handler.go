// backend-go/internal/api/handlers/forecast_handler.go
package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/salescast/backend-go/internal/api/middleware"
	"github.com/andresuchdata/salescast/backend-go/internal/domain"
	"github.com/andresuchdata/salescast/backend-go/internal/ingest"
	"github.com/andresuchdata/salescast/backend-go/internal/repository"
	"github.com/andresuchdata/salescast/backend-go/internal/service"
	"github.com/andresuchdata/salescast/backend-go/internal/storage"
)

const uploadField = "file"

type ForecastHandler struct {
	service        *service.ForecastService
	maxUploadBytes int64
}

func NewForecastHandler(forecastService *service.ForecastService, maxUploadBytes int64) *ForecastHandler {
	return &ForecastHandler{service: forecastService, maxUploadBytes: maxUploadBytes}
}

// Upload runs the forecast pipeline over the multipart "file" field and
// responds with the per-product report.
func (h *ForecastHandler) Upload(c *gin.Context) {
	if h.maxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)
	}

	fileHeader, err := c.FormFile(uploadField)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "File too large"})
			return
		}
		// A part without a filename is parsed as a plain form value.
		if _, ok := c.GetPostForm(uploadField); ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Empty filename"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file uploaded"})
		return
	}

	if strings.TrimSpace(fileHeader.Filename) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Empty filename"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Error reading file: %v", err)})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Error reading file: %v", err)})
		return
	}

	run, err := h.service.Forecast(c.Request.Context(), service.Upload{
		Filename: fileHeader.Filename,
		Data:     data,
	})
	if err != nil {
		respondForecastError(c, err)
		return
	}

	respondReport(c, run)
}

// Replay re-runs an archived upload by storage key.
func (h *ForecastHandler) Replay(c *gin.Context) {
	key := strings.TrimSpace(c.Query("key"))
	if key == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "key parameter is required"})
		return
	}

	run, err := h.service.Replay(c.Request.Context(), key)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrObjectNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "upload not found"})
		case errors.Is(err, storage.ErrInvalidKey):
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid key"})
		default:
			respondForecastError(c, err)
		}
		return
	}

	respondReport(c, run)
}

func (h *ForecastHandler) ListUploads(c *gin.Context) {
	objects, err := h.service.ListUploads(c.Request.Context())
	if err != nil {
		log.Error().Err(err).Msg("failed to list uploads")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list uploads"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": objects})
}

func (h *ForecastHandler) GetRun(c *gin.Context) {
	run, err := h.service.GetRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrRunNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
			return
		}
		log.Error().Err(err).Str("run_id", c.Param("id")).Msg("failed to fetch run")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch run"})
		return
	}

	c.JSON(http.StatusOK, run)
}

func (h *ForecastHandler) ListRuns(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit <= 0 {
		limit = 20
	}

	runs, err := h.service.ListRuns(c.Request.Context(), limit)
	if err != nil {
		log.Error().Err(err).Msg("failed to list runs")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list runs"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": runs})
}

func respondReport(c *gin.Context, run *domain.ForecastRun) {
	c.Header(middleware.RunIDHeader, run.ID)
	if run.Cached {
		c.Header("X-Forecast-Cache", "HIT")
	}
	c.JSON(http.StatusOK, run.Report)
}

func respondForecastError(c *gin.Context, err error) {
	var validationErr *ingest.ValidationError
	if errors.As(err, &validationErr) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": validationErr.Message,
			"kind":  validationErr.Kind,
		})
		return
	}

	log.Error().Err(err).Msg("forecast failed")
	c.JSON(http.StatusInternalServerError, gin.H{"error": "forecast failed"})
}
