// backend-go/internal/api/handlers/drive_handler.go
package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/salescast/backend-go/internal/drive"
	"github.com/andresuchdata/salescast/backend-go/internal/service"
)

// DriveSource is the subset of the Google Drive client the handler needs.
type DriveSource interface {
	ListFiles(ctx context.Context, folderID string) ([]*drive.File, error)
	FindFolderByPath(ctx context.Context, path string) (string, error)
	GetFile(ctx context.Context, fileID string) (*drive.File, error)
	Download(ctx context.Context, fileID string, maxBytes int64) ([]byte, error)
}

type DriveHandler struct {
	source         DriveSource
	service        *service.ForecastService
	maxUploadBytes int64
}

func NewDriveHandler(source DriveSource, forecastService *service.ForecastService, maxUploadBytes int64) *DriveHandler {
	return &DriveHandler{
		source:         source,
		service:        forecastService,
		maxUploadBytes: maxUploadBytes,
	}
}

func (h *DriveHandler) ListFiles(c *gin.Context) {
	ctx := c.Request.Context()
	folderID := c.Query("folderId")

	if folderPath := strings.TrimSpace(c.Query("path")); folderPath != "" {
		var err error
		folderID, err = h.source.FindFolderByPath(ctx, folderPath)
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, drive.ErrFolderNotFound) {
				status = http.StatusNotFound
			}
			c.JSON(status, gin.H{"error": err.Error()})
			return
		}
	}

	files, err := h.source.ListFiles(ctx, folderID)
	if err != nil {
		log.Error().Err(err).Str("folder_id", folderID).Msg("failed to list drive files")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list drive files"})
		return
	}
	if files == nil {
		files = []*drive.File{}
	}

	c.JSON(http.StatusOK, gin.H{"data": files})
}

// Forecast downloads a CSV or XLSX file from Drive and runs it like an upload.
func (h *DriveHandler) Forecast(c *gin.Context) {
	ctx := c.Request.Context()
	fileID := strings.TrimSpace(c.Query("fileId"))
	if fileID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "fileId parameter is required"})
		return
	}

	file, err := h.source.GetFile(ctx, fileID)
	if err != nil {
		log.Error().Err(err).Str("file_id", fileID).Msg("failed to get drive file")
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to get drive file"})
		return
	}
	if !file.IsSalesSheet() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Only .csv and .xlsx files are supported"})
		return
	}

	data, err := h.source.Download(ctx, fileID, h.maxUploadBytes)
	if err != nil {
		log.Error().Err(err).Str("file_id", fileID).Msg("failed to download drive file")
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to download drive file"})
		return
	}

	run, err := h.service.Forecast(ctx, service.Upload{Filename: file.Name, Data: data})
	if err != nil {
		respondForecastError(c, err)
		return
	}

	respondReport(c, run)
}
