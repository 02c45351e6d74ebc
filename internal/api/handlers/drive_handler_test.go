package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andresuchdata/salescast/backend-go/internal/drive"
)

type fakeDrive struct {
	folders map[string]string
	files   map[string]*drive.File
	content map[string][]byte
}

func (f *fakeDrive) ListFiles(ctx context.Context, folderID string) ([]*drive.File, error) {
	var out []*drive.File
	for _, file := range f.files {
		out = append(out, file)
	}
	return out, nil
}

func (f *fakeDrive) FindFolderByPath(ctx context.Context, path string) (string, error) {
	id, ok := f.folders[path]
	if !ok {
		return "", fmt.Errorf("%w: %s", drive.ErrFolderNotFound, path)
	}
	return id, nil
}

func (f *fakeDrive) GetFile(ctx context.Context, fileID string) (*drive.File, error) {
	file, ok := f.files[fileID]
	if !ok {
		return nil, errors.New("404")
	}
	return file, nil
}

func (f *fakeDrive) Download(ctx context.Context, fileID string, maxBytes int64) ([]byte, error) {
	return f.content[fileID], nil
}

func newDriveRouter(t *testing.T) *gin.Engine {
	gin.SetMode(gin.TestMode)
	source := &fakeDrive{
		folders: map[string]string{"sales/2024": "folder-1"},
		files: map[string]*drive.File{
			"f1": {ID: "f1", Name: "widget.csv", MimeType: "text/csv"},
			"f2": {ID: "f2", Name: "notes.txt", MimeType: "text/plain"},
		},
		content: map[string][]byte{"f1": widgetCSV(50, 100)},
	}
	h := NewDriveHandler(source, newForecastService(t), 1<<20)

	router := gin.New()
	router.GET("/drive/files", h.ListFiles)
	router.POST("/drive/forecast", h.Forecast)
	return router
}

func TestDriveListFiles(t *testing.T) {
	router := newDriveRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/drive/files?path=sales/2024", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "widget.csv")

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/drive/files?path=missing", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDriveForecast(t *testing.T) {
	router := newDriveRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/drive/forecast?fileId=f1", nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"Status":"Stock Safe"`)
	assert.NotEmpty(t, w.Header().Get("X-Run-ID"))
}

func TestDriveForecastRejectsUnsupportedFile(t *testing.T) {
	router := newDriveRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/drive/forecast?fileId=f2", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/drive/forecast", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/drive/forecast?fileId=nope", nil))
	assert.Equal(t, http.StatusBadGateway, w.Code)
}
