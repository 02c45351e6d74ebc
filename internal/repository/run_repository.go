package repository

import (
	"context"
	"errors"

	"github.com/andresuchdata/salescast/backend-go/internal/domain"
)

// ErrRunNotFound is returned when no run has the requested ID.
var ErrRunNotFound = errors.New("forecast run not found")

// RunRepository stores forecast runs and their per-product outcomes.
type RunRepository interface {
	CreateRun(ctx context.Context, run *domain.ForecastRun) error
	CompleteRun(ctx context.Context, run *domain.ForecastRun) error
	GetRun(ctx context.Context, id string) (*domain.ForecastRun, error)
	ListRuns(ctx context.Context, limit int) ([]*domain.ForecastRun, error)
}
