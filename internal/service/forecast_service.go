package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/salescast/backend-go/internal/cache"
	"github.com/andresuchdata/salescast/backend-go/internal/config"
	"github.com/andresuchdata/salescast/backend-go/internal/domain"
	"github.com/andresuchdata/salescast/backend-go/internal/ingest"
	"github.com/andresuchdata/salescast/backend-go/internal/inventory"
	"github.com/andresuchdata/salescast/backend-go/internal/pipeline"
	"github.com/andresuchdata/salescast/backend-go/internal/repository"
	"github.com/andresuchdata/salescast/backend-go/internal/storage"
)

const uploadPrefix = "uploads/"

// Upload is one sales history file submitted for forecasting.
type Upload struct {
	Filename string
	Data     []byte
}

// ForecastService validates uploads, runs the pipeline and records the outcome.
// Storage and repository are optional; their failures are logged and never
// change the report.
type ForecastService struct {
	validator    *ingest.Validator
	orchestrator *pipeline.Orchestrator
	cache        cache.ForecastCache
	store        storage.ObjectStorage
	repo         repository.RunRepository
	params       config.ForecastConfig
	now          func() time.Time
}

func NewForecastService(
	validator *ingest.Validator,
	orchestrator *pipeline.Orchestrator,
	cacheImpl cache.ForecastCache,
	store storage.ObjectStorage,
	repo repository.RunRepository,
	params config.ForecastConfig,
) *ForecastService {
	if cacheImpl == nil {
		cacheImpl = cache.NewNoopForecastCache()
	}
	return &ForecastService{
		validator:    validator,
		orchestrator: orchestrator,
		cache:        cacheImpl,
		store:        store,
		repo:         repo,
		params:       params,
		now:          time.Now,
	}
}

// Forecast archives the upload and produces its report. A *ingest.ValidationError
// is returned unwrapped when the file is rejected.
func (s *ForecastService) Forecast(ctx context.Context, upload Upload) (*domain.ForecastRun, error) {
	return s.forecast(ctx, upload, true)
}

// Replay re-runs an archived upload identified by its storage key.
func (s *ForecastService) Replay(ctx context.Context, key string) (*domain.ForecastRun, error) {
	if s.store == nil {
		return nil, errors.New("object storage is not configured")
	}
	data, err := s.store.GetObject(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("load archived upload %s: %w", key, err)
	}
	return s.forecast(ctx, Upload{Filename: key, Data: data}, false)
}

// ListUploads returns archived uploads.
func (s *ForecastService) ListUploads(ctx context.Context) ([]storage.ObjectInfo, error) {
	if s.store == nil {
		return []storage.ObjectInfo{}, nil
	}
	return s.store.ListObjects(ctx, uploadPrefix)
}

// GetRun returns a persisted run. Without a repository every ID is unknown.
func (s *ForecastService) GetRun(ctx context.Context, id string) (*domain.ForecastRun, error) {
	if s.repo == nil {
		return nil, repository.ErrRunNotFound
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, repository.ErrRunNotFound
	}
	return s.repo.GetRun(ctx, id)
}

func (s *ForecastService) ListRuns(ctx context.Context, limit int) ([]*domain.ForecastRun, error) {
	if s.repo == nil {
		return []*domain.ForecastRun{}, nil
	}
	return s.repo.ListRuns(ctx, limit)
}

// FlushCache drops every cached report, e.g. after the model code changes.
func (s *ForecastService) FlushCache(ctx context.Context) error {
	if err := s.cache.InvalidateAll(ctx); err != nil {
		return fmt.Errorf("flush forecast cache: %w", err)
	}
	return nil
}

func (s *ForecastService) forecast(ctx context.Context, upload Upload, archive bool) (*domain.ForecastRun, error) {
	id := uuid.New()
	started := s.now()
	run := &domain.ForecastRun{
		ID:          id.String(),
		Filename:    upload.Filename,
		PayloadSHA1: cache.PayloadDigest(upload.Data),
		Status:      domain.RunProcessing,
		StartedAt:   started,
	}
	logger := log.With().Str("run_id", run.ID).Str("filename", upload.Filename).Logger()

	if archive && s.store != nil {
		key := storage.UploadKey(id, upload.Filename, started)
		if err := s.store.UploadObject(ctx, key, upload.Data); err != nil {
			logger.Warn().Err(err).Str("key", key).Msg("forecast: archive upload failed")
		}
	}

	persisted := s.createRun(ctx, run)

	ds, err := s.validator.ParseFile(upload.Filename, upload.Data)
	if err != nil {
		logger.Info().Err(err).Msg("forecast: upload rejected")
		s.finish(ctx, run, persisted, err)
		return nil, err
	}

	key := s.reportKey(run.PayloadSHA1)
	report, hit, err := s.cache.GetReport(ctx, key)
	if err != nil {
		logger.Warn().Err(err).Msg("forecast: cache get report failed")
	}

	if hit {
		run.Cached = true
	} else {
		report, _, err = s.orchestrator.Run(ctx, ds)
		if err != nil {
			s.finish(ctx, run, persisted, err)
			return nil, err
		}
		if report.TimedOut() {
			logger.Warn().Msg("forecast: report has timed out products, not caching")
		} else if err := s.cache.SetReport(ctx, key, report); err != nil {
			logger.Warn().Err(err).Msg("forecast: cache set report failed")
		}
	}

	run.Report = report
	run.ProductCount = len(report)
	run.FailedCount = report.Failures()
	s.finish(ctx, run, persisted, nil)

	logger.Info().
		Int("products", run.ProductCount).
		Int("failed", run.FailedCount).
		Bool("cached", run.Cached).
		Msg("forecast: run completed")

	return run, nil
}

func (s *ForecastService) reportKey(digest string) cache.ReportKey {
	return cache.ReportKey{
		PayloadSHA1:       digest,
		MinRecords:        s.validator.MinRecords(),
		Trees:             s.params.Trees,
		Seed:              s.params.Seed,
		LeadTimeDays:      s.params.LeadTimeDays,
		SafetyStockFactor: s.params.SafetyStockFactor,
		SafetyBasis:       string(inventory.ParseSafetyBasis(s.params.SafetyBasis)),
	}
}

func (s *ForecastService) createRun(ctx context.Context, run *domain.ForecastRun) bool {
	if s.repo == nil {
		return false
	}
	if err := s.repo.CreateRun(ctx, run); err != nil {
		log.Warn().Err(err).Str("run_id", run.ID).Msg("forecast: persist run failed")
		return false
	}
	return true
}

func (s *ForecastService) finish(ctx context.Context, run *domain.ForecastRun, persisted bool, runErr error) {
	completed := s.now()
	run.CompletedAt = &completed
	run.Status = domain.RunCompleted
	if runErr != nil {
		run.Status = domain.RunFailed
		run.ErrorMessage = runErr.Error()
	}

	if !persisted {
		return
	}
	// The request may already be cancelled; the final state is still recorded.
	if err := s.repo.CompleteRun(context.WithoutCancel(ctx), run); err != nil {
		log.Warn().Err(err).Str("run_id", run.ID).Msg("forecast: complete run failed")
	}
}
