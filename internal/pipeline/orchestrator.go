package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/andresuchdata/salescast/backend-go/internal/config"
	"github.com/andresuchdata/salescast/backend-go/internal/domain"
	"github.com/andresuchdata/salescast/backend-go/internal/forecast"
	"github.com/andresuchdata/salescast/backend-go/internal/inventory"
)

// Orchestrator runs the per-product forecast and reorder pipeline over a dataset.
type Orchestrator struct {
	cfg     Config
	builder *forecast.FeatureBuilder
	model   *forecast.Model
	advisor *inventory.Advisor
}

// NewOrchestrator creates a new Orchestrator.
func NewOrchestrator(cfg Config, builder *forecast.FeatureBuilder, model *forecast.Model, advisor *inventory.Advisor) *Orchestrator {
	if cfg.WorkerCount < 1 {
		cfg.WorkerCount = 1
	}
	return &Orchestrator{
		cfg:     cfg,
		builder: builder,
		model:   model,
		advisor: advisor,
	}
}

// Run processes every distinct product concurrently. A product failure is
// recorded in its report entry; only cancellation of ctx aborts the run.
func (o *Orchestrator) Run(ctx context.Context, ds *domain.Dataset) (domain.Report, RunMetrics, error) {
	start := time.Now()
	products := ds.Products()
	outcomes := make([]domain.ProductOutcome, len(products))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.WorkerCount)

	for i, product := range products {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			series := ds.Series(product)
			outcomes[i] = o.processProduct(gctx, series)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, RunMetrics{}, fmt.Errorf("forecast run aborted: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, RunMetrics{}, fmt.Errorf("forecast run aborted: %w", err)
	}

	report := make(domain.Report, len(products))
	metrics := RunMetrics{Products: len(products)}
	for i, product := range products {
		report[product] = outcomes[i]
		if outcomes[i].OK() {
			metrics.Succeeded++
		} else {
			metrics.Failed++
		}
	}
	metrics.Duration = time.Since(start)

	log.Info().
		Int("products", metrics.Products).
		Int("succeeded", metrics.Succeeded).
		Int("failed", metrics.Failed).
		Dur("duration", metrics.Duration).
		Msg("forecast run completed")

	return report, metrics, nil
}

// processProduct runs FeatureBuilder, then the model and the advisor on the same rows.
func (o *Orchestrator) processProduct(ctx context.Context, series domain.ProductSeries) domain.ProductOutcome {
	product := series.Product()
	startTime := time.Now()

	if o.cfg.ProductTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.ProductTimeout)
		defer cancel()
	}

	rows, err := o.builder.Build(series)
	if err != nil {
		return failure(product, err)
	}

	eval, err := o.model.Evaluate(ctx, product, rows)
	if err != nil {
		return failure(product, err)
	}

	last, _ := series.Last()
	decision, err := o.advisor.Advise(rows, last.CurrentStock)
	if err != nil {
		return failure(product, err)
	}

	log.Debug().
		Str("product", product).
		Int("rows", len(rows)).
		Int("train", eval.TrainSize).
		Int("test", eval.TestSize).
		Float64("mae", eval.MAE).
		Float64("reorder_point", decision.ReorderPointRaw).
		Str("status", decision.Status.String()).
		Dur("latency", time.Since(startTime)).
		Msg("product processed")

	return domain.Succeeded(domain.ForecastResult{
		MAE:          eval.MAE,
		ReorderPoint: decision.ReorderPoint,
		CurrentStock: decision.CurrentStock,
		Status:       decision.Status,
	})
}

func failure(product string, err error) domain.ProductOutcome {
	var pe *domain.ProductError
	if !errors.As(err, &pe) {
		pe = domain.NewProductError(domain.ErrModelTraining, product, err.Error(), err)
	}
	log.Warn().
		Str("product", product).
		Str("kind", string(pe.Kind)).
		Msg(pe.Message)
	return domain.Failed(pe)
}

// NewFromConfig wires the forest trainer, feature builder and advisor from config.
func NewFromConfig(cfg config.ForecastConfig) *Orchestrator {
	pc := DefaultConfig()
	if cfg.Workers > 0 {
		pc.WorkerCount = cfg.Workers
	}
	pc.ProductTimeout = cfg.ProductTimeout

	return NewOrchestrator(
		pc,
		forecast.NewFeatureBuilder(),
		forecast.NewModel(forecast.NewForest(cfg.Trees, cfg.Seed)),
		inventory.NewAdvisor(inventory.Config{
			LeadTimeDays:      cfg.LeadTimeDays,
			SafetyStockFactor: cfg.SafetyStockFactor,
			SafetyBasis:       inventory.ParseSafetyBasis(cfg.SafetyBasis),
		}),
	)
}
