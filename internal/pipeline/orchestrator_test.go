package pipeline

import (
	"context"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andresuchdata/salescast/backend-go/internal/config"
	"github.com/andresuchdata/salescast/backend-go/internal/domain"
	"github.com/andresuchdata/salescast/backend-go/internal/forecast"
	"github.com/andresuchdata/salescast/backend-go/internal/inventory"
)

var day0 = time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)

func appendSeries(ds *domain.Dataset, product string, n int, qty func(i int) float64, stock int) {
	for i := 0; i < n; i++ {
		ds.Records = append(ds.Records, domain.SalesRecord{
			Date:         day0.AddDate(0, 0, i),
			ProductName:  product,
			QuantitySold: qty(i),
			CurrentStock: stock,
		})
	}
}

func newTestOrchestrator(trees int) *Orchestrator {
	return NewOrchestrator(
		Config{WorkerCount: 4},
		forecast.NewFeatureBuilder(),
		forecast.NewModel(forecast.NewForest(trees, forecast.DefaultSeed)),
		inventory.NewAdvisor(inventory.DefaultConfig()),
	)
}

func TestRunWidgetScenarios(t *testing.T) {
	tests := []struct {
		name   string
		stock  int
		status domain.Status
	}{
		{name: "reorder needed", stock: 50, status: domain.ReorderNeeded},
		{name: "stock safe", stock: 100, status: domain.StockSafe},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ds := &domain.Dataset{}
			appendSeries(ds, "Widget", 50, func(int) float64 { return 10 }, tt.stock)

			report, metrics, err := newTestOrchestrator(forecast.DefaultTrees).Run(context.Background(), ds)
			require.NoError(t, err)
			require.Contains(t, report, "Widget")

			outcome := report["Widget"]
			require.True(t, outcome.OK())
			assert.Equal(t, 84, outcome.Result.ReorderPoint)
			assert.Equal(t, tt.stock, outcome.Result.CurrentStock)
			assert.Equal(t, tt.status, outcome.Result.Status)
			assert.InDelta(t, 0.0, outcome.Result.MAE, 1e-9)
			assert.Equal(t, 1, metrics.Products)
			assert.Equal(t, 1, metrics.Succeeded)
		})
	}
}

func TestRunUsesLastRecordStock(t *testing.T) {
	ds := &domain.Dataset{}
	appendSeries(ds, "Widget", 50, func(int) float64 { return 10 }, 500)
	// Move the latest record to the front; the series is re-sorted by date.
	last := ds.Records[len(ds.Records)-1]
	last.CurrentStock = 7
	ds.Records = append([]domain.SalesRecord{last}, ds.Records[:len(ds.Records)-1]...)

	report, _, err := newTestOrchestrator(10).Run(context.Background(), ds)
	require.NoError(t, err)
	assert.Equal(t, 7, report["Widget"].Result.CurrentStock)
	assert.Equal(t, domain.ReorderNeeded, report["Widget"].Result.Status)
}

func TestRunIsolatesProductFailures(t *testing.T) {
	ds := &domain.Dataset{}
	appendSeries(ds, "Widget", 50, func(int) float64 { return 10 }, 50)
	appendSeries(ds, "Gadget", 31, func(i int) float64 { return float64(i) }, 5)
	appendSeries(ds, "Gizmo", 60, func(i int) float64 { return float64(i % 7) }, 5)

	report, metrics, err := newTestOrchestrator(20).Run(context.Background(), ds)
	require.NoError(t, err)
	require.Len(t, report, 3)

	assert.True(t, report["Widget"].OK())
	assert.True(t, report["Gizmo"].OK())

	gadget := report["Gadget"]
	require.False(t, gadget.OK())
	assert.Equal(t, domain.ErrInsufficientHistory, gadget.Err.Kind)
	assert.Equal(t, "Gadget", gadget.Err.Product)

	assert.Equal(t, 3, metrics.Products)
	assert.Equal(t, 2, metrics.Succeeded)
	assert.Equal(t, 1, metrics.Failed)
	assert.Equal(t, 1, report.Failures())
}

func TestRunDeterministic(t *testing.T) {
	ds := &domain.Dataset{}
	appendSeries(ds, "A", 80, func(i int) float64 { return float64((i*13)%17) + 2 }, 40)
	appendSeries(ds, "B", 70, func(i int) float64 { return float64(i%5) * 3 }, 40)

	first, _, err := newTestOrchestrator(forecast.DefaultTrees).Run(context.Background(), ds)
	require.NoError(t, err)

	// A different worker count must not change any value.
	o := NewOrchestrator(
		Config{WorkerCount: 1},
		forecast.NewFeatureBuilder(),
		forecast.NewModel(forecast.NewForest(forecast.DefaultTrees, forecast.DefaultSeed)),
		inventory.NewAdvisor(inventory.DefaultConfig()),
	)
	second, _, err := o.Run(context.Background(), ds)
	require.NoError(t, err)

	for _, p := range []string{"A", "B"} {
		require.True(t, first[p].OK())
		assert.Equal(t, first[p].Result.MAE, second[p].Result.MAE)
		assert.Equal(t, first[p].Result.ReorderPoint, second[p].Result.ReorderPoint)
		assert.Equal(t, first[p].Result.Status, second[p].Result.Status)
	}
}

func TestRunCancelled(t *testing.T) {
	ds := &domain.Dataset{}
	appendSeries(ds, "Widget", 50, func(int) float64 { return 10 }, 50)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := newTestOrchestrator(10).Run(ctx, ds)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

// blockingTrainer never finishes before its context is done.
type blockingTrainer struct{}

func (blockingTrainer) Fit(ctx context.Context, _ [][]float64, _ []float64) (forecast.Predictor, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestRunProductTimeout(t *testing.T) {
	ds := &domain.Dataset{}
	appendSeries(ds, "Widget", 50, func(int) float64 { return 10 }, 50)

	o := NewOrchestrator(
		Config{WorkerCount: 1, ProductTimeout: 10 * time.Millisecond},
		forecast.NewFeatureBuilder(),
		forecast.NewModel(blockingTrainer{}),
		inventory.NewAdvisor(inventory.DefaultConfig()),
	)

	report, _, err := o.Run(context.Background(), ds)
	require.NoError(t, err)
	require.False(t, report["Widget"].OK())
	assert.Equal(t, domain.ErrModelTraining, report["Widget"].Err.Kind)
	assert.ErrorIs(t, report["Widget"].Err, context.DeadlineExceeded)
}

func TestRunEmptyDataset(t *testing.T) {
	report, metrics, err := newTestOrchestrator(10).Run(context.Background(), &domain.Dataset{})
	require.NoError(t, err)
	assert.Empty(t, report)
	assert.Equal(t, 0, metrics.Products)
}

func TestNewFromConfig(t *testing.T) {
	o := NewFromConfig(config.ForecastConfig{
		Trees:             20,
		Seed:              forecast.DefaultSeed,
		LeadTimeDays:      7,
		SafetyStockFactor: 0.2,
		SafetyBasis:       "daily",
		Workers:           0,
	})
	assert.Equal(t, runtime.NumCPU(), o.cfg.WorkerCount)

	ds := &domain.Dataset{}
	appendSeries(ds, "Widget", 50, func(int) float64 { return 10 }, 80)

	report, _, err := o.Run(context.Background(), ds)
	require.NoError(t, err)
	assert.Equal(t, 72, report["Widget"].Result.ReorderPoint)
	assert.Equal(t, domain.StockSafe, report["Widget"].Result.Status)
}

func TestNewFromConfigWorkers(t *testing.T) {
	o := NewFromConfig(config.ForecastConfig{Trees: 5, Seed: forecast.DefaultSeed, Workers: 3, ProductTimeout: time.Second})
	assert.Equal(t, 3, o.cfg.WorkerCount)
	assert.Equal(t, time.Second, o.cfg.ProductTimeout)
}
