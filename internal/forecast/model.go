package forecast

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/andresuchdata/salescast/backend-go/internal/domain"
)

// Predictor is a fitted regressor.
type Predictor interface {
	Predict(x []float64) float64
}

// Trainer fits a regressor on a feature matrix.
type Trainer interface {
	Fit(ctx context.Context, x [][]float64, y []float64) (Predictor, error)
}

// Evaluation is the holdout accuracy of one fit.
type Evaluation struct {
	MAE       float64
	TrainSize int
	TestSize  int
}

// Model fits a trainer on the chronological training prefix and scores the
// trailing holdout.
type Model struct {
	trainer Trainer
}

func NewModel(trainer Trainer) *Model {
	return &Model{trainer: trainer}
}

// Evaluate validates rows, splits them in time order, fits and returns the MAE.
func (m *Model) Evaluate(ctx context.Context, product string, rows []FeatureRow) (Evaluation, error) {
	if len(rows) < MinFeatureRows {
		return Evaluation{}, domain.NewProductError(domain.ErrInsufficientHistory, product,
			fmt.Sprintf("%d feature rows, need at least %d", len(rows), MinFeatureRows), nil)
	}
	if err := checkFinite(product, rows); err != nil {
		return Evaluation{}, err
	}

	split := SplitChronological(rows)
	x, y := matrix(split.Train)

	predictor, err := m.fit(ctx, x, y)
	if err != nil {
		return Evaluation{}, domain.NewProductError(domain.ErrModelTraining, product, err.Error(), err)
	}

	preds := make([]float64, len(split.Test))
	actual := make([]float64, len(split.Test))
	for i, r := range split.Test {
		preds[i] = predictor.Predict(r.Vector())
		actual[i] = r.Target
	}

	return Evaluation{
		MAE:       floats.Distance(preds, actual, 1) / float64(len(actual)),
		TrainSize: len(split.Train),
		TestSize:  len(split.Test),
	}, nil
}

// fit turns a panic inside the trainer into an error.
func (m *Model) fit(ctx context.Context, x [][]float64, y []float64) (p Predictor, err error) {
	defer func() {
		if r := recover(); r != nil {
			p = nil
			err = fmt.Errorf("trainer panicked: %v", r)
		}
	}()
	return m.trainer.Fit(ctx, x, y)
}

func checkFinite(product string, rows []FeatureRow) error {
	names := [...]string{"lag_1", "lag_2", "lag_3", "lag_7", "lag_14", "lag_30", "day_of_week", "month", "time_index"}
	for _, r := range rows {
		for j, v := range r.Vector() {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return domain.NewProductError(domain.ErrFeatureComputation, product,
					fmt.Sprintf("%s is not finite at position %d", names[j], r.Position), nil)
			}
		}
		if math.IsNaN(r.Target) || math.IsInf(r.Target, 0) {
			return domain.NewProductError(domain.ErrFeatureComputation, product,
				fmt.Sprintf("target is not finite at position %d", r.Position), nil)
		}
	}
	return nil
}

func matrix(rows []FeatureRow) ([][]float64, []float64) {
	x := make([][]float64, len(rows))
	y := make([]float64, len(rows))
	for i, r := range rows {
		x[i] = r.Vector()
		y[i] = r.Target
	}
	return x, y
}
