package forecast

import (
	"context"
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/stat"
)

const (
	DefaultTrees = 200
	DefaultSeed  = int64(42)
)

// Forest trains bagged regression trees. Every tree's RNG seed is drawn in
// order from a master source seeded with Seed, so fits are reproducible.
type Forest struct {
	Trees           int
	Seed            int64
	MinSamplesSplit int
}

func NewForest(trees int, seed int64) *Forest {
	if trees <= 0 {
		trees = DefaultTrees
	}
	return &Forest{Trees: trees, Seed: seed, MinSamplesSplit: 2}
}

// ForestModel is a fitted ensemble. It is owned by a single evaluation.
type ForestModel struct {
	trees []*RegressionTree
}

func (m *ForestModel) Predict(x []float64) float64 {
	preds := make([]float64, len(m.trees))
	for i, t := range m.trees {
		preds[i] = t.Predict(x)
	}
	return stat.Mean(preds, nil)
}

func (m *ForestModel) Size() int {
	return len(m.trees)
}

// Fit grows Trees bootstrap trees. It checks ctx between trees.
func (f *Forest) Fit(ctx context.Context, x [][]float64, y []float64) (Predictor, error) {
	if len(x) == 0 {
		return nil, fmt.Errorf("empty training set")
	}
	if len(x) != len(y) {
		return nil, fmt.Errorf("feature rows (%d) and targets (%d) differ in length", len(x), len(y))
	}
	width := len(x[0])
	for i, row := range x {
		if len(row) != width {
			return nil, fmt.Errorf("row %d has %d features, expected %d", i, len(row), width)
		}
	}

	minSplit := f.MinSamplesSplit
	if minSplit < 2 {
		minSplit = 2
	}

	master := rand.New(rand.NewSource(f.Seed))
	n := len(x)
	model := &ForestModel{trees: make([]*RegressionTree, 0, f.Trees)}

	for t := 0; t < f.Trees; t++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("fit interrupted after %d trees: %w", t, err)
		}

		rng := rand.New(rand.NewSource(master.Int63()))
		sample := make([]int, n)
		for i := range sample {
			sample[i] = rng.Intn(n)
		}
		model.trees = append(model.trees, growTree(x, y, sample, minSplit, rng))
	}

	return model, nil
}

var _ Trainer = (*Forest)(nil)
