package forecast

import (
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/stat"
)

const leaf = -1

type treeNode struct {
	feature   int
	threshold float64
	left      int
	right     int
	value     float64
}

// RegressionTree is a CART tree fitted on squared error.
type RegressionTree struct {
	nodes []treeNode
}

// Predict walks the tree from the root; x goes left when x[feature] <= threshold.
func (t *RegressionTree) Predict(x []float64) float64 {
	i := 0
	for {
		n := t.nodes[i]
		if n.left == leaf {
			return n.value
		}
		if x[n.feature] <= n.threshold {
			i = n.left
		} else {
			i = n.right
		}
	}
}

// Depth returns the number of edges on the longest root-to-leaf path.
func (t *RegressionTree) Depth() int {
	var walk func(i int) int
	walk = func(i int) int {
		n := t.nodes[i]
		if n.left == leaf {
			return 0
		}
		l, r := walk(n.left), walk(n.right)
		if l > r {
			return l + 1
		}
		return r + 1
	}
	return walk(0)
}

type treeBuilder struct {
	x               [][]float64
	y               []float64
	minSamplesSplit int
	rng             *rand.Rand
	nodes           []treeNode
}

// growTree fits a tree on the rows listed in sample. Indices may repeat, which
// is how bootstrap weights are expressed.
func growTree(x [][]float64, y []float64, sample []int, minSamplesSplit int, rng *rand.Rand) *RegressionTree {
	b := &treeBuilder{
		x:               x,
		y:               y,
		minSamplesSplit: minSamplesSplit,
		rng:             rng,
	}
	b.grow(sample)
	return &RegressionTree{nodes: b.nodes}
}

func (b *treeBuilder) grow(sample []int) int {
	id := len(b.nodes)
	b.nodes = append(b.nodes, treeNode{left: leaf, right: leaf, value: b.mean(sample)})

	if len(sample) < b.minSamplesSplit || b.pure(sample) {
		return id
	}

	feature, threshold, ok := b.bestSplit(sample)
	if !ok {
		return id
	}

	left := make([]int, 0, len(sample))
	right := make([]int, 0, len(sample))
	for _, i := range sample {
		if b.x[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	l := b.grow(left)
	r := b.grow(right)
	b.nodes[id].feature = feature
	b.nodes[id].threshold = threshold
	b.nodes[id].left = l
	b.nodes[id].right = r
	return id
}

func (b *treeBuilder) mean(sample []int) float64 {
	ys := make([]float64, len(sample))
	for k, i := range sample {
		ys[k] = b.y[i]
	}
	return stat.Mean(ys, nil)
}

func (b *treeBuilder) pure(sample []int) bool {
	first := b.y[sample[0]]
	for _, i := range sample[1:] {
		if b.y[i] != first {
			return false
		}
	}
	return true
}

// bestSplit maximises the squared-error reduction over every feature, visiting
// features in a random order so ties are broken by the tree's RNG.
func (b *treeBuilder) bestSplit(sample []int) (int, float64, bool) {
	n := len(sample)
	var total float64
	for _, i := range sample {
		total += b.y[i]
	}
	parent := total * total / float64(n)

	bestGain := 0.0
	bestFeature := -1
	bestThreshold := 0.0

	order := make([]int, n)
	for _, f := range b.rng.Perm(len(b.x[sample[0]])) {
		copy(order, sample)
		sort.SliceStable(order, func(p, q int) bool {
			return b.x[order[p]][f] < b.x[order[q]][f]
		})

		var leftSum float64
		for k := 1; k < n; k++ {
			leftSum += b.y[order[k-1]]
			lo, hi := b.x[order[k-1]][f], b.x[order[k]][f]
			if lo == hi {
				continue
			}
			rightSum := total - leftSum
			score := leftSum*leftSum/float64(k) + rightSum*rightSum/float64(n-k)
			if gain := score - parent; gain > bestGain+1e-12 {
				bestGain = gain
				bestFeature = f
				bestThreshold = midpoint(lo, hi)
			}
		}
	}

	return bestFeature, bestThreshold, bestFeature >= 0
}

func midpoint(lo, hi float64) float64 {
	m := lo + (hi-lo)/2
	if m >= hi {
		return lo
	}
	return m
}
