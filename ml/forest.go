package ml

import (
	"math"
	"math/rand"
	"sort"
)

// ForestParams configures random forest training
type ForestParams struct {
	NumTrees    int
	MaxDepth    int
	MinLeafSize int
	Seed        int64
}

// DefaultForestParams mirrors the production classifier configuration:
// 100 trees, depth 5, balanced class weights, fixed seed for reproducibility.
func DefaultForestParams() ForestParams {
	return ForestParams{
		NumTrees:    100,
		MaxDepth:    5,
		MinLeafSize: 2,
		Seed:        42,
	}
}

// Node is one decision-tree node. Exported fields so the whole forest gob
// encodes inside the artifact.
type Node struct {
	Leaf      bool
	Prob      float64 // P(positive) at a leaf
	Feature   int
	Threshold float64
	Left      *Node
	Right     *Node
}

// Forest is a random forest binary classifier
type Forest struct {
	Params      ForestParams
	Trees       []*Node
	NumFeatures int
}

// TrainForest fits a forest on encoded feature vectors. Labels are 0/1.
// Class weights are balanced: each class contributes equally to impurity and
// leaf probabilities regardless of its frequency.
func TrainForest(x [][]float64, y []float64, params ForestParams) *Forest {
	rng := rand.New(rand.NewSource(params.Seed))

	var pos, neg float64
	for _, label := range y {
		if label > 0.5 {
			pos++
		} else {
			neg++
		}
	}
	n := float64(len(y))
	wPos, wNeg := 1.0, 1.0
	if pos > 0 && neg > 0 {
		wPos = n / (2 * pos)
		wNeg = n / (2 * neg)
	}

	f := &Forest{
		Params:      params,
		Trees:       make([]*Node, 0, params.NumTrees),
		NumFeatures: len(x[0]),
	}

	t := &treeBuilder{
		x:           x,
		y:           y,
		wPos:        wPos,
		wNeg:        wNeg,
		maxDepth:    params.MaxDepth,
		minLeafSize: params.MinLeafSize,
		numSplitFeatures: int(math.Max(1,
			math.Round(math.Sqrt(float64(len(x[0])))))),
	}

	for i := 0; i < params.NumTrees; i++ {
		// bootstrap sample
		indices := make([]int, len(x))
		for j := range indices {
			indices[j] = rng.Intn(len(x))
		}
		f.Trees = append(f.Trees, t.build(indices, 0, rng))
	}
	return f
}

// PredictProba returns class probabilities per row, one single-element slice
// per input: the averaged tree probability of the positive (dropout) class.
func (f *Forest) PredictProba(rows [][]float64) [][]float64 {
	out := make([][]float64, len(rows))
	for i, row := range rows {
		out[i] = []float64{f.predictRow(row)}
	}
	return out
}

func (f *Forest) predictRow(x []float64) float64 {
	var sum float64
	for _, tree := range f.Trees {
		node := tree
		for !node.Leaf {
			if x[node.Feature] <= node.Threshold {
				node = node.Left
			} else {
				node = node.Right
			}
		}
		sum += node.Prob
	}
	return sum / float64(len(f.Trees))
}

type treeBuilder struct {
	x                [][]float64
	y                []float64
	wPos             float64
	wNeg             float64
	maxDepth         int
	minLeafSize      int
	numSplitFeatures int
}

func (t *treeBuilder) build(indices []int, depth int, rng *rand.Rand) *Node {
	posW, negW := t.classWeights(indices)
	total := posW + negW

	if depth >= t.maxDepth || len(indices) < 2*t.minLeafSize || posW == 0 || negW == 0 {
		return t.leaf(posW, total)
	}

	feature, threshold, ok := t.bestSplit(indices, rng)
	if !ok {
		return t.leaf(posW, total)
	}

	var left, right []int
	for _, idx := range indices {
		if t.x[idx][feature] <= threshold {
			left = append(left, idx)
		} else {
			right = append(right, idx)
		}
	}
	if len(left) < t.minLeafSize || len(right) < t.minLeafSize {
		return t.leaf(posW, total)
	}

	return &Node{
		Feature:   feature,
		Threshold: threshold,
		Left:      t.build(left, depth+1, rng),
		Right:     t.build(right, depth+1, rng),
	}
}

func (t *treeBuilder) leaf(posW, total float64) *Node {
	prob := 0.0
	if total > 0 {
		prob = posW / total
	}
	return &Node{Leaf: true, Prob: prob}
}

func (t *treeBuilder) classWeights(indices []int) (posW, negW float64) {
	for _, idx := range indices {
		if t.y[idx] > 0.5 {
			posW += t.wPos
		} else {
			negW += t.wNeg
		}
	}
	return posW, negW
}

// bestSplit scans a random sqrt(d) subset of features for the threshold with
// the lowest weighted gini impurity.
func (t *treeBuilder) bestSplit(indices []int, rng *rand.Rand) (int, float64, bool) {
	numFeatures := len(t.x[0])
	features := rng.Perm(numFeatures)[:t.numSplitFeatures]

	bestGini := math.Inf(1)
	bestFeature, bestThreshold := -1, 0.0

	sorted := make([]int, len(indices))
	for _, feature := range features {
		copy(sorted, indices)
		f := feature
		sort.Slice(sorted, func(a, b int) bool {
			return t.x[sorted[a]][f] < t.x[sorted[b]][f]
		})

		var leftPos, leftNeg float64
		totalPos, totalNeg := t.classWeights(indices)

		for i := 0; i < len(sorted)-1; i++ {
			idx := sorted[i]
			if t.y[idx] > 0.5 {
				leftPos += t.wPos
			} else {
				leftNeg += t.wNeg
			}

			v, next := t.x[idx][f], t.x[sorted[i+1]][f]
			if v == next {
				continue
			}

			rightPos, rightNeg := totalPos-leftPos, totalNeg-leftNeg
			gini := weightedGini(leftPos, leftNeg) + weightedGini(rightPos, rightNeg)
			if gini < bestGini {
				bestGini = gini
				bestFeature = f
				bestThreshold = (v + next) / 2
			}
		}
	}

	return bestFeature, bestThreshold, bestFeature >= 0
}

func weightedGini(pos, neg float64) float64 {
	total := pos + neg
	if total == 0 {
		return 0
	}
	p := pos / total
	return total * 2 * p * (1 - p)
}
