package ml

import "testing"

// linearly separable toy set: label 1 when the first feature is negative
func toyData() ([][]float64, []float64) {
	var x [][]float64
	var y []float64
	for i := 0; i < 20; i++ {
		v := float64(i)/10.0 + 0.1
		x = append(x, []float64{v, 1})
		y = append(y, 0)
		x = append(x, []float64{-v, 1})
		y = append(y, 1)
	}
	return x, y
}

func TestTrainForestSeparable(t *testing.T) {
	x, y := toyData()
	forest := TrainForest(x, y, DefaultForestParams())

	if len(forest.Trees) != 100 {
		t.Fatalf("got %d trees, want 100", len(forest.Trees))
	}

	probs := forest.PredictProba([][]float64{{-1.5, 1}, {1.5, 1}})
	if probs[0][0] < 0.9 {
		t.Errorf("negative-side probability = %f, want near 1", probs[0][0])
	}
	if probs[1][0] > 0.1 {
		t.Errorf("positive-side probability = %f, want near 0", probs[1][0])
	}
}

func TestTrainForestDeterministic(t *testing.T) {
	x, y := toyData()
	a := TrainForest(x, y, DefaultForestParams())
	b := TrainForest(x, y, DefaultForestParams())

	rows := [][]float64{{-0.3, 1}, {0.05, 1}, {0.7, 1}}
	pa := a.PredictProba(rows)
	pb := b.PredictProba(rows)
	for i := range rows {
		if pa[i][0] != pb[i][0] {
			t.Errorf("row %d: %f != %f, training must be deterministic with a fixed seed", i, pa[i][0], pb[i][0])
		}
	}
}

func TestPredictProbaRange(t *testing.T) {
	x, y := toyData()
	forest := TrainForest(x, y, DefaultForestParams())

	for _, row := range [][]float64{{-10, 1}, {0, 1}, {10, 1}, {0.123, -5}} {
		p := forest.PredictProba([][]float64{row})[0][0]
		if p < 0 || p > 1 {
			t.Errorf("probability %f out of [0,1] for %v", p, row)
		}
	}
}

func TestSingleClassLeaf(t *testing.T) {
	// all-positive labels collapse to a single leaf with probability 1
	x := [][]float64{{1, 0}, {2, 0}, {3, 0}, {4, 0}}
	y := []float64{1, 1, 1, 1}
	forest := TrainForest(x, y, ForestParams{NumTrees: 5, MaxDepth: 3, MinLeafSize: 1, Seed: 7})

	if p := forest.PredictProba([][]float64{{2.5, 0}})[0][0]; p != 1 {
		t.Errorf("probability = %f, want 1 for a pure positive set", p)
	}
}
