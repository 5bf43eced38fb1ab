package ml

import "sort"

// Evaluation holds the metrics of one held-out evaluation
type Evaluation struct {
	Accuracy        float64
	Precision       float64
	Recall          float64
	F1              float64
	ROCAUC          float64
	ConfusionMatrix [][]int // [[TN, FP], [FN, TP]]
	DataPoints      int
}

// Evaluate computes classification metrics from true labels and predicted
// positive-class probabilities. Predictions use a 0.5 decision threshold.
func Evaluate(yTrue, probs []float64) Evaluation {
	var tn, fp, fn, tp int
	for i, label := range yTrue {
		predicted := probs[i] >= 0.5
		actual := label > 0.5
		switch {
		case actual && predicted:
			tp++
		case actual && !predicted:
			fn++
		case !actual && predicted:
			fp++
		default:
			tn++
		}
	}

	total := float64(len(yTrue))
	eval := Evaluation{
		ConfusionMatrix: [][]int{{tn, fp}, {fn, tp}},
		DataPoints:      len(yTrue),
	}
	if total > 0 {
		eval.Accuracy = float64(tn+tp) / total
	}
	if tp+fp > 0 {
		eval.Precision = float64(tp) / float64(tp+fp)
	}
	if tp+fn > 0 {
		eval.Recall = float64(tp) / float64(tp+fn)
	}
	if eval.Precision+eval.Recall > 0 {
		eval.F1 = 2 * eval.Precision * eval.Recall / (eval.Precision + eval.Recall)
	}
	eval.ROCAUC = rocAUC(yTrue, probs)
	return eval
}

// rocAUC is the rank-based (Mann-Whitney) area under the ROC curve, with
// tied scores contributing half. Returns 0.5 when only one class is present.
func rocAUC(yTrue, probs []float64) float64 {
	type scored struct {
		prob float64
		pos  bool
	}
	items := make([]scored, len(yTrue))
	var pos, neg float64
	for i := range yTrue {
		items[i] = scored{prob: probs[i], pos: yTrue[i] > 0.5}
		if items[i].pos {
			pos++
		} else {
			neg++
		}
	}
	if pos == 0 || neg == 0 {
		return 0.5
	}

	sort.Slice(items, func(a, b int) bool { return items[a].prob < items[b].prob })

	// rank sum of positives, averaging ranks across ties
	var rankSum float64
	i := 0
	for i < len(items) {
		j := i
		for j < len(items) && items[j].prob == items[i].prob {
			j++
		}
		avgRank := float64(i+j+1) / 2 // 1-based average rank of the tie group
		for k := i; k < j; k++ {
			if items[k].pos {
				rankSum += avgRank
			}
		}
		i = j
	}

	return (rankSum - pos*(pos+1)/2) / (pos * neg)
}
