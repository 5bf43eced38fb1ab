package ml

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Feature columns of the dropout dataset. The order here fixes the layout of
// every encoded vector for a model generation.
var (
	NumericFeatures = []string{
		"Curricular_units_2nd_sem_approved",
		"Curricular_units_2nd_sem_grade",
		"Age_at_enrollment",
	}
	CategoricalFeatures = []string{
		"Scholarship_holder",
		"Tuition_fees_up_to_date",
		"Debtor",
		"Gender",
	}
)

// Sample is one row on its way into the preprocessor. Missing numeric cells
// are NaN; categorical values are canonical strings.
type Sample struct {
	Numeric     map[string]float64
	Categorical map[string]string
	Label       float64
}

// ErrNotFitted is returned when Transform is called before Fit
var ErrNotFitted = fmt.Errorf("preprocessor has not been fitted")

// MissingFeatureError names the feature fields absent from an input row
type MissingFeatureError struct {
	Fields []string
}

func (e *MissingFeatureError) Error() string {
	return fmt.Sprintf("missing required features: %s", strings.Join(e.Fields, ", "))
}

// Preprocessor standardizes numeric features (zero mean, unit variance per
// the fit set, with column-mean imputation of missing cells) and one-hot
// encodes categorical features. Unseen categories at transform time map to an
// all-zero encoding rather than failing. The same fitted instance must be
// used for training and every inference call on that model generation; it is
// persisted inside the artifact to guarantee this. Fields are exported for
// gob encoding.
type Preprocessor struct {
	NumericCols     []string
	CategoricalCols []string
	Means           map[string]float64
	Stds            map[string]float64
	Categories      map[string][]string
	Fitted          bool
}

// NewPreprocessor creates an unfitted preprocessor over the dropout feature set
func NewPreprocessor() *Preprocessor {
	return &Preprocessor{
		NumericCols:     append([]string(nil), NumericFeatures...),
		CategoricalCols: append([]string(nil), CategoricalFeatures...),
	}
}

// Fit learns per-feature scaling statistics and categorical encodings from a
// batch of rows. Means and variances are computed over observed (non-missing)
// values only.
func (p *Preprocessor) Fit(samples []Sample) error {
	if len(samples) == 0 {
		return fmt.Errorf("cannot fit preprocessor on empty data")
	}

	p.Means = make(map[string]float64, len(p.NumericCols))
	p.Stds = make(map[string]float64, len(p.NumericCols))
	for _, col := range p.NumericCols {
		var sum float64
		var n int
		for _, s := range samples {
			v, ok := s.Numeric[col]
			if !ok || math.IsNaN(v) {
				continue
			}
			sum += v
			n++
		}
		mean := 0.0
		if n > 0 {
			mean = sum / float64(n)
		}

		var variance float64
		for _, s := range samples {
			v, ok := s.Numeric[col]
			if !ok || math.IsNaN(v) {
				continue
			}
			variance += (v - mean) * (v - mean)
		}
		std := 1.0
		if n > 0 {
			std = math.Sqrt(variance / float64(n))
		}
		if std == 0 {
			// constant column, avoid dividing by zero
			std = 1.0
		}
		p.Means[col] = mean
		p.Stds[col] = std
	}

	p.Categories = make(map[string][]string, len(p.CategoricalCols))
	for _, col := range p.CategoricalCols {
		seen := make(map[string]struct{})
		for _, s := range samples {
			if v, ok := s.Categorical[col]; ok {
				seen[v] = struct{}{}
			}
		}
		cats := make([]string, 0, len(seen))
		for v := range seen {
			cats = append(cats, v)
		}
		sort.Strings(cats)
		p.Categories[col] = cats
	}

	p.Fitted = true
	return nil
}

// TransformRow encodes a single row with the fitted statistics. A fitted
// feature absent from the row fails with a MissingFeatureError naming every
// missing field; a present-but-NaN numeric cell is imputed with the fit-time
// column mean.
func (p *Preprocessor) TransformRow(s Sample) ([]float64, error) {
	if !p.Fitted {
		return nil, ErrNotFitted
	}

	var missing []string
	for _, col := range p.NumericCols {
		if _, ok := s.Numeric[col]; !ok {
			missing = append(missing, col)
		}
	}
	for _, col := range p.CategoricalCols {
		if _, ok := s.Categorical[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, &MissingFeatureError{Fields: missing}
	}

	vec := make([]float64, 0, len(p.NumericCols)+len(p.CategoricalCols)*2)
	for _, col := range p.NumericCols {
		v := s.Numeric[col]
		if math.IsNaN(v) {
			v = p.Means[col]
		}
		vec = append(vec, (v-p.Means[col])/p.Stds[col])
	}
	for _, col := range p.CategoricalCols {
		v := s.Categorical[col]
		for _, cat := range p.Categories[col] {
			if v == cat {
				vec = append(vec, 1)
			} else {
				vec = append(vec, 0)
			}
		}
	}
	return vec, nil
}

// Transform encodes a batch of rows
func (p *Preprocessor) Transform(samples []Sample) ([][]float64, error) {
	out := make([][]float64, len(samples))
	for i, s := range samples {
		vec, err := p.TransformRow(s)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out[i] = vec
	}
	return out, nil
}

// FeatureNames returns the encoded column layout, one name per vector slot
func (p *Preprocessor) FeatureNames() []string {
	names := append([]string(nil), p.NumericCols...)
	for _, col := range p.CategoricalCols {
		for _, cat := range p.Categories[col] {
			names = append(names, col+"="+cat)
		}
	}
	return names
}
