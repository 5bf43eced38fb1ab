package ml

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/KennyKvn001/PipelineSummatives/config"
	"github.com/KennyKvn001/PipelineSummatives/converter"
)

// TrainingDataError reports a batch that cannot produce a stable model:
// too few rows for a held-out split or a label column that is all one class.
type TrainingDataError struct {
	Reason string
}

func (e *TrainingDataError) Error() string {
	return "training data rejected: " + e.Reason
}

// Artifact is the persisted bundle: classifier, fitted preprocessor, ordered
// feature names and metadata, saved and restored as one unit.
type Artifact struct {
	Forest       *Forest
	Preprocessor *Preprocessor
	FeatureNames []string
	Version      string
	TrainedAt    time.Time
}

// EncodeArtifact serializes the whole bundle into one gob blob
func EncodeArtifact(a *Artifact) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(a); err != nil {
		return nil, fmt.Errorf("failed to encode model artifact: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeArtifact restores a bundle from its gob encoding
func DecodeArtifact(data []byte) (*Artifact, error) {
	var a Artifact
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&a); err != nil {
		return nil, fmt.Errorf("failed to decode model artifact: %w", err)
	}
	return &a, nil
}

// Model owns the classifier and preprocessor for one training run
type Model struct {
	Forest       *Forest
	Preprocessor *Preprocessor
	Params       ForestParams
}

// NewModel creates a model around the given preprocessor. Passing a fitted
// preprocessor from a previous generation keeps the scaling and encoding
// basis stable across retrains; passing an unfitted one (first training run)
// fits it on the training split.
func NewModel(pre *Preprocessor) *Model {
	if pre == nil {
		pre = NewPreprocessor()
	}
	return &Model{Preprocessor: pre, Params: DefaultForestParams()}
}

// Train fits the classifier on a labeled batch with an 80/20 held-out split
// and returns the evaluation on the held-out part. The batch must have at
// least minRows rows and both label classes, otherwise a TrainingDataError
// is returned and no model state changes.
func (m *Model) Train(samples []Sample, minRows int) (*Evaluation, error) {
	if len(samples) < minRows {
		return nil, &TrainingDataError{Reason: fmt.Sprintf("need at least %d rows for a stable split, got %d", minRows, len(samples))}
	}

	var pos, neg int
	for _, s := range samples {
		if s.Label > 0.5 {
			pos++
		} else {
			neg++
		}
	}
	if pos == 0 || neg == 0 {
		return nil, &TrainingDataError{Reason: "label column contains a single class"}
	}

	// deterministic shuffle and split
	shuffled := append([]Sample(nil), samples...)
	rng := rand.New(rand.NewSource(m.Params.Seed))
	rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	testSize := len(shuffled) / 5
	if testSize < 1 {
		testSize = 1
	}
	test := shuffled[:testSize]
	train := shuffled[testSize:]

	if !m.Preprocessor.Fitted {
		if err := m.Preprocessor.Fit(train); err != nil {
			return nil, fmt.Errorf("failed to fit preprocessor: %w", err)
		}
	}

	xTrain, err := m.Preprocessor.Transform(train)
	if err != nil {
		return nil, fmt.Errorf("failed to transform training data: %w", err)
	}
	yTrain := labels(train)

	m.Forest = TrainForest(xTrain, yTrain, m.Params)

	xTest, err := m.Preprocessor.Transform(test)
	if err != nil {
		return nil, fmt.Errorf("failed to transform evaluation data: %w", err)
	}
	probs := make([]float64, len(xTest))
	for i, out := range m.Forest.PredictProba(xTest) {
		p, err := FirstScalar(out)
		if err != nil {
			return nil, err
		}
		probs[i] = p
	}

	eval := Evaluate(labels(test), probs)
	eval.DataPoints = len(samples)
	return &eval, nil
}

// PredictProba returns the clamped dropout probability for a single row
func (m *Model) PredictProba(s Sample) (float64, error) {
	if m.Forest == nil {
		return 0, fmt.Errorf("model has not been trained")
	}
	vec, err := m.Preprocessor.TransformRow(s)
	if err != nil {
		return 0, err
	}
	out := m.Forest.PredictProba([][]float64{vec})
	p, err := FirstScalar(out)
	if err != nil {
		return 0, err
	}
	return Clamp01(p), nil
}

// FirstScalar normalizes heterogeneous model output shapes: it accepts
// rank-1 or rank-2 numeric output (or a bare scalar) and returns the first
// scalar.
func FirstScalar(out any) (float64, error) {
	switch v := out.(type) {
	case float64:
		return v, nil
	case []float64:
		if len(v) == 0 {
			return 0, fmt.Errorf("empty model output")
		}
		return v[0], nil
	case [][]float64:
		if len(v) == 0 || len(v[0]) == 0 {
			return 0, fmt.Errorf("empty model output")
		}
		return v[0][0], nil
	default:
		return 0, fmt.Errorf("unsupported model output shape %T", out)
	}
}

// Clamp01 bounds a probability into [0, 1] against numerical drift
func Clamp01(p float64) float64 {
	if math.IsNaN(p) {
		return 0
	}
	return math.Min(1, math.Max(0, p))
}

func labels(samples []Sample) []float64 {
	y := make([]float64, len(samples))
	for i, s := range samples {
		y[i] = s.Label
	}
	return y
}

// SampleFromRecord coerces a stored training record into an encodable sample.
// Missing numeric cells become NaN; flag and gender values are normalized to
// the canonical "1"/"0" encoding regardless of how they were uploaded.
func SampleFromRecord(rec config.TrainingRecord) Sample {
	label := 0.0
	if rec.DropoutStatus {
		label = 1.0
	}
	gender := rec.Gender
	if v, err := converter.GenderValue(rec.Gender); err == nil {
		gender = v
	}
	return Sample{
		Numeric: map[string]float64{
			"Curricular_units_2nd_sem_approved": numericValue(rec.CurricularApproved),
			"Curricular_units_2nd_sem_grade":    numericValue(rec.CurricularGrade),
			"Age_at_enrollment":                 numericValue(rec.AgeAtEnrollment),
		},
		Categorical: map[string]string{
			"Scholarship_holder":      normalizeFlag(rec.ScholarshipHolder),
			"Tuition_fees_up_to_date": normalizeFlag(rec.TuitionFeesUpToDate),
			"Debtor":                  normalizeFlag(rec.Debtor),
			"Gender":                  gender,
		},
		Label: label,
	}
}

func numericValue(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}
	return *v
}

func normalizeFlag(v string) string {
	switch v {
	case "1", "true", "True", "yes", "Yes":
		return "1"
	case "0", "false", "False", "no", "No":
		return "0"
	}
	return v
}
