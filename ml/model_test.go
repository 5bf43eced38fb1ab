package ml

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/KennyKvn001/PipelineSummatives/config"
)

// trainingBatch builds a separable batch: low approved-units counts drop out
func trainingBatch(n int) []Sample {
	samples := make([]Sample, 0, n)
	for i := 0; i < n; i++ {
		approved := float64(i % 20)
		label := 0.0
		if approved < 8 {
			label = 1.0
		}
		gender := "1"
		if i%2 == 0 {
			gender = "0"
		}
		samples = append(samples, sample(approved, 10+float64(i%10), 18+float64(i%30), "1", "1", "0", gender, label))
	}
	return samples
}

func TestTrainRejectsTooFewRows(t *testing.T) {
	m := NewModel(nil)
	_, err := m.Train(trainingBatch(5), 10)
	var tde *TrainingDataError
	if !errors.As(err, &tde) {
		t.Fatalf("expected TrainingDataError, got %v", err)
	}
}

func TestTrainRejectsSingleClass(t *testing.T) {
	samples := make([]Sample, 20)
	for i := range samples {
		samples[i] = sample(float64(i), 10, 20, "1", "1", "0", "1", 1)
	}
	m := NewModel(nil)
	_, err := m.Train(samples, 10)
	var tde *TrainingDataError
	if !errors.As(err, &tde) {
		t.Fatalf("expected TrainingDataError for single-class labels, got %v", err)
	}
}

func TestTrainAndPredict(t *testing.T) {
	m := NewModel(nil)
	eval, err := m.Train(trainingBatch(100), 10)
	if err != nil {
		t.Fatalf("Train failed: %v", err)
	}

	if eval.DataPoints != 100 {
		t.Errorf("data points = %d, want 100", eval.DataPoints)
	}
	if eval.Accuracy < 0.8 {
		t.Errorf("accuracy = %f, want separable data learned", eval.Accuracy)
	}
	if len(eval.ConfusionMatrix) != 2 {
		t.Errorf("confusion matrix = %v, want 2x2", eval.ConfusionMatrix)
	}

	p, err := m.PredictProba(sample(2, 10, 20, "1", "1", "0", "1", 0))
	if err != nil {
		t.Fatalf("PredictProba failed: %v", err)
	}
	if p < 0 || p > 1 {
		t.Fatalf("probability %f out of [0,1]", p)
	}
	if p < 0.5 {
		t.Errorf("probability = %f, want dropout risk for a low approved count", p)
	}
}

func TestPreprocessorReusedAcrossGenerations(t *testing.T) {
	m1 := NewModel(nil)
	if _, err := m1.Train(trainingBatch(50), 10); err != nil {
		t.Fatalf("first Train failed: %v", err)
	}
	fittedMean := m1.Preprocessor.Means["Curricular_units_2nd_sem_approved"]

	// second generation reuses the fitted preprocessor untouched
	m2 := NewModel(m1.Preprocessor)
	if _, err := m2.Train(trainingBatch(100), 10); err != nil {
		t.Fatalf("second Train failed: %v", err)
	}
	if m2.Preprocessor.Means["Curricular_units_2nd_sem_approved"] != fittedMean {
		t.Error("retraining must not refit the preprocessor")
	}
}

func TestArtifactRoundTrip(t *testing.T) {
	m := NewModel(nil)
	if _, err := m.Train(trainingBatch(60), 10); err != nil {
		t.Fatalf("Train failed: %v", err)
	}

	artifact := &Artifact{
		Forest:       m.Forest,
		Preprocessor: m.Preprocessor,
		FeatureNames: m.Preprocessor.FeatureNames(),
		Version:      "test1234",
		TrainedAt:    time.Now().UTC(),
	}

	data, err := EncodeArtifact(artifact)
	if err != nil {
		t.Fatalf("EncodeArtifact failed: %v", err)
	}
	restored, err := DecodeArtifact(data)
	if err != nil {
		t.Fatalf("DecodeArtifact failed: %v", err)
	}

	if restored.Version != "test1234" {
		t.Errorf("version = %q, want test1234", restored.Version)
	}

	probe := sample(3, 11, 22, "1", "1", "0", "1", 0)
	before, err := m.PredictProba(probe)
	if err != nil {
		t.Fatalf("predict before save: %v", err)
	}
	restoredModel := &Model{Forest: restored.Forest, Preprocessor: restored.Preprocessor}
	after, err := restoredModel.PredictProba(probe)
	if err != nil {
		t.Fatalf("predict after load: %v", err)
	}
	if before != after {
		t.Errorf("round trip changed probability: %f != %f", before, after)
	}
}

func TestFirstScalarShapes(t *testing.T) {
	cases := []struct {
		name string
		in   any
		want float64
	}{
		{"scalar", 0.42, 0.42},
		{"rank-1", []float64{0.7, 0.3}, 0.7},
		{"rank-2", [][]float64{{0.25}}, 0.25},
	}
	for _, tc := range cases {
		got, err := FirstScalar(tc.in)
		if err != nil {
			t.Errorf("%s: unexpected error %v", tc.name, err)
			continue
		}
		if got != tc.want {
			t.Errorf("%s: got %f, want %f", tc.name, got, tc.want)
		}
	}

	if _, err := FirstScalar([]float64{}); err == nil {
		t.Error("empty rank-1 output should error")
	}
	if _, err := FirstScalar("not numeric"); err == nil {
		t.Error("unsupported shape should error")
	}
}

func TestClamp01(t *testing.T) {
	if Clamp01(-0.2) != 0 {
		t.Error("negative probability should clamp to 0")
	}
	if Clamp01(1.7) != 1 {
		t.Error("probability above 1 should clamp to 1")
	}
	if Clamp01(math.NaN()) != 0 {
		t.Error("NaN should clamp to 0")
	}
	if Clamp01(0.5) != 0.5 {
		t.Error("in-range probability should pass through")
	}
}

func TestSampleFromRecord(t *testing.T) {
	approved := 12.0
	rec := config.TrainingRecord{
		CurricularApproved:  &approved,
		CurricularGrade:     nil, // missing cell
		AgeAtEnrollment:     &approved,
		ScholarshipHolder:   "yes",
		TuitionFeesUpToDate: "0",
		Debtor:              "true",
		Gender:              "male",
		DropoutStatus:       true,
	}

	s := SampleFromRecord(rec)
	if s.Label != 1 {
		t.Errorf("label = %f, want 1", s.Label)
	}
	if !math.IsNaN(s.Numeric["Curricular_units_2nd_sem_grade"]) {
		t.Error("missing numeric cell should map to NaN")
	}
	if s.Categorical["Scholarship_holder"] != "1" {
		t.Errorf("scholarship = %q, want coerced 1", s.Categorical["Scholarship_holder"])
	}
	if s.Categorical["Debtor"] != "1" {
		t.Errorf("debtor = %q, want coerced 1", s.Categorical["Debtor"])
	}
	if s.Categorical["Gender"] != "1" {
		t.Errorf("gender = %q, want coerced 1", s.Categorical["Gender"])
	}
}
