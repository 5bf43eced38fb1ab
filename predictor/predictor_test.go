package predictor

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/KennyKvn001/PipelineSummatives/config"
	"github.com/KennyKvn001/PipelineSummatives/models"
	"github.com/KennyKvn001/PipelineSummatives/storage"
)

// memStore is an in-memory ArtifactStore
type memStore struct {
	data []byte
}

func (m *memStore) SaveArtifact(_ context.Context, data []byte) error {
	m.data = append([]byte(nil), data...)
	return nil
}

func (m *memStore) LoadArtifact(_ context.Context) ([]byte, error) {
	if m.data == nil {
		return nil, storage.ErrArtifactNotFound
	}
	return m.data, nil
}

func testConfig() *config.Config {
	return &config.Config{
		RiskLowMax:      0.4,
		RiskHighMin:     0.7,
		MinTrainingRows: 10,
	}
}

func trainingRecords(n int) []config.TrainingRecord {
	records := make([]config.TrainingRecord, 0, n)
	for i := 0; i < n; i++ {
		approved := float64(i % 20)
		grade := 10 + float64(i%10)
		age := 18 + float64(i%30)
		gender := "male"
		if i%2 == 0 {
			gender = "female"
		}
		records = append(records, config.TrainingRecord{
			ID:                  uint(i + 1),
			CurricularApproved:  &approved,
			CurricularGrade:     &grade,
			AgeAtEnrollment:     &age,
			ScholarshipHolder:   "1",
			TuitionFeesUpToDate: "1",
			Debtor:              "0",
			Gender:              gender,
			DropoutStatus:       approved < 8,
		})
	}
	return records
}

func studentInput(approved, grade, age float64) *models.StudentInput {
	f := false
	tr := true
	return &models.StudentInput{
		CurricularApproved:  &approved,
		CurricularGrade:     &grade,
		AgeAtEnrollment:     &age,
		ScholarshipHolder:   &tr,
		TuitionFeesUpToDate: &tr,
		Debtor:              &f,
		Gender:              "male",
	}
}

func TestRiskLevelBoundaries(t *testing.T) {
	p := New(&memStore{}, testConfig())

	cases := []struct {
		probability float64
		want        string
	}{
		{0.0, "low"},
		{0.39999, "low"},
		{0.4, "medium"}, // boundary is inclusive on the medium side
		{0.5, "medium"},
		{0.69999, "medium"},
		{0.7, "high"}, // boundary is inclusive on the high side
		{1.0, "high"},
	}
	for _, tc := range cases {
		if got := p.RiskLevel(tc.probability); got != tc.want {
			t.Errorf("RiskLevel(%f) = %q, want %q", tc.probability, got, tc.want)
		}
	}
}

func TestPredictWithoutModel(t *testing.T) {
	p := New(&memStore{}, testConfig())
	_, err := p.Predict(studentInput(0.5, 0.5, -0.5))
	if !errors.Is(err, ErrModelUnavailable) {
		t.Fatalf("expected ErrModelUnavailable, got %v", err)
	}
}

func TestLoadWithoutArtifact(t *testing.T) {
	p := New(&memStore{}, testConfig())
	if err := p.Load(context.Background()); !errors.Is(err, storage.ErrArtifactNotFound) {
		t.Fatalf("expected ErrArtifactNotFound, got %v", err)
	}
	if p.ModelVersion() != "" {
		t.Error("model version should be empty before any training")
	}
}

func TestTrainSaveAndPredict(t *testing.T) {
	store := &memStore{}
	p := New(store, testConfig())

	eval, version, err := p.TrainAndSave(context.Background(), trainingRecords(100))
	if err != nil {
		t.Fatalf("TrainAndSave failed: %v", err)
	}
	if version == "" || len(version) != 8 {
		t.Errorf("version = %q, want an 8-char id", version)
	}
	if eval.DataPoints != 100 {
		t.Errorf("data points = %d, want 100", eval.DataPoints)
	}
	if store.data == nil {
		t.Fatal("artifact was not persisted")
	}

	out, err := p.Predict(studentInput(-1.2, 0.0, 0.0))
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}
	if out.Probability < 0 || out.Probability > 1 {
		t.Errorf("probability %f out of [0,1]", out.Probability)
	}
	if out.ModelVersion != version {
		t.Errorf("model version = %q, want %q", out.ModelVersion, version)
	}
	if out.RiskLevel != p.RiskLevel(out.Probability) {
		t.Errorf("risk level %q inconsistent with probability %f", out.RiskLevel, out.Probability)
	}
}

func TestLoadRoundTripDeterminism(t *testing.T) {
	store := &memStore{}
	trained := New(store, testConfig())
	if _, _, err := trained.TrainAndSave(context.Background(), trainingRecords(80)); err != nil {
		t.Fatalf("TrainAndSave failed: %v", err)
	}

	in := studentInput(-0.8, 0.4, -0.2)
	before, err := trained.Predict(in)
	if err != nil {
		t.Fatalf("predict on trained instance: %v", err)
	}

	// a fresh predictor restoring the same artifact must agree exactly
	restored := New(store, testConfig())
	if err := restored.Load(context.Background()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	after, err := restored.Predict(in)
	if err != nil {
		t.Fatalf("predict on restored instance: %v", err)
	}

	if before.Probability != after.Probability {
		t.Errorf("probabilities diverge after reload: %f != %f", before.Probability, after.Probability)
	}
	if restored.ModelVersion() != trained.ModelVersion() {
		t.Error("model version lost across reload")
	}
}

func TestTrainAndSavePropagatesTrainingDataError(t *testing.T) {
	p := New(&memStore{}, testConfig())
	if _, _, err := p.TrainAndSave(context.Background(), trainingRecords(3)); err == nil {
		t.Fatal("expected error for an undersized batch")
	}
}

func TestPredictRejectsBadGender(t *testing.T) {
	store := &memStore{}
	p := New(store, testConfig())
	if _, _, err := p.TrainAndSave(context.Background(), trainingRecords(50)); err != nil {
		t.Fatalf("TrainAndSave failed: %v", err)
	}

	in := studentInput(0.1, 0.1, 0.1)
	in.Gender = "unknown"
	if _, err := p.Predict(in); err == nil {
		t.Fatal("expected error for unrecognized gender")
	}
}

func TestSampleFromInputMissingNumeric(t *testing.T) {
	in := studentInput(0.1, 0.1, 0.1)
	in.CurricularGrade = nil
	s, err := sampleFromInput(in)
	if err != nil {
		t.Fatalf("sampleFromInput failed: %v", err)
	}
	if !math.IsNaN(s.Numeric["Curricular_units_2nd_sem_grade"]) {
		t.Error("nil numeric should map to NaN for mean imputation")
	}
}
