package predictor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/KennyKvn001/PipelineSummatives/config"
	"github.com/KennyKvn001/PipelineSummatives/converter"
	"github.com/KennyKvn001/PipelineSummatives/ml"
	"github.com/KennyKvn001/PipelineSummatives/models"
	"github.com/KennyKvn001/PipelineSummatives/storage"
)

// ErrModelUnavailable is returned when inference is requested before any
// model has ever been trained. The service stays up; inference simply fails
// until a retraining run completes.
var ErrModelUnavailable = errors.New("no trained model is available yet")

// Predictor owns the loaded model artifact. It is an explicit handle wired in
// at startup and passed to request handlers; concurrent reads are safe, the
// artifact is only swapped wholesale after a successful save.
type Predictor struct {
	store       storage.ArtifactStore
	riskLowMax  float64
	riskHighMin float64
	minRows     int

	mu       sync.RWMutex
	artifact *ml.Artifact
}

// New creates a predictor around the artifact store. Call Load to restore a
// previously trained model.
func New(store storage.ArtifactStore, cfg *config.Config) *Predictor {
	return &Predictor{
		store:       store,
		riskLowMax:  cfg.RiskLowMax,
		riskHighMin: cfg.RiskHighMin,
		minRows:     cfg.MinTrainingRows,
	}
}

// Load reads the persisted artifact. Loading is idempotent: repeated loads
// re-read the same immutable artifact. Returns storage.ErrArtifactNotFound
// when no model has ever been saved.
func (p *Predictor) Load(ctx context.Context) error {
	data, err := p.store.LoadArtifact(ctx)
	if err != nil {
		return err
	}
	artifact, err := ml.DecodeArtifact(data)
	if err != nil {
		return err
	}

	p.mu.Lock()
	p.artifact = artifact
	p.mu.Unlock()

	log.Printf("Model artifact loaded (version: %s, trained: %s)", artifact.Version, artifact.TrainedAt.Format(time.RFC3339))
	return nil
}

// ModelVersion returns the loaded model version, empty when none is loaded
func (p *Predictor) ModelVersion() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.artifact == nil {
		return ""
	}
	return p.artifact.Version
}

// Predict scores one standardized student row and maps the probability to a
// risk tier. Fails fast with ErrModelUnavailable before the first training.
func (p *Predictor) Predict(in *models.StudentInput) (*models.PredictionOutput, error) {
	p.mu.RLock()
	artifact := p.artifact
	p.mu.RUnlock()
	if artifact == nil {
		return nil, ErrModelUnavailable
	}

	sample, err := sampleFromInput(in)
	if err != nil {
		return nil, err
	}

	model := &ml.Model{Forest: artifact.Forest, Preprocessor: artifact.Preprocessor}
	prob, err := model.PredictProba(sample)
	if err != nil {
		return nil, err
	}

	return &models.PredictionOutput{
		Probability:  prob,
		RiskLevel:    p.RiskLevel(prob),
		ModelVersion: artifact.Version,
	}, nil
}

// RiskLevel buckets a probability with the configured thresholds:
// p < low max -> low, p < high min -> medium, otherwise high.
func (p *Predictor) RiskLevel(probability float64) string {
	if probability < p.riskLowMax {
		return "low"
	}
	if probability < p.riskHighMin {
		return "medium"
	}
	return "high"
}

// TrainAndSave fits a new model generation on the batch and persists the
// whole artifact in one write, then swaps the in-memory handle. The fitted
// preprocessor of the previous generation is reused so the encoding basis
// stays stable across retrains; only the very first run fits one.
func (p *Predictor) TrainAndSave(ctx context.Context, records []config.TrainingRecord) (*ml.Evaluation, string, error) {
	samples := make([]ml.Sample, len(records))
	for i, rec := range records {
		samples[i] = ml.SampleFromRecord(rec)
	}

	p.mu.RLock()
	var pre *ml.Preprocessor
	if p.artifact != nil {
		pre = p.artifact.Preprocessor
	}
	p.mu.RUnlock()

	model := ml.NewModel(pre)
	eval, err := model.Train(samples, p.minRows)
	if err != nil {
		return nil, "", err
	}

	artifact := &ml.Artifact{
		Forest:       model.Forest,
		Preprocessor: model.Preprocessor,
		FeatureNames: model.Preprocessor.FeatureNames(),
		Version:      uuid.New().String()[:8],
		TrainedAt:    time.Now().UTC(),
	}
	data, err := ml.EncodeArtifact(artifact)
	if err != nil {
		return nil, "", err
	}
	if err := p.store.SaveArtifact(ctx, data); err != nil {
		return nil, "", err
	}

	p.mu.Lock()
	p.artifact = artifact
	p.mu.Unlock()

	log.Printf("Model artifact replaced (version: %s, accuracy: %.4f)", artifact.Version, eval.Accuracy)
	return eval, artifact.Version, nil
}

func sampleFromInput(in *models.StudentInput) (ml.Sample, error) {
	gender, err := converter.GenderValue(in.Gender)
	if err != nil {
		return ml.Sample{}, fmt.Errorf("invalid input: %w", err)
	}
	return ml.Sample{
		Numeric: map[string]float64{
			"Curricular_units_2nd_sem_approved": deref(in.CurricularApproved),
			"Curricular_units_2nd_sem_grade":    deref(in.CurricularGrade),
			"Age_at_enrollment":                 deref(in.AgeAtEnrollment),
		},
		Categorical: map[string]string{
			"Scholarship_holder":      converter.FlagValue(derefBool(in.ScholarshipHolder)),
			"Tuition_fees_up_to_date": converter.FlagValue(derefBool(in.TuitionFeesUpToDate)),
			"Debtor":                  converter.FlagValue(derefBool(in.Debtor)),
			"Gender":                  gender,
		},
	}, nil
}

func deref(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}
	return *v
}

func derefBool(v *bool) bool {
	return v != nil && *v
}
