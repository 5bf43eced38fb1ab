package retrain

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/KennyKvn001/PipelineSummatives/config"
	"github.com/KennyKvn001/PipelineSummatives/ml"
)

// ErrAlreadyRunning is returned when a trigger loses the compare-and-swap on
// the status row to an in-flight run.
var ErrAlreadyRunning = errors.New("a retraining run is already in progress")

// Result acknowledges a retrain trigger
type Result struct {
	Status     string // "skipped" or "started"
	DataPoints int
}

// Store is the data-lifecycle surface the orchestrator needs
type Store interface {
	UnprocessedRecords(ctx context.Context) ([]config.TrainingRecord, error)
	// BeginRun transitions the status row to in_progress; false when another
	// run holds it.
	BeginRun(ctx context.Context, dataPoints int, startedAt time.Time) (bool, error)
	CompleteRun(ctx context.Context, metrics config.TrainingMetrics) error
	FailRun(ctx context.Context, errText string) error
	InsertMetrics(ctx context.Context, metrics *config.TrainingMetrics) error
	MarkProcessed(ctx context.Context, ids []uint, processedAt time.Time) error
}

// Trainer fits and persists a model generation from a batch of records
type Trainer interface {
	TrainAndSave(ctx context.Context, records []config.TrainingRecord) (*ml.Evaluation, string, error)
}

// Orchestrator drives the retraining state machine:
// not_started -> in_progress -> {completed, failed}. Completed and failed are
// not sticky; the next trigger moves back through in_progress.
type Orchestrator struct {
	store   Store
	trainer Trainer
	wg      sync.WaitGroup
}

// New creates an orchestrator
func New(store Store, trainer Trainer) *Orchestrator {
	return &Orchestrator{store: store, trainer: trainer}
}

// Trigger starts a retraining run over all currently-unprocessed records.
// An empty batch is a no-op success (skipped), not an error, and leaves the
// status row untouched. On success the batch trains in the background and
// the caller gets the started acknowledgment immediately.
func (o *Orchestrator) Trigger(ctx context.Context) (*Result, error) {
	records, err := o.store.UnprocessedRecords(ctx)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		log.Println("Retrain triggered with no unprocessed records, skipping")
		return &Result{Status: "skipped", DataPoints: 0}, nil
	}

	ok, err := o.store.BeginRun(ctx, len(records), time.Now().UTC())
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrAlreadyRunning
	}

	log.Printf("Retraining started on %d records", len(records))
	o.wg.Add(1)
	go o.run(records)

	return &Result{Status: "started", DataPoints: len(records)}, nil
}

// Wait blocks until any in-flight run finishes; used on shutdown
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// run executes one batch to completion. The run is detached from the
// triggering request and has no cancellation; it completes or records a
// failure. A failed batch stays unprocessed and is naturally retried whole
// on the next trigger.
func (o *Orchestrator) run(records []config.TrainingRecord) {
	defer o.wg.Done()
	ctx := context.Background()

	eval, version, err := o.trainer.TrainAndSave(ctx, records)
	if err != nil {
		o.fail(ctx, err)
		return
	}

	metrics := metricsRow(eval, version, len(records))
	if err := o.store.InsertMetrics(ctx, metrics); err != nil {
		o.fail(ctx, err)
		return
	}

	// Mark exactly the records read at trigger time: rows uploaded while the
	// run was training stay unprocessed for the next batch.
	ids := make([]uint, len(records))
	for i, rec := range records {
		ids[i] = rec.ID
	}
	if err := o.store.MarkProcessed(ctx, ids, time.Now().UTC()); err != nil {
		o.fail(ctx, err)
		return
	}

	if err := o.store.CompleteRun(ctx, *metrics); err != nil {
		// the status row must never stay in_progress, or the single-flight
		// guard rejects every future trigger
		o.fail(ctx, err)
		return
	}
	log.Printf("Retraining completed: %d records processed, model version %s", len(records), version)
}

func (o *Orchestrator) fail(ctx context.Context, cause error) {
	log.Printf("Retraining failed: %v", cause)
	if err := o.store.FailRun(ctx, cause.Error()); err != nil {
		log.Printf("Failed to record failed status: %v", err)
	}
}

func metricsRow(eval *ml.Evaluation, version string, dataPoints int) *config.TrainingMetrics {
	confusion, err := json.Marshal(eval.ConfusionMatrix)
	if err != nil {
		log.Printf("Failed to encode confusion matrix: %v", err)
		confusion = []byte("[]")
	}
	return &config.TrainingMetrics{
		ModelVersion:    version,
		Accuracy:        eval.Accuracy,
		Precision:       eval.Precision,
		Recall:          eval.Recall,
		F1:              eval.F1,
		ROCAUC:          eval.ROCAUC,
		ConfusionMatrix: string(confusion),
		DataPoints:      dataPoints,
		CreatedAt:       time.Now().UTC(),
	}
}
