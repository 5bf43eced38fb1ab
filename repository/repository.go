package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"

	"github.com/KennyKvn001/PipelineSummatives/config"
)

// Repository handles database operations
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new repository instance
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// retry runs op and transparently retries once on failure, so a dropped
// connection gets one reconnect attempt before surfacing. Record-not-found
// is a result, not a connectivity failure, and is never retried.
func retry(op func() error) error {
	err := op()
	if err == nil || errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	log.Printf("Data store operation failed, retrying once: %v", err)
	return op()
}

// InsertTrainingRecords inserts uploaded rows all-or-nothing and returns the
// inserted count.
func (r *Repository) InsertTrainingRecords(ctx context.Context, records []config.TrainingRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.CreateInBatches(records, 500).Error
	})
	if err != nil {
		return 0, fmt.Errorf("failed to insert training records: %w", err)
	}
	return len(records), nil
}

// UnprocessedRecords returns every record not yet consumed by a retraining run
func (r *Repository) UnprocessedRecords(ctx context.Context) ([]config.TrainingRecord, error) {
	var records []config.TrainingRecord
	err := retry(func() error {
		records = records[:0]
		return r.db.WithContext(ctx).
			Where("processed = ?", false).
			Order("uploaded_at ASC").
			Find(&records).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list unprocessed records: %w", err)
	}
	return records, nil
}

// MarkProcessed flips the processed flag on exactly the given batch. The
// update is idempotent, so it gets the transparent retry.
func (r *Repository) MarkProcessed(ctx context.Context, ids []uint, processedAt time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	err := retry(func() error {
		return r.db.WithContext(ctx).Model(&config.TrainingRecord{}).
			Where("id IN ?", ids).
			Updates(map[string]interface{}{
				"processed":    true,
				"processed_at": processedAt,
			}).Error
	})
	if err != nil {
		return fmt.Errorf("failed to mark records processed: %w", err)
	}
	return nil
}

// BeginRun compare-and-swaps the singleton status row into in_progress.
// Returns false when another run already holds it, which is the single-flight
// guard against overlapping retrains.
func (r *Repository) BeginRun(ctx context.Context, dataPoints int, startedAt time.Time) (bool, error) {
	db := r.db.WithContext(ctx)

	// ensure the singleton row exists
	seed := config.RetrainingStatus{ID: 1, Status: config.StatusNotStarted, UpdatedAt: time.Now().UTC()}
	if err := db.Where(config.RetrainingStatus{ID: 1}).FirstOrCreate(&seed).Error; err != nil {
		return false, fmt.Errorf("failed to initialize status row: %w", err)
	}

	res := db.Model(&config.RetrainingStatus{}).
		Where("id = ? AND status <> ?", 1, config.StatusInProgress).
		Updates(map[string]interface{}{
			"status":      config.StatusInProgress,
			"started_at":  startedAt,
			"data_points": dataPoints,
			"error":       "",
			"updated_at":  time.Now().UTC(),
		})
	if res.Error != nil {
		return false, fmt.Errorf("failed to begin retraining run: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// CompleteRun records a successful run with its metrics. Keyed on the
// singleton row, safe to retry.
func (r *Repository) CompleteRun(ctx context.Context, metrics config.TrainingMetrics) error {
	lastMetrics, err := metricsJSON(metrics)
	if err != nil {
		return err
	}
	return retry(func() error {
		return r.db.WithContext(ctx).Model(&config.RetrainingStatus{}).
			Where("id = ?", 1).
			Updates(map[string]interface{}{
				"status":       config.StatusCompleted,
				"completed_at": time.Now().UTC(),
				"data_points":  metrics.DataPoints,
				"last_metrics": lastMetrics,
				"error":        "",
				"updated_at":   time.Now().UTC(),
			}).Error
	})
}

// FailRun records a failed run, preserving the error text for operators
func (r *Repository) FailRun(ctx context.Context, errText string) error {
	return retry(func() error {
		return r.db.WithContext(ctx).Model(&config.RetrainingStatus{}).
			Where("id = ?", 1).
			Updates(map[string]interface{}{
				"status":     config.StatusFailed,
				"failed_at":  time.Now().UTC(),
				"error":      errText,
				"updated_at": time.Now().UTC(),
			}).Error
	})
}

// RecoverStaleRun resets a status row left in_progress by a crashed run so
// the single-flight guard cannot stay wedged across restarts. Called once at
// startup, before any trigger can race it.
func (r *Repository) RecoverStaleRun(ctx context.Context) error {
	res := r.db.WithContext(ctx).Model(&config.RetrainingStatus{}).
		Where("id = ? AND status = ?", 1, config.StatusInProgress).
		Updates(map[string]interface{}{
			"status":     config.StatusFailed,
			"failed_at":  time.Now().UTC(),
			"error":      "run interrupted by service restart",
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return fmt.Errorf("failed to recover stale retraining status: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		log.Printf("Recovered a stale in_progress retraining status")
	}
	return nil
}

// Status returns the singleton status row; a missing row reads as not_started
func (r *Repository) Status(ctx context.Context) (*config.RetrainingStatus, error) {
	var status config.RetrainingStatus
	err := retry(func() error {
		return r.db.WithContext(ctx).Where("id = ?", 1).First(&status).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &config.RetrainingStatus{ID: 1, Status: config.StatusNotStarted}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read retraining status: %w", err)
	}
	return &status, nil
}

// InsertMetrics persists one evaluation result
func (r *Repository) InsertMetrics(ctx context.Context, metrics *config.TrainingMetrics) error {
	if err := r.db.WithContext(ctx).Create(metrics).Error; err != nil {
		return fmt.Errorf("failed to insert training metrics: %w", err)
	}
	return nil
}

// LatestMetrics returns the most recently persisted metrics document
func (r *Repository) LatestMetrics(ctx context.Context) (*config.TrainingMetrics, error) {
	var metrics config.TrainingMetrics
	err := retry(func() error {
		return r.db.WithContext(ctx).Order("created_at DESC").First(&metrics).Error
	})
	if err != nil {
		return nil, err
	}
	return &metrics, nil
}

// InsertPredictionLog records a served prediction
func (r *Repository) InsertPredictionLog(ctx context.Context, entry *config.PredictionLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

// Ping checks database connectivity with one transparent retry
func (r *Repository) Ping(ctx context.Context) error {
	return retry(func() error {
		sqlDB, err := r.db.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	})
}

func metricsJSON(metrics config.TrainingMetrics) (string, error) {
	// the confusion matrix column is already JSON; embed it as-is
	confusion := json.RawMessage(metrics.ConfusionMatrix)
	if len(confusion) == 0 {
		confusion = json.RawMessage("[]")
	}
	doc, err := json.Marshal(map[string]interface{}{
		"model_version":    metrics.ModelVersion,
		"accuracy":         metrics.Accuracy,
		"precision":        metrics.Precision,
		"recall":           metrics.Recall,
		"f1":               metrics.F1,
		"roc_auc":          metrics.ROCAUC,
		"confusion_matrix": confusion,
		"data_points":      metrics.DataPoints,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal last metrics: %w", err)
	}
	return string(doc), nil
}
