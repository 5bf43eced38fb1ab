package config

import "time"

// Run status values for the retraining lifecycle. The zero state is
// StatusNotStarted; Completed and Failed are not sticky, the next trigger
// moves back through InProgress.
const (
	StatusNotStarted = "not_started"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// TrainingRecord represents one uploaded labeled student row.
// Numeric features are pointers: a nil value is a missing cell the
// preprocessor fills with the column mean at fit time. Categorical features
// are stored in canonical "1"/"0" form (gender: male=1).
type TrainingRecord struct {
	ID                  uint     `gorm:"primaryKey"`
	CurricularApproved  *float64 `gorm:"column:curricular_units_2nd_sem_approved"`
	CurricularGrade     *float64 `gorm:"column:curricular_units_2nd_sem_grade"`
	AgeAtEnrollment     *float64 `gorm:"column:age_at_enrollment"`
	ScholarshipHolder   string   `gorm:"column:scholarship_holder"`
	TuitionFeesUpToDate string   `gorm:"column:tuition_fees_up_to_date"`
	Debtor              string   `gorm:"column:debtor"`
	Gender              string   `gorm:"column:gender"`
	DropoutStatus       bool     `gorm:"column:dropout_status"`
	Processed           bool     `gorm:"index;default:false"`
	UploadedAt          time.Time
	ProcessedAt         *time.Time
}

// TableName overrides the table name
func (TrainingRecord) TableName() string {
	return "training_records"
}

// RetrainingStatus is the singleton status row (ID is always 1). It acts as
// the single-flight guard for retraining plus an audit trail.
type RetrainingStatus struct {
	ID          uint   `gorm:"primaryKey"`
	Status      string `gorm:"index"`
	StartedAt   *time.Time
	CompletedAt *time.Time
	FailedAt    *time.Time
	DataPoints  int
	LastMetrics string `gorm:"type:jsonb"` // metrics of the last completed run
	Error       string `gorm:"type:text"`
	UpdatedAt   time.Time
}

// TableName overrides the table name
func (RetrainingStatus) TableName() string {
	return "retraining_status"
}

// TrainingMetrics is one persisted evaluation result per completed run.
type TrainingMetrics struct {
	ID              uint   `gorm:"primaryKey"`
	ModelVersion    string `gorm:"index"`
	Accuracy        float64
	Precision       float64
	Recall          float64
	F1              float64
	ROCAUC          float64 `gorm:"column:roc_auc"`
	ConfusionMatrix string  `gorm:"type:jsonb"`
	DataPoints      int
	CreatedAt       time.Time
}

// TableName overrides the table name
func (TrainingMetrics) TableName() string {
	return "training_metrics"
}

// PredictionLog records a served prediction when PREDICTION_LOG_ENABLED is set.
type PredictionLog struct {
	ID           uint   `gorm:"primaryKey"`
	Input        string `gorm:"type:jsonb"`
	Probability  float64
	RiskLevel    string
	ModelVersion string
	CreatedAt    time.Time
}

// TableName overrides the table name
func (PredictionLog) TableName() string {
	return "prediction_logs"
}
