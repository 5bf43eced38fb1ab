package models

import "time"

// StudentInput is the standardized feature vector accepted by POST /predict.
// The three numeric fields are expected on the standardized basis the model
// was trained on (see converter.TransformUserInput for the natural-unit path).
type StudentInput struct {
	CurricularApproved  *float64 `json:"Curricular_units_2nd_sem_approved" binding:"required"`
	CurricularGrade     *float64 `json:"Curricular_units_2nd_sem_grade" binding:"required"`
	AgeAtEnrollment     *float64 `json:"Age_at_enrollment" binding:"required"`
	ScholarshipHolder   *bool    `json:"Scholarship_holder" binding:"required"`
	TuitionFeesUpToDate *bool    `json:"Tuition_fees_up_to_date" binding:"required"`
	Debtor              *bool    `json:"Debtor" binding:"required"`
	Gender              string   `json:"Gender" binding:"required,oneof=male female"`
}

// UserFriendlyInput is the natural-unit feature vector accepted by
// POST /predict/user: integer counts 0-20, grade 0-20, age 17-70.
type UserFriendlyInput struct {
	CurricularApproved  *int     `json:"Curricular_units_2nd_sem_approved" binding:"required,gte=0,lte=20"`
	CurricularGrade     *float64 `json:"Curricular_units_2nd_sem_grade" binding:"required,gte=0,lte=20"`
	AgeAtEnrollment     *int     `json:"Age_at_enrollment" binding:"required,gte=17,lte=70"`
	ScholarshipHolder   *bool    `json:"Scholarship_holder" binding:"required"`
	TuitionFeesUpToDate *bool    `json:"Tuition_fees_up_to_date" binding:"required"`
	Debtor              *bool    `json:"Debtor" binding:"required"`
	Gender              string   `json:"Gender" binding:"required,oneof=male female"`
}

// PredictionOutput is the response of the predict endpoints
type PredictionOutput struct {
	Probability  float64 `json:"probability"`
	RiskLevel    string  `json:"risk_level"`
	ModelVersion string  `json:"model_version"`
}

// UploadResponse is the response of POST /upload-data
type UploadResponse struct {
	Message  string `json:"message"`
	Inserted int    `json:"inserted"`
}

// RetrainResponse is the immediate acknowledgment of POST /retrain
type RetrainResponse struct {
	Status     string `json:"status"` // "skipped", "started" or "in_progress"
	DataPoints int    `json:"data_points"`
}

// RetrainingStatusResponse mirrors the singleton status document
type RetrainingStatusResponse struct {
	Status      string           `json:"status"`
	StartedAt   *time.Time       `json:"started_at,omitempty"`
	CompletedAt *time.Time       `json:"completed_at,omitempty"`
	FailedAt    *time.Time       `json:"failed_at,omitempty"`
	DataPoints  int              `json:"data_points"`
	LastMetrics *MetricsResponse `json:"last_metrics,omitempty"`
	Error       string           `json:"error,omitempty"`
}

// MetricsResponse is one persisted evaluation result
type MetricsResponse struct {
	ModelVersion    string    `json:"model_version"`
	Accuracy        float64   `json:"accuracy"`
	Precision       float64   `json:"precision"`
	Recall          float64   `json:"recall"`
	F1              float64   `json:"f1"`
	ROCAUC          float64   `json:"roc_auc"`
	ConfusionMatrix [][]int   `json:"confusion_matrix"`
	DataPoints      int       `json:"data_points"`
	CreatedAt       time.Time `json:"created_at"`
}
