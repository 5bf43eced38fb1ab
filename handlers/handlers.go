package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/KennyKvn001/PipelineSummatives/config"
	"github.com/KennyKvn001/PipelineSummatives/converter"
	"github.com/KennyKvn001/PipelineSummatives/dataset"
	"github.com/KennyKvn001/PipelineSummatives/models"
	"github.com/KennyKvn001/PipelineSummatives/predictor"
	"github.com/KennyKvn001/PipelineSummatives/repository"
	"github.com/KennyKvn001/PipelineSummatives/retrain"
)

// Handler handles HTTP requests
type Handler struct {
	cfg          *config.Config
	repo         *repository.Repository
	predictor    *predictor.Predictor
	orchestrator *retrain.Orchestrator
	converter    *converter.Converter
}

// NewHandler creates a new handler instance
func NewHandler(cfg *config.Config, repo *repository.Repository, pred *predictor.Predictor, orch *retrain.Orchestrator) *Handler {
	return &Handler{
		cfg:          cfg,
		repo:         repo,
		predictor:    pred,
		orchestrator: orch,
		converter:    converter.NewConverter(),
	}
}

// Predict handles POST /predict with a standardized feature vector
func (h *Handler) Predict(c *gin.Context) {
	var input models.StudentInput
	if err := c.ShouldBindJSON(&input); err != nil {
		log.Printf("Invalid predict payload: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request payload",
			"details": err.Error(),
		})
		return
	}

	h.servePrediction(c, &input)
}

// PredictUser handles POST /predict/user with natural-unit values
func (h *Handler) PredictUser(c *gin.Context) {
	var input models.UserFriendlyInput
	if err := c.ShouldBindJSON(&input); err != nil {
		log.Printf("Invalid predict/user payload: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request payload",
			"details": err.Error(),
		})
		return
	}

	h.servePrediction(c, h.converter.TransformUserInput(&input))
}

func (h *Handler) servePrediction(c *gin.Context, input *models.StudentInput) {
	output, err := h.predictor.Predict(input)
	if err != nil {
		if errors.Is(err, predictor.ErrModelUnavailable) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}
		log.Printf("Prediction failed: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if h.cfg.PredictionLogEnabled {
		h.logPrediction(c.Request.Context(), input, output)
	}

	c.JSON(http.StatusOK, output)
}

func (h *Handler) logPrediction(ctx context.Context, input *models.StudentInput, output *models.PredictionOutput) {
	raw, err := json.Marshal(input)
	if err != nil {
		return
	}
	entry := &config.PredictionLog{
		Input:        string(raw),
		Probability:  output.Probability,
		RiskLevel:    output.RiskLevel,
		ModelVersion: output.ModelVersion,
		CreatedAt:    time.Now().UTC(),
	}
	if err := h.repo.InsertPredictionLog(ctx, entry); err != nil {
		log.Printf("Failed to log prediction: %v", err)
	}
}

// UploadData handles POST /upload-data with a multipart CSV of labeled rows
func (h *Handler) UploadData(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "File is required"})
		return
	}
	defer file.Close()

	if !strings.HasSuffix(strings.ToLower(header.Filename), ".csv") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Only CSV files accepted"})
		return
	}

	log.Printf("Uploading training data: %s (size: %d bytes)", header.Filename, header.Size)

	records, err := dataset.ParseCSV(file, time.Now().UTC())
	if err != nil {
		var validation *dataset.ValidationError
		if errors.As(err, &validation) {
			resp := gin.H{"error": validation.Message}
			if len(validation.MissingColumns) > 0 {
				resp["missing_columns"] = validation.MissingColumns
			}
			c.JSON(http.StatusBadRequest, resp)
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	inserted, err := h.repo.InsertTrainingRecords(c.Request.Context(), records)
	if err != nil {
		log.Printf("Failed to insert training records: %v", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Failed to store training data"})
		return
	}

	log.Printf("Training data uploaded: %d records from %s", inserted, header.Filename)
	c.JSON(http.StatusOK, models.UploadResponse{
		Message:  "Data uploaded successfully",
		Inserted: inserted,
	})
}

// Retrain handles POST /retrain: triggers the orchestrator and returns
// immediately while the batch trains in the background.
func (h *Handler) Retrain(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()

	result, err := h.orchestrator.Trigger(ctx)
	if err != nil {
		if errors.Is(err, retrain.ErrAlreadyRunning) {
			c.JSON(http.StatusConflict, models.RetrainResponse{Status: config.StatusInProgress})
			return
		}
		log.Printf("Failed to trigger retraining: %v", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Failed to trigger retraining"})
		return
	}

	status := http.StatusOK
	if result.Status == "started" {
		status = http.StatusAccepted
	}
	c.JSON(status, models.RetrainResponse{Status: result.Status, DataPoints: result.DataPoints})
}

// RetrainingStatus handles GET /retraining-status
func (h *Handler) RetrainingStatus(c *gin.Context) {
	status, err := h.repo.Status(c.Request.Context())
	if err != nil {
		log.Printf("Failed to read retraining status: %v", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Failed to read retraining status"})
		return
	}

	resp := models.RetrainingStatusResponse{
		Status:      status.Status,
		StartedAt:   status.StartedAt,
		CompletedAt: status.CompletedAt,
		FailedAt:    status.FailedAt,
		DataPoints:  status.DataPoints,
		Error:       status.Error,
	}
	if status.LastMetrics != "" {
		var metrics models.MetricsResponse
		if err := json.Unmarshal([]byte(status.LastMetrics), &metrics); err == nil {
			resp.LastMetrics = &metrics
		}
	}

	c.JSON(http.StatusOK, resp)
}

// TrainingMetrics handles GET /training-metrics
func (h *Handler) TrainingMetrics(c *gin.Context) {
	metrics, err := h.repo.LatestMetrics(c.Request.Context())
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "No training metrics recorded yet"})
			return
		}
		log.Printf("Failed to read training metrics: %v", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Failed to read training metrics"})
		return
	}

	var confusion [][]int
	if metrics.ConfusionMatrix != "" {
		if err := json.Unmarshal([]byte(metrics.ConfusionMatrix), &confusion); err != nil {
			log.Printf("Malformed confusion matrix in metrics %d: %v", metrics.ID, err)
		}
	}

	c.JSON(http.StatusOK, models.MetricsResponse{
		ModelVersion:    metrics.ModelVersion,
		Accuracy:        metrics.Accuracy,
		Precision:       metrics.Precision,
		Recall:          metrics.Recall,
		F1:              metrics.F1,
		ROCAUC:          metrics.ROCAUC,
		ConfusionMatrix: confusion,
		DataPoints:      metrics.DataPoints,
		CreatedAt:       metrics.CreatedAt,
	})
}

// Health handles GET /health
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":        "healthy",
		"model_version": h.predictor.ModelVersion(),
	})
}

// HealthDB handles GET /health/db
func (h *Handler) HealthDB(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if err := h.repo.Ping(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "disconnected",
			"error":  err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  "connected",
		"message": "Successfully connected to the database",
	})
}
