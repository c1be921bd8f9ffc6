package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Safi-ullah-majid/Molecular-Complex-Analysis/chem"
	"github.com/Safi-ullah-majid/Molecular-Complex-Analysis/config"
	"github.com/Safi-ullah-majid/Molecular-Complex-Analysis/middleware"
	"github.com/Safi-ullah-majid/Molecular-Complex-Analysis/model"
	"github.com/Safi-ullah-majid/Molecular-Complex-Analysis/pkg/logger"
	"github.com/Safi-ullah-majid/Molecular-Complex-Analysis/service"
)

// Uploaded structure files are tiny text files; anything bigger than
// this is not a structure.
const maxUploadBytes = 2 << 20

type AnalysisHandler struct {
	cfg     *config.Config
	storage service.Storage
	ledger  *service.JobLedger
	history *service.JobHistory
}

func NewAnalysisHandler(cfg *config.Config, storage service.Storage, ledger *service.JobLedger, history *service.JobHistory) *AnalysisHandler {
	return &AnalysisHandler{
		cfg:     cfg,
		storage: storage,
		ledger:  ledger,
		history: history,
	}
}

// uploadObject is the storage name for an uploaded structure.
func uploadObject(tenant, fileID string) string {
	return path.Join(tenant, "uploads", fileID+".gjf")
}

// resultPrefix is the storage name prefix for a job's artifacts.
func resultPrefix(tenant, jobID string) string {
	return path.Join(tenant, "results", jobID)
}

// Upload accepts a Gaussian input (.gjf) structure file and stores it
// for later analysis.
func (h *AnalysisHandler) Upload(c *gin.Context) {
	tenant := middleware.GetTenant(c)

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file provided"})
		return
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if ext != ".gjf" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Only .gjf structure files are allowed"})
		return
	}

	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read file"})
		return
	}
	if len(data) > maxUploadBytes {
		c.JSON(http.StatusBadRequest, gin.H{"error": "File too large"})
		return
	}

	fileID := uuid.New().String()
	if err := h.storage.Save(c.Request.Context(), uploadObject(tenant, fileID), data); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store file: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"file_id":  fileID,
		"filename": header.Filename,
		"message":  "Upload successful",
	})
}

type AnalyzeRequest struct {
	AbsorbentFileID string                 `json:"absorbent_file_id" binding:"required"`
	AnalyteFileID   string                 `json:"analyte_file_id" binding:"required"`
	Settings        model.AnalysisSettings `json:"settings"`
}

// Analyze validates the referenced uploads, registers a pending job
// and starts the pipeline in the background.
func (h *AnalysisHandler) Analyze(c *gin.Context) {
	tenant := middleware.GetTenant(c)

	var req AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	ctx := c.Request.Context()
	if ok, err := h.storage.Exists(ctx, uploadObject(tenant, req.AbsorbentFileID)); err != nil || !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Absorbent file not found"})
		return
	}
	if ok, err := h.storage.Exists(ctx, uploadObject(tenant, req.AnalyteFileID)); err != nil || !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Analyte file not found"})
		return
	}

	settings := req.Settings.Merge(h.defaultSettings())

	job := &model.AnalysisJob{
		ID:              uuid.New().String(),
		Tenant:          tenant,
		AbsorbentFileID: req.AbsorbentFileID,
		AnalyteFileID:   req.AnalyteFileID,
		Status:          model.StatusPending,
		Message:         "Queued",
		CreatedAt:       time.Now(),
	}
	h.ledger.Save(job)

	go h.runAnalysis(job.ID, tenant, req.AbsorbentFileID, req.AnalyteFileID, settings)

	c.JSON(http.StatusOK, gin.H{
		"job_id": job.ID,
		"status": model.StatusPending,
	})
}

func (h *AnalysisHandler) defaultSettings() model.AnalysisSettings {
	a := h.cfg.Analysis
	return model.AnalysisSettings{
		Model:        h.cfg.Calculator.Model,
		Device:       h.cfg.Calculator.Device,
		Fmax:         a.Fmax,
		Steps:        a.MaxSteps,
		Separation:   a.Separation,
		Method:       a.Method,
		Basis:        a.Basis,
		Charge:       a.Charge,
		Multiplicity: a.Multiplicity,
	}
}

// calculatorPort resolves the calculator capability once per run: a
// remote ML-potential client when an endpoint is configured, otherwise
// the unavailable port and the pipeline runs degraded.
func (h *AnalysisHandler) calculatorPort(set model.AnalysisSettings) chem.Port {
	cc := h.cfg.Calculator
	if cc.Endpoint == "" {
		return chem.UnavailablePort()
	}
	return chem.AvailablePort(chem.NewRemoteCalculator(chem.RemoteConfig{
		Endpoint: cc.Endpoint,
		APIToken: cc.APIToken,
		Model:    set.Model,
		Device:   set.Device,
		Timeout:  time.Duration(cc.TimeoutSeconds) * time.Second,
	}))
}

// runAnalysis executes the pipeline for one job. It is the job's
// single writer; every other access goes through ledger reads.
func (h *AnalysisHandler) runAnalysis(jobID, tenant, absorbentID, analyteID string, settings model.AnalysisSettings) {
	ctx := logger.NewJobContext(jobID, tenant)
	log := logger.WithContext(ctx)

	h.ledger.MarkProcessing(jobID)
	h.ledger.UpdateProgress(jobID, 10, "Initializing...")
	log.Info("analysis started", "absorbent_file_id", absorbentID, "analyte_file_id", analyteID)

	absorbent, err := h.storage.Open(ctx, uploadObject(tenant, absorbentID))
	if err != nil {
		h.finishFailed(jobID, fmt.Sprintf("read absorbent: %v", err))
		return
	}
	defer absorbent.Close()

	analyte, err := h.storage.Open(ctx, uploadObject(tenant, analyteID))
	if err != nil {
		h.finishFailed(jobID, fmt.Sprintf("read analyte: %v", err))
		return
	}
	defer analyte.Close()

	pipe := chem.NewPipeline(
		h.calculatorPort(settings),
		rand.New(rand.NewSource(time.Now().UnixNano())),
	)
	result, err := pipe.Run(ctx, absorbent, analyte, h.storage, resultPrefix(tenant, jobID),
		chem.Settings{
			Fmax:         settings.Fmax,
			MaxSteps:     settings.Steps,
			Separation:   settings.Separation,
			Method:       settings.Method,
			Basis:        settings.Basis,
			Charge:       settings.Charge,
			Multiplicity: settings.Multiplicity,
		},
		func(percent int, message string) {
			h.ledger.UpdateProgress(jobID, percent, message)
		},
	)
	if err != nil {
		log.Error("analysis failed", "error", err)
		h.finishFailed(jobID, err.Error())
		return
	}

	h.ledger.MarkCompleted(jobID, result.Bundle(jobID))
	h.archive(jobID)
	log.Info("analysis completed",
		"complex_atoms", result.ComplexAtoms,
		"degraded", result.Degraded,
	)
}

func (h *AnalysisHandler) finishFailed(jobID, msg string) {
	h.ledger.MarkFailed(jobID, msg)
	h.archive(jobID)
}

// archive mirrors the terminal ledger state into the history database.
// Archive failures are logged, never propagated.
func (h *AnalysisHandler) archive(jobID string) {
	job := h.ledger.Get(jobID)
	if job == nil {
		return
	}
	if err := h.history.Record(job); err != nil {
		logger.WithContext(context.Background()).Warn("failed to archive job", "job_id", jobID, "error", err)
	}
}

// List returns all jobs for the current tenant
func (h *AnalysisHandler) List(c *gin.Context) {
	tenant := middleware.GetTenant(c)
	jobs := h.ledger.GetByTenant(tenant)

	// Return without result bundles for list view
	result := make([]gin.H, len(jobs))
	for i, job := range jobs {
		result[i] = gin.H{
			"id":         job.ID,
			"status":     job.Status,
			"progress":   job.Progress,
			"message":    job.Message,
			"created_at": job.CreatedAt.Format(time.RFC3339),
			"updated_at": job.UpdatedAt.Format(time.RFC3339),
		}
	}

	c.JSON(http.StatusOK, gin.H{"jobs": result})
}

// Get returns a single job including its result bundle
func (h *AnalysisHandler) Get(c *gin.Context) {
	tenant := middleware.GetTenant(c)
	id := c.Param("id")

	job := h.ledger.Get(id)
	if job == nil || job.Tenant != tenant {
		c.JSON(http.StatusNotFound, gin.H{"error": "Job not found"})
		return
	}

	c.JSON(http.StatusOK, job)
}

// GetStatus returns the processing status of a job
func (h *AnalysisHandler) GetStatus(c *gin.Context) {
	tenant := middleware.GetTenant(c)
	id := c.Param("id")

	job := h.ledger.Get(id)
	if job == nil || job.Tenant != tenant {
		c.JSON(http.StatusNotFound, gin.H{"error": "Job not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":        job.ID,
		"status":    job.Status,
		"progress":  job.Progress,
		"message":   job.Message,
		"error_msg": job.ErrorMsg,
	})
}

// Download streams a completed job's artifacts: the optimized
// structure file or the JSON results bundle.
func (h *AnalysisHandler) Download(c *gin.Context) {
	tenant := middleware.GetTenant(c)
	id := c.Param("id")
	fileType := c.Param("type")

	job := h.ledger.Get(id)
	if job == nil || job.Tenant != tenant {
		c.JSON(http.StatusNotFound, gin.H{"error": "Job not found"})
		return
	}
	if job.Status != model.StatusCompleted {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Analysis not completed"})
		return
	}

	var objectName, filename, contentType string
	switch fileType {
	case "structure":
		objectName = resultPrefix(tenant, id) + "_optimized.gjf"
		filename = id + "_optimized.gjf"
		contentType = "text/plain"
	case "results":
		objectName = resultPrefix(tenant, id) + "_results.json"
		filename = id + "_results.json"
		contentType = "application/json"
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid file type"})
		return
	}

	obj, err := h.storage.Open(c.Request.Context(), objectName)
	if err != nil {
		if errors.Is(err, service.ErrObjectNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "File not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to open file: " + err.Error()})
		return
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read file: " + err.Error()})
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, contentType, data)
}

// History returns the tenant's archived terminal jobs.
func (h *AnalysisHandler) History(c *gin.Context) {
	tenant := middleware.GetTenant(c)

	entries, err := h.history.Recent(tenant, 50)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load history: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"history": entries})
}

// Health reports service liveness and the number of running analyses.
func (h *AnalysisHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "healthy",
		"active_jobs": h.ledger.ActiveCount(),
		"timestamp":   time.Now().Format(time.RFC3339),
	})
}
