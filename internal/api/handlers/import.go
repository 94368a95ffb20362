package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"golang.org/x/time/rate"

	"github.com/zhangwt/voltrend/backend/internal/contracts"
	"github.com/zhangwt/voltrend/backend/internal/importer"
	"github.com/zhangwt/voltrend/backend/pkg/logger"
	"github.com/zhangwt/voltrend/backend/pkg/redis"
)

// maxUploadBytes caps one import upload.
const maxUploadBytes = 512 << 20

// ImportHandler handles file import and progress polling endpoints.
// Import triggers are rate-limited twice: a local token bucket guards
// this process, the Redis sliding window coordinates across replicas.
type ImportHandler struct {
	orchestrator *importer.Orchestrator
	local        *rate.Limiter
	shared       *redis.RateLimiter
	logger       *logger.Logger
}

// NewImportHandler creates a new import handler. triggerRate is the
// allowed sustained imports per second for this process.
func NewImportHandler(orchestrator *importer.Orchestrator, triggerRate float64, shared *redis.RateLimiter, log *logger.Logger) *ImportHandler {
	return &ImportHandler{
		orchestrator: orchestrator,
		local:        rate.NewLimiter(rate.Limit(triggerRate), 3),
		shared:       shared,
		logger:       log,
	}
}

// StartImport accepts a trading-volume file and kicks off an import.
// POST /api/import (multipart field "file", or a raw text body with
// X-Filename). Responds 202 with the job snapshot; small files finish
// synchronously and come back already completed.
func (h *ImportHandler) StartImport(w http.ResponseWriter, r *http.Request) {
	if !h.local.Allow() {
		respondError(w, http.StatusTooManyRequests, "Too many import requests")
		return
	}
	allowed, _, err := h.shared.Allow(r.Context(), redis.ImportTriggerRateLimit)
	if err != nil {
		h.logger.WithError(err).Warn("Shared rate limit check failed, allowing request")
	} else if !allowed {
		respondError(w, http.StatusTooManyRequests, "Import trigger limit reached, retry later")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	var (
		filename = r.Header.Get("X-Filename")
		body     = r.Body
		size     = r.ContentLength
	)
	if file, header, ferr := r.FormFile("file"); ferr == nil {
		defer file.Close()
		filename = header.Filename
		body = file
		size = header.Size
	}
	if filename == "" {
		filename = "upload"
	}

	job, err := h.orchestrator.StartImport(r.Context(), filename, size, body)
	if err != nil {
		var fatal *contracts.JobFatalError
		switch {
		case errors.As(err, &fatal):
			h.logger.WithError(err).Warnf("Import of %s failed before processing", filename)
			respondJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
				"error": fatal.Error(),
				"job":   job,
			})
		case errors.Is(err, contracts.ErrUnrecognizedFormat):
			respondError(w, http.StatusUnprocessableEntity, "Unrecognized file format")
		default:
			h.logger.WithError(err).Error("Failed to start import")
			respondError(w, http.StatusInternalServerError, "Failed to start import")
		}
		return
	}

	respondJSON(w, http.StatusAccepted, job)
}

// GetProgress returns one job's progress snapshot.
// GET /api/import/{jobID}
func (h *ImportHandler) GetProgress(w http.ResponseWriter, r *http.Request) {
	jobID := mux.Vars(r)["jobID"]

	job, err := h.orchestrator.GetProgress(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, contracts.ErrJobNotFound) {
			respondError(w, http.StatusNotFound, "Import job not found")
			return
		}
		h.logger.WithError(err).Errorf("Failed to load job %s", jobID)
		respondError(w, http.StatusInternalServerError, "Failed to load import job")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"job":      job,
		"progress": job.Progress(),
	})
}

// ListJobs returns the latest import jobs.
// GET /api/import/jobs?limit=20
func (h *ImportHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 200 {
			respondError(w, http.StatusBadRequest, "Invalid 'limit' parameter")
			return
		}
		limit = n
	}

	jobs, err := h.orchestrator.ListRecent(r.Context(), limit)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list jobs")
		respondError(w, http.StatusInternalServerError, "Failed to list import jobs")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobs,
		"count": len(jobs),
	})
}
