package handlers

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/zhangwt/voltrend/backend/internal/analytics"
	"github.com/zhangwt/voltrend/backend/internal/contracts"
	"github.com/zhangwt/voltrend/backend/pkg/logger"
)

// ConceptHandler handles concept summary, ranking and innovation-high
// query endpoints.
type ConceptHandler struct {
	summaries contracts.SummaryRepository
	detector  *analytics.Detector
	logger    *logger.Logger
}

// NewConceptHandler creates a new concept handler
func NewConceptHandler(summaries contracts.SummaryRepository, detector *analytics.Detector, log *logger.Logger) *ConceptHandler {
	return &ConceptHandler{
		summaries: summaries,
		detector:  detector,
		logger:    log,
	}
}

// GetSummaries returns one date's concept summaries.
// GET /api/concepts/summary?date=2024-01-15&concept=Banking&min_volume=0&limit=50&sort=volume
func (h *ConceptHandler) GetSummaries(w http.ResponseWriter, r *http.Request) {
	date, err := parseDateParam(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid 'date' format (expected YYYY-MM-DD)")
		return
	}

	filter := contracts.SummaryFilter{
		ConceptName: r.URL.Query().Get("concept"),
	}
	if raw := r.URL.Query().Get("min_volume"); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || v < 0 {
			respondError(w, http.StatusBadRequest, "Invalid 'min_volume' parameter")
			return
		}
		filter.MinVolume = v
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "Invalid 'limit' parameter")
			return
		}
		filter.Limit = n
	}

	sortBy := contracts.SummarySort(r.URL.Query().Get("sort"))
	switch sortBy {
	case "", contracts.SortByVolume, contracts.SortByPercentage, contracts.SortByName:
	default:
		respondError(w, http.StatusBadRequest, "Invalid 'sort' parameter")
		return
	}

	summaries, err := h.summaries.GetSummaries(r.Context(), date, filter, sortBy)
	if err != nil {
		h.logger.WithError(err).Error("Failed to query summaries")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve summaries")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"date":      date.Format(contracts.DateFormat),
		"summaries": summaries,
		"count":     len(summaries),
	})
}

// GetRankings returns one concept's intra-concept stock ranking.
// GET /api/concepts/{concept}/rankings?date=2024-01-15
func (h *ConceptHandler) GetRankings(w http.ResponseWriter, r *http.Request) {
	concept := mux.Vars(r)["concept"]

	date, err := parseDateParam(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid 'date' format (expected YYYY-MM-DD)")
		return
	}

	rankings, err := h.summaries.GetRankings(r.Context(), concept, date)
	if err != nil {
		h.logger.WithError(err).Errorf("Failed to query rankings for %s", concept)
		respondError(w, http.StatusInternalServerError, "Failed to retrieve rankings")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"concept":  concept,
		"date":     date.Format(contracts.DateFormat),
		"rankings": rankings,
		"count":    len(rankings),
	})
}

// GetStockConcepts is the reverse lookup: which concepts a stock
// appeared in on a date, with rank and volume.
// GET /api/stocks/{code}/concepts?date=2024-01-15
func (h *ConceptHandler) GetStockConcepts(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]

	date, err := parseDateParam(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid 'date' format (expected YYYY-MM-DD)")
		return
	}

	concepts, err := h.summaries.GetStockConcepts(r.Context(), code, date)
	if err != nil {
		h.logger.WithError(err).Errorf("Failed to query concepts for %s", code)
		respondError(w, http.StatusInternalServerError, "Failed to retrieve stock concepts")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"stock_code": code,
		"date":       date.Format(contracts.DateFormat),
		"concepts":   concepts,
		"count":      len(concepts),
	})
}

// GetInnovationHighs returns the concepts at a rolling-window volume
// maximum on the given date.
// GET /api/concepts/highs?date=2024-01-15&window=30
func (h *ConceptHandler) GetInnovationHighs(w http.ResponseWriter, r *http.Request) {
	date, err := parseDateParam(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid 'date' format (expected YYYY-MM-DD)")
		return
	}

	window := 0
	if raw := r.URL.Query().Get("window"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 2 || n > 365 {
			respondError(w, http.StatusBadRequest, "Invalid 'window' parameter (expected 2-365 days)")
			return
		}
		window = n
	}

	highs, err := h.detector.FindInnovationHighs(r.Context(), date, window)
	if err != nil {
		h.logger.WithError(err).Error("Failed to detect innovation highs")
		respondError(w, http.StatusInternalServerError, "Failed to detect innovation highs")
		return
	}

	if window == 0 {
		window = h.detector.DefaultWindowDays()
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"date":        date.Format(contracts.DateFormat),
		"window_days": window,
		"highs":       highs,
		"count":       len(highs),
	})
}
