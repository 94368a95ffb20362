package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/zhangwt/voltrend/backend/internal/contracts"
	"github.com/zhangwt/voltrend/backend/internal/recalc"
	"github.com/zhangwt/voltrend/backend/pkg/logger"
)

// RecalcHandler exposes the recalculation controller.
type RecalcHandler struct {
	controller *recalc.Controller
	logger     *logger.Logger
}

// NewRecalcHandler creates a new recalculation handler
func NewRecalcHandler(controller *recalc.Controller, log *logger.Logger) *RecalcHandler {
	return &RecalcHandler{controller: controller, logger: log}
}

// RecalcRequest is the recalculation request body.
type RecalcRequest struct {
	Date string `json:"date"` // YYYY-MM-DD
}

// Recalculate rebuilds one date's summaries and rankings from stored
// canonical records.
// POST /api/recalculate {"date": "2024-01-15"}
func (h *RecalcHandler) Recalculate(w http.ResponseWriter, r *http.Request) {
	var req RecalcRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	date, err := time.Parse(contracts.DateFormat, req.Date)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid 'date' format (expected YYYY-MM-DD)")
		return
	}

	stats, err := h.controller.Recalculate(r.Context(), date)
	if err != nil {
		if errors.Is(err, contracts.ErrNoData) {
			respondError(w, http.StatusNotFound, "No records stored for that date")
			return
		}
		h.logger.WithError(err).Errorf("Recalculation of %s failed", req.Date)
		respondError(w, http.StatusInternalServerError, "Recalculation failed")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"date":  req.Date,
		"stats": stats,
	})
}
