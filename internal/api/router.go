package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/zhangwt/voltrend/backend/internal/api/handlers"
	"github.com/zhangwt/voltrend/backend/pkg/database"
	"github.com/zhangwt/voltrend/backend/pkg/logger"
)

// NewRouter creates and configures the HTTP router
func NewRouter(
	importHandler *handlers.ImportHandler,
	conceptHandler *handlers.ConceptHandler,
	recalcHandler *handlers.RecalcHandler,
	db *database.DB,
	log *logger.Logger,
) http.Handler {
	r := mux.NewRouter()

	// Health check
	r.HandleFunc("/health", healthCheckHandler(db)).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()

	// Import endpoints
	api.HandleFunc("/import", importHandler.StartImport).Methods("POST")
	api.HandleFunc("/import/jobs", importHandler.ListJobs).Methods("GET")
	api.HandleFunc("/import/{jobID}", importHandler.GetProgress).Methods("GET")

	// Concept analytics endpoints
	api.HandleFunc("/concepts/summary", conceptHandler.GetSummaries).Methods("GET")
	api.HandleFunc("/concepts/highs", conceptHandler.GetInnovationHighs).Methods("GET")
	api.HandleFunc("/concepts/{concept}/rankings", conceptHandler.GetRankings).Methods("GET")
	api.HandleFunc("/stocks/{code}/concepts", conceptHandler.GetStockConcepts).Methods("GET")

	// Recalculation
	api.HandleFunc("/recalculate", recalcHandler.Recalculate).Methods("POST")

	// Apply middleware
	r.Use(loggingMiddleware(log))
	r.Use(recoveryMiddleware(log))

	return r
}

// healthCheckHandler returns server health including database state
func healthCheckHandler(db *database.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := "ok"
		code := http.StatusOK

		var dbStatus interface{} = "disabled"
		if db != nil {
			health, err := db.HealthCheck(r.Context())
			dbStatus = health
			if err != nil || !health.Healthy {
				status = "degraded"
				code = http.StatusServiceUnavailable
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":   status,
			"service":  "voltrend-api",
			"database": dbStatus,
		})
	}
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			next.ServeHTTP(w, r)

			log.WithFields(map[string]interface{}{
				"method":   r.Method,
				"path":     r.URL.Path,
				"duration": time.Since(start),
			}).Debug("HTTP request")
		})
	}
}

// recoveryMiddleware recovers from panics
func recoveryMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.WithFields(map[string]interface{}{
						"error": err,
						"path":  r.URL.Path,
					}).Error("Panic recovered")

					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					json.NewEncoder(w).Encode(map[string]string{
						"error": "Internal server error",
					})
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
