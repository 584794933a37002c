package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"crop-outbreaks/internal/model"
	"crop-outbreaks/internal/service"
)

type OutbreakService interface {
	ShareReport(ctx context.Context, report model.Report) (model.Report, service.Result, error)
	RecentAlerts(ctx context.Context, limit int) ([]model.OutbreakAlert, error)
	HealthCheck(ctx context.Context) *service.HealthError
}

type Handler struct {
	logger  *logrus.Logger
	service OutbreakService
}

func NewHandler(logger *logrus.Logger, svc OutbreakService) *Handler {
	return &Handler{
		logger:  logger,
		service: svc,
	}
}

type shareResponse struct {
	Report   model.Report   `json:"report"`
	Outbreak service.Result `json:"outbreak"`
}

type healthResponse struct {
	Status string `json:"status"`
	DB     string `json:"db"`
	Redis  string `json:"redis"`
}

// Routes mounts the API under /api/v1.
func (h *Handler) Routes() *mux.Router {
	router := mux.NewRouter()
	router.Use(h.logRequests)

	api := router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/reports", h.ShareReportHandler).Methods(http.MethodPost)
	api.HandleFunc("/alerts", h.AlertsHandler).Methods(http.MethodGet)
	api.HandleFunc("/system/health", h.HealthHandler).Methods(http.MethodGet)
	return router
}

func (h *Handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		h.logger.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"duration": time.Since(start),
		}).Debug("request served")
	})
}

func (h *Handler) ShareReportHandler(w http.ResponseWriter, r *http.Request) {
	var req model.ShareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WithError(err).Info("Invalid request body in ShareReportHandler")
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	report, err := req.Report()
	if err != nil {
		http.Error(w, errors.Wrap(service.ErrInvalidReport, err.Error()).Error(), http.StatusBadRequest)
		return
	}

	report, outcome, err := h.service.ShareReport(r.Context(), report)
	if errors.Is(err, service.ErrInvalidReport) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err != nil {
		h.logger.WithError(err).Error("failed to share report")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusCreated, shareResponse{Report: report, Outbreak: outcome})
}

func (h *Handler) AlertsHandler(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			http.Error(w, "limit must be a non-negative integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	alerts, err := h.service.RecentAlerts(r.Context(), limit)
	if err != nil {
		h.logger.WithError(err).Error("failed to list outbreak alerts")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, alerts)
}

func (h *Handler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", DB: "ok", Redis: "ok"}
	if herr := h.service.HealthCheck(r.Context()); herr != nil {
		resp.Status = "degraded"
		if herr.DBError != nil {
			resp.DB = "error"
			h.logger.WithError(herr.DBError).Warn("database health check failed")
		}
		if herr.RedisError != nil {
			resp.Redis = "error"
			h.logger.WithError(herr.RedisError).Warn("redis health check failed")
		}
	}

	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.WithError(err).Error("failed to write response")
	}
}
