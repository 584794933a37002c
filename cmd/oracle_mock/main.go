package main

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"crop-outbreaks/internal/model"
	"crop-outbreaks/internal/oracle"
)

// minCluster is the number of nearby same-label scans that makes an outbreak.
const minCluster = 3

type decision struct {
	Outbreak bool    `json:"outbreak"`
	Summary  string  `json:"summary"`
	Disease  string  `json:"disease"`
	RadiusKm float64 `json:"radiusKm"`
	Severity string  `json:"severity,omitempty"`
}

func decide(req oracle.Request) decision {
	label := req.CurrentScan.PredictedLabel
	matching := 0
	for _, s := range req.NearbyScans {
		if s.PredictedLabel == label {
			matching++
		}
	}

	d := decision{Disease: label, RadiusKm: req.Config.DefaultRadiusKm}
	if matching < minCluster {
		d.Summary = fmt.Sprintf("%d similar scans nearby, no outbreak.", matching)
		return d
	}

	d.Outbreak = true
	d.Summary = fmt.Sprintf("%d similar scans reported within %.0f km.", matching, req.Config.DefaultRadiusKm)
	switch {
	case matching >= 3*minCluster:
		d.Severity = model.SeverityHigh
	case matching >= 2*minCluster:
		d.Severity = model.SeverityMedium
	default:
		d.Severity = model.SeverityLow
	}
	return d
}

func newRouter(logger *logrus.Logger, token string) *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/webhook", func(w http.ResponseWriter, r *http.Request) {
		if token != "" && r.Header.Get(oracle.TokenHeader) != token {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}

		var req oracle.Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			logger.WithError(err).Info("Invalid oracle request body")
			http.Error(w, "Invalid JSON", http.StatusBadRequest)
			return
		}

		d := decide(req)
		logger.WithFields(logrus.Fields{
			"scan_id":  req.CurrentScan.ID,
			"nearby":   len(req.NearbyScans),
			"outbreak": d.Outbreak,
		}).Info("received outbreak evaluation")

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(d)
	}).Methods(http.MethodPost)
	return router
}

func main() {
	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("ORACLE_MOCK_ADDR", ":9090")

	logger := logrus.New()
	addr := v.GetString("ORACLE_MOCK_ADDR")

	logger.Infof("Oracle mock listening on %s", addr)
	logger.Fatal(http.ListenAndServe(addr, newRouter(logger, v.GetString("OUTBREAK_WEBHOOK_TOKEN"))))
}
