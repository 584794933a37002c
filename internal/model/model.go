package model

import (
	"time"

	"github.com/pkg/errors"

	"crop-outbreaks/internal/geo"
)

// Report is a shared, optionally geotagged disease classification.
type Report struct {
	ID           string     `json:"id"`
	CreatedBy    string     `json:"created_by"`
	DiseaseLabel string     `json:"disease_label"`
	Confidence   float64    `json:"confidence"`
	Notes        *string    `json:"notes,omitempty"`
	Location     *geo.Point `json:"location,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

const (
	SeverityLow    = "low"
	SeverityMedium = "medium"
	SeverityHigh   = "high"
)

// MaxAlertRadiusKm caps the radius of every alert.
const MaxAlertRadiusKm = 100.0

// OutbreakAlert is immutable once created. SourceReportID is a weak reference.
type OutbreakAlert struct {
	ID             string    `json:"id"`
	SourceReportID string    `json:"source_report_id"`
	CreatedBy      string    `json:"created_by"`
	DiseaseLabel   string    `json:"disease_label"`
	Summary        string    `json:"summary"`
	IsOutbreak     bool      `json:"is_outbreak"`
	Severity       *string   `json:"severity"`
	Location       geo.Point `json:"location"`
	RadiusKm       float64   `json:"radius_km"`
	NearbyCount    int       `json:"nearby_count"`
	EvaluatedAt    time.Time `json:"evaluated_at"`
	CreatedAt      time.Time `json:"created_at"`
}

type ShareRequest struct {
	UserID       string   `json:"user_id"`
	DiseaseLabel string   `json:"disease_label"`
	Confidence   float64  `json:"confidence"`
	Notes        *string  `json:"notes,omitempty"`
	Latitude     *float64 `json:"latitude,omitempty"`
	Longitude    *float64 `json:"longitude,omitempty"`
}

var ErrIncompleteLocation = errors.New("latitude and longitude must be given together")

// Report converts the request. Coordinates are all or nothing.
func (r ShareRequest) Report() (Report, error) {
	rep := Report{
		CreatedBy:    r.UserID,
		DiseaseLabel: r.DiseaseLabel,
		Confidence:   r.Confidence,
		Notes:        r.Notes,
	}
	switch {
	case r.Latitude != nil && r.Longitude != nil:
		rep.Location = &geo.Point{Lat: *r.Latitude, Lng: *r.Longitude}
	case r.Latitude != nil || r.Longitude != nil:
		return Report{}, ErrIncompleteLocation
	}
	return rep, nil
}
