package service

import (
	"context"
	"time"

	"crop-outbreaks/internal/codec"
	"crop-outbreaks/internal/geo"
	"crop-outbreaks/internal/model"
	"crop-outbreaks/internal/repository"
)

const (
	DefaultRadiusKm      = 25.0
	DefaultLookbackHours = 72
	DedupeWindowHours    = 6
	// dedupeQueryLimit caps the duplicate-check candidates.
	dedupeQueryLimit = 50
)

// FindNearby returns the geotagged reports created within lookback whose exact distance
// to center is at most radiusKm, newest first. Alert-carrying notes are not scans; the
// query already drops them so they do not count against the page size.
func FindNearby(ctx context.Context, store repository.ReportStore, center geo.Point, radiusKm float64, lookback time.Duration, now time.Time) ([]model.Report, error) {
	box := geo.BoundingBox(center, radiusKm)
	candidates, err := store.Query(ctx, repository.GeoQuery{
		Box:                &box,
		Since:              now.Add(-lookback),
		ExcludeNotesPrefix: codec.Sentinel,
		Limit:              repository.MaxPageSize,
	})
	if err != nil {
		return nil, &StoreQueryError{Op: "nearby reports", Err: err}
	}

	nearby := make([]model.Report, 0, len(candidates))
	for _, r := range candidates {
		if r.Location == nil || codec.IsEncoded(r.Notes) {
			continue
		}
		if geo.DistanceKm(center, *r.Location) <= radiusKm {
			nearby = append(nearby, r)
		}
	}
	return nearby, nil
}

// HasDuplicate reports whether an alert for the same disease created within the dedupe
// window already covers center. Overlap is judged against the tighter of the two radii.
func HasDuplicate(ctx context.Context, alerts repository.AlertRepository, center geo.Point, radiusKm float64, diseaseLabel string, now time.Time) (bool, error) {
	box := geo.BoundingBox(center, radiusKm)
	existing, err := alerts.Query(ctx, repository.GeoQuery{
		Box:   &box,
		Since: now.Add(-DedupeWindowHours * time.Hour),
		Label: diseaseLabel,
		Limit: dedupeQueryLimit,
	})
	if err != nil {
		return false, &StoreQueryError{Op: "duplicate alert", Err: err}
	}

	for _, a := range existing {
		if geo.DistanceKm(center, a.Location) <= min(a.RadiusKm, radiusKm) {
			return true, nil
		}
	}
	return false, nil
}
