package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"crop-outbreaks/internal/geo"
	"crop-outbreaks/internal/model"
)

// whereClause renders the GeoQuery filters. Placeholders are numbered from 1 and the
// LIMIT value is always the last argument.
func whereClause(q GeoQuery, labelColumn string, withNotes bool) (string, []any) {
	var conds []string
	var args []any
	add := func(column, op string, val any) {
		args = append(args, val)
		conds = append(conds, fmt.Sprintf("%s %s $%d", column, op, len(args)))
	}

	if !q.Since.IsZero() {
		add("created_at", ">=", q.Since.UTC())
	}
	if q.Box != nil {
		conds = append(conds, "lat IS NOT NULL", "lng IS NOT NULL")
		add("lat", ">=", q.Box.MinLat)
		add("lat", "<=", q.Box.MaxLat)
		add("lng", ">=", q.Box.MinLng)
		add("lng", "<=", q.Box.MaxLng)
	}
	if q.Label != "" {
		add(labelColumn, "=", q.Label)
	}
	if withNotes && q.NotesPrefix != "" {
		args = append(args, q.NotesPrefix)
		conds = append(conds, fmt.Sprintf("strpos(notes, $%d) = 1", len(args)))
	}
	if withNotes && q.ExcludeNotesPrefix != "" {
		args = append(args, q.ExcludeNotesPrefix)
		conds = append(conds, fmt.Sprintf("(notes IS NULL OR strpos(notes, $%d) <> 1)", len(args)))
	}

	clause := ""
	if len(conds) > 0 {
		clause = "WHERE " + strings.Join(conds, " AND ")
	}
	args = append(args, q.limit())
	return fmt.Sprintf("%s\nORDER BY created_at DESC\nLIMIT $%d", clause, len(args)), args
}

func nullablePoint(p *geo.Point) (lat, lng sql.NullFloat64) {
	if p == nil {
		return lat, lng
	}
	return sql.NullFloat64{Float64: p.Lat, Valid: true}, sql.NullFloat64{Float64: p.Lng, Valid: true}
}

type PostgresReportStore struct {
	db *sql.DB
}

func NewPostgresReportStore(db *sql.DB) *PostgresReportStore {
	return &PostgresReportStore{db: db}
}

func (s *PostgresReportStore) Insert(ctx context.Context, r model.Report) (model.Report, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	lat, lng := nullablePoint(r.Location)

	query := `
INSERT INTO reports (id, user_id, predicted_label, confidence, notes, lat, lng)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING created_at;
`
	row := s.db.QueryRowContext(ctx, query,
		r.ID,
		r.CreatedBy,
		r.DiseaseLabel,
		r.Confidence,
		r.Notes,
		lat,
		lng,
	)
	if err := row.Scan(&r.CreatedAt); err != nil {
		return model.Report{}, errors.Wrap(err, "insert report")
	}
	return r, nil
}

func (s *PostgresReportStore) Query(ctx context.Context, q GeoQuery) ([]model.Report, error) {
	where, args := whereClause(q, "predicted_label", true)
	query := `
SELECT id, user_id, predicted_label, confidence, notes, lat, lng, created_at
FROM reports
` + where

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "query reports")
	}
	defer rows.Close()

	var result []model.Report
	for rows.Next() {
		var (
			r        model.Report
			notes    sql.NullString
			lat, lng sql.NullFloat64
		)
		if err := rows.Scan(
			&r.ID,
			&r.CreatedBy,
			&r.DiseaseLabel,
			&r.Confidence,
			&notes,
			&lat,
			&lng,
			&r.CreatedAt,
		); err != nil {
			return nil, errors.Wrap(err, "scan report")
		}
		if notes.Valid {
			r.Notes = &notes.String
		}
		if lat.Valid && lng.Valid {
			r.Location = &geo.Point{Lat: lat.Float64, Lng: lng.Float64}
		}
		result = append(result, r)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate reports")
	}
	return result, nil
}

type PostgresAlertStore struct {
	db *sql.DB
}

func NewPostgresAlertStore(db *sql.DB) *PostgresAlertStore {
	return &PostgresAlertStore{db: db}
}

func (s *PostgresAlertStore) Insert(ctx context.Context, a model.OutbreakAlert) (model.OutbreakAlert, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}

	query := `
INSERT INTO outbreak_alerts (id, source_report_id, created_by, disease_label, summary, is_outbreak,
    severity, lat, lng, radius_km, nearby_count, evaluated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
RETURNING created_at;
`
	row := s.db.QueryRowContext(ctx, query,
		a.ID,
		a.SourceReportID,
		a.CreatedBy,
		a.DiseaseLabel,
		a.Summary,
		a.IsOutbreak,
		a.Severity,
		a.Location.Lat,
		a.Location.Lng,
		a.RadiusKm,
		a.NearbyCount,
		a.EvaluatedAt.UTC(),
	)
	if err := row.Scan(&a.CreatedAt); err != nil {
		return model.OutbreakAlert{}, errors.Wrap(err, "insert outbreak alert")
	}
	return a, nil
}

func (s *PostgresAlertStore) Query(ctx context.Context, q GeoQuery) ([]model.OutbreakAlert, error) {
	where, args := whereClause(q, "disease_label", false)
	query := `
SELECT id, source_report_id, created_by, disease_label, summary, is_outbreak,
    severity, lat, lng, radius_km, nearby_count, evaluated_at, created_at
FROM outbreak_alerts
` + where

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "query outbreak alerts")
	}
	defer rows.Close()

	var result []model.OutbreakAlert
	for rows.Next() {
		var (
			a        model.OutbreakAlert
			severity sql.NullString
		)
		if err := rows.Scan(
			&a.ID,
			&a.SourceReportID,
			&a.CreatedBy,
			&a.DiseaseLabel,
			&a.Summary,
			&a.IsOutbreak,
			&severity,
			&a.Location.Lat,
			&a.Location.Lng,
			&a.RadiusKm,
			&a.NearbyCount,
			&a.EvaluatedAt,
			&a.CreatedAt,
		); err != nil {
			return nil, errors.Wrap(err, "scan outbreak alert")
		}
		if severity.Valid {
			a.Severity = &severity.String
		}
		result = append(result, a)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate outbreak alerts")
	}
	return result, nil
}
