package repository

import (
	"context"
	"strings"
	"time"

	"crop-outbreaks/internal/geo"
	"crop-outbreaks/internal/model"
)

// MaxPageSize caps every geo/time query.
const MaxPageSize = 200

// GeoQuery is the bounded query shape shared by reports and alerts. Zero fields do not
// filter. Results are ordered newest first.
type GeoQuery struct {
	Box   *geo.Box
	Since time.Time
	// Label matches the disease label exactly.
	Label string
	// NotesPrefix keeps records whose notes start with it. Ignored by alert stores.
	NotesPrefix string
	// ExcludeNotesPrefix drops records whose notes start with it, before the limit applies.
	// Ignored by alert stores.
	ExcludeNotesPrefix string
	Limit              int
}

func (q GeoQuery) limit() int {
	if q.Limit <= 0 || q.Limit > MaxPageSize {
		return MaxPageSize
	}
	return q.Limit
}

// Matches applies the query filters to a single record.
func (q GeoQuery) Matches(createdAt time.Time, loc *geo.Point, label string, notes *string) bool {
	if !q.Since.IsZero() && createdAt.Before(q.Since) {
		return false
	}
	if q.Box != nil && (loc == nil || !q.Box.Contains(*loc)) {
		return false
	}
	if q.Label != "" && label != q.Label {
		return false
	}
	if q.NotesPrefix != "" && (notes == nil || !strings.HasPrefix(*notes, q.NotesPrefix)) {
		return false
	}
	if q.ExcludeNotesPrefix != "" && notes != nil && strings.HasPrefix(*notes, q.ExcludeNotesPrefix) {
		return false
	}
	return true
}

type ReportStore interface {
	Insert(ctx context.Context, r model.Report) (model.Report, error)
	Query(ctx context.Context, q GeoQuery) ([]model.Report, error)
}

// AlertRepository persists outbreak alerts. Insert assigns CreatedAt, and ID when blank.
type AlertRepository interface {
	Insert(ctx context.Context, a model.OutbreakAlert) (model.OutbreakAlert, error)
	Query(ctx context.Context, q GeoQuery) ([]model.OutbreakAlert, error)
}
