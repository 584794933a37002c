package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"crop-outbreaks/internal/model"
)

// MemoryReportStore keeps reports in process. It backs tests and local runs without Postgres.
type MemoryReportStore struct {
	mu      sync.RWMutex
	reports []model.Report
	Now     func() time.Time
}

func NewMemoryReportStore() *MemoryReportStore {
	return &MemoryReportStore{Now: time.Now}
}

// Insert keeps a preset CreatedAt, which lets tests seed history.
func (s *MemoryReportStore) Insert(_ context.Context, r model.Report) (model.Report, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = s.Now().UTC()
	}

	s.mu.Lock()
	s.reports = append(s.reports, r)
	s.mu.Unlock()
	return r, nil
}

func (s *MemoryReportStore) Query(_ context.Context, q GeoQuery) ([]model.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.Report
	for _, r := range s.reports {
		if q.Matches(r.CreatedAt, r.Location, r.DiseaseLabel, r.Notes) {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > q.limit() {
		out = out[:q.limit()]
	}
	return out, nil
}

type MemoryAlertStore struct {
	mu     sync.RWMutex
	alerts []model.OutbreakAlert
	Now    func() time.Time
}

func NewMemoryAlertStore() *MemoryAlertStore {
	return &MemoryAlertStore{Now: time.Now}
}

func (s *MemoryAlertStore) Insert(_ context.Context, a model.OutbreakAlert) (model.OutbreakAlert, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = s.Now().UTC()
	}

	s.mu.Lock()
	s.alerts = append(s.alerts, a)
	s.mu.Unlock()
	return a, nil
}

func (s *MemoryAlertStore) Query(_ context.Context, q GeoQuery) ([]model.OutbreakAlert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q.NotesPrefix, q.ExcludeNotesPrefix = "", ""
	var out []model.OutbreakAlert
	for i := range s.alerts {
		a := s.alerts[i]
		if q.Matches(a.CreatedAt, &a.Location, a.DiseaseLabel, nil) {
			out = append(out, a)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > q.limit() {
		out = out[:q.limit()]
	}
	return out, nil
}

func (s *MemoryAlertStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.alerts)
}
