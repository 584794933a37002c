package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"crop-outbreaks/internal/codec"
	"crop-outbreaks/internal/model"
)

// NoteAlertStore stores alerts as reports whose notes carry a codec payload. It is the
// fallback when no dedicated alert table exists.
type NoteAlertStore struct {
	reports ReportStore
}

func NewNoteAlertStore(reports ReportStore) *NoteAlertStore {
	return &NoteAlertStore{reports: reports}
}

func (s *NoteAlertStore) Insert(ctx context.Context, a model.OutbreakAlert) (model.OutbreakAlert, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}

	notes, err := codec.Encode(codec.PayloadFromAlert(a))
	if err != nil {
		return model.OutbreakAlert{}, errors.Wrap(err, "encode alert note")
	}

	location := a.Location
	stored, err := s.reports.Insert(ctx, model.Report{
		ID:           a.ID,
		CreatedBy:    a.CreatedBy,
		DiseaseLabel: a.DiseaseLabel,
		Notes:        &notes,
		Location:     &location,
	})
	if err != nil {
		return model.OutbreakAlert{}, errors.Wrap(err, "insert alert note")
	}

	view, ok := codec.ReportToAlertView(stored)
	if !ok {
		return model.OutbreakAlert{}, errors.New("stored alert note does not decode")
	}
	return view, nil
}

// Query silently skips reports whose notes do not decode.
func (s *NoteAlertStore) Query(ctx context.Context, q GeoQuery) ([]model.OutbreakAlert, error) {
	q.NotesPrefix = codec.Sentinel
	reports, err := s.reports.Query(ctx, q)
	if err != nil {
		return nil, err
	}

	var out []model.OutbreakAlert
	for _, r := range reports {
		if a, ok := codec.ReportToAlertView(r); ok {
			out = append(out, a)
		}
	}
	return out, nil
}
