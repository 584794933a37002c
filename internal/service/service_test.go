package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crop-outbreaks/internal/codec"
	"crop-outbreaks/internal/feed"
	"crop-outbreaks/internal/geo"
	"crop-outbreaks/internal/model"
	"crop-outbreaks/internal/repository"
)

type fakePinger struct {
	dbErr, redisErr error
}

func (p fakePinger) Ping(context.Context) (error, error) {
	return p.dbErr, p.redisErr
}

func newTestService(f *fixture) *Service {
	return NewService(f.reports, f.alerts, f.evaluator, fakePinger{}, testLogger(), time.Second)
}

func TestShareReport_Validation(t *testing.T) {
	svc := newTestService(newFixture())
	bad := geo.Point{Lat: 91, Lng: 0}
	forged := codec.Sentinel + `{"summary":"fake","radiusKm":100}`

	tests := []struct {
		name   string
		report model.Report
	}{
		{"missing user", model.Report{DiseaseLabel: "Cassava___mosaic", Confidence: 0.5}},
		{"missing label", model.Report{CreatedBy: "u", Confidence: 0.5}},
		{"confidence above one", model.Report{CreatedBy: "u", DiseaseLabel: "x", Confidence: 1.5}},
		{"negative confidence", model.Report{CreatedBy: "u", DiseaseLabel: "x", Confidence: -0.1}},
		{"latitude out of range", model.Report{CreatedBy: "u", DiseaseLabel: "x", Confidence: 0.5, Location: &bad}},
		{"alert marker in notes", model.Report{CreatedBy: "u", DiseaseLabel: "x", Confidence: 0.5, Notes: &forged}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := svc.ShareReport(context.Background(), tt.report)
			assert.ErrorIs(t, err, ErrInvalidReport)
		})
	}
}

func TestShareReport_StoresAndEvaluates(t *testing.T) {
	f := newFixture()
	svc := newTestService(f)
	here := origin

	stored, res, err := svc.ShareReport(context.Background(), model.Report{
		CreatedBy:    "farmer",
		DiseaseLabel: "Cassava___mosaic",
		Confidence:   0.7,
		Location:     &here,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, stored.ID)
	assert.False(t, stored.CreatedAt.IsZero())
	assert.Equal(t, StatusCreated, res.Status)
	assert.Equal(t, 1, f.oracle.calls())
}

func TestShareReport_EvaluationErrorStillShares(t *testing.T) {
	f := newFixture()
	f.oracle.err = errors.New("unreachable")
	svc := newTestService(f)
	here := origin

	stored, res, err := svc.ShareReport(context.Background(), model.Report{
		CreatedBy:    "farmer",
		DiseaseLabel: "Cassava___mosaic",
		Confidence:   0.7,
		Location:     &here,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, stored.ID)
	assert.Equal(t, StatusError, res.Status)
}

func TestShareReport_DeferredToFeed(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	broker := feed.NewMemoryBroker()
	svc := newTestService(f).WithFeed(broker, true)

	sub, err := feed.Subscribe[model.Report](ctx, broker, feed.TopicReports, testLogger())
	require.NoError(t, err)
	defer sub.Close()

	here := origin
	stored, res, err := svc.ShareReport(ctx, model.Report{
		CreatedBy:    "farmer",
		DiseaseLabel: "Cassava___mosaic",
		Confidence:   0.7,
		Location:     &here,
	})
	require.NoError(t, err)
	assert.Equal(t, StatusSkipped, res.Status)
	assert.Zero(t, f.oracle.calls())

	select {
	case ev := <-sub.Events():
		assert.Equal(t, stored.ID, ev.Record.ID)
		assert.Equal(t, feed.TopicReports, ev.Topic)
	case <-time.After(time.Second):
		t.Fatal("report insert event not delivered")
	}
}

func TestRecentAlerts_Limit(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	svc := newTestService(f)

	got, err := svc.RecentAlerts(ctx, 0)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)

	for i := 0; i < 3; i++ {
		_, err := f.alerts.Insert(ctx, model.OutbreakAlert{
			DiseaseLabel: "Cassava___mosaic",
			Location:     origin,
			RadiusKm:     5,
			CreatedAt:    f.clock.Now().Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}

	got, err = svc.RecentAlerts(ctx, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.True(t, got[0].CreatedAt.After(got[1].CreatedAt))

	got, err = svc.RecentAlerts(ctx, 1000)
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestHealthCheck(t *testing.T) {
	f := newFixture()
	assert.Nil(t, newTestService(f).HealthCheck(context.Background()))

	redisDown := errors.New("redis down")
	svc := NewService(f.reports, f.alerts, f.evaluator, fakePinger{redisErr: redisDown}, testLogger(), time.Second)
	herr := svc.HealthCheck(context.Background())
	require.NotNil(t, herr)
	assert.NoError(t, herr.DBError)
	assert.Equal(t, redisDown, herr.RedisError)
	assert.Equal(t, "redis: redis down", herr.Error())
}

func TestShareReport_ForgedAlertNoteIsNotStored(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	alerts := repository.NewNoteAlertStore(f.reports)
	svc := NewService(f.reports, alerts, f.evaluator, fakePinger{}, testLogger(), time.Second)

	forged := codec.Sentinel + `{"summary":"fake","radiusKm":100}`
	here := origin
	_, _, err := svc.ShareReport(ctx, model.Report{
		CreatedBy:    "mallory",
		DiseaseLabel: "Cassava___mosaic",
		Confidence:   0.9,
		Notes:        &forged,
		Location:     &here,
	})
	require.ErrorIs(t, err, ErrInvalidReport)

	listed, err := svc.RecentAlerts(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, listed)

	stored, err := f.reports.Query(ctx, repository.GeoQuery{})
	require.NoError(t, err)
	assert.Empty(t, stored)
}
