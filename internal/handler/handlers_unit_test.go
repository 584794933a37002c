package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crop-outbreaks/internal/geo"
	"crop-outbreaks/internal/model"
	"crop-outbreaks/internal/service"
)

type fakeOutbreakService struct {
	healthErr  *service.HealthError
	shared     *model.Report
	shareErr   error
	result     service.Result
	alerts     []model.OutbreakAlert
	alertsErr  error
	alertLimit int
}

func (f *fakeOutbreakService) ShareReport(_ context.Context, r model.Report) (model.Report, service.Result, error) {
	f.shared = &r
	if f.shareErr != nil {
		return model.Report{}, service.Result{}, f.shareErr
	}
	r.ID = "report-1"
	return r, f.result, nil
}

func (f *fakeOutbreakService) RecentAlerts(_ context.Context, limit int) ([]model.OutbreakAlert, error) {
	f.alertLimit = limit
	return f.alerts, f.alertsErr
}

func (f *fakeOutbreakService) HealthCheck(context.Context) *service.HealthError {
	return f.healthErr
}

func newTestHandler(svc *fakeOutbreakService) http.Handler {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return NewHandler(logger, svc).Routes()
}

func serve(h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestHealthHandler_OK(t *testing.T) {
	w := serve(newTestHandler(&fakeOutbreakService{}), http.MethodGet, "/api/v1/system/health", "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","db":"ok","redis":"ok"}`, w.Body.String())
}

func TestHealthHandler_Degraded(t *testing.T) {
	svc := &fakeOutbreakService{
		healthErr: &service.HealthError{DBError: errors.New("db error")},
	}
	w := serve(newTestHandler(svc), http.MethodGet, "/api/v1/system/health", "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"degraded","db":"error","redis":"ok"}`, w.Body.String())
}

func TestShareReportHandler_Created(t *testing.T) {
	svc := &fakeOutbreakService{result: service.Result{Status: service.StatusNoOutbreak, Message: "Isolated case."}}
	body := `{"user_id":"farmer","disease_label":"Cassava___mosaic","confidence":0.9,"latitude":1.5,"longitude":2.5}`

	w := serve(newTestHandler(svc), http.MethodPost, "/api/v1/reports", body)

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	require.NotNil(t, svc.shared)
	assert.Equal(t, "farmer", svc.shared.CreatedBy)
	assert.Equal(t, &geo.Point{Lat: 1.5, Lng: 2.5}, svc.shared.Location)

	var resp struct {
		Report   model.Report   `json:"report"`
		Outbreak service.Result `json:"outbreak"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "report-1", resp.Report.ID)
	assert.Equal(t, service.StatusNoOutbreak, resp.Outbreak.Status)
	assert.Equal(t, "Isolated case.", resp.Outbreak.Message)
}

func TestShareReportHandler_WithoutCoordinates(t *testing.T) {
	svc := &fakeOutbreakService{result: service.Result{Status: service.StatusSkipped}}
	body := `{"user_id":"farmer","disease_label":"Cassava___mosaic","confidence":0.9}`

	w := serve(newTestHandler(svc), http.MethodPost, "/api/v1/reports", body)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Nil(t, svc.shared.Location)
}

func TestShareReportHandler_SingleCoordinateRejected(t *testing.T) {
	svc := &fakeOutbreakService{}
	body := `{"user_id":"farmer","disease_label":"Cassava___mosaic","confidence":0.9,"latitude":1.5}`

	w := serve(newTestHandler(svc), http.MethodPost, "/api/v1/reports", body)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "latitude and longitude must be given together")
	assert.Nil(t, svc.shared, "nothing is shared")
}

func TestShareReportHandler_Errors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		err    error
		status int
	}{
		{"malformed json", `{"user_id":`, nil, http.StatusBadRequest},
		{"invalid report", `{"user_id":"u"}`, pkgerrors.Wrap(service.ErrInvalidReport, "disease label is required"), http.StatusBadRequest},
		{"store failure", `{"user_id":"u","disease_label":"x"}`, errors.New("db gone"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(newTestHandler(&fakeOutbreakService{shareErr: tt.err}), http.MethodPost, "/api/v1/reports", tt.body)
			assert.Equal(t, tt.status, w.Code)
		})
	}
}

func TestAlertsHandler(t *testing.T) {
	svc := &fakeOutbreakService{alerts: []model.OutbreakAlert{{ID: "a1", DiseaseLabel: "x", RadiusKm: 5}}}
	h := newTestHandler(svc)

	w := serve(h, http.MethodGet, "/api/v1/alerts?limit=10", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 10, svc.alertLimit)

	var alerts []model.OutbreakAlert
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &alerts))
	require.Len(t, alerts, 1)
	assert.Equal(t, "a1", alerts[0].ID)

	w = serve(h, http.MethodGet, "/api/v1/alerts", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Zero(t, svc.alertLimit)

	w = serve(h, http.MethodGet, "/api/v1/alerts?limit=abc", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	svc.alertsErr = errors.New("boom")
	w = serve(h, http.MethodGet, "/api/v1/alerts", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestRoutes_MethodNotAllowed(t *testing.T) {
	w := serve(newTestHandler(&fakeOutbreakService{}), http.MethodGet, "/api/v1/reports", "")
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}
