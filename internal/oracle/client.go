// Package oracle asks the external outbreak decision service whether a report and its
// nearby context form an outbreak.
package oracle

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"

	"crop-outbreaks/internal/config"
	"crop-outbreaks/internal/model"
)

// TokenHeader carries the optional shared secret.
const TokenHeader = "x-webhook-token"

type Scan struct {
	ID             string    `json:"id"`
	PredictedLabel string    `json:"predictedLabel"`
	Confidence     float64   `json:"confidence"`
	CreatedAt      time.Time `json:"createdAt"`
	Lat            *float64  `json:"lat"`
	Lng            *float64  `json:"lng"`
	UserID         string    `json:"userId,omitempty"`
}

type RequestConfig struct {
	LookbackHours   float64 `json:"lookbackHours"`
	DefaultRadiusKm float64 `json:"defaultRadiusKm"`
}

type Request struct {
	CurrentScan Scan          `json:"currentScan"`
	NearbyScans []Scan        `json:"nearbyScans"`
	Config      RequestConfig `json:"config"`
	GeneratedAt time.Time     `json:"generatedAt"`
}

func toScan(r model.Report) Scan {
	s := Scan{
		ID:             r.ID,
		PredictedLabel: r.DiseaseLabel,
		Confidence:     r.Confidence,
		CreatedAt:      r.CreatedAt,
	}
	if r.Location != nil {
		lat, lng := r.Location.Lat, r.Location.Lng
		s.Lat, s.Lng = &lat, &lng
	}
	return s
}

func NewRequest(report model.Report, nearby []model.Report, cfg RequestConfig, now time.Time) Request {
	scans := make([]Scan, 0, len(nearby))
	for _, n := range nearby {
		s := toScan(n)
		s.UserID = n.CreatedBy
		scans = append(scans, s)
	}
	return Request{
		CurrentScan: toScan(report),
		NearbyScans: scans,
		Config:      cfg,
		GeneratedAt: now.UTC(),
	}
}

// CallFailedError reports a non-2xx answer, or a transport failure when StatusCode is 0.
type CallFailedError struct {
	StatusCode int
	Err        error
}

func (e *CallFailedError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("outbreak oracle call failed (HTTP %d)", e.StatusCode)
	}
	return fmt.Sprintf("outbreak oracle call failed: %v", e.Err)
}

func (e *CallFailedError) Unwrap() error {
	return e.Err
}

type Client struct {
	url    string
	http   *resty.Client
	logger *logrus.Logger
}

func NewClient(cfg config.OracleConfig, logger *logrus.Logger) *Client {
	client := resty.New().
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.Retries).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if cfg.Token != "" {
		client.SetHeader(TokenHeader, cfg.Token)
	}

	return &Client{
		url:    cfg.URL,
		http:   client,
		logger: logger,
	}
}

// Enabled is false when no endpoint is configured.
func (c *Client) Enabled() bool {
	return c.url != ""
}

func (c *Client) Decide(ctx context.Context, req Request) (Decision, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(req).
		Post(c.url)
	if err != nil {
		return Decision{}, &CallFailedError{Err: err}
	}
	if !resp.IsSuccess() {
		return Decision{}, &CallFailedError{StatusCode: resp.StatusCode()}
	}

	decision := ParseDecision(resp.Body(), req.CurrentScan.PredictedLabel)
	c.logger.WithFields(logrus.Fields{
		"report_id": req.CurrentScan.ID,
		"nearby":    len(req.NearbyScans),
		"outbreak":  decision.Outbreak,
		"radius_km": decision.RadiusKm,
		"duration":  resp.Time(),
	}).Debug("outbreak oracle answered")
	return decision, nil
}
