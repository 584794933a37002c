package service

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"crop-outbreaks/internal/codec"
	"crop-outbreaks/internal/feed"
	"crop-outbreaks/internal/model"
	"crop-outbreaks/internal/repository"
)

const (
	DefaultAlertPageSize = 50
	MaxAlertPageSize     = repository.MaxPageSize
)

// HealthError carries the failing components; a nil field is healthy.
type HealthError struct {
	DBError    error
	RedisError error
}

func (e *HealthError) Error() string {
	var parts []string
	if e.DBError != nil {
		parts = append(parts, "db: "+e.DBError.Error())
	}
	if e.RedisError != nil {
		parts = append(parts, "redis: "+e.RedisError.Error())
	}
	return strings.Join(parts, "; ")
}

type Pinger interface {
	Ping(ctx context.Context) (dbErr, redisErr error)
}

// Service is the share flow behind the HTTP API.
type Service struct {
	reports      repository.ReportStore
	alerts       repository.AlertRepository
	evaluator    *Evaluator
	pinger       Pinger
	logger       *logrus.Logger
	storeTimeout time.Duration

	broker   feed.Broker
	deferred bool
}

func NewService(reports repository.ReportStore, alerts repository.AlertRepository, evaluator *Evaluator, pinger Pinger, logger *logrus.Logger, storeTimeout time.Duration) *Service {
	return &Service{
		reports:      reports,
		alerts:       alerts,
		evaluator:    evaluator,
		pinger:       pinger,
		logger:       logger,
		storeTimeout: storeTimeout,
	}
}

// WithFeed publishes every shared report to the reports topic. With deferred set the
// evaluation is left to a ReportWorker instead of running inline.
func (s *Service) WithFeed(broker feed.Broker, deferred bool) *Service {
	s.broker = broker
	s.deferred = deferred
	return s
}

// ShareReport stores the report and evaluates it. The evaluation outcome never fails the
// share: the error return is for invalid input and the report insert only.
func (s *Service) ShareReport(ctx context.Context, report model.Report) (model.Report, Result, error) {
	if err := validateReport(report); err != nil {
		return model.Report{}, Result{}, err
	}

	insertCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()
	stored, err := s.reports.Insert(insertCtx, report)
	if err != nil {
		return model.Report{}, Result{}, errors.Wrap(err, "insert report")
	}

	log := s.logger.WithField("report_id", stored.ID)
	if s.broker != nil {
		if err := feed.PublishInsert(ctx, s.broker, feed.TopicReports, stored); err != nil {
			log.WithError(err).Warn("report insert event not published")
		}
	}

	if s.deferred && s.broker != nil {
		log.Debug("outbreak evaluation left to the report worker")
		return stored, Result{Status: StatusSkipped, Message: "Outbreak evaluation queued."}, nil
	}
	return stored, s.evaluator.Evaluate(ctx, stored), nil
}

// RecentAlerts lists the alert log newest first.
func (s *Service) RecentAlerts(ctx context.Context, limit int) ([]model.OutbreakAlert, error) {
	switch {
	case limit <= 0:
		limit = DefaultAlertPageSize
	case limit > MaxAlertPageSize:
		limit = MaxAlertPageSize
	}

	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()
	alerts, err := s.alerts.Query(ctx, repository.GeoQuery{Limit: limit})
	if err != nil {
		return nil, errors.Wrap(err, "list alerts")
	}
	if alerts == nil {
		alerts = []model.OutbreakAlert{}
	}
	return alerts, nil
}

func (s *Service) HealthCheck(ctx context.Context) *HealthError {
	if s.pinger == nil {
		return nil
	}
	dbErr, redisErr := s.pinger.Ping(ctx)
	if dbErr == nil && redisErr == nil {
		return nil
	}
	return &HealthError{DBError: dbErr, RedisError: redisErr}
}

func validateReport(r model.Report) error {
	if strings.TrimSpace(r.CreatedBy) == "" {
		return errors.Wrap(ErrInvalidReport, "user is required")
	}
	if strings.TrimSpace(r.DiseaseLabel) == "" {
		return errors.Wrap(ErrInvalidReport, "disease label is required")
	}
	if math.IsNaN(r.Confidence) || r.Confidence < 0 || r.Confidence > 1 {
		return errors.Wrapf(ErrInvalidReport, "confidence %v outside [0, 1]", r.Confidence)
	}
	if codec.IsEncoded(r.Notes) {
		return errors.Wrap(ErrInvalidReport, "notes must not start with the alert marker")
	}
	if r.Location != nil {
		if err := r.Location.Validate(); err != nil {
			return errors.Wrap(ErrInvalidReport, err.Error())
		}
	}
	return nil
}
