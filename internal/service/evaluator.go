package service

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"crop-outbreaks/internal/model"
	"crop-outbreaks/internal/oracle"
	"crop-outbreaks/internal/repository"
)

type Status string

const (
	StatusSkipped    Status = "skipped"
	StatusNoOutbreak Status = "no_outbreak"
	StatusDuplicate  Status = "duplicate"
	StatusCreated    Status = "created"
	StatusError      Status = "error"
)

// Result is the outcome of one evaluation. Every status is non-fatal to the share action.
type Result struct {
	Status  Status               `json:"status"`
	Alert   *model.OutbreakAlert `json:"alert,omitempty"`
	Message string               `json:"message,omitempty"`
}

type Oracle interface {
	Enabled() bool
	Decide(ctx context.Context, req oracle.Request) (oracle.Decision, error)
}

// Evaluator decides whether a freshly shared report starts an outbreak alert.
//
// Two evaluations of the same cluster racing through the duplicate check may both insert
// an alert. No lock guards this; the dedupe window bounds it.
type Evaluator struct {
	reports      repository.ReportStore
	alerts       repository.AlertRepository
	oracle       Oracle
	logger       *logrus.Logger
	storeTimeout time.Duration
	now          func() time.Time
}

func NewEvaluator(reports repository.ReportStore, alerts repository.AlertRepository, o Oracle, logger *logrus.Logger, storeTimeout time.Duration) *Evaluator {
	return &Evaluator{
		reports:      reports,
		alerts:       alerts,
		oracle:       o,
		logger:       logger,
		storeTimeout: storeTimeout,
		now:          time.Now,
	}
}

func (e *Evaluator) Evaluate(ctx context.Context, report model.Report) (res Result) {
	if report.Location == nil {
		return Result{Status: StatusSkipped, Message: "Scan has no location coordinates."}
	}
	if e.oracle == nil || !e.oracle.Enabled() {
		return Result{Status: StatusSkipped, Message: "No outbreak webhook URL configured."}
	}

	log := e.logger.WithField("report_id", report.ID)
	defer func() {
		if r := recover(); r != nil {
			log.WithField("panic", r).Error("outbreak evaluation panicked")
			res = Result{Status: StatusError, Message: fmt.Sprintf("Failed to evaluate outbreak risk: %v", r)}
		}
	}()

	res, err := e.evaluate(ctx, report)
	if err != nil {
		log.WithError(err).Warn("outbreak evaluation failed")
		return Result{Status: StatusError, Message: err.Error()}
	}

	log.WithField("status", res.Status).Info("outbreak evaluation finished")
	return res
}

func (e *Evaluator) evaluate(ctx context.Context, report model.Report) (Result, error) {
	center := *report.Location
	now := e.now()

	nearby, err := e.findNearby(ctx, report, now)
	if err != nil {
		return Result{}, err
	}

	req := oracle.NewRequest(report, nearby, oracle.RequestConfig{
		LookbackHours:   DefaultLookbackHours,
		DefaultRadiusKm: DefaultRadiusKm,
	}, now)
	decision, err := e.oracle.Decide(ctx, req)
	if err != nil {
		return Result{}, err
	}

	if !decision.Outbreak {
		return Result{Status: StatusNoOutbreak, Message: decision.Summary}, nil
	}

	dupCtx, cancel := context.WithTimeout(ctx, e.storeTimeout)
	defer cancel()
	duplicate, err := HasDuplicate(dupCtx, e.alerts, center, decision.RadiusKm, decision.DiseaseLabel, now)
	if err != nil {
		return Result{}, err
	}
	if duplicate {
		return Result{Status: StatusDuplicate, Message: "Similar outbreak alert already exists nearby."}, nil
	}

	insertCtx, cancelInsert := context.WithTimeout(ctx, e.storeTimeout)
	defer cancelInsert()
	created, err := e.alerts.Insert(insertCtx, model.OutbreakAlert{
		SourceReportID: report.ID,
		CreatedBy:      report.CreatedBy,
		DiseaseLabel:   decision.DiseaseLabel,
		Summary:        decision.Summary,
		IsOutbreak:     true,
		Severity:       decision.Severity,
		Location:       center,
		RadiusKm:       decision.RadiusKm,
		NearbyCount:    len(nearby),
		EvaluatedAt:    e.now().UTC(),
	})
	if err != nil {
		return Result{}, &PersistenceError{Err: err}
	}

	return Result{Status: StatusCreated, Alert: &created, Message: created.Summary}, nil
}

// findNearby excludes the evaluated report itself, which is already stored when it is shared.
func (e *Evaluator) findNearby(ctx context.Context, report model.Report, now time.Time) ([]model.Report, error) {
	storeCtx, cancel := context.WithTimeout(ctx, e.storeTimeout)
	defer cancel()

	found, err := FindNearby(storeCtx, e.reports, *report.Location, DefaultRadiusKm, DefaultLookbackHours*time.Hour, now)
	if err != nil {
		return nil, err
	}

	nearby := found[:0]
	for _, r := range found {
		if r.ID != report.ID {
			nearby = append(nearby, r)
		}
	}
	return nearby, nil
}
