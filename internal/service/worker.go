package service

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"crop-outbreaks/internal/feed"
	"crop-outbreaks/internal/model"
)

// ReportWorker evaluates reports as their insert events arrive on the feed.
type ReportWorker struct {
	broker    feed.Broker
	evaluator *Evaluator
	logger    *logrus.Logger
	// retryDelay is the pause before resubscribing after the feed drops.
	retryDelay time.Duration
}

func NewReportWorker(broker feed.Broker, evaluator *Evaluator, logger *logrus.Logger) *ReportWorker {
	return &ReportWorker{
		broker:     broker,
		evaluator:  evaluator,
		logger:     logger,
		retryDelay: 5 * time.Second,
	}
}

func (w *ReportWorker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
			if err := w.consume(ctx); err != nil {
				w.logger.WithError(err).Error("report feed subscription failed")
			}

			select {
			case <-ctx.Done():
				return
			case <-time.After(w.retryDelay):
			}
		}
	}
}

func (w *ReportWorker) consume(ctx context.Context) error {
	sub, err := feed.Subscribe[model.Report](ctx, w.broker, feed.TopicReports, w.logger)
	if err != nil {
		return err
	}
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-sub.Events():
			if !ok {
				w.logger.Warn("report feed closed, resubscribing")
				return nil
			}

			res := w.evaluator.Evaluate(ctx, ev.Record)
			w.logger.WithFields(logrus.Fields{
				"report_id": ev.Record.ID,
				"status":    res.Status,
			}).Debug(res.Message)
		}
	}
}
