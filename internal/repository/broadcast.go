package repository

import (
	"context"

	"github.com/sirupsen/logrus"

	"crop-outbreaks/internal/feed"
	"crop-outbreaks/internal/model"
)

// BroadcastingAlertRepository publishes every inserted alert on feed.TopicAlerts.
type BroadcastingAlertRepository struct {
	AlertRepository
	broker feed.Broker
	logger *logrus.Logger
}

func NewBroadcastingAlertRepository(inner AlertRepository, broker feed.Broker, logger *logrus.Logger) *BroadcastingAlertRepository {
	return &BroadcastingAlertRepository{
		AlertRepository: inner,
		broker:          broker,
		logger:          logger,
	}
}

// Insert never fails because of the feed: the alert is already persisted.
func (r *BroadcastingAlertRepository) Insert(ctx context.Context, a model.OutbreakAlert) (model.OutbreakAlert, error) {
	created, err := r.AlertRepository.Insert(ctx, a)
	if err != nil {
		return created, err
	}

	if err := feed.PublishInsert(ctx, r.broker, feed.TopicAlerts, created); err != nil {
		r.logger.WithError(err).WithField("alert_id", created.ID).Warn("failed to broadcast outbreak alert")
	}
	return created, nil
}
