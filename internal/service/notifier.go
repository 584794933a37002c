package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"crop-outbreaks/internal/disease"
	"crop-outbreaks/internal/feed"
	"crop-outbreaks/internal/geo"
	"crop-outbreaks/internal/model"
)

var ErrNoLocation = errors.New("device location unavailable")

// Locator provides the device's current position.
type Locator interface {
	Locate(ctx context.Context) (geo.Point, error)
}

// StaticLocator always answers with a fixed point, or ErrNoLocation when none is set.
type StaticLocator struct {
	Point *geo.Point
}

func (l StaticLocator) Locate(ctx context.Context) (geo.Point, error) {
	if l.Point == nil {
		return geo.Point{}, ErrNoLocation
	}
	return *l.Point, nil
}

type Notification struct {
	AlertID    string
	Title      string
	Body       string
	DistanceKm float64
}

// Sink shows a notification to the user.
type Sink interface {
	Notify(n Notification)
}

type LogSink struct {
	Logger *logrus.Logger
}

func (s LogSink) Notify(n Notification) {
	s.Logger.WithFields(logrus.Fields{
		"alert_id":    n.AlertID,
		"distance_km": fmt.Sprintf("%.1f", n.DistanceKm),
	}).Infof("%s: %s", n.Title, n.Body)
}

// Notifier turns alert insert events into local notifications for alerts covering the
// device. Each alert is shown at most once per process.
type Notifier struct {
	broker        feed.Broker
	locator       Locator
	sink          Sink
	logger        *logrus.Logger
	locateTimeout time.Duration

	mu       sync.Mutex
	location *geo.Point
	seen     map[string]struct{}
}

func NewNotifier(broker feed.Broker, locator Locator, sink Sink, logger *logrus.Logger, locateTimeout time.Duration) *Notifier {
	return &Notifier{
		broker:        broker,
		locator:       locator,
		sink:          sink,
		logger:        logger,
		locateTimeout: locateTimeout,
		seen:          make(map[string]struct{}),
	}
}

// Run resolves the device location once, then listens until ctx is done.
// Without a location nothing is subscribed.
func (n *Notifier) Run(ctx context.Context) error {
	locateCtx, cancel := context.WithTimeout(ctx, n.locateTimeout)
	point, err := n.locator.Locate(locateCtx)
	cancel()
	if err != nil {
		n.logger.WithError(err).Warn("no device location, outbreak notifications disabled")
		<-ctx.Done()
		return nil
	}
	n.SetLocation(point)

	sub, err := feed.Subscribe[model.OutbreakAlert](ctx, n.broker, feed.TopicAlerts, n.logger)
	if err != nil {
		return err
	}
	defer sub.Close()

	n.logger.WithFields(logrus.Fields{"lat": point.Lat, "lng": point.Lng}).Info("listening for outbreak alerts")
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-sub.Events():
			if !ok {
				return errors.New("outbreak alert feed closed")
			}
			n.Handle(ev.Record)
		}
	}
}

// SetLocation replaces the device position used for later alerts.
func (n *Notifier) SetLocation(p geo.Point) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.location = &p
}

// Handle notifies about alert when it is new, an outbreak, and covers the device.
// An alert outside the radius is not marked seen, so a later move into range still
// produces a notification. The sink is called without holding the lock.
func (n *Notifier) Handle(alert model.OutbreakAlert) bool {
	note, ok := n.claim(alert)
	if !ok {
		return false
	}
	n.sink.Notify(note)
	return true
}

func (n *Notifier) claim(alert model.OutbreakAlert) (Notification, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if !alert.IsOutbreak || n.location == nil {
		return Notification{}, false
	}
	if _, ok := n.seen[alert.ID]; ok {
		return Notification{}, false
	}

	distance := geo.DistanceKm(*n.location, alert.Location)
	if distance > alert.RadiusKm {
		return Notification{}, false
	}
	n.seen[alert.ID] = struct{}{}

	return Notification{
		AlertID:    alert.ID,
		Title:      "Potential outbreak nearby: " + disease.DisplayName(alert.DiseaseLabel),
		Body:       fmt.Sprintf("%s (%.1f km away)", alert.Summary, distance),
		DistanceKm: distance,
	}, true
}
