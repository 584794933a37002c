// Package feed delivers "record inserted" events over a publish/subscribe transport.
package feed

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	TopicReports = "inserts:reports"
	TopicAlerts  = "inserts:outbreak_alerts"
)

// Broker is the transport. Payloads are opaque bytes.
type Broker interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	Subscribe(ctx context.Context, topic string) (Stream, error)
}

// Stream is a raw subscription; Messages is closed after Close.
type Stream interface {
	Messages() <-chan []byte
	Close() error
}

type InsertEvent[T any] struct {
	Topic       string    `json:"topic"`
	Record      T         `json:"record"`
	PublishedAt time.Time `json:"published_at"`
}

func PublishInsert[T any](ctx context.Context, b Broker, topic string, record T) error {
	raw, err := json.Marshal(InsertEvent[T]{
		Topic:       topic,
		Record:      record,
		PublishedAt: time.Now().UTC(),
	})
	if err != nil {
		return errors.Wrap(err, "marshal insert event")
	}
	return errors.Wrapf(b.Publish(ctx, topic, raw), "publish to %s", topic)
}

// Subscription decodes a Stream into typed insert events.
type Subscription[T any] struct {
	stream Stream
	events chan InsertEvent[T]
	done   chan struct{}
	once   sync.Once
	logger *logrus.Logger
}

func Subscribe[T any](ctx context.Context, b Broker, topic string, logger *logrus.Logger) (*Subscription[T], error) {
	stream, err := b.Subscribe(ctx, topic)
	if err != nil {
		return nil, errors.Wrapf(err, "subscribe to %s", topic)
	}

	s := &Subscription[T]{
		stream: stream,
		events: make(chan InsertEvent[T]),
		done:   make(chan struct{}),
		logger: logger,
	}
	go s.pump(topic)
	return s, nil
}

func (s *Subscription[T]) Events() <-chan InsertEvent[T] {
	return s.events
}

// Close unsubscribes. Events is closed once the pump exits.
func (s *Subscription[T]) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.stream.Close()
	})
	return err
}

func (s *Subscription[T]) pump(topic string) {
	defer close(s.events)

	for {
		select {
		case <-s.done:
			return
		case raw, ok := <-s.stream.Messages():
			if !ok {
				return
			}

			var ev InsertEvent[T]
			if err := json.Unmarshal(raw, &ev); err != nil {
				s.logger.WithError(err).WithField("topic", topic).Warn("dropping malformed feed message")
				continue
			}

			select {
			case s.events <- ev:
			case <-s.done:
				return
			}
		}
	}
}
