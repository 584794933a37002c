package feed

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// RedisBroker carries feed events over Redis PUBLISH/SUBSCRIBE.
type RedisBroker struct {
	client *redis.Client
}

func NewRedisBroker(client *redis.Client) *RedisBroker {
	return &RedisBroker{client: client}
}

func (b *RedisBroker) Publish(ctx context.Context, topic string, payload []byte) error {
	return b.client.Publish(ctx, topic, payload).Err()
}

func (b *RedisBroker) Subscribe(ctx context.Context, topic string) (Stream, error) {
	ps := b.client.Subscribe(ctx, topic)

	// wait for the subscription confirmation so no publish is missed afterwards
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, errors.Wrap(err, "redis subscribe")
	}

	s := &redisStream{
		ps:       ps,
		messages: make(chan []byte),
		done:     make(chan struct{}),
	}
	go s.forward()
	return s, nil
}

type redisStream struct {
	ps       *redis.PubSub
	messages chan []byte
	done     chan struct{}
	once     sync.Once
}

func (s *redisStream) Messages() <-chan []byte {
	return s.messages
}

func (s *redisStream) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.ps.Close()
	})
	return err
}

func (s *redisStream) forward() {
	defer close(s.messages)

	ch := s.ps.Channel()
	for {
		select {
		case <-s.done:
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			select {
			case s.messages <- []byte(msg.Payload):
			case <-s.done:
				return
			}
		}
	}
}
