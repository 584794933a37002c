package feed

import (
	"context"
	"sync"
)

const memoryBuffer = 64

// MemoryBroker is an in-process Broker. Slow subscribers lose messages once their buffer fills.
type MemoryBroker struct {
	mu   sync.RWMutex
	subs map[string]map[*memoryStream]struct{}
}

func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{subs: make(map[string]map[*memoryStream]struct{})}
}

func (b *MemoryBroker) Publish(_ context.Context, topic string, payload []byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for s := range b.subs[topic] {
		msg := append([]byte(nil), payload...)
		select {
		case s.messages <- msg:
		default:
		}
	}
	return nil
}

func (b *MemoryBroker) Subscribe(_ context.Context, topic string) (Stream, error) {
	s := &memoryStream{
		broker:   b,
		topic:    topic,
		messages: make(chan []byte, memoryBuffer),
	}

	b.mu.Lock()
	if b.subs[topic] == nil {
		b.subs[topic] = make(map[*memoryStream]struct{})
	}
	b.subs[topic][s] = struct{}{}
	b.mu.Unlock()

	return s, nil
}

func (b *MemoryBroker) remove(s *memoryStream) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subs[s.topic][s]; !ok {
		return
	}
	delete(b.subs[s.topic], s)
	close(s.messages)
}

type memoryStream struct {
	broker   *MemoryBroker
	topic    string
	messages chan []byte
}

func (s *memoryStream) Messages() <-chan []byte {
	return s.messages
}

func (s *memoryStream) Close() error {
	s.broker.remove(s)
	return nil
}
