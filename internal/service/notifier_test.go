package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crop-outbreaks/internal/feed"
	"crop-outbreaks/internal/geo"
	"crop-outbreaks/internal/model"
)

type recordingSink struct {
	mu   sync.Mutex
	sent []Notification
}

func (s *recordingSink) Notify(n Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, n)
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

func testAlert(id string, at geo.Point, radiusKm float64) model.OutbreakAlert {
	return model.OutbreakAlert{
		ID:           id,
		DiseaseLabel: "Cassava___mosaic",
		Summary:      "Mosaic cluster reported",
		IsOutbreak:   true,
		Location:     at,
		RadiusKm:     radiusKm,
	}
}

func TestNotifier_Handle(t *testing.T) {
	sink := &recordingSink{}
	n := NewNotifier(feed.NewMemoryBroker(), StaticLocator{}, sink, testLogger(), time.Second)

	alert := testAlert("a1", kmNorth(origin, 3), 5)
	assert.False(t, n.Handle(alert), "no location yet")

	n.SetLocation(origin)
	require.True(t, n.Handle(alert))
	assert.False(t, n.Handle(alert), "already notified")

	require.Len(t, sink.sent, 1)
	got := sink.sent[0]
	assert.Equal(t, "a1", got.AlertID)
	assert.Equal(t, "Potential outbreak nearby: Cassava - mosaic", got.Title)
	assert.Equal(t, "Mosaic cluster reported (3.0 km away)", got.Body)
	assert.InDelta(t, 3, got.DistanceKm, 0.01)
}

func TestNotifier_OutOfRadiusIsNotRemembered(t *testing.T) {
	sink := &recordingSink{}
	n := NewNotifier(feed.NewMemoryBroker(), StaticLocator{}, sink, testLogger(), time.Second)
	alert := testAlert("a2", origin, 5)

	n.SetLocation(kmNorth(origin, 20))
	assert.False(t, n.Handle(alert))

	n.SetLocation(kmNorth(origin, 1))
	assert.True(t, n.Handle(alert), "a later fix inside the radius still notifies")
	assert.Equal(t, 1, sink.count())
}

func TestNotifier_RunDeliversFeedAlertsOnce(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	broker := feed.NewMemoryBroker()
	sink := &recordingSink{}
	here := origin
	n := NewNotifier(broker, StaticLocator{Point: &here}, sink, testLogger(), time.Second)

	done := make(chan error, 1)
	go func() { done <- n.Run(ctx) }()

	alert := testAlert("a3", kmNorth(origin, 2), 10)
	require.Eventually(t, func() bool {
		_ = feed.PublishInsert(ctx, broker, feed.TopicAlerts, alert)
		_ = feed.PublishInsert(ctx, broker, feed.TopicAlerts, testAlert("far", kmNorth(origin, 50), 10))
		return sink.count() > 0
	}, 2*time.Second, 20*time.Millisecond)

	// let the repeated publishes drain
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, sink.count())

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("notifier did not stop")
	}
}

func TestNotifier_RunWithoutLocation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	n := NewNotifier(feed.NewMemoryBroker(), StaticLocator{}, &recordingSink{}, testLogger(), time.Second)

	done := make(chan error, 1)
	go func() { done <- n.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("notifier did not stop")
	}
}

type blockingSink struct {
	entered chan struct{}
	release chan struct{}
}

func (s blockingSink) Notify(Notification) {
	close(s.entered)
	<-s.release
}

func TestNotifier_SlowSinkDoesNotBlockSetLocation(t *testing.T) {
	sink := blockingSink{entered: make(chan struct{}), release: make(chan struct{})}
	n := NewNotifier(feed.NewMemoryBroker(), StaticLocator{}, sink, testLogger(), time.Second)
	n.SetLocation(origin)

	go n.Handle(testAlert("slow", origin, 5))
	<-sink.entered
	defer close(sink.release)

	moved := make(chan struct{})
	go func() {
		n.SetLocation(kmNorth(origin, 1))
		close(moved)
	}()

	select {
	case <-moved:
	case <-time.After(time.Second):
		t.Fatal("SetLocation blocked behind the sink")
	}
}
