package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/popkit/popkit/internal/model"
)

// startTestNATS starts an embedded NATS server and returns its client URL.
func startTestNATS(t *testing.T) string {
	t.Helper()
	opts := &natsserver.Options{Host: "127.0.0.1", Port: -1}
	srv, err := natsserver.NewServer(opts)
	if err != nil {
		t.Fatalf("starting embedded NATS: %v", err)
	}
	srv.Start()
	t.Cleanup(srv.Shutdown)
	if !srv.ReadyForConnections(5 * time.Second) {
		t.Fatal("embedded NATS not ready")
	}
	return srv.ClientURL()
}

func TestSiteTopic(t *testing.T) {
	if got := SiteTopic("site-1"); got != "popkit.site.site-1.events" {
		t.Errorf("SiteTopic = %q", got)
	}
}

func TestNATSSubscriber_BroadcastToAllSubscribers(t *testing.T) {
	url := startTestNATS(t)

	pub, err := NewNATSPublisher(url)
	if err != nil {
		t.Fatalf("creating publisher: %v", err)
	}
	defer pub.Close()

	sub, err := NewNATSSubscriber(url)
	if err != nil {
		t.Fatalf("creating subscriber: %v", err)
	}
	defer sub.Close()

	topic := SiteTopic("site-1")

	// Two independent subscriptions to the same site topic.
	ch1, cancel1, err := sub.Subscribe(topic)
	if err != nil {
		t.Fatalf("subscribing: %v", err)
	}
	defer cancel1()
	ch2, cancel2, err := sub.Subscribe(topic)
	if err != nil {
		t.Fatalf("subscribing: %v", err)
	}
	defer cancel2()

	payload := FromEvent(&model.Event{
		ID:        "ev-1",
		SiteID:    "site-1",
		EventType: "signup",
		Message:   model.PlainMessage("Alice signed up"),
	})
	if err := pub.Publish(context.Background(), topic, payload); err != nil {
		t.Fatalf("publishing: %v", err)
	}
	pub.conn.Flush()

	for i, ch := range []<-chan []byte{ch1, ch2} {
		select {
		case raw := <-ch:
			var got EventPublished
			if err := json.Unmarshal(raw, &got); err != nil {
				t.Fatalf("decoding: %v", err)
			}
			if got.EventID != "ev-1" || got.Message != "Alice signed up" {
				t.Errorf("subscriber %d got %+v", i, got)
			}
		case <-time.After(time.Second):
			t.Fatalf("subscriber %d timed out", i)
		}
	}
}

func TestNATSSubscriber_NoReplayForLateJoiner(t *testing.T) {
	url := startTestNATS(t)

	pub, err := NewNATSPublisher(url)
	if err != nil {
		t.Fatalf("creating publisher: %v", err)
	}
	defer pub.Close()

	sub, err := NewNATSSubscriber(url)
	if err != nil {
		t.Fatalf("creating subscriber: %v", err)
	}
	defer sub.Close()

	topic := SiteTopic("site-1")

	// Publish before anyone subscribes.
	if err := pub.Publish(context.Background(), topic, EventPublished{EventID: "ev-old"}); err != nil {
		t.Fatalf("publishing: %v", err)
	}
	pub.conn.Flush()

	ch, cancel, err := sub.Subscribe(topic)
	if err != nil {
		t.Fatalf("subscribing: %v", err)
	}
	defer cancel()

	select {
	case raw := <-ch:
		t.Fatalf("late joiner received replayed event: %s", raw)
	case <-time.After(200 * time.Millisecond):
		// No replay, as intended.
	}
}

func TestNATSSubscriber_Cancel(t *testing.T) {
	url := startTestNATS(t)

	sub, err := NewNATSSubscriber(url)
	if err != nil {
		t.Fatalf("creating subscriber: %v", err)
	}
	defer sub.Close()

	ch, cancel, err := sub.Subscribe(TopicWildcard)
	if err != nil {
		t.Fatalf("subscribing: %v", err)
	}

	// Cancelling twice must not panic, and the channel must close.
	cancel()
	cancel()

	if _, ok := <-ch; ok {
		t.Fatal("expected channel to be closed after cancel")
	}
}

func TestNATSSubscriber_ImplementsSubscriber(t *testing.T) {
	var _ Subscriber = (*NATSSubscriber)(nil)
	var _ Publisher = (*NATSPublisher)(nil)
	var _ Publisher = (*NoopPublisher)(nil)
}
