package server

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/popkit/popkit/internal/events"
	"github.com/popkit/popkit/internal/model"
)

func TestSSEHub_BroadcastAndReceive(t *testing.T) {
	hub := newSSEHub()

	client := hub.subscribe("popkit.site.site-1.events")
	defer hub.unsubscribe(client)

	hub.broadcast("popkit.site.site-1.events", []byte(`{"event_id":"ev-1"}`))

	select {
	case evt := <-client.ch:
		if evt.Topic != "popkit.site.site-1.events" {
			t.Fatalf("unexpected topic %q", evt.Topic)
		}
		if string(evt.Data) != `{"event_id":"ev-1"}` {
			t.Fatalf("unexpected data %q", string(evt.Data))
		}
		if evt.ID != 1 {
			t.Fatalf("expected id=1, got %d", evt.ID)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestSSEHub_SiteIsolation(t *testing.T) {
	hub := newSSEHub()

	client := hub.subscribe(events.SiteTopic("site-1"))
	defer hub.unsubscribe(client)

	hub.broadcast(events.SiteTopic("site-2"), []byte(`{"event_id":"ev-other"}`))
	hub.broadcast(events.SiteTopic("site-1"), []byte(`{"event_id":"ev-mine"}`))

	select {
	case evt := <-client.ch:
		if !strings.Contains(string(evt.Data), "ev-mine") {
			t.Fatalf("received event for wrong site: %s", evt.Data)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}

	select {
	case evt := <-client.ch:
		t.Fatalf("unexpected extra event: %s", evt.Data)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSSEHub_FanOutToAllSiteClients(t *testing.T) {
	hub := newSSEHub()

	a := hub.subscribe(events.SiteTopic("site-1"))
	b := hub.subscribe(events.SiteTopic("site-1"))
	defer hub.unsubscribe(a)
	defer hub.unsubscribe(b)

	hub.broadcast(events.SiteTopic("site-1"), []byte(`{}`))

	for _, c := range []*sseClient{a, b} {
		select {
		case <-c.ch:
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for fan-out")
		}
	}
}

func TestSSEHub_NoReplayForLateJoiner(t *testing.T) {
	hub := newSSEHub()

	hub.broadcast(events.SiteTopic("site-1"), []byte(`{"event_id":"ev-before"}`))

	client := hub.subscribe(events.SiteTopic("site-1"))
	defer hub.unsubscribe(client)

	select {
	case evt := <-client.ch:
		t.Fatalf("late joiner must not see prior events, got %s", evt.Data)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSSEHub_Unsubscribe(t *testing.T) {
	hub := newSSEHub()

	client := hub.subscribe(events.SiteTopic("site-1"))
	hub.unsubscribe(client)

	if n := hub.clientCount(); n != 0 {
		t.Fatalf("expected 0 clients after unsubscribe, got %d", n)
	}

	hub.broadcast(events.SiteTopic("site-1"), []byte(`{}`))
	select {
	case <-client.ch:
		t.Fatal("unsubscribed client received event")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSSEHub_DropsWhenClientSlow(t *testing.T) {
	hub := newSSEHub()

	client := hub.subscribe(events.SiteTopic("site-1"))
	defer hub.unsubscribe(client)

	// Overfill the buffer without draining. Must not block.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 200; i++ {
			hub.broadcast(events.SiteTopic("site-1"), []byte(`{}`))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("broadcast blocked on slow client")
	}
}

func TestEventStream_RequiresToken(t *testing.T) {
	srv, _ := newTestServer(t)
	handler := srv.NewHTTPHandler()

	req := httptest.NewRequest("GET", "/v1/events/stream", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != 401 {
		t.Fatalf("expected 401 without token, got %d", w.Code)
	}
}

func TestEventStream_DeliversIngestedEvent(t *testing.T) {
	srv, _ := newTestServer(t)
	handler := srv.NewHTTPHandler()
	tok := issueTestToken(t, handler)

	ts := httptest.NewServer(handler)
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := newStreamRequest(ctx, ts.URL+"/v1/events/stream", tok)
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("opening stream: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	// Publish after the stream is connected.
	srv.publishEvent(context.Background(), &model.Event{
		ID:        "ev-live",
		SiteID:    "site-1",
		WidgetID:  "widget-1",
		EventType: "signup",
		Message:   model.PlainMessage("Ada just signed up"),
	})

	scanner := bufio.NewScanner(resp.Body)
	var data string
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "data:") {
			data = strings.TrimPrefix(line, "data:")
			break
		}
	}
	if data == "" {
		t.Fatal("no data frame received")
	}
	if !strings.Contains(data, "ev-live") {
		t.Fatalf("expected live event in frame, got %s", data)
	}
	if !strings.Contains(data, "Ada just signed up") {
		t.Fatalf("expected resolved message in frame, got %s", data)
	}
}

func newStreamRequest(ctx context.Context, url, token string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "text/event-stream")
	return req, nil
}
