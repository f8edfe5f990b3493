package widget

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/popkit/popkit/internal/events"
	"github.com/popkit/popkit/internal/model"
)

// StreamSubscriber consumes the gateway's SSE event stream and hands each
// decoded event to a handler. It stops when its context is canceled or the
// connection drops; reconnecting is the caller's decision.
type StreamSubscriber struct {
	client  *Client
	handler func(*model.Event)
}

// NewStreamSubscriber returns a subscriber delivering events to handler.
func NewStreamSubscriber(c *Client, handler func(*model.Event)) *StreamSubscriber {
	return &StreamSubscriber{client: c, handler: handler}
}

// Run connects to the event stream and dispatches frames until the context is
// canceled (returns nil) or the connection fails (returns the error).
func (s *StreamSubscriber) Run(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.client.baseURL+"/v1/events/stream", nil)
	if err != nil {
		return fmt.Errorf("creating stream request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	if s.client.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.client.token)
	}

	resp, err := s.client.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("opening stream: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &APIError{StatusCode: resp.StatusCode, Message: "stream rejected"}
	}

	scanner := bufio.NewScanner(resp.Body)
	var data []string
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			// Blank line terminates a frame.
			if len(data) > 0 {
				s.dispatch(strings.Join(data, "\n"))
				data = data[:0]
			}
		case strings.HasPrefix(line, "data:"):
			data = append(data, strings.TrimPrefix(line, "data:"))
		case strings.HasPrefix(line, ":"):
			// Keepalive comment.
		default:
			// id: and event: fields carry no payload we act on.
		}
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("reading stream: %w", err)
	}
	return nil
}

// dispatch decodes one data payload and delivers it. Undecodable frames are
// dropped rather than killing the stream.
func (s *StreamSubscriber) dispatch(raw string) {
	var payload events.EventPublished
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return
	}
	s.handler(payload.Event())
}
