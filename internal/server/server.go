package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/popkit/popkit/internal/events"
	"github.com/popkit/popkit/internal/model"
	"github.com/popkit/popkit/internal/store"
	"github.com/popkit/popkit/internal/token"
)

// fallbackEventLimit is the maximum number of historical events returned by
// the initialization endpoint for cold-start display.
const fallbackEventLimit = 15

// GatewayServer serves the embed-facing API: token issuance, event ingestion,
// widget initialization, and the SSE event stream. Handlers are stateless and
// safe for unbounded parallel invocation; the only shared mutable state is
// the per-site usage counter, owned by the store.
type GatewayServer struct {
	store     store.Store
	publisher events.Publisher
	issuer    *token.Issuer
	verifier  *token.Verifier
	sseHub    *sseHub
}

// Options configures a GatewayServer.
type Options struct {
	Store       store.Store
	Publisher   events.Publisher
	TokenSecret []byte
	TokenTTL    time.Duration
}

// NewGatewayServer returns a GatewayServer backed by the given store and publisher.
func NewGatewayServer(opts Options) *GatewayServer {
	return &GatewayServer{
		store:     opts.Store,
		publisher: opts.Publisher,
		issuer:    token.NewIssuer(opts.Store, opts.TokenSecret, opts.TokenTTL),
		verifier:  token.NewVerifier(opts.TokenSecret),
		sseHub:    newSSEHub(),
	}
}

// publishEvent fans an already-persisted event out to the NATS bus and to
// connected SSE widgets. Both deliveries are best-effort: the event is durable
// by the time this runs, so failures are logged and never fail ingestion.
// Callers invoke it on its own goroutine so a slow bus cannot block the
// HTTP response path.
func (s *GatewayServer) publishEvent(ctx context.Context, evt *model.Event) {
	payload := events.FromEvent(evt)
	topic := events.SiteTopic(evt.SiteID)

	if err := s.publisher.Publish(ctx, topic, payload); err != nil {
		slog.Warn("failed to publish event", "topic", topic, "event_id", evt.ID, "error", err)
	}
	s.broadcastEvent(topic, payload)
}
