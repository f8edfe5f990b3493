package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/popkit/popkit/internal/idgen"
	"github.com/popkit/popkit/internal/model"
	"github.com/popkit/popkit/internal/token"
)

type ingestEventInput struct {
	EventType string                  `json:"event_type"`
	EventData map[string]any          `json:"event_data"`
	Message   model.RenderableMessage `json:"message"`
}

// ingestScope is the (site, widget) pair a request is authorized to write to.
// WidgetID is empty in raw-key mode.
type ingestScope struct {
	SiteID   string
	WidgetID string
}

// handleIngestEvent handles POST /v1/events. Two entry modes converge here:
// a capability token (Authorization: Bearer) or a raw site API key
// (x-api-key), used by simple server-to-server integrations.
func (s *GatewayServer) handleIngestEvent(w http.ResponseWriter, r *http.Request) {
	scope, ok := s.resolveIngestScope(w, r)
	if !ok {
		return
	}

	var in ingestEventInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if in.EventType == "" {
		writeError(w, http.StatusBadRequest, "event_type is required")
		return
	}

	// Quota gate: reject before any persistence. Concurrent requests for the
	// same site may both pass this pre-check; the small overshoot is accepted
	// rather than serializing all writes per site.
	quota, err := s.store.GetQuota(r.Context(), scope.SiteID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to check quota")
		return
	}
	if quota == nil {
		writeError(w, http.StatusUnauthorized, "unknown site")
		return
	}
	if quota.Exhausted() {
		writeJSON(w, http.StatusForbidden, map[string]any{
			"error":   "quota_exceeded",
			"upgrade": true,
		})
		return
	}

	id, err := idgen.Generate()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to generate event id")
		return
	}

	// Denormalize the message into event_data so one record carries
	// everything a widget needs for rendering.
	data := make(map[string]any, len(in.EventData)+1)
	for k, v := range in.EventData {
		data[k] = v
	}
	if !in.Message.IsZero() {
		data["message"] = in.Message
	}

	evt := &model.Event{
		ID:        id,
		SiteID:    scope.SiteID,
		WidgetID:  scope.WidgetID,
		EventType: in.EventType,
		EventData: data,
		Message:   in.Message,
		CreatedAt: time.Now().UTC(),
	}

	if err := s.store.RecordEvent(r.Context(), evt); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to record event")
		return
	}

	// Fan-out is fire-and-forget: the event is durable, so delivery runs off
	// the response path and its result is deliberately discarded.
	go s.publishEvent(context.WithoutCancel(r.Context()), evt)

	// Usage increment after successful persistence. Skew from a failed
	// increment favors the tenant, so it is non-fatal.
	if err := s.store.IncrementUsage(r.Context(), scope.SiteID); err != nil {
		slog.Warn("failed to increment usage", "site_id", scope.SiteID, "error", err)
	}

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// resolveIngestScope authenticates the request and returns its write scope.
// On failure it writes the error response and returns ok=false.
func (s *GatewayServer) resolveIngestScope(w http.ResponseWriter, r *http.Request) (ingestScope, bool) {
	if auth := r.Header.Get("Authorization"); auth != "" {
		raw := strings.TrimPrefix(auth, "Bearer ")
		claims, err := s.verifier.Verify(raw)
		if err != nil {
			writeTokenError(w, err)
			return ingestScope{}, false
		}
		return ingestScope{SiteID: claims.SiteID, WidgetID: claims.WidgetID}, true
	}

	if key := r.Header.Get("x-api-key"); key != "" {
		site, err := s.store.GetSiteByAPIKey(r.Context(), model.CleanAPIKey(key))
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to resolve api key")
			return ingestScope{}, false
		}
		if site == nil {
			writeError(w, http.StatusUnauthorized, "invalid api key")
			return ingestScope{}, false
		}
		return ingestScope{SiteID: site.ID}, true
	}

	writeError(w, http.StatusUnauthorized, "missing credentials")
	return ingestScope{}, false
}

// writeTokenError maps token verification failures to HTTP responses.
func writeTokenError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, token.ErrTokenMissing):
		writeError(w, http.StatusUnauthorized, "missing token")
	case errors.Is(err, token.ErrTokenExpired):
		writeError(w, http.StatusUnauthorized, "token expired")
	default:
		writeError(w, http.StatusUnauthorized, "invalid token")
	}
}
