package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/popkit/popkit/internal/model"
	"github.com/popkit/popkit/internal/token"
)

type initResponse struct {
	SiteID         string             `json:"site_id"`
	WidgetConfig   model.WidgetConfig `json:"widget_config"`
	FallbackEvents []*model.Event     `json:"fallback_events"`
}

// handleInit handles GET /v1/init. Accepts either a capability token
// (Authorization: Bearer) or the explicit credential tuple in headers and
// query params, and returns the widget's display configuration plus a
// bounded snapshot of recent events for cold-start display.
func (s *GatewayServer) handleInit(w http.ResponseWriter, r *http.Request) {
	var siteID, widgetID string

	if auth := r.Header.Get("Authorization"); auth != "" {
		claims, err := s.verifier.Verify(strings.TrimPrefix(auth, "Bearer "))
		if err != nil {
			writeTokenError(w, err)
			return
		}
		siteID, widgetID = claims.SiteID, claims.WidgetID
	} else {
		q := r.URL.Query()
		widget, err := s.issuer.Authenticate(r.Context(), token.IssueRequest{
			SiteAPIKey:   r.Header.Get("x-site-api-key"),
			WidgetAPIKey: r.Header.Get("x-widget-api-key"),
			SiteID:       q.Get("site_id"),
			WidgetID:     q.Get("widget_id"),
		})
		if err != nil {
			switch {
			case errors.Is(err, token.ErrMissingCredential):
				writeError(w, http.StatusBadRequest, "missing credential")
			case errors.Is(err, token.ErrInvalidWidgetCredential),
				errors.Is(err, token.ErrInvalidSiteCredential):
				writeError(w, http.StatusUnauthorized, "invalid credentials")
			default:
				writeError(w, http.StatusInternalServerError, "failed to authenticate")
			}
			return
		}
		siteID, widgetID = widget.SiteID, widget.ID
	}

	site, err := s.store.GetSite(r.Context(), siteID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get site")
		return
	}
	if site == nil {
		writeError(w, http.StatusNotFound, "site not found")
		return
	}

	widget, err := s.store.GetWidget(r.Context(), widgetID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get widget")
		return
	}
	if widget == nil {
		writeError(w, http.StatusNotFound, "widget not found")
		return
	}

	fallback, err := s.store.RecentEvents(r.Context(), siteID, fallbackEventLimit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get recent events")
		return
	}
	// Ensure fallback_events is never null in JSON output.
	if fallback == nil {
		fallback = []*model.Event{}
	}

	writeJSON(w, http.StatusOK, initResponse{
		SiteID:         siteID,
		WidgetConfig:   widget.Config,
		FallbackEvents: fallback,
	})
}
