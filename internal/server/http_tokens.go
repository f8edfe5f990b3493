package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/popkit/popkit/internal/token"
)

type issueTokenInput struct {
	SiteID   string `json:"site_id"`
	WidgetID string `json:"widget_id"`
}

// handleIssueToken handles POST /v1/tokens. Keys arrive as headers so they
// stay out of request-body logs; ids arrive in the body.
func (s *GatewayServer) handleIssueToken(w http.ResponseWriter, r *http.Request) {
	var in issueTokenInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	signed, err := s.issuer.Issue(r.Context(), token.IssueRequest{
		SiteAPIKey:   r.Header.Get("x-site-api-key"),
		WidgetAPIKey: r.Header.Get("x-widget-api-key"),
		SiteID:       in.SiteID,
		WidgetID:     in.WidgetID,
	})
	if err != nil {
		switch {
		case errors.Is(err, token.ErrMissingCredential):
			writeError(w, http.StatusBadRequest, "missing credential")
		case errors.Is(err, token.ErrInvalidWidgetCredential):
			writeError(w, http.StatusUnauthorized, "invalid widget credential")
		case errors.Is(err, token.ErrInvalidSiteCredential):
			writeError(w, http.StatusUnauthorized, "invalid site credential")
		default:
			writeError(w, http.StatusInternalServerError, "failed to issue token")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"token": signed})
}
