// Package token issues and verifies the short-lived capability tokens that
// scope a widget embed to a single (site, widget) pair.
package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/popkit/popkit/internal/model"
	"github.com/popkit/popkit/internal/store"
)

// DefaultTTL is the capability token lifetime. Tokens are embedded in page
// source, so the window is kept narrow.
const DefaultTTL = 5 * time.Minute

var (
	ErrMissingCredential       = errors.New("missing credential")
	ErrInvalidSiteCredential   = errors.New("invalid site credential")
	ErrInvalidWidgetCredential = errors.New("invalid widget credential")

	ErrTokenMissing = errors.New("token missing")
	ErrTokenInvalid = errors.New("token invalid")
	ErrTokenExpired = errors.New("token expired")
)

// Claims are the contents of a capability token. The raw keys are embedded so
// downstream handlers can re-derive scoping without a second credential lookup.
type Claims struct {
	SiteID       string `json:"site_id"`
	WidgetID     string `json:"widget_id"`
	SiteAPIKey   string `json:"site_api_key"`
	WidgetAPIKey string `json:"widget_api_key"`
	jwt.RegisteredClaims
}

// IssueRequest carries the four credentials required to mint a token.
// Keys may be given in prefixed ("site_…", "widget_…") or bare form.
type IssueRequest struct {
	SiteAPIKey   string
	WidgetAPIKey string
	SiteID       string
	WidgetID     string
}

// Issuer validates embed credentials against the store and signs capability
// tokens. Stateless beyond the credential read; safe for concurrent use.
type Issuer struct {
	store  store.Store
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewIssuer returns an Issuer signing with the given secret. A non-positive
// ttl falls back to DefaultTTL.
func NewIssuer(s store.Store, secret []byte, ttl time.Duration) *Issuer {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Issuer{store: s, secret: secret, ttl: ttl, now: time.Now}
}

// Authenticate validates the full credential tuple: the widget row must match
// (key, id, parent site id) and the site row must match (key, id). Returns the
// validated widget on success.
func (i *Issuer) Authenticate(ctx context.Context, req IssueRequest) (*model.Widget, error) {
	if req.SiteAPIKey == "" || req.WidgetAPIKey == "" || req.SiteID == "" || req.WidgetID == "" {
		return nil, ErrMissingCredential
	}

	siteKey := model.CleanAPIKey(req.SiteAPIKey)
	widgetKey := model.CleanAPIKey(req.WidgetAPIKey)

	widget, err := i.store.GetWidgetByCredentials(ctx, widgetKey, req.WidgetID, req.SiteID)
	if err != nil {
		return nil, fmt.Errorf("widget lookup: %w", err)
	}
	if widget == nil {
		return nil, ErrInvalidWidgetCredential
	}

	site, err := i.store.GetSiteByCredentials(ctx, siteKey, req.SiteID)
	if err != nil {
		return nil, fmt.Errorf("site lookup: %w", err)
	}
	if site == nil {
		return nil, ErrInvalidSiteCredential
	}

	return widget, nil
}

// Issue authenticates the credential tuple and returns a signed token scoped
// to exactly that (site, widget) pair.
func (i *Issuer) Issue(ctx context.Context, req IssueRequest) (string, error) {
	widget, err := i.Authenticate(ctx, req)
	if err != nil {
		return "", err
	}

	now := i.now().UTC()
	claims := &Claims{
		SiteID:       widget.SiteID,
		WidgetID:     widget.ID,
		SiteAPIKey:   model.CleanAPIKey(req.SiteAPIKey),
		WidgetAPIKey: model.CleanAPIKey(req.WidgetAPIKey),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// Verifier checks token signatures and expiry.
type Verifier struct {
	secret []byte
	now    func() time.Time
}

// NewVerifier returns a Verifier for tokens signed with the given secret.
func NewVerifier(secret []byte) *Verifier {
	return &Verifier{secret: secret, now: time.Now}
}

// Verify parses and validates a token string, returning its claims.
// Expiry is a hard boundary: no leeway is granted.
func (v *Verifier) Verify(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, ErrTokenMissing
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (any, error) { return v.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}
	return claims, nil
}
