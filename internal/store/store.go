package store

import (
	"context"

	"github.com/popkit/popkit/internal/model"
)

// Store defines the persistence interface for the popkit gateway.
// Lookup methods return (nil, nil) when no row matches.
type Store interface {
	// Credential rows (written by the dashboard, read-only here).
	// Credential lookups always match both the key and the id/parent
	// relationship to prevent key substitution across widgets.
	GetWidgetByCredentials(ctx context.Context, apiKey, widgetID, siteID string) (*model.Widget, error)
	GetSiteByCredentials(ctx context.Context, apiKey, siteID string) (*model.Site, error)
	GetSiteByAPIKey(ctx context.Context, apiKey string) (*model.Site, error)
	GetWidget(ctx context.Context, id string) (*model.Widget, error)
	GetSite(ctx context.Context, id string) (*model.Site, error)

	// Event log
	RecordEvent(ctx context.Context, event *model.Event) error
	RecentEvents(ctx context.Context, siteID string, limit int) ([]*model.Event, error) // newest first
	AllEvents(ctx context.Context) ([]*model.Event, error)                              // oldest first, for export

	// Quota
	GetQuota(ctx context.Context, siteID string) (*model.Quota, error)
	// IncrementUsage applies usage = usage + 1 atomically at the datastore.
	IncrementUsage(ctx context.Context, siteID string) error

	// Transaction support
	RunInTransaction(ctx context.Context, fn func(tx Store) error) error

	// Lifecycle
	Close() error
}
