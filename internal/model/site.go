package model

import "strings"

// Site is a customer account record. Sites own widgets, an API key used for
// server-to-server event reporting, and the monthly event quota derived from
// the account's plan.
type Site struct {
	ID                  string `json:"id"`
	APIKey              string `json:"-"`
	PlanLimit           int    `json:"plan_limit"`
	EventsUsedThisMonth int    `json:"events_used_this_month"`
}

// Widget is a single embeddable widget instance. A widget belongs to exactly
// one site; credential lookups must match the key AND the id/parent
// relationship, never the key alone.
type Widget struct {
	ID     string       `json:"id"`
	APIKey string       `json:"-"`
	SiteID string       `json:"site_id"`
	Config WidgetConfig `json:"config"`
}

// WidgetConfig holds the display settings returned to the widget runtime on
// initialization.
type WidgetConfig struct {
	Position            string `json:"position,omitempty"` // e.g. "bottom-left"
	ShowBranding        bool   `json:"show_branding,omitempty"`
	DisplayDurationSecs int    `json:"display_duration_secs,omitempty"`
}

// CleanAPIKey strips the "site_" or "widget_" display prefix from an API key.
// Keys are stored bare; callers may present either form.
func CleanAPIKey(key string) string {
	key = strings.TrimPrefix(key, "site_")
	return strings.TrimPrefix(key, "widget_")
}
