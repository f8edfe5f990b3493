package events

import (
	"context"

	"github.com/popkit/popkit/internal/model"
)

// Subject layout: one subject per site, all widget traffic for a site
// multiplexed. Subscribers joining after a publish never see it; historical
// display is served by the initialization snapshot instead.
const (
	// TopicPrefix is the root of every popkit subject.
	TopicPrefix = "popkit"

	// TopicWildcard matches every popkit event subject.
	TopicWildcard = "popkit.>"
)

// SiteTopic returns the subject events for a site are published on.
func SiteTopic(siteID string) string {
	return TopicPrefix + ".site." + siteID + ".events"
}

// EventPublished is the payload broadcast for every accepted event. Message
// carries the resolved display string so subscribers need no rich-text logic.
type EventPublished struct {
	EventID   string         `json:"event_id"`
	SiteID    string         `json:"site_id"`
	WidgetID  string         `json:"widget_id,omitempty"`
	EventType string         `json:"event_type"`
	EventData map[string]any `json:"event_data,omitempty"`
	Message   string         `json:"message,omitempty"`
}

// FromEvent builds the broadcast payload for a recorded event.
func FromEvent(e *model.Event) EventPublished {
	return EventPublished{
		EventID:   e.ID,
		SiteID:    e.SiteID,
		WidgetID:  e.WidgetID,
		EventType: e.EventType,
		EventData: e.EventData,
		Message:   e.DisplayMessage(),
	}
}

// Event converts a broadcast payload back into a model event for display.
func (p EventPublished) Event() *model.Event {
	return &model.Event{
		ID:        p.EventID,
		SiteID:    p.SiteID,
		WidgetID:  p.WidgetID,
		EventType: p.EventType,
		EventData: p.EventData,
		Message:   model.PlainMessage(p.Message),
	}
}

// Publisher is the interface for emitting events. Publish is fire-and-forget
// from the caller's perspective: ingestion discards the error after logging.
type Publisher interface {
	Publish(ctx context.Context, topic string, event any) error
	Close() error
}
