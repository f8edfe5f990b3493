package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Event is a single user-activity event reported by a site's application.
// Events are immutable once recorded; the message is denormalized into
// EventData at ingestion so one record carries everything a widget needs.
type Event struct {
	ID        string            `json:"id"`
	SiteID    string            `json:"site_id"`
	WidgetID  string            `json:"widget_id,omitempty"`
	EventType string            `json:"event_type"`
	EventData map[string]any    `json:"event_data,omitempty"`
	Message   RenderableMessage `json:"message,omitzero"`
	CreatedAt time.Time         `json:"created_at"`
}

// DisplayMessage returns the string a widget should render for this event:
// the message field when set, otherwise a "message" entry denormalized into
// EventData, otherwise empty.
func (e *Event) DisplayMessage() string {
	if !e.Message.IsZero() {
		return e.Message.DisplayString()
	}
	if e.EventData == nil {
		return ""
	}
	switch v := e.EventData["message"].(type) {
	case string:
		return v
	case map[string]any, []any:
		raw, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		var m RenderableMessage
		if err := json.Unmarshal(raw, &m); err != nil {
			return ""
		}
		return m.DisplayString()
	}
	return ""
}

// Segment is one styled span of a rich-text message. Styling is a
// presentation concern; delivery only requires the value.
type Segment struct {
	Value string `json:"value"`
	Style string `json:"style,omitempty"`
	Color string `json:"color,omitempty"`
}

// RenderableMessage is either a plain string or an ordered list of styled
// segments. The JSON form mirrors what embedding sites send: a bare string,
// or an array of segment objects.
type RenderableMessage struct {
	Text     string
	Segments []Segment
}

// PlainMessage returns a plain-text RenderableMessage.
func PlainMessage(text string) RenderableMessage {
	return RenderableMessage{Text: text}
}

// RichMessage returns a segmented RenderableMessage.
func RichMessage(segments ...Segment) RenderableMessage {
	return RenderableMessage{Segments: segments}
}

// IsZero reports whether no message was provided.
func (m RenderableMessage) IsZero() bool {
	return m.Text == "" && m.Segments == nil
}

// DisplayString resolves the message to a single opaque string. Rich
// segments concatenate their values in order.
func (m RenderableMessage) DisplayString() string {
	if m.Segments == nil {
		return m.Text
	}
	var b strings.Builder
	for _, s := range m.Segments {
		b.WriteString(s.Value)
	}
	return b.String()
}

func (m RenderableMessage) MarshalJSON() ([]byte, error) {
	if m.Segments != nil {
		return json.Marshal(m.Segments)
	}
	return json.Marshal(m.Text)
}

func (m *RenderableMessage) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" {
		*m = RenderableMessage{}
		return nil
	}
	if strings.HasPrefix(trimmed, "[") {
		var segments []Segment
		if err := json.Unmarshal(data, &segments); err != nil {
			return fmt.Errorf("rich message: %w", err)
		}
		*m = RenderableMessage{Segments: segments}
		return nil
	}
	var text string
	if err := json.Unmarshal(data, &text); err != nil {
		return fmt.Errorf("message must be a string or a list of segments")
	}
	*m = RenderableMessage{Text: text}
	return nil
}
