package ui

import (
	"fmt"

	"github.com/popkit/popkit/internal/model"
)

// ANSI256 color codes for notification text.
const (
	colorAccent = 74  // blue
	colorMuted  = 245 // medium gray
)

// Named colors embedding sites may put on message segments.
var segmentColors = map[string]int{
	"blue":   74,
	"green":  114,
	"red":    203,
	"yellow": 221,
	"gray":   245,
}

var noColor bool

// RenderAccent returns s in the accent (blue) color.
func RenderAccent(s string) string {
	if noColor {
		return s
	}
	return fmt.Sprintf("\x1b[38;5;%dm%s\x1b[0m", colorAccent, s)
}

// RenderMuted returns s in the muted (gray) color.
func RenderMuted(s string) string {
	if noColor {
		return s
	}
	return fmt.Sprintf("\x1b[38;5;%dm%s\x1b[0m", colorMuted, s)
}

// RenderMessage renders a message with per-segment styling. Plain messages
// and unknown styles pass through unstyled.
func RenderMessage(m model.RenderableMessage) string {
	if m.Segments == nil {
		return m.Text
	}
	out := ""
	for _, seg := range m.Segments {
		out += renderSegment(seg)
	}
	return out
}

func renderSegment(seg model.Segment) string {
	if noColor {
		return seg.Value
	}
	s := seg.Value
	if code, ok := segmentColors[seg.Color]; ok {
		s = fmt.Sprintf("\x1b[38;5;%dm%s\x1b[0m", code, s)
	}
	switch seg.Style {
	case "bold", "highlight":
		s = "\x1b[1m" + s + "\x1b[0m"
	}
	return s
}

// ForceNoColor disables color output globally.
func ForceNoColor() {
	noColor = true
}
