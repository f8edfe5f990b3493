package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/popkit/popkit/internal/ui"
	"github.com/popkit/popkit/internal/widget"
)

// terminalRenderer prints each notification as one line, truncated to the
// terminal width. The terminal's own scrollback plays the role of the stack,
// so Move and Hide are no-ops.
type terminalRenderer struct{}

func (terminalRenderer) Show(t *widget.Toast) int {
	msg := t.Event.DisplayMessage()
	if msg == "" {
		msg = t.Event.EventType
	}
	line := fmt.Sprintf("%s %s %s",
		ui.RenderAccent("•"),
		msg,
		ui.RenderMuted("("+t.Event.EventType+" · "+time.Now().Format("15:04:05")+")"),
	)
	fmt.Fprintln(os.Stdout, truncate(line, ui.TerminalWidth(80)))
	return 1
}

func (terminalRenderer) Move(*widget.Toast) {}

func (terminalRenderer) Hide(*widget.Toast) {}

// truncate cuts s to at most width visible runes, ignoring that ANSI escapes
// consume no columns only when the line is short enough to keep intact.
func truncate(s string, width int) string {
	if width <= 3 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= width {
		return s
	}
	if strings.Contains(s, "\x1b[") {
		// Cutting inside an escape sequence corrupts the terminal; keep the
		// line whole and let it wrap.
		return s
	}
	return string(runes[:width-1]) + "…"
}
