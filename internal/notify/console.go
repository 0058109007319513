package notify

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"sisu-notifier/internal/report"
)

// ConsoleNotifier writes the plain-text report to a writer. It is used for
// local runs and for previewing what would be emailed.
type ConsoleNotifier struct {
	out     io.Writer
	enabled bool
	mu      sync.Mutex
}

// NewConsoleNotifier creates a new ConsoleNotifier.
func NewConsoleNotifier(out io.Writer, enabled bool) *ConsoleNotifier {
	return &ConsoleNotifier{out: out, enabled: enabled && out != nil}
}

// Name returns the name of the notifier.
func (c *ConsoleNotifier) Name() string {
	return "console"
}

// IsEnabled returns whether the notifier is enabled.
func (c *ConsoleNotifier) IsEnabled() bool {
	return c.enabled
}

// Send prints the subject and text body.
func (c *ConsoleNotifier) Send(ctx context.Context, r report.Report) error {
	if !c.enabled {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	_, err := io.WriteString(c.out, FormatPreview(r))
	return err
}

// FormatPreview renders a report the way it is shown on a terminal.
func FormatPreview(r report.Report) string {
	if r.Empty() {
		return "No closings within the window.\n"
	}
	rule := strings.Repeat("─", 60)

	var sb strings.Builder
	sb.WriteString(rule + "\n")
	sb.WriteString(fmt.Sprintf("Subject: %s\n", r.Subject))
	sb.WriteString(rule + "\n")
	sb.WriteString(r.Text)
	sb.WriteString(rule + "\n")
	return sb.String()
}
