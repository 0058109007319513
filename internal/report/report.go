// Package report turns the selected closing matches into one consolidated
// notification: an ordered list, an overall urgency, a subject line and the
// plain-text and HTML bodies.
package report

import (
	"fmt"
	"sort"

	"sisu-notifier/internal/models"
)

const (
	DefaultGreetingName = "there"
	DefaultSenderName   = "SISU Notifier"

	// MissingEmail is shown for a buyer without an email address.
	MissingEmail = "N/A"
)

// Options controls report rendering.
type Options struct {
	WindowDays   int
	GreetingName string
	SenderName   string
}

func (o Options) withDefaults() Options {
	if o.GreetingName == "" {
		o.GreetingName = DefaultGreetingName
	}
	if o.SenderName == "" {
		o.SenderName = DefaultSenderName
	}
	return o
}

// Report is the consolidated notification for one run.
type Report struct {
	Matches    []models.ClosingMatch `json:"matches"`
	Urgency    Urgency               `json:"-"`
	WindowDays int                   `json:"windowDays"`
	Subject    string                `json:"subject"`
	Text       string                `json:"text"`
	HTML       string                `json:"html"`
}

// Empty reports whether there is nothing to send.
func (r Report) Empty() bool {
	return len(r.Matches) == 0
}

// Build sorts the matches by days until closing, keeping fetch order for ties,
// and renders the subject and both bodies from that single sorted slice.
// The input slice is not modified.
func Build(matches []models.ClosingMatch, opts Options) Report {
	opts = opts.withDefaults()

	r := Report{WindowDays: opts.WindowDays}
	if len(matches) == 0 {
		return r
	}

	sorted := make([]models.ClosingMatch, len(matches))
	copy(sorted, matches)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].DaysUntil < sorted[j].DaysUntil
	})

	r.Matches = sorted
	r.Urgency = UrgencyFor(sorted[0].DaysUntil)
	r.Subject = subject(sorted, opts.WindowDays, r.Urgency)
	r.Text = renderText(sorted, opts)
	r.HTML = renderHTML(sorted, opts, r.Urgency)
	return r
}

func subject(sorted []models.ClosingMatch, windowDays int, u Urgency) string {
	if len(sorted) == 1 {
		m := sorted[0]
		return fmt.Sprintf("%sClosing %s: %s", u.SubjectPrefix(), DayPhrase(m.DaysUntil), m.BuyerName)
	}
	return fmt.Sprintf("%s%d closings within the next %d days", u.SubjectPrefix(), len(sorted), windowDays)
}

func intro(sorted []models.ClosingMatch, windowDays int) string {
	if len(sorted) == 1 {
		return fmt.Sprintf("This is a reminder that a transaction is forecasted to close %s.", DayPhrase(sorted[0].DaysUntil))
	}
	return fmt.Sprintf("The following %d transactions are forecasted to close within the next %d days.", len(sorted), windowDays)
}
