package report

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"sisu-notifier/internal/models"
)

var htmlTemplate = template.Must(template.New("report").Parse(`<div style="font-family: sans-serif; padding: 20px;">
  <h2>{{.Marker}} Upcoming Closings</h2>
  <p>Hello {{.Greeting}},</p>
  <p class="intro">{{.Intro}}</p>
  <ul class="closings">
{{- range .Items}}
    <li class="closing urgency-{{.Urgency}}" data-days="{{.Days}}">
      <span class="marker">{{.Marker}}</span> <strong class="buyer">{{.Name}}</strong> closes <span class="when">{{.Phrase}}</span>
      <ul>
        <li><strong>Email:</strong> <span class="email">{{.Email}}</span></li>
        <li><strong>Forecasted Closing Date:</strong> <span class="date">{{.ClosingDate}}</span></li>
      </ul>
    </li>
{{- end}}
  </ul>
  <p class="signature">Best,<br>{{.Sender}}</p>
</div>
`))

type htmlItem struct {
	Urgency     string
	Marker      string
	Days        int
	Name        string
	Phrase      string
	Email       string
	ClosingDate string
}

type htmlView struct {
	Marker   string
	Greeting string
	Intro    string
	Items    []htmlItem
	Sender   string
}

func renderHTML(sorted []models.ClosingMatch, opts Options, overall Urgency) string {
	view := htmlView{
		Marker:   overall.Marker(),
		Greeting: opts.GreetingName,
		Intro:    intro(sorted, opts.WindowDays),
		Sender:   opts.SenderName,
		Items:    make([]htmlItem, 0, len(sorted)),
	}
	for _, m := range sorted {
		u := UrgencyFor(m.DaysUntil)
		view.Items = append(view.Items, htmlItem{
			Urgency:     u.String(),
			Marker:      u.Marker(),
			Days:        m.DaysUntil,
			Name:        m.BuyerName,
			Phrase:      DayPhrase(m.DaysUntil),
			Email:       m.EmailOr(MissingEmail),
			ClosingDate: m.ClosingDate,
		})
	}

	var buf bytes.Buffer
	if err := htmlTemplate.Execute(&buf, view); err != nil {
		// the template is static and every field is a plain string or int
		panic(fmt.Sprintf("report: rendering html: %v", err))
	}
	return buf.String()
}

func renderText(sorted []models.ClosingMatch, opts Options) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Hello %s,\n\n", opts.GreetingName))
	sb.WriteString(intro(sorted, opts.WindowDays))
	sb.WriteString("\n\n")

	for _, m := range sorted {
		u := UrgencyFor(m.DaysUntil)
		sb.WriteString(fmt.Sprintf("%s %s closes %s\n", u.Marker(), m.BuyerName, DayPhrase(m.DaysUntil)))
		sb.WriteString(fmt.Sprintf("   Email: %s\n", m.EmailOr(MissingEmail)))
		sb.WriteString(fmt.Sprintf("   Forecasted Closing Date: %s\n\n", m.ClosingDate))
	}

	sb.WriteString(fmt.Sprintf("Best,\n%s\n", opts.SenderName))
	return sb.String()
}
