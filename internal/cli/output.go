package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"sisu-notifier/internal/report"
)

// ANSI colour codes.
const (
	ColorReset  = "\033[0m"
	ColorRed    = "\033[31m"
	ColorGreen  = "\033[32m"
	ColorYellow = "\033[33m"
	ColorCyan   = "\033[36m"
	ColorBold   = "\033[1m"
	ColorDim    = "\033[2m"
)

// Output writes command results either as JSON or as coloured text.
type Output struct {
	writer       io.Writer
	jsonMode     bool
	colorEnabled bool
}

// NewOutput creates an Output for cmd, honouring --json and NO_COLOR.
func NewOutput(cmd *cobra.Command) *Output {
	jsonMode, _ := cmd.Flags().GetBool("json")
	w := cmd.OutOrStdout()
	return &Output{
		writer:       w,
		jsonMode:     jsonMode,
		colorEnabled: !jsonMode && os.Getenv("NO_COLOR") == "" && isTerminal(w),
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	return err == nil && info.Mode()&os.ModeCharDevice != 0
}

// IsJSON returns true if JSON output mode is enabled.
func (o *Output) IsJSON() bool {
	return o.jsonMode
}

// JSON writes v as indented JSON.
func (o *Output) JSON(v any) error {
	enc := json.NewEncoder(o.writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (o *Output) Print(format string, args ...any) {
	fmt.Fprintf(o.writer, format, args...)
}

func (o *Output) Printf(format string, args ...any) {
	fmt.Fprintf(o.writer, format, args...)
}

func (o *Output) Println(args ...any) {
	fmt.Fprintln(o.writer, args...)
}

func (o *Output) Success(format string, args ...any) { o.line(ColorGreen, format, args...) }
func (o *Output) Error(format string, args ...any)   { o.line(ColorRed, format, args...) }
func (o *Output) Warning(format string, args ...any) { o.line(ColorYellow, format, args...) }
func (o *Output) Info(format string, args ...any)    { o.line(ColorCyan, format, args...) }
func (o *Output) Dim(format string, args ...any)     { o.line(ColorDim, format, args...) }

func (o *Output) line(color, format string, args ...any) {
	fmt.Fprintln(o.writer, o.paint(color, fmt.Sprintf(format, args...)))
}

func (o *Output) paint(color, text string) string {
	if !o.colorEnabled {
		return text
	}
	return color + text + ColorReset
}

func (o *Output) Green(text string) string  { return o.paint(ColorGreen, text) }
func (o *Output) Red(text string) string    { return o.paint(ColorRed, text) }
func (o *Output) Yellow(text string) string { return o.paint(ColorYellow, text) }
func (o *Output) Cyan(text string) string   { return o.paint(ColorCyan, text) }

// urgencyText colours text by closing urgency.
func (o *Output) urgencyText(u report.Urgency, text string) string {
	switch u {
	case report.UrgencyHigh:
		return o.Red(text)
	case report.UrgencyMedium:
		return o.Yellow(text)
	}
	return o.Cyan(text)
}

var ansiPattern = regexp.MustCompile("\033\\[[0-9;]*m")

func stripANSI(s string) string {
	return ansiPattern.ReplaceAllString(s, "")
}

// displayWidth is the number of runes left once colour codes are removed.
func displayWidth(s string) int {
	return utf8.RuneCountInString(stripANSI(s))
}

func pad(s string, width int) string {
	if n := width - displayWidth(s); n > 0 {
		return s + strings.Repeat(" ", n)
	}
	return s
}

// Table renders rows in aligned columns under a header.
type Table struct {
	headers []string
	rows    [][]string
	output  *Output
}

// NewTable creates a new table.
func NewTable(output *Output, headers ...string) *Table {
	return &Table{headers: headers, output: output}
}

// AddRow adds a row. Cells beyond the header count are ignored.
func (t *Table) AddRow(cells ...string) {
	t.rows = append(t.rows, cells)
}

// Render writes the header, a rule and every row.
func (t *Table) Render() {
	if len(t.headers) == 0 {
		return
	}

	widths := make([]int, len(t.headers))
	for i, h := range t.headers {
		widths[i] = displayWidth(h)
	}
	for _, row := range t.rows {
		for i := 0; i < len(row) && i < len(widths); i++ {
			widths[i] = max(widths[i], displayWidth(row[i]))
		}
	}

	header := make([]string, len(t.headers))
	rule := make([]string, len(t.headers))
	for i, h := range t.headers {
		header[i] = t.output.paint(ColorBold, pad(h, widths[i]))
		rule[i] = strings.Repeat("─", widths[i])
	}
	t.output.Println(strings.Join(header, "  "))
	t.output.Println(t.output.paint(ColorDim, strings.Join(rule, "──")))

	for _, row := range t.rows {
		cells := make([]string, len(widths))
		for i := range widths {
			if i < len(row) {
				cells[i] = pad(row[i], widths[i])
			} else {
				cells[i] = strings.Repeat(" ", widths[i])
			}
		}
		t.output.Println(strings.Join(cells, "  "))
	}
}

// Box draws a titled frame around lines.
func (o *Output) Box(title string, lines []string) {
	inner := displayWidth(title)
	for _, l := range lines {
		inner = max(inner, displayWidth(l))
	}

	h, v, tl, tr, ml, mr, bl, br := "-", "|", "+", "+", "+", "+", "+", "+"
	if o.colorEnabled {
		h, v, tl, tr, ml, mr, bl, br = "─", "│", "┌", "┐", "├", "┤", "└", "┘"
	}
	border := strings.Repeat(h, inner+2)
	frame := func(s string) string { return o.paint(ColorDim, s) }

	o.Println(frame(tl + border + tr))
	o.Println(frame(v) + " " + o.paint(ColorBold, pad(title, inner)) + " " + frame(v))
	o.Println(frame(ml + border + mr))
	for _, l := range lines {
		o.Println(frame(v) + " " + pad(l, inner) + " " + frame(v))
	}
	o.Println(frame(bl + border + br))
}
