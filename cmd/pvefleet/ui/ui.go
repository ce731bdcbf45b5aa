// Package ui renders pvefleet's terminal output: styled one-line messages,
// tables, a confirm prompt, and the step progress view fed by telemetry
// spans.
package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// Palette, muted enough for dark terminals.
var (
	colorAccent = lipgloss.Color("99")
	colorOK     = lipgloss.Color("76")
	colorFail   = lipgloss.Color("204")
	colorWarn   = lipgloss.Color("214")
	colorDim    = lipgloss.Color("243")
	colorFaint  = lipgloss.Color("238")
)

var (
	AccentStyle  = lipgloss.NewStyle().Foreground(colorAccent)
	SuccessStyle = lipgloss.NewStyle().Foreground(colorOK)
	ErrorStyle   = lipgloss.NewStyle().Foreground(colorFail)
	WarnStyle    = lipgloss.NewStyle().Foreground(colorWarn)
	MutedStyle   = lipgloss.NewStyle().Foreground(colorDim)
	LabelStyle   = lipgloss.NewStyle().Foreground(colorDim)
)

// Inline helpers. No trailing newlines.

func Accent(s string) string  { return AccentStyle.Render(s) }
func Muted(s string) string   { return MutedStyle.Render(s) }
func Success(s string) string { return SuccessStyle.Render(s) }
func Warn(s string) string    { return WarnStyle.Render(s) }

// One-line status messages with a leading glyph.

func SuccessMsg(format string, a ...any) string {
	return SuccessStyle.Render("✓") + " " + fmt.Sprintf(format, a...)
}

func WarnMsg(format string, a ...any) string {
	return WarnStyle.Render("!") + " " + fmt.Sprintf(format, a...)
}

func ErrorMsg(format string, a ...any) string {
	return ErrorStyle.Render("✗") + " " + fmt.Sprintf(format, a...)
}

func InfoMsg(format string, a ...any) string {
	return AccentStyle.Render("●") + " " + fmt.Sprintf(format, a...)
}

// Pair is a label/value line for KeyValues. Construct with KV.
type Pair struct {
	key   string
	value string
}

func KV(key, value string) Pair {
	return Pair{key: key, value: value}
}

// KeyValues renders the pairs as aligned "key:  value" lines, one per row,
// with a trailing newline.
func KeyValues(indent string, pairs ...Pair) string {
	width := 0
	for _, p := range pairs {
		if len(p.key) > width {
			width = len(p.key)
		}
	}

	var b strings.Builder
	for _, p := range pairs {
		label := fmt.Sprintf("%-*s", width+1, p.key+":")
		b.WriteString(indent + LabelStyle.Render(label) + " " + p.value + "\n")
	}
	return b.String()
}

// Table renders rows under a bold header with rounded borders. Body rows
// alternate between plain and dimmed.
func Table(headers []string, rows [][]string) string {
	header := lipgloss.NewStyle().Foreground(colorAccent).Bold(true).Padding(0, 1)
	cell := lipgloss.NewStyle().Padding(0, 1)
	dimCell := cell.Foreground(colorDim)

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorFaint)).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return header
			}
			if row%2 != 0 {
				return dimCell
			}
			return cell
		}).
		Headers(headers...).
		Rows(rows...)

	return t.String()
}
