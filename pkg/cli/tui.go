package cli

import (
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// Theme defines the colors of terminal output.
type Theme struct {
	Primary lipgloss.Color
	Dim     lipgloss.Color
	Alert   lipgloss.Color
}

// DefaultTheme is cyan on dark, like the recording screen of the app.
var DefaultTheme = Theme{
	Primary: lipgloss.Color("#22d3ee"),
	Dim:     lipgloss.Color("#6e7681"),
	Alert:   lipgloss.Color("#f43f5e"),
}

// Styles holds the styles derived from a theme.
type Styles struct {
	Title lipgloss.Style
	Clock lipgloss.Style
	Meter lipgloss.Style
	Help  lipgloss.Style
	Live  lipgloss.Style
	Box   lipgloss.Style
}

// NewStyles creates styles from a theme.
func NewStyles(t Theme) Styles {
	return Styles{
		Title: lipgloss.NewStyle().Bold(true).Foreground(t.Primary),
		Clock: lipgloss.NewStyle().Bold(true),
		Meter: lipgloss.NewStyle().Foreground(t.Primary),
		Help:  lipgloss.NewStyle().Foreground(t.Dim),
		Live:  lipgloss.NewStyle().Bold(true).Foreground(t.Alert),
		Box: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(t.Primary).
			Padding(0, 1),
	}
}

var bars = []rune("▁▂▃▄▅▆▇█")

// Meter draws the last width levels (each in [0, 1]) as a bar strip,
// right aligned.
func Meter(levels []float32, width int) string {
	if width <= 0 {
		return ""
	}
	if len(levels) > width {
		levels = levels[len(levels)-width:]
	}
	var b strings.Builder
	b.WriteString(strings.Repeat(" ", width-len(levels)))
	for _, l := range levels {
		i := int(min(max(l, 0), 1) * float32(len(bars)-1))
		b.WriteRune(bars[i])
	}
	return b.String()
}

// RecordView is one frame of the recording screen.
type RecordView struct {
	Styles  Styles
	State   string
	Elapsed time.Duration
	Levels  []float32
	Logs    []string
	Help    string
}

// Render draws the frame width columns wide.
func (v RecordView) Render(width int) string {
	inner := max(width-4, 10)

	status := v.Styles.Help.Render(v.State)
	if v.State == "recording" {
		status = v.Styles.Live.Render("● REC")
	}
	head := v.Styles.Title.Render("voxmemo") + "  " + status
	clock := v.Styles.Clock.Render(FormatClock(v.Elapsed))
	gap := max(inner-lipgloss.Width(head)-lipgloss.Width(clock), 1)

	lines := []string{
		head + strings.Repeat(" ", gap) + clock,
		"",
		v.Styles.Meter.Render(Meter(v.Levels, inner)),
	}
	if len(v.Logs) > 0 {
		lines = append(lines, "")
		for _, l := range v.Logs {
			lines = append(lines, v.Styles.Help.Render(truncate(l, inner)))
		}
	}
	out := v.Styles.Box.Width(inner + 2).Render(strings.Join(lines, "\n"))
	if v.Help != "" {
		out += "\n" + v.Styles.Help.Render(v.Help)
	}
	return out
}

// truncate cuts s to width display cells, marking the cut with "…".
func truncate(s string, width int) string {
	if lipgloss.Width(s) <= width {
		return s
	}
	var b strings.Builder
	w := 0
	for _, r := range s {
		rw := lipgloss.Width(string(r))
		if w+rw > width-1 {
			break
		}
		b.WriteRune(r)
		w += rw
	}
	return b.String() + "…"
}
