package memo

import (
	"fmt"
	"io"
	"strings"
)

// RenderText writes the plain transcript text.
func RenderText(w io.Writer, r *Result) error {
	_, err := fmt.Fprintln(w, r.Text)
	return err
}

// RenderMarkdown writes a Markdown document with a metadata list and one
// paragraph per timestamped segment.
func RenderMarkdown(w io.Writer, r *Result) error {
	var b strings.Builder
	fmt.Fprintf(&b, "# Transcript %s\n\n", r.Timestamp)
	if r.Source != "" {
		fmt.Fprintf(&b, "- Source: `%s`\n", r.Source)
	}
	if r.Model != "" {
		fmt.Fprintf(&b, "- Model: `%s`\n", r.Model)
	}
	fmt.Fprintf(&b, "- Language: %s\n", r.Language)
	fmt.Fprintf(&b, "- Duration: %s\n", r.FormattedDuration())
	fmt.Fprintf(&b, "- Words: %d\n", r.WordCount())
	b.WriteString("\n---\n\n")

	if len(r.Segments) == 0 {
		b.WriteString(r.Text)
		b.WriteString("\n")
	}
	for _, s := range r.Segments {
		fmt.Fprintf(&b, "%s %s\n\n", s.Timestamp(), strings.TrimSpace(s.Text))
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// RenderSRT writes the segments as SubRip subtitles.
func RenderSRT(w io.Writer, r *Result) error {
	var b strings.Builder
	for i, s := range r.Segments {
		fmt.Fprintf(&b, "%d\n%s --> %s\n%s\n\n", i+1, srtTime(s.Start), srtTime(s.End), strings.TrimSpace(s.Text))
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// Renderers maps export format names to renderers.
var Renderers = map[string]func(io.Writer, *Result) error{
	"text":     RenderText,
	"txt":      RenderText,
	"markdown": RenderMarkdown,
	"md":       RenderMarkdown,
	"srt":      RenderSRT,
}

func srtTime(sec float64) string {
	ms := int64(sec*1000 + 0.5)
	return fmt.Sprintf("%02d:%02d:%02d,%03d", ms/3600000, ms/60000%60, ms/1000%60, ms%1000)
}
