package history

import (
	"context"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/haivivi/voxmemo/pkg/memo"
)

// Search returns the results whose text contains query, ignoring case,
// newest first. An empty query matches everything.
func Search(ctx context.Context, s Store, query string) ([]*memo.Result, error) {
	rs, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return rs, nil
	}
	var out []*memo.Result
	for _, r := range rs {
		if strings.Contains(strings.ToLower(r.Text), q) {
			out = append(out, r)
		}
	}
	return out, nil
}

// Export renders the result id in format (see memo.Renderers) to w.
func Export(ctx context.Context, s Store, id, format string, w io.Writer) error {
	render, ok := memo.Renderers[strings.ToLower(format)]
	if !ok {
		return fmt.Errorf("history: unknown export format %q", format)
	}
	r, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	return render(w, r)
}

// Entry is the list view of a result.
type Entry struct {
	ID       string `json:"id" yaml:"id"`
	Time     string `json:"time" yaml:"time"`
	Duration string `json:"duration" yaml:"duration"`
	Words    int    `json:"words" yaml:"words"`
	Language string `json:"language" yaml:"language"`
	Preview  string `json:"preview" yaml:"preview"`
}

// Summarize builds the list view of r with a preview of at most n runes.
func Summarize(r *memo.Result, n int) Entry {
	return Entry{
		ID:       r.ID,
		Time:     r.Timestamp.String(),
		Duration: r.FormattedDuration(),
		Words:    r.WordCount(),
		Language: r.Language,
		Preview:  preview(r.Text, n),
	}
}

func preview(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:n])) + "…"
}
