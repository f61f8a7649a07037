package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"reflect"
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/goccy/go-yaml"
	"github.com/itchyny/gojq"
)

// OutputFormat selects how Output renders a value.
type OutputFormat string

const (
	FormatYAML  OutputFormat = "yaml"
	FormatJSON  OutputFormat = "json"
	FormatTable OutputFormat = "table"
	FormatRaw   OutputFormat = "raw"
)

// ParseFormat validates a --output flag value.
func ParseFormat(s string) (OutputFormat, error) {
	f := OutputFormat(strings.ToLower(s))
	switch f {
	case FormatYAML, FormatJSON, FormatTable, FormatRaw:
		return f, nil
	case "":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("unsupported output format: %s", s)
}

// OutputOptions configures Output.
type OutputOptions struct {
	Format OutputFormat
	// Query is a jq expression applied to the JSON form of the value.
	Query string
	// File is written instead of Writer when set.
	File   string
	Indent string
	// Writer defaults to os.Stdout.
	Writer io.Writer
}

// Output writes result in the configured format.
func Output(result any, opts OutputOptions) error {
	var w io.Writer = os.Stdout
	if opts.Writer != nil {
		w = opts.Writer
	} else if opts.File != "" {
		f, err := os.Create(opts.File)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	if opts.Query != "" {
		v, err := Query(result, opts.Query)
		if err != nil {
			return err
		}
		result = v
	}

	switch opts.Format {
	case FormatJSON:
		return outputJSON(w, result, opts.Indent)
	case FormatYAML, "":
		return outputYAML(w, result)
	case FormatTable:
		return outputTable(w, result)
	case FormatRaw:
		return outputRaw(w, result)
	default:
		return fmt.Errorf("unsupported output format: %s", opts.Format)
	}
}

// Query runs a jq expression over the JSON form of v. A single result is
// returned as is, several results as a slice.
func Query(v any, expr string) (any, error) {
	q, err := gojq.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid query: %w", err)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var input any
	if err := json.Unmarshal(data, &input); err != nil {
		return nil, err
	}

	var out []any
	iter := q.Run(input)
	for {
		r, ok := iter.Next()
		if !ok {
			break
		}
		if err, ok := r.(error); ok {
			var halt *gojq.HaltError
			if errors.As(err, &halt) && halt.Value() == nil {
				break
			}
			return nil, fmt.Errorf("query: %w", err)
		}
		out = append(out, r)
	}
	if len(out) == 1 {
		return out[0], nil
	}
	return out, nil
}

func outputJSON(w io.Writer, result any, indent string) error {
	enc := json.NewEncoder(w)
	if indent == "" {
		indent = "  "
	}
	enc.SetIndent("", indent)
	return enc.Encode(result)
}

func outputYAML(w io.Writer, result any) error {
	data, err := yaml.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to format output: %w", err)
	}
	_, err = w.Write(data)
	return err
}

func outputRaw(w io.Writer, result any) error {
	switch v := result.(type) {
	case []byte:
		_, err := w.Write(v)
		return err
	case string:
		_, err := io.WriteString(w, v)
		return err
	default:
		return outputYAML(w, result)
	}
}

// outputTable renders a slice of objects as rows keyed by the fields of
// the first row. Anything else falls back to YAML.
func outputTable(w io.Writer, result any) error {
	data, err := json.Marshal(result)
	if err != nil {
		return err
	}
	var rows []map[string]any
	if err := json.Unmarshal(data, &rows); err != nil || len(rows) == 0 {
		return outputYAML(w, result)
	}

	headers := tableHeaders(result, rows[0])
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(DefaultTheme.Dim)).
		Headers(headers...)
	for _, row := range rows {
		cells := make([]string, len(headers))
		for i, h := range headers {
			if v, ok := row[h]; ok && v != nil {
				cells[i] = fmt.Sprint(v)
			}
		}
		t.Row(cells...)
	}
	_, err = fmt.Fprintln(w, t.Render())
	return err
}

// tableHeaders keeps struct field order when result is a slice of structs.
func tableHeaders(result any, first map[string]any) []string {
	rt := reflect.TypeOf(result)
	if rt != nil && (rt.Kind() == reflect.Slice || rt.Kind() == reflect.Array) {
		et := rt.Elem()
		for et.Kind() == reflect.Pointer {
			et = et.Elem()
		}
		if et.Kind() == reflect.Struct {
			var hs []string
			for i := range et.NumField() {
				name, _, _ := strings.Cut(et.Field(i).Tag.Get("json"), ",")
				if name == "" {
					name = et.Field(i).Name
				}
				if _, ok := first[name]; ok {
					hs = append(hs, name)
				}
			}
			if len(hs) > 0 {
				return hs
			}
		}
	}
	hs := make([]string, 0, len(first))
	for k := range first {
		hs = append(hs, k)
	}
	slices.Sort(hs)
	return hs
}

// PrintSuccess prints a success message with checkmark.
func PrintSuccess(format string, args ...any) {
	fmt.Printf("✓ "+format+"\n", args...)
}

// PrintError prints an error message to stderr.
func PrintError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
}

// PrintInfo prints an info message.
func PrintInfo(format string, args ...any) {
	fmt.Printf("ℹ "+format+"\n", args...)
}

// PrintWarning prints a warning message to stderr.
func PrintWarning(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "⚠ "+format+"\n", args...)
}
