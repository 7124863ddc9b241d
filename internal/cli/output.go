package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"gopkg.in/yaml.v3"
)

type outputFormat string

const (
	formatText outputFormat = "text"
	formatJSON outputFormat = "json"
	formatYAML outputFormat = "yaml"
)

func parseOutputFormat(s string) (outputFormat, error) {
	switch f := outputFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case formatText, formatJSON, formatYAML:
		return f, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want text, json, or yaml)", s)
	}
}

// write prints v in the selected format. text renders the human form; a nil
// text falls back to YAML.
func (a *App) write(v any, text func(w io.Writer) error) error {
	switch {
	case a.format == formatJSON:
		enc := json.NewEncoder(a.out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case a.format == formatYAML, text == nil:
		enc := yaml.NewEncoder(a.out)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return text(a.out)
	}
}

// table writes aligned columns under upper-cased headers.
func table(w io.Writer, header []string, rows [][]string) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	if _, err := fmt.Fprintln(tw, strings.ToUpper(strings.Join(header, "\t"))); err != nil {
		return err
	}
	for _, row := range rows {
		if _, err := fmt.Fprintln(tw, strings.Join(row, "\t")); err != nil {
			return err
		}
	}
	return tw.Flush()
}

func formatScore(score float64) string {
	return fmt.Sprintf("%.0f/100", score)
}

func formatLimit(used, limit int) string {
	if limit < 0 {
		return fmt.Sprintf("%d used (unlimited)", used)
	}
	return fmt.Sprintf("%d of %d used", used, limit)
}
