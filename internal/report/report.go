// Package report renders an aggregate result set for humans and machines.
package report

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/signalnine/crucible/internal/result"
)

// Generate writes set to w in the given format (table, markdown, json).
func Generate(set *result.Set, format string, w io.Writer) error {
	switch format {
	case "markdown":
		return writeMarkdown(set, w)
	case "json":
		return writeJSON(set, w)
	default:
		return writeTable(set, w)
	}
}

// writeTable emits the plain-text summary. Rows with report_on false are
// bookkeeping stages and stay out of the report.
func writeTable(set *result.Set, w io.Writer) error {
	if _, err := fmt.Fprintln(w, "old failure | new failure | attempt | title"); err != nil {
		return err
	}
	for _, row := range set.Results {
		if !row.ReportOn {
			continue
		}
		_, err := fmt.Fprintf(w, "%11d | %11d | %7d | %s\n",
			row.OldFailures, row.NewFailures, row.Attempts, row.Title)
		if err != nil {
			return err
		}
	}
	return nil
}

func writeMarkdown(set *result.Set, w io.Writer) error {
	fmt.Fprintln(w, "| Old Failure | New Failure | Attempt | Title |")
	fmt.Fprintln(w, "|---|---|---|---|")
	for _, row := range set.Results {
		if !row.ReportOn {
			continue
		}
		fmt.Fprintf(w, "| %d | %d | %d | %s |\n",
			row.OldFailures, row.NewFailures, row.Attempts, row.Title)
	}
	return nil
}

func writeJSON(set *result.Set, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(set)
}
