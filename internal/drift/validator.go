// Package drift detects tables whose schema changed between the column fetch
// and the data fetch of one extraction.
package drift

import (
	"sort"

	"github.com/alexanderjulianmartinez/data-extract/internal/source"
)

type Issue struct {
	Table    string
	Column   string
	Kind     string
	Severity string
	Message  string
}

func newIssue(table, column, kind string) Issue {
	return Issue{
		Table:    table,
		Column:   column,
		Kind:     kind,
		Severity: SeverityForChange(kind),
		Message:  MessageForChange(kind),
	}
}

// Check compares the column list of t against the keys of its rows. A table
// without rows has nothing to compare and yields no issues.
func Check(t source.TableExtract) []Issue {
	if len(t.Data) == 0 {
		return nil
	}
	if len(t.Columns) == 0 {
		return []Issue{newIssue(t.Table, "", "columns_missing")}
	}

	listed := make(map[string]bool, len(t.Columns))
	for _, c := range t.Columns {
		listed[c] = true
	}

	var issues []Issue
	seen := map[string]bool{}
	var extra []string
	missing := map[string]bool{}
	for _, row := range t.Data {
		for k := range row {
			if !listed[k] && !seen[k] {
				seen[k] = true
				extra = append(extra, k)
			}
		}
		for _, c := range t.Columns {
			if _, ok := row[c]; !ok {
				missing[c] = true
			}
		}
	}

	// column list order for removed columns, name order for added ones
	for _, c := range t.Columns {
		if missing[c] {
			issues = append(issues, newIssue(t.Table, c, "column_removed"))
		}
	}
	sort.Strings(extra)
	for _, c := range extra {
		issues = append(issues, newIssue(t.Table, c, "column_added"))
	}
	return issues
}

type Report struct {
	Issues []Issue
}

func (r *Report) Blocking() bool {
	for _, iss := range r.Issues {
		if iss.Severity == SeverityBlock {
			return true
		}
	}
	return false
}

// Validate runs Check over every extracted table of report.
func Validate(report *source.ExtractionReport) *Report {
	out := &Report{}
	for _, t := range report.Tables {
		out.Issues = append(out.Issues, Check(t)...)
	}
	return out
}
