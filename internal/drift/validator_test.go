package drift

import (
	"testing"

	"github.com/alexanderjulianmartinez/data-extract/internal/source"
)

func TestColumnAdded(t *testing.T) {
	tbl := source.TableExtract{Table: "t1", Columns: []string{"a"}, Data: []source.Row{{"a": 1, "b": "x"}}}
	issues := Check(tbl)
	if len(issues) != 1 {
		t.Fatalf("expected 1 issue, got %d: %v", len(issues), issues)
	}
	iss := issues[0]
	if iss.Severity != SeverityForChange("column_added") {
		t.Fatalf("expected severity %s, got %s", SeverityForChange("column_added"), iss.Severity)
	}
	if iss.Column != "b" || iss.Table != "t1" {
		t.Fatalf("expected t1.b, got %s.%s", iss.Table, iss.Column)
	}
}

func TestColumnRemoved(t *testing.T) {
	tbl := source.TableExtract{Table: "t1", Columns: []string{"a", "b"}, Data: []source.Row{{"a": 1}}}
	issues := Check(tbl)
	if len(issues) != 1 {
		t.Fatalf("expected 1 issue, got %d: %v", len(issues), issues)
	}
	iss := issues[0]
	if iss.Severity != SeverityBlock {
		t.Fatalf("expected severity %s, got %s", SeverityBlock, iss.Severity)
	}
	if iss.Column != "b" {
		t.Fatalf("expected column b, got %s", iss.Column)
	}
}

func TestNoIssuesForMatchingShape(t *testing.T) {
	tbl := source.TableExtract{Table: "t1", Columns: []string{"a", "b"}, Data: []source.Row{{"a": 1, "b": nil}, {"a": 2, "b": "y"}}}
	if issues := Check(tbl); len(issues) != 0 {
		t.Fatalf("expected no issues, got %v", issues)
	}
}

func TestEmptyTableHasNoIssues(t *testing.T) {
	if issues := Check(source.TableExtract{Table: "t1", Columns: []string{"a"}}); issues != nil {
		t.Fatalf("expected no issues, got %v", issues)
	}
}

func TestColumnsMissing(t *testing.T) {
	issues := Check(source.TableExtract{Table: "t1", Data: []source.Row{{"a": 1}}})
	if len(issues) != 1 || issues[0].Kind != "columns_missing" || issues[0].Severity != SeverityWarn {
		t.Fatalf("expected columns_missing WARN, got %v", issues)
	}
}

func TestIssuesAreDeterministic(t *testing.T) {
	tbl := source.TableExtract{
		Table:   "t1",
		Columns: []string{"a", "b", "c"},
		Data:    []source.Row{{"a": 1, "z": 1, "y": 2}, {"a": 2, "z": 1, "y": 2}},
	}
	issues := Check(tbl)
	var got []string
	for _, iss := range issues {
		got = append(got, iss.Kind+":"+iss.Column)
	}
	want := []string{"column_removed:b", "column_removed:c", "column_added:y", "column_added:z"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestValidateReport(t *testing.T) {
	report := &source.ExtractionReport{Tables: []source.TableExtract{
		{Table: "ok", Columns: []string{"a"}, Data: []source.Row{{"a": 1}}},
		{Table: "bad", Columns: []string{"a", "b"}, Data: []source.Row{{"a": 1}}},
	}}
	rep := Validate(report)
	if len(rep.Issues) != 1 || rep.Issues[0].Table != "bad" {
		t.Fatalf("expected one issue for bad, got %v", rep.Issues)
	}
	if !rep.Blocking() {
		t.Fatalf("expected blocking report")
	}
}
