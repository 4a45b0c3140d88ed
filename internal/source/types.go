package source

import (
	"encoding/json"
	"errors"
	"time"
)

// Row maps a column name to its decoded value. See decodeValue for the set of
// value types a Row can hold.
type Row map[string]any

type TableExtract struct {
	Table   string   `json:"table"`
	Columns []string `json:"columns"`
	Data    []Row    `json:"data"`
}

// TableFailure records why a discovered table is missing from a report.
type TableFailure struct {
	Table string
	Err   error
}

func (f TableFailure) MarshalJSON() ([]byte, error) {
	out := struct {
		Table string `json:"table"`
		Phase string `json:"phase,omitempty"`
		Error string `json:"error"`
	}{Table: f.Table}
	var qe *QueryError
	if errors.As(f.Err, &qe) {
		out.Phase = qe.Phase
	}
	if f.Err != nil {
		out.Error = f.Err.Error()
	}
	return json.Marshal(out)
}

// ExtractionReport is the result of one extraction run. Every table discovered
// by the schema lister ends up in exactly one of Tables or Failures, and both
// keep the discovery order.
type ExtractionReport struct {
	Schema    string         `json:"schema"`
	StartedAt time.Time      `json:"started_at"`
	Duration  time.Duration  `json:"duration_ns"`
	Tables    []TableExtract `json:"tables"`
	Failures  []TableFailure `json:"failures,omitempty"`
}

// Err returns an *ExtractionError aggregating the per-table failures, or nil
// when every table was extracted.
func (r *ExtractionReport) Err() error {
	if r == nil || len(r.Failures) == 0 {
		return nil
	}
	return &ExtractionError{Failures: r.Failures}
}

func (r *ExtractionReport) Table(name string) (TableExtract, bool) {
	for _, t := range r.Tables {
		if t.Table == name {
			return t, true
		}
	}
	return TableExtract{}, false
}

func (r *ExtractionReport) RowCount() int {
	n := 0
	for _, t := range r.Tables {
		n += len(t.Data)
	}
	return n
}
