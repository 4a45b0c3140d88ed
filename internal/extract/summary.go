package extract

import (
	"errors"

	"github.com/alexanderjulianmartinez/data-extract/internal/drift"
	"github.com/alexanderjulianmartinez/data-extract/internal/source"
	"github.com/alexanderjulianmartinez/data-extract/pkg/types"
)

// Summarize flattens report into one summary per table: extracted tables first,
// then failed ones, each group in discovery order.
func Summarize(report *source.ExtractionReport) []types.TableSummary {
	out := make([]types.TableSummary, 0, len(report.Tables)+len(report.Failures))
	for _, t := range report.Tables {
		s := types.TableSummary{
			Table:   t.Table,
			Columns: len(t.Columns),
			Rows:    len(t.Data),
			Status:  types.StatusOK,
		}
		if issues := drift.Check(t); len(issues) > 0 {
			s.DriftIssues = len(issues)
			s.Status = types.StatusDrift
		}
		out = append(out, s)
	}
	for _, f := range report.Failures {
		s := types.TableSummary{Table: f.Table, Status: types.StatusFailed}
		var qe *source.QueryError
		if errors.As(f.Err, &qe) {
			s.Phase = qe.Phase
		}
		if f.Err != nil {
			s.Error = f.Err.Error()
		}
		out = append(out, s)
	}
	return out
}
