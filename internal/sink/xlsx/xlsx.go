// Package xlsx writes a report as an Excel workbook: an Overview sheet
// followed by one sheet per extracted table.
package xlsx

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"github.com/alexanderjulianmartinez/data-extract/internal/source"
)

const (
	overviewSheet = "Overview"
	maxSheetName  = 31
)

type Config struct {
	Path string
}

type Writer struct {
	cfg Config
}

func New(cfg Config) *Writer {
	return &Writer{cfg: cfg}
}

func (w *Writer) Name() string { return "xlsx:" + w.cfg.Path }

func (w *Writer) Close() error { return nil }

func (w *Writer) Write(ctx context.Context, report *source.ExtractionReport) error {
	f := excelize.NewFile()
	defer f.Close()

	f.SetSheetName("Sheet1", overviewSheet)
	style := headerStyle(f)

	names := sheetNames(report.Tables)
	if err := writeOverview(f, report, names, style); err != nil {
		return fmt.Errorf("write overview: %w", err)
	}
	for i, t := range report.Tables {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := writeTable(f, names[i], t, style); err != nil {
			return fmt.Errorf("write table %s: %w", t.Table, err)
		}
	}
	f.SetActiveSheet(0)

	if err := f.SaveAs(w.cfg.Path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}

func writeOverview(f *excelize.File, report *source.ExtractionReport, names []string, style int) error {
	rows := [][]any{
		{"Item", "Value"},
		{"Schema", report.Schema},
		{"Started At", report.StartedAt.Format(time.RFC3339)},
		{"Duration", report.Duration.String()},
		{"Tables Extracted", len(report.Tables)},
		{"Tables Failed", len(report.Failures)},
		{"Total Rows", report.RowCount()},
		{},
		{"Table", "Sheet", "Columns", "Rows", "Status", "Error"},
	}
	for i, t := range report.Tables {
		rows = append(rows, []any{t.Table, names[i], len(t.Columns), len(t.Data), "ok", ""})
	}
	for _, fl := range report.Failures {
		msg := ""
		if fl.Err != nil {
			msg = fl.Err.Error()
		}
		rows = append(rows, []any{fl.Table, "", "", "", "failed", msg})
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(overviewSheet, cell, &row); err != nil {
			return err
		}
	}
	f.SetCellStyle(overviewSheet, "A1", "B1", style)
	f.SetCellStyle(overviewSheet, "A9", "F9", style)
	f.SetColWidth(overviewSheet, "A", "A", 25)
	f.SetColWidth(overviewSheet, "B", "B", 30)
	f.SetColWidth(overviewSheet, "F", "F", 60)
	return nil
}

func writeTable(f *excelize.File, sheet string, t source.TableExtract, style int) error {
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}

	header := make([]any, len(t.Columns))
	for i, c := range t.Columns {
		header[i] = c
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}
	if len(t.Columns) > 0 {
		last, err := excelize.CoordinatesToCellName(len(t.Columns), 1)
		if err != nil {
			return err
		}
		f.SetCellStyle(sheet, "A1", last, style)
	}

	for r, row := range t.Data {
		values := make([]any, len(t.Columns))
		for i, c := range t.Columns {
			values[i] = cellValue(row[c])
		}
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return err
		}
	}
	return nil
}

// cellValue converts a decoded row value into something excelize stores
// natively.
func cellValue(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return n
		}
		// Excel keeps 15 significant digits; longer decimals stay text.
		if fl, err := x.Float64(); err == nil && len(x.String()) <= 15 {
			return fl
		}
		return x.String()
	case []byte:
		if utf8.Valid(x) {
			return string(x)
		}
		return "0x" + hex.EncodeToString(x)
	case string, bool, int64, uint64, float64, time.Time:
		return x
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(b)
	}
}

// sheetNames maps each table to a unique, valid worksheet name.
func sheetNames(tables []source.TableExtract) []string {
	used := map[string]bool{strings.ToLower(overviewSheet): true}
	out := make([]string, len(tables))
	for i, t := range tables {
		base := sanitize(t.Table)
		name := base
		for n := 2; used[strings.ToLower(name)]; n++ {
			suffix := fmt.Sprintf("~%d", n)
			name = truncate(base, maxSheetName-len(suffix)) + suffix
		}
		used[strings.ToLower(name)] = true
		out[i] = name
	}
	return out
}

func sanitize(name string) string {
	name = strings.Map(func(r rune) rune {
		switch r {
		case ':', '\\', '/', '?', '*', '[', ']':
			return '_'
		}
		return r
	}, name)
	name = strings.Trim(name, "'")
	if name == "" {
		name = "table"
	}
	return truncate(name, maxSheetName)
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

func headerStyle(f *excelize.File) int {
	style, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#D9D9D9"},
			Pattern: 1,
		},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	return style
}
