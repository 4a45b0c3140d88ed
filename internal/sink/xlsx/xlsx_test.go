package xlsx

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/alexanderjulianmartinez/data-extract/internal/source"
)

func TestWrite_SheetsAndRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.xlsx")
	report := &source.ExtractionReport{
		Schema:    "shop",
		StartedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Tables: []source.TableExtract{
			{
				Table:   "customers",
				Columns: []string{"id", "name", "balance"},
				Data: []source.Row{
					{"id": int64(1), "name": "Ada", "balance": json.Number("10.50")},
					{"id": int64(2), "name": nil, "balance": json.Number("0")},
				},
			},
			{Table: "empty", Columns: []string{"id"}, Data: []source.Row{}},
		},
		Failures: []source.TableFailure{
			{Table: "broken", Err: &source.QueryError{Phase: source.PhaseReadData, Table: "broken", Err: errors.New("boom")}},
		},
	}

	if err := New(Config{Path: path}).Write(context.Background(), report); err != nil {
		t.Fatalf("write: %v", err)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if strings.Join(sheets, ",") != "Overview,customers,empty" {
		t.Fatalf("unexpected sheets: %v", sheets)
	}

	rows, err := f.GetRows("customers")
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected header plus 2 rows, got %d", len(rows))
	}
	if strings.Join(rows[0], ",") != "id,name,balance" {
		t.Fatalf("unexpected header: %v", rows[0])
	}
	if rows[1][0] != "1" || rows[1][1] != "Ada" || rows[1][2] != "10.5" {
		t.Fatalf("unexpected first row: %v", rows[1])
	}

	overview, err := f.GetRows("Overview")
	if err != nil {
		t.Fatal(err)
	}
	var failed bool
	for _, r := range overview {
		if len(r) >= 5 && r[0] == "broken" && r[4] == "failed" {
			failed = true
		}
	}
	if !failed {
		t.Fatalf("expected failed table listed on overview, got %v", overview)
	}
}

func TestSheetNames(t *testing.T) {
	long := strings.Repeat("x", 40)
	tables := []source.TableExtract{
		{Table: "a/b"},
		{Table: "A_B"},
		{Table: "overview"},
		{Table: long},
		{Table: long + "y"},
		{Table: "'quoted'"},
	}
	got := sheetNames(tables)
	want := []string{"a_b", "A_B~2", "overview~2", strings.Repeat("x", 31), strings.Repeat("x", 29) + "~2", "quoted"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sheet %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}

func TestCellValue(t *testing.T) {
	cases := []struct {
		in   any
		want any
	}{
		{json.Number("42"), int64(42)},
		{json.Number("1.25"), 1.25},
		{json.Number("12345678901234567890.123"), "12345678901234567890.123"},
		{[]byte("text"), "text"},
		{[]byte{0xff, 0x00}, "0xff00"},
		{map[string]any{"k": "v"}, `{"k":"v"}`},
		{nil, nil},
	}
	for _, c := range cases {
		if got := cellValue(c.in); got != c.want {
			t.Errorf("cellValue(%v): expected %v (%T), got %v (%T)", c.in, c.want, c.want, got, got)
		}
	}
}
