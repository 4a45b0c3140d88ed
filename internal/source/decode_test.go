package source

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"testing"
	"time"
)

func TestDecodeValue(t *testing.T) {
	ts := time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)
	cases := []struct {
		typ  string
		in   any
		want any
	}{
		{"INT", nil, nil},
		{"INT", []byte("-7"), int64(-7)},
		{"UNSIGNED BIGINT", []byte("18446744073709551615"), uint64(18446744073709551615)},
		{"DOUBLE", []byte("2.5"), 2.5},
		{"decimal(10,2)", []byte("19.90"), json.Number("19.90")},
		{"BOOLEAN", []byte("1"), true},
		{"VARCHAR", []byte("hello"), "hello"},
		{"", []byte("untyped"), "untyped"},
		{"BLOB", []byte{1, 2}, []byte{1, 2}},
		{"DATETIME", []byte("2024-03-01 12:30:00"), ts},
		{"DATE", []byte("0000-00-00"), "0000-00-00"},
		{"TIMESTAMP", ts, ts},
		{"INT4", int64(5), int64(5)},
		{"TEXT", "plain", "plain"},
		{"BOOL", true, true},
		{"INTEGER", int32(9), int64(9)},
	}
	for _, c := range cases {
		got, err := decodeValue(c.typ, c.in)
		if err != nil {
			t.Fatalf("decodeValue(%q, %#v): %v", c.typ, c.in, err)
		}
		if !reflect.DeepEqual(got, c.want) {
			t.Errorf("decodeValue(%q, %#v) = %#v, want %#v", c.typ, c.in, got, c.want)
		}
	}
}

func TestDecodeValue_NonFiniteFloats(t *testing.T) {
	cases := []struct {
		typ  string
		in   any
		want string
	}{
		{"FLOAT8", []byte("NaN"), "NaN"},
		{"FLOAT8", []byte("Infinity"), "Infinity"},
		{"DOUBLE PRECISION", []byte("-Infinity"), "-Infinity"},
		{"REAL", math.NaN(), "NaN"},
		{"DOUBLE", math.Inf(1), "+Inf"},
		{"FLOAT", float32(math.Inf(-1)), "-Inf"},
	}
	row := Row{}
	for i, c := range cases {
		got, err := decodeValue(c.typ, c.in)
		if err != nil {
			t.Fatalf("decodeValue(%q, %v): %v", c.typ, c.in, err)
		}
		if got != c.want {
			t.Errorf("decodeValue(%q, %v) = %#v, want %q", c.typ, c.in, got, c.want)
		}
		row[fmt.Sprintf("c%d", i)] = got
	}
	if _, err := json.Marshal(TableExtract{Table: "t", Data: []Row{row}}); err != nil {
		t.Fatalf("decoded row must encode as JSON: %v", err)
	}
}

func TestDecodeValue_JSON(t *testing.T) {
	got, err := decodeValue("JSONB", `{"n": 1.0, "tags": ["a"], "none": null}`)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	m := got.(map[string]any)
	if m["n"] != json.Number("1.0") {
		t.Fatalf("expected json.Number preserving 1.0, got %#v", m["n"])
	}
	if m["none"] != nil || !reflect.DeepEqual(m["tags"], []any{"a"}) {
		t.Fatalf("unexpected document: %#v", m)
	}
}

func TestDecodeValue_BadNumber(t *testing.T) {
	if _, err := decodeValue("BIGINT", []byte("abc")); err == nil {
		t.Fatalf("expected error decoding non-numeric BIGINT")
	}
}

func TestErrorMessagesCarryContext(t *testing.T) {
	qe := &QueryError{Phase: PhaseReadData, Table: "orders", Err: errors.New("Error 1146: Table doesn't exist")}
	if got := qe.Error(); got != "read-data orders: Error 1146: Table doesn't exist" {
		t.Fatalf("unexpected message: %s", got)
	}

	agg := &ExtractionError{Failures: []TableFailure{{Table: "orders", Err: qe}}}
	if !errors.Is(agg, qe.Err) {
		t.Fatalf("aggregate must unwrap to the driver error")
	}
	var got *QueryError
	if !errors.As(agg, &got) || got.Table != "orders" {
		t.Fatalf("aggregate must expose the QueryError")
	}
}

func TestReportErr(t *testing.T) {
	var nilReport *ExtractionReport
	if nilReport.Err() != nil {
		t.Fatalf("nil report must have no error")
	}
	r := &ExtractionReport{Failures: []TableFailure{{Table: "b", Err: errors.New("x")}}}
	var ee *ExtractionError
	if !errors.As(r.Err(), &ee) || len(ee.Failures) != 1 {
		t.Fatalf("expected aggregate ExtractionError, got %v", r.Err())
	}
}

func TestTableFailureJSON(t *testing.T) {
	f := TableFailure{Table: "b", Err: &QueryError{Phase: PhaseListColumns, Table: "b", Err: errors.New("boom")}}
	b, err := json.Marshal(f)
	if err != nil {
		t.Fatal(err)
	}
	want := `{"table":"b","phase":"list-columns","error":"list-columns b: boom"}`
	if string(b) != want {
		t.Fatalf("got %s, want %s", b, want)
	}
}
