package source

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

var (
	signedInts = map[string]bool{
		"TINYINT": true, "SMALLINT": true, "MEDIUMINT": true, "INT": true, "INTEGER": true, "BIGINT": true,
		"YEAR": true, "INT2": true, "INT4": true, "INT8": true, "SERIAL": true, "BIGSERIAL": true,
	}
	floats = map[string]bool{
		"FLOAT": true, "DOUBLE": true, "REAL": true, "FLOAT4": true, "FLOAT8": true, "DOUBLE PRECISION": true,
	}
	decimals = map[string]bool{"DECIMAL": true, "NUMERIC": true, "MONEY": true}
	jsons    = map[string]bool{"JSON": true, "JSONB": true}
	bools    = map[string]bool{"BOOL": true, "BOOLEAN": true}
	binaries = map[string]bool{
		"BLOB": true, "TINYBLOB": true, "MEDIUMBLOB": true, "LONGBLOB": true, "BINARY": true,
		"VARBINARY": true, "BYTEA": true, "BIT": true, "GEOMETRY": true,
	}
	temporals = map[string]bool{"DATE": true, "DATETIME": true, "TIMESTAMP": true, "TIMESTAMPTZ": true}
)

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// normalizeType upper-cases a driver type name and drops any length or
// precision suffix, so "decimal(10,2)" becomes "DECIMAL".
func normalizeType(name string) string {
	name = strings.ToUpper(strings.TrimSpace(name))
	if i := strings.IndexByte(name, '('); i >= 0 {
		name = strings.TrimSpace(name[:i])
	}
	return name
}

// decodeValue turns a value scanned from the driver into one of the Row value
// types: nil, string, int64, uint64, float64, bool, time.Time, []byte,
// json.Number, or a decoded JSON document. A float64 is always finite.
//
// Drivers that speak a text protocol hand back most values as []byte; the
// column's database type name decides how those bytes are read.
func decodeValue(typeName string, v any) (any, error) {
	t := normalizeType(typeName)
	switch x := v.(type) {
	case nil:
		return nil, nil
	case []byte:
		return decodeBytes(t, x)
	case string:
		if jsons[t] {
			return decodeJSON([]byte(x))
		}
		return x, nil
	case int:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case uint32:
		return uint64(x), nil
	case float32:
		return finiteFloat(float64(x)), nil
	case float64:
		return finiteFloat(x), nil
	default:
		return v, nil
	}
}

func decodeBytes(t string, b []byte) (any, error) {
	s := string(b)
	switch {
	case strings.HasPrefix(t, "UNSIGNED "):
		if signedInts[strings.TrimPrefix(t, "UNSIGNED ")] {
			n, err := strconv.ParseUint(s, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("decode %s: %w", t, err)
			}
			return n, nil
		}
		return s, nil
	case signedInts[t]:
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", t, err)
		}
		return n, nil
	case floats[t]:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", t, err)
		}
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return s, nil
		}
		return f, nil
	case decimals[t]:
		return json.Number(s), nil
	case jsons[t]:
		return decodeJSON(b)
	case bools[t]:
		bv, err := strconv.ParseBool(s)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", t, err)
		}
		return bv, nil
	case binaries[t]:
		return b, nil
	case temporals[t]:
		for _, layout := range timeLayouts {
			if ts, err := time.Parse(layout, s); err == nil {
				return ts, nil
			}
		}
		// zero dates such as 0000-00-00 have no time.Time form
		return s, nil
	default:
		return s, nil
	}
}

// finiteFloat keeps NaN and infinities as text, since JSON has no form for
// them.
func finiteFloat(f float64) any {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	return f
}

func decodeJSON(b []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("decode JSON: %w", err)
	}
	return v, nil
}
