package intent

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Coercion rules shared by every accessor. Raw values come from JSON intent
// context (string, float64, bool, json.Number, nil) or from earlier display
// values being written back (decimal.Decimal, int64, formatted dates).

var (
	dateLayouts     = []string{"2006-01-02", "2006/01/02", "20060102", time.RFC3339, "2006-01-02 15:04:05"}
	dateTimeLayouts = []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05", "2006-01-02T15:04:05", "2006/01/02 15:04:05", "2006-01-02"}
)

func isBlank(raw any) bool {
	if raw == nil {
		return true
	}
	s, ok := raw.(string)
	return ok && strings.TrimSpace(s) == ""
}

func CoerceString(raw any) (string, error) {
	switch v := raw.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	case fmt.Stringer:
		return v.String(), nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case bool, int, int32, int64, json.Number:
		return fmt.Sprint(v), nil
	default:
		return "", fmt.Errorf("cannot use %T as text", raw)
	}
}

func CoerceInt(raw any) (int64, error) {
	switch v := raw.(type) {
	case int:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case float64:
		if v != math.Trunc(v) || math.IsInf(v, 0) {
			return 0, fmt.Errorf("%v is not a whole number", v)
		}
		// 2^63 is exact in float64; anything at or past it overflows int64
		if v < -(1<<63) || v >= 1<<63 {
			return 0, fmt.Errorf("%v is out of range", v)
		}
		return int64(v), nil
	case json.Number:
		return strconv.ParseInt(v.String(), 10, 64)
	case decimal.Decimal:
		return decimalInt(v)
	case string:
		s := strings.TrimSpace(v)
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n, nil
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return 0, fmt.Errorf("%q is not a whole number", v)
		}
		return decimalInt(d)
	default:
		return 0, fmt.Errorf("cannot use %T as integer", raw)
	}
}

var (
	minInt64 = decimal.NewFromInt(math.MinInt64)
	maxInt64 = decimal.NewFromInt(math.MaxInt64)
)

func decimalInt(d decimal.Decimal) (int64, error) {
	if !d.IsInteger() {
		return 0, fmt.Errorf("%s is not a whole number", d)
	}
	if d.LessThan(minInt64) || d.GreaterThan(maxInt64) {
		return 0, fmt.Errorf("%s is out of range", d)
	}
	return d.IntPart(), nil
}

// CoerceDecimal parses without passing through binary floating point for
// textual input. Float input is converted using its shortest representation,
// so 123.45 stays 123.45.
func CoerceDecimal(raw any) (decimal.Decimal, error) {
	switch v := raw.(type) {
	case decimal.Decimal:
		return v, nil
	case *decimal.Decimal:
		if v == nil {
			return decimal.Zero, fmt.Errorf("decimal value is empty")
		}
		return *v, nil
	case string:
		d, err := decimal.NewFromString(strings.ReplaceAll(strings.TrimSpace(v), ",", ""))
		if err != nil {
			return decimal.Zero, fmt.Errorf("%q is not a number", v)
		}
		return d, nil
	case json.Number:
		return decimal.NewFromString(v.String())
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return decimal.Zero, fmt.Errorf("%v is not a number", v)
		}
		return decimal.NewFromFloat(v), nil
	case int:
		return decimal.NewFromInt(int64(v)), nil
	case int32:
		return decimal.NewFromInt32(v), nil
	case int64:
		return decimal.NewFromInt(v), nil
	default:
		return decimal.Zero, fmt.Errorf("cannot use %T as decimal", raw)
	}
}

func CoerceFloat(raw any) (float64, error) {
	switch v := raw.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case json.Number:
		return v.Float64()
	case decimal.Decimal:
		return v.InexactFloat64(), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, fmt.Errorf("%q is not a number", v)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("cannot use %T as number", raw)
	}
}

func CoerceBool(raw any) (bool, error) {
	switch v := raw.(type) {
	case bool:
		return v, nil
	case float64:
		return v != 0, nil
	case int:
		return v != 0, nil
	case int64:
		return v != 0, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "yes", "y", "1", "on", "是", "启用":
			return true, nil
		case "false", "no", "n", "0", "off", "否", "停用":
			return false, nil
		}
		return false, fmt.Errorf("%q is not a yes/no value", v)
	default:
		return false, fmt.Errorf("cannot use %T as boolean", raw)
	}
}

// CoerceDate returns midnight UTC of the given calendar day.
func CoerceDate(raw any) (time.Time, error) {
	t, err := parseTime(raw, dateLayouts)
	if err != nil {
		return time.Time{}, err
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
}

func CoerceDateTime(raw any) (time.Time, error) {
	t, err := parseTime(raw, dateTimeLayouts)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

func parseTime(raw any, layouts []string) (time.Time, error) {
	switch v := raw.(type) {
	case time.Time:
		return v, nil
	case *time.Time:
		if v == nil {
			return time.Time{}, fmt.Errorf("time value is empty")
		}
		return *v, nil
	case string:
		s := strings.TrimSpace(v)
		for _, layout := range layouts {
			if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
				return t, nil
			}
		}
		return time.Time{}, fmt.Errorf("%q is not a recognised date", v)
	default:
		return time.Time{}, fmt.Errorf("cannot use %T as date", raw)
	}
}
