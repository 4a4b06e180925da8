package settlement

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// The upstream webservice is loose about JSON types: identifiers arrive as
// numbers or strings, amounts as numbers or numeric strings, dates in several
// layouts. The flex* types below absorb that once, at ingestion.

var null = []byte("null")

// flexString accepts a JSON string or number.
type flexString string

func (s *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, null) {
		*s = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*s = flexString(strings.TrimSpace(v))
		return nil
	}
	// numbers and booleans are kept verbatim
	*s = flexString(string(data))
	return nil
}

// flexDecimal accepts a JSON number or numeric string. Absent or null values
// leave Valid false; values that are present but not numeric fall back to zero.
type flexDecimal struct {
	Value decimal.Decimal
	Valid bool
}

func (d *flexDecimal) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, null) {
		*d = flexDecimal{}
		return nil
	}
	raw := string(data)
	if len(data) > 0 && data[0] == '"' {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		raw = strings.TrimSpace(v)
		if raw == "" {
			*d = flexDecimal{}
			return nil
		}
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		v = decimal.Zero
	}
	*d = flexDecimal{Value: v, Valid: true}
	return nil
}

// orZero returns the value or zero when absent.
func (d flexDecimal) orZero() decimal.Decimal {
	if !d.Valid {
		return decimal.Zero
	}
	return d.Value
}

func (d flexDecimal) nullable() decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: d.Value, Valid: d.Valid}
}

// flexBool accepts true/false, "true"/"false", 1/0 and "Y"/"N".
type flexBool bool

func (b *flexBool) UnmarshalJSON(data []byte) error {
	s := strings.Trim(strings.TrimSpace(string(data)), `"`)
	switch strings.ToLower(s) {
	case "true", "1", "y", "yes":
		*b = true
	default:
		*b = false
	}
	return nil
}

// timeLayouts lists the date layouts seen from the upstream, most specific first.
var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.000",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"02/01/2006",
}

// flexTime accepts any of timeLayouts or epoch milliseconds. Unparsable
// values are treated as missing.
type flexTime struct {
	Time  time.Time
	Valid bool
}

func (t *flexTime) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	*t = flexTime{}
	if bytes.Equal(data, null) || len(data) == 0 {
		return nil
	}
	if data[0] != '"' {
		if ms, err := strconv.ParseInt(string(data), 10, 64); err == nil {
			*t = flexTime{Time: time.UnixMilli(ms).UTC(), Valid: true}
		}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return nil
	}
	if parsed, ok := ParseTime(s); ok {
		*t = flexTime{Time: parsed, Valid: true}
	}
	return nil
}

func (t flexTime) ptr() *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

// ParseTime parses a date string in any layout the upstream is known to use.
func ParseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			return parsed, true
		}
	}
	return time.Time{}, false
}

// firstNonEmpty returns the first non-blank value.
func firstNonEmpty(values ...flexString) string {
	for _, v := range values {
		if s := strings.TrimSpace(string(v)); s != "" {
			return s
		}
	}
	return ""
}

// firstTime returns the first valid timestamp.
func firstTime(values ...flexTime) *time.Time {
	for _, v := range values {
		if v.Valid {
			return v.ptr()
		}
	}
	return nil
}

// truncate shortens an identifier for display.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
