package listing

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// IDField is the name of the field holding a Record's identifier.
const IDField = "id"

// Record is one row of a dashboard list: an `id` plus any caller-defined fields.
type Record map[string]interface{}

// ID returns the normalized identifier of the record, "" when it has none.
func (r Record) ID() string {
	return FormatID(r[IDField])
}

// HasID reports whether the record carries a usable identifier.
func (r Record) HasID() bool {
	return r.ID() != ""
}

// Field returns the string form of the named field; missing or null fields are "".
func (r Record) Field(name string) string {
	return stringify(r[name])
}

// Copy returns a shallow copy of the record.
func (r Record) Copy() Record {
	if r == nil {
		return nil
	}
	c := make(Record, len(r))
	for k, v := range r {
		c[k] = v
	}
	return c
}

// FormatID normalizes a record identifier so that numeric and string forms of the same id match:
// 2, 2.0, json.Number("2") and "2" are all "2".
func FormatID(id interface{}) string {
	return stringify(id)
}

func stringify(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case int32:
		return strconv.FormatInt(int64(val), 10)
	case uint:
		return strconv.FormatUint(uint64(val), 10)
	case uint64:
		return strconv.FormatUint(val, 10)
	case json.Number:
		return val.String()
	case bool:
		return strconv.FormatBool(val)
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}

// number returns the numeric value of v if it holds one.
func number(v interface{}) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case int32:
		return float64(val), true
	case uint:
		return float64(val), true
	case uint64:
		return float64(val), true
	case json.Number:
		f, err := val.Float64()
		return f, err == nil
	}
	return 0, false
}

// less is the `a < b` comparison used for sorting. Numbers compare numerically, and so does
// a number against a numeric string ("10" sorts after 9). Booleans sort false before true.
// Everything else (missing values included, as "") compares by case-sensitive string order.
func less(a, b interface{}) bool {
	na, aNum := number(a)
	nb, bNum := number(b)
	switch {
	case aNum && bNum:
		return na < nb
	case aNum:
		if nb, ok := numericString(b); ok {
			return na < nb
		}
	case bNum:
		if na, ok := numericString(a); ok {
			return na < nb
		}
	}
	if ba, ok := a.(bool); ok {
		if bb, ok := b.(bool); ok {
			return !ba && bb
		}
	}
	return stringify(a) < stringify(b)
}

// numericString parses v when it is a non-blank string holding a number.
func numericString(v interface{}) (float64, bool) {
	str, ok := v.(string)
	if !ok {
		return 0, false
	}
	str = strings.TrimSpace(str)
	if str == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(str, 64)
	if err != nil || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}
