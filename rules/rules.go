// Package rules holds the entity-specific checks that go beyond schema
// presence.
package rules

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// ErrOutOfRange matches every RangeError.
var ErrOutOfRange = errors.New("value out of range")

// Allowed ranges for review ratings, inclusive.
const (
	MinStar   = 0
	MaxStar   = 5
	MinDollar = 1
	MaxDollar = 4
)

// RangeError reports a field that is not an integer in [Min, Max].
type RangeError struct {
	Field      string
	Value      any
	Min, Max   int64
	NotInteger bool
}

func (e *RangeError) Error() string {
	if e.NotInteger {
		return fmt.Sprintf("%s: %s is either not a number or an integer", e.Field, formatValue(e.Value))
	}
	return fmt.Sprintf("%s: %s is not within the range allowed e.g. %d-%d", e.Field, formatValue(e.Value), e.Min, e.Max)
}

// formatValue prints a decoded JSON value, with null spelled as in JSON.
func formatValue(v any) string {
	if v == nil {
		return "null"
	}
	return fmt.Sprint(v)
}

func (e *RangeError) Is(target error) bool {
	return target == ErrOutOfRange
}

// CheckReview validates the star and dollar ratings of a review, star first.
func CheckReview(review map[string]any) error {
	if err := checkRange("star", review["star"], MinStar, MaxStar); err != nil {
		return err
	}
	return checkRange("dollar", review["dollar"], MinDollar, MaxDollar)
}

func checkRange(field string, v any, lo, hi int64) error {
	n, ok := asInteger(v)
	if !ok {
		return &RangeError{Field: field, Value: v, Min: lo, Max: hi, NotInteger: true}
	}
	if n < lo || n > hi {
		return &RangeError{Field: field, Value: v, Min: lo, Max: hi}
	}
	return nil
}

// asInteger accepts JSON numbers with no fractional part.
func asInteger(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		if math.IsInf(n, 0) || math.IsNaN(n) || n != math.Trunc(n) {
			return 0, false
		}
		if n < math.MinInt64 || n > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, true
		}
		if f, err := n.Float64(); err == nil {
			return asInteger(f)
		}
	}
	return 0, false
}
