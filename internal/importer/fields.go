package importer

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// fields reads typed values out of one CSV record. The first failure sticks
// in err and later reads return zero values.
type fields struct {
	line   int
	values []string
	cols   map[string]int
	err    error
}

func (f *fields) fail(col string, format string, args ...any) {
	if f.err == nil {
		f.err = fmt.Errorf("line %d, column %s: %s", f.line, col, fmt.Sprintf(format, args...))
	}
}

func (f *fields) raw(col string) string {
	i, ok := f.cols[col]
	if !ok || i >= len(f.values) {
		return ""
	}
	return strings.TrimSpace(f.values[i])
}

func (f *fields) str(col string) string {
	return f.raw(col)
}

func (f *fields) required(col string) string {
	v := f.raw(col)
	if v == "" {
		f.fail(col, "value is required")
	}
	return v
}

// num parses a finite number. Empty cells read as zero; thousands separators
// and a trailing percent sign are tolerated.
func (f *fields) num(col string) float64 {
	if f.err != nil {
		return 0
	}
	v := f.raw(col)
	if v == "" {
		return 0
	}
	v = strings.TrimSuffix(strings.ReplaceAll(v, ",", ""), "%")
	n, err := strconv.ParseFloat(v, 64)
	if err != nil {
		f.fail(col, "%q is not a number", f.raw(col))
		return 0
	}
	if math.IsInf(n, 0) || math.IsNaN(n) {
		f.fail(col, "%q is not a finite number", f.raw(col))
		return 0
	}
	return n
}

func (f *fields) nonNegative(col string) float64 {
	n := f.num(col)
	if n < 0 {
		f.fail(col, "must not be negative, got %v", n)
	}
	return n
}

func (f *fields) fraction(col string) float64 {
	n := f.num(col)
	if n < 0 || n > 1 {
		f.fail(col, "must be a fraction between 0 and 1, got %v", n)
	}
	return n
}

func (f *fields) flag(col string) bool {
	switch strings.ToLower(f.raw(col)) {
	case "yes", "y", "true", "1":
		return true
	default:
		return false
	}
}

func (f *fields) month(col string) string {
	v := f.required(col)
	if f.err != nil {
		return ""
	}
	if _, err := time.Parse("2006-01", v); err != nil {
		f.fail(col, "%q is not a YYYY-MM month", v)
		return ""
	}
	return v
}
