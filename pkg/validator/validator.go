// Package validator provides the string predicates used to check prospective
// setting values before they are written.
package validator

import (
	"math"
	"strconv"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
)

// Validator reports whether a textual value is acceptable for a setting.
// Implementations are stateless and safe for concurrent use.
type Validator interface {
	Validate(value string) bool
}

// Func adapts a plain function to the Validator interface.
type Func func(value string) bool

func (f Func) Validate(value string) bool { return f(value) }

// Shared instances, mirroring the shapes used throughout the settings tables.
var (
	Boolean        Validator = Discrete("0", "1")
	NonNegativeInt Validator = Func(func(v string) bool {
		n, err := parseInt32(v)
		return err == nil && n >= 0
	})
	Color      Validator = IntRange(math.MinInt32, math.MaxInt32)
	Action     Validator = IntRange(0, 9)
	AlwaysTrue Validator = Func(func(string) bool { return true })
	// NonNull accepts every value; strings cannot be null here.
	NonNull Validator = Func(func(string) bool { return true })
)

type discrete struct {
	values mapset.Set[string]
}

// Discrete accepts only the listed values.
func Discrete(values ...string) Validator {
	return &discrete{values: mapset.NewThreadUnsafeSet(values...)}
}

func (d *discrete) Validate(value string) bool {
	return d.values.Contains(value)
}

type intRange struct {
	min, max int64
}

// IntRange accepts 32-bit integers within [min, max].
func IntRange(min, max int64) Validator {
	return &intRange{min: min, max: max}
}

func (r *intRange) Validate(value string) bool {
	n, err := parseInt32(value)
	if err != nil {
		return false
	}
	return n >= r.min && n <= r.max
}

type floatRange struct {
	min, max float64
}

// FloatRange accepts floating point numbers within [min, max].
func FloatRange(min, max float64) Validator {
	return &floatRange{min: min, max: max}
}

func (r *floatRange) Validate(value string) bool {
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 32)
	if err != nil || math.IsNaN(f) {
		return false
	}
	return f >= r.min && f <= r.max
}

type delimitedList struct {
	allowed    mapset.Set[string]
	delimiter  string
	allowEmpty bool
}

// DelimitedList accepts a delimiter-separated list whose non-empty tokens all
// belong to allowed. A list with no tokens is valid only when allowEmpty is set.
func DelimitedList(allowed []string, delimiter string, allowEmpty bool) Validator {
	return &delimitedList{
		allowed:    mapset.NewThreadUnsafeSet(allowed...),
		delimiter:  delimiter,
		allowEmpty: allowEmpty,
	}
}

func (d *delimitedList) Validate(value string) bool {
	tokens := SplitNonEmpty(value, d.delimiter)
	if len(tokens) == 0 {
		return d.allowEmpty
	}
	for _, t := range tokens {
		if !d.allowed.Contains(t) {
			return false
		}
	}
	return true
}

// PulseCustomValues validates per-package LED pulse overrides of the form
// "pkg=color;on;off|pkg2=color;on;off". An empty value is valid.
var PulseCustomValues Validator = Func(func(value string) bool {
	if value == "" {
		return true
	}
	for _, entry := range strings.Split(value, "|") {
		pkgValues := strings.Split(entry, "=")
		if len(pkgValues) != 2 || pkgValues[0] == "" {
			return false
		}
		fields := strings.Split(pkgValues[1], ";")
		if len(fields) != 3 {
			return false
		}
		if !Color.Validate(fields[0]) ||
			!NonNegativeInt.Validate(fields[1]) ||
			!NonNegativeInt.Validate(fields[2]) {
			return false
		}
	}
	return true
})

// SplitNonEmpty splits s on delimiter and drops empty segments.
func SplitNonEmpty(s, delimiter string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, item := range strings.Split(s, delimiter) {
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}

func parseInt32(s string) (int64, error) {
	return strconv.ParseInt(s, 10, 32)
}
