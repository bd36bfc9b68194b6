package dispatch

import (
	"encoding/json"
	"math"
	"strings"
	"time"

	"github.com/tazhate/calbridge/internal/pluginerr"
)

// Args reads the options object of one call. Every failure is a
// missingKey or invalidKey error naming the offending key.
type Args struct {
	source string
	prefix string
	raw    map[string]any
}

func newArgs(source string, raw map[string]any) *Args {
	if raw == nil {
		raw = map[string]any{}
	}
	return &Args{source: source, raw: raw}
}

func (a *Args) missing(key string) error {
	return pluginerr.New(pluginerr.MissingKey, a.source, a.prefix+key)
}

func (a *Args) invalid(key string) error {
	return pluginerr.New(pluginerr.InvalidKey, a.source, a.prefix+key)
}

func (a *Args) value(key string) (any, bool) {
	v, ok := a.raw[key]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

// Has reports whether key is present and not null.
func (a *Args) Has(key string) bool {
	_, ok := a.value(key)
	return ok
}

// RequiredString returns a non-empty string.
func (a *Args) RequiredString(key string) (string, error) {
	s, ok, err := a.String(key)
	if err != nil {
		return "", err
	}
	if !ok || strings.TrimSpace(s) == "" {
		return "", a.missing(key)
	}
	return s, nil
}

// String returns an optional string.
func (a *Args) String(key string) (string, bool, error) {
	v, ok := a.value(key)
	if !ok {
		return "", false, nil
	}
	s, isString := v.(string)
	if !isString {
		return "", false, a.invalid(key)
	}
	return s, true, nil
}

// RequiredStrings returns a non-empty array of strings.
func (a *Args) RequiredStrings(key string) ([]string, error) {
	v, ok := a.value(key)
	if !ok {
		return nil, a.missing(key)
	}
	items, isSlice := v.([]any)
	if !isSlice {
		if ss, isStrings := v.([]string); isStrings {
			items = make([]any, len(ss))
			for i, s := range ss {
				items[i] = s
			}
		} else {
			return nil, a.invalid(key)
		}
	}
	if len(items) == 0 {
		return nil, a.missing(key)
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		s, isString := it.(string)
		if !isString {
			return nil, a.invalid(key)
		}
		out = append(out, s)
	}
	return out, nil
}

// Number returns an optional number.
func (a *Args) Number(key string) (*float64, error) {
	v, ok := a.value(key)
	if !ok {
		return nil, nil
	}
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return nil, a.invalid(key)
		}
		f = parsed
	default:
		return nil, a.invalid(key)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, a.invalid(key)
	}
	return &f, nil
}

// Int returns an optional integral number.
func (a *Args) Int(key string) (*int, error) {
	f, err := a.Number(key)
	if err != nil || f == nil {
		return nil, err
	}
	if *f != math.Trunc(*f) {
		return nil, a.invalid(key)
	}
	n := int(*f)
	return &n, nil
}

// Bool returns an optional boolean, false when absent.
func (a *Args) Bool(key string) (bool, error) {
	v, ok := a.value(key)
	if !ok {
		return false, nil
	}
	b, isBool := v.(bool)
	if !isBool {
		return false, a.invalid(key)
	}
	return b, nil
}

// Time returns an optional instant given in milliseconds since the epoch.
func (a *Args) Time(key string, loc *time.Location) (*time.Time, error) {
	f, err := a.Number(key)
	if err != nil || f == nil {
		return nil, err
	}
	t := time.UnixMilli(int64(*f)).In(loc)
	return &t, nil
}

// RequiredTime is Time with the key mandatory.
func (a *Args) RequiredTime(key string, loc *time.Location) (time.Time, error) {
	t, err := a.Time(key, loc)
	if err != nil {
		return time.Time{}, err
	}
	if t == nil {
		return time.Time{}, a.missing(key)
	}
	return *t, nil
}

// Object returns a nested options object. Errors inside it name the
// nested key, e.g. "recurrence.frequency".
func (a *Args) Object(key string) (*Args, bool, error) {
	v, ok := a.value(key)
	if !ok {
		return nil, false, nil
	}
	m, isMap := v.(map[string]any)
	if !isMap {
		return nil, false, a.invalid(key)
	}
	return &Args{source: a.source, prefix: a.prefix + key + ".", raw: m}, true, nil
}

// Enum reads a selector given either as its index or as its name.
func (a *Args) Enum(key string, names ...string) (int, bool, error) {
	v, ok := a.value(key)
	if !ok {
		return 0, false, nil
	}
	if s, isString := v.(string); isString {
		for i, n := range names {
			if strings.EqualFold(s, n) {
				return i, true, nil
			}
		}
		return 0, false, a.invalid(key)
	}
	n, err := a.Int(key)
	if err != nil {
		return 0, false, err
	}
	if *n < 0 || *n >= len(names) {
		return 0, false, a.invalid(key)
	}
	return *n, true, nil
}
