package bt

import (
	"encoding"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// ConvertValue converts a blackboard or port value to T.
//
// Values already of type T are returned as is. Strings are parsed into
// numbers, bools, durations, and encoding.TextUnmarshaler implementations,
// which is how literal port bindings become typed inputs. Numeric values
// convert between numeric kinds only when T holds them exactly: out of range
// values, negatives to unsigned, and fractional floats to integers fail.
func ConvertValue[T any](v any) (T, error) {
	var out T
	if t, ok := v.(T); ok {
		return t, nil
	}
	if v == nil {
		return out, fmt.Errorf("%w: nil to %T", ErrConversion, out)
	}
	if s, ok := v.(string); ok {
		if err := parseString(s, &out); err != nil {
			return out, err
		}
		return out, nil
	}
	target := reflect.TypeOf((*T)(nil)).Elem()
	rv := reflect.ValueOf(v)
	if isNumeric(rv.Kind()) && isNumeric(target.Kind()) {
		if !setNumeric(reflect.ValueOf(&out).Elem(), rv) {
			return out, fmt.Errorf("%w: %v (%T) does not fit %T", ErrConversion, v, v, out)
		}
		return out, nil
	}
	if target.Kind() == reflect.String {
		reflect.ValueOf(&out).Elem().SetString(fmt.Sprint(v))
		return out, nil
	}
	return out, fmt.Errorf("%w: %T to %T", ErrConversion, v, out)
}

func parseString(s string, out any) error {
	if u, ok := out.(encoding.TextUnmarshaler); ok {
		if err := u.UnmarshalText([]byte(s)); err != nil {
			return fmt.Errorf("%w: %v", ErrConversion, err)
		}
		return nil
	}
	s = strings.TrimSpace(s)
	var err error
	switch p := out.(type) {
	case *time.Duration:
		*p, err = time.ParseDuration(s)
	case *bool:
		*p, err = parseBool(s)
	default:
		rv := reflect.ValueOf(out).Elem()
		switch rv.Kind() {
		case reflect.String:
			rv.SetString(s)
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			var n int64
			n, err = strconv.ParseInt(s, 10, rv.Type().Bits())
			rv.SetInt(n)
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			var n uint64
			n, err = strconv.ParseUint(s, 10, rv.Type().Bits())
			rv.SetUint(n)
		case reflect.Float32, reflect.Float64:
			var f float64
			f, err = strconv.ParseFloat(s, rv.Type().Bits())
			rv.SetFloat(f)
		default:
			return fmt.Errorf("%w: string to %s", ErrConversion, rv.Type())
		}
	}
	if err != nil {
		return fmt.Errorf("%w: %q: %v", ErrConversion, s, err)
	}
	return nil
}

// parseBool accepts the same spellings as the config file parser.
func parseBool(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "true", "1", "yes", "on":
		return true, nil
	case "false", "0", "no", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean value: %s", s)
	}
}

// setNumeric stores src in dst, reporting false instead of wrapping or
// truncating.
func setNumeric(dst, src reflect.Value) bool {
	switch {
	case dst.CanInt():
		var n int64
		switch {
		case src.CanInt():
			n = src.Int()
		case src.CanUint():
			u := src.Uint()
			if u > math.MaxInt64 {
				return false
			}
			n = int64(u)
		default:
			f := src.Float()
			if f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 {
				return false
			}
			n = int64(f)
		}
		if dst.OverflowInt(n) {
			return false
		}
		dst.SetInt(n)
	case dst.CanUint():
		var u uint64
		switch {
		case src.CanInt():
			n := src.Int()
			if n < 0 {
				return false
			}
			u = uint64(n)
		case src.CanUint():
			u = src.Uint()
		default:
			f := src.Float()
			if f != math.Trunc(f) || f < 0 || f >= math.MaxUint64 {
				return false
			}
			u = uint64(f)
		}
		if dst.OverflowUint(u) {
			return false
		}
		dst.SetUint(u)
	default:
		var f float64
		switch {
		case src.CanInt():
			f = float64(src.Int())
		case src.CanUint():
			f = float64(src.Uint())
		default:
			f = src.Float()
		}
		if dst.OverflowFloat(f) {
			return false
		}
		dst.SetFloat(f)
	}
	return true
}

func isNumeric(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	default:
		return false
	}
}
