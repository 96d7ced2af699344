package kvs

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// Value is a configuration value before coercion to the store's string form.
// The set of variants is closed: Null, Bool, Number, String and Structured.
type Value interface {
	isValue()
}

// Null is an absent or null value.
type Null struct{}

// Bool is a boolean value.
type Bool bool

// Number is a numeric value held as its literal text.
type Number string

// String is a string value.
type String string

// Structured is an object or array value.
type Structured struct {
	V any
}

func (Null) isValue()       {}
func (Bool) isValue()       {}
func (Number) isValue()     {}
func (String) isValue()     {}
func (Structured) isValue() {}

// ValueOf classifies a decoded configuration value.
func ValueOf(v any) Value {
	switch val := v.(type) {
	case nil:
		return Null{}
	case Value:
		return val
	case bool:
		return Bool(val)
	case string:
		return String(val)
	case json.Number:
		return numberFromLiteral(string(val))
	case int:
		return Number(strconv.FormatInt(int64(val), 10))
	case int8:
		return Number(strconv.FormatInt(int64(val), 10))
	case int16:
		return Number(strconv.FormatInt(int64(val), 10))
	case int32:
		return Number(strconv.FormatInt(int64(val), 10))
	case int64:
		return Number(strconv.FormatInt(val, 10))
	case uint:
		return Number(strconv.FormatUint(uint64(val), 10))
	case uint8:
		return Number(strconv.FormatUint(uint64(val), 10))
	case uint16:
		return Number(strconv.FormatUint(uint64(val), 10))
	case uint32:
		return Number(strconv.FormatUint(uint64(val), 10))
	case uint64:
		return Number(strconv.FormatUint(val, 10))
	case float32:
		return Number(formatFloat(float64(val), 32))
	case float64:
		return Number(formatFloat(val, 64))
	case time.Time:
		return String(val.Format(time.RFC3339Nano))
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map, reflect.Slice, reflect.Array, reflect.Struct:
		if (rv.Kind() == reflect.Map || rv.Kind() == reflect.Slice) && rv.IsNil() {
			return Null{}
		}
		return Structured{V: v}
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return Null{}
		}
		return ValueOf(rv.Elem().Interface())
	}
	return String(fmt.Sprint(v))
}

// Coerce renders a value in the form the store accepts.
func Coerce(v Value) string {
	switch val := v.(type) {
	case nil, Null:
		return ""
	case Bool:
		return strconv.FormatBool(bool(val))
	case Number:
		return string(val)
	case String:
		return string(val)
	case Structured:
		return marshalStructured(val.V)
	}
	panic(fmt.Sprintf("kvs: unknown value variant %T", v))
}

// CoerceAny is Coerce(ValueOf(v)).
func CoerceAny(v any) string {
	return Coerce(ValueOf(v))
}

// marshalStructured writes compact JSON without HTML escaping. Map keys
// come out sorted.
func marshalStructured(v any) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Sprint(v)
	}
	return string(bytes.TrimRight(buf.Bytes(), "\n"))
}

func numberFromLiteral(lit string) Value {
	if i, err := strconv.ParseInt(lit, 10, 64); err == nil {
		return Number(strconv.FormatInt(i, 10))
	}
	f, err := strconv.ParseFloat(lit, 64)
	if err != nil {
		return String(lit)
	}
	return Number(formatFloat(f, 64))
}

// formatFloat uses plain decimal notation between 1e-6 and 1e21 and
// exponent notation, without exponent zero padding, outside it.
func formatFloat(f float64, bits int) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}
	abs := math.Abs(f)
	if abs != 0 && (abs < 1e-6 || abs >= 1e21) {
		mant, exp, _ := strings.Cut(strconv.FormatFloat(f, 'e', -1, bits), "e")
		return mant + "e" + exp[:1] + strings.TrimLeft(exp[1:], "0")
	}
	return strconv.FormatFloat(f, 'f', -1, bits)
}
