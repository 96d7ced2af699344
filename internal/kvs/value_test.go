package kvs

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCoerceAny(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"nil", nil, ""},
		{"nil map", map[string]any(nil), ""},
		{"true", true, "true"},
		{"false", false, "false"},
		{"int", 7, "7"},
		{"float integral", 7.0, "7"},
		{"float", 1.5, "1.5"},
		{"huge float", 1e21, "1e+21"},
		{"tiny float", 1e-7, "1e-7"},
		{"tiny negative float", -2.5e-10, "-2.5e-10"},
		{"huge exponent", 1.5e300, "1.5e+300"},
		{"json number", json.Number("42"), "42"},
		{"json number float", json.Number("1.50"), "1.5"},
		{"string", "Value 1", "Value 1"},
		{"array", []any{1, 2, 3}, "[1,2,3]"},
		{"object", map[string]any{"Foo": "Bar"}, `{"Foo":"Bar"}`},
		{"object sorted", map[string]any{"b": 1, "a": true}, `{"a":true,"b":1}`},
		{"no html escaping", map[string]any{"x": "<a&b>"}, `{"x":"<a&b>"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CoerceAny(tt.in))
		})
	}
}

func TestValueOf_Variants(t *testing.T) {
	assert.Equal(t, Null{}, ValueOf(nil))
	assert.Equal(t, Bool(true), ValueOf(true))
	assert.Equal(t, Number("7"), ValueOf(int64(7)))
	assert.Equal(t, String("x"), ValueOf("x"))
	assert.IsType(t, Structured{}, ValueOf([]string{"a"}))
	assert.IsType(t, Structured{}, ValueOf(map[string]string{"a": "b"}))

	var p *string
	assert.Equal(t, Null{}, ValueOf(p))
	s := "pointed"
	assert.Equal(t, String("pointed"), ValueOf(&s))

	// values that are already classified pass through
	assert.Equal(t, Number("3"), ValueOf(Number("3")))
}

func TestCoerce_Exhaustive(t *testing.T) {
	assert.Equal(t, "", Coerce(Null{}))
	assert.Equal(t, "", Coerce(nil))
	assert.Equal(t, "true", Coerce(Bool(true)))
	assert.Equal(t, "7", Coerce(Number("7")))
	assert.Equal(t, "s", Coerce(String("s")))
	assert.Equal(t, `["a"]`, Coerce(Structured{V: []string{"a"}}))
}
