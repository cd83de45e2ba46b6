package model

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonical(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"nil", nil, `null`},
		{"sorted keys", map[string]any{"b": 1, "a": "x"}, `{"a":"x","b":1}`},
		{"nested", map[string]any{"z": []any{1, "two", true}}, `{"z":[1,"two",true]}`},
		{"no html escaping", "a<b>&c", `"a<b>&c"`},
		{"integral float", 5.0, `5`},
		{"fraction", 0.25, `0.25`},
		{"negative zero", math.Copysign(0, -1), `0`},
		{"json number", json.Number("2.50"), `2.5`},
		{"string slice", []string{"b", "a"}, `["b","a"]`},
		{"string map", map[string]string{"k": "v"}, `{"k":"v"}`},
		{"nfc", "e\u0301", "\"\u00e9\""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MarshalCanonical(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func TestMarshalCanonical_Errors(t *testing.T) {
	for name, in := range map[string]any{
		"nan":         math.NaN(),
		"inf":         math.Inf(1),
		"unsupported": struct{}{},
		"nested nan":  map[string]any{"x": []any{math.NaN()}},
		"key clash":   map[string]any{"\u00e9": 1, "e\u0301": 2},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := MarshalCanonical(in)
			assert.Error(t, err)
		})
	}
}

func TestMarshalCanonical_EquivalentNumbers(t *testing.T) {
	a := MustMarshalCanonical(map[string]any{"n": 5})
	b := MustMarshalCanonical(map[string]any{"n": 5.0})
	c := MustMarshalCanonical(map[string]any{"n": int64(5)})

	assert.Equal(t, a, b)
	assert.Equal(t, a, c)
}

func TestUnmarshalObject(t *testing.T) {
	got, err := UnmarshalObject(`{"a":1,"b":1.5,"c":[2,"x"],"d":{"e":3}}`)
	require.NoError(t, err)

	assert.Equal(t, map[string]any{
		"a": int64(1),
		"b": 1.5,
		"c": []any{int64(2), "x"},
		"d": map[string]any{"e": int64(3)},
	}, got)

	empty, err := UnmarshalObject("")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestCanonicalRoundTrip(t *testing.T) {
	in := map[string]any{"height": 2.0, "name": "tas", "levels": []any{1.5, 2}}
	data := MustMarshalCanonical(in)

	out, err := UnmarshalObject(string(data))
	require.NoError(t, err)
	assert.Equal(t, data, MustMarshalCanonical(out))
}

func TestUnmarshalValue(t *testing.T) {
	v, err := UnmarshalValue(`"K"`)
	require.NoError(t, err)
	assert.Equal(t, "K", v)

	v, err = UnmarshalValue(`42`)
	require.NoError(t, err)
	assert.Equal(t, int64(42), v)

	_, err = UnmarshalValue(`{`)
	assert.Error(t, err)
}
