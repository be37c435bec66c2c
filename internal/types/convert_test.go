package types

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestToInt64_IntTypes(t *testing.T) {
	tests := []struct {
		name     string
		input    interface{}
		expected int64
	}{
		{
			name:     "int64",
			input:    int64(42),
			expected: 42,
		},
		{
			name:     "int",
			input:    int(100),
			expected: 100,
		},
		{
			name:     "int32",
			input:    int32(200),
			expected: 200,
		},
		{
			name:     "int16",
			input:    int16(300),
			expected: 300,
		},
		{
			name:     "int8",
			input:    int8(127),
			expected: 127,
		},
		{
			name:     "uint",
			input:    uint(500),
			expected: 500,
		},
		{
			name:     "uint64",
			input:    uint64(1000),
			expected: 1000,
		},
		{
			name:     "uint32",
			input:    uint32(2000),
			expected: 2000,
		},
		{
			name:     "uint16",
			input:    uint16(3000),
			expected: 3000,
		},
		{
			name:     "uint8",
			input:    uint8(255),
			expected: 255,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ToInt64(tt.input)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestToInt64_FloatTypes(t *testing.T) {
	tests := []struct {
		name     string
		input    interface{}
		expected int64
	}{
		{
			name:     "float64 integer value",
			input:    float64(42.0),
			expected: 42,
		},
		{
			name:     "float64 with decimals truncates",
			input:    float64(42.9),
			expected: 42,
		},
		{
			name:     "float32 integer value",
			input:    float32(100.0),
			expected: 100,
		},
		{
			name:     "float32 with decimals truncates",
			input:    float32(99.7),
			expected: 99,
		},
		{
			name:     "float64 large value",
			input:    float64(999999.0),
			expected: 999999,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ToInt64(tt.input)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestToInt64_NegativeValues(t *testing.T) {
	tests := []struct {
		name     string
		input    interface{}
		expected int64
	}{
		{
			name:     "Negative int64",
			input:    int64(-42),
			expected: -42,
		},
		{
			name:     "Negative int",
			input:    int(-100),
			expected: -100,
		},
		{
			name:     "Negative int8",
			input:    int8(-128),
			expected: -128,
		},
		{
			name:     "Negative float64",
			input:    float64(-50.5),
			expected: -50,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ToInt64(tt.input)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestToInt64_ZeroValues(t *testing.T) {
	tests := []struct {
		name     string
		input    interface{}
		expected int64
	}{
		{
			name:     "Zero int64",
			input:    int64(0),
			expected: 0,
		},
		{
			name:     "Zero int",
			input:    int(0),
			expected: 0,
		},
		{
			name:     "Zero float64",
			input:    float64(0.0),
			expected: 0,
		},
		{
			name:     "Zero uint64",
			input:    uint64(0),
			expected: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ToInt64(tt.input)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestToInt64_UnsupportedTypes(t *testing.T) {
	tests := []struct {
		name  string
		input interface{}
	}{
		{
			name:  "nil",
			input: nil,
		},
		{
			name:  "string",
			input: "42",
		},
		{
			name:  "bool",
			input: true,
		},
		{
			name:  "slice",
			input: []int{1, 2, 3},
		},
		{
			name:  "map",
			input: map[string]int{"key": 42},
		},
		{
			name:  "struct",
			input: struct{ Value int }{Value: 42},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ToInt64(tt.input)
			assert.Equal(t, int64(0), result, "Unsupported types should return 0")
		})
	}
}

func TestCanonicalKey(t *testing.T) {
	tests := []struct {
		name     string
		input    interface{}
		expected string
	}{
		{name: "int64", input: int64(7), expected: "7"},
		{name: "int", input: 7, expected: "7"},
		{name: "string", input: "7", expected: "7"},
		{name: "bytes", input: []byte("7"), expected: "7"},
		{name: "whole float", input: float64(7), expected: "7"},
		{name: "fractional float", input: 7.5, expected: "7.5"},
		{name: "list", input: []interface{}{int64(1), "2"}, expected: "[1,2]"},
		{name: "empty list", input: []interface{}{}, expected: "[]"},
		{name: "nil", input: nil, expected: "<nil>"},
		{name: "date", input: NewDate(time.Date(2019, 8, 3, 13, 0, 0, 0, time.UTC)), expected: "2019-08-03"},
		{name: "file ref", input: FileRef{Name: "covers/a.png"}, expected: "covers/a.png"},
		{name: "uint8", input: uint8(200), expected: "200"},
		{name: "uint64 above int64 range", input: uint64(math.MaxUint64), expected: "18446744073709551615"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CanonicalKey(tt.input))
		})
	}
}

func TestCanonicalKey_MixedSourcesAgree(t *testing.T) {
	assert.Equal(t, CanonicalKey("42"), CanonicalKey(int64(42)))
	assert.Equal(t, CanonicalKey(uint32(42)), CanonicalKey(float64(42)))
	assert.NotEqual(t, CanonicalKey(uint64(math.MaxUint64)), CanonicalKey(int64(-1)))
}

func TestIsEmptyKey(t *testing.T) {
	assert.True(t, IsEmptyKey(nil))
	assert.True(t, IsEmptyKey([]interface{}{}))
	assert.False(t, IsEmptyKey([]interface{}{int64(1)}))
	assert.False(t, IsEmptyKey(int64(0)))
	assert.False(t, IsEmptyKey(""))
}

func TestNormalizeValue(t *testing.T) {
	assert.Equal(t, "abc", NormalizeValue([]byte("abc")))
	assert.Equal(t, int64(3), NormalizeValue(int64(3)))
	assert.Nil(t, NormalizeValue(nil))
}

func TestDate(t *testing.T) {
	d := NewDate(time.Date(2020, 2, 29, 23, 59, 59, 0, time.FixedZone("X", 3600)))
	assert.Equal(t, "2020-02-29", d.String())

	v, err := d.Value()
	assert.NoError(t, err)
	assert.Equal(t, "2020-02-29", v)
}
