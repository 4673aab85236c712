package compiler

import (
	"errors"
	"testing"
)

func TestEvaluate(t *testing.T) {
	tests := []struct {
		source string
		want   int32
	}{
		{"", 0},
		{"5;", 5},
		{"var x = 4; x * x;", 16},
		{"var x; x + 1;", 1},
		{"9 / 2;", 4},
		{"-9 / 2;", -4},
		{"9 / -2;", -4},
		{"-2147483648 - 1;", 2147483647},
		{"1; 2;", 2},
		{"3; var x = 1;", 3},
	}

	for _, tc := range tests {
		got, err := Evaluate(parse(t, tc.source))
		if err != nil {
			t.Errorf("%q: %v", tc.source, err)
			continue
		}
		if got != tc.want {
			t.Errorf("%q: got %d, want %d", tc.source, got, tc.want)
		}
	}
}

func TestEvaluateErrors(t *testing.T) {
	tests := []struct {
		source string
		want   error
	}{
		{"1 / 0;", ErrDivisionByZero},
		{"var z; 1 / z;", ErrDivisionByZero},
		{"-2147483648 / -1;", ErrIntegerOverflow},
	}

	for _, tc := range tests {
		_, err := Evaluate(parse(t, tc.source))
		if !errors.Is(err, tc.want) {
			t.Errorf("%q: got %v, want %v", tc.source, err, tc.want)
		}
	}
}
