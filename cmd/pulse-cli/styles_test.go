package main

import "testing"

func TestScoreStyleBands(t *testing.T) {
	cases := []struct {
		score int
		want  any
	}{
		{100, colorSuccess},
		{80, colorSuccess},
		{79, colorWarning},
		{60, colorWarning},
		{59, colorError},
		{0, colorError},
	}
	for _, tc := range cases {
		if got := scoreStyle(tc.score).GetForeground(); got != tc.want {
			t.Fatalf("score %d: got %v want %v", tc.score, got, tc.want)
		}
	}
}
