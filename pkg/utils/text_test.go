package utils

import (
	"testing"
)

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"Cooking", 10, "Cooking"},
		{"Elderly Care, Cooking", 12, "Elderly Care..."},
		{"x", 0, "x"},
		{"Nguyễn Thị Lan", 8, "Nguyễn T..."},
		{"Nguyễn", 6, "Nguyễn"},
	}
	for _, tt := range tests {
		if got := Truncate(tt.in, tt.max); got != tt.want {
			t.Errorf("Truncate(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
		}
	}
}
