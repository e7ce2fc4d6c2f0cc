package util

import "testing"

func TestPluralize(t *testing.T) {
	tests := []struct {
		count int
		want  string
	}{
		{0, "builds"},
		{1, "build"},
		{2, "builds"},
		{-1, "builds"},
	}

	for _, tt := range tests {
		if got := Pluralize(tt.count, "build", "builds"); got != tt.want {
			t.Errorf("Pluralize(%d) = %q, want %q", tt.count, got, tt.want)
		}
	}
}
