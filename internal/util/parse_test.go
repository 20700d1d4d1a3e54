package util

import "testing"

func TestParsePercent(t *testing.T) {
	tests := []struct {
		input  string
		want   int
		wantOK bool
	}{
		{"72%", 72, true},
		{"Flat 72% OFF", 72, true},
		{"5% off", 5, true},
		{"100%", 100, true},
		{"no digits here", 0, false},
		{"", 0, false},
		{"%", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := ParsePercent(tt.input)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("ParsePercent(%q) = (%d, %v), want (%d, %v)", tt.input, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestComputePercent(t *testing.T) {
	tests := []struct {
		name       string
		mrp, offer float64
		want       int
		wantOK     bool
	}{
		{"clean half off", 100, 50, 50, true},
		{"rounds up", 200, 59, 71, true}, // 70.5 rounds to 71
		{"rounds down", 1000, 296, 70, true},
		{"free item", 100, 0, 100, true},
		{"no discount", 100, 100, 0, true},
		{"zero mrp", 0, 0, 0, false},
		{"negative mrp", -10, 5, 0, false},
		{"negative offer", 100, -5, 0, false},
		{"offer above mrp", 50, 80, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ComputePercent(tt.mrp, tt.offer)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("ComputePercent(%v, %v) = (%d, %v), want (%d, %v)",
					tt.mrp, tt.offer, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestSafeAtoi(t *testing.T) {
	tests := []struct {
		input string
		want  int
	}{
		{"42", 42},
		{"  42  ", 42},
		{"-7", -7},
		{"", 0},
		{"abc", 0},
		{"4.2", 0},
	}

	for _, tt := range tests {
		if got := SafeAtoi(tt.input); got != tt.want {
			t.Errorf("SafeAtoi(%q) = %d, want %d", tt.input, got, tt.want)
		}
	}
}
