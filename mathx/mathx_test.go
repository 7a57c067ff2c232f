package mathx

import "testing"

func TestRoundTenths(t *testing.T) {
	if got := Round(12.34, 0.1); got != 12.3 {
		t.Errorf("Round(12.34, 0.1) = %v, want 12.3", got)
	}
}

func TestRoundHundredths(t *testing.T) {
	if got := Round(0.125, 0.01); got != 0.13 {
		t.Errorf("Round(0.125, 0.01) = %v, want 0.13", got)
	}
}
