package centroid

import (
	"math"
	"testing"
)

// syntheticStar renders a Gaussian star of the given amplitude, width, and
// center into a fresh Subraster over a flat background.
func syntheticStar(cx, cy, width, amp, bg float64) *Subraster {
	var sub Subraster
	for i := 0; i < Size; i++ {
		for j := 0; j < Size; j++ {
			dx := float64(i) - cy
			dy := float64(j) - cx
			v := amp*math.Exp(-0.5*(dx*dx/(width*width*widthVarianceScale)+dy*dy/(width*width*widthVarianceScale))) + bg
			sub[i][j] = uint16(v)
		}
	}
	return &sub
}

func TestSeedOnCenteredStar(t *testing.T) {
	sub := syntheticStar(16, 16, 2.5, 12000, 100)
	x, y := Seed(sub)
	if math.Abs(x-16) > 1 || math.Abs(y-16) > 1 {
		t.Errorf("Seed = (%v, %v), want near (16, 16)", x, y)
	}
}

func TestSeedFlatImageReturnsGeometricCenter(t *testing.T) {
	var sub Subraster
	for i := range sub {
		for j := range sub[i] {
			sub[i][j] = 500
		}
	}
	x, y := Seed(&sub)
	want := float64(Size-1) / 2
	if x != want || y != want {
		t.Errorf("Seed on flat image = (%v, %v), want (%v, %v)", x, y, want, want)
	}
}

func TestRefineFWHMRecoversPositionAndWidth(t *testing.T) {
	sub := syntheticStar(15.3, 16.7, 2.5, 12000, 100)
	seedX, seedY := Seed(sub)
	res := Refine(sub, seedX, seedY, ModeFWHM)
	if res.Fallback {
		t.Fatal("unexpected fallback to seed")
	}
	if math.Abs(res.X-15.8) > 0.1 || math.Abs(res.Y-17.2) > 0.1 {
		t.Errorf("Refine position = (%v, %v), want near (15.8, 17.2)", res.X, res.Y)
	}
	if math.Abs(res.FWHMX-2.5) > 0.5 || math.Abs(res.FWHMY-2.5) > 0.5 {
		t.Errorf("Refine widths = (%v, %v), want near (2.5, 2.5)", res.FWHMX, res.FWHMY)
	}
}

func TestRefineCentroidHoldsWidthsFixed(t *testing.T) {
	sub := syntheticStar(16, 16, 2.5, 12000, 100)
	seedX, seedY := Seed(sub)
	res := Refine(sub, seedX, seedY, ModeCentroid)
	if res.Fallback {
		t.Fatal("unexpected fallback to seed")
	}
	// ModeCentroid fixes p2/p3 at their initial value of 2.5.
	if res.FWHMX != 2.5 || res.FWHMY != 2.5 {
		t.Errorf("ModeCentroid widths = (%v, %v), want fixed at (2.5, 2.5)", res.FWHMX, res.FWHMY)
	}
}
