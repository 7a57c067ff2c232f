package geometry

import "testing"

type fakeCalibrator struct {
	lastX, lastY float64
}

func (f *fakeCalibrator) ArcsecToMrad(x, y float64) (float64, float64) { return x * 2, y * 2 }
func (f *fakeCalibrator) SetupToTrue(x, y float64) (float64, float64) { return x + 1, y + 1 }
func (f *fakeCalibrator) Read() (float64, float64, error)             { return f.lastX, f.lastY, nil }

func TestOffsetArcsec(t *testing.T) {
	xoff, yoff := OffsetArcsec(100, 200, 115.5, 215.5, 16, 16)
	wantX := (100 + 16 - 115.5) * PixelScale
	wantY := (200 + 16 - 215.5) * PixelScale
	if xoff != wantX || yoff != wantY {
		t.Errorf("OffsetArcsec = (%v, %v), want (%v, %v)", xoff, yoff, wantX, wantY)
	}
}

func TestTransformUnchangedForIdenticalFrames(t *testing.T) {
	cal := &fakeCalibrator{lastX: 5, lastY: 5}
	r1, err := Transform(cal, 100, 200, 115.5, 215.5, 16, 16)
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	r2, err := Transform(cal, 100, 200, 115.5, 215.5, 16, 16)
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	if r1 != r2 {
		t.Errorf("Transform not stable across identical frames: %+v vs %+v", r1, r2)
	}
}

func TestTransformTarget(t *testing.T) {
	cal := &fakeCalibrator{lastX: 10, lastY: 20}
	r, err := Transform(cal, 0, 0, 0, 0, 0, 0)
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	if r.TargetX != r.LastX-r.DeltaX || r.TargetY != r.LastY-r.DeltaY {
		t.Errorf("target not last-delta: %+v", r)
	}
}
