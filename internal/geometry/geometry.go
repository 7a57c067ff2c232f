// Package geometry maps a refined subraster centroid to a commanded ISU
// mechanism angle. It has no state of its own; every call is a pure
// function of its arguments plus the ISU collaborator's calibration
// conversions, mirroring the source's pixel->arcsec->mrad->true-angle
// pipeline.
package geometry

// PixelScale is the fixed plate scale of the guide camera, in
// arcseconds per pixel.
const PixelScale = 0.128

// Calibrator is the subset of the ISU capability set the geometry
// transform needs: the two calibration conversions and the mechanism's
// current angle read-back.
type Calibrator interface {
	ArcsecToMrad(xArcsec, yArcsec float64) (xMrad, yMrad float64)
	SetupToTrue(xMrad, yMrad float64) (xTrue, yTrue float64)
	Read() (lastX, lastY float64, err error)
}

// Result carries the commanded delta and the mechanism's last observed
// angles, both in milliradians, for inclusion in the next image header.
type Result struct {
	DeltaX, DeltaY float64
	LastX, LastY   float64
	TargetX, TargetY float64
}

// Transform converts a refined centroid (xc, yc) relative to the current
// subraster origin and null pixel into a commanded mechanism target.
//
//	guide_xoff = (guide_x0 + xc - null_x) * PixelScale   (same for y)
//
// then arcsec -> mrad via the calibrator, then the non-identity
// setup-to-true calibration. The commanded absolute target is
// last - delta per axis, matching the source's convention of commanding
// a motion relative to the mechanism's currently reported position.
func Transform(cal Calibrator, guideX0, guideY0 int, nullX, nullY, xc, yc float64) (Result, error) {
	xoffArcsec := (float64(guideX0) + xc - nullX) * PixelScale
	yoffArcsec := (float64(guideY0) + yc - nullY) * PixelScale

	xMrad, yMrad := cal.ArcsecToMrad(xoffArcsec, yoffArcsec)
	deltaX, deltaY := cal.SetupToTrue(xMrad, yMrad)

	lastX, lastY, err := cal.Read()
	if err != nil {
		return Result{}, err
	}

	return Result{
		DeltaX: deltaX, DeltaY: deltaY,
		LastX: lastX, LastY: lastY,
		TargetX: lastX - deltaX, TargetY: lastY - deltaY,
	}, nil
}

// OffsetArcsec computes just the pixel-offset-to-arcsecond conversion,
// exposed separately since the frame loop records guide_xoff/guide_yoff
// on the server state independent of whether the ISU is enabled.
func OffsetArcsec(guideX0, guideY0 int, nullX, nullY, xc, yc float64) (xoff, yoff float64) {
	return (float64(guideX0) + xc - nullX) * PixelScale, (float64(guideY0) + yc - nullY) * PixelScale
}
