// Package isu models the Image Stabilization Unit as a capability set
// rather than a concrete driver, per the design note that turns the
// source's "#ifdef HAVE_ISU" compile-time switch into a runtime-resolved
// configuration record. Callers select a Driver (Serial or Sim) at
// startup; the frame loop and geometry transform depend only on this
// interface.
package isu

import "errors"

// ErrFault is returned by the frame loop when CheckFault reports a fault
// flag on either axis; it is treated as fatal.
var ErrFault = errors.New("isu: fault flag set")

// Driver is the narrow ISU contract the source's collaborator exposes:
// homing, enable/stop, angle read-back, slope/direct setpoint commands,
// the two calibration conversions, and fault checking.
type Driver interface {
	// Home performs a blocking homing sequence. Callers dispatch this on
	// a detached worker since it can run for a long time.
	Home() error

	// CheckHomed reports whether the mechanism believes itself homed,
	// without blocking.
	CheckHomed() (bool, error)

	// Enable arms the mechanism for motion commands.
	Enable() error

	// Stop disarms the mechanism and halts any in-progress motion.
	Stop() error

	// Read returns the mechanism's last commanded and current angles, in
	// milliradians, for both axes.
	Read() (lastX, lastY float64, err error)

	// SetupSlope dispatches an analog slope move given the frame rate in
	// Hz and the target angles in milliradians for both axes. This is
	// the call the frame loop fires on a detached worker thread once per
	// guiding frame; it must not block the caller for long.
	SetupSlope(rateHz, targetX, targetY float64) error

	// SetupDirect is the synchronous build-time alternative to
	// SetupSlope: it sets the target angles directly and blocks until
	// accepted.
	SetupDirect(targetX, targetY float64) error

	// ArcsecToMrad converts an arcsecond offset pair to milliradians
	// using the mechanism's native calibration.
	ArcsecToMrad(xArcsec, yArcsec float64) (xMrad, yMrad float64)

	// SetupToTrue applies the mechanism's non-identity calibration,
	// mapping a logical setpoint angle to the true commanded angle.
	SetupToTrue(xMrad, yMrad float64) (xTrue, yTrue float64)

	// CheckFault reports the mechanism's X/Y fault flags.
	CheckFault() (xFault, yFault bool, err error)
}
