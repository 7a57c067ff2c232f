// Package camera defines the narrow contract the frame loop uses to drive
// the external frame-grabber/camera library: open channel, set/enable
// ROI, read width/height, start/wait image, multibuf, and timeouts. It is
// grounded on the teacher's top-level camera.Minimal/Sci interfaces,
// widened to the ROI and multibuf operations this guider needs and
// narrowed to drop the cgo-specific concerns (HAVE_ISU-style build
// variants aside, this package is the out-of-scope "external collaborator"
// boundary named in the source; Sim below exists purely so the rest of
// the guider is testable without hardware).
package camera

import "errors"

// ErrBadImageSize is returned when the camera reports a width or height
// of 1 or less, which the frame loop treats as a failed camera open.
var ErrBadImageSize = errors.New("camera: reported image size <= 1")

// ROI describes a rectangular region of interest on the sensor.
type ROI struct {
	X0, Y0, Width, Height int
}

// Camera is the collaborator contract. Implementations need not be safe
// for concurrent use — the frame loop is this package's sole caller and
// owns the handle exclusively.
type Camera interface {
	// Open establishes the channel to the frame grabber. Safe to call
	// when already open (no-op).
	Open() error

	// Close releases the channel.
	Close() error

	// SetROI configures the region of interest. Use EnableROI(false) to
	// return to full frame.
	SetROI(r ROI) error

	// EnableROI toggles whether the configured ROI is active; when
	// false the full sensor frame is read.
	EnableROI(on bool) error

	// Dimensions returns the current frame width and height in pixels,
	// reflecting the active ROI (or full frame when disabled).
	Dimensions() (width, height int, err error)

	// AllocateBuffers reserves n DMA buffers for frame transfer (the
	// source allocates 4 on each rising edge of video_on).
	AllocateBuffers(n int) error

	// SetBlockingTimeout sets the duration WaitImage may block before
	// the camera's own timeout counter advances.
	SetBlockingTimeout(ms int) error

	// StartImage begins an acquisition; non-blocking.
	StartImage() error

	// WaitImage blocks until the most recently started image is ready
	// and returns its pixel data as width*height row-major uint16s.
	WaitImage() ([]uint16, error)

	// TimeoutCount returns the cumulative number of WaitImage timeouts
	// observed so far; polled and logged, never acted upon, per the
	// source's timeout-counter design.
	TimeoutCount() int
}

// Serial is the narrow contract for the serial sideband transport used by
// internal/cameraproto to exchange space-separated hex tokens with the
// camera's vendor command interface. It satisfies cameraproto.Transport.
type Serial interface {
	SendRecv(tokens string) (reply string, err error)
}
