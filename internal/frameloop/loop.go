// Package frameloop implements the real-time owner of the camera handle:
// the single goroutine that polls the command server, drives image
// acquisition, runs the centroid/geometry pipeline while guiding, and
// serializes every frame to the output stream. Modeled as an explicit
// state machine (IDLE -> VIDEO_ON -> GUIDE_ON <-> VIDEO_ON -> IDLE), not
// as cooperative continuations, per the design note that rejects a
// coroutine-style rendering of the source's control flow.
package frameloop

import (
	"io"
	"log"
	"time"

	"github.com/cfht-spirou/guideserv/internal/camera"
	"github.com/cfht-spirou/guideserv/internal/centroid"
	"github.com/cfht-spirou/guideserv/internal/cmdserver"
	"github.com/cfht-spirou/guideserv/internal/geometry"
	"github.com/cfht-spirou/guideserv/internal/imageout"
	"github.com/cfht-spirou/guideserv/internal/isu"
	"github.com/cfht-spirou/guideserv/internal/serverstate"
)

// SocketPollInterval bounds how long each tick spends servicing the
// command server before moving on to acquisition.
const SocketPollInterval = 10 * time.Millisecond

const guideSize = centroid.Size

// Loop owns the camera handle exclusively and is the only component that
// calls StartImage/WaitImage.
type Loop struct {
	State  *serverstate.State
	Server *cmdserver.Server
	Cam    camera.Camera
	ISU    isu.Driver
	Out    io.Writer

	dispatch func(line string) cmdserver.Result

	// wasVideoOn/wasGuideOn detect rising/falling edges across ticks.
	wasVideoOn, wasGuideOn bool
	timeoutCount           int
}

// New returns a Loop ready to run; dispatch is normally a *cmdserver.Dispatcher's Handle method.
func New(state *serverstate.State, server *cmdserver.Server, cam camera.Camera, isuDriver isu.Driver, out io.Writer, dispatch func(string) cmdserver.Result) *Loop {
	return &Loop{State: state, Server: server, Cam: cam, ISU: isuDriver, Out: out, dispatch: dispatch}
}

// Run executes ticks until Tick reports shutdown or an unrecoverable
// error, logging and exiting non-zero on fatal conditions per §7.
func (l *Loop) Run() {
	for {
		shutdown, err := l.Tick()
		if err != nil {
			log.Fatalf("frameloop: fatal: %v", err)
		}
		if shutdown {
			return
		}
	}
}

// Tick runs exactly one iteration of the state machine: service the
// command server, then (if video is on) acquire and process one frame.
// A non-nil error is always fatal per §7's error-kind taxonomy; the
// caller must exit. shutdown is true once SHUTDOWN has been dispatched.
func (l *Loop) Tick() (shutdown bool, err error) {
	shutdown = l.Server.Poll(SocketPollInterval, l.dispatch)

	risingEdge := l.State.VideoOn && !l.wasVideoOn
	if risingEdge {
		if err := l.onRisingEdge(); err != nil {
			log.Printf("frameloop: camera open failed, dropping video_on: %v", err)
			l.State.VideoOn = false
			l.wasVideoOn = false
			return shutdown, nil
		}
	}

	if l.State.VideoOn {
		if err := l.acquireAndProcess(); err != nil {
			return shutdown, err
		}
	}

	l.wasVideoOn = l.State.VideoOn
	l.wasGuideOn = l.State.GuideOn
	return shutdown, nil
}

func (l *Loop) onRisingEdge() error {
	if err := l.Cam.Open(); err != nil {
		return err
	}
	if err := l.applyROI(); err != nil {
		return err
	}
	w, h, err := l.Cam.Dimensions()
	if err != nil {
		return err
	}
	if w <= 1 || h <= 1 {
		return camera.ErrBadImageSize
	}
	l.State.ImageWidth, l.State.ImageHeight = w, h
	if err := l.Cam.AllocateBuffers(4); err != nil {
		return err
	}
	timeoutMs := int(2000 / l.State.FrameRate)
	if l.State.FrameRate <= 0 {
		timeoutMs = 2000
	}
	if err := l.Cam.SetBlockingTimeout(timeoutMs); err != nil {
		return err
	}
	return nil
}

// applyROI enforces the invariant that guide_on implies a 32x32 ROI at
// (guide_x0, guide_y0) and otherwise the full 640x512 frame with ROI
// disabled.
func (l *Loop) applyROI() error {
	if l.State.GuideOn {
		if err := l.Cam.SetROI(camera.ROI{X0: l.State.GuideX0, Y0: l.State.GuideY0, Width: guideSize, Height: guideSize}); err != nil {
			return err
		}
		return l.Cam.EnableROI(true)
	}
	if err := l.Cam.EnableROI(false); err != nil {
		return err
	}
	l.State.WinX0, l.State.WinY0 = 0, 0
	return nil
}

func (l *Loop) acquireAndProcess() error {
	guideRisingEdge := l.State.GuideOn && !l.wasGuideOn
	guideFallingEdge := !l.State.GuideOn && l.wasGuideOn
	if guideRisingEdge {
		if err := l.applyROI(); err != nil {
			return err
		}
		w, h, err := l.Cam.Dimensions()
		if err == nil {
			l.State.ImageWidth, l.State.ImageHeight = w, h
		}
		l.State.FirstDoneFlag = false
	}
	if guideFallingEdge {
		if err := l.applyROI(); err != nil {
			return err
		}
		l.State.FirstDoneFlag = false
	}

	if err := l.Cam.StartImage(); err != nil {
		return err
	}
	pixels, err := l.Cam.WaitImage()
	if err != nil {
		l.timeoutCount++
		log.Printf("frameloop: wait_image timeout (count=%d): %v", l.timeoutCount, err)
		pixels = make([]uint16, l.State.ImageWidth*l.State.ImageHeight)
	}

	if l.State.GuideOn {
		if err := l.processGuideFrame(pixels); err != nil {
			return err
		}
	}

	return l.emit(pixels)
}

func (l *Loop) processGuideFrame(pixels []uint16) error {
	sub := toSubraster(pixels, l.State.ImageWidth)

	var seedX, seedY float64
	if !l.State.FirstDoneFlag {
		seedX, seedY = centroid.Seed(sub)
		res := centroid.Refine(sub, seedX, seedY, centroid.ModeFWHM)
		l.State.FWHMX, l.State.FWHMY = res.FWHMX, res.FWHMY
		xFault, yFault, err := l.ISU.CheckFault()
		if err != nil {
			return err
		}
		if xFault || yFault {
			return isu.ErrFault
		}
		l.State.FirstDoneFlag = true
		seedX, seedY = res.X, res.Y
	} else {
		seedX, seedY = centroid.Seed(sub)
		res := centroid.Refine(sub, seedX, seedY, centroid.ModeCentroid)
		seedX, seedY = res.X, res.Y
	}

	xoff, yoff := geometry.OffsetArcsec(l.State.GuideX0, l.State.GuideY0, l.State.NullX, l.State.NullY, seedX, seedY)
	l.State.GuideXOff, l.State.GuideYOff = xoff, yoff

	if l.State.ISUOn {
		res, err := geometry.Transform(l.ISU, l.State.GuideX0, l.State.GuideY0, l.State.NullX, l.State.NullY, seedX, seedY)
		if err != nil {
			return err
		}
		l.State.ISUMradXDeltaSetup, l.State.ISUMradYDeltaSetup = res.DeltaX, res.DeltaY
		l.State.ISUMradXStatus, l.State.ISUMradYStatus = res.LastX, res.LastY

		rate := l.State.FrameRate
		targetX, targetY := res.TargetX, res.TargetY
		isuDriver := l.ISU
		go func() {
			if err := isuDriver.SetupSlope(rate, targetX, targetY); err != nil {
				log.Printf("frameloop: isu setup_slope: %v", err)
			}
		}()
	}
	return nil
}

func (l *Loop) emit(pixels []uint16) error {
	frame := imageout.Frame{
		Width:  l.State.ImageWidth,
		Height: l.State.ImageHeight,
		Pixels: pixels,
		State:  l.State,
		ETime:  l.State.ExposureTime,
		When:   now(),
	}
	if err := imageout.Write(l.Out, frame); err != nil {
		log.Printf("frameloop: dropping unwritable frame: %v", err)
		return nil
	}
	if l.State.FrameSaveCount > 0 {
		l.State.FrameSequence++
		if l.State.FrameSequence >= l.State.FrameSaveCount {
			l.State.ResetSaveSequence()
		}
	}
	return nil
}

// toSubraster copies the leading (top-left) 32x32 window of a row-major pixel
// buffer of the given stride into a fixed Subraster. When the buffer is
// already 32x32 (the guiding ROI case) this is the whole frame.
func toSubraster(pixels []uint16, stride int) *centroid.Subraster {
	var sub centroid.Subraster
	if stride == 0 {
		return &sub
	}
	rows := len(pixels) / stride
	for i := 0; i < guideSize && i < rows; i++ {
		for j := 0; j < guideSize && j < stride; j++ {
			sub[i][j] = pixels[i*stride+j]
		}
	}
	return &sub
}

// now is a seam for tests; production code always uses wall-clock time.
var now = func() time.Time { return time.Now() }
