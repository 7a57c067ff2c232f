package camera

import "math"

// Sim is a simulated camera that synthesizes a Gaussian star at a fixed
// position in sensor coordinates, cropped to whatever ROI is active. It
// exists so the frame loop, centroid engine, and geometry transform are
// exercisable and testable end to end without real hardware.
type Sim struct {
	open bool
	roi  ROI
	roiOn bool

	fullWidth, fullHeight int
	starX, starY          float64
	starWidth             float64
	amplitude, background float64

	timeouts int
}

// NewSim returns a Sim with a star centered in the full 640x512 frame.
func NewSim() *Sim {
	return &Sim{
		fullWidth: 640, fullHeight: 512,
		starX: 320, starY: 256,
		starWidth: 2.5, amplitude: 12000, background: 100,
	}
}

// SetStar repositions the simulated star, in full-frame sensor
// coordinates, for tests that need the star away from center.
func (s *Sim) SetStar(x, y, width, amplitude, background float64) {
	s.starX, s.starY, s.starWidth, s.amplitude, s.background = x, y, width, amplitude, background
}

func (s *Sim) Open() error  { s.open = true; return nil }
func (s *Sim) Close() error { s.open = false; return nil }

func (s *Sim) SetROI(r ROI) error {
	s.roi = r
	return nil
}

func (s *Sim) EnableROI(on bool) error {
	s.roiOn = on
	return nil
}

func (s *Sim) Dimensions() (int, int, error) {
	if s.roiOn {
		return s.roi.Width, s.roi.Height, nil
	}
	return s.fullWidth, s.fullHeight, nil
}

func (s *Sim) AllocateBuffers(n int) error { return nil }

func (s *Sim) SetBlockingTimeout(ms int) error { return nil }

func (s *Sim) StartImage() error { return nil }

func (s *Sim) WaitImage() ([]uint16, error) {
	w, h, err := s.Dimensions()
	if err != nil {
		return nil, err
	}
	if w <= 1 || h <= 1 {
		return nil, ErrBadImageSize
	}
	ox, oy := 0, 0
	if s.roiOn {
		ox, oy = s.roi.X0, s.roi.Y0
	}
	const widthVarianceScale = 0.180337
	out := make([]uint16, w*h)
	for i := 0; i < h; i++ {
		for j := 0; j < w; j++ {
			dx := float64(oy+i) - s.starY
			dy := float64(ox+j) - s.starX
			v := s.amplitude*math.Exp(-0.5*(dx*dx/(s.starWidth*s.starWidth*widthVarianceScale)+dy*dy/(s.starWidth*s.starWidth*widthVarianceScale))) + s.background
			out[i*w+j] = uint16(v)
		}
	}
	return out, nil
}

func (s *Sim) TimeoutCount() int { return s.timeouts }
