package isu

// Sim is a no-op/simulated ISU driver used for the "no ISU" deployment
// variant and for exercising the frame loop under test without hardware.
// It tracks commanded angles so Read reflects the most recent setpoint.
type Sim struct {
	homed        bool
	x, y         float64
	xFault       bool
	yFault       bool
	cal          CalCoeffs
}

// NewSim returns a ready-to-use simulated ISU, already homed.
func NewSim() *Sim {
	return &Sim{homed: true, cal: CalCoeffs{ScaleX: 1, ScaleY: 1}}
}

func (s *Sim) Home() error {
	s.homed = true
	return nil
}

func (s *Sim) CheckHomed() (bool, error) { return s.homed, nil }

func (s *Sim) Enable() error { return nil }

func (s *Sim) Stop() error { return nil }

func (s *Sim) Read() (lastX, lastY float64, err error) { return s.x, s.y, nil }

func (s *Sim) SetupSlope(rateHz, targetX, targetY float64) error {
	s.x, s.y = targetX, targetY
	return nil
}

func (s *Sim) SetupDirect(targetX, targetY float64) error {
	s.x, s.y = targetX, targetY
	return nil
}

func (s *Sim) ArcsecToMrad(xArcsec, yArcsec float64) (xMrad, yMrad float64) {
	return xArcsec * arcsecToMradFactor, yArcsec * arcsecToMradFactor
}

func (s *Sim) SetupToTrue(xMrad, yMrad float64) (xTrue, yTrue float64) {
	return xMrad*s.cal.ScaleX + s.cal.OffsetX, yMrad*s.cal.ScaleY + s.cal.OffsetY
}

func (s *Sim) CheckFault() (xFault, yFault bool, err error) { return s.xFault, s.yFault, nil }

// InjectFault sets the simulated fault flags, for tests exercising the
// frame loop's fatal-on-fault behavior.
func (s *Sim) InjectFault(x, y bool) {
	s.xFault, s.yFault = x, y
}
