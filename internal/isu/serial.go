package isu

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/tarm/serial"

	"github.com/cfht-spirou/guideserv/internal/comm"
	"github.com/cfht-spirou/guideserv/util"
)

// arcsecToMradFactor and the setupToTrue calibration coefficients below
// are placeholders for values that come from the mechanism's own
// calibration sheet; they are not specified by the guiding loop itself,
// only invoked through this narrow contract.
const arcsecToMradFactor = 1000.0 / 206264.8 // 1 arcsec in mrad

// CalCoeffs holds the (non-identity) setup-to-true calibration the
// mechanism vendor supplies, modeled as a per-axis affine map.
type CalCoeffs struct {
	ScaleX, OffsetX float64
	ScaleY, OffsetY float64
}

// Serial is the real ISU driver, talking ASCII commands over a serial
// line, terminated by '\r', in the idiom of the teacher's RemoteDevice-
// style device packages.
type Serial struct {
	bus *comm.Bus
	cal CalCoeffs
}

// NewSerial returns a Serial-backed ISU driver for the given device path.
// The port is opened on the first command, not here.
func NewSerial(devicePath string, cal CalCoeffs) *Serial {
	conf := &serial.Config{Name: devicePath, Baud: 9600, ReadTimeout: 2 * time.Second}
	return &Serial{bus: comm.NewBus(devicePath, true, conf), cal: cal}
}

func (s *Serial) sendRecv(cmd string) (string, error) {
	if err := s.bus.Open(); err != nil {
		return "", err
	}
	if _, err := s.bus.Write([]byte(cmd + "\r")); err != nil {
		return "", err
	}
	reply, err := s.bus.ReadUntil('\r')
	if err != nil {
		return "", err
	}
	return strings.TrimRight(string(reply), "\r"), nil
}

func (s *Serial) Home() error {
	_, err := s.sendRecv("HOME")
	return err
}

func (s *Serial) CheckHomed() (bool, error) {
	reply, err := s.sendRecv("HOMED?")
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(reply) == "1", nil
}

func (s *Serial) Enable() error {
	_, err := s.sendRecv("ENABLE")
	return err
}

func (s *Serial) Stop() error {
	_, err := s.sendRecv("STOP")
	return err
}

func (s *Serial) Read() (lastX, lastY float64, err error) {
	reply, err := s.sendRecv("ANGLES?")
	if err != nil {
		return 0, 0, err
	}
	fields := strings.Fields(reply)
	if len(fields) != 2 {
		return 0, 0, fmt.Errorf("isu: malformed ANGLES? reply %q", reply)
	}
	lastX, err = strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0, 0, err
	}
	lastY, err = strconv.ParseFloat(fields[1], 64)
	return lastX, lastY, err
}

func (s *Serial) SetupSlope(rateHz, targetX, targetY float64) error {
	_, err := s.sendRecv(fmt.Sprintf("SLOPE %f %f %f", rateHz, targetX, targetY))
	return err
}

func (s *Serial) SetupDirect(targetX, targetY float64) error {
	_, err := s.sendRecv(fmt.Sprintf("DIRECT %f %f", targetX, targetY))
	return err
}

func (s *Serial) ArcsecToMrad(xArcsec, yArcsec float64) (xMrad, yMrad float64) {
	return xArcsec * arcsecToMradFactor, yArcsec * arcsecToMradFactor
}

func (s *Serial) SetupToTrue(xMrad, yMrad float64) (xTrue, yTrue float64) {
	return xMrad*s.cal.ScaleX + s.cal.OffsetX, yMrad*s.cal.ScaleY + s.cal.OffsetY
}

// CheckFault asks for the mechanism's single-byte fault status and pulls
// the X/Y flags out of bits 0 and 1, the same bit-flag-in-a-status-byte
// shape used throughout the source for mechanism health bytes.
func (s *Serial) CheckFault() (xFault, yFault bool, err error) {
	reply, err := s.sendRecv("FAULT?")
	if err != nil {
		return false, false, err
	}
	fields := strings.Fields(reply)
	if len(fields) != 1 {
		return false, false, fmt.Errorf("isu: malformed FAULT? reply %q", reply)
	}
	status, err := strconv.ParseUint(fields[0], 16, 8)
	if err != nil {
		return false, false, fmt.Errorf("isu: malformed FAULT? status byte %q: %w", fields[0], err)
	}
	b := byte(status)
	return util.GetBit(b, 0), util.GetBit(b, 1), nil
}
