package cmdserver

import (
	"fmt"
	"strconv"

	"github.com/cfht-spirou/guideserv/internal/cameraproto"
	"github.com/cfht-spirou/guideserv/internal/isu"
	"github.com/cfht-spirou/guideserv/internal/serverstate"
	"github.com/cfht-spirou/guideserv/internal/telstatus"
	"github.com/cfht-spirou/guideserv/mathx"
)

// Dispatcher mutates a single shared State and the camera/ISU
// collaborators it is given. It must only ever be invoked from the frame
// loop's own goroutine, between frames — see the package doc and design
// note on the single-threaded command dispatcher.
type Dispatcher struct {
	State    *serverstate.State
	Serial   cameraproto.Transport
	TempCal  cameraproto.TempCal
	ISU      isu.Driver
	TelStat  telstatus.Client
	// StartHoming is called to spawn a detached homing worker when
	// ISU ON is issued and the mechanism is not yet homed. It must not
	// block.
	StartHoming func()
}

// Result is the outcome of dispatching one command line.
type Result struct {
	Reply    string
	Shutdown bool
}

func pass(verb, value string) Result {
	if value == "" {
		return Result{Reply: ". " + verb}
	}
	return Result{Reply: ". " + verb + " " + value}
}

func fail(verb, msg string) Result {
	return Result{Reply: fmt.Sprintf("! %s %q", verb, msg)}
}

// Handle parses and executes one command line.
func (d *Dispatcher) Handle(line string) Result {
	cmd := Parse(line)
	if cmd.Verb == "" {
		return fail("", "empty command")
	}
	switch cmd.Verb {
	case "SHUTDOWN":
		return Result{Reply: ". SHUTDOWN", Shutdown: true}
	case "ENDEXP":
		return d.handleEndExp()
	case "STARTEXP":
		return d.handleStartExp(cmd)
	case "FRAMERATE":
		return d.handleFrameRate(cmd)
	case "EXPTIME":
		return d.handleExpTime(cmd)
	case "TEC":
		return d.handleTEC(cmd)
	case "TEMP":
		return d.handleTemp()
	case "ROI":
		return d.handleROI(cmd)
	case "NULL":
		return d.handleNull(cmd)
	case "VIDEO":
		return d.handleOnOff(cmd, "VIDEO", &d.State.VideoOn)
	case "GUIDE":
		return d.handleOnOff(cmd, "GUIDE", &d.State.GuideOn)
	case "ISU":
		return d.handleISU(cmd)
	case "SAVE":
		return d.handleSave(cmd)
	default:
		return fail(cmd.Verb, "Unknown command")
	}
}

func (d *Dispatcher) handleEndExp() Result {
	d.State.ExpOn = false
	return pass("ENDEXP", "")
}

func (d *Dispatcher) handleStartExp(cmd Command) Result {
	filename, ok := cmd.KV["FILENAME"]
	if !ok {
		return fail("STARTEXP", "FILENAME is required")
	}
	allowed := map[string]bool{"FILENAME": true, "RA": true, "DEC": true, "EQUINOX": true, "OBJMAG": true}
	for k := range cmd.KV {
		if !allowed[k] {
			return fail("STARTEXP", "Unknown key "+k)
		}
	}

	ra, raOK := cmd.KV["RA"]
	dec, decOK := cmd.KV["DEC"]
	var equinox float64
	var eqOK bool
	if v, ok := cmd.KV["EQUINOX"]; ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fail("STARTEXP", "EQUINOX must be numeric")
		}
		equinox, eqOK = f, true
	}
	var objmag float64
	if v, ok := cmd.KV["OBJMAG"]; ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fail("STARTEXP", "OBJMAG must be numeric")
		}
		// Assigns to objmag, not equinox: the source's OBJMAG= parser
		// stored into equinox, a copy-paste bug this design corrects.
		objmag = f
	}

	if (!raOK || !decOK || !eqOK) && d.TelStat != nil {
		coords, err := d.TelStat.Current()
		if err == nil {
			if !raOK {
				ra = coords.RA
			}
			if !decOK {
				dec = coords.Dec
			}
			if !eqOK {
				equinox = coords.Equinox
			}
		}
	}

	d.State.Filename = filename
	d.State.RA = ra
	d.State.Dec = dec
	d.State.Equinox = equinox
	d.State.ObjMag = objmag
	d.State.ExpOn = true
	return pass("STARTEXP", "")
}

func (d *Dispatcher) handleFrameRate(cmd Command) Result {
	if len(cmd.Args) == 0 {
		return pass("FRAMERATE", fmt.Sprintf("%.2f", d.State.FrameRate))
	}
	hz, err := strconv.ParseFloat(cmd.Args[0], 64)
	if err != nil || hz <= 0 || hz > 120 {
		return fail("FRAMERATE", "Frame Rate Specified is Invalid")
	}
	if d.Serial != nil {
		if err := cameraproto.SetFrameRate(d.Serial, hz); err != nil {
			return fail("FRAMERATE", err.Error())
		}
	}
	d.State.FrameRate = hz
	return pass("FRAMERATE", fmt.Sprintf("%.2f", hz))
}

func (d *Dispatcher) handleExpTime(cmd Command) Result {
	if len(cmd.Args) == 0 {
		return pass("EXPTIME", fmt.Sprintf("%.3f", d.State.ExposureTime))
	}
	ms, err := strconv.ParseFloat(cmd.Args[0], 64)
	if err != nil || ms <= 0 {
		return fail("EXPTIME", "Exposure Time Specified is Invalid")
	}
	if 1000/d.State.FrameRate > 20000 {
		return fail("EXPTIME", "Exposure Time exceeds user timeout")
	}
	if d.Serial != nil {
		if err := cameraproto.SetExposureTime(d.Serial, ms); err != nil {
			return fail("EXPTIME", err.Error())
		}
	}
	d.State.ExposureTime = ms
	return pass("EXPTIME", fmt.Sprintf("%.3f", ms))
}

func (d *Dispatcher) handleTEC(cmd Command) Result {
	if len(cmd.Args) == 0 {
		return pass("TEC", fmt.Sprintf("%.1f", d.State.TECSetpoint))
	}
	t, err := strconv.ParseFloat(cmd.Args[0], 64)
	if err != nil {
		return fail("TEC", "TEC Setpoint Specified is Invalid")
	}
	if d.Serial != nil {
		if err := cameraproto.SetTECSetpoint(d.Serial, d.TempCal, t); err != nil {
			return fail("TEC", err.Error())
		}
	}
	d.State.TECSetpoint = mathx.Round(t, 0.1)
	return pass("TEC", fmt.Sprintf("%.1f", d.State.TECSetpoint))
}

func (d *Dispatcher) handleTemp() Result {
	if d.Serial != nil {
		temp, err := cameraproto.ReadTemperature(d.Serial, d.TempCal)
		if err != nil {
			return fail("TEMP", err.Error())
		}
		d.State.Temp = mathx.Round(temp, 0.1)
	}
	return pass("TEMP", fmt.Sprintf("%.1f", d.State.Temp))
}

func (d *Dispatcher) handleROI(cmd Command) Result {
	if len(cmd.Args) == 0 {
		return pass("ROI", fmt.Sprintf("%d %d", d.State.GuideX0, d.State.GuideY0))
	}
	if len(cmd.Args) != 2 {
		return fail("ROI", "ROI requires two integer arguments")
	}
	x0, err1 := strconv.Atoi(cmd.Args[0])
	y0, err2 := strconv.Atoi(cmd.Args[1])
	if err1 != nil || err2 != nil || x0 < 0 || x0 > 640-32 || y0 < 0 || y0 > 512-32 {
		return fail("ROI", "ROI Specified is Invalid")
	}
	d.State.GuideX0, d.State.GuideY0 = x0, y0
	return pass("ROI", fmt.Sprintf("%d %d", x0, y0))
}

func (d *Dispatcher) handleNull(cmd Command) Result {
	if len(cmd.Args) == 0 {
		return pass("NULL", fmt.Sprintf("%.2f %.2f", d.State.NullX, d.State.NullY))
	}
	if len(cmd.Args) != 2 {
		return fail("NULL", "NULL requires two numeric arguments")
	}
	x, err1 := strconv.ParseFloat(cmd.Args[0], 64)
	y, err2 := strconv.ParseFloat(cmd.Args[1], 64)
	if err1 != nil || err2 != nil || x < 0 || x > 640 || y < 0 || y > 512 {
		return fail("NULL", "Null Position Specified is Invalid")
	}
	d.State.NullX, d.State.NullY = mathx.Round(x, 0.01), mathx.Round(y, 0.01)
	return pass("NULL", fmt.Sprintf("%.2f %.2f", d.State.NullX, d.State.NullY))
}

func (d *Dispatcher) handleOnOff(cmd Command, verb string, flag *bool) Result {
	if len(cmd.Args) != 1 {
		return fail(verb, verb+" requires ON or OFF")
	}
	switch cmd.Args[0] {
	case "ON", "on":
		*flag = true
	case "OFF", "off":
		*flag = false
	default:
		return fail(verb, verb+" requires ON or OFF")
	}
	return pass(verb, cmd.Args[0])
}

func (d *Dispatcher) handleISU(cmd Command) Result {
	if len(cmd.Args) != 1 {
		return fail("ISU", "ISU requires ON or OFF")
	}
	switch cmd.Args[0] {
	case "ON", "on":
		homed, err := d.ISU.CheckHomed()
		if err != nil {
			return fail("ISU", err.Error())
		}
		if !homed {
			if d.StartHoming != nil {
				d.StartHoming()
			}
			return pass("ISU", "ON (homing)")
		}
		if err := d.ISU.Enable(); err != nil {
			return fail("ISU", err.Error())
		}
		d.State.ISUOn = true
		return pass("ISU", "ON")
	case "OFF", "off":
		if err := d.ISU.Stop(); err != nil {
			return fail("ISU", err.Error())
		}
		d.State.ISUOn = false
		return pass("ISU", "OFF")
	default:
		return fail("ISU", "ISU requires ON or OFF")
	}
}

func (d *Dispatcher) handleSave(cmd Command) Result {
	if len(cmd.Args) < 1 {
		return fail("SAVE", "SAVE requires a frame count")
	}
	n, err := strconv.Atoi(cmd.Args[0])
	if err != nil || n < 0 || n > 1_000_000 {
		return fail("SAVE", "Save Count Specified is Invalid")
	}
	comment := ""
	if len(cmd.Args) > 1 {
		comment = cmd.Args[1]
	}
	if n == 0 {
		d.State.ResetSaveSequence()
		return pass("SAVE", "")
	}
	d.State.FrameSaveCount = n
	d.State.FrameSequence = 0
	d.State.FITSComment = comment
	return pass("SAVE", "")
}
