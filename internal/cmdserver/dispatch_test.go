package cmdserver

import (
	"testing"

	"github.com/cfht-spirou/guideserv/internal/isu"
	"github.com/cfht-spirou/guideserv/internal/serverstate"
)

func newTestDispatcher() *Dispatcher {
	return &Dispatcher{
		State: serverstate.New(),
		ISU:   isu.NewSim(),
	}
}

func TestParseQuotedArgument(t *testing.T) {
	cmd := Parse(`SAVE 3 "seq42"`)
	if cmd.Verb != "SAVE" || len(cmd.Args) != 2 || cmd.Args[1] != "seq42" {
		t.Errorf("Parse = %+v", cmd)
	}
}

func TestParseCaseInsensitiveVerb(t *testing.T) {
	cmd := Parse("framerate 50")
	if cmd.Verb != "FRAMERATE" {
		t.Errorf("Verb = %q, want FRAMERATE", cmd.Verb)
	}
}

func TestFrameRateColdBoot(t *testing.T) {
	d := newTestDispatcher()
	d.State.FrameRate = 50.0
	res := d.Handle("FRAMERATE")
	if res.Reply != ". FRAMERATE 50.00" {
		t.Errorf("reply = %q", res.Reply)
	}
}

func TestFrameRateInvalid(t *testing.T) {
	d := newTestDispatcher()
	res := d.Handle("FRAMERATE 200")
	want := `! FRAMERATE "Frame Rate Specified is Invalid"`
	if res.Reply != want {
		t.Errorf("reply = %q, want %q", res.Reply, want)
	}
	if d.State.FrameRate != 0 {
		t.Errorf("state mutated on invalid input: %v", d.State.FrameRate)
	}
}

func TestGuideOnSetsFlag(t *testing.T) {
	d := newTestDispatcher()
	res := d.Handle("GUIDE ON")
	if res.Reply != ". GUIDE ON" {
		t.Errorf("reply = %q", res.Reply)
	}
	if !d.State.GuideOn {
		t.Error("want GuideOn true")
	}
}

func TestSaveSequence(t *testing.T) {
	d := newTestDispatcher()
	res := d.Handle(`SAVE 3 "seq42"`)
	if res.Reply != ". SAVE" {
		t.Errorf("reply = %q", res.Reply)
	}
	if d.State.FrameSaveCount != 3 || d.State.FITSComment != "seq42" {
		t.Errorf("state = %+v", d.State)
	}
}

func TestSaveZeroCancels(t *testing.T) {
	d := newTestDispatcher()
	d.State.FrameSaveCount = 3
	d.State.FITSComment = "seq42"
	d.Handle("SAVE 0")
	if d.State.FrameSaveCount != 0 || d.State.FITSComment != "" {
		t.Errorf("state not reset: %+v", d.State)
	}
}

func TestStartExpRequiresFilename(t *testing.T) {
	d := newTestDispatcher()
	res := d.Handle("STARTEXP RA=10.0")
	if res.Reply != `! STARTEXP "FILENAME is required"` {
		t.Errorf("reply = %q", res.Reply)
	}
}

func TestStartExpObjMagAssignsToObjMagNotEquinox(t *testing.T) {
	d := newTestDispatcher()
	res := d.Handle(`STARTEXP FILENAME=foo.fits OBJMAG=12.5`)
	if res.Reply != ". STARTEXP" {
		t.Fatalf("reply = %q", res.Reply)
	}
	if d.State.ObjMag != 12.5 {
		t.Errorf("ObjMag = %v, want 12.5", d.State.ObjMag)
	}
	if d.State.Equinox != 0 {
		t.Errorf("Equinox = %v, want 0 (unaffected by OBJMAG=)", d.State.Equinox)
	}
}

func TestISUOnHomesWhenNotHomed(t *testing.T) {
	sim := &unhomedSim{Sim: isu.NewSim()}
	d := newTestDispatcher()
	d.ISU = sim
	homingStarted := false
	d.StartHoming = func() { homingStarted = true }
	res := d.Handle("ISU ON")
	if !homingStarted {
		t.Error("want StartHoming called")
	}
	if d.State.ISUOn {
		t.Error("want ISUOn still false while homing")
	}
	_ = res
}

// unhomedSim wraps isu.Sim to force CheckHomed to always report false.
type unhomedSim struct {
	*isu.Sim
}

func (u *unhomedSim) CheckHomed() (bool, error) { return false, nil }
