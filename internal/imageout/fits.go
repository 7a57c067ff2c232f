// Package imageout serializes one acquired frame as a self-contained FITS
// primary HDU — header cards followed by a 16-bit unsigned pixel payload
// — to the output stream, exactly as the source's astronomical-header
// serializer does. Grounded on generichttp/camera/fits.go's WriteFits,
// extended to this guider's full header keyword set.
package imageout

import (
	"io"
	"time"

	"github.com/astrogo/fitsio"

	"github.com/cfht-spirou/guideserv/internal/serverstate"
)

// NullSentinel is written for any numeric header value that is undefined
// in the current mode (ISU off, not guiding, no exposure in progress);
// string values (FILENAME, RA, DEC) are written empty instead. The
// source's own header writer uses a fixed out-of-band numeric sentinel
// rather than omitting the keyword; -999 is chosen here as a value no
// real measurement in these units can take.
const NullSentinel = -999.0

// Frame bundles everything needed to write one image record: the pixel
// data (row-major, width*height) and a snapshot of the server state
// fields that feed the header.
type Frame struct {
	Width, Height int
	Pixels        []uint16
	State         *serverstate.State
	ETime         float64 // actual exposure time used for this frame, ms
	When          time.Time
}

// Write emits one FITS primary HDU for frame to w: the standard
// SIMPLE/BITPIX/NAXIS* cards fitsio.NewImage supplies, followed by the
// guider's own header cards, followed by the pixel payload with
// BZERO=32768/BSCALE=1 applied.
func Write(w io.Writer, frame Frame) error {
	f, err := fitsio.Create(w)
	if err != nil {
		return err
	}
	defer f.Close()

	img := fitsio.NewImage(16, []int{frame.Width, frame.Height})
	defer img.Close()

	for _, c := range headerCards(frame) {
		if err := img.Header().Append(c); err != nil {
			return err
		}
	}

	ints := make([]int16, len(frame.Pixels))
	for i, v := range frame.Pixels {
		ints[i] = int16(int32(v) - 32768)
	}
	if err := img.Write(ints); err != nil {
		return err
	}
	return f.Write(img)
}

// headerCards builds the guider's header keyword set for frame, in
// isolation from fitsio's Image/HDU plumbing so it can be tested directly.
func headerCards(frame Frame) []fitsio.Card {
	s := frame.State
	etype := "ACQUIRE"
	if s.FrameSaveCount > 0 {
		etype = "GUIDE"
	}

	return []fitsio.Card{
		{Name: "DATE", Value: frame.When.UTC().Format("2006-01-02"), Comment: "UTC date of acquisition"},
		{Name: "HSTTIME", Value: frame.When.Format("15:04:05.000"), Comment: "local HST time of acquisition"},
		{Name: "UNIXTIME", Value: frame.When.Unix(), Comment: "unix timestamp of acquisition"},
		{Name: "ORIGIN", Value: "CFHT", Comment: "organization responsible for this data"},
		{Name: "BZERO", Value: 32768, Comment: "offset for unsigned 16-bit pixels"},
		{Name: "BSCALE", Value: 1.0, Comment: "scale for unsigned 16-bit pixels"},
		{Name: "ETIME", Value: frame.ETime, Comment: "exposure time, ms"},
		{Name: "ETYPE", Value: etype, Comment: "ACQUIRE or GUIDE"},
		{Name: "IMGINFO", Value: s.FITSComment, Comment: "save-sequence comment"},
		{Name: "FRMRATE", Value: s.FrameRate, Comment: "frame rate, Hz"},
		{Name: "TEMP", Value: s.TECSetpoint, Comment: "TEC setpoint, degrees C"},
		{Name: "SEQNUM", Value: s.FrameSequence + 1, Comment: "save-sequence number"},
		{Name: "PIXSCALE", Value: 0.128, Comment: "arcsec per pixel"},
		{Name: "WIN_X0", Value: s.WinX0},
		{Name: "WIN_Y0", Value: s.WinY0},
		{Name: "WIN_X1", Value: s.WinX0 + frame.Width},
		{Name: "WIN_Y1", Value: s.WinY0 + frame.Height},
		{Name: "GUIDE_X0", Value: s.GuideX0},
		{Name: "GUIDE_Y0", Value: s.GuideY0},
		{Name: "GUIDE_X1", Value: s.GuideX0 + 32},
		{Name: "GUIDE_Y1", Value: s.GuideY0 + 32},
		{Name: "NULLX", Value: s.NullX},
		{Name: "NULLY", Value: s.NullY},
		{Name: "GD_XOFF", Value: nullable(s.GuideOn, s.GuideXOff)},
		{Name: "GD_YOFF", Value: nullable(s.GuideOn, s.GuideYOff)},
		{Name: "SMRAD_X", Value: nullable(s.ISUOn, s.ISUMradXDeltaSetup)},
		{Name: "SMRAD_Y", Value: nullable(s.ISUOn, s.ISUMradYDeltaSetup)},
		{Name: "RMRAD_X", Value: nullable(s.ISUOn, s.ISUMradXStatus)},
		{Name: "RMRAD_Y", Value: nullable(s.ISUOn, s.ISUMradYStatus)},
		{Name: "FILENAME", Value: nullableString(s.ExpOn, s.Filename)},
		{Name: "RA", Value: nullableString(s.ExpOn, s.RA)},
		{Name: "DEC", Value: nullableString(s.ExpOn, s.Dec)},
		{Name: "EQUINOX", Value: nullable(s.ExpOn, s.Equinox)},
		{Name: "OBJMAG", Value: nullable(s.ExpOn, s.ObjMag)},
	}
}

func nullable(on bool, v float64) float64 {
	if !on {
		return NullSentinel
	}
	return v
}

func nullableString(on bool, v string) string {
	if !on {
		return ""
	}
	return v
}
