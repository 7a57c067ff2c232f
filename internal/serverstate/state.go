// Package serverstate holds the single shared server state record and the
// client connection list. The record is owned exclusively by the frame
// loop and lent by reference to the command dispatcher only while the
// dispatcher runs on the frame loop's own goroutine between frames — never
// shared across goroutines, matching the "single mutable record" design
// note in the source this is descended from.
package serverstate

import (
	"net"
	"sync"
	"time"
)

// State is the single process-wide server record.
type State struct {
	FrameRate    float64 // Hz
	ExposureTime float64 // ms
	TECSetpoint  float64 // degrees C
	Temp         float64 // degrees C, read-only cache

	ImageWidth, ImageHeight int
	WinX0, WinY0            int

	GuideX0, GuideY0 int
	NullX, NullY     float64

	VideoOn, GuideOn, ISUOn, ExpOn bool

	ISUMradXDeltaSetup, ISUMradYDeltaSetup float64
	ISUMradXStatus, ISUMradYStatus         float64

	GuideXOff, GuideYOff float64 // arcseconds
	FWHMX, FWHMY         float64

	FrameSequence   int
	FrameSaveCount  int
	FITSComment     string
	Filename        string
	RA, Dec         string
	Equinox, ObjMag float64

	FirstDoneFlag bool
}

// New returns a State with the zero-value defaults the frame loop starts
// from before config is applied.
func New() *State {
	return &State{ImageWidth: 640, ImageHeight: 512}
}

// ResetSaveSequence clears the save-sequence fields, matching the reset
// that happens once frame_sequence reaches frame_save_count.
func (s *State) ResetSaveSequence() {
	s.FITSComment = ""
	s.FrameSequence = 0
	s.FrameSaveCount = 0
}

// ClientRecord describes one open TCP command connection.
type ClientRecord struct {
	RemoteIP net.IP
	Hostname string
	Connect  time.Time
}

// ClientList is a flat insertion-ordered collection of ClientRecords,
// owned by the command server. One handleConn goroutine per TCP
// connection calls Add/Remove concurrently, and the status HTTP handler
// calls Snapshot from yet another goroutine, so unlike State (single-owner,
// lock-free by design) this collection needs its own mutex.
type ClientList struct {
	mu      sync.Mutex
	clients []*ClientRecord
}

// Add appends a new client record and returns it.
func (l *ClientList) Add(remoteIP net.IP, hostname string, connect time.Time) *ClientRecord {
	rec := &ClientRecord{RemoteIP: remoteIP, Hostname: hostname, Connect: connect}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.clients = append(l.clients, rec)
	return rec
}

// Remove drops rec from the list, if present.
func (l *ClientList) Remove(rec *ClientRecord) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, c := range l.clients {
		if c == rec {
			l.clients = append(l.clients[:i], l.clients[i+1:]...)
			return
		}
	}
}

// Snapshot returns a copy of the current client list for read-only
// telemetry use.
func (l *ClientList) Snapshot() []ClientRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]ClientRecord, len(l.clients))
	for i, c := range l.clients {
		out[i] = *c
	}
	return out
}
