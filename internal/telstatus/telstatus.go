// Package telstatus models the optional telescope status collaborator
// consulted by STARTEXP when the operator omits RA/DEC/EQUINOX. It is
// optional by design — the NoOp client is used when no telescope status
// service is configured.
package telstatus

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Coords is the telescope's reported position, as plain strings matching
// the server state's ra/dec fields and a float equinox.
type Coords struct {
	RA      string
	Dec     string
	Equinox float64
}

// Client fetches the current telescope coordinates.
type Client interface {
	Current() (Coords, error)
}

// NoOp is the fallback used when no telescope status service is
// configured; it always reports the zero Coords. STARTEXP stores those
// values as they are: RA and DEC are empty and EQUINOX is 0, not the
// image header's numeric null sentinel.
type NoOp struct{}

func (NoOp) Current() (Coords, error) { return Coords{}, nil }

// HTTPClient consults a telescope status service's
// /t/status/currentRA|currentDEC|currentEQ endpoints.
type HTTPClient struct {
	BaseURL string
	HTTP    *http.Client
}

// NewHTTPClient returns an HTTPClient with a bounded request timeout,
// since the frame loop cannot afford to stall on a slow collaborator.
func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{BaseURL: baseURL, HTTP: &http.Client{Timeout: 2 * time.Second}}
}

func (c *HTTPClient) Current() (Coords, error) {
	ra, err := c.getString("/t/status/currentRA")
	if err != nil {
		return Coords{}, err
	}
	dec, err := c.getString("/t/status/currentDEC")
	if err != nil {
		return Coords{}, err
	}
	eq, err := c.getFloat("/t/status/currentEQ")
	if err != nil {
		return Coords{}, err
	}
	return Coords{RA: ra, Dec: dec, Equinox: eq}, nil
}

func (c *HTTPClient) getString(path string) (string, error) {
	var v string
	if err := c.getJSON(path, &v); err != nil {
		return "", err
	}
	return v, nil
}

func (c *HTTPClient) getFloat(path string) (float64, error) {
	var v float64
	if err := c.getJSON(path, &v); err != nil {
		return 0, err
	}
	return v, nil
}

func (c *HTTPClient) getJSON(path string, out interface{}) error {
	resp, err := c.HTTP.Get(c.BaseURL + path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telstatus: %s: status %d", path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
