// Package config loads the guide subraster/null configuration and the
// deployment-variant capability record via koanf, mirroring
// cmd/andorhttp2/main.go's defaults-then-file-override pattern: a
// structs.Provider supplies defaults, then a file.Provider overrides from
// a YAML file on disk.
package config

import (
	"fmt"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
)

// Guide holds the four required guide raster/null keys. All four are
// required; a missing key is a startup failure.
type Guide struct {
	GuideRasterX0 int     `koanf:"guideRasterX0"`
	GuideRasterY0 int     `koanf:"guideRasterY0"`
	HoleNullX     float64 `koanf:"holeNullX"`
	HoleNullY     float64 `koanf:"holeNullY"`
}

// Capabilities resolves the source's compile-time "#ifdef" deployment
// variants (ISU present, star simulation, debug timing) into a runtime
// configuration record.
type Capabilities struct {
	ISUPresent    bool   `koanf:"isuPresent"`
	StarSim       bool   `koanf:"starSim"`
	DebugTiming   bool   `koanf:"debugTiming"`
	ISUDevicePath string `koanf:"isuDevicePath"`
}

// Network holds the TCP command port and the auxiliary HTTP status mux
// port.
type Network struct {
	CommandPort int    `koanf:"commandPort"`
	StatusPort  int    `koanf:"statusPort"`
	CameraAddr  string `koanf:"cameraAddr"`
}

// Config is the complete process configuration.
type Config struct {
	Guide        Guide        `koanf:"guide"`
	Capabilities Capabilities `koanf:"capabilities"`
	Network      Network      `koanf:"network"`
}

// Default returns the zero-ish configuration defaults loaded via koanf's
// structs.Provider before any YAML file is consulted.
func Default() Config {
	return Config{
		Network: Network{CommandPort: 915, StatusPort: 8915, CameraAddr: "127.0.0.1:5000"},
	}
}

// Load reads path as a YAML file, overriding the defaults, and validates
// the guide keys per §3's range constraints. Any missing or
// out-of-range guide key is a startup failure. Unknown keys are not
// treated as an error: koanf ignores them, and no warning is logged.
func Load(path string) (Config, error) {
	fileOnly := koanf.New(".")
	if err := fileOnly.Load(file.Provider(path), yaml.Parser()); err != nil {
		return Config{}, fmt.Errorf("config: loading %s: %w", path, err)
	}
	for _, key := range []string{"guideRasterX0", "guideRasterY0", "holeNullX", "holeNullY"} {
		if !fileOnly.Exists("guide." + key) {
			return Config{}, fmt.Errorf("config: %s: missing required key guide.%s", path, key)
		}
	}

	k := koanf.New(".")
	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return Config{}, fmt.Errorf("config: loading defaults: %w", err)
	}
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return Config{}, fmt.Errorf("config: loading %s: %w", path, err)
	}
	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("config: unmarshaling: %w", err)
	}
	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func validate(cfg Config) error {
	g := cfg.Guide
	if g.GuideRasterX0 < 0 || g.GuideRasterX0 > 640-32 {
		return fmt.Errorf("config: guideRasterX0 %d out of range [0, %d]", g.GuideRasterX0, 640-32)
	}
	if g.GuideRasterY0 < 0 || g.GuideRasterY0 > 512-32 {
		return fmt.Errorf("config: guideRasterY0 %d out of range [0, %d]", g.GuideRasterY0, 512-32)
	}
	if g.HoleNullX < 0 || g.HoleNullX > 640 {
		return fmt.Errorf("config: holeNullX %v out of range [0, 640]", g.HoleNullX)
	}
	if g.HoleNullY < 0 || g.HoleNullY > 512 {
		return fmt.Errorf("config: holeNullY %v out of range [0, 512]", g.HoleNullY)
	}
	return nil
}
