// Command guideserv is the fast-guiding loop control core's process entry
// point. Its sub-command layout (root/help/mkconf/conf/run) follows
// cmd/andorhttp2/main.go in the teacher corpus.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/fatih/color"

	"github.com/cfht-spirou/guideserv/internal/camera"
	"github.com/cfht-spirou/guideserv/internal/cameraproto"
	"github.com/cfht-spirou/guideserv/internal/cmdserver"
	"github.com/cfht-spirou/guideserv/internal/comm"
	"github.com/cfht-spirou/guideserv/internal/config"
	"github.com/cfht-spirou/guideserv/internal/frameloop"
	"github.com/cfht-spirou/guideserv/internal/isu"
	"github.com/cfht-spirou/guideserv/internal/serverstate"
	"github.com/cfht-spirou/guideserv/internal/statushttp"
	"github.com/cfht-spirou/guideserv/internal/telstatus"
)

// Version is stamped at build time via -ldflags.
var Version = "dev"

const defaultConfigPath = "guideserv.yaml"

func main() {
	root()
}

func root() {
	if len(os.Args) < 2 {
		help()
		os.Exit(1)
	}
	switch os.Args[1] {
	case "run":
		run()
	case "mkconf":
		mkconf()
	case "conf":
		printconf()
	case "version":
		pversion()
	case "help", "-h", "--help":
		help()
	default:
		fmt.Fprintf(os.Stderr, "unknown sub-command %q\n\n", os.Args[1])
		help()
		os.Exit(1)
	}
}

func help() {
	bold := color.New(color.Bold)
	bold.Println("guideserv - telescope fast-guiding loop control core")
	fmt.Println()
	color.Cyan("  guideserv run [config.yaml]")
	fmt.Println("      start the command server and frame loop")
	color.Cyan("  guideserv mkconf [config.yaml]")
	fmt.Println("      write a default configuration file")
	color.Cyan("  guideserv conf [config.yaml]")
	fmt.Println("      print the resolved configuration")
	color.Cyan("  guideserv version")
	fmt.Println("      print the build version")
}

func pversion() {
	fmt.Println(Version)
}

func configPath() string {
	if len(os.Args) > 2 {
		return os.Args[2]
	}
	return defaultConfigPath
}

const defaultConfigTemplate = `guide:
  guideRasterX0: 0
  guideRasterY0: 0
  holeNullX: 0
  holeNullY: 0
capabilities:
  isuPresent: false
  starSim: true
  debugTiming: false
  isuDevicePath: ""
network:
  commandPort: 915
  statusPort: 8915
  cameraAddr: "127.0.0.1:5000"
`

func mkconf() {
	path := configPath()
	if err := os.WriteFile(path, []byte(defaultConfigTemplate), 0o644); err != nil {
		log.Fatalf("guideserv: writing %s: %v", path, err)
	}
	fmt.Printf("wrote default configuration to %s\n", path)
}

func printconf() {
	cfg, err := config.Load(configPath())
	if err != nil {
		log.Fatalf("guideserv: %v", err)
	}
	fmt.Printf("%+v\n", cfg)
}

func run() {
	cfg, err := config.Load(configPath())
	if err != nil {
		log.Fatalf("guideserv: loading config: %v", err)
	}
	log.Printf("guideserv: loaded config: %+v", cfg)

	state := serverstate.New()
	state.GuideX0 = cfg.Guide.GuideRasterX0
	state.GuideY0 = cfg.Guide.GuideRasterY0
	state.NullX = cfg.Guide.HoleNullX
	state.NullY = cfg.Guide.HoleNullY

	bus := comm.NewBus(cfg.Network.CameraAddr, false, nil)
	serialTransport := &cameraproto.BusTransport{Bus: bus}

	tempCal, err := cameraproto.ReadManufacturingBlock(serialTransport)
	if err != nil {
		log.Fatalf("guideserv: reading manufacturing calibration block: %v", err)
	}
	if ok, err := cameraproto.CheckStatus(serialTransport); err != nil || !ok {
		log.Fatalf("guideserv: camera status check failed: ok=%v err=%v", ok, err)
	}
	if err := cameraproto.SetNUC(serialTransport); err != nil {
		log.Fatalf("guideserv: setNUC: %v", err)
	}
	if err := cameraproto.SetAutoLevel(serialTransport); err != nil {
		log.Fatalf("guideserv: setAutoLevel: %v", err)
	}
	if err := cameraproto.EnableTEC(serialTransport); err != nil {
		log.Fatalf("guideserv: enableTEC: %v", err)
	}

	var cam camera.Camera
	var isuDriver isu.Driver
	if cfg.Capabilities.StarSim {
		cam = camera.NewSim()
	} else {
		log.Fatalf("guideserv: no non-simulated frame-grabber binding is wired in this build")
	}
	if cfg.Capabilities.ISUPresent {
		isuDriver = isu.NewSerial(cfg.Capabilities.ISUDevicePath, isu.CalCoeffs{ScaleX: 1, ScaleY: 1})
	} else {
		isuDriver = isu.NewSim()
	}

	var telStat telstatus.Client = telstatus.NoOp{}

	server := cmdserver.NewServer(fmt.Sprintf(":%d", cfg.Network.CommandPort))
	if err := server.Listen(); err != nil {
		log.Fatalf("guideserv: listening on command port: %v", err)
	}

	dispatcher := &cmdserver.Dispatcher{
		State:   state,
		Serial:  serialTransport,
		TempCal: tempCal,
		ISU:     isuDriver,
		TelStat: telStat,
		StartHoming: func() {
			go func() {
				if err := isuDriver.Home(); err != nil {
					log.Printf("guideserv: isu homing failed: %v", err)
				}
			}()
		},
	}

	statusSrv := statushttp.New(state)
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Network.StatusPort)
		if err := statusSrv.ListenAndServe(addr); err != nil {
			log.Printf("guideserv: status http server exited: %v", err)
		}
	}()

	loop := frameloop.New(state, server, cam, isuDriver, os.Stdout, dispatcher.Handle)
	loop.Run()
}
