// Command simbridge runs the vehicle simulation bridge: a kinematic vehicle
// on a closed track, a planar range sensor decoded into LaserScan messages,
// ground truth pose, vehicle status and lap timing, all published on an
// in-process bus with optional UDP, gRPC and SQLite sinks.
package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/banshee-data/simbridge/internal/config"
	"github.com/banshee-data/simbridge/internal/timeutil"
	"github.com/banshee-data/simbridge/internal/version"
)

var (
	configPath  = flag.String("config", "", "Path to a JSON settings file (defaults are built in)")
	listen      = flag.String("listen", ":8081", "HTTP monitor listen address (empty to disable)")
	grpcListen  = flag.String("grpc-listen", "", "Override the gRPC telemetry listen address (\"off\" to disable)")
	dbPath      = flag.String("db", "", "Override the SQLite message recorder path")
	forwardAddr = flag.String("forward-addr", "", "Override the UDP forward address")
	forwardPort = flag.Int("forward-port", 0, "Override the UDP forward port")
	recordPcap  = flag.String("record-pcap", "", "Record range sensor hit buffers to this pcap file")
	replayPcap  = flag.String("replay-pcap", "", "Replay range sensor hit buffers from this pcap file")
	replayLoop  = flag.Bool("replay-loop", false, "Restart the pcap replay when it ends")
	autopilot   = flag.Bool("autopilot", true, "Follow the track centerline through the command topics")
	realtime    = flag.Bool("realtime", true, "Pace physics steps to the wall clock")
	duration    = flag.Duration("duration", 0, "Simulation time to run (0 runs until interrupted; required without -realtime)")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

func loadSettings() (*config.Settings, error) {
	var s *config.Settings
	if *configPath != "" {
		var err error
		if s, err = config.LoadSettings(*configPath); err != nil {
			return nil, err
		}
	} else {
		s = config.DefaultSettings()
	}
	applyOverrides(s)
	return s, s.Validate()
}

// applyOverrides copies the flags that shadow settings into s.
func applyOverrides(s *config.Settings) {
	switch *grpcListen {
	case "":
	case "off":
		off := ""
		s.GRPCListen = &off
	default:
		v := *grpcListen
		s.GRPCListen = &v
	}
	if *dbPath != "" {
		v := *dbPath
		s.RecorderDB = &v
	}
	if *forwardAddr != "" {
		v := *forwardAddr
		s.ForwardAddr = &v
	}
	if *forwardPort != 0 {
		v := *forwardPort
		s.ForwardPort = &v
	}
}

func main() {
	flag.Parse()

	if *showVersion {
		log.Print(version.String())
		return
	}
	if *replayPcap != "" && *recordPcap != "" {
		log.Fatal("-record-pcap and -replay-pcap are mutually exclusive")
	}

	settings, err := loadSettings()
	if err != nil {
		log.Fatalf("invalid settings: %v", err)
	}

	a, err := newApp(settings, options{
		Listen:     *listen,
		RecordPcap: *recordPcap,
		ReplayPcap: *replayPcap,
		ReplayLoop: *replayLoop,
		Autopilot:  *autopilot,
		Realtime:   *realtime,
		Duration:   *duration,
	}, timeutil.RealClock{})
	if err != nil {
		log.Fatalf("failed to start: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	if err := a.run(ctx); err != nil {
		log.Printf("run failed: %v", err)
	}
	if err := a.close(); err != nil {
		log.Printf("shutdown: %v", err)
	}
	log.Printf("Graceful shutdown complete after %s", time.Since(start).Round(time.Millisecond))
}
