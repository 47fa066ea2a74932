package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/banshee-data/simbridge/internal/config"
	"github.com/banshee-data/simbridge/internal/control"
	"github.com/banshee-data/simbridge/internal/groundtruth"
	"github.com/banshee-data/simbridge/internal/laptimer"
	"github.com/banshee-data/simbridge/internal/lidar/l2scan"
	"github.com/banshee-data/simbridge/internal/lidar/source"
	"github.com/banshee-data/simbridge/internal/monitor"
	"github.com/banshee-data/simbridge/internal/monitoring"
	"github.com/banshee-data/simbridge/internal/sim"
	"github.com/banshee-data/simbridge/internal/timeutil"
	"github.com/banshee-data/simbridge/internal/transport"
	"github.com/banshee-data/simbridge/internal/units"
	"github.com/banshee-data/simbridge/internal/vehicle"
	"github.com/banshee-data/simbridge/internal/vehiclestatus"
)

// options are the command line settings that are not part of the JSON
// configuration.
type options struct {
	Listen     string        // HTTP monitor, "" disables
	RecordPcap string        // write hit buffers here
	ReplayPcap string        // read hit buffers from here instead of the synthetic sensor
	ReplayLoop bool          // restart the replay at the end
	Autopilot  bool          // drive the centerline through the command topics
	Realtime   bool          // pace steps to the wall clock
	Duration   time.Duration // sim time to run, 0 for no limit (realtime only)
}

// app is one wired bridge.
type app struct {
	settings *config.Settings
	opts     options
	logf     func(format string, v ...interface{})

	clock *timeutil.SimClock
	sched *sim.Scheduler
	bus   *transport.Bus

	track     *sim.Track
	veh       *vehicle.Vehicle
	input     *control.Input
	autopilot *control.Autopilot

	synthetic *source.Synthetic
	replay    *source.Replay
	pcap      *source.Recorder
	emitter   *l2scan.Emitter
	stopScan  func()

	timer *laptimer.Timer

	forwarder *transport.UDPForwarder
	recorder  *transport.Recorder
	grpc      *transport.GRPCServer
	monitor   *monitor.Server
}

// newApp builds every component from s and registers the periodic ones with
// the scheduler. Nothing runs until run is called. wall paces real time runs.
func newApp(s *config.Settings, opts options, wall timeutil.Clock) (a *app, err error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	a = &app{settings: s, opts: opts, logf: monitoring.Prefixed("SimBridge")}
	defer func() {
		if err != nil {
			a.close()
		}
	}()

	a.clock = timeutil.NewSimClock(wall.Now(), wall)
	if a.sched, err = sim.NewScheduler(s.GetPhysicsStep(), a.clock); err != nil {
		return nil, err
	}
	a.bus = transport.NewBus()
	pub, err := a.buildTransport()
	if err != nil {
		return nil, err
	}

	if a.track, err = sim.NewTrack(s.GetTrackLength(), s.GetTrackWidth(), s.GetLaneWidth()); err != nil {
		return nil, err
	}
	vcfg := vehicle.DefaultConfig()
	if a.veh, err = vehicle.New(vcfg); err != nil {
		return nil, err
	}
	a.veh.Place(a.track.StartPose())

	if err := a.buildControl(vcfg); err != nil {
		return nil, err
	}
	if err := a.buildScan(pub); err != nil {
		return nil, err
	}
	if err := a.buildPose(pub); err != nil {
		return nil, err
	}
	if err := a.buildStatus(pub); err != nil {
		return nil, err
	}
	if err := a.buildLapTimer(pub); err != nil {
		return nil, err
	}

	src := monitor.Sources{
		Scan:    a.emitter,
		Vehicle: a.veh,
		Laps:    a.timer,
		Bus:     a.bus,
		Sim:     a.sched,
		SimTime: a.clock.Elapsed,
	}
	if a.recorder != nil {
		src.Admin = a.recorder.AttachAdminRoutes
	}
	if a.monitor, err = monitor.NewServer(monitor.Config{Address: opts.Listen, Sources: src}); err != nil {
		return nil, err
	}
	return a, nil
}

// buildTransport opens the configured sinks. The bus is always first.
func (a *app) buildTransport() (transport.MultiPublisher, error) {
	s := a.settings
	pub := transport.MultiPublisher{a.bus}
	if addr := s.GetForwardAddr(); addr != "" {
		f, err := transport.NewUDPForwarder(addr, s.GetForwardPort(), 5*time.Second)
		if err != nil {
			return nil, err
		}
		a.forwarder = f
		pub = append(pub, f)
	}
	if path := s.GetRecorderDB(); path != "" {
		r, err := transport.OpenRecorder(path)
		if err != nil {
			return nil, err
		}
		a.recorder = r
		pub = append(pub, r)
	}
	if listen := s.GetGRPCListen(); listen != "" {
		cfg := transport.DefaultGRPCConfig()
		cfg.ListenAddr = listen
		cfg.Writable = []string{s.GetControlCommandTopic(), s.GetGearCommandTopic(), s.GetEmergencyCommandTopic()}
		a.grpc = transport.NewGRPCServer(cfg, a.bus)
	}
	return pub, nil
}

func (a *app) buildControl(vcfg vehicle.Config) error {
	s := a.settings
	var err error
	a.input, err = control.NewInput(control.Config{
		ControlTopic:   s.GetControlCommandTopic(),
		GearTopic:      s.GetGearCommandTopic(),
		EmergencyTopic: s.GetEmergencyCommandTopic(),
		EmergencyDecel: s.GetEmergencyDecel(),
	}, a.bus, a.veh)
	if err != nil {
		return err
	}
	if a.opts.Autopilot {
		cfg := control.DefaultAutopilotConfig()
		cfg.ControlTopic = s.GetControlCommandTopic()
		cfg.GearTopic = s.GetGearCommandTopic()
		cfg.Wheelbase = vcfg.Wheelbase
		if a.autopilot, err = control.NewAutopilot(cfg, a.track.Centerline(), a.veh, a.clock, a.bus); err != nil {
			return err
		}
		a.sched.Register("autopilot", sim.OrderInput-10, a.autopilot.Step)
	}
	a.sched.Register("control", sim.OrderInput, a.input.Step)
	a.sched.Register("vehicle", sim.OrderPhysics, a.veh.Step)
	return nil
}

func (a *app) buildScan(pub transport.Publisher) error {
	s := a.settings
	geom, err := s.ScanGeometry()
	if err != nil {
		return err
	}
	policy, err := s.ScanPolicy()
	if err != nil {
		return err
	}
	if err := a.bus.Advertise(s.GetScanTopic(), transport.ScanQoS); err != nil {
		return err
	}
	dec, err := l2scan.NewDecoder(geom, policy)
	if err != nil {
		return err
	}
	if a.emitter, err = l2scan.NewEmitter(l2scan.EmitterConfig{Topic: s.GetScanTopic(), FrameID: s.GetScanFrameID()}, dec, a.clock, pub); err != nil {
		return err
	}

	var producer source.Producer
	if a.opts.ReplayPcap != "" {
		if a.replay, err = source.OpenReplay(a.opts.ReplayPcap, source.DefaultPort, geom, a.opts.ReplayLoop); err != nil {
			return err
		}
		a.sched.Register("replay", sim.OrderSensor, a.replay.Step)
		producer = a.replay
	} else {
		if a.synthetic, err = source.NewSynthetic(geom, a.track, a.veh); err != nil {
			return err
		}
		a.sched.Register("lidar", sim.OrderSensor, a.synthetic.Step)
		producer = a.synthetic
	}

	handler := source.Handler(a.emitter.Handler())
	if a.opts.RecordPcap != "" {
		if geom.HorizontalSteps > source.MaxRecordHits {
			return fmt.Errorf("cannot record %d-step scans to pcap: limit is %d steps", geom.HorizontalSteps, source.MaxRecordHits)
		}
		if a.pcap, err = source.CreateRecorder(a.opts.RecordPcap, source.DefaultPort, a.clock.Now); err != nil {
			return err
		}
		handler = a.pcap.Tap(handler)
	}
	a.stopScan = producer.Subscribe(handler)
	a.logf("scan: %d steps, %.1f..%.1f deg, policy %s, source %T", geom.HorizontalSteps,
		units.RadToDeg(geom.AngleMin), units.RadToDeg(geom.AngleMax), policy, producer)
	return nil
}

func (a *app) buildPose(pub transport.Publisher) error {
	s := a.settings
	if err := a.bus.Advertise(s.GetPoseTopic(), transport.PoseQoS); err != nil {
		return err
	}
	sampler, err := groundtruth.NewSampler(a.veh, s.GetPoseHz())
	if err != nil {
		return err
	}
	p, err := groundtruth.NewPublisher(groundtruth.PublisherConfig{Topic: s.GetPoseTopic(), FrameID: s.GetPoseFrameID()}, a.clock, pub)
	if err != nil {
		return err
	}
	sampler.OnOutput(p.Publish)
	a.sched.Register("pose", sim.OrderPublisher, sampler.Step)
	return nil
}

func (a *app) buildStatus(pub transport.Publisher) error {
	s := a.settings
	r, err := vehiclestatus.NewReporter(vehiclestatus.Config{
		ControlModeTopic: s.GetControlModeTopic(),
		GearTopic:        s.GetGearReportTopic(),
		SteeringTopic:    s.GetSteeringReportTopic(),
		VelocityTopic:    s.GetVelocityReportTopic(),
		FrameID:          s.GetStatusFrameID(),
		Hz:               s.GetStatusHz(),
	}, a.veh, a.clock, pub)
	if err != nil {
		return err
	}
	for _, topic := range r.Topics() {
		if err := a.bus.Advertise(topic, transport.PoseQoS); err != nil {
			return err
		}
	}
	a.sched.Register("status", sim.OrderPublisher, r.Step)
	return nil
}

func (a *app) buildLapTimer(pub transport.Publisher) error {
	s := a.settings
	if err := a.bus.Advertise(s.GetLapTimerTopic(), transport.DiagnosticsQoS); err != nil {
		return err
	}
	a.timer = laptimer.New()
	fa, fb := a.track.FinishLine()
	det, err := laptimer.NewDetector(laptimer.FinishLine{A: fa, B: fb}, a.veh, a.timer, a.clock)
	if err != nil {
		return err
	}
	det.SetLogger(monitoring.Prefixed("LapTimer"))
	p, err := laptimer.NewPublisher(laptimer.PublisherConfig{Topic: s.GetLapTimerTopic(), FrameID: s.GetStatusFrameID(), Hz: s.GetLapTimerHz()}, a.timer, a.clock, pub)
	if err != nil {
		return err
	}
	a.sched.Register("finish-line", sim.OrderPhysics+10, det.Step)
	a.sched.Register("lap-timer", sim.OrderPublisher, p.Step)
	return nil
}

// run starts the network services and steps the simulation until ctx is
// done or the configured duration has elapsed.
func (a *app) run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if a.forwarder != nil {
		a.forwarder.Start(ctx)
	}
	if a.grpc != nil {
		if err := a.grpc.Start(); err != nil {
			return err
		}
		defer a.grpc.Stop()
	}
	httpDone := make(chan error, 1)
	if a.opts.Listen != "" {
		go func() { httpDone <- a.monitor.Start(ctx) }()
	} else {
		close(httpDone)
	}

	var err error
	if a.opts.Realtime {
		runCtx := ctx
		if a.opts.Duration > 0 {
			var stop context.CancelFunc
			runCtx, stop = context.WithTimeout(ctx, a.opts.Duration)
			defer stop()
		}
		err = a.sched.Run(runCtx)
	} else {
		if a.opts.Duration <= 0 {
			return fmt.Errorf("a run that is not real time needs a duration")
		}
		err = a.sched.RunFor(ctx, a.opts.Duration)
	}
	a.logf("ran %d steps, %s sim time, %d step errors; %d scans published", a.sched.Steps(), a.clock.Elapsed(), a.sched.Errors(), a.emitter.Stats().Published)
	if laps := a.timer.Stats(); laps.TotalLaps > 0 {
		a.logf("%d laps, best %.3fs", laps.TotalLaps, laps.BestLap)
	}

	cancel()
	if herr := <-httpDone; herr != nil && !errors.Is(herr, http.ErrServerClosed) {
		err = errors.Join(err, herr)
	}
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	return err
}

// close releases everything newApp opened. It is safe on a partly built app.
func (a *app) close() error {
	var errs []error
	if a.stopScan != nil {
		a.stopScan()
	}
	if a.input != nil {
		a.input.Close()
	}
	if a.pcap != nil {
		errs = append(errs, a.pcap.Close())
	}
	if a.bus != nil {
		errs = append(errs, a.bus.Close())
	}
	if a.forwarder != nil {
		errs = append(errs, a.forwarder.Close())
	}
	if a.recorder != nil {
		errs = append(errs, a.recorder.Close())
	}
	return errors.Join(errs...)
}
