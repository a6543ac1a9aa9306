// Command lidarfusiond runs the real-time multi-sensor fusion and tracking
// pipeline: one DeviceStage per configured sensor, a RegistrationSolver that
// aligns their coordinate frames, a MultiStageTracker that fuses their
// blobs into a stable object population, and an ObserverBus that reports
// that population to configured sinks.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"tailscale.com/tsweb"

	"github.com/banshee-data/lidarfusion/internal/checkpoint"
	"github.com/banshee-data/lidarfusion/internal/config"
	"github.com/banshee-data/lidarfusion/internal/device"
	"github.com/banshee-data/lidarfusion/internal/fusion"
	"github.com/banshee-data/lidarfusion/internal/observer"
	"github.com/banshee-data/lidarfusion/internal/registration"
	"github.com/banshee-data/lidarfusion/internal/scansource"
	"github.com/banshee-data/lidarfusion/internal/security"
	"github.com/banshee-data/lidarfusion/internal/timeutil"
	"github.com/banshee-data/lidarfusion/internal/version"
)

var (
	listen        = flag.String("listen", ":8090", "admin/debug listen address")
	configPath    = flag.String("config", "", "path to a JSON tunable overrides file (optional)")
	devicesFlag   = flag.String("devices", "generic:/dev/ttyUSB0", "comma-separated family:devicepath specs, one per sensor")
	checkpointDB  = flag.String("checkpoint-db", "checkpoints.db", "path to the checkpoint catalogue sqlite file")
	sinkPath      = flag.String("sink", "observations.log", "path to the append-only scheme sink file")
	schemePath    = flag.String("scheme", "", "path to a scheme file (optional; a minimal default is used otherwise)")
	registerDelay = flag.Duration("register-delay", 10*time.Second, "settle time before the one-shot registration pass")
)

// defaultScheme emits one line per object report (age_ms changes every
// frame, so every object reports each frame) plus enter/leave lines, the
// minimal always-available fallback when --scheme is not given.
const defaultScheme = `
object: $id $x $y $motion_x $motion_y
objectEnter: enter $id
objectLeave: leave $id
`

func main() {
	flag.Parse()
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	log.SetOutput(os.Stdout)
	log.Print(version.String())

	for _, p := range []string{*configPath, *checkpointDB, *sinkPath, *schemePath} {
		if p == "" {
			continue
		}
		if err := security.ValidateExportPath(p); err != nil {
			log.Fatalf("reject path %q: %v", p, err)
		}
	}

	pc := config.MustLoadDefaultProcessConfig()
	if *configPath != "" {
		loaded, err := config.LoadProcessConfig(*configPath)
		if err != nil {
			log.Fatalf("load config %s: %v", *configPath, err)
		}
		pc = loaded
	}

	cat, err := checkpoint.Open(*checkpointDB)
	if err != nil {
		log.Fatalf("open checkpoint catalogue: %v", err)
	}
	defer cat.Close()
	if err := cat.MigrateUp(); err != nil {
		log.Fatalf("migrate checkpoint catalogue: %v", err)
	}

	stages, err := buildStages(*devicesFlag, pc)
	if err != nil {
		log.Fatalf("build device stages: %v", err)
	}

	sink, err := observer.NewFileSink(*sinkPath)
	if err != nil {
		log.Fatalf("open sink %s: %v", *sinkPath, err)
	}
	schemeSrc := defaultScheme
	if *schemePath != "" {
		data, err := os.ReadFile(*schemePath)
		if err != nil {
			log.Fatalf("read scheme %s: %v", *schemePath, err)
		}
		schemeSrc = string(data)
	}
	scheme, err := observer.ParseScheme(schemeSrc)
	if err != nil {
		log.Fatalf("parse scheme: %v", err)
	}
	filter := observer.ParseFieldFilter("")
	schemeObserver := observer.NewSchemeObserver("default", sink, scheme, filter)

	bus := observer.NewBus()
	bus.Add(observer.NewThreadedObserver(schemeObserver, timeutil.RealClock{}, 256))

	tracker := fusion.NewMultiStageTracker(device.TrackerConfigFrom(pc.Track), nil)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	for _, st := range stages {
		st.Open(ctx)
	}
	defer func() {
		for _, st := range stages {
			st.Close()
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		runRegistration(ctx, stages, pc.Register)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		runFusionLoop(ctx, stages, tracker, bus, pc)
	}()

	mux := http.NewServeMux()
	schemeObserver.AttachAdminRoutes(mux)
	debug := tsweb.Debugger(mux)
	debug.HandleFunc("stages", "current device stage status", func(w http.ResponseWriter, r *http.Request) {
		for _, st := range stages {
			fmt.Fprintln(w, st.String())
		}
	})

	httpServer := &http.Server{Addr: *listen, Handler: mux}
	wg.Add(1)
	go func() {
		defer wg.Done()
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			httpServer.Shutdown(shutdownCtx)
		}()
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("admin http server error: %v", err)
		}
	}()

	wg.Wait()
	if err := bus.Stop(); err != nil {
		log.Printf("observer bus shutdown: %v", err)
	}
	log.Printf("graceful shutdown complete")
}

// tcpDevicePrefix marks a device-spec path as a TCP relay address
// ("family:tcp://host:port") rather than a serial tty path
// ("family:/dev/ttyUSB0"), per spec.md §1's "five distinct hardware
// families, serial or TCP".
const tcpDevicePrefix = "tcp://"

// buildStages parses "family:path,family:path,..." into a DeviceStage per
// entry, each wired to a CSV-line ScanSource: scansource.SerialSource for a
// tty path, scansource.TCPSource for a "tcp://host:port" path.
func buildStages(spec string, pc *config.ProcessConfig) ([]*device.Stage, error) {
	var stages []*device.Stage
	for i, entry := range strings.Split(spec, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, ":", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("device spec %q: want family:path", entry)
		}
		family, path := parts[0], parts[1]

		devCfg := config.DefaultDeviceConfig().WithFamily(family).WithDevicePath(path)
		spec := scansource.Spec{
			MaxRange:      devCfg.MaxRange,
			NumSamples:    devCfg.NumSamples,
			ScanFreqHz:    devCfg.ScanFreqHz,
			MinQuality:    devCfg.MinQuality,
			EnvMinQuality: devCfg.EnvMinQuality,
		}

		var source scansource.ScanSource
		if tcpAddr, ok := strings.CutPrefix(path, tcpDevicePrefix); ok {
			devCfg.DevicePath = tcpAddr
			source = scansource.NewTCPSource(family, scansource.CSVLineParser, spec)
		} else {
			source = scansource.NewSerialSource(family, nil, scansource.CSVLineParser, spec)
		}

		id := fmt.Sprintf("device-%d", i)
		st := device.NewStage(id, devCfg, pc.Environment, pc.Object, source, nil)
		stages = append(stages, st)
	}
	if len(stages) == 0 {
		return nil, fmt.Errorf("no device specs given")
	}
	return stages, nil
}

// runRegistration waits registerDelay for the stages to accumulate enough
// marker observations, then solves for every non-reference device's
// transform exactly once, per spec.md §4.5's one-shot alignment model.
func runRegistration(ctx context.Context, stages []*device.Stage, cfg *config.RegisterConfig) {
	select {
	case <-ctx.Done():
		return
	case <-time.After(*registerDelay):
	}

	solver := registration.NewSolver(cfg, len(stages))
	markers := make([][]registration.MarkerPair, len(stages))
	for i, st := range stages {
		snap := st.GetObjects()
		pairs := st.Segmenter().Markers(snap.Blobs)
		for _, p := range pairs {
			markers[i] = append(markers[i], registration.MarkerPair{A: p[0], B: p[1]})
		}
	}

	matrices, ok := solver.Solve(markers)
	if !ok {
		log.Printf("registration: could not align every device, leaving identity transforms in place")
		return
	}
	for i, st := range stages {
		if i == 0 {
			continue
		}
		st.SetDeviceMatrix(matrices[i])
		log.Printf("registration: %s aligned", st.ID())
	}
}

// runFusionLoop drives the cross-device tracker and observer bus on a fixed
// 100 ms tick.
func runFusionLoop(ctx context.Context, stages []*device.Stage, tracker *fusion.MultiStageTracker, bus *observer.Bus, pc *config.ProcessConfig) {
	interval := 100 * time.Millisecond
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	lastTick := time.Now()
	prevIDs := map[string]bool{}

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			dt := now.Sub(lastTick)
			lastTick = now

			stageBlobs := make([][]fusion.Blob, len(stages))
			for i, st := range stages {
				stageBlobs[i] = st.GetObjects().Blobs
			}

			objects := tracker.Step(stageBlobs, now, dt)
			prevIDs = bus.ObserveFrame(ctx, prevIDs, objects, now)
		}
	}
}
