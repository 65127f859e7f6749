// Command motion tracks the distance a robot travels and the path it follows
// to each navigation goal, writing JSON records and serving a small
// inspection API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/banshee-data/motion.report/internal/api"
	"github.com/banshee-data/motion.report/internal/config"
	"github.com/banshee-data/motion.report/internal/dispatch"
	"github.com/banshee-data/motion.report/internal/fsutil"
	"github.com/banshee-data/motion.report/internal/monitoring"
	"github.com/banshee-data/motion.report/internal/records"
	"github.com/banshee-data/motion.report/internal/serialmux"
	"github.com/banshee-data/motion.report/internal/timeutil"
	"github.com/banshee-data/motion.report/internal/tracker"
	"github.com/banshee-data/motion.report/internal/units"
	"github.com/banshee-data/motion.report/internal/version"
)

var (
	configPath  = flag.String("config", "", "Path to a JSON run config")
	devMode     = flag.Bool("dev", false, "Replay a fixtures file instead of reading a serial port")
	fixtures    = flag.String("fixtures", "fixtures.jsonl", "Fixtures file replayed in dev mode")
	replayLoop  = flag.Bool("loop", false, "Restart the fixtures replay after the last line")
	port        = flag.String("port", "", "Serial port carrying pose and goal status lines (empty serves records only)")
	baudRate    = flag.Int("baud", 0, "Serial baud rate (0 uses the config or default)")
	listen      = flag.String("listen", config.DefaultListen, "HTTP listen address")
	outputDir   = flag.String("output", config.DefaultOutputDir, "Directory for distance and goal records")
	unitsFlag   = flag.String("units", units.Metres, "Distance units reported by the API ("+units.GetValidUnitsString()+")")
	stamp       = flag.String("stamp", "", "Serve records of an earlier run with this stamp")
	traceLog    = flag.Bool("trace", false, "Log every accepted pose and path sample")
	quiet       = flag.Bool("quiet", false, "Suppress goal transition logging")
	listPorts   = flag.Bool("list-ports", false, "List serial ports and exit")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

// resolveConfig loads the config file, if any, and applies explicitly set
// flags on top of it.
func resolveConfig(path string, set map[string]bool) (*config.RunConfig, error) {
	cfg := config.DefaultRunConfig()
	if path != "" {
		loaded, err := config.LoadRunConfig(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if set["port"] {
		cfg.PortPath = *port
	}
	if set["baud"] {
		cfg.Serial.BaudRate = *baudRate
	}
	if set["listen"] || path == "" {
		cfg.Listen = *listen
	}
	if set["output"] || path == "" {
		cfg.OutputDir = *outputDir
	}
	if set["units"] {
		cfg.Units = *unitsFlag
	}
	if set["fixtures"] || cfg.Fixtures == "" {
		cfg.Fixtures = *fixtures
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setFlags() map[string]bool {
	set := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
	return set
}

// openSource picks the line source: fixtures replay, a real port, or none.
func openSource(cfg *config.RunConfig, dev, loop bool) (serialmux.SerialMuxInterface, error) {
	switch {
	case dev:
		lines, err := serialmux.ReadFixtures(cfg.Fixtures)
		if err != nil {
			return nil, err
		}
		if len(lines) == 0 {
			return nil, fmt.Errorf("fixtures file %s has no lines", cfg.Fixtures)
		}
		log.Printf("dev mode: replaying %d lines from %s every %v", len(lines), cfg.Fixtures, cfg.GetReplayInterval())
		return serialmux.NewReplaySerialMux(lines, cfg.GetReplayInterval(), loop), nil
	case cfg.PortPath != "":
		m, err := serialmux.NewRealSerialMux(cfg.PortPath, cfg.Serial)
		if err != nil {
			return nil, err
		}
		log.Printf("reading pose and goal status from %s", cfg.PortPath)
		return m, nil
	default:
		log.Printf("no serial port configured; serving existing records only")
		return serialmux.NewDisabledSerialMux(), nil
	}
}

func logWriters(quiet, trace bool) (ops, diag, tr io.Writer) {
	ops = os.Stdout
	if !quiet {
		diag = os.Stdout
	}
	if trace {
		tr = os.Stdout
	}
	return ops, diag, tr
}

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.Get())
		return
	}
	if *listPorts {
		ports, err := serialmux.ListPorts()
		if err != nil {
			log.Fatalf("failed to list serial ports: %v", err)
		}
		for _, p := range ports {
			fmt.Println(p)
		}
		return
	}

	cfg, err := resolveConfig(*configPath, setFlags())
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	log.Printf("motion %s", version.Get())

	tracker.SetLogWriters(logWriters(*quiet, *traceLog))
	monitoring.SetLogWriter("[motion] ", os.Stdout)

	clock := timeutil.RealClock{}
	emitter, err := records.NewFileEmitter(fsutil.OSFileSystem{}, cfg.OutputDir, clock.Now())
	if err != nil {
		log.Fatalf("failed to prepare output: %v", err)
	}
	storeStamp := emitter.Stamp()
	if *stamp != "" {
		storeStamp = *stamp
	}
	store := records.NewStore(fsutil.OSFileSystem{}, cfg.OutputDir, storeStamp)
	log.Printf("writing records to %s with stamp %s", cfg.OutputDir, emitter.Stamp())

	source, err := openSource(cfg, *devMode, *replayLoop)
	if err != nil {
		log.Fatalf("failed to open pose source: %v", err)
	}
	defer source.Close()

	loop := dispatch.New(tracker.New(tracker.DefaultConfig(), emitter), source, clock)
	// Subscribe before Monitor publishes its first line.
	loop.Start()

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Serial monitor. A replay that reaches EOF stops here without ending
	// the process so the API stays up.
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := source.Monitor(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("failed to monitor serial port: %v", err)
		}
		log.Print("monitor routine terminated")
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := loop.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("dispatch loop failed: %v", err)
		}
		log.Print("dispatch routine terminated")
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()

		mux := api.NewServer(loop, store, emitter, source, cfg.Units).ServeMux()
		server := &http.Server{
			Addr:              cfg.Listen,
			Handler:           api.LoggingMiddleware(mux),
			ReadHeaderTimeout: 5 * time.Second,
		}

		go func() {
			log.Printf("serving inspection API on %s", cfg.Listen)
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()

		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
			if err := server.Close(); err != nil {
				log.Printf("HTTP server force close error: %v", err)
			}
		}
		log.Printf("HTTP server routine stopped")
	}()

	wg.Wait()

	st := loop.Snapshot()
	log.Printf("run %s: %.3f m travelled, %d goals, %d lines (%d rejected)",
		st.RunID, st.State.Distance, st.State.GoalIndex, st.Counters.Lines, st.Counters.Rejected)
	log.Printf("Graceful shutdown complete")
}
