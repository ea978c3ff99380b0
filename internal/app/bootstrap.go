// Package app wires a node together: engine, frame loop, strip driver,
// inputs and the host-facing surface.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/coreman2200/bespeckle/internal/color"
	"github.com/coreman2200/bespeckle/internal/config"
	"github.com/coreman2200/bespeckle/internal/engine"
	"github.com/coreman2200/bespeckle/internal/events"
	"github.com/coreman2200/bespeckle/internal/led"
	"github.com/coreman2200/bespeckle/internal/metrics"
	"github.com/coreman2200/bespeckle/internal/packet"
	"github.com/coreman2200/bespeckle/internal/render"
	"github.com/coreman2200/bespeckle/internal/sequence"
	"github.com/coreman2200/bespeckle/internal/transport"
	"github.com/coreman2200/bespeckle/internal/ws"
)

type Options struct {
	ConfigPath string
	// Driver overrides cfg.Driver when set, e.g. a preopened test driver.
	Driver led.Driver
	Trace  led.TraceMode
	Out    io.Writer
}

// Node is one running light node.
type Node struct {
	Cfg     *config.Config
	Bus     *events.Bus
	Eng     *engine.Engine
	Loop    *render.Loop
	Driver  led.Driver
	Metrics *metrics.Metrics
	State   *ws.State
	Metro   *sequence.Metronome
	Cues    *Conductor

	driverName string
	mu         sync.Mutex
	applied    config.Config
	unsubs     []func()
}

// New builds a node from cfg. A hardware driver that fails to open falls
// back to the sim driver so the node stays reachable.
func New(cfg *config.Config, opts Options) (*Node, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	n := &Node{Cfg: cfg, Bus: events.New(), Metrics: metrics.New(), applied: *cfg}

	params := cfg.EngineParams()
	logger := log.With().Str("component", "engine").Logger()
	n.Eng = engine.New(engine.Options{
		Length:   cfg.Strip.Count(),
		Capacity: cfg.Capacity,
		Params:   &params,
		Bus:      n.Bus,
		Log:      &logger,
	})

	n.Driver, n.driverName = opts.Driver, "custom"
	if n.Driver == nil {
		n.driverName = cfg.Driver
		drv, err := led.Open(led.Options{
			Name:       cfg.Driver,
			Strip:      cfg.Strip,
			Dev:        cfg.SPI.Dev,
			SpeedHz:    cfg.SPI.SpeedHz,
			ColorOrder: cfg.SPI.ColorOrder,
			Trace:      opts.Trace,
			Out:        opts.Out,
		})
		if err != nil {
			log.Warn().Err(err).Str("driver", cfg.Driver).Msg("driver init failed; falling back to SIM")
			drv, n.driverName = led.NewSim(cfg.Strip), led.NameSim
		}
		n.Driver = drv
	}

	loop, err := render.NewLoop(n.Eng, n.Driver, cfg.Strip.Count(), cfg.FPS)
	if err != nil {
		return nil, err
	}
	n.Loop = loop
	n.Loop.SetLimits(cfg.Power)

	n.State = ws.NewState(ws.Options{
		Engine:     n.Eng,
		Loop:       n.Loop,
		Handle:     n.Handle,
		Driver:     n.driverName,
		Config:     cfg,
		ConfigPath: opts.ConfigPath,
	})
	n.Loop.OnFrame(n.State.BroadcastFrame)
	n.Loop.OnFrame(func(uint64, []color.RGB16) { n.Metrics.Frame(n.Loop.Last()) })
	n.Metrics.Active(n.Eng)
	n.unsubs = append(n.unsubs, n.Metrics.Subscribe(n.Bus), n.State.Subscribe(n.Bus))

	n.Metro = sequence.NewMetronome(cfg.Tempo.BPM, cfg.Tempo.Subdivisions, func(p packet.Packet) { n.Handle(p) })
	n.Cues = NewConductor(n.Handle)
	if cfg.Cues != "" {
		prog, err := sequence.LoadProgram(cfg.Cues)
		if err != nil {
			return nil, err
		}
		if err := n.Cues.Play(prog); err != nil {
			return nil, err
		}
	}
	return n, nil
}

// DriverName reports the driver actually in use.
func (n *Node) DriverName() string { return n.driverName }

// Handle applies one packet and counts it. Every input goes through here.
func (n *Node) Handle(p packet.Packet) engine.Outcome {
	o := n.Eng.Handle(p)
	n.Metrics.Packet(p, o)
	return o
}

// Mux returns the HTTP surface: websockets, /health and /metrics.
func (n *Node) Mux() *http.ServeMux {
	mux := http.NewServeMux()
	n.State.Routes(mux)
	mux.Handle("/metrics", n.Metrics.Handler())
	return mux
}

// Apply takes a reloaded config. Strip, driver and listeners need a
// restart; everything else changes live.
func (n *Node) Apply(cfg *config.Config) {
	n.mu.Lock()
	defer n.mu.Unlock()
	last := &n.applied
	if cfg.Strip != last.Strip || cfg.Driver != last.Driver || cfg.Listen != last.Listen {
		log.Warn().Msg("strip, driver and listen changes need a restart")
	}
	if cfg.Tempo.Enabled != last.Tempo.Enabled {
		log.Warn().Bool("enabled", cfg.Tempo.Enabled).Msg("tempo enable change needs a restart")
	}
	n.Loop.SetFPS(cfg.FPS)
	n.Loop.SetLimits(cfg.Power)
	if p := cfg.EngineParams(); p != last.EngineParams() {
		for i, v := range p {
			n.Handle(packet.New(packet.Param, uint8(i), v))
		}
	}
	n.Metro.SetTempo(cfg.Tempo.BPM, cfg.Tempo.Subdivisions)
	n.applied = *cfg
	log.Info().Int("fps", cfg.FPS).Float64("bpm", cfg.Tempo.BPM).Msg("config applied")
}

// Run drives the frame loop and every enabled input until ctx is done.
func (n *Node) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	errs := make(chan error, 4)
	start := func(name string, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(ctx); err != nil && !errors.Is(err, context.Canceled) {
				errs <- fmt.Errorf("%s: %w", name, err)
				cancel()
			}
		}()
	}

	start("render", n.Loop.Run)
	start("cues", func(ctx context.Context) error { return n.Cues.Run(ctx, n.Cfg.FPS) })
	if n.Cfg.Tempo.Enabled {
		start("metronome", n.Metro.Run)
	}
	if n.Cfg.Listen.UDP != "" {
		udp, err := transport.ListenUDP(n.Cfg.Listen.UDP, func(p packet.Packet) { n.Handle(p) })
		if err != nil {
			cancel()
			wg.Wait()
			return fmt.Errorf("udp: %w", err)
		}
		log.Info().Str("addr", udp.Addr().String()).Msg("UDP listener starting")
		start("udp", udp.Serve)
	}

	<-ctx.Done()
	wg.Wait()
	close(errs)
	return <-errs
}

// Close detaches subscribers and releases the driver.
func (n *Node) Close() error {
	n.State.Close()
	for _, u := range n.unsubs {
		u()
	}
	return errors.Join(n.Driver.Close(), n.Bus.Close())
}
