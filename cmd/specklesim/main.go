// specklesim runs the effect engine headless and prints every frame as hex
// colors or HTML, either from a cue program or from the built-in demo.
package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/coreman2200/bespeckle/internal/clock"
	"github.com/coreman2200/bespeckle/internal/effect"
	"github.com/coreman2200/bespeckle/internal/engine"
	"github.com/coreman2200/bespeckle/internal/layout"
	"github.com/coreman2200/bespeckle/internal/led"
	"github.com/coreman2200/bespeckle/internal/packet"
	"github.com/coreman2200/bespeckle/internal/render"
	"github.com/coreman2200/bespeckle/internal/sequence"
)

type options struct {
	program      string
	frames       int
	fps          int
	bpm          float64
	subdivisions int
	length       int
	format       string
}

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	var o options
	cmd := &cobra.Command{
		Use:   "specklesim",
		Short: "Simulate a strip and print its frames",
		Long: `Without --program, plays the demo: a rainbow synced forty times a beat, a strobe ` +
			`added on frame 10 and stopped on frame 250.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return simulate(cmd.OutOrStdout(), o)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&o.program, "program", "p", "", "cue program (.yaml or .json)")
	f.IntVarP(&o.frames, "frames", "n", 256, "frames to render")
	f.IntVar(&o.fps, "fps", 60, "simulated frames per second (program mode)")
	f.Float64Var(&o.bpm, "bpm", 120, "metronome tempo (program mode)")
	f.IntVar(&o.subdivisions, "subdivisions", 40, "sync packets per beat")
	f.IntVarP(&o.length, "length", "l", 50, "LEDs on the strip")
	f.StringVarP(&o.format, "format", "f", "html", "output: html | hex")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// source advances the simulation by one frame, handing packets to handle.
type source func(frame int, handle func(packet.Packet))

func simulate(out io.Writer, o options) error {
	mode := led.TraceHTML
	switch strings.ToLower(o.format) {
	case "html":
	case "hex":
		mode = led.TraceHex
	default:
		return fmt.Errorf("unknown format %q", o.format)
	}
	if o.length <= 0 || o.frames < 0 {
		return fmt.Errorf("invalid length %d or frame count %d", o.length, o.frames)
	}

	eng := engine.New(engine.Options{Length: o.length})
	sim := led.NewSim(layout.Strip{Length: o.length}).Trace(out, mode)
	loop, err := render.NewLoop(eng, sim, o.length, o.fps)
	if err != nil {
		return err
	}
	handle := func(p packet.Packet) {
		if res := eng.Handle(p); res != engine.Applied {
			log.Debug().Stringer("packet", p).Stringer("outcome", res).Msg("packet ignored")
		}
	}

	next := demo(o.subdivisions)
	if o.program != "" {
		if next, err = program(o); err != nil {
			return err
		}
	}

	if mode == led.TraceHTML {
		if _, err := io.WriteString(out, led.HTMLHeader+"\n"); err != nil {
			return err
		}
	}
	for i := 0; i < o.frames; i++ {
		next(i, handle)
		if err := loop.RenderOnce(); err != nil {
			return err
		}
	}
	return nil
}

func demo(subdivisions int) source {
	subs := max(1, min(subdivisions, clock.TickLength))
	rainbow := packet.New(uint8(effect.KindRainbow), 'a', 0x80, 20)
	strobe := packet.New(uint8(effect.KindStrobe), 'b', 0, 0, 0xff, 0xff, 1, 120)
	return func(i int, handle func(packet.Packet)) {
		if i == 0 {
			handle(rainbow)
		}
		handle(packet.New(packet.Sync, uint8((i%subs)*(clock.TickLength/subs))))
		switch i {
		case 10:
			handle(strobe)
		case 250:
			handle(packet.New(packet.Msg, 'b'))
		}
	}
}

func program(o options) (source, error) {
	prog, err := sequence.LoadProgram(o.program)
	if err != nil {
		return nil, err
	}
	fps := max(1, o.fps)
	dt := time.Second / time.Duration(fps)
	var emit func(packet.Packet)
	player := sequence.NewPlayer(func(p packet.Packet) { emit(p) })
	metro := sequence.NewMetronome(o.bpm, o.subdivisions, func(p packet.Packet) { emit(p) })
	if err := player.Load(prog); err != nil {
		return nil, err
	}
	return func(i int, handle func(packet.Packet)) {
		emit = handle
		if i == 0 {
			player.Start()
			return
		}
		metro.Advance(dt)
		player.Tick(dt.Seconds())
	}, nil
}
