package app

import (
	"context"
	"time"

	"github.com/coreman2200/bespeckle/internal/engine"
	"github.com/coreman2200/bespeckle/internal/packet"
	"github.com/coreman2200/bespeckle/internal/sequence"
)

// Conductor drives the cue player in real time and feeds its packets to the
// engine.
type Conductor struct {
	Seq *sequence.SafePlayer
}

func NewConductor(handle func(packet.Packet) engine.Outcome) *Conductor {
	return &Conductor{Seq: sequence.NewSafePlayer(func(p packet.Packet) { handle(p) })}
}

// Play loads prog and starts it from the top.
func (c *Conductor) Play(prog sequence.Program) error {
	var err error
	c.Seq.With(func(p *sequence.Player) {
		p.Stop()
		if err = p.Load(prog); err == nil {
			p.Start()
		}
	})
	return err
}

// Step advances the timeline by dt.
func (c *Conductor) Step(dt time.Duration) {
	c.Seq.With(func(p *sequence.Player) { p.Tick(dt.Seconds()) })
}

// Run steps the timeline at fps until ctx is done.
func (c *Conductor) Run(ctx context.Context, fps int) error {
	if fps <= 0 {
		fps = 60
	}
	dt := time.Second / time.Duration(fps)
	ticker := time.NewTicker(dt)
	defer ticker.Stop()
	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			c.Step(now.Sub(last))
			last = now
		}
	}
}
