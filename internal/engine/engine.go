// Package engine owns the effect pool, the beat clock and the global color
// parameters of one node. Packets go in through Handle; frames come out of
// Compose or Render.
package engine

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/coreman2200/bespeckle/internal/clock"
	"github.com/coreman2200/bespeckle/internal/color"
	"github.com/coreman2200/bespeckle/internal/effect"
	"github.com/coreman2200/bespeckle/internal/events"
	"github.com/coreman2200/bespeckle/internal/packet"
	"github.com/coreman2200/bespeckle/internal/pool"
)

// NumParams is the number of global parameters: red, green, blue and
// overall filter factors, in that order.
const NumParams = 4

// DefaultLength is the strip length used when Options leaves it unset.
const DefaultLength = 50

// DefaultParams leave colors unfiltered.
var DefaultParams = [NumParams]uint8{0xff, 0xff, 0xff, 0xff}

// Options configures New. Zero values pick the defaults.
type Options struct {
	Length   int
	Capacity int
	Params   *[NumParams]uint8
	Bus      *events.Bus
	Log      *zerolog.Logger
}

type slot struct {
	b *effect.Behavior
	s effect.State
}

// Info describes one live effect.
type Info struct {
	UID  uint8  `json:"uid"`
	Kind uint8  `json:"kind"`
	Name string `json:"name"`
}

// Engine is safe for concurrent use; Handle and Compose serialize on one
// mutex so a frame never sees the pool mid-mutation.
type Engine struct {
	mu       sync.Mutex
	length   int
	pool     *pool.Pool[slot]
	clock    clock.Clock
	params   [NumParams]uint8
	defaults [NumParams]uint8
	bus      *events.Bus
	log      zerolog.Logger

	scratch []effect.State
	frames  [2][]color.RGB16
	front   int

	counts [len(outcomeNames)]uint64
}

// New builds an engine with an empty pool at time zero.
func New(opts Options) *Engine {
	if opts.Length <= 0 {
		opts.Length = DefaultLength
	}
	if opts.Capacity <= 0 {
		opts.Capacity = pool.DefaultCapacity
	}
	e := &Engine{
		length:   opts.Length,
		pool:     pool.New[slot](opts.Capacity),
		defaults: DefaultParams,
		bus:      opts.Bus,
		log:      zerolog.Nop(),
		scratch:  make([]effect.State, 0, opts.Capacity),
	}
	if opts.Params != nil {
		e.defaults = *opts.Params
	}
	if opts.Log != nil {
		e.log = *opts.Log
	}
	e.params = e.defaults
	for i := range e.frames {
		e.frames[i] = make([]color.RGB16, e.length)
		for j := range e.frames[i] {
			e.frames[i][j] = color.Empty
		}
	}
	return e
}

// Length returns the number of strip positions composed per frame.
func (e *Engine) Length() int { return e.length }

// Capacity returns the maximum number of live effects.
func (e *Engine) Capacity() int { return e.pool.Cap() }

// Handle applies one packet. It never fails; the outcome says whether
// anything changed.
func (e *Engine) Handle(p packet.Packet) Outcome {
	e.mu.Lock()
	o := e.handle(p)
	e.counts[o]++
	e.mu.Unlock()

	if o != Applied {
		e.log.Trace().Str("op", p.Op()).Uint8("cmd", p.Cmd).Uint8("uid", p.UID).Stringer("outcome", o).Msg("packet ignored")
		e.bus.Publish(events.PacketIgnored{Cmd: p.Cmd, UID: p.UID, Outcome: o.String()})
	}
	return o
}

// HandleBytes parses and applies a raw bus frame.
func (e *Engine) HandleBytes(b []byte) (Outcome, error) {
	p, err := packet.Parse(b)
	if err != nil {
		return IgnoredUnknownOp, err
	}
	return e.Handle(p), nil
}

func (e *Engine) handle(p packet.Packet) Outcome {
	if !p.IsControl() {
		return e.create(p)
	}
	if p.IsMessage() {
		return e.message(p)
	}
	switch p.Cmd {
	case packet.Sync:
		passes := e.clock.Sync(p.UID)
		if len(passes) == 0 {
			return IgnoredStaleSync
		}
		e.deliver(passes)
	case packet.Tick:
		e.deliver(e.clock.Beat())
	case packet.Stop:
		ref, ok := e.pool.Find(p.UID)
		if !ok {
			return IgnoredUnknownUID
		}
		sl, _ := e.pool.Get(ref)
		b := sl.b
		e.pool.ReleaseRef(ref)
		e.removed(p.UID, b, "stop")
	case packet.Reset, packet.Reboot:
		e.reset(p.Cmd == packet.Reboot)
	case packet.Param:
		if int(p.UID) >= NumParams {
			return IgnoredParamRange
		}
		e.params[p.UID] = p.Data[0]
	default:
		return IgnoredUnknownOp
	}
	return Applied
}

func (e *Engine) env() effect.Env {
	return effect.Env{Now: e.clock.Now(), Length: e.length}
}

func (e *Engine) create(p packet.Packet) Outcome {
	b, ok := effect.Lookup(p.Cmd)
	if !ok {
		return IgnoredUnknownKind
	}
	if old, ok := e.pool.Find(p.UID); ok {
		sl, _ := e.pool.Get(old)
		prev := sl.b
		e.pool.ReleaseRef(old)
		e.removed(p.UID, prev, "replaced")
	} else if e.pool.Len() == e.pool.Cap() {
		return DroppedPoolFull
	}
	st := b.Setup(e.env(), p)
	if _, ok := e.pool.Acquire(p.UID, slot{b: b, s: st}); !ok {
		return DroppedPoolFull
	}
	e.log.Debug().Uint8("uid", p.UID).Str("kind", b.Name).Msg("effect created")
	e.bus.Publish(events.EffectCreated{UID: p.UID, Kind: uint8(b.Kind), Name: b.Name})
	return Applied
}

func (e *Engine) message(p packet.Packet) Outcome {
	ref, ok := e.pool.Find(p.UID)
	if !ok {
		return IgnoredUnknownUID
	}
	sl, _ := e.pool.Get(ref)
	if sl.s.Message(e.env(), p) == effect.Stop {
		b := sl.b
		e.pool.ReleaseRef(ref)
		e.removed(p.UID, b, "message")
	}
	return Applied
}

// deliver runs one tick pass per fraction. Effects asking to stop are only
// removed on the fraction 0 pass.
func (e *Engine) deliver(passes []uint8) {
	for _, frac := range passes {
		env := e.env()
		e.pool.Each(func(uid uint8, sl *slot) bool {
			if sl.s.Tick(env, frac) == effect.Stop && frac == 0 {
				e.removed(uid, sl.b, "tick")
				return true
			}
			return false
		})
		if frac == 0 {
			e.bus.Publish(events.Beat{Tick: env.Now.Tick, Active: e.pool.Len()})
		}
	}
}

func (e *Engine) removed(uid uint8, b *effect.Behavior, reason string) {
	e.log.Debug().Uint8("uid", uid).Str("kind", b.Name).Str("reason", reason).Msg("effect removed")
	e.bus.Publish(events.EffectRemoved{UID: uid, Kind: uint8(b.Kind), Name: b.Name, Reason: reason})
}

func (e *Engine) reset(reboot bool) {
	n := e.pool.Len()
	e.pool.Each(func(uid uint8, sl *slot) bool {
		e.removed(uid, sl.b, "reset")
		return true
	})
	e.params = e.defaults
	e.clock.Reset()
	e.log.Info().Bool("reboot", reboot).Int("dropped", n).Msg("engine reset")
	e.bus.Publish(events.EngineReset{Reboot: reboot, Dropped: n})
}

// Reset clears the pool, restores the default parameters and rewinds the
// clock, as a Reset packet would.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.reset(false)
}

// Now returns the engine's beat clock.
func (e *Engine) Now() clock.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.clock.Now()
}

// Active returns the number of live effects.
func (e *Engine) Active() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pool.Len()
}

// Params returns the global filter parameters.
func (e *Engine) Params() [NumParams]uint8 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.params
}

// Effects lists the live effects, bottom of the stack first.
func (e *Engine) Effects() []Info {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Info, 0, e.pool.Len())
	e.pool.Each(func(uid uint8, sl *slot) bool {
		out = append(out, Info{UID: uid, Kind: uint8(sl.b.Kind), Name: sl.b.Name})
		return false
	})
	return out
}

// Counts returns how many packets ended in each outcome.
func (e *Engine) Counts() map[Outcome]uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[Outcome]uint64, len(e.counts))
	for i, n := range e.counts {
		out[Outcome(i)] = n
	}
	return out
}

// Compose folds every live effect into dst, one packed color per position,
// oldest effect at the bottom. Positions past Length, or past len(dst), are
// left alone.
func (e *Engine) Compose(dst []color.RGB16) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.compose(dst)
}

func (e *Engine) compose(dst []color.RGB16) {
	states := e.scratch[:0]
	e.pool.Each(func(_ uint8, sl *slot) bool {
		states = append(states, sl.s)
		return false
	})
	n := min(len(dst), e.length)
	rf, gf, bf, kf := e.params[0], e.params[1], e.params[2], e.params[3]
	for pos := 0; pos < n; pos++ {
		acc := color.Empty
		for _, s := range states {
			acc = color.MixRGB(s.Pixel(pos), acc)
		}
		dst[pos] = color.Filter(acc, rf, gf, bf, kf)
	}
	clear(states)
}

// Render composes into the back buffer, swaps it to the front and returns
// it. The returned slice stays untouched until the next Render.
func (e *Engine) Render() []color.RGB16 {
	e.mu.Lock()
	defer e.mu.Unlock()
	back := 1 - e.front
	e.compose(e.frames[back])
	e.front = back
	return e.frames[e.front]
}

// Frame returns the last rendered frame.
func (e *Engine) Frame() []color.RGB16 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.frames[e.front]
}
