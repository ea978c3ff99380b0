// Package sequence drives an engine without a bus master: a metronome that
// generates beat packets and a player for timed cue programs.
package sequence

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"sync"

	"github.com/coreman2200/bespeckle/internal/packet"
)

var paramIndex = map[string]int{"r": 0, "g": 1, "b": 2, "k": 3}

// ParamIndex resolves a cue parameter name.
func ParamIndex(name string) (int, bool) {
	if i, ok := paramIndex[name]; ok {
		return i, true
	}
	i, err := strconv.Atoi(name)
	if err != nil || i < 0 || i > 3 {
		return 0, false
	}
	return i, true
}

// Validate checks a program before playback.
func (prog Program) Validate() error {
	if len(prog.Cues) == 0 {
		return errors.New("program has no cues")
	}
	for i, c := range prog.Cues {
		if c.DurationS <= 0 {
			return fmt.Errorf("cue %d (%s): duration must be positive", i, c.Name)
		}
		for name, env := range c.Params {
			if _, ok := ParamIndex(name); !ok {
				return fmt.Errorf("cue %d (%s): unknown param %q", i, c.Name, name)
			}
			if !sort.SliceIsSorted(env.Keys, func(a, b int) bool { return env.Keys[a].T < env.Keys[b].T }) {
				return fmt.Errorf("cue %d (%s): param %q keys out of order", i, c.Name, name)
			}
		}
	}
	return nil
}

// NewPlayer constructs a Player that sends packets through emit.
func NewPlayer(emit Emit) *Player {
	p := &Player{State: Idle, emit: emit}
	p.forget()
	return p
}

func (p *Player) forget() {
	for i := range p.sent {
		p.sent[i] = -1
	}
}

// Load replaces the current program. Resets time and state to Idle.
func (p *Player) Load(prog Program) error {
	if err := prog.Validate(); err != nil {
		return err
	}
	p.prog = prog
	p.nowS = 0
	p.idx = 0
	p.State = Idle
	p.forget()
	return nil
}

// Program returns the loaded program.
func (p *Player) Program() Program { return p.prog }

// Position returns the program time and current cue index.
func (p *Player) Position() (float64, int) { return p.nowS, p.idx }

// Start moves to Running and fires the current cue.
func (p *Player) Start() {
	if p.State == Running || len(p.prog.Cues) == 0 {
		return
	}
	if p.State == Idle {
		p.enter(p.idx)
	}
	p.State = Running
}

// Pause pauses playback.
func (p *Player) Pause() {
	if p.State == Running {
		p.State = Paused
	}
}

// Resume resumes playback.
func (p *Player) Resume() {
	if p.State == Paused {
		p.State = Running
	}
}

// Stop releases the current cue and rewinds.
func (p *Player) Stop() {
	if p.State != Idle && len(p.prog.Cues) > 0 {
		p.leave(p.idx)
	}
	p.State = Idle
	p.nowS = 0
	p.idx = 0
	p.forget()
}

// Seek jumps to absolute program time t. Clamps into [0, totalDur).
func (p *Player) Seek(t float64) {
	if len(p.prog.Cues) == 0 {
		return
	}
	if t < 0 {
		t = 0
	}
	if total := p.totalDuration(); t >= total {
		t = math.Nextafter(total, -1)
	}
	acc := 0.0
	idx := 0
	for i, c := range p.prog.Cues {
		if t < acc+c.DurationS {
			idx = i
			break
		}
		acc += c.DurationS
	}
	if p.State != Idle {
		p.leave(p.idx)
	}
	p.idx = idx
	p.nowS = t
	if p.State != Idle {
		p.enter(idx)
	}
}

// Tick advances the player by dt seconds.
func (p *Player) Tick(dt float64) {
	if p.State != Running || dt <= 0 {
		return
	}
	p.nowS += dt
	for p.State == Running {
		cue, localT := p.current()
		p.automate(cue, min(localT, cue.DurationS))
		if localT < cue.DurationS {
			return
		}
		p.advance()
	}
}

func (p *Player) automate(cue Cue, t float64) {
	for name, env := range cue.Params {
		i, _ := ParamIndex(name)
		v := env.At(t)
		if p.sent[i] == int(v) {
			continue
		}
		p.sent[i] = int(v)
		p.emit(packet.New(packet.Param, uint8(i), v))
	}
}

func (p *Player) enter(idx int) {
	for _, pk := range p.prog.Cues[idx].Packets {
		p.emit(pk)
	}
}

func (p *Player) leave(idx int) {
	cue := p.prog.Cues[idx]
	if !cue.Release {
		return
	}
	for _, pk := range cue.Packets {
		if !pk.IsControl() {
			p.emit(packet.New(packet.Stop, pk.UID))
		}
	}
}

func (p *Player) current() (Cue, float64) {
	acc := 0.0
	for i := 0; i < p.idx; i++ {
		acc += p.prog.Cues[i].DurationS
	}
	return p.prog.Cues[p.idx], p.nowS - acc
}

func (p *Player) totalDuration() float64 {
	total := 0.0
	for _, c := range p.prog.Cues {
		total += c.DurationS
	}
	return total
}

func (p *Player) nextIndex() int {
	ni := p.idx + 1
	if ni >= len(p.prog.Cues) {
		if p.prog.Loop {
			return 0
		}
		return -1
	}
	return ni
}

func (p *Player) advance() {
	p.leave(p.idx)
	next := p.nextIndex()
	if next == -1 {
		p.State = Idle
		p.nowS = 0
		p.idx = 0
		return
	}
	if next == 0 {
		p.nowS -= p.totalDuration()
	}
	p.idx = next
	p.enter(next)
}

// SafePlayer serializes access to a Player shared between goroutines.
type SafePlayer struct {
	mu sync.Mutex
	P  *Player
}

func NewSafePlayer(emit Emit) *SafePlayer {
	return &SafePlayer{P: NewPlayer(emit)}
}

func (s *SafePlayer) With(f func(p *Player)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f(s.P)
}
