package sequence

import "github.com/coreman2200/bespeckle/internal/packet"

// Keyframe represents a value at time T (seconds) with an easing function
// that applies to the segment starting at this keyframe.
type Keyframe struct {
	T    float64 `json:"t" yaml:"t"`
	V    float64 `json:"v" yaml:"v"`
	Ease string  `json:"ease,omitempty" yaml:"ease,omitempty"` // "linear","smooth","cubic"
}

// Envelope is a list of keyframes sorted by T; At(t) interpolates it.
type Envelope struct {
	Keys []Keyframe `json:"keys" yaml:"keys"`
}

// Cue is one segment of a show: the packets sent when it starts, how long it
// lasts, and the global parameters automated while it runs.
type Cue struct {
	Name      string          `json:"name" yaml:"name"`
	DurationS float64         `json:"durationS" yaml:"duration_s"`
	Packets   []packet.Packet `json:"packets" yaml:"packets"`
	// Params maps a parameter ("r", "g", "b", "k" or "0".."3") to an
	// envelope over 0..255 in cue-local time.
	Params map[string]Envelope `json:"params,omitempty" yaml:"params,omitempty"`
	// Release stops every effect the cue created when it ends.
	Release bool `json:"release,omitempty" yaml:"release,omitempty"`
}

// Program is a full show.
type Program struct {
	Version string `json:"version" yaml:"version"` // e.g., "cues.v1"
	Loop    bool   `json:"loop,omitempty" yaml:"loop,omitempty"`
	Cues    []Cue  `json:"cues" yaml:"cues"`
}

// PlayerState enumerates sequencer states.
type PlayerState string

const (
	Idle    PlayerState = "idle"
	Running PlayerState = "running"
	Paused  PlayerState = "paused"
)

// Emit hands a packet to the engine.
type Emit func(packet.Packet)

// Player owns the current Program timeline and emits its packets.
type Player struct {
	State PlayerState

	prog Program
	nowS float64 // position within program
	idx  int     // current cue index

	// last parameter value sent, -1 when unknown
	sent [4]int

	emit Emit
}
