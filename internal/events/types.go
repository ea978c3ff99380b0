package events

// Event type constants for kelindar/event.
const (
	TypeEffectCreated uint32 = iota + 1
	TypeEffectRemoved
	TypePacketIgnored
	TypeEngineReset
	TypeBeat
)

// Event is the interface kelindar/event requires.
type Event interface {
	Type() uint32
}

// EffectCreated is published when a creation packet installs an effect.
type EffectCreated struct {
	UID  uint8  `json:"uid"`
	Kind uint8  `json:"kind"`
	Name string `json:"name"`
}

func (e EffectCreated) Type() uint32 { return TypeEffectCreated }

// EffectRemoved is published when an effect leaves the pool. Reason is one
// of "stop", "tick", "message", "replaced" or "reset".
type EffectRemoved struct {
	UID    uint8  `json:"uid"`
	Kind   uint8  `json:"kind"`
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

func (e EffectRemoved) Type() uint32 { return TypeEffectRemoved }

// PacketIgnored is published for every packet that changed nothing.
type PacketIgnored struct {
	Cmd     uint8  `json:"cmd"`
	UID     uint8  `json:"uid"`
	Outcome string `json:"outcome"`
}

func (e PacketIgnored) Type() uint32 { return TypePacketIgnored }

// EngineReset is published after a Reset or Reboot cleared the engine.
type EngineReset struct {
	Reboot  bool `json:"reboot"`
	Dropped int  `json:"dropped"`
}

func (e EngineReset) Type() uint32 { return TypeEngineReset }

// Beat is published at every beat boundary.
type Beat struct {
	Tick   uint32 `json:"tick"`
	Active int    `json:"active"`
}

func (e Beat) Type() uint32 { return TypeBeat }
