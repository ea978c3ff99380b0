package packet

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// wire is the JSON shape used by the control socket and sim scripts.
// Data is hex so it reads the same as a bus trace.
type wire struct {
	Cmd  uint8  `json:"cmd" yaml:"cmd"`
	UID  uint8  `json:"uid" yaml:"uid"`
	Data string `json:"data,omitempty" yaml:"data,omitempty"`
}

func (p Packet) toWire() wire {
	return wire{Cmd: p.Cmd, UID: p.UID, Data: hex.EncodeToString(p.Data[:])}
}

func (p *Packet) fromWire(w wire) error {
	data, err := hex.DecodeString(w.Data)
	if err != nil {
		return fmt.Errorf("packet data: %w", err)
	}
	if len(data) > DataSize {
		return fmt.Errorf("packet data: %d bytes, max %d", len(data), DataSize)
	}
	*p = New(w.Cmd, w.UID, data...)
	return nil
}

func (p Packet) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.toWire())
}

func (p *Packet) UnmarshalJSON(b []byte) error {
	var w wire
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	return p.fromWire(w)
}

func (p Packet) MarshalYAML() (interface{}, error) {
	return p.toWire(), nil
}

func (p *Packet) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var w wire
	if err := unmarshal(&w); err != nil {
		return err
	}
	return p.fromWire(w)
}
