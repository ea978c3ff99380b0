// Package diagnostics describes operator-facing findings pushed to the diag
// websocket.
package diagnostics

import (
	"fmt"

	"github.com/coreman2200/bespeckle/internal/events"
)

type Severity string

const (
	Info Severity = "info"
	Warn Severity = "warning"
	Err  Severity = "error"
)

type Diagnostic struct {
	Severity       Severity       `json:"severity"`
	Code           string         `json:"code"`
	Summary        string         `json:"summary"`
	Detail         string         `json:"detail,omitempty"`
	LikelyCauses   []string       `json:"likely_causes,omitempty"`
	SuggestedFixes []string       `json:"suggested_fixes,omitempty"`
	Evidence       map[string]any `json:"evidence,omitempty"`
}

// FromIgnored explains a packet the engine did not apply.
func FromIgnored(e events.PacketIgnored) Diagnostic {
	d := Diagnostic{
		Severity: Warn,
		Code:     "PACKET.IGNORED",
		Summary:  fmt.Sprintf("packet cmd=0x%02x uid=0x%02x ignored: %s", e.Cmd, e.UID, e.Outcome),
		Evidence: map[string]any{"cmd": e.Cmd, "uid": e.UID, "outcome": e.Outcome},
	}
	switch e.Outcome {
	case "pool-full":
		d.Code = "POOL.FULL"
		d.LikelyCauses = []string{"effects are created faster than they end", "a show never stops its effects"}
		d.SuggestedFixes = []string{"stop effects explicitly or use deadline kinds", "send a reset"}
	case "unknown-kind":
		d.LikelyCauses = []string{"master and node disagree on the effect catalog"}
	case "unknown-uid":
		d.Severity = Info
		d.LikelyCauses = []string{"the effect already ended on its own", "the creation packet was lost"}
	case "stale-sync":
		d.Severity = Info
		d.LikelyCauses = []string{"a sync packet was repeated"}
	}
	return d
}

// FromReset reports an engine reset.
func FromReset(e events.EngineReset) Diagnostic {
	cmd := "reset"
	if e.Reboot {
		cmd = "reboot"
	}
	return Diagnostic{
		Severity: Info,
		Code:     "ENGINE.RESET",
		Summary:  fmt.Sprintf("engine %s dropped %d effects", cmd, e.Dropped),
		Evidence: map[string]any{"reboot": e.Reboot, "dropped": e.Dropped},
	}
}
