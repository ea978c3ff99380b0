package diagnostics

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/coreman2200/bespeckle/internal/events"
)

func TestFromIgnored(t *testing.T) {
	d := FromIgnored(events.PacketIgnored{Cmd: 0x00, UID: 3, Outcome: "pool-full"})
	assert.Equal(t, "POOL.FULL", d.Code)
	assert.Equal(t, Warn, d.Severity)
	assert.NotEmpty(t, d.SuggestedFixes)

	d = FromIgnored(events.PacketIgnored{Cmd: 0x82, UID: 9, Outcome: "unknown-uid"})
	assert.Equal(t, "PACKET.IGNORED", d.Code)
	assert.Equal(t, Info, d.Severity)
	assert.Contains(t, d.Summary, "uid=0x09")
}

func TestFromReset(t *testing.T) {
	d := FromReset(events.EngineReset{Reboot: true, Dropped: 4})
	assert.Equal(t, "ENGINE.RESET", d.Code)
	assert.Equal(t, "engine reboot dropped 4 effects", d.Summary)
}
