package app

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coreman2200/bespeckle/internal/color"
	"github.com/coreman2200/bespeckle/internal/config"
	"github.com/coreman2200/bespeckle/internal/engine"
	"github.com/coreman2200/bespeckle/internal/layout"
	"github.com/coreman2200/bespeckle/internal/led"
	"github.com/coreman2200/bespeckle/internal/packet"
)

func testConfig() *config.Config {
	c := config.Default()
	c.Strip = layout.Strip{Length: 8}
	c.Listen = config.Listen{}
	c.FPS = 200
	return c
}

func TestNodeHandlesAndRenders(t *testing.T) {
	sim := led.NewSim(layout.Strip{Length: 8})
	n, err := New(testConfig(), Options{Driver: sim})
	require.NoError(t, err)
	defer n.Close()

	assert.Equal(t, engine.Applied, n.Handle(packet.New(0x00, 1, 0, 0xff, 0xff, 0xff)))
	assert.Equal(t, engine.IgnoredUnknownUID, n.Handle(packet.New(packet.Stop, 2)))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- n.Run(ctx) }()
	require.Eventually(t, func() bool { return sim.Count() > 2 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	red := color.Pack(color.RGBA{R: 0xff, A: 0xff})
	for i, c := range sim.Last() {
		assert.Equal(t, red, c, "pos %d", i)
	}
}

func TestNodeRendersOneFrame(t *testing.T) {
	sim := led.NewSim(layout.Strip{Length: 8})
	n, err := New(testConfig(), Options{Driver: sim})
	require.NoError(t, err)
	defer n.Close()

	done := make(chan error, 1)
	go func() { done <- n.Loop.RenderOnce() }()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("first frame never finished")
	}
	assert.Equal(t, uint64(1), sim.Count())
	assert.Equal(t, uint64(1), n.Loop.Last().FrameID)
}

func TestNodeFallsBackToSim(t *testing.T) {
	cfg := testConfig()
	cfg.Driver = "spi"
	cfg.SPI.Dev = "/dev/does-not-exist"
	n, err := New(cfg, Options{})
	require.NoError(t, err)
	defer n.Close()
	assert.Equal(t, led.NameSim, n.DriverName())
}

func TestNodeMux(t *testing.T) {
	n, err := New(testConfig(), Options{Driver: led.NewSim(layout.Strip{Length: 8})})
	require.NoError(t, err)
	defer n.Close()
	n.Handle(packet.New(0x03, 1, 0, 8))

	srv := httptest.NewServer(n.Mux())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	body := string(raw)
	assert.Contains(t, body, `bespeckle_engine_packets_total{op="create",outcome="applied"} 1`)
	assert.Contains(t, body, "bespeckle_engine_active_effects 1")

	resp2, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	resp2.Body.Close()
	assert.Equal(t, http.StatusOK, resp2.StatusCode)
}

func TestNodeApply(t *testing.T) {
	cfg := testConfig()
	n, err := New(cfg, Options{Driver: led.NewSim(layout.Strip{Length: 8})})
	require.NoError(t, err)
	defer n.Close()

	next := testConfig()
	next.FPS = 24
	next.Params = []int{255, 128, 255, 255}
	next.Tempo.BPM = 90
	n.Apply(next)

	assert.Equal(t, 24, n.Loop.FPS())
	assert.Equal(t, [4]uint8{255, 128, 255, 255}, n.Eng.Params())
}

func TestNodePlaysCues(t *testing.T) {
	show := `version: cues.v1
cues:
  - name: blue
    duration_s: 10
    packets:
      - {cmd: 0, uid: 4, data: aaffffff}
`
	path := filepath.Join(t.TempDir(), "show.yaml")
	require.NoError(t, os.WriteFile(path, []byte(show), 0o644))
	cfg := testConfig()
	cfg.Cues = path

	n, err := New(cfg, Options{Driver: led.NewSim(layout.Strip{Length: 8})})
	require.NoError(t, err)
	defer n.Close()
	assert.Equal(t, 1, n.Eng.Active())

	cfg.Cues = filepath.Join(t.TempDir(), "missing.yaml")
	_, err = New(cfg, Options{Driver: led.NewSim(layout.Strip{Length: 8})})
	assert.Error(t, err)
}

func TestNodeRejectsBadUDP(t *testing.T) {
	cfg := testConfig()
	cfg.Listen.UDP = "not-an-address"
	n, err := New(cfg, Options{Driver: led.NewSim(layout.Strip{Length: 8})})
	require.NoError(t, err)
	defer n.Close()
	err = n.Run(context.Background())
	require.Error(t, err)
	assert.False(t, errors.Is(err, context.Canceled))
}
