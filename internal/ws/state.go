// Package ws serves the node's host-facing surface: frame and diagnostic
// streams, packet control over websocket, and health.
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/coreman2200/bespeckle/internal/color"
	"github.com/coreman2200/bespeckle/internal/config"
	diag "github.com/coreman2200/bespeckle/internal/diagnostics"
	"github.com/coreman2200/bespeckle/internal/engine"
	"github.com/coreman2200/bespeckle/internal/events"
	"github.com/coreman2200/bespeckle/internal/packet"
	"github.com/coreman2200/bespeckle/internal/render"
	"github.com/coreman2200/bespeckle/internal/selftest"
)

const writeWait = 200 * time.Millisecond

var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

// client serializes writes; gorilla allows one concurrent writer per conn.
type client struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *client) write(mt int, b []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(mt, b)
}

type Options struct {
	Engine *engine.Engine
	Loop   *render.Loop
	// Handle applies packets from the control socket. Defaults to
	// Engine.Handle; the daemon passes its counting sink.
	Handle     func(packet.Packet) engine.Outcome
	Driver     string
	Config     *config.Config
	ConfigPath string
}

type State struct {
	mu     sync.RWMutex
	eng    *engine.Engine
	loop   *render.Loop
	handle func(packet.Packet) engine.Outcome
	driver string

	cfg        *config.Config
	configPath string

	frameID     uint64
	startTime   time.Time
	clients     map[*client]bool
	diagClients map[*client]bool

	testKind   selftest.Kind
	testCancel context.CancelFunc
	testDone   chan struct{}
}

func NewState(opts Options) *State {
	s := &State{
		eng:         opts.Engine,
		loop:        opts.Loop,
		handle:      opts.Handle,
		driver:      opts.Driver,
		cfg:         opts.Config,
		configPath:  opts.ConfigPath,
		startTime:   time.Now(),
		clients:     map[*client]bool{},
		diagClients: map[*client]bool{},
	}
	if s.handle == nil {
		s.handle = s.eng.Handle
	}
	return s
}

// Routes mounts the handlers on mux.
func (s *State) Routes(mux *http.ServeMux) {
	mux.HandleFunc("/ws", s.HandleFramesWS)
	mux.HandleFunc("/diag", s.HandleDiagWS)
	mux.HandleFunc("/control", s.HandleControlWS)
	mux.HandleFunc("/health", s.HandleHealth)
}

// Subscribe forwards engine events to diag clients.
func (s *State) Subscribe(bus *events.Bus) func() {
	a := bus.Subscribe(func(e events.PacketIgnored) { s.pushDiag(diag.FromIgnored(e)) })
	b := bus.Subscribe(func(e events.EngineReset) { s.pushDiag(diag.FromReset(e)) })
	return func() { a(); b() }
}

// Close stops a running test pattern and waits for its final stop packet.
func (s *State) Close() {
	s.mu.Lock()
	cancel, done := s.testCancel, s.testDone
	s.testKind, s.testCancel, s.testDone = selftest.None, nil, nil
	s.mu.Unlock()
	if cancel != nil {
		cancel()
		<-done
	}
}

func (s *State) register(set map[*client]bool, w http.ResponseWriter, r *http.Request) (*client, bool) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, false
	}
	c := &client{conn: conn}
	s.mu.Lock()
	set[c] = true
	s.mu.Unlock()
	return c, true
}

// drain reads until the peer goes away, then drops the client.
func (s *State) drain(set map[*client]bool, c *client) {
	defer func() {
		s.mu.Lock()
		delete(set, c)
		s.mu.Unlock()
		c.conn.Close()
	}()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *State) HandleFramesWS(w http.ResponseWriter, r *http.Request) {
	c, ok := s.register(s.clients, w, r)
	if !ok {
		return
	}
	s.sendStatus(c, nil)
	go s.drain(s.clients, c)
}

func (s *State) HandleDiagWS(w http.ResponseWriter, r *http.Request) {
	c, ok := s.register(s.diagClients, w, r)
	if !ok {
		return
	}
	go s.drain(s.diagClients, c)
}

// control is the JSON form accepted by the control socket. Binary messages
// carry raw back-to-back bus packets instead.
type control struct {
	Packet     *packet.Packet  `json:"packet,omitempty"`
	Packets    []packet.Packet `json:"packets,omitempty"`
	FPS        *int            `json:"fps,omitempty"`
	Brightness *float64        `json:"brightness,omitempty"`
	RunTest    string          `json:"runTest,omitempty"`
	StopTest   bool            `json:"stopTest,omitempty"`
}

func (s *State) HandleControlWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	c := &client{conn: conn}
	defer conn.Close()
	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var ps []packet.Packet
		if mt == websocket.BinaryMessage {
			if len(data) == 0 || len(data)%packet.Size != 0 {
				s.sendError(c, "binary control needs whole 8-byte packets")
				continue
			}
			for off := 0; off < len(data); off += packet.Size {
				p, _ := packet.Parse(data[off:])
				ps = append(ps, p)
			}
			s.sendStatus(c, s.apply(ps))
			continue
		}
		var msg control
		if err := json.Unmarshal(data, &msg); err != nil {
			s.sendError(c, err.Error())
			continue
		}
		if msg.Packet != nil {
			ps = append(ps, *msg.Packet)
		}
		ps = append(ps, msg.Packets...)
		outcomes := s.apply(ps)
		s.applyControl(msg)
		s.sendStatus(c, outcomes)
	}
}

func (s *State) apply(ps []packet.Packet) []string {
	out := make([]string, 0, len(ps))
	for _, p := range ps {
		out = append(out, s.handle(p).String())
	}
	return out
}

func (s *State) applyControl(msg control) {
	changed := false
	if msg.FPS != nil && *msg.FPS > 0 {
		if s.loop != nil {
			s.loop.SetFPS(*msg.FPS)
		}
		s.mu.Lock()
		if s.cfg != nil {
			s.cfg.FPS = *msg.FPS
		}
		s.mu.Unlock()
		changed = true
	}
	if msg.Brightness != nil {
		b := clamp(*msg.Brightness, 0, 1)
		s.handle(packet.New(packet.Param, 3, uint8(b*255)))
		s.mu.Lock()
		if s.cfg != nil {
			s.cfg.Brightness = b
		}
		s.mu.Unlock()
		changed = true
	}
	if msg.StopTest {
		s.Close()
	}
	if msg.RunTest != "" {
		s.runTest(selftest.Kind(msg.RunTest))
	}
	if changed {
		s.saveConfig()
	}
}

func (s *State) runTest(kind selftest.Kind) {
	r, err := selftest.NewRunner(kind, s.eng.Length())
	if err != nil {
		s.pushDiag(diag.Diagnostic{
			Severity: diag.Warn, Code: "TEST.UNKNOWN", Summary: "Unknown test name",
			Evidence: map[string]any{"name": string(kind), "known": selftest.Kinds()},
		})
		return
	}
	s.Close()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	s.mu.Lock()
	s.testKind, s.testCancel, s.testDone = kind, cancel, done
	s.mu.Unlock()

	s.pushDiag(diag.Diagnostic{Severity: diag.Info, Code: "TEST.RUNNING", Summary: "Running test", Detail: string(kind)})
	go func() {
		defer close(done)
		err := r.Run(ctx, selftest.DefaultStep, func(p packet.Packet) { s.handle(p) })
		s.mu.Lock()
		if s.testDone == done {
			s.testKind, s.testCancel, s.testDone = selftest.None, nil, nil
		}
		s.mu.Unlock()
		cancel()
		if err == nil {
			s.pushDiag(diag.Diagnostic{Severity: diag.Info, Code: "TEST.DONE", Summary: "Test complete", Detail: string(kind)})
		}
	}()
}

// Persist config after any change
func (s *State) saveConfig() {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.configPath == "" || s.cfg == nil {
		return
	}
	if err := config.Save(s.configPath, s.cfg); err != nil {
		log.Warn().Err(err).Str("path", s.configPath).Msg("config save failed")
	}
}

// Health is the /health document.
type Health struct {
	FrameID  uint64                  `json:"frame_id"`
	UptimeS  float64                 `json:"uptime_s"`
	Driver   string                  `json:"driver"`
	Length   int                     `json:"length"`
	FPS      int                     `json:"fps"`
	Tick     uint32                  `json:"tick"`
	Frac     uint8                   `json:"frac"`
	Params   [engine.NumParams]uint8 `json:"params"`
	Active   int                     `json:"active"`
	Capacity int                     `json:"capacity"`
	Effects  []engine.Info           `json:"effects"`
	Outcomes map[string]uint64       `json:"outcomes"`
	Frame    *render.Stats           `json:"frame,omitempty"`
	Test     string                  `json:"test,omitempty"`
}

func (s *State) health() Health {
	now := s.eng.Now()
	h := Health{
		Driver:   s.driver,
		Length:   s.eng.Length(),
		Tick:     now.Tick,
		Frac:     now.Frac,
		Params:   s.eng.Params(),
		Active:   s.eng.Active(),
		Capacity: s.eng.Capacity(),
		Effects:  s.eng.Effects(),
		Outcomes: map[string]uint64{},
	}
	for o, n := range s.eng.Counts() {
		h.Outcomes[o.String()] = n
	}
	if s.loop != nil {
		st := s.loop.Last()
		h.FPS = s.loop.FPS()
		h.Frame = &st
	}
	s.mu.RLock()
	h.FrameID = s.frameID
	h.UptimeS = time.Since(s.startTime).Seconds()
	h.Test = string(s.testKind)
	s.mu.RUnlock()
	return h
}

func (s *State) HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(s.health())
}

// status is the reply to every control message and the greeting on /ws.
type status struct {
	Driver   string                  `json:"driver"`
	Length   int                     `json:"length"`
	Params   [engine.NumParams]uint8 `json:"params"`
	Effects  []engine.Info           `json:"effects"`
	Outcomes []string                `json:"outcomes,omitempty"`
	Error    string                  `json:"error,omitempty"`
}

func (s *State) sendStatus(c *client, outcomes []string) {
	st := status{
		Driver:   s.driver,
		Length:   s.eng.Length(),
		Params:   s.eng.Params(),
		Effects:  s.eng.Effects(),
		Outcomes: outcomes,
	}
	b, _ := json.Marshal(st)
	_ = c.write(websocket.TextMessage, b)
}

func (s *State) sendError(c *client, msg string) {
	b, _ := json.Marshal(status{Driver: s.driver, Length: s.eng.Length(), Error: msg})
	_ = c.write(websocket.TextMessage, b)
}

type frame struct {
	T       int64  `json:"t"`
	FrameID uint64 `json:"frame_id"`
	RGB     []byte `json:"rgb"`
}

// BroadcastFrame sends frame to every /ws client. It fits render.FrameFunc.
func (s *State) BroadcastFrame(id uint64, f []color.RGB16) {
	rgb := make([]byte, 0, len(f)*3)
	for _, c := range f {
		r, g, b := c.RGB()
		rgb = append(rgb, r, g, b)
	}
	s.mu.Lock()
	s.frameID = id
	targets := make([]*client, 0, len(s.clients))
	for c := range s.clients {
		targets = append(targets, c)
	}
	s.mu.Unlock()
	if len(targets) == 0 {
		return
	}
	b, _ := json.Marshal(frame{T: time.Now().UnixNano(), FrameID: id, RGB: rgb})
	for _, c := range targets {
		if err := c.write(websocket.TextMessage, b); err != nil {
			log.Debug().Err(err).Msg("write frame")
		}
	}
}

func (s *State) pushDiag(d diag.Diagnostic) {
	b, _ := json.Marshal(d)
	s.mu.RLock()
	targets := make([]*client, 0, len(s.diagClients))
	for c := range s.diagClients {
		targets = append(targets, c)
	}
	s.mu.RUnlock()
	for _, c := range targets {
		_ = c.write(websocket.TextMessage, b)
	}
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
