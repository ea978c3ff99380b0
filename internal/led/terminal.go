package led

import (
	"fmt"
	"sync"

	"github.com/gdamore/tcell/v2"

	"github.com/coreman2200/bespeckle/internal/color"
	"github.com/coreman2200/bespeckle/internal/layout"
)

// Terminal previews the strip in a full-screen terminal, wrapping it over
// as many rows as the width requires.
type Terminal struct {
	mu     sync.Mutex
	screen tcell.Screen
	strip  layout.Strip
	phys   []color.RGB16
}

// OpenTerminal takes over the controlling terminal.
func OpenTerminal(s layout.Strip) (*Terminal, error) {
	screen, err := tcell.NewScreen()
	if err != nil {
		return nil, fmt.Errorf("terminal: %w", err)
	}
	return NewTerminal(screen, s)
}

// NewTerminal initialises screen and draws on it.
func NewTerminal(screen tcell.Screen, s layout.Strip) (*Terminal, error) {
	if err := screen.Init(); err != nil {
		return nil, fmt.Errorf("terminal init: %w", err)
	}
	screen.HideCursor()
	screen.Clear()
	return &Terminal{screen: screen, strip: s, phys: make([]color.RGB16, s.Count())}, nil
}

// cellWidth is the number of columns per LED.
const cellWidth = 2

func (t *Terminal) Write(frame []color.RGB16) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.screen == nil {
		return ErrClosed
	}
	w, _ := t.screen.Size()
	perRow := max(w/cellWidth, 1)
	for i, c := range physical(t.strip, t.phys, frame) {
		r, g, b := c.RGB()
		style := tcell.StyleDefault.Background(tcell.NewRGBColor(int32(r), int32(g), int32(b)))
		x, y := (i%perRow)*cellWidth, i/perRow
		for dx := 0; dx < cellWidth; dx++ {
			t.screen.SetContent(x+dx, y, ' ', nil, style)
		}
	}
	t.screen.Show()
	return nil
}

func (t *Terminal) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.screen != nil {
		t.screen.Fini()
		t.screen = nil
	}
	return nil
}
