// Package render runs the frame loop: compose the engine's strip, run the
// post stages, hand the frame to the driver.
package render

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/coreman2200/bespeckle/internal/color"
)

// Source produces composed frames. The returned slice must stay valid until
// the next call.
type Source interface {
	Render() []color.RGB16
}

// Driver abstracts the LED transport (SPI, etc.).
type Driver interface {
	Write([]color.RGB16) error
}

// FrameFunc observes every frame after post-processing. It must not keep
// frame past the call.
type FrameFunc func(id uint64, frame []color.RGB16)

// Stats holds the timings of the last frame.
type Stats struct {
	FrameID  uint64
	RenderMS float64
	PostMS   float64
	TotalMS  float64
	Errors   uint64
}

// Loop renders frames from Src at a fixed rate and writes them to Drv.
type Loop struct {
	Src Source
	Drv Driver

	// frameMu serializes RenderOnce and guards out and scratch; mu guards
	// the rest.
	frameMu sync.Mutex
	mu      sync.Mutex
	fps     int
	limits  Limits
	out     []color.RGB16
	scratch []rgbf
	last    Stats
	onFrame []FrameFunc
	retick  chan struct{}
}

// DefaultFPS is used when the configured rate is not positive.
const DefaultFPS = 60

// NewLoop returns a loop for a strip of n positions.
func NewLoop(src Source, drv Driver, n, fps int) (*Loop, error) {
	if n <= 0 {
		return nil, errors.New("invalid strip length")
	}
	if src == nil {
		return nil, errors.New("nil frame source")
	}
	if fps <= 0 {
		fps = DefaultFPS
	}
	return &Loop{
		Src:     src,
		Drv:     drv,
		fps:     fps,
		out:     make([]color.RGB16, n),
		scratch: make([]rgbf, n),
		retick:  make(chan struct{}, 1),
	}, nil
}

// OnFrame registers fn to see every written frame.
func (l *Loop) OnFrame(fn FrameFunc) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onFrame = append(l.onFrame, fn)
}

// SetLimits replaces the power limiter settings.
func (l *Loop) SetLimits(lim Limits) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.limits = lim
}

// SetFPS changes the frame rate of a running loop.
func (l *Loop) SetFPS(fps int) {
	if fps <= 0 {
		fps = DefaultFPS
	}
	l.mu.Lock()
	changed := l.fps != fps
	l.fps = fps
	l.mu.Unlock()
	if changed {
		select {
		case l.retick <- struct{}{}:
		default:
		}
	}
}

// FPS returns the target frame rate.
func (l *Loop) FPS() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.fps
}

// Last returns the timings of the last frame.
func (l *Loop) Last() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.last
}

// RenderOnce renders, post-processes and writes a single frame. Frame hooks
// run after the loop's lock is released, so they may call back into it.
func (l *Loop) RenderOnce() error {
	l.frameMu.Lock()
	defer l.frameMu.Unlock()
	start := time.Now()

	l.mu.Lock()
	lim := l.limits
	hooks := l.onFrame
	l.mu.Unlock()

	frame := l.Src.Render()
	n := copy(l.out, frame)
	for i := n; i < len(l.out); i++ {
		l.out[i] = color.Empty
	}

	postStart := time.Now()
	limit(l.out, lim, l.scratch)
	postMS := ms(time.Since(postStart))

	var err error
	if l.Drv != nil {
		err = l.Drv.Write(l.out)
	}

	l.mu.Lock()
	l.last.FrameID++
	if err != nil {
		l.last.Errors++
	}
	l.last.RenderMS = ms(postStart.Sub(start))
	l.last.PostMS = postMS
	l.last.TotalMS = ms(time.Since(start))
	id := l.last.FrameID
	l.mu.Unlock()

	for _, fn := range hooks {
		fn(id, l.out)
	}
	return err
}

// Run renders until ctx is done. Driver errors are logged, not fatal.
func (l *Loop) Run(ctx context.Context) error {
	ticker := time.NewTicker(time.Second / time.Duration(l.FPS()))
	defer ticker.Stop()
	var failing bool
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.retick:
			ticker.Reset(time.Second / time.Duration(l.FPS()))
		case <-ticker.C:
			err := l.RenderOnce()
			switch {
			case err != nil && !failing:
				log.Warn().Err(err).Msg("driver write failed")
				failing = true
			case err == nil && failing:
				log.Info().Msg("driver write recovered")
				failing = false
			}
		}
	}
}

func ms(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000.0
}
