package render

import (
	"github.com/coreman2200/bespeckle/internal/color"
)

// Limits configures the power limiter. Zero values disable a stage.
//
//   - WhiteCap caps R+G+B per LED in linear units (3.0 means no cap)
//   - ChanmA is the current per channel at full scale (WS2812 is about 20)
//   - BudgetmA is the global budget; 0 disables global limiting
//   - Knee is the fraction of the budget where soft limiting starts
type Limits struct {
	WhiteCap float64 `yaml:"white_cap" toml:"white_cap"`
	ChanmA   float64 `yaml:"chan_ma" toml:"chan_ma"`
	BudgetmA float64 `yaml:"budget_ma" toml:"budget_ma"`
	Knee     float64 `yaml:"knee" toml:"knee"`
}

func (l Limits) withDefaults() Limits {
	if l.WhiteCap <= 0 || l.WhiteCap > 3 {
		l.WhiteCap = 3
	}
	if l.ChanmA <= 0 {
		l.ChanmA = 20
	}
	if l.Knee <= 0 || l.Knee >= 1 {
		l.Knee = 0.9
	}
	return l
}

// Active reports whether Limit would change any frame.
func (l Limits) Active() bool {
	l = l.withDefaults()
	return l.WhiteCap < 3 || l.BudgetmA > 0
}

type rgbf struct{ r, g, b float64 }

// Limit applies a two-stage limiter to frame in place:
// 1) per-LED white cap: scales (R,G,B) so R+G+B <= WhiteCap
// 2) global budget: estimates current and scales the frame to stay under BudgetmA
//
func Limit(frame []color.RGB16, l Limits) {
	limit(frame, l, make([]rgbf, len(frame)))
}

// limit is Limit with a caller-owned scratch of at least len(frame).
func limit(frame []color.RGB16, l Limits, scratch []rgbf) {
	if !l.Active() {
		return
	}
	l = l.withDefaults()
	buf := scratch[:len(frame)]
	for i, c := range frame {
		r, g, b := c.RGB()
		buf[i] = rgbf{float64(r) / 255, float64(g) / 255, float64(b) / 255}
	}

	changed := false
	for i := range buf {
		s := buf[i].r + buf[i].g + buf[i].b
		if s > l.WhiteCap && s > 0 {
			scaleOne(&buf[i], l.WhiteCap/s)
			changed = true
		}
	}

	if l.BudgetmA > 0 {
		var total float64
		for i := range buf {
			total += (buf[i].r + buf[i].g + buf[i].b) * l.ChanmA
		}
		if s := budgetScale(total, l.BudgetmA, l.Knee); s < 1 {
			for i := range buf {
				scaleOne(&buf[i], s)
			}
			changed = true
		}
	}
	if !changed {
		return
	}
	for i := range buf {
		frame[i] = color.Pack(color.RGBA{
			R: to8(buf[i].r), G: to8(buf[i].g), B: to8(buf[i].b), A: 0xff,
		})
	}
}

// budgetScale passes frames under knee*budget untouched, halves the excess
// above the knee, and meets the budget exactly once that is not enough.
func budgetScale(total, budget, knee float64) float64 {
	if total <= 0 || budget <= 0 {
		return 1
	}
	ratio := total / budget
	if ratio <= knee {
		return 1
	}
	if ratio <= 2-knee {
		return (knee + (ratio-knee)/2) / ratio
	}
	return budget / total
}

func scaleOne(c *rgbf, s float64) {
	c.r *= s
	c.g *= s
	c.b *= s
}

// to8 truncates so limited frames never round back over the cap.
func to8(x float64) uint8 {
	if x <= 0 {
		return 0
	}
	if x >= 1 {
		return 0xff
	}
	return uint8(x * 255)
}
