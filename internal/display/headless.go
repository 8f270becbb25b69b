package display

import (
	"github.com/rs/zerolog"

	"github.com/sweeney/shot-monitor/internal/logic"
)

// Headless stands in for a panel on boards without one. It keeps the info bar
// contents and writes them to the log on every refresh.
type Headless struct {
	log zerolog.Logger

	texts   map[Region]string
	heating bool
	points  int
	last    logic.PixelPoint
	asleep  bool
}

// NewHeadless creates a log-backed display.
func NewHeadless(log zerolog.Logger) *Headless {
	return &Headless{
		log:   log.With().Str("component", "display").Logger(),
		texts: make(map[Region]string),
	}
}

func (h *Headless) Prepare(rect logic.PlotRect, grid []logic.GridLine) {
	values := make([]float64, 0, len(grid))
	for _, g := range grid {
		values = append(values, g.Value)
	}
	h.log.Info().
		Int("x_left", rect.XLeft).
		Int("x_right", rect.XRight).
		Int("y_top", rect.YTop).
		Int("y_bottom", rect.YBottom).
		Floats64("grid", values).
		Msg("layout prepared")
}

func (h *Headless) DrawPoint(x, y int) {
	if h.asleep {
		return
	}
	h.points++
	h.last = logic.PixelPoint{X: x, Y: y}
}

func (h *Headless) SetRegionText(region Region, text string) {
	if h.asleep {
		return
	}
	h.texts[region] = text
	if region == RegionTimer {
		h.log.Debug().Str("timer", text).Msg("shot timer")
	}
}

func (h *Headless) SetHeatingIndicator(on bool) {
	h.heating = on
}

func (h *Headless) RequestRefresh(region Region) {
	if h.asleep {
		return
	}
	h.log.Debug().
		Str("region", string(region)).
		Bool("heating", h.heating).
		Str("hx", h.texts[RegionHX]).
		Str("steam", h.texts[RegionSteam]).
		Str("timer", h.texts[RegionTimer]).
		Int("points", h.points).
		Int("x", h.last.X).
		Int("y", h.last.Y).
		Msg("refresh")
}

func (h *Headless) PowerDown() {
	h.asleep = true
	h.log.Info().Int("points", h.points).Msg("display powered down")
}

// Points returns the number of points drawn so far.
func (h *Headless) Points() int {
	return h.points
}

// Asleep reports whether PowerDown was called.
func (h *Headless) Asleep() bool {
	return h.asleep
}
