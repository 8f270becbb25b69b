package logic

// PlotRect is the pixel rectangle of the temperature graph.
// The vertical origin is top-left, so YTop < YBottom.
type PlotRect struct {
	XLeft   int
	XRight  int
	YTop    int
	YBottom int
}

// DefaultPlotRect is the graph area below the info bar on a 400x300 panel.
var DefaultPlotRect = PlotRect{XLeft: 20, XRight: 380, YTop: 60, YBottom: 300}

// GraphMapper maps (elapsed seconds, value) samples into the plot rectangle.
// Both axes clamp instead of failing. It holds no state besides its geometry.
type GraphMapper struct {
	rect           PlotRect
	valueMin       float64
	valueMax       float64
	timeMaxMinutes float64
}

// NewGraphMapper creates a mapper for the value range [valueMin, valueMax]
// and the time window [0, timeMaxMinutes].
func NewGraphMapper(rect PlotRect, valueMin, valueMax, timeMaxMinutes float64) *GraphMapper {
	return &GraphMapper{
		rect:           rect,
		valueMin:       valueMin,
		valueMax:       valueMax,
		timeMaxMinutes: timeMaxMinutes,
	}
}

// Rect returns the plot geometry.
func (g *GraphMapper) Rect() PlotRect {
	return g.rect
}

// Map converts a sample to pixel coordinates.
func (g *GraphMapper) Map(p PlotPoint) PixelPoint {
	return PixelPoint{X: g.MapX(p.TimeSeconds), Y: g.MapY(p.Value)}
}

// MapY maps a value onto the inverted vertical axis.
func (g *GraphMapper) MapY(value float64) int {
	if value <= g.valueMin {
		return g.rect.YBottom
	}
	if value >= g.valueMax {
		return g.rect.YTop
	}
	height := float64(g.rect.YBottom - g.rect.YTop)
	y := float64(g.rect.YBottom) - (value-g.valueMin)*height/(g.valueMax-g.valueMin)
	return int(y)
}

// MapX maps elapsed seconds onto the horizontal axis, pinning samples past
// the window to the right edge.
func (g *GraphMapper) MapX(elapsedSeconds float64) int {
	if elapsedSeconds <= 0 {
		return g.rect.XLeft
	}
	if elapsedSeconds >= g.timeMaxMinutes*60 {
		return g.rect.XRight
	}
	width := float64(g.rect.XRight - g.rect.XLeft)
	x := float64(g.rect.XLeft) + (elapsedSeconds/60)*width/g.timeMaxMinutes
	return int(x)
}

// GridLines returns the Y pixel and label value of evenly spaced horizontal
// guide lines strictly inside the value range.
func (g *GraphMapper) GridLines(n int) []GridLine {
	if n <= 0 {
		return nil
	}
	step := (g.valueMax - g.valueMin) / float64(n+1)
	lines := make([]GridLine, 0, n)
	for i := 1; i <= n; i++ {
		v := g.valueMin + float64(i)*step
		lines = append(lines, GridLine{Value: v, Y: g.MapY(v)})
	}
	return lines
}

// GridLine is one horizontal guide in the graph.
type GridLine struct {
	Value float64
	Y     int
}
