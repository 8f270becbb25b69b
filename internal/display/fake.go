package display

import "github.com/sweeney/shot-monitor/internal/logic"

// TextUpdate is one recorded SetRegionText call.
type TextUpdate struct {
	Region Region
	Text   string
}

// Fake records every call for assertions.
type Fake struct {
	Prepared   bool
	Rect       logic.PlotRect
	Grid       []logic.GridLine
	Points     []logic.PixelPoint
	Texts      []TextUpdate
	Heating    []bool
	Refreshes  []Region
	PowerDowns int
}

// NewFake creates an empty recorder.
func NewFake() *Fake {
	return &Fake{}
}

func (f *Fake) Prepare(rect logic.PlotRect, grid []logic.GridLine) {
	f.Prepared = true
	f.Rect = rect
	f.Grid = grid
}

func (f *Fake) DrawPoint(x, y int) {
	f.Points = append(f.Points, logic.PixelPoint{X: x, Y: y})
}

func (f *Fake) SetRegionText(region Region, text string) {
	f.Texts = append(f.Texts, TextUpdate{Region: region, Text: text})
}

func (f *Fake) SetHeatingIndicator(on bool) {
	f.Heating = append(f.Heating, on)
}

func (f *Fake) RequestRefresh(region Region) {
	f.Refreshes = append(f.Refreshes, region)
}

func (f *Fake) PowerDown() {
	f.PowerDowns++
}

// LastText returns the most recent text set on region.
func (f *Fake) LastText(region Region) (string, bool) {
	for i := len(f.Texts) - 1; i >= 0; i-- {
		if f.Texts[i].Region == region {
			return f.Texts[i].Text, true
		}
	}
	return "", false
}

// TextsFor returns every text set on region, oldest first.
func (f *Fake) TextsFor(region Region) []string {
	var out []string
	for _, u := range f.Texts {
		if u.Region == region {
			out = append(out, u.Text)
		}
	}
	return out
}

// Calls returns the total number of recorded drawing calls.
func (f *Fake) Calls() int {
	return len(f.Points) + len(f.Texts) + len(f.Heating) + len(f.Refreshes) + f.PowerDowns
}
