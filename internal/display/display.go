// Package display defines the output device driven by the monitor.
// Pixel rendering, fonts and panel drivers live behind the Display interface.
package display

import (
	"fmt"

	"github.com/sweeney/shot-monitor/internal/logic"
)

// Region names an area of the screen that can be updated on its own.
type Region string

// The info bar across the top, and the whole panel.
const (
	RegionFull    Region = "full"
	RegionHeating Region = "heating"
	RegionHX      Region = "hx"
	RegionSteam   Region = "steam"
	RegionTimer   Region = "timer"
)

// Display is a slow refresh panel. Drawing calls only touch the frame buffer;
// nothing reaches the glass until RequestRefresh.
type Display interface {
	// Prepare draws the static layout: info bar labels, plot frame and grid.
	Prepare(rect logic.PlotRect, grid []logic.GridLine)
	DrawPoint(x, y int)
	SetRegionText(region Region, text string)
	SetHeatingIndicator(on bool)
	RequestRefresh(region Region)
	// PowerDown clears the panel and turns it off. There is no wake call.
	PowerDown()
}

// FormatSteam renders the steam boiler region, e.g. "116/124".
func FormatSteam(current, target int) string {
	return fmt.Sprintf("%3d/%3d", current, target)
}

// FormatHX renders the heat exchanger region.
func FormatHX(temp int) string {
	return fmt.Sprintf("%3d", temp)
}

// FormatTimer renders the shot timer in whole seconds.
func FormatTimer(seconds int) string {
	return fmt.Sprintf("%d", seconds)
}
