package scope

import (
	"image/color"
	"sync"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/widget"

	"github.com/itohio/goadjuster/pkg/sample"
)

// DefaultWindow is the minimum time span shown by the scope.
const DefaultWindow = 30 * time.Second

var (
	background = color.RGBA{R: 20, G: 20, B: 20, A: 255}
	gridColor  = color.RGBA{R: 40, G: 40, B: 40, A: 255}
	labelColor = color.RGBA{R: 150, G: 150, B: 150, A: 255}

	// SensorColors are the trace colors of CH1..CH4.
	SensorColors = [sample.Sensors]color.RGBA{
		{R: 255, G: 165, B: 0, A: 255},   // Orange
		{R: 100, G: 200, B: 255, A: 255}, // Light blue
		{R: 120, G: 220, B: 120, A: 255}, // Green
		{R: 230, G: 110, B: 230, A: 255}, // Magenta
	}
)

// ScopeWidget is a custom Fyne widget that plots the pressure of every sensor
// over time, oscilloscope style.
type ScopeWidget struct {
	widget.BaseWidget

	window time.Duration

	// Data (protected by mu)
	mu      sync.RWMutex
	display []sample.Pressure

	// Auto-scaling
	yMin, yMax float64
	xMin, xMax time.Time

	maxDisplayPoints int
}

// New creates a new ScopeWidget showing at least window of history.
func New(window time.Duration) *ScopeWidget {
	if window <= 0 {
		window = DefaultWindow
	}
	s := &ScopeWidget{
		window:           window,
		display:          make([]sample.Pressure, 0, 1000),
		maxDisplayPoints: 1000, // Limit points for efficient rendering
	}
	s.yMin, s.yMax, s.xMin, s.xMax = bounds(nil, window, time.Now())
	s.ExtendBaseWidget(s)
	return s
}

// UpdateData replaces the plotted readings. It must run on the Fyne thread,
// e.g. from fyne.Do.
func (s *ScopeWidget) UpdateData(history []sample.Pressure) {
	s.mu.Lock()
	s.display = downsample(s.display, history, s.maxDisplayPoints)
	s.yMin, s.yMax, s.xMin, s.xMax = bounds(s.display, s.window, time.Now())
	s.mu.Unlock()

	// Refresh outside the lock; the renderer takes it.
	s.Refresh()
}

// Clear removes every trace.
func (s *ScopeWidget) Clear() {
	s.UpdateData(nil)
}

// bounds returns the Y range of readings with a 10% margin and the time
// range, at least window wide.
func bounds(readings []sample.Pressure, window time.Duration, now time.Time) (yMin, yMax float64, xMin, xMax time.Time) {
	if len(readings) == 0 {
		return 0, 1, now, now.Add(window)
	}

	yMin, yMax = readings[0].Values[0], readings[0].Values[0]
	for _, p := range readings {
		for _, v := range p.Values {
			yMin = min(yMin, v)
			yMax = max(yMax, v)
		}
	}

	span := yMax - yMin
	if span == 0 {
		span = 1.0
	}
	yMin -= span * 0.1
	yMax += span * 0.1

	xMin = readings[0].Timestamp
	xMax = readings[len(readings)-1].Timestamp
	if xMax.Sub(xMin) < window {
		xMax = xMin.Add(window)
	}
	return yMin, yMax, xMin, xMax
}

// downsample decimates readings to at most maxPoints, reusing dst when it is
// large enough.
func downsample(dst, readings []sample.Pressure, maxPoints int) []sample.Pressure {
	if len(readings) <= maxPoints {
		return append(dst[:0], readings...)
	}

	dst = dst[:0]
	step := float64(len(readings)) / float64(maxPoints)
	for i := range maxPoints {
		dst = append(dst, readings[int(float64(i)*step)])
	}
	return dst
}

// CreateRenderer creates the widget renderer.
func (s *ScopeWidget) CreateRenderer() fyne.WidgetRenderer {
	grid := canvas.NewRectangle(background)
	return &scopeRenderer{
		scope:   s,
		grid:    grid,
		objects: []fyne.CanvasObject{grid},
	}
}
