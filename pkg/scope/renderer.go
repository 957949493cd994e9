package scope

import (
	"fmt"
	"image/color"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"

	"github.com/itohio/goadjuster/pkg/sample"
)

const (
	marginLeft   = float32(60.0)
	marginRight  = float32(20.0)
	marginTop    = float32(20.0)
	marginBottom = float32(40.0)

	traceWidth = float32(1.5)
)

// plotArea is the part of the widget inside the axis labels.
type plotArea struct {
	x, y, width, height float32
}

func newPlotArea(size fyne.Size) plotArea {
	return plotArea{
		x:      marginLeft,
		y:      marginTop,
		width:  size.Width - marginLeft - marginRight,
		height: size.Height - marginTop - marginBottom,
	}
}

// pos maps fractions of the X and Y ranges to a position; fy = 0 is the bottom.
func (a plotArea) pos(fx, fy float64) fyne.Position {
	return fyne.NewPos(a.x+float32(fx)*a.width, a.y+a.height-float32(fy)*a.height)
}

// drawGrid adds nh+1 horizontal and nv+1 vertical grid lines with labels.
func drawGrid(objects []fyne.CanvasObject, a plotArea, nh, nv int, yLabel, xLabel func(i int) string) []fyne.CanvasObject {
	for i := range nh + 1 {
		y := a.y + float32(i)*a.height/float32(nh)
		line := canvas.NewLine(gridColor)
		line.Position1 = fyne.NewPos(a.x, y)
		line.Position2 = fyne.NewPos(a.x+a.width, y)
		line.StrokeWidth = 1

		text := canvas.NewText(yLabel(i), labelColor)
		text.TextSize = 10
		text.Alignment = fyne.TextAlignTrailing
		text.Move(fyne.NewPos(a.x-5, y-6))
		objects = append(objects, line, text)
	}

	for i := range nv + 1 {
		x := a.x + float32(i)*a.width/float32(nv)
		line := canvas.NewLine(gridColor)
		line.Position1 = fyne.NewPos(x, a.y)
		line.Position2 = fyne.NewPos(x, a.y+a.height)
		line.StrokeWidth = 1

		text := canvas.NewText(xLabel(i), labelColor)
		text.TextSize = 10
		text.Alignment = fyne.TextAlignCenter
		text.Move(fyne.NewPos(x-20, a.y+a.height+5))
		objects = append(objects, line, text)
	}
	return objects
}

// drawPolyline connects points with line segments.
func drawPolyline(objects []fyne.CanvasObject, points []fyne.Position, c color.Color, width float32) []fyne.CanvasObject {
	for i := 1; i < len(points); i++ {
		line := canvas.NewLine(c)
		line.Position1 = points[i-1]
		line.Position2 = points[i]
		line.StrokeWidth = width
		objects = append(objects, line)
	}
	return objects
}

// scopeRenderer renders the scope widget.
type scopeRenderer struct {
	scope *ScopeWidget

	// Background
	grid *canvas.Rectangle

	// Objects list for Fyne
	objects []fyne.CanvasObject

	// Track last size to detect changes
	lastSize fyne.Size
}

// MinSize returns the minimum size of the widget.
func (r *scopeRenderer) MinSize() fyne.Size {
	return fyne.NewSize(400, 300)
}

// Layout arranges the widget components.
func (r *scopeRenderer) Layout(size fyne.Size) {
	r.grid.Resize(size)

	if r.lastSize != size {
		r.lastSize = size
		r.scope.BaseWidget.Refresh()
	}
}

// Refresh rebuilds the traces from the current readings.
func (r *scopeRenderer) Refresh() {
	r.scope.mu.RLock()
	readings := r.scope.display
	yMin, yMax := r.scope.yMin, r.scope.yMax
	xMin, xMax := r.scope.xMin, r.scope.xMax
	r.scope.mu.RUnlock()

	r.objects = []fyne.CanvasObject{r.grid}

	size := r.scope.Size()
	if size.Width == 0 || size.Height == 0 {
		return
	}
	a := newPlotArea(size)
	span := xMax.Sub(xMin).Seconds()

	r.objects = drawGrid(r.objects, a, 8, 10,
		func(i int) string { return formatPressure(yMax - float64(i)*(yMax-yMin)/8) },
		func(i int) string { return formatTime(time.Duration(float64(i) * span / 10 * float64(time.Second))) },
	)

	if len(readings) < 2 {
		return
	}
	points := make([]fyne.Position, len(readings))
	for ch := range sample.Sensors {
		for i, p := range readings {
			points[i] = a.pos(p.Timestamp.Sub(xMin).Seconds()/span, (p.Values[ch]-yMin)/(yMax-yMin))
		}
		r.objects = drawPolyline(r.objects, points, SensorColors[ch], traceWidth)
	}

	// Legend with the latest reading of every sensor
	last := readings[len(readings)-1]
	for ch, v := range last.Values {
		text := canvas.NewText(fmt.Sprintf("CH%d %s", ch+1, formatPressure(v)), SensorColors[ch])
		text.TextSize = 11
		text.Move(fyne.NewPos(a.x+10+float32(ch)*90, a.y+10))
		r.objects = append(r.objects, text)
	}
}

// Objects returns all canvas objects for rendering.
func (r *scopeRenderer) Objects() []fyne.CanvasObject {
	return r.objects
}

// Destroy cleans up resources.
func (r *scopeRenderer) Destroy() {}

func formatPressure(v float64) string {
	return fmt.Sprintf("%.2f MPa", v)
}

func formatTime(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%.2fs", d.Seconds())
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}
