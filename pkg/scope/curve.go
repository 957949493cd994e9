package scope

import (
	"image/color"
	"strconv"
	"sync"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/widget"

	"github.com/itohio/goadjuster/pkg/curve"
)

var curveColor = color.RGBA{R: 255, G: 165, B: 0, A: 255} // Orange

// CurveWidget plots the control points of one calibration curve on the
// [MinValue, MaxValue] square: input on X, output on Y.
type CurveWidget struct {
	widget.BaseWidget

	mu     sync.RWMutex
	name   string
	points curve.Points
}

// NewCurve creates a curve plot.
func NewCurve() *CurveWidget {
	c := &CurveWidget{}
	c.ExtendBaseWidget(c)
	return c
}

// SetPoints replaces the plotted curve.
func (c *CurveWidget) SetPoints(name string, points curve.Points) {
	c.mu.Lock()
	c.name = name
	c.points = points
	c.mu.Unlock()

	c.Refresh()
}

// Points returns the plotted curve.
func (c *CurveWidget) Points() (string, curve.Points) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.name, c.points
}

// CreateRenderer creates the widget renderer.
func (c *CurveWidget) CreateRenderer() fyne.WidgetRenderer {
	bg := canvas.NewRectangle(background)
	return &curveRenderer{
		curve:   c,
		bg:      bg,
		objects: []fyne.CanvasObject{bg},
	}
}

// curveRenderer renders the curve widget.
type curveRenderer struct {
	curve *CurveWidget

	bg      *canvas.Rectangle
	objects []fyne.CanvasObject

	lastSize fyne.Size
}

func (r *curveRenderer) MinSize() fyne.Size {
	return fyne.NewSize(300, 300)
}

func (r *curveRenderer) Layout(size fyne.Size) {
	r.bg.Resize(size)

	if r.lastSize != size {
		r.lastSize = size
		r.curve.BaseWidget.Refresh()
	}
}

func (r *curveRenderer) Refresh() {
	name, points := r.curve.Points()

	r.objects = []fyne.CanvasObject{r.bg}

	size := r.curve.Size()
	if size.Width == 0 || size.Height == 0 {
		return
	}
	a := newPlotArea(size)

	const divisions = 4
	label := func(v float64) string { return strconv.FormatFloat(v, 'f', 0, 64) }
	lo, hi := float64(curve.MinValue), float64(curve.MaxValue)
	step := (hi - lo) / divisions
	r.objects = drawGrid(r.objects, a, divisions, divisions,
		func(i int) string { return label(hi - float64(i)*step) },
		func(i int) string { return label(lo + float64(i)*step) },
	)

	if name == "" {
		return
	}

	pairs := points.Pairs()
	positions := make([]fyne.Position, len(pairs))
	for i, p := range pairs {
		positions[i] = a.pos(fraction(p.X), fraction(p.Y))
	}
	r.objects = drawPolyline(r.objects, positions, curveColor, 2)

	for _, pos := range positions {
		dot := canvas.NewCircle(curveColor)
		dot.Resize(fyne.NewSize(8, 8))
		dot.Move(pos.Subtract(fyne.NewPos(4, 4)))
		r.objects = append(r.objects, dot)
	}

	title := canvas.NewText(name, curveColor)
	title.TextSize = 12
	title.Move(fyne.NewPos(a.x+10, a.y+10))
	r.objects = append(r.objects, title)
}

func (r *curveRenderer) Objects() []fyne.CanvasObject {
	return r.objects
}

func (r *curveRenderer) Destroy() {}

// fraction maps a curve value to [0, 1].
func fraction(v float32) float64 {
	return float64((v - curve.MinValue) / (curve.MaxValue - curve.MinValue))
}
