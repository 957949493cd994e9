package main

import (
	"fmt"
	"strconv"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"github.com/itohio/goadjuster/pkg/curve"
	"github.com/itohio/goadjuster/pkg/scope"
)

// curveEditor reads, plots and writes the control points of one curve.
type curveEditor struct {
	state *appState

	selector *widget.Select
	entries  [curve.NumPoints]*widget.Entry
	plot     *scope.CurveWidget
	readBtn  *widget.Button
	writeBtn *widget.Button
}

func newCurveEditor(state *appState) *curveEditor {
	e := &curveEditor{state: state, plot: scope.NewCurve()}

	e.selector = widget.NewSelect(nil, func(string) { e.read() })
	e.selector.PlaceHolder = "Curve"
	for i := range e.entries {
		e.entries[i] = widget.NewEntry()
	}
	e.readBtn = widget.NewButtonWithIcon("Read", theme.DownloadIcon(), e.read)
	e.writeBtn = widget.NewButtonWithIcon("Write", theme.UploadIcon(), e.write)
	e.setCurves(nil)
	return e
}

// content lays out the point entries as input/output pairs beside the plot.
func (e *curveEditor) content() fyne.CanvasObject {
	form := container.NewGridWithColumns(3, widget.NewLabel(""), widget.NewLabel("Input"), widget.NewLabel("Output"))
	for i := 0; i < curve.NumPoints; i += 2 {
		form.Add(widget.NewLabel(fmt.Sprintf("P%d", i/2+1)))
		form.Add(e.entries[i])
		form.Add(e.entries[i+1])
	}

	left := container.NewVBox(e.selector, form, container.NewHBox(e.readBtn, e.writeBtn))
	return container.NewBorder(nil, nil, left, nil, e.plot)
}

// setCurves offers names for editing; none disables the editor.
func (e *curveEditor) setCurves(names []string) {
	e.selector.Options = names
	e.selector.ClearSelected()
	e.plot.SetPoints("", curve.Points{})

	if len(names) == 0 {
		e.selector.Disable()
		e.readBtn.Disable()
		e.writeBtn.Disable()
		return
	}
	e.selector.Enable()
	e.readBtn.Enable()
	e.writeBtn.Enable()
}

// read loads the selected curve from the device.
func (e *curveEditor) read() {
	name := e.selector.Selected
	if name == "" || e.state.device == nil {
		return
	}

	points, err := e.state.device.Points(name)
	if err != nil {
		dialog.ShowError(fmt.Errorf("failed to read %s: %w", name, err), e.state.window)
		return
	}
	e.show(name, points)
}

// write stores the entered points on the device and reads them back.
func (e *curveEditor) write() {
	name := e.selector.Selected
	if name == "" || e.state.device == nil {
		return
	}

	points, err := curve.ParsePoints(e.fields())
	if err != nil {
		dialog.ShowError(err, e.state.window)
		return
	}
	if err := e.state.device.SetPoints(name, points); err != nil {
		dialog.ShowError(fmt.Errorf("failed to write %s: %w", name, err), e.state.window)
		return
	}
	e.read()
}

func (e *curveEditor) fields() []string {
	fields := make([]string, len(e.entries))
	for i, entry := range e.entries {
		fields[i] = entry.Text
	}
	return fields
}

func (e *curveEditor) show(name string, points curve.Points) {
	for i, v := range points {
		e.entries[i].SetText(strconv.FormatFloat(float64(v), 'f', -1, 32))
	}
	e.plot.SetPoints(name, points)
}
