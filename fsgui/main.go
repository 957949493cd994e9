// Command fsgui plots the pressure transducers of an adjuster, runs timed
// leak checks and edits its calibration curves.
package main

import (
	"flag"
	"fmt"
	"log"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"github.com/itohio/goadjuster/pkg/config"
	"github.com/itohio/goadjuster/pkg/device"
	"github.com/itohio/goadjuster/pkg/sample"
	"github.com/itohio/goadjuster/pkg/scope"
)

func main() {
	var (
		portFlag     = flag.String("p", "", "Serial port or ws:// URL override")
		configFlag   = flag.String("config", "config.yaml", "Configuration file path")
		loopbackFlag = flag.Bool("loopback", false, "Use an in-process device backed by the configured flash image")
		durationFlag = flag.String("duration", "60s", "Default check duration")
	)
	flag.Parse()

	cfg, err := config.Load(*configFlag)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	target := cfg.Serial.Port
	switch {
	case *loopbackFlag:
		target = device.TargetLoopback
	case *portFlag != "":
		target = *portFlag
	}

	application := app.NewWithID("com.itohio.goadjuster")

	window := application.NewWindow("Pressure Adjuster")
	window.Resize(fyne.NewSize(1200, 800))
	window.CenterOnScreen()

	state := &appState{
		cfg:         cfg,
		target:      target,
		window:      window,
		scopeWidget: scope.New(scope.DefaultWindow),
	}
	state.duration = widget.NewEntry()
	state.duration.SetText(*durationFlag)
	state.curves = newCurveEditor(state)

	tabs := container.NewAppTabs(
		container.NewTabItemWithIcon("Pressure", theme.VisibilityIcon(), state.scopeWidget),
		container.NewTabItemWithIcon("Curves", theme.DocumentCreateIcon(), state.curves.content()),
	)

	window.SetContent(container.NewBorder(createToolbar(state), nil, nil, nil, tabs))
	window.SetOnClosed(func() {
		if state.device != nil {
			disconnect(state)
		}
	})
	window.ShowAndRun()
}

// createToolbar creates the Connect, Zero and Check controls.
func createToolbar(state *appState) fyne.CanvasObject {
	state.connectBtn = widget.NewButtonWithIcon("", theme.LoginIcon(), func() {
		handleConnect(state)
	})

	state.zeroBtn = widget.NewButtonWithIcon("Zero", theme.ViewRefreshIcon(), func() {
		handleCalibrate(state)
	})
	state.zeroBtn.Disable()

	state.checkBtn = widget.NewButtonWithIcon("Check", theme.MediaRecordIcon(), func() {
		handleCheck(state)
	})
	state.checkBtn.Disable()

	left := container.NewHBox(state.connectBtn, state.zeroBtn)
	right := container.NewHBox(widget.NewLabel("Duration"), state.duration, state.checkBtn)
	return container.NewBorder(nil, nil, left, right, nil)
}

// showResults shows the pass/fail table of a finished check.
func showResults(window fyne.Window, results [sample.Sensors]sample.Result, history string) {
	cells := resultCells(results)
	table := widget.NewTable(
		func() (int, int) { return len(cells), len(cells[0]) },
		func() fyne.CanvasObject { return widget.NewLabel("Channel 0") },
		func(id widget.TableCellID, o fyne.CanvasObject) {
			o.(*widget.Label).SetText(cells[id.Row][id.Col])
		},
	)
	for col := range cells[0] {
		table.SetColumnWidth(col, 90)
	}

	content := container.NewBorder(nil, widget.NewLabel(fmt.Sprintf("Saved to %s", history)), nil, nil, table)
	d := dialog.NewCustom("Check results", "Close", content, window)
	d.Resize(fyne.NewSize(520, 260))
	d.Show()
}
