package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"slices"
	"strings"
	"sync"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"

	"github.com/itohio/goadjuster/pkg/config"
	"github.com/itohio/goadjuster/pkg/device"
	"github.com/itohio/goadjuster/pkg/sample"
	"github.com/itohio/goadjuster/pkg/scope"
)

// historyLimit bounds the readings kept for the scope.
const historyLimit = 10000

var errNotConnected = errors.New("not connected")

// measurementChain tracks the goroutines reading the device for graceful
// shutdown.
type measurementChain struct {
	cancel context.CancelFunc
	done   chan struct{} // Closed when the reading goroutine exits
}

// appState holds the application state. Fields other than history and check
// belong to the Fyne thread.
type appState struct {
	cfg    *config.Config
	target string
	window fyne.Window

	device  *device.Client
	info    device.Info
	offsets sample.Offsets
	chain   *measurementChain

	scopeWidget *scope.ScopeWidget
	curves      *curveEditor
	connectBtn  *widget.Button
	zeroBtn     *widget.Button
	checkBtn    *widget.Button
	duration    *widget.Entry

	mu      sync.Mutex
	history []sample.Pressure
	check   *check
}

// startMeasurementChain polls the device and feeds zeroed readings to the
// scope and the running check.
func (s *appState) startMeasurementChain() {
	ctx, cancel := context.WithCancel(context.Background())
	chain := &measurementChain{cancel: cancel, done: make(chan struct{})}

	raw := device.Poll(ctx, s.device, s.cfg.Client.PollInterval)
	readings := sample.NewPipeline(&s.cfg.Pressure, s.offsets, 0)(raw)

	go func() {
		defer close(chain.done)
		for p := range readings {
			s.onReading(p)
		}
	}()

	s.chain = chain
}

// closeMeasurementChain stops polling and waits for the pipeline to drain.
func closeMeasurementChain(chain *measurementChain) {
	if chain == nil {
		return
	}
	chain.cancel()
	<-chain.done
}

func (s *appState) onReading(p sample.Pressure) {
	s.mu.Lock()
	s.history = appendHistory(s.history, p, historyLimit)
	snapshot := slices.Clone(s.history)

	var finished *check
	if s.check != nil && s.check.add(p) {
		finished, s.check = s.check, nil
	}
	s.mu.Unlock()

	fyne.Do(func() {
		s.scopeWidget.UpdateData(snapshot)
	})

	if finished != nil {
		results, err := finished.finish()
		fyne.Do(func() {
			s.checkBtn.Enable()
			if err != nil {
				dialog.ShowError(fmt.Errorf("check failed: %w", err), s.window)
				return
			}
			showResults(s.window, results, finished.history)
		})
	}
}

func (s *appState) clearHistory() {
	s.mu.Lock()
	s.history = s.history[:0]
	s.mu.Unlock()
	s.scopeWidget.Clear()
}

// abortCheck drops a running check, e.g. on disconnect.
func (s *appState) abortCheck(reason string) {
	s.mu.Lock()
	c := s.check
	s.check = nil
	s.mu.Unlock()

	if c != nil {
		c.abort(reason)
	}
	s.checkBtn.Enable()
}

// handleConnect connects to or disconnects from the configured target.
func handleConnect(s *appState) {
	if s.device != nil {
		disconnect(s)
		return
	}

	dev, err := device.Open(s.target, s.cfg)
	if err != nil {
		dialog.ShowError(fmt.Errorf("failed to connect to %s: %w", s.target, err), s.window)
		return
	}
	info, err := dev.Handshake()
	if err != nil {
		dev.Close()
		dialog.ShowError(fmt.Errorf("handshake with %s failed: %w", s.target, err), s.window)
		return
	}
	fmt.Printf("Connected to %s\n", s.target)

	s.device = dev
	s.info = info
	s.offsets = sample.Offsets{}
	s.curves.setCurves(info.Curves)
	s.clearHistory()
	s.zeroBtn.Enable()
	s.checkBtn.Enable()
	s.startMeasurementChain()
}

func disconnect(s *appState) {
	s.abortCheck("disconnected")
	closeMeasurementChain(s.chain)
	s.chain = nil

	if err := s.device.Close(); err != nil {
		log.Printf("Failed to close device: %v", err)
	}
	s.device = nil
	s.info = device.Info{}
	s.curves.setCurves(nil)
	s.zeroBtn.Disable()
	s.checkBtn.Disable()
	fmt.Printf("Disconnected from %s\n", s.target)
}

// handleCalibrate pauses the measurement chain, takes new zero offsets and
// restarts the chain with them.
func handleCalibrate(s *appState) {
	if s.device == nil {
		dialog.ShowError(errNotConnected, s.window)
		return
	}

	s.abortCheck("calibration")
	closeMeasurementChain(s.chain)
	s.chain = nil
	s.zeroBtn.Disable()
	s.checkBtn.Disable()

	dev, cfg := s.device, s.cfg
	batch := sample.DefaultCalibrationBatch
	timeout := time.Duration(batch)*cfg.Client.PollInterval*4 + cfg.Client.Timeout

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		offsets, err := sample.Calibrate(ctx, dev, &cfg.Pressure, cfg.Client.PollInterval, batch)

		fyne.Do(func() {
			s.zeroBtn.Enable()
			s.checkBtn.Enable()
			if s.device != dev {
				return
			}
			if err != nil {
				dialog.ShowError(fmt.Errorf("calibration failed: %w", err), s.window)
			} else {
				s.offsets = offsets
				log.Printf("Zero offsets (MPa): %s", formatOffsets(offsets))
			}
			s.clearHistory()
			s.startMeasurementChain()
		})
	}()
}

// handleCheck starts a timed check for the duration entered in the toolbar.
func handleCheck(s *appState) {
	if s.device == nil {
		dialog.ShowError(errNotConnected, s.window)
		return
	}

	duration, err := time.ParseDuration(s.duration.Text)
	if err != nil || duration <= 0 {
		dialog.ShowError(fmt.Errorf("invalid check duration %q", s.duration.Text), s.window)
		return
	}

	c, err := startCheck(s.cfg.Client.RecordDir, s.cfg.Pressure.Threshold, duration, time.Now())
	if err != nil {
		dialog.ShowError(err, s.window)
		return
	}

	s.mu.Lock()
	s.check = c
	s.mu.Unlock()
	s.checkBtn.Disable()
	fmt.Printf("Recording check to %s\n", c.history)
}

func formatOffsets(o sample.Offsets) string {
	parts := make([]string, len(o))
	for i, v := range o {
		parts[i] = fmt.Sprintf("CH%d %.3f", i+1, v)
	}
	return strings.Join(parts, ", ")
}
