package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/itohio/goadjuster/pkg/device"
	"github.com/itohio/goadjuster/pkg/sample"
)

// measure polls the connected device until ctx is done and hands every zeroed
// pressure reading to fn.
func measure(ctx context.Context, s *Shell, fn func(p sample.Pressure)) {
	cfg := s.Config
	raw := device.Poll(ctx, s.Device, cfg.Client.PollInterval)
	for p := range sample.NewPipeline(&cfg.Pressure, s.Offsets, 0)(raw) {
		fn(p)
	}
}

// calibrate takes the median of batch snapshots as the new zero offsets and
// restarts drift tracking.
func calibrate(s *Shell, batch int) (sample.Offsets, error) {
	cfg := s.Config
	timeout := time.Duration(batch)*cfg.Client.PollInterval*4 + cfg.Client.Timeout
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	offsets, err := sample.Calibrate(ctx, s.Device, &cfg.Pressure, cfg.Client.PollInterval, batch)
	if err != nil {
		return sample.Offsets{}, fmt.Errorf("calibration failed within %v: %w", timeout, err)
	}

	s.Offsets = offsets
	s.Deviation.Reset()
	return offsets, nil
}

func formatResults(results [sample.Sensors]sample.Result) string {
	var b strings.Builder
	b.WriteString("Channel  Initial    Final     Delta  Status")
	for _, r := range results {
		status := "PASS"
		if !r.Pass {
			status = "FAIL"
		}
		fmt.Fprintf(&b, "\nCH%d     %8.2f %8.2f %+9.3f  %s", r.Sensor, r.Initial, r.Final, r.Delta, status)
	}
	return b.String()
}
