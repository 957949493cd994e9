package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itohio/goadjuster/pkg/config"
	"github.com/itohio/goadjuster/pkg/curve"
	"github.com/itohio/goadjuster/pkg/device"
	"github.com/itohio/goadjuster/pkg/sample"
)

func TestFormatPoints(t *testing.T) {
	got := formatPoints("F-H", curve.Defaults()[curve.FrontBack])
	assert.Equal(t, "F-H   (0.00, 0.00) (25.00, 25.00) (50.00, 50.00) (75.00, 75.00) (100.00, 100.00)", got)
}

func TestCurveFile(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "curves.yaml")

	f := NewCurveFile()
	f.Set("F-H", curve.Defaults()[curve.FrontBack])
	f.Set("ZBL2", curve.Points{0, 0, 25, 12.5, 50, 33.33, 75, 80, 100, 100})
	require.NoError(t, f.Save(filename))

	loaded, err := LoadCurveFile(filename)
	require.NoError(t, err)

	curves, err := loaded.Points()
	require.NoError(t, err)
	assert.Len(t, curves, 2)
	assert.Equal(t, curve.Defaults()[curve.FrontBack], curves[curve.FrontBack])
	assert.Equal(t, curve.Points{0, 0, 25, 12.5, 50, 33.33, 75, 80, 100, 100}, curves[curve.Thumbwheel2])
}

func TestCurveFile_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"unknown curve", "curves:\n  XYZ: [0, 0, 25, 25, 50, 50, 75, 75, 100, 100]\n"},
		{"name with suffix", "curves:\n  F-Hx: [0, 0, 25, 25, 50, 50, 75, 75, 100, 100]\n"},
		{"too few points", "curves:\n  F-H: [0, 0, 25]\n"},
		{"out of range", "curves:\n  L-R: [0, 0, 25, 25, 50, 500, 75, 75, 100, 100]\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			filename := filepath.Join(t.TempDir(), "curves.yaml")
			require.NoError(t, os.WriteFile(filename, []byte(tt.content), 0644))

			f, err := LoadCurveFile(filename)
			require.NoError(t, err)
			_, err = f.Points()
			assert.Error(t, err)
		})
	}
}

func TestLoadCurveFile_Missing(t *testing.T) {
	_, err := LoadCurveFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoopback_PersistsToImage(t *testing.T) {
	cfg := config.Default()
	cfg.Flash.Image = filepath.Join(t.TempDir(), "flash.bin")

	want := curve.Points{0, 0, 25, 12.5, 50, 33.33, 75, 80, 100, 100}

	client, err := device.OpenLoopback(cfg)
	require.NoError(t, err)
	require.NoError(t, client.SetPoints("L-R", want))
	require.NoError(t, client.Close())

	client, err = device.OpenLoopback(cfg)
	require.NoError(t, err)
	defer client.Close()

	got, err := client.Points("L-R")
	require.NoError(t, err)
	assert.Equal(t, want, got)

	got, err = client.Points("F-H")
	require.NoError(t, err)
	assert.Equal(t, curve.Defaults()[curve.FrontBack], got)
}

func TestPushCurves(t *testing.T) {
	cfg := config.Default()
	cfg.Flash.Image = filepath.Join(t.TempDir(), "flash.bin")

	client, err := device.OpenLoopback(cfg)
	require.NoError(t, err)
	defer client.Close()

	zbl := curve.Points{0, 0, 25, 40, 50, 60, 75, 80, 100, 100}
	n, err := pushCurves(client, map[curve.ID]curve.Points{curve.Thumbwheel2: zbl})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := client.Points(curve.Thumbwheel2.String())
	require.NoError(t, err)
	assert.Equal(t, zbl, got)

	bad := curve.Points{0, 0, 25, 400, 50, 60, 75, 80, 100, 100}
	n, err = pushCurves(client, map[curve.ID]curve.Points{curve.FrontBack: zbl, curve.LeftRight: bad})
	assert.Error(t, err)
	assert.Equal(t, 1, n, "stops at the first rejected curve")
}

func TestLoopback_Plain(t *testing.T) {
	cfg := config.Default()
	cfg.Device.Variant = config.VariantPlain

	client, err := device.OpenLoopback(cfg)
	require.NoError(t, err)
	defer client.Close()

	info, err := client.Handshake()
	require.NoError(t, err)
	assert.True(t, info.Plain)

	_, err = client.Channels()
	assert.NoError(t, err)
}

// newPlainShell returns a shell connected to an in-process plain device. The
// device serves the same snapshot on every request.
func newPlainShell(t *testing.T) *Shell {
	t.Helper()
	cfg := config.Default()
	cfg.Device.Variant = config.VariantPlain
	cfg.Client.PollInterval = 5 * time.Millisecond
	cfg.Pressure.Batch = 2

	dev, err := device.OpenLoopback(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { dev.Close() })

	return &Shell{
		Config:    cfg,
		Device:    dev,
		Deviation: sample.NewDeviation(cfg.Pressure.Threshold),
	}
}

func collect(t *testing.T, s *Shell, d time.Duration) []sample.Pressure {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()

	var got []sample.Pressure
	measure(ctx, s, func(p sample.Pressure) {
		got = append(got, p)
	})
	return got
}

func TestMeasure(t *testing.T) {
	s := newPlainShell(t)

	got := collect(t, s, 200*time.Millisecond)
	require.NotEmpty(t, got)
	for _, p := range got {
		for i, v := range p.Values {
			assert.Greater(t, v, 0.0, "sensor %d", i+1)
		}
	}
}

func TestCalibrate_ZeroesReadings(t *testing.T) {
	s := newPlainShell(t)
	s.Deviation.Check(sample.Pressure{Values: [sample.Sensors]float64{100, 100, 100, 100}})

	offsets, err := calibrate(s, 3)
	require.NoError(t, err)
	for i, v := range offsets {
		assert.Greater(t, v, 0.0, "sensor %d", i+1)
	}
	assert.Equal(t, offsets, s.Offsets)

	_, ok := s.Deviation.Baseline()
	assert.False(t, ok, "calibration restarts drift tracking")

	got := collect(t, s, 200*time.Millisecond)
	require.NotEmpty(t, got)
	for _, p := range got {
		assert.InDeltaSlice(t, make([]float64, sample.Sensors), p.Values[:], 1e-9)
	}
}

func TestRecordedCheck(t *testing.T) {
	s := newPlainShell(t)

	rec := sample.NewRecording(s.Config.Pressure.Threshold)
	for _, p := range collect(t, s, 200*time.Millisecond) {
		rec.Add(p)
	}
	require.Positive(t, rec.Len())

	results, err := rec.Results()
	require.NoError(t, err)
	for _, r := range results {
		assert.True(t, r.Pass, "CH%d", r.Sensor)
		assert.Zero(t, r.Delta)
	}

	filename := filepath.Join(t.TempDir(), "check.txt")
	require.NoError(t, rec.Save(filename))

	data, err := os.ReadFile(filename)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	assert.Equal(t, "Time(s)\tChannel 1\tChannel 2\tChannel 3\tChannel 4", lines[0])
	assert.Len(t, lines, rec.Len()+1)
}

func TestFormatResults(t *testing.T) {
	got := formatResults([sample.Sensors]sample.Result{
		{Sensor: 1, Initial: 10, Final: 12, Delta: 2, Pass: true},
		{Sensor: 2, Initial: 10, Final: 4, Delta: -6, Pass: false},
		{Sensor: 3, Pass: true},
		{Sensor: 4, Pass: true},
	})

	lines := strings.Split(got, "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, "CH1        10.00    12.00    +2.000  PASS", lines[1])
	assert.Equal(t, "CH2        10.00     4.00    -6.000  FAIL", lines[2])
}
