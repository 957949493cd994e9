package sample

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itohio/goadjuster/pkg/adc"
	"github.com/itohio/goadjuster/pkg/config"
	"github.com/itohio/goadjuster/pkg/device"
)

func testConfig() *config.PressureConfig {
	cfg := config.Default().Pressure
	return &cfg
}

func TestADCToVoltage(t *testing.T) {
	tests := []struct {
		name string
		adc  uint16
		want float64
	}{
		{"zero ADC", 0, 0.0},
		{"max ADC", 4095, 3.0},
		{"half ADC", 2047, 1.5},
		{"quarter ADC", 1024, 0.75},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := adcToVoltage(tt.adc, 4095, 3.0)
			assert.InDelta(t, tt.want, got, 0.01)
		})
	}
}

func TestConversionChain(t *testing.T) {
	// Full scale: 3.0 V -> 20 mA -> 40 MPa
	assert.InDelta(t, 20.0, voltageToCurrent(3.0, 3.0, 20), 1e-9)
	assert.InDelta(t, 40.0, currentToPressure(20, 20, 40), 1e-9)

	// 4 mA live zero -> 8 MPa
	assert.InDelta(t, 8.0, currentToPressure(4, 20, 40), 1e-9)
	assert.InDelta(t, 0.6, adcToVoltage(819, 4095, 3.0), 1e-9)
	assert.InDelta(t, 4.0, voltageToCurrent(0.6, 3.0, 20), 1e-9)
}

func TestConvertSample(t *testing.T) {
	cfg := testConfig()
	now := time.Now()

	tests := []struct {
		name   string
		raw    adc.Snapshot
		want   [Sensors]float64
		wantOK bool
	}{
		{
			name:   "full scale",
			raw:    adc.Snapshot{800, 4095, 0, 2048, 1024},
			want:   [Sensors]float64{40, 0, 20.005, 10.002},
			wantOK: true,
		},
		{
			name:   "at voltage gate",
			raw:    adc.Snapshot{1000, 4095, 4095, 4095, 4095},
			want:   [Sensors]float64{40, 40, 40, 40},
			wantOK: true,
		},
		{
			name:   "above voltage gate",
			raw:    adc.Snapshot{1001, 4095, 4095, 4095, 4095},
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := convertSample(device.RawSample{Timestamp: now, Channels: tt.raw}, cfg)
			require.Equal(t, tt.wantOK, ok)
			if !ok {
				return
			}
			assert.Equal(t, now, got.Timestamp)
			for i := range tt.want {
				assert.InDelta(t, tt.want[i], got.Values[i], 0.01, "sensor %d", i)
			}
		})
	}
}

func TestConverter(t *testing.T) {
	converter := NewConverter(testConfig(), 10)
	input := make(chan device.RawSample, 10)
	output := converter(input)

	now := time.Now()
	input <- device.RawSample{Timestamp: now, Channels: adc.Snapshot{0, 4095, 4095, 4095, 4095}}
	input <- device.RawSample{Timestamp: now, Channels: adc.Snapshot{2000, 4095, 4095, 4095, 4095}}
	input <- device.RawSample{Timestamp: now, Channels: adc.Snapshot{0, 0, 0, 0, 0}}
	close(input)

	var got []Pressure
	for p := range output {
		got = append(got, p)
	}

	require.Len(t, got, 2, "gated snapshot is dropped")
	assert.InDelta(t, 40.0, got[0].Values[0], 1e-9)
	assert.InDelta(t, 0.0, got[1].Values[0], 1e-9)
}

// TestConverter_GracefulShutdown tests that converter closes output channel
// when input channel is closed.
func TestConverter_GracefulShutdown(t *testing.T) {
	converter := NewConverter(testConfig(), 10)
	input := make(chan device.RawSample, 10)
	output := converter(input)

	done := make(chan int)
	go func() {
		count := 0
		for range output {
			count++
		}
		done <- count
	}()

	for i := 0; i < 3; i++ {
		input <- device.RawSample{Channels: adc.Snapshot{0, 2048, 1024, 0, 0}}
	}
	close(input)

	select {
	case count := <-done:
		assert.Equal(t, 3, count)
	case <-time.After(2 * time.Second):
		t.Fatal("Output channel did not close within timeout")
	}
}

func TestPipeline(t *testing.T) {
	full := adc.Snapshot{0, 4095, 4095, 4095, 4095}

	tests := []struct {
		name  string
		batch int
		want  int
	}{
		{"every snapshot", 1, 4},
		{"median of two", 2, 2},
		{"median with remainder", 3, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			cfg.Batch = tt.batch

			input := make(chan device.RawSample, 10)
			output := NewPipeline(cfg, Offsets{40, 30, 20, 10}, 10)(input)
			for i := 0; i < 4; i++ {
				input <- device.RawSample{Timestamp: time.Now(), Channels: full}
			}
			close(input)

			var got []Pressure
			for p := range output {
				got = append(got, p)
			}
			require.Len(t, got, tt.want)
			for _, p := range got {
				assert.InDeltaSlice(t, []float64{0, 10, 20, 30}, p.Values[:], 1e-9)
			}
		})
	}
}
