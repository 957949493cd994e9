package sample

import (
	"log"
	"time"

	"github.com/itohio/goadjuster/pkg/config"
	"github.com/itohio/goadjuster/pkg/device"
)

// Sensors is the number of pressure transducers, wired to CH1..CH4. CH0
// carries the supply voltage.
const Sensors = 4

// Pressure represents a processed snapshot with physical values.
type Pressure struct {
	Timestamp time.Time
	Values    [Sensors]float64 // MPa
}

// Converter is a function type that converts RawSample channel to Pressure channel.
type Converter func(in <-chan device.RawSample) <-chan Pressure

// NewConverter creates a converter function that transforms every accepted
// RawSample to Pressure. Snapshots rejected by the voltage gate are skipped.
func NewConverter(cfg *config.PressureConfig, bufSize int) Converter {
	if bufSize <= 0 {
		bufSize = 100
	}

	return func(in <-chan device.RawSample) <-chan Pressure {
		out := make(chan Pressure, bufSize)

		go func() {
			defer close(out)

			for raw := range in {
				p, ok := convertSample(raw, cfg)
				if !ok {
					continue
				}

				select {
				case out <- p:
				case <-time.After(time.Second):
					log.Printf("Converter output channel full, dropping sample")
				}
			}
		}()

		return out
	}
}

// NewPipeline chains the converter selected by cfg.Batch with a zero filter
// subtracting offsets. A batch of 1 passes every accepted snapshot through.
func NewPipeline(cfg *config.PressureConfig, offsets Offsets, bufSize int) Converter {
	convert := NewConverter(cfg, bufSize)
	if cfg.Batch > 1 {
		convert = NewMedianConverter(cfg, cfg.Batch, bufSize)
	}
	zero := NewZeroFilter(offsets, bufSize)

	return func(in <-chan device.RawSample) <-chan Pressure {
		return zero(convert(in))
	}
}

// convertSample converts a RawSample to Pressure. It reports false when CH0
// is above the voltage gate.
func convertSample(raw device.RawSample, cfg *config.PressureConfig) (Pressure, bool) {
	if raw.Channels[0] > cfg.VoltageGate {
		return Pressure{}, false
	}

	p := Pressure{Timestamp: raw.Timestamp}
	for i := range p.Values {
		v := adcToVoltage(raw.Channels[i+1], cfg.ADCMax, cfg.VRef)
		p.Values[i] = currentToPressure(voltageToCurrent(v, cfg.VRef, cfg.CurrentMax), cfg.CurrentMax, cfg.PressureMax)
	}
	return p, true
}

// adcToVoltage converts a 12-bit ADC reading to voltage.
func adcToVoltage(adc uint16, adcMax, vref float64) float64 {
	return (float64(adc) / adcMax) * vref
}

// voltageToCurrent converts the shunt voltage to loop current (mA).
func voltageToCurrent(v, vref, currentMax float64) float64 {
	return (v / vref) * currentMax
}

// currentToPressure converts loop current (mA) to pressure (MPa).
func currentToPressure(i, currentMax, pressureMax float64) float64 {
	return (i / currentMax) * pressureMax
}
