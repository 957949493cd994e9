package sample

import (
	"log"
	"slices"

	"github.com/itohio/goadjuster/pkg/config"
	"github.com/itohio/goadjuster/pkg/device"
)

// NewMedianConverter creates a converter that collects batch accepted
// snapshots and emits the per-sensor median of each batch. This rejects the
// spikes a single reading may carry.
func NewMedianConverter(cfg *config.PressureConfig, batch int, bufSize int) Converter {
	if batch <= 0 {
		batch = 1
	}
	if bufSize <= 0 {
		bufSize = 100
	}

	return func(in <-chan device.RawSample) <-chan Pressure {
		out := make(chan Pressure, bufSize)

		go func() {
			defer close(out)

			buffer := make([]Pressure, 0, batch)
			for raw := range in {
				p, ok := convertSample(raw, cfg)
				if !ok {
					continue
				}

				buffer = append(buffer, p)
				if len(buffer) < batch {
					continue
				}

				select {
				case out <- median(buffer):
				default:
					log.Printf("Median converter output channel full")
				}
				buffer = buffer[:0]
			}

			// Input closed, output what is left
			if len(buffer) > 0 {
				select {
				case out <- median(buffer):
				default:
				}
			}
		}()

		return out
	}
}

// median returns the per-sensor median of samples, stamped with the most
// recent timestamp. Even counts average the two middle values.
func median(samples []Pressure) Pressure {
	if len(samples) == 0 {
		return Pressure{}
	}

	result := Pressure{Timestamp: samples[len(samples)-1].Timestamp}
	values := make([]float64, len(samples))
	for ch := range result.Values {
		for i, s := range samples {
			values[i] = s.Values[ch]
		}
		slices.Sort(values)

		mid := len(values) / 2
		if len(values)%2 == 0 {
			result.Values[ch] = (values[mid-1] + values[mid]) / 2
		} else {
			result.Values[ch] = values[mid]
		}
	}
	return result
}
