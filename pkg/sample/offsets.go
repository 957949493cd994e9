package sample

import (
	"log"
	"time"
)

// Offsets are the per-sensor zero readings subtracted from later readings.
type Offsets [Sensors]float64

// Apply returns p with the offsets subtracted.
func (o Offsets) Apply(p Pressure) Pressure {
	for i := range p.Values {
		p.Values[i] -= o[i]
	}
	return p
}

// Filter is a function type that transforms a Pressure channel.
type Filter func(in <-chan Pressure) <-chan Pressure

// NewZeroFilter creates a filter that subtracts offsets from every reading.
func NewZeroFilter(offsets Offsets, bufSize int) Filter {
	if bufSize <= 0 {
		bufSize = 100
	}

	return func(in <-chan Pressure) <-chan Pressure {
		out := make(chan Pressure, bufSize)

		go func() {
			defer close(out)

			for p := range in {
				select {
				case out <- offsets.Apply(p):
				case <-time.After(time.Second):
					log.Printf("Zero filter output channel full, dropping sample")
				}
			}
		}()

		return out
	}
}
