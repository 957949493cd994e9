package adc

import (
	"context"
	"sync/atomic"
	"time"
)

const (
	// Channels is the number of converted channels.
	Channels = 5
	// MaxValue is the largest 12-bit conversion result.
	MaxValue = 4095
	// DefaultNoiseThreshold is the noise floor applied to reported readings.
	DefaultNoiseThreshold = 100
)

// Snapshot is one reading of every channel.
type Snapshot [Channels]uint16

// Source produces conversion results, standing in for the ADC peripheral.
type Source interface {
	Read(channel int) uint16
}

// Sampler holds the conversion buffer refreshed by the DMA engine.
//
// Each channel is stored atomically, but a Snapshot is not taken atomically
// across channels: a reader may observe some channels from one conversion
// sequence and others from the next. Channels are independent and only
// displayed, so that is accepted.
type Sampler struct {
	buf [Channels]atomic.Uint32
}

// NewSampler returns a sampler with every channel reading zero.
func NewSampler() *Sampler {
	return &Sampler{}
}

// Write stores one conversion result. Out of range channels are ignored.
func (s *Sampler) Write(channel int, value uint16) {
	if channel < 0 || channel >= Channels {
		return
	}
	s.buf[channel].Store(uint32(value))
}

// Snapshot returns the current buffer contents.
func (s *Sampler) Snapshot() Snapshot {
	var snap Snapshot
	for i := range snap {
		snap[i] = uint16(s.buf[i].Load())
	}
	return snap
}

// Run refreshes every channel from src at the given interval until ctx is done,
// the way a circular DMA transfer keeps the buffer current.
func (s *Sampler) Run(ctx context.Context, src Source, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for ch := range Channels {
				s.Write(ch, src.Read(ch))
			}
		}
	}
}

// Filter reports readings below threshold as zero.
func Filter(snap Snapshot, threshold uint16) Snapshot {
	for i, v := range snap {
		if v < threshold {
			snap[i] = 0
		}
	}
	return snap
}
