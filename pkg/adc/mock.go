package adc

import (
	"math"
	"time"

	"github.com/itohio/goadjuster/pkg/config"
)

// Mock simulates the sensor front end: every channel oscillates around its
// configured level with a small amount of pseudo noise.
type Mock struct {
	cfg   config.ADCMockConfig
	start time.Time
	now   func() time.Time
}

var _ Source = (*Mock)(nil)

// NewMock creates a simulated source.
func NewMock(cfg *config.ADCMockConfig) *Mock {
	if cfg == nil {
		def := config.Default().ADC.Mock
		cfg = &def
	}
	m := &Mock{
		cfg: *cfg,
		now: time.Now,
	}
	m.start = m.now()
	return m
}

// Read implements Source.
func (m *Mock) Read(channel int) uint16 {
	var level float64
	if channel >= 0 && channel < len(m.cfg.Levels) {
		level = float64(m.cfg.Levels[channel])
	}

	elapsed := m.now().Sub(m.start)
	value := level
	if m.cfg.Period > 0 {
		phase := 2*math.Pi*elapsed.Seconds()/m.cfg.Period.Seconds() + float64(channel)*math.Pi/Channels
		value += m.cfg.Amplitude * math.Sin(phase)
	}

	// Pseudo noise, same shape as the bench simulator.
	ns := float64(elapsed.Nanoseconds())
	value += (math.Sin(ns*0.001+float64(channel)) + math.Cos(ns*0.0013)) * m.cfg.Noise * 0.5

	if value < 0 {
		return 0
	}
	if value > MaxValue {
		return MaxValue
	}
	return uint16(value)
}
