package sample

import "math"

// Deviation compares readings with the first one it sees and flags sensors
// that drifted by more than threshold MPa.
type Deviation struct {
	threshold float64
	baseline  *Pressure
}

// NewDeviation creates a deviation check.
func NewDeviation(threshold float64) *Deviation {
	return &Deviation{threshold: threshold}
}

// Check returns the absolute drift from the baseline per sensor and whether
// it exceeds the threshold. The first call records the baseline.
func (d *Deviation) Check(p Pressure) (delta [Sensors]float64, exceeded [Sensors]bool) {
	if d.baseline == nil {
		base := p
		d.baseline = &base
	}

	for i := range delta {
		delta[i] = math.Abs(p.Values[i] - d.baseline.Values[i])
		exceeded[i] = delta[i] > d.threshold
	}
	return delta, exceeded
}

// Baseline returns the recorded baseline.
func (d *Deviation) Baseline() (Pressure, bool) {
	if d.baseline == nil {
		return Pressure{}, false
	}
	return *d.baseline, true
}

// Reset forgets the baseline; the next Check records a new one.
func (d *Deviation) Reset() {
	d.baseline = nil
}
