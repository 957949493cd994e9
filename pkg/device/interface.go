package device

import (
	"time"

	"github.com/itohio/goadjuster/pkg/adc"
	"github.com/itohio/goadjuster/pkg/curve"
)

// Info is what a device reports on connect.
type Info struct {
	Plain  bool     // Device only serves ADC snapshots
	Curves []string // Curve names served by a curve device
}

// RawSample is one ADC snapshot read from the device.
type RawSample struct {
	Timestamp time.Time
	Channels  adc.Snapshot
}

// Device defines the interface for adjuster devices (serial, websocket or
// in-process).
type Device interface {
	Handshake() (Info, error)
	Points(name string) (curve.Points, error)
	SetPoints(name string, points curve.Points) error
	Channels() (adc.Snapshot, error)
	Close() error
}

// Ensure Client implements Device.
var _ Device = (*Client)(nil)
