package sample

import (
	"context"
	"time"

	"github.com/itohio/goadjuster/pkg/config"
	"github.com/itohio/goadjuster/pkg/device"
)

// DefaultCalibrationBatch is the number of accepted snapshots whose median
// becomes the zero offsets.
const DefaultCalibrationBatch = 10

// Calibrate polls dev every interval and returns the median of batch accepted
// snapshots as zero offsets. When ctx ends first, the median of what was read
// is used; ErrNoData is returned when nothing was.
func Calibrate(ctx context.Context, dev device.Device, cfg *config.PressureConfig, interval time.Duration, batch int) (Offsets, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	raw := device.Poll(ctx, dev, interval)
	p, ok := <-NewMedianConverter(cfg, batch, 1)(raw)
	if !ok {
		return Offsets{}, ErrNoData
	}
	return Offsets(p.Values), nil
}
