package device

import (
	"context"
	"log"
	"time"
)

// Poll requests an ADC snapshot from dev every interval and delivers it on
// the returned channel, which is closed when ctx is done. Snapshots are
// dropped while the consumer is behind.
func Poll(ctx context.Context, dev Device, interval time.Duration) <-chan RawSample {
	samples := make(chan RawSample, DefaultBufferSize)

	go func() {
		defer close(samples)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				snap, err := dev.Channels()
				if err != nil {
					log.Printf("Failed to read channels: %v", err)
					continue
				}

				select {
				case samples <- RawSample{Timestamp: time.Now(), Channels: snap}:
				case <-ctx.Done():
					return
				default:
					log.Printf("Samples channel full, dropping sample")
				}
			}
		}
	}()

	return samples
}
