package metrics

import (
	"context"
	"time"

	"arbflow/internal/channel"
	"arbflow/logger"
)

// StartChannelSizeMetrics emits occupancy metrics for the raw and opportunity
// channel buffers. Metrics are logged every `interval` until the context is
// cancelled. When interval <= 0, a one-second cadence is used.
func StartChannelSizeMetrics(ctx context.Context, channels *channel.Channels, interval time.Duration) {
	if channels == nil {
		return
	}
	if interval <= 0 {
		interval = time.Second
	}

	log := logger.GetLogger()
	ticker := time.NewTicker(interval)
	component := "channel_buffers"

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				EmitMetric(log, component, "raw_buffer_length", len(channels.Raw), "gauge", logger.Fields{
					"buffer":   "raw",
					"capacity": cap(channels.Raw),
				})
				EmitMetric(log, component, "opportunity_buffer_length", len(channels.Opportunities), "gauge", logger.Fields{
					"buffer":   "opportunities",
					"capacity": cap(channels.Opportunities),
				})
			}
		}
	}()
}
