package channel

import (
	"context"
	"sync"

	"arbflow/logger"
	"arbflow/models"
)

type ChannelStats struct {
	RawSent    int64
	OppSent    int64
	RawDropped int64
	OppDropped int64
}

// Channels wires the pipeline stages together: raw exchange payloads flow
// from the readers to the normalizer, ranked opportunity batches from the
// scan runner to the opportunity writer.
type Channels struct {
	Raw           chan models.RawTickerMessage
	Opportunities chan models.OpportunityBatch

	stats      ChannelStats
	statsMutex sync.RWMutex
	log        *logger.Log
}

func NewChannels(rawBufferSize, oppBufferSize int) *Channels {
	log := logger.GetLogger()
	c := &Channels{
		Raw:           make(chan models.RawTickerMessage, rawBufferSize),
		Opportunities: make(chan models.OpportunityBatch, oppBufferSize),
		log:           log,
	}

	log.WithComponent("channels").WithFields(logger.Fields{
		"raw_buffer_size": rawBufferSize,
		"opp_buffer_size": oppBufferSize,
	}).Info("channels initialized")

	return c
}

func (c *Channels) Close() {
	close(c.Raw)
	close(c.Opportunities)
	c.log.WithComponent("channels").Info("channels closed")
}

func (c *Channels) SendRaw(ctx context.Context, msg models.RawTickerMessage) bool {
	select {
	case c.Raw <- msg:
		c.statsMutex.Lock()
		c.stats.RawSent++
		c.statsMutex.Unlock()
		return true
	case <-ctx.Done():
		return false
	default:
		c.statsMutex.Lock()
		c.stats.RawDropped++
		c.statsMutex.Unlock()
		return false
	}
}

func (c *Channels) SendOpportunities(ctx context.Context, batch models.OpportunityBatch) bool {
	select {
	case c.Opportunities <- batch:
		c.statsMutex.Lock()
		c.stats.OppSent++
		c.statsMutex.Unlock()
		return true
	case <-ctx.Done():
		return false
	default:
		c.statsMutex.Lock()
		c.stats.OppDropped++
		c.statsMutex.Unlock()
		return false
	}
}

func (c *Channels) GetStats() ChannelStats {
	c.statsMutex.RLock()
	defer c.statsMutex.RUnlock()
	return c.stats
}
