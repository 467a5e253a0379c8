package metrics

import (
	"sync"
	"time"

	"github.com/cuemby/riskfeed/pkg/log"
	"github.com/cuemby/riskfeed/pkg/types"
)

// DefaultCollectInterval is how often record gauges are refreshed
const DefaultCollectInterval = 15 * time.Second

// StatsSource reports persisted record counts
type StatsSource interface {
	Stats() (types.StoreStats, error)
}

// Collector periodically copies store counts into the record gauges
type Collector struct {
	source   StatsSource
	interval time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewCollector creates a new record collector
func NewCollector(source StatsSource, interval time.Duration) *Collector {
	if interval <= 0 {
		interval = DefaultCollectInterval
	}
	return &Collector{
		source:   source,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start begins collecting metrics
func (c *Collector) Start() {
	ticker := time.NewTicker(c.interval)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer ticker.Stop()

		// Collect immediately on start
		c.Collect()

		for {
			select {
			case <-ticker.C:
				c.Collect()
			case <-c.stopCh:
				return
			}
		}
	}()
}

// Stop stops the collector and waits for the loop to exit
func (c *Collector) Stop() {
	c.stopOnce.Do(func() { close(c.stopCh) })
	c.wg.Wait()
}

// Collect refreshes the record gauges once
func (c *Collector) Collect() {
	stats, err := c.source.Stats()
	if err != nil {
		logger := log.WithComponent("metrics")
		logger.Warn().Err(err).Msg("Failed to collect store stats")
		UpdateComponent(ComponentStorage, false, err.Error())
		return
	}
	UpdateComponent(ComponentStorage, true, "")

	Records.WithLabelValues("cases").Set(float64(stats.Cases))
	Records.WithLabelValues("alerts").Set(float64(stats.Alerts))
	Records.WithLabelValues("transactions").Set(float64(stats.Transactions))
}
