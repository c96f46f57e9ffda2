package metrics

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// DepthFunc returns the current length of every registered queue.
type DepthFunc func(ctx context.Context) (map[string]int64, error)

// DepthCollector reports queue depths by asking the broker at scrape time,
// so the numbers stay correct when several service instances share a broker.
type DepthCollector struct {
	depths  DepthFunc
	timeout time.Duration
	logger  *slog.Logger

	depthDesc  *prometheus.Desc
	queuesDesc *prometheus.Desc
}

// NewDepthCollector creates a collector over depths.
func NewDepthCollector(depths DepthFunc, logger *slog.Logger) *DepthCollector {
	return &DepthCollector{
		depths:  depths,
		timeout: 2 * time.Second,
		logger:  logger,
		depthDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "queue_depth"),
			"Current number of messages in a queue",
			[]string{"queue"}, nil,
		),
		queuesDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "queues"),
			"Current number of registered queues",
			nil, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *DepthCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.depthDesc
	ch <- c.queuesDesc
}

// Collect implements prometheus.Collector.
func (c *DepthCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	depths, err := c.depths(ctx)
	if err != nil {
		c.logger.Warn("failed to collect queue depths", "error", err)
		return
	}

	for queue, n := range depths {
		ch <- prometheus.MustNewConstMetric(c.depthDesc, prometheus.GaugeValue, float64(n), queue)
	}
	ch <- prometheus.MustNewConstMetric(c.queuesDesc, prometheus.GaugeValue, float64(len(depths)))
}
